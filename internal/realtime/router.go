package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/classpulse/backend/internal/chat"
	"github.com/classpulse/backend/internal/history"
	"github.com/classpulse/backend/internal/models"
	"github.com/classpulse/backend/internal/poll"
	"github.com/classpulse/backend/internal/registry"
)

const (
	pastPollsLimit   = 20
	chatHistoryLimit = 50
)

// Emitter is what the router needs from the hub: fan-out, targeted delivery,
// and forced disconnect.
type Emitter interface {
	Broadcast(event string, payload interface{})
	Unicast(clientID, event string, payload interface{})
	Kick(clientID string, payload interface{})
}

// Router dispatches inbound commands to the registry, poll engine, history
// store, and chat log, and emits the resulting events. It also owns the
// one-shot auto-close timer for the active poll; the engine itself never
// schedules anything.
type Router struct {
	registry *registry.Registry
	engine   *poll.Engine
	history  history.Store
	chat     chat.Store
	emitter  Emitter
	logger   *zap.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer // poll id -> pending auto-close
}

// NewRouter wires the router to its components.
func NewRouter(reg *registry.Registry, engine *poll.Engine, hist history.Store, chatStore chat.Store, emitter Emitter, logger *zap.Logger) *Router {
	return &Router{
		registry: reg,
		engine:   engine,
		history:  hist,
		chat:     chatStore,
		emitter:  emitter,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
	}
}

// Dispatch routes one inbound command. Unknown events are ignored; malformed
// payloads and component failures are unicast to the caller as error events
// and never broadcast.
func (r *Router) Dispatch(clientID, event string, data json.RawMessage) {
	ctx := context.Background()
	switch event {
	case CmdJoin:
		r.handleJoin(ctx, clientID, data)
	case CmdCreatePoll:
		r.handleCreatePoll(ctx, clientID, data)
	case CmdSubmitAnswer:
		r.handleSubmitAnswer(clientID, data)
	case CmdClosePollManual:
		r.handleClosePollManual(ctx, clientID)
	case CmdGetPastPolls:
		r.handleGetPastPolls(ctx, clientID)
	case CmdKickStudent:
		r.handleKickStudent(clientID, data)
	case CmdSendMessage:
		r.handleSendMessage(ctx, clientID, data)
	case CmdGetChatHistory:
		r.handleGetChatHistory(ctx, clientID)
	default:
		// ignore
	}
}

// HandleDisconnect removes the participant and broadcasts the updated roster.
func (r *Router) HandleDisconnect(clientID string) {
	if _, ok := r.registry.Unregister(clientID); ok {
		r.emitter.Broadcast(EventActiveUsers, r.registry.ListAll())
	}
}

func (r *Router) handleJoin(ctx context.Context, clientID string, data json.RawMessage) {
	var payload joinPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		r.sendError(clientID, "Name and role are required to join.")
		return
	}

	participant, err := r.registry.Register(clientID, payload.Name, payload.Role)
	if err != nil {
		r.sendError(clientID, joinErrorMessage(err))
		return
	}

	r.emitter.Unicast(clientID, EventJoined, participant)
	r.emitter.Broadcast(EventActiveUsers, r.registry.ListAll())

	// Bring the joiner up to date with the poll in progress, if any.
	switch participant.Role {
	case models.RoleStudent:
		if snapshot := r.engine.CurrentSnapshot(); snapshot != nil && r.engine.HasVoted(clientID) {
			r.emitter.Unicast(clientID, EventPollResultsUpdate, pollResultsPayload{ID: snapshot.ID, Options: snapshot.Options})
		} else if view := r.engine.StudentView(); view != nil {
			r.emitter.Unicast(clientID, EventNewPoll, view)
		}
	case models.RoleTeacher:
		if snapshot := r.engine.CurrentSnapshot(); snapshot != nil && snapshot.Status == models.PollStatusActive {
			r.emitter.Unicast(clientID, EventPollStatus, snapshot)
		}
	}

	if messages, err := r.chat.Recent(ctx, chatHistoryLimit); err == nil {
		r.emitter.Unicast(clientID, EventChatHistory, messages)
	} else {
		r.logger.Warn("could not send chat history on join", zap.Error(err))
	}
}

func (r *Router) handleCreatePoll(ctx context.Context, clientID string, data json.RawMessage) {
	teacher, ok := r.registry.Lookup(clientID)
	if !ok || teacher.Role != models.RoleTeacher {
		r.sendError(clientID, "Only teachers can create polls.")
		return
	}

	var payload createPollPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		r.sendError(clientID, "Invalid poll data.")
		return
	}

	students := r.registry.ListByRole(models.RoleStudent)
	eligible := make([]string, len(students))
	for i, s := range students {
		eligible[i] = s.ID
	}

	created, autoClosed, err := r.engine.CreatePoll(ctx, payload.Question, payload.Options, payload.TimeLimit, clientID, eligible)
	if err != nil {
		r.sendError(clientID, createErrorMessage(err))
		return
	}

	// The auto-closed predecessor is broadcast before the new poll so every
	// client observes the close first and never sees two active polls.
	if autoClosed != nil {
		r.cancelAutoClose(autoClosed.Poll.ID)
		r.broadcastClosed(autoClosed)
	}

	r.scheduleAutoClose(created.ID, time.Duration(created.TimeLimitSeconds)*time.Second)

	sanitized := make([]models.SanitizedOption, len(created.Options))
	for i, o := range created.Options {
		sanitized[i] = models.SanitizedOption{Text: o.Text}
	}
	r.emitter.Broadcast(EventNewPoll, newPollPayload{
		ID:        created.ID,
		Question:  created.Question,
		Options:   sanitized,
		TimeLimit: created.TimeLimitSeconds,
	})
	r.emitter.Unicast(clientID, EventPollCreated, created)
}

func (r *Router) handleSubmitAnswer(clientID string, data json.RawMessage) {
	student, ok := r.registry.Lookup(clientID)
	if !ok || student.Role != models.RoleStudent {
		r.sendError(clientID, "Only students can submit answers.")
		return
	}

	var payload submitAnswerPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		r.sendError(clientID, "Invalid answer data.")
		return
	}

	options, err := r.engine.RecordVote(payload.PollID, payload.OptionIndex, clientID)
	if err != nil {
		r.sendError(clientID, voteErrorMessage(err))
		return
	}
	r.emitter.Broadcast(EventPollResultsUpdate, pollResultsPayload{ID: payload.PollID, Options: options})
}

func (r *Router) handleClosePollManual(ctx context.Context, clientID string) {
	teacher, ok := r.registry.Lookup(clientID)
	if !ok || teacher.Role != models.RoleTeacher {
		r.sendError(clientID, "Only teachers can manually close polls.")
		return
	}

	result := r.engine.CloseActivePoll(ctx, "closed by teacher "+teacher.Name)
	if result == nil {
		r.sendError(clientID, "No active poll to close.")
		return
	}
	r.cancelAutoClose(result.Poll.ID)
	r.broadcastClosed(result)
}

func (r *Router) handleGetPastPolls(ctx context.Context, clientID string) {
	teacher, ok := r.registry.Lookup(clientID)
	if !ok || teacher.Role != models.RoleTeacher {
		r.sendError(clientID, "Only teachers can view past polls.")
		return
	}

	records, err := r.history.QueryByCreator(ctx, clientID, pastPollsLimit)
	if err != nil {
		r.logger.Error("past polls query failed", zap.String("teacher_id", clientID), zap.Error(err))
		r.sendError(clientID, "Failed to fetch past polls.")
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	r.emitter.Unicast(clientID, EventPastPollsData, records)
}

func (r *Router) handleKickStudent(clientID string, data json.RawMessage) {
	teacher, ok := r.registry.Lookup(clientID)
	if !ok || teacher.Role != models.RoleTeacher {
		r.sendError(clientID, "Only teachers can remove students.")
		return
	}

	var payload kickStudentPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.StudentID == "" {
		r.sendError(clientID, "A student id is required.")
		return
	}
	target, ok := r.registry.Lookup(payload.StudentID)
	if !ok || target.Role != models.RoleStudent {
		r.sendError(clientID, "Student not found.")
		return
	}

	r.logger.Info("student kicked",
		zap.String("student_id", target.ID),
		zap.String("student_name", target.Name),
		zap.String("teacher_id", clientID),
	)
	r.emitter.Kick(target.ID, kickedPayload{Message: "You have been removed from the classroom by the teacher."})
}

func (r *Router) handleSendMessage(ctx context.Context, clientID string, data json.RawMessage) {
	var payload sendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		r.sendError(clientID, "Invalid message data.")
		return
	}
	text := strings.TrimSpace(payload.Text)
	if text == "" {
		r.sendError(clientID, "Cannot send an empty message.")
		return
	}
	sender, ok := r.registry.Lookup(clientID)
	if !ok {
		r.sendError(clientID, "You must be joined to send messages.")
		return
	}

	msg := models.ChatMessage{
		Text:       text,
		SenderName: sender.Name,
		SenderID:   sender.ID,
		SenderRole: sender.Role,
		Timestamp:  time.Now(),
	}
	if err := r.chat.Save(ctx, &msg); err != nil {
		r.logger.Error("chat message save failed", zap.Error(err))
		r.sendError(clientID, "Failed to save message.")
		return
	}
	r.emitter.Broadcast(EventNewMessage, msg)
}

func (r *Router) handleGetChatHistory(ctx context.Context, clientID string) {
	messages, err := r.chat.Recent(ctx, chatHistoryLimit)
	if err != nil {
		r.logger.Error("chat history query failed", zap.Error(err))
		r.sendError(clientID, "Failed to fetch messages.")
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	r.emitter.Unicast(clientID, EventChatHistory, messages)
}

// scheduleAutoClose arms the one-shot timeout for a freshly created poll. The
// fired callback re-checks the current poll id, so a timer surviving its poll
// is a no-op rather than a double close.
func (r *Router) scheduleAutoClose(pollID string, after time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timers[pollID] = time.AfterFunc(after, func() {
		r.autoClose(pollID)
	})
}

func (r *Router) autoClose(pollID string) {
	r.cancelAutoClose(pollID)
	// The id check and the close share one engine critical section, so a
	// manual close plus a new create slipping in here cannot hand this timer
	// a successor poll to close.
	result := r.engine.CloseActivePollIfCurrent(context.Background(), pollID, "timed out")
	if result == nil {
		return
	}
	r.broadcastClosed(result)
}

func (r *Router) cancelAutoClose(pollID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[pollID]; ok {
		t.Stop()
		delete(r.timers, pollID)
	}
}

func (r *Router) broadcastClosed(result *poll.ClosedResult) {
	r.emitter.Broadcast(EventPollClosed, pollClosedPayload{
		ID:              result.Poll.ID,
		Question:        result.Poll.Question,
		Options:         result.Poll.Options,
		Reason:          result.Reason,
		ErrorSavingToDB: result.SaveFailed,
	})
}

func (r *Router) sendError(clientID, message string) {
	r.emitter.Unicast(clientID, EventError, errorPayload{Message: message})
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, registry.ErrInvalidName):
		return "Name must be between 2 and 20 characters."
	case errors.Is(err, registry.ErrInvalidRole):
		return "Role must be teacher or student."
	default:
		return "Failed to join. Please try again."
	}
}

func createErrorMessage(err error) string {
	switch {
	case errors.Is(err, poll.ErrActivePollConflict):
		return "An active poll is running and not all students have answered."
	case errors.Is(err, poll.ErrEmptyQuestion):
		return "Question must not be empty."
	case errors.Is(err, poll.ErrInvalidOptions):
		return "A poll needs at least 2 non-empty options."
	default:
		return "Failed to create poll."
	}
}

func voteErrorMessage(err error) string {
	switch {
	case errors.Is(err, poll.ErrNoActivePoll):
		return "Poll is not active or not found."
	case errors.Is(err, poll.ErrPollIDMismatch):
		return "Poll is not active or not found."
	case errors.Is(err, poll.ErrAlreadyVoted):
		return "You have already voted."
	case errors.Is(err, poll.ErrPollExpired):
		return "Time to answer has expired."
	case errors.Is(err, poll.ErrInvalidOption):
		return "Invalid option index."
	default:
		return "Failed to record answer."
	}
}
