// Package poll owns the lifecycle of the single classroom poll: creation,
// vote admission, close, and the handoff of closed polls to durable history.
//
// The engine holds the only reference to the live poll and every mutation goes
// through its methods under one mutex, so two near-simultaneous votes, or a
// close racing a vote, serialize cleanly. The engine never schedules timers;
// the caller owns the auto-close timer and calls CloseActivePoll when it
// fires (see realtime.Router).
package poll

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/classpulse/backend/internal/history"
	"github.com/classpulse/backend/internal/models"
	"github.com/classpulse/backend/pkg/clock"
)

// DefaultTimeLimitSeconds is used when a create request carries no usable
// time limit.
const DefaultTimeLimitSeconds = 60

// ClosedResult describes a poll that just closed. SaveFailed is set when the
// history write failed; the live poll is discarded either way and the flag is
// surfaced to the UI instead of retrying.
type ClosedResult struct {
	Poll       models.Poll
	Reason     string
	RecordID   string
	SaveFailed bool
}

// Engine is the poll lifecycle state machine: no poll -> active -> closed.
type Engine struct {
	mu      sync.Mutex
	current *models.Poll
	store   history.Store
	clock   clock.Clock
	logger  *zap.Logger
}

// NewEngine creates an engine with no active poll.
func NewEngine(store history.Store, clk clock.Clock, logger *zap.Logger) *Engine {
	return &Engine{store: store, clock: clk, logger: logger}
}

// CreatePoll validates and activates a new poll. When a poll is still running
// and not everyone has voted, it fails with ErrActivePollConflict. When the
// running poll has been answered by every eligible voter, it is closed first
// and returned as autoClosed so the caller can broadcast the close before the
// new poll.
func (e *Engine) CreatePoll(ctx context.Context, question string, options []string, timeLimitSeconds int, creatorID string, eligibleVoters []string) (created *models.Poll, autoClosed *ClosedResult, err error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, nil, ErrEmptyQuestion
	}
	opts := make([]models.Option, 0, len(options))
	for _, text := range options {
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, nil, ErrInvalidOptions
		}
		opts = append(opts, models.Option{Text: text})
	}
	if len(opts) < 2 {
		return nil, nil, ErrInvalidOptions
	}
	if timeLimitSeconds <= 0 {
		timeLimitSeconds = DefaultTimeLimitSeconds
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil && e.current.Status == models.PollStatusActive {
		if !e.allEligibleVotedLocked() {
			return nil, nil, ErrActivePollConflict
		}
		autoClosed = e.closeLocked(ctx, "auto-closed: new poll created")
	}

	now := e.clock.Now()
	eligible := make(map[string]struct{}, len(eligibleVoters))
	for _, id := range eligibleVoters {
		eligible[id] = struct{}{}
	}
	e.current = &models.Poll{
		ID:               fmt.Sprintf("poll-%d", now.UnixMilli()),
		Question:         question,
		Options:          opts,
		CreatorID:        creatorID,
		Status:           models.PollStatusActive,
		StartTime:        now,
		TimeLimitSeconds: timeLimitSeconds,
		Voters:           make(map[string]int),
		EligibleVoters:   eligible,
	}

	e.logger.Info("poll created",
		zap.String("poll_id", e.current.ID),
		zap.String("creator_id", creatorID),
		zap.Int("options", len(opts)),
		zap.Int("time_limit_sec", timeLimitSeconds),
		zap.Int("eligible_voters", len(eligible)),
	)
	snapshot := e.snapshotLocked()
	return snapshot, autoClosed, nil
}

// RecordVote admits one vote. Checks run in a fixed order and the first
// failure wins with no partial mutation; acceptance requires strictly
// elapsed < time limit. On success it returns the updated tallies.
func (e *Engine) RecordVote(pollID string, optionIndex int, voterID string) ([]models.Option, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || e.current.Status != models.PollStatusActive {
		return nil, ErrNoActivePoll
	}
	if e.current.ID != pollID {
		return nil, ErrPollIDMismatch
	}
	if _, voted := e.current.Voters[voterID]; voted {
		return nil, ErrAlreadyVoted
	}
	elapsed := e.clock.Now().Sub(e.current.StartTime)
	if elapsed >= time.Duration(e.current.TimeLimitSeconds)*time.Second {
		return nil, ErrPollExpired
	}
	if optionIndex < 0 || optionIndex >= len(e.current.Options) {
		return nil, ErrInvalidOption
	}

	e.current.Options[optionIndex].Votes++
	e.current.Voters[voterID] = optionIndex

	e.logger.Debug("vote recorded",
		zap.String("poll_id", pollID),
		zap.String("voter_id", voterID),
		zap.Int("option", optionIndex),
	)
	return append([]models.Option(nil), e.current.Options...), nil
}

// CloseActivePoll closes the running poll and persists it. Returns nil when
// nothing is active (an explicit "nothing to close", not an error).
func (e *Engine) CloseActivePoll(ctx context.Context, reason string) *ClosedResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeLocked(ctx, reason)
}

// CloseActivePollIfCurrent closes the running poll only if its id matches
// pollID, with the check and the close under the same lock. Timeout callbacks
// use this so a timer that outlives its poll cannot close a successor that
// went live between the fire and the close.
func (e *Engine) CloseActivePollIfCurrent(ctx context.Context, pollID, reason string) *ClosedResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil || e.current.ID != pollID {
		return nil
	}
	return e.closeLocked(ctx, reason)
}

// closeLocked flips the poll to closed, writes the history record, and
// discards the live instance. The status flip happens before the durable
// write, so any vote arriving during the write is already rejected.
func (e *Engine) closeLocked(ctx context.Context, reason string) *ClosedResult {
	if e.current == nil || e.current.Status != models.PollStatusActive {
		return nil
	}
	e.current.Status = models.PollStatusClosed

	rec := &history.Record{
		Question:         e.current.Question,
		Options:          append([]models.Option(nil), e.current.Options...),
		CreatorID:        e.current.CreatorID,
		StartedAt:        e.current.StartTime,
		EndedAt:          e.clock.Now(),
		TimeLimitSeconds: e.current.TimeLimitSeconds,
	}
	recordID, err := e.store.Append(ctx, rec)

	result := &ClosedResult{
		Poll:       *e.snapshotLocked(),
		Reason:     reason,
		RecordID:   recordID,
		SaveFailed: err != nil,
	}
	if err != nil {
		e.logger.Error("failed to save closed poll",
			zap.String("poll_id", e.current.ID),
			zap.Error(err),
		)
	} else {
		e.logger.Info("poll closed",
			zap.String("poll_id", e.current.ID),
			zap.String("reason", reason),
			zap.String("record_id", recordID),
		)
	}
	e.current = nil
	return result
}

// CurrentSnapshot returns a copy of the live poll, or nil when none is active.
func (e *Engine) CurrentSnapshot() *models.Poll {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	return e.snapshotLocked()
}

// StudentView returns the sanitized active poll for a newly joining student:
// option texts only, with the remaining time in place of the original limit.
// Returns nil when there is no active poll or its time has already run out.
func (e *Engine) StudentView() *models.StudentPoll {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil || e.current.Status != models.PollStatusActive {
		return nil
	}
	remaining := e.remainingSecondsLocked()
	if remaining <= 0 {
		return nil
	}
	opts := make([]models.SanitizedOption, len(e.current.Options))
	for i, o := range e.current.Options {
		opts[i] = models.SanitizedOption{Text: o.Text}
	}
	return &models.StudentPoll{
		ID:        e.current.ID,
		Question:  e.current.Question,
		Options:   opts,
		TimeLimit: remaining,
	}
}

// RemainingSeconds returns the seconds left on the active poll; values <= 0
// mean expired. Returns 0 when no poll is active.
func (e *Engine) RemainingSeconds() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil || e.current.Status != models.PollStatusActive {
		return 0
	}
	return e.remainingSecondsLocked()
}

// HasVoted reports whether the voter already has an entry in the active poll.
func (e *Engine) HasVoted(voterID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return false
	}
	_, ok := e.current.Voters[voterID]
	return ok
}

// AllEligibleVoted reports whether every student present at creation has
// voted. False when no poll is active.
func (e *Engine) AllEligibleVoted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return false
	}
	return e.allEligibleVotedLocked()
}

func (e *Engine) allEligibleVotedLocked() bool {
	for id := range e.current.EligibleVoters {
		if _, ok := e.current.Voters[id]; !ok {
			return false
		}
	}
	return true
}

func (e *Engine) remainingSecondsLocked() int {
	elapsed := int(e.clock.Now().Sub(e.current.StartTime) / time.Second)
	return e.current.TimeLimitSeconds - elapsed
}

func (e *Engine) snapshotLocked() *models.Poll {
	snapshot := *e.current
	snapshot.Options = append([]models.Option(nil), e.current.Options...)
	snapshot.Voters = make(map[string]int, len(e.current.Voters))
	for id, idx := range e.current.Voters {
		snapshot.Voters[id] = idx
	}
	snapshot.EligibleVoters = make(map[string]struct{}, len(e.current.EligibleVoters))
	for id := range e.current.EligibleVoters {
		snapshot.EligibleVoters[id] = struct{}{}
	}
	return &snapshot
}
