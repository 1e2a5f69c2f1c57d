package realtime

import (
	"github.com/classpulse/backend/internal/models"
)

// Inbound command names (client -> server).
const (
	CmdJoin            = "join"
	CmdCreatePoll      = "createPoll"
	CmdSubmitAnswer    = "submitAnswer"
	CmdClosePollManual = "closePollManual"
	CmdGetPastPolls    = "getPastPolls"
	CmdKickStudent     = "kickStudent"
	CmdSendMessage     = "sendMessage"
	CmdGetChatHistory  = "getChatHistory"
)

// Outbound event names (server -> client).
const (
	EventJoined            = "joined"
	EventActiveUsers       = "activeUsers"
	EventNewPoll           = "newPoll"
	EventPollCreated       = "pollCreated"
	EventPollStatus        = "pollStatus"
	EventPollResultsUpdate = "pollResultsUpdate"
	EventPollClosed        = "pollClosed"
	EventPastPollsData     = "pastPollsData"
	EventKicked            = "kicked"
	EventError             = "error"
	EventNewMessage        = "newMessage"
	EventChatHistory       = "chatHistory"
)

// Inbound payloads. Commands are decoded into these shapes once, at the
// boundary, before anything touches component state.

type joinPayload struct {
	Name string      `json:"name"`
	Role models.Role `json:"role"`
}

type createPollPayload struct {
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	TimeLimit int      `json:"timeLimit"`
}

type submitAnswerPayload struct {
	PollID      string `json:"pollId"`
	OptionIndex int    `json:"optionIndex"`
}

type kickStudentPayload struct {
	StudentID string `json:"studentId"`
}

type sendMessagePayload struct {
	Text string `json:"text"`
}

// Outbound payloads.

type errorPayload struct {
	Message string `json:"message"`
}

type kickedPayload struct {
	Message string `json:"message"`
}

type newPollPayload struct {
	ID        string                   `json:"id"`
	Question  string                   `json:"question"`
	Options   []models.SanitizedOption `json:"options"`
	TimeLimit int                      `json:"timeLimit"`
}

type pollResultsPayload struct {
	ID      string          `json:"id"`
	Options []models.Option `json:"options"`
}

type pollClosedPayload struct {
	ID              string          `json:"id"`
	Question        string          `json:"question"`
	Options         []models.Option `json:"options"`
	Reason          string          `json:"reason"`
	ErrorSavingToDB bool            `json:"errorSavingToDb,omitempty"`
}
