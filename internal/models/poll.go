package models

import "time"

// Poll status values. A poll only ever moves active -> closed.
const (
	PollStatusActive = "active"
	PollStatusClosed = "closed"
)

// Option is one answer choice with its running tally.
type Option struct {
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// SanitizedOption is an option without its tally, sent to students while a
// poll is still open.
type SanitizedOption struct {
	Text string `json:"text"`
}

// Poll is the live in-memory poll. At most one exists per process; it is owned
// by the lifecycle engine and callers only ever see copies.
type Poll struct {
	ID               string    `json:"id"`
	Question         string    `json:"question"`
	Options          []Option  `json:"options"`
	CreatorID        string    `json:"creatorId"`
	Status           string    `json:"status"`
	StartTime        time.Time `json:"startTime"`
	TimeLimitSeconds int       `json:"timeLimit"`
	// Voters maps connection id -> chosen option index. Entries are write-once.
	Voters map[string]int `json:"voters"`
	// EligibleVoters is the set of student connection ids present at creation.
	// "Has everyone voted" is always answered against this snapshot, not the
	// live roster.
	EligibleVoters map[string]struct{} `json:"-"`
}

// StudentPoll is the sanitized view of an active poll sent to students:
// no tallies, and the time limit is the remaining time, not the original one.
type StudentPoll struct {
	ID        string            `json:"id"`
	Question  string            `json:"question"`
	Options   []SanitizedOption `json:"options"`
	TimeLimit int               `json:"timeLimit"`
}
