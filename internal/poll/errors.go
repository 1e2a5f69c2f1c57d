package poll

import "errors"

// Validation errors: the request never reaches poll state.
var (
	ErrEmptyQuestion  = errors.New("question must not be empty")
	ErrInvalidOptions = errors.New("a poll needs at least 2 non-empty options")
)

// ErrActivePollConflict means a poll is running and not every eligible
// student has answered yet, so a new poll cannot start.
var ErrActivePollConflict = errors.New("an active poll is running and not all students have answered")

// Vote admission errors, in the order the checks run. The first failing check
// wins and no state changes.
var (
	ErrNoActivePoll   = errors.New("no active poll")
	ErrPollIDMismatch = errors.New("poll id does not match the active poll")
	ErrAlreadyVoted   = errors.New("you have already voted")
	ErrPollExpired    = errors.New("time to answer has expired")
	ErrInvalidOption  = errors.New("invalid option index")
)
