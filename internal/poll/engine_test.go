package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/classpulse/backend/internal/history"
	"github.com/classpulse/backend/internal/models"
	"github.com/classpulse/backend/pkg/clock"
)

type EngineSuite struct {
	suite.Suite
	store  *history.MemoryStore
	clock  *clock.Fake
	engine *Engine
	ctx    context.Context
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.store = history.NewMemoryStore()
	s.clock = clock.NewFake(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	s.engine = NewEngine(s.store, s.clock, zap.NewNop())
	s.ctx = context.Background()
}

func (s *EngineSuite) createColorPoll(eligible ...string) *models.Poll {
	created, autoClosed, err := s.engine.CreatePoll(s.ctx, "Pick a color", []string{"Red", "Blue"}, 30, "teacher-1", eligible)
	s.Require().NoError(err)
	s.Require().Nil(autoClosed)
	return created
}

// Creation

func (s *EngineSuite) TestCreatePollSucceeds() {
	created := s.createColorPoll("student-a", "student-b")

	s.Equal("Pick a color", created.Question)
	s.Equal(models.PollStatusActive, created.Status)
	s.Equal([]models.Option{{Text: "Red"}, {Text: "Blue"}}, created.Options)
	s.Equal(30, created.TimeLimitSeconds)
	s.Equal("teacher-1", created.CreatorID)
	s.Equal(s.clock.Now(), created.StartTime)
	s.Len(created.EligibleVoters, 2)
	s.Empty(created.Voters)
}

func (s *EngineSuite) TestCreatePollRejectsEmptyQuestion() {
	_, _, err := s.engine.CreatePoll(s.ctx, "   ", []string{"A", "B"}, 30, "teacher-1", nil)
	s.ErrorIs(err, ErrEmptyQuestion)
	s.Nil(s.engine.CurrentSnapshot())
}

func (s *EngineSuite) TestCreatePollRejectsTooFewOptions() {
	_, _, err := s.engine.CreatePoll(s.ctx, "Q", []string{"only one"}, 30, "teacher-1", nil)
	s.ErrorIs(err, ErrInvalidOptions)
}

func (s *EngineSuite) TestCreatePollRejectsBlankOption() {
	_, _, err := s.engine.CreatePoll(s.ctx, "Q", []string{"A", "  "}, 30, "teacher-1", nil)
	s.ErrorIs(err, ErrInvalidOptions)
}

func (s *EngineSuite) TestCreatePollDefaultsTimeLimit() {
	created, _, err := s.engine.CreatePoll(s.ctx, "Q", []string{"A", "B"}, 0, "teacher-1", nil)
	s.Require().NoError(err)
	s.Equal(DefaultTimeLimitSeconds, created.TimeLimitSeconds)
}

func (s *EngineSuite) TestCreatePollConflictsWhileVotesOutstanding() {
	s.createColorPoll("student-a", "student-b")
	_, err := s.engine.RecordVote(s.engine.CurrentSnapshot().ID, 0, "student-a")
	s.Require().NoError(err)

	before := s.engine.CurrentSnapshot()
	_, _, err = s.engine.CreatePoll(s.ctx, "Another", []string{"X", "Y"}, 30, "teacher-1", nil)
	s.ErrorIs(err, ErrActivePollConflict)

	// The rejected create leaves the active poll untouched.
	after := s.engine.CurrentSnapshot()
	s.Equal(before, after)
}

func (s *EngineSuite) TestCreatePollAutoClosesFullyVotedPredecessor() {
	first := s.createColorPoll("student-a", "student-b")
	_, err := s.engine.RecordVote(first.ID, 0, "student-a")
	s.Require().NoError(err)
	_, err = s.engine.RecordVote(first.ID, 1, "student-b")
	s.Require().NoError(err)
	s.True(s.engine.AllEligibleVoted())

	s.clock.Advance(5 * time.Second)
	created, autoClosed, err := s.engine.CreatePoll(s.ctx, "Next question", []string{"X", "Y"}, 30, "teacher-1", []string{"student-a"})
	s.Require().NoError(err)

	s.Require().NotNil(autoClosed)
	s.Equal(first.ID, autoClosed.Poll.ID)
	s.Equal(models.PollStatusClosed, autoClosed.Poll.Status)
	s.False(autoClosed.SaveFailed)
	s.Contains(autoClosed.Reason, "auto-closed")

	s.Equal(models.PollStatusActive, created.Status)
	s.NotEqual(first.ID, created.ID)

	// The predecessor was persisted before the new poll went live.
	records, err := s.store.QueryByCreator(s.ctx, "teacher-1", 10)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal("Pick a color", records[0].Question)
}

func (s *EngineSuite) TestCreatePollWithNoEligibleVotersTreatsActiveAsFullyVoted() {
	s.createColorPoll() // nobody present at creation
	_, autoClosed, err := s.engine.CreatePoll(s.ctx, "Next", []string{"X", "Y"}, 30, "teacher-1", nil)
	s.Require().NoError(err)
	s.NotNil(autoClosed)
}

// Vote admission

func (s *EngineSuite) TestRecordVoteIncrementsTally() {
	created := s.createColorPoll("student-a")
	s.clock.Advance(5 * time.Second)

	options, err := s.engine.RecordVote(created.ID, 0, "student-a")
	s.Require().NoError(err)
	s.Equal(1, options[0].Votes)
	s.Equal(0, options[1].Votes)
}

func (s *EngineSuite) TestRecordVoteRejectsSecondVote() {
	created := s.createColorPoll("student-a")
	_, err := s.engine.RecordVote(created.ID, 0, "student-a")
	s.Require().NoError(err)

	_, err = s.engine.RecordVote(created.ID, 1, "student-a")
	s.ErrorIs(err, ErrAlreadyVoted)

	snapshot := s.engine.CurrentSnapshot()
	s.Equal(1, snapshot.Options[0].Votes)
	s.Equal(0, snapshot.Options[1].Votes)
}

func (s *EngineSuite) TestRecordVoteRejectsWithoutActivePoll() {
	_, err := s.engine.RecordVote("poll-123", 0, "student-a")
	s.ErrorIs(err, ErrNoActivePoll)
}

func (s *EngineSuite) TestRecordVoteRejectsMismatchedPollID() {
	s.createColorPoll("student-a")
	_, err := s.engine.RecordVote("poll-stale", 0, "student-a")
	s.ErrorIs(err, ErrPollIDMismatch)
}

func (s *EngineSuite) TestRecordVoteRejectsAtExactExpiry() {
	created := s.createColorPoll("student-a")
	s.clock.Advance(30 * time.Second) // elapsed == time limit

	_, err := s.engine.RecordVote(created.ID, 0, "student-a")
	s.ErrorIs(err, ErrPollExpired)
}

func (s *EngineSuite) TestRecordVoteAcceptsJustBeforeExpiry() {
	created := s.createColorPoll("student-a")
	s.clock.Advance(29*time.Second + 900*time.Millisecond)

	_, err := s.engine.RecordVote(created.ID, 0, "student-a")
	s.NoError(err)
}

func (s *EngineSuite) TestRecordVoteRejectsOutOfBoundsOption() {
	created := s.createColorPoll("student-a")

	_, err := s.engine.RecordVote(created.ID, 2, "student-a")
	s.ErrorIs(err, ErrInvalidOption)
	_, err = s.engine.RecordVote(created.ID, -1, "student-a")
	s.ErrorIs(err, ErrInvalidOption)

	// Failed admission leaves no trace; the same student can still vote.
	_, err = s.engine.RecordVote(created.ID, 1, "student-a")
	s.NoError(err)
}

func (s *EngineSuite) TestVoteCountMatchesAcceptedVotes() {
	created := s.createColorPoll("a", "b", "c")
	voters := []string{"a", "b", "c"}
	for _, v := range voters {
		_, err := s.engine.RecordVote(created.ID, 0, v)
		s.Require().NoError(err)
	}
	_, err := s.engine.RecordVote(created.ID, 0, "a")
	s.ErrorIs(err, ErrAlreadyVoted)

	snapshot := s.engine.CurrentSnapshot()
	total := 0
	for _, o := range snapshot.Options {
		total += o.Votes
	}
	s.Equal(len(voters), total)
}

// Close

func (s *EngineSuite) TestCloseActivePollPersistsRecord() {
	created := s.createColorPoll("student-a", "student-b")
	_, err := s.engine.RecordVote(created.ID, 0, "student-a")
	s.Require().NoError(err)
	s.clock.Advance(40 * time.Second)

	result := s.engine.CloseActivePoll(s.ctx, "closed by teacher Priya")
	s.Require().NotNil(result)
	s.Equal(models.PollStatusClosed, result.Poll.Status)
	s.False(result.SaveFailed)
	s.NotEmpty(result.RecordID)
	s.Nil(s.engine.CurrentSnapshot())

	records, err := s.store.QueryByCreator(s.ctx, "teacher-1", 10)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal("Pick a color", records[0].Question)
	s.Equal([]models.Option{{Text: "Red", Votes: 1}, {Text: "Blue", Votes: 0}}, records[0].Options)
	s.Equal(created.StartTime, records[0].StartedAt)
	s.Equal(s.clock.Now(), records[0].EndedAt)
	s.Equal(30, records[0].TimeLimitSeconds)
}

func (s *EngineSuite) TestCloseActivePollWithNothingActiveReturnsNil() {
	s.Nil(s.engine.CloseActivePoll(s.ctx, "timed out"))
}

func (s *EngineSuite) TestCloseIsNotRepeatable() {
	s.createColorPoll("student-a")
	s.Require().NotNil(s.engine.CloseActivePoll(s.ctx, "timed out"))
	s.Nil(s.engine.CloseActivePoll(s.ctx, "timed out"))
}

func (s *EngineSuite) TestCloseSurvivesPersistenceFailure() {
	engine := NewEngine(&failingStore{}, s.clock, zap.NewNop())
	created, _, err := engine.CreatePoll(s.ctx, "Q", []string{"A", "B"}, 30, "teacher-1", nil)
	s.Require().NoError(err)

	result := engine.CloseActivePoll(s.ctx, "timed out")
	s.Require().NotNil(result)
	s.True(result.SaveFailed)
	s.Equal(created.ID, result.Poll.ID)
	// The poll is gone regardless; a closed poll is never resurrected to
	// retry the save.
	s.Nil(engine.CurrentSnapshot())
}

func (s *EngineSuite) TestCloseIfCurrentClosesMatchingPoll() {
	created := s.createColorPoll("student-a")
	s.clock.Advance(30 * time.Second)

	result := s.engine.CloseActivePollIfCurrent(s.ctx, created.ID, "timed out")
	s.Require().NotNil(result)
	s.Equal(created.ID, result.Poll.ID)
	s.Nil(s.engine.CurrentSnapshot())
}

func (s *EngineSuite) TestCloseIfCurrentIgnoresSuccessorPoll() {
	// A timed-out poll is closed manually and replaced before its timeout
	// callback gets to run. The callback must not touch the successor.
	first := s.createColorPoll("student-a")
	s.clock.Advance(30 * time.Second)

	s.Require().NotNil(s.engine.CloseActivePoll(s.ctx, "closed by teacher Priya"))
	s.clock.Advance(time.Second)
	second, _, err := s.engine.CreatePoll(s.ctx, "Next", []string{"X", "Y"}, 30, "teacher-1", []string{"student-a"})
	s.Require().NoError(err)

	s.Nil(s.engine.CloseActivePollIfCurrent(s.ctx, first.ID, "timed out"))

	current := s.engine.CurrentSnapshot()
	s.Require().NotNil(current)
	s.Equal(second.ID, current.ID)
	s.Equal(models.PollStatusActive, current.Status)

	records, err := s.store.QueryByCreator(s.ctx, "teacher-1", 10)
	s.Require().NoError(err)
	s.Len(records, 1) // only the first poll reached history
}

func (s *EngineSuite) TestCloseIfCurrentWithNothingActiveReturnsNil() {
	s.Nil(s.engine.CloseActivePollIfCurrent(s.ctx, "poll-123", "timed out"))
}

func (s *EngineSuite) TestVoteAfterCloseIsRejected() {
	created := s.createColorPoll("student-a")
	s.engine.CloseActivePoll(s.ctx, "timed out")

	_, err := s.engine.RecordVote(created.ID, 0, "student-a")
	s.ErrorIs(err, ErrNoActivePoll)
}

// Views

func (s *EngineSuite) TestCurrentSnapshotIsACopy() {
	s.createColorPoll("student-a")
	snapshot := s.engine.CurrentSnapshot()
	snapshot.Options[0].Votes = 99
	snapshot.Voters["intruder"] = 0

	fresh := s.engine.CurrentSnapshot()
	s.Equal(0, fresh.Options[0].Votes)
	s.Empty(fresh.Voters)
}

func (s *EngineSuite) TestStudentViewHidesTalliesAndCountsDown() {
	created := s.createColorPoll("student-a")
	_, err := s.engine.RecordVote(created.ID, 0, "student-a")
	s.Require().NoError(err)
	s.clock.Advance(10 * time.Second)

	view := s.engine.StudentView()
	s.Require().NotNil(view)
	s.Equal(created.ID, view.ID)
	s.Equal([]models.SanitizedOption{{Text: "Red"}, {Text: "Blue"}}, view.Options)
	s.Equal(20, view.TimeLimit)
}

func (s *EngineSuite) TestStudentViewNilAfterExpiry() {
	s.createColorPoll("student-a")
	s.clock.Advance(30 * time.Second)
	s.Nil(s.engine.StudentView())
}

func (s *EngineSuite) TestAllEligibleVotedTracksSnapshotNotRoster() {
	created := s.createColorPoll("student-a", "student-b")
	_, err := s.engine.RecordVote(created.ID, 0, "student-a")
	s.Require().NoError(err)
	s.False(s.engine.AllEligibleVoted())

	// A vote from someone outside the creation snapshot counts as a vote but
	// cannot complete the snapshot by itself.
	_, err = s.engine.RecordVote(created.ID, 1, "late-joiner")
	s.Require().NoError(err)
	s.False(s.engine.AllEligibleVoted())

	_, err = s.engine.RecordVote(created.ID, 1, "student-b")
	s.Require().NoError(err)
	s.True(s.engine.AllEligibleVoted())
}

func (s *EngineSuite) TestHasVoted() {
	created := s.createColorPoll("student-a")
	s.False(s.engine.HasVoted("student-a"))
	_, err := s.engine.RecordVote(created.ID, 0, "student-a")
	s.Require().NoError(err)
	s.True(s.engine.HasVoted("student-a"))
}

// Full classroom scenario from start to history.

func (s *EngineSuite) TestClassroomScenario() {
	created := s.createColorPoll("student-a", "student-b")

	s.clock.Advance(5 * time.Second)
	options, err := s.engine.RecordVote(created.ID, 0, "student-a")
	s.Require().NoError(err)
	s.Equal(1, options[0].Votes)

	s.clock.Advance(5 * time.Second)
	_, err = s.engine.RecordVote(created.ID, 1, "student-a")
	s.ErrorIs(err, ErrAlreadyVoted)

	s.clock.Advance(21 * time.Second) // t = 31s
	_, err = s.engine.RecordVote(created.ID, 1, "student-b")
	s.ErrorIs(err, ErrPollExpired)

	s.clock.Advance(9 * time.Second) // t = 40s
	result := s.engine.CloseActivePoll(s.ctx, "closed by teacher")
	s.Require().NotNil(result)

	records, err := s.store.QueryByCreator(s.ctx, "teacher-1", 10)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal([]models.Option{{Text: "Red", Votes: 1}, {Text: "Blue", Votes: 0}}, records[0].Options)
}

type failingStore struct{}

func (f *failingStore) Append(context.Context, *history.Record) (string, error) {
	return "", errors.New("connection refused")
}

func (f *failingStore) QueryByCreator(context.Context, string, int) ([]history.Record, error) {
	return nil, errors.New("connection refused")
}
