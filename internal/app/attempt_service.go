package app

import (
	"context"
	"time"

	"quizhub/internal/domain"
)

// QuizRepository exposes the quiz catalog.
type QuizRepository interface {
	ListActiveQuizzes(ctx context.Context) ([]domain.QuizSummary, error)
	GetQuiz(ctx context.Context, quizID int64) (domain.QuizSummary, error)
}

// QuestionRepository exposes the full question set of a quiz, correct labels
// included. Only the scoring path and admin listings may consume it.
type QuestionRepository interface {
	GetQuestions(ctx context.Context, quizID int64) ([]domain.Question, error)
}

// AttemptRepository persists attempt rows and their aggregates.
type AttemptRepository interface {
	CreateAttempt(ctx context.Context, userID, quizID int64, startedAt time.Time) (int64, error)
	CompleteAttempt(ctx context.Context, attemptID int64, score, totalQuestions int, completedAt time.Time) error
	ListCompletedAttempts(ctx context.Context, userID int64) ([]domain.AttemptSummary, error)
	Leaderboard(ctx context.Context) ([]domain.LeaderboardRow, error)
}

// LeaderboardSource serves the public leaderboard read. It may be a caching
// layer in front of the attempt repository.
type LeaderboardSource interface {
	Leaderboard(ctx context.Context) ([]domain.LeaderboardRow, error)
}

// LeaderboardInvalidator is implemented by caching leaderboard sources. The
// submit path drops the cached aggregate so the next public read recomputes
// instead of serving a pre-submission snapshot for the rest of the TTL.
type LeaderboardInvalidator interface {
	Invalidate(ctx context.Context)
}

// AttemptService is the attempt lifecycle and scoring engine.
//
// The question set is always re-fetched from the authoritative repository at
// submission time, never snapshotted at open time: questions added or
// removed mid-attempt change the scored set.
type AttemptService struct {
	quizzes   QuizRepository
	questions QuestionRepository
	attempts  AttemptRepository
	board     LeaderboardSource
	feed      *LeaderboardFeed
	now       func() time.Time
}

// NewAttemptService wires the lifecycle. board may equal attempts when no
// cache sits in front; feed may be nil when no live subscribers exist.
func NewAttemptService(quizzes QuizRepository, questions QuestionRepository, attempts AttemptRepository, board LeaderboardSource, feed *LeaderboardFeed) *AttemptService {
	if board == nil {
		board = attempts
	}
	return &AttemptService{
		quizzes:   quizzes,
		questions: questions,
		attempts:  attempts,
		board:     board,
		feed:      feed,
		now:       time.Now,
	}
}

// NewAttemptServiceWithClock is test-only for deterministic timestamps.
func NewAttemptServiceWithClock(quizzes QuizRepository, questions QuestionRepository, attempts AttemptRepository, board LeaderboardSource, feed *LeaderboardFeed, now func() time.Time) *AttemptService {
	s := NewAttemptService(quizzes, questions, attempts, board, feed)
	s.now = now
	return s
}

// Open inserts a fresh attempt for userID on an active quiz and returns its
// id. Concurrent opens for the same user and quiz are permitted and yield
// independent attempts.
func (s *AttemptService) Open(ctx context.Context, userID, quizID int64) (int64, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return 0, domain.WrapStore(err)
	}
	if !quiz.Active {
		return 0, domain.ErrQuizNotFound
	}

	attemptID, err := s.attempts.CreateAttempt(ctx, userID, quizID, s.now())
	if err != nil {
		return 0, domain.WrapStore(err)
	}
	return attemptID, nil
}

// Submit scores a submission against the live question set and completes the
// attempt. Absent answers count as wrong, never as errors. A second call for
// the same attempt re-runs scoring and overwrites the stored result.
func (s *AttemptService) Submit(ctx context.Context, attemptID, quizID int64, answers domain.AnswerMap) (domain.ScoreReport, error) {
	if attemptID <= 0 {
		return domain.ScoreReport{}, domain.ErrInvalidInput
	}

	questions, err := s.questions.GetQuestions(ctx, quizID)
	if err != nil {
		return domain.ScoreReport{}, domain.WrapStore(err)
	}

	report := scoreSubmission(attemptID, questions, answers)

	if err := s.attempts.CompleteAttempt(ctx, attemptID, report.Score, report.TotalQuestions, s.now()); err != nil {
		// The attempt stays open; the caller must not treat it as completed.
		return domain.ScoreReport{}, domain.WrapStore(err)
	}

	if inv, ok := s.board.(LeaderboardInvalidator); ok {
		inv.Invalidate(ctx)
	}
	s.publishLeaderboard(ctx)
	return report, nil
}

// History lists the caller's completed attempts, most recent first. Open
// attempts never appear.
func (s *AttemptService) History(ctx context.Context, userID int64) ([]domain.AttemptSummary, error) {
	attempts, err := s.attempts.ListCompletedAttempts(ctx, userID)
	if err != nil {
		return nil, domain.WrapStore(err)
	}
	return attempts, nil
}

// Leaderboard returns the top-10 users by average score (total score breaks
// ties). Users without a completed attempt are absent.
func (s *AttemptService) Leaderboard(ctx context.Context) ([]domain.LeaderboardRow, error) {
	rows, err := s.board.Leaderboard(ctx)
	if err != nil {
		return nil, domain.WrapStore(err)
	}
	return rows, nil
}

// publishLeaderboard pushes a fresh snapshot to live subscribers. Feed
// delivery is best effort and never fails a submission.
func (s *AttemptService) publishLeaderboard(ctx context.Context) {
	if s.feed == nil {
		return
	}
	rows, err := s.attempts.Leaderboard(ctx)
	if err != nil {
		return
	}
	s.feed.Publish(rows)
}

// scoreSubmission walks the live question set and tallies the submission.
func scoreSubmission(attemptID int64, questions []domain.Question, answers domain.AnswerMap) domain.ScoreReport {
	report := domain.ScoreReport{
		AttemptID:      attemptID,
		TotalQuestions: len(questions),
		Results:        make([]domain.QuestionResult, 0, len(questions)),
	}

	for _, q := range questions {
		selected, answered := answers[q.ID]
		isCorrect := answered && selected == q.Correct

		awarded := 0
		if isCorrect {
			awarded = q.Points
		}
		report.Score += awarded

		report.Results = append(report.Results, domain.QuestionResult{
			QuestionID:    q.ID,
			Selected:      selected,
			Correct:       q.Correct,
			IsCorrect:     isCorrect,
			PointsAwarded: awarded,
		})
	}
	return report
}
