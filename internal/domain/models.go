package domain

import (
	"strings"
	"time"
)

// Role distinguishes regular quiz-takers from administrators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// OptionLabel is one of the four answer slots of a question.
type OptionLabel string

const (
	OptionA OptionLabel = "A"
	OptionB OptionLabel = "B"
	OptionC OptionLabel = "C"
	OptionD OptionLabel = "D"
)

// ParseOptionLabel validates that s names one of the four slots.
func ParseOptionLabel(s string) (OptionLabel, error) {
	switch label := NormalizeOption(s); label {
	case OptionA, OptionB, OptionC, OptionD:
		return label, nil
	default:
		return "", ErrInvalidInput
	}
}

// NormalizeOption canonicalizes a submitted option. Values outside A-D are
// kept as-is; they can never match a correct label, so they score as wrong
// rather than erroring.
func NormalizeOption(s string) OptionLabel {
	return OptionLabel(strings.ToUpper(strings.TrimSpace(s)))
}

// AnswerMap holds a submission keyed by question id. Keys are normalized to
// int64 at the transport boundary, so the core never sees the string/number
// ambiguity of JSON object keys.
type AnswerMap map[int64]OptionLabel

// User is an account row. PasswordHash is a bcrypt digest.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Category is pure reference data for grouping quizzes.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Quiz is the stored record. Quizzes are never hard-deleted; deactivation
// flips Active off.
type Quiz struct {
	ID               int64
	Title            string
	Description      string
	CategoryID       int64
	TimeLimitMinutes int
	Active           bool
	CreatedBy        int64
	CreatedAt        time.Time
}

// QuizSummary is a quiz joined with its category and creator names for
// listing.
type QuizSummary struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	CategoryID       int64     `json:"category_id"`
	CategoryName     string    `json:"category_name"`
	TimeLimitMinutes int       `json:"time_limit"`
	Active           bool      `json:"is_active"`
	CreatedBy        int64     `json:"created_by"`
	CreatedByName    string    `json:"created_by_name"`
	CreatedAt        time.Time `json:"created_at"`
}

// Question is the full record including the correct label. Only the scoring
// path and admin-only listings may see it; quiz-takers get a View.
type Question struct {
	ID        int64
	QuizID    int64
	Text      string
	OptionA   string
	OptionB   string
	OptionC   string
	OptionD   string
	Correct   OptionLabel
	Points    int
	CreatedAt time.Time
}

// QuestionView is the answer-free projection served to quiz-takers. It must
// never grow a correct-label field.
type QuestionView struct {
	ID      int64  `json:"id"`
	Text    string `json:"question_text"`
	OptionA string `json:"option_a"`
	OptionB string `json:"option_b"`
	OptionC string `json:"option_c"`
	OptionD string `json:"option_d"`
	Points  int    `json:"points"`
}

// View strips the correct label.
func (q Question) View() QuestionView {
	return QuestionView{
		ID:      q.ID,
		Text:    q.Text,
		OptionA: q.OptionA,
		OptionB: q.OptionB,
		OptionC: q.OptionC,
		OptionD: q.OptionD,
		Points:  q.Points,
	}
}

// Attempt is one user's run through a quiz. Completion fields stay nil while
// the attempt is open; the row transitions to completed exactly once a
// submission is scored (a re-submission overwrites the stored result).
type Attempt struct {
	ID             int64
	UserID         int64
	QuizID         int64
	StartedAt      time.Time
	CompletedAt    *time.Time
	Score          *int
	TotalQuestions *int
}

// Completed reports whether the attempt has been scored.
func (a Attempt) Completed() bool {
	return a.CompletedAt != nil
}

// AttemptSummary is a completed attempt joined with its quiz title.
type AttemptSummary struct {
	ID             int64     `json:"id"`
	QuizID         int64     `json:"quiz_id"`
	QuizTitle      string    `json:"quiz_title"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
}

// QuestionResult is the per-question line of a score report. Selected is
// empty when the submission carried no answer for the question.
type QuestionResult struct {
	QuestionID    int64       `json:"question_id"`
	Selected      OptionLabel `json:"selected_option"`
	Correct       OptionLabel `json:"correct_option"`
	IsCorrect     bool        `json:"is_correct"`
	PointsAwarded int         `json:"points_awarded"`
}

// ScoreReport is the outcome of scoring a submission. TotalQuestions counts
// the live question set at submission time, not the submitted answers.
type ScoreReport struct {
	AttemptID      int64            `json:"attempt_id"`
	Score          int              `json:"score"`
	TotalQuestions int              `json:"total_questions"`
	Results        []QuestionResult `json:"results"`
}

// LeaderboardRow aggregates one user's completed attempts.
type LeaderboardRow struct {
	UserID        int64   `json:"user_id"`
	Username      string  `json:"username"`
	TotalAttempts int     `json:"total_attempts"`
	AvgScore      float64 `json:"avg_score"`
	TotalScore    int     `json:"total_score"`
}

// Leaderboard is a snapshot pushed to live subscribers.
type Leaderboard struct {
	Rows      []LeaderboardRow `json:"rows"`
	UpdatedAt time.Time        `json:"updatedAt"`
}
