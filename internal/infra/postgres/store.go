package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quizhub/internal/domain"
)

// Store is the relational storage gateway backed by bun. Every write runs
// as a single statement or transaction; there are no partial writes.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Username     string    `bun:"username"`
	Email        string    `bun:"email"`
	PasswordHash string    `bun:"password_hash"`
	Role         string    `bun:"role"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:now()"`
}

type categoryRow struct {
	bun.BaseModel `bun:"table:categories,alias:c"`

	ID          int64     `bun:"id,pk,autoincrement"`
	Name        string    `bun:"name"`
	Description string    `bun:"description"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:now()"`
}

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:q"`

	ID          int64     `bun:"id,pk,autoincrement"`
	Title       string    `bun:"title"`
	Description string    `bun:"description"`
	CategoryID  int64     `bun:"category_id,nullzero"`
	TimeLimit   int       `bun:"time_limit"`
	IsActive    bool      `bun:"is_active"`
	CreatedBy   int64     `bun:"created_by,nullzero"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:now()"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:qn"`

	ID        int64     `bun:"id,pk,autoincrement"`
	QuizID    int64     `bun:"quiz_id"`
	Text      string    `bun:"question_text"`
	OptionA   string    `bun:"option_a"`
	OptionB   string    `bun:"option_b"`
	OptionC   string    `bun:"option_c"`
	OptionD   string    `bun:"option_d"`
	Correct   string    `bun:"correct_option"`
	Points    int       `bun:"points"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:now()"`
}

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	ID             int64      `bun:"id,pk,autoincrement"`
	UserID         int64      `bun:"user_id"`
	QuizID         int64      `bun:"quiz_id"`
	StartedAt      time.Time  `bun:"started_at"`
	CompletedAt    *time.Time `bun:"completed_at"`
	Score          *int       `bun:"score"`
	TotalQuestions *int       `bun:"total_questions"`
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, user domain.User) (int64, error) {
	row := userRow{
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Role:         string(user.Role),
		CreatedAt:    user.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return row.ID, nil
}

func (s *Store) GetUser(ctx context.Context, userID int64) (domain.User, error) {
	var row userRow
	err := s.db.NewSelect().Model(&row).Where("u.id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var row userRow
	err := s.db.NewSelect().Model(&row).Where("u.email = ?", email).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("select user by email: %w", err)
	}
	return row.toDomain(), nil
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         domain.Role(r.Role),
		CreatedAt:    r.CreatedAt,
	}
}

// --- categories ---

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (int64, error) {
	row := categoryRow{
		Name:        category.Name,
		Description: category.Description,
		CreatedAt:   category.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	return row.ID, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var rows []categoryRow
	if err := s.db.NewSelect().Model(&rows).Order("name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	categories := make([]domain.Category, 0, len(rows))
	for _, r := range rows {
		categories = append(categories, domain.Category{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			CreatedAt:   r.CreatedAt,
		})
	}
	return categories, nil
}

// --- quizzes ---

func (s *Store) CreateQuiz(ctx context.Context, quiz domain.Quiz) (int64, error) {
	row := quizRow{
		Title:       quiz.Title,
		Description: quiz.Description,
		CategoryID:  quiz.CategoryID,
		TimeLimit:   quiz.TimeLimitMinutes,
		IsActive:    quiz.Active,
		CreatedBy:   quiz.CreatedBy,
		CreatedAt:   quiz.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
		return 0, fmt.Errorf("insert quiz: %w", err)
	}
	return row.ID, nil
}

// DeactivateQuiz flips the active flag; the row is never removed.
func (s *Store) DeactivateQuiz(ctx context.Context, quizID int64) error {
	res, err := s.db.NewUpdate().
		Model((*quizRow)(nil)).
		Set("is_active = FALSE").
		Where("id = ?", quizID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("deactivate quiz: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

const quizSummaryQuery = `
SELECT q.id, q.title, q.description, q.time_limit,
       COALESCE(q.category_id, 0) AS category_id, COALESCE(c.name, '') AS category_name,
       COALESCE(q.created_by, 0) AS created_by, COALESCE(u.username, '') AS created_by_name,
       q.is_active, q.created_at
FROM quizzes q
LEFT JOIN categories c ON q.category_id = c.id
LEFT JOIN users u ON q.created_by = u.id
`

func (s *Store) ListActiveQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	rows, err := s.db.QueryContext(ctx, quizSummaryQuery+`WHERE q.is_active ORDER BY q.created_at DESC, q.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("select quizzes: %w", err)
	}
	defer rows.Close()

	summaries := make([]domain.QuizSummary, 0)
	for rows.Next() {
		summary, err := scanQuizSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select quizzes: %w", err)
	}
	return summaries, nil
}

func (s *Store) GetQuiz(ctx context.Context, quizID int64) (domain.QuizSummary, error) {
	rows, err := s.db.QueryContext(ctx, quizSummaryQuery+`WHERE q.id = ?`, quizID)
	if err != nil {
		return domain.QuizSummary{}, fmt.Errorf("select quiz: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.QuizSummary{}, fmt.Errorf("select quiz: %w", err)
		}
		return domain.QuizSummary{}, domain.ErrQuizNotFound
	}
	return scanQuizSummary(rows)
}

func scanQuizSummary(rows *sql.Rows) (domain.QuizSummary, error) {
	var summary domain.QuizSummary
	if err := rows.Scan(
		&summary.ID, &summary.Title, &summary.Description, &summary.TimeLimitMinutes,
		&summary.CategoryID, &summary.CategoryName,
		&summary.CreatedBy, &summary.CreatedByName,
		&summary.Active, &summary.CreatedAt,
	); err != nil {
		return domain.QuizSummary{}, fmt.Errorf("scan quiz: %w", err)
	}
	return summary, nil
}

// --- questions ---

func (s *Store) CreateQuestion(ctx context.Context, question domain.Question) (int64, error) {
	row := questionRow{
		QuizID:    question.QuizID,
		Text:      question.Text,
		OptionA:   question.OptionA,
		OptionB:   question.OptionB,
		OptionC:   question.OptionC,
		OptionD:   question.OptionD,
		Correct:   string(question.Correct),
		Points:    question.Points,
		CreatedAt: question.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
		return 0, fmt.Errorf("insert question: %w", err)
	}
	return row.ID, nil
}

func (s *Store) DeleteQuestion(ctx context.Context, questionID int64) error {
	res, err := s.db.NewDelete().
		Model((*questionRow)(nil)).
		Where("id = ?", questionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

// GetQuestions returns the full records in id order (insertion order).
func (s *Store) GetQuestions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	var rows []questionRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("qn.quiz_id = ?", quizID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select questions: %w", err)
	}

	questions := make([]domain.Question, 0, len(rows))
	for _, r := range rows {
		questions = append(questions, domain.Question{
			ID:        r.ID,
			QuizID:    r.QuizID,
			Text:      r.Text,
			OptionA:   r.OptionA,
			OptionB:   r.OptionB,
			OptionC:   r.OptionC,
			OptionD:   r.OptionD,
			Correct:   domain.OptionLabel(r.Correct),
			Points:    r.Points,
			CreatedAt: r.CreatedAt,
		})
	}
	return questions, nil
}

// --- attempts ---

func (s *Store) CreateAttempt(ctx context.Context, userID, quizID int64, startedAt time.Time) (int64, error) {
	row := attemptRow{
		UserID:    userID,
		QuizID:    quizID,
		StartedAt: startedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
		return 0, fmt.Errorf("insert attempt: %w", err)
	}
	return row.ID, nil
}

// CompleteAttempt writes score, total, and completion time in one update.
// A repeated submission overwrites the previous result.
func (s *Store) CompleteAttempt(ctx context.Context, attemptID int64, score, totalQuestions int, completedAt time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*attemptRow)(nil)).
		Set("score = ?", score).
		Set("total_questions = ?", totalQuestions).
		Set("completed_at = ?", completedAt).
		Where("id = ?", attemptID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func (s *Store) ListCompletedAttempts(ctx context.Context, userID int64) ([]domain.AttemptSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT a.id, a.quiz_id, COALESCE(q.title, '') AS quiz_title,
       a.score, a.total_questions, a.started_at, a.completed_at
FROM attempts a
LEFT JOIN quizzes q ON a.quiz_id = q.id
WHERE a.user_id = ? AND a.completed_at IS NOT NULL
ORDER BY a.completed_at DESC, a.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("select attempts: %w", err)
	}
	defer rows.Close()

	summaries := make([]domain.AttemptSummary, 0)
	for rows.Next() {
		var summary domain.AttemptSummary
		if err := rows.Scan(
			&summary.ID, &summary.QuizID, &summary.QuizTitle,
			&summary.Score, &summary.TotalQuestions,
			&summary.StartedAt, &summary.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select attempts: %w", err)
	}
	return summaries, nil
}

// Leaderboard aggregates completed attempts per user. Inner join: users
// without a completed attempt never appear.
func (s *Store) Leaderboard(ctx context.Context) ([]domain.LeaderboardRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT u.id, u.username,
       COUNT(a.id) AS total_attempts,
       AVG(a.score) AS avg_score,
       SUM(a.score) AS total_score
FROM users u
INNER JOIN attempts a ON u.id = a.user_id
WHERE a.completed_at IS NOT NULL
GROUP BY u.id, u.username
ORDER BY avg_score DESC, total_score DESC
LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("select leaderboard: %w", err)
	}
	defer rows.Close()

	board := make([]domain.LeaderboardRow, 0, 10)
	for rows.Next() {
		var row domain.LeaderboardRow
		if err := rows.Scan(&row.UserID, &row.Username, &row.TotalAttempts, &row.AvgScore, &row.TotalScore); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		board = append(board, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select leaderboard: %w", err)
	}
	return board, nil
}
