package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quizhub/internal/domain"
)

// Store is an in-memory implementation of every repository interface, used
// for tests and for running the server without Postgres. Each method takes
// the lock once, mirroring the one-transaction-per-call store contract.
type Store struct {
	mu    sync.RWMutex
	clock func() time.Time

	users      map[int64]domain.User
	categories map[int64]domain.Category
	quizzes    map[int64]domain.Quiz
	questions  map[int64]domain.Question
	attempts   map[int64]domain.Attempt

	userSeq     int64
	categorySeq int64
	quizSeq     int64
	questionSeq int64
	attemptSeq  int64
}

func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock is test-only for deterministic timestamps.
func NewStoreWithClock(clock func() time.Time) *Store {
	return &Store{
		clock:      clock,
		users:      make(map[int64]domain.User),
		categories: make(map[int64]domain.Category),
		quizzes:    make(map[int64]domain.Quiz),
		questions:  make(map[int64]domain.Question),
		attempts:   make(map[int64]domain.Attempt),
	}
}

// --- users ---

func (s *Store) CreateUser(_ context.Context, user domain.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return 0, domain.ErrDuplicateEmail
		}
	}
	s.userSeq++
	user.ID = s.userSeq
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.clock()
	}
	s.users[user.ID] = user
	return user.ID, nil
}

func (s *Store) GetUser(_ context.Context, userID int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

// --- categories ---

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categorySeq++
	category.ID = s.categorySeq
	if category.CreatedAt.IsZero() {
		category.CreatedAt = s.clock()
	}
	s.categories[category.ID] = category
	return category.ID, nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	categories := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

// --- quizzes ---

func (s *Store) CreateQuiz(_ context.Context, quiz domain.Quiz) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizSeq++
	quiz.ID = s.quizSeq
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = s.clock()
	}
	s.quizzes[quiz.ID] = quiz
	return quiz.ID, nil
}

func (s *Store) DeactivateQuiz(_ context.Context, quizID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	quiz.Active = false
	s.quizzes[quizID] = quiz
	return nil
}

func (s *Store) ListActiveQuizzes(_ context.Context) ([]domain.QuizSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summaries := make([]domain.QuizSummary, 0, len(s.quizzes))
	for _, quiz := range s.quizzes {
		if !quiz.Active {
			continue
		}
		summaries = append(summaries, s.summarizeLocked(quiz))
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
		}
		return summaries[i].ID > summaries[j].ID
	})
	return summaries, nil
}

func (s *Store) GetQuiz(_ context.Context, quizID int64) (domain.QuizSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.QuizSummary{}, domain.ErrQuizNotFound
	}
	return s.summarizeLocked(quiz), nil
}

func (s *Store) summarizeLocked(quiz domain.Quiz) domain.QuizSummary {
	summary := domain.QuizSummary{
		ID:               quiz.ID,
		Title:            quiz.Title,
		Description:      quiz.Description,
		CategoryID:       quiz.CategoryID,
		TimeLimitMinutes: quiz.TimeLimitMinutes,
		Active:           quiz.Active,
		CreatedBy:        quiz.CreatedBy,
		CreatedAt:        quiz.CreatedAt,
	}
	if category, ok := s.categories[quiz.CategoryID]; ok {
		summary.CategoryName = category.Name
	}
	if creator, ok := s.users[quiz.CreatedBy]; ok {
		summary.CreatedByName = creator.Username
	}
	return summary
}

// --- questions ---

func (s *Store) CreateQuestion(_ context.Context, question domain.Question) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[question.QuizID]; !ok {
		return 0, domain.ErrQuizNotFound
	}
	s.questionSeq++
	question.ID = s.questionSeq
	if question.CreatedAt.IsZero() {
		question.CreatedAt = s.clock()
	}
	s.questions[question.ID] = question
	return question.ID, nil
}

func (s *Store) DeleteQuestion(_ context.Context, questionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[questionID]; !ok {
		return domain.ErrQuestionNotFound
	}
	delete(s.questions, questionID)
	return nil
}

func (s *Store) GetQuestions(_ context.Context, quizID int64) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	questions := make([]domain.Question, 0)
	for _, q := range s.questions {
		if q.QuizID == quizID {
			questions = append(questions, q)
		}
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })
	return questions, nil
}

// LoadQuestions lets the store sit behind the question caches.
func (s *Store) LoadQuestions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	return s.GetQuestions(ctx, quizID)
}

// --- attempts ---

func (s *Store) CreateAttempt(_ context.Context, userID, quizID int64, startedAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return 0, domain.ErrUserNotFound
	}
	if _, ok := s.quizzes[quizID]; !ok {
		return 0, domain.ErrQuizNotFound
	}
	s.attemptSeq++
	s.attempts[s.attemptSeq] = domain.Attempt{
		ID:        s.attemptSeq,
		UserID:    userID,
		QuizID:    quizID,
		StartedAt: startedAt,
	}
	return s.attemptSeq, nil
}

// CompleteAttempt overwrites the stored result unconditionally; a repeated
// submission rewrites score and completion time.
func (s *Store) CompleteAttempt(_ context.Context, attemptID int64, score, totalQuestions int, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	attempt.Score = &score
	attempt.TotalQuestions = &totalQuestions
	attempt.CompletedAt = &completedAt
	s.attempts[attemptID] = attempt
	return nil
}

func (s *Store) GetAttempt(_ context.Context, attemptID int64) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

func (s *Store) ListCompletedAttempts(_ context.Context, userID int64) ([]domain.AttemptSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summaries := make([]domain.AttemptSummary, 0)
	for _, attempt := range s.attempts {
		if attempt.UserID != userID || !attempt.Completed() {
			continue
		}
		summary := domain.AttemptSummary{
			ID:             attempt.ID,
			QuizID:         attempt.QuizID,
			Score:          *attempt.Score,
			TotalQuestions: *attempt.TotalQuestions,
			StartedAt:      attempt.StartedAt,
			CompletedAt:    *attempt.CompletedAt,
		}
		if quiz, ok := s.quizzes[attempt.QuizID]; ok {
			summary.QuizTitle = quiz.Title
		}
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CompletedAt.Equal(summaries[j].CompletedAt) {
			return summaries[i].CompletedAt.After(summaries[j].CompletedAt)
		}
		return summaries[i].ID > summaries[j].ID
	})
	return summaries, nil
}

// Leaderboard aggregates completed attempts per user: average score
// descending, total score breaking ties, at most ten rows.
func (s *Store) Leaderboard(_ context.Context) ([]domain.LeaderboardRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type agg struct {
		count int
		total int
	}
	byUser := make(map[int64]*agg)
	for _, attempt := range s.attempts {
		if !attempt.Completed() {
			continue
		}
		a, ok := byUser[attempt.UserID]
		if !ok {
			a = &agg{}
			byUser[attempt.UserID] = a
		}
		a.count++
		a.total += *attempt.Score
	}

	rows := make([]domain.LeaderboardRow, 0, len(byUser))
	for userID, a := range byUser {
		row := domain.LeaderboardRow{
			UserID:        userID,
			TotalAttempts: a.count,
			AvgScore:      float64(a.total) / float64(a.count),
			TotalScore:    a.total,
		}
		if user, ok := s.users[userID]; ok {
			row.Username = user.Username
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AvgScore != rows[j].AvgScore {
			return rows[i].AvgScore > rows[j].AvgScore
		}
		if rows[i].TotalScore != rows[j].TotalScore {
			return rows[i].TotalScore > rows[j].TotalScore
		}
		return rows[i].UserID < rows[j].UserID
	})
	if len(rows) > 10 {
		rows = rows[:10]
	}
	return rows, nil
}
