package app

import (
	"context"
	"time"

	"quizhub/internal/domain"
)

const (
	defaultQuestionPoints   = 10
	defaultTimeLimitMinutes = 30
)

// CatalogRepository covers the admin-side catalog writes.
type CatalogRepository interface {
	CreateQuiz(ctx context.Context, quiz domain.Quiz) (int64, error)
	DeactivateQuiz(ctx context.Context, quizID int64) error
	CreateQuestion(ctx context.Context, question domain.Question) (int64, error)
	DeleteQuestion(ctx context.Context, questionID int64) error
	CreateCategory(ctx context.Context, category domain.Category) (int64, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// CatalogService serves quiz browsing, the answer-free question projection,
// and the admin catalog operations.
//
// display may be a caching layer; questions is the authoritative repository
// used for the admin full listing so freshly created questions appear
// immediately.
type CatalogService struct {
	quizzes   QuizRepository
	display   QuestionRepository
	questions QuestionRepository
	catalog   CatalogRepository
	now       func() time.Time
}

func NewCatalogService(quizzes QuizRepository, display, questions QuestionRepository, catalog CatalogRepository) *CatalogService {
	return &CatalogService{
		quizzes:   quizzes,
		display:   display,
		questions: questions,
		catalog:   catalog,
		now:       time.Now,
	}
}

// ListActive returns active quizzes, newest first, with denormalized
// category and creator names.
func (s *CatalogService) ListActive(ctx context.Context) ([]domain.QuizSummary, error) {
	quizzes, err := s.quizzes.ListActiveQuizzes(ctx)
	if err != nil {
		return nil, domain.WrapStore(err)
	}
	return quizzes, nil
}

// Get fetches quiz metadata by id.
func (s *CatalogService) Get(ctx context.Context, quizID int64) (domain.QuizSummary, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizSummary{}, domain.WrapStore(err)
	}
	return quiz, nil
}

// QuestionsForDisplay is the answer-leakage boundary: it returns the
// questions of a quiz in id order with the correct label stripped.
func (s *CatalogService) QuestionsForDisplay(ctx context.Context, quizID int64) ([]domain.QuestionView, error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return nil, domain.WrapStore(err)
	}

	questions, err := s.display.GetQuestions(ctx, quizID)
	if err != nil {
		return nil, domain.WrapStore(err)
	}

	views := make([]domain.QuestionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, q.View())
	}
	return views, nil
}

// QuestionsForAdmin returns the full question records, correct labels
// included. Callers must gate this behind an admin check.
func (s *CatalogService) QuestionsForAdmin(ctx context.Context, quizID int64) ([]domain.Question, error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return nil, domain.WrapStore(err)
	}
	questions, err := s.questions.GetQuestions(ctx, quizID)
	if err != nil {
		return nil, domain.WrapStore(err)
	}
	return questions, nil
}

// CreateQuiz inserts an active quiz owned by createdBy. The advisory time
// limit defaults to 30 minutes.
func (s *CatalogService) CreateQuiz(ctx context.Context, createdBy int64, title, description string, categoryID int64, timeLimitMinutes int) (int64, error) {
	if title == "" || description == "" {
		return 0, domain.ErrInvalidInput
	}
	if timeLimitMinutes <= 0 {
		timeLimitMinutes = defaultTimeLimitMinutes
	}

	id, err := s.catalog.CreateQuiz(ctx, domain.Quiz{
		Title:            title,
		Description:      description,
		CategoryID:       categoryID,
		TimeLimitMinutes: timeLimitMinutes,
		Active:           true,
		CreatedBy:        createdBy,
		CreatedAt:        s.now(),
	})
	if err != nil {
		return 0, domain.WrapStore(err)
	}
	return id, nil
}

// DeactivateQuiz soft-deletes a quiz by flipping its active flag. The row
// and its attempts remain.
func (s *CatalogService) DeactivateQuiz(ctx context.Context, quizID int64) error {
	if err := s.catalog.DeactivateQuiz(ctx, quizID); err != nil {
		return domain.WrapStore(err)
	}
	return nil
}

// CreateQuestion inserts a question. All four options and a valid A-D
// correct label are required; points defaults to 10.
func (s *CatalogService) CreateQuestion(ctx context.Context, quizID int64, text, optionA, optionB, optionC, optionD, correct string, points int) (int64, error) {
	if quizID <= 0 || text == "" || optionA == "" || optionB == "" || optionC == "" || optionD == "" {
		return 0, domain.ErrInvalidInput
	}
	label, err := domain.ParseOptionLabel(correct)
	if err != nil {
		return 0, domain.ErrInvalidInput
	}
	if points <= 0 {
		points = defaultQuestionPoints
	}
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return 0, domain.WrapStore(err)
	}

	id, err := s.catalog.CreateQuestion(ctx, domain.Question{
		QuizID:    quizID,
		Text:      text,
		OptionA:   optionA,
		OptionB:   optionB,
		OptionC:   optionC,
		OptionD:   optionD,
		Correct:   label,
		Points:    points,
		CreatedAt: s.now(),
	})
	if err != nil {
		return 0, domain.WrapStore(err)
	}
	return id, nil
}

// DeleteQuestion removes a question outright. Questions are the one record
// the catalog hard-deletes.
func (s *CatalogService) DeleteQuestion(ctx context.Context, questionID int64) error {
	if err := s.catalog.DeleteQuestion(ctx, questionID); err != nil {
		return domain.WrapStore(err)
	}
	return nil
}

// CreateCategory inserts a category; only the name is required.
func (s *CatalogService) CreateCategory(ctx context.Context, name, description string) (int64, error) {
	if name == "" {
		return 0, domain.ErrInvalidInput
	}
	id, err := s.catalog.CreateCategory(ctx, domain.Category{
		Name:        name,
		Description: description,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return 0, domain.WrapStore(err)
	}
	return id, nil
}

// ListCategories returns all categories sorted by name.
func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.catalog.ListCategories(ctx)
	if err != nil {
		return nil, domain.WrapStore(err)
	}
	return categories, nil
}
