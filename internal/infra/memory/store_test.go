package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizhub/internal/domain"
)

func TestStoreQuestionOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	userID, _ := store.CreateUser(ctx, domain.User{Username: "u", Email: "u@example.com", PasswordHash: "x", Role: domain.RoleUser})
	quizID, _ := store.CreateQuiz(ctx, domain.Quiz{Title: "Q", Description: "d", Active: true, CreatedBy: userID})

	for _, text := range []string{"first", "second", "third"} {
		if _, err := store.CreateQuestion(ctx, domain.Question{QuizID: quizID, Text: text, OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", Correct: domain.OptionA, Points: 10}); err != nil {
			t.Fatalf("create question: %v", err)
		}
	}

	questions, err := store.GetQuestions(ctx, quizID)
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(questions))
	}
	for i := 1; i < len(questions); i++ {
		if questions[i-1].ID >= questions[i].ID {
			t.Fatalf("questions not in insertion order: %+v", questions)
		}
	}
}

func TestStoreAttemptReferencesMustExist(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	userID, _ := store.CreateUser(ctx, domain.User{Username: "u", Email: "u@example.com", PasswordHash: "x", Role: domain.RoleUser})
	quizID, _ := store.CreateQuiz(ctx, domain.Quiz{Title: "Q", Description: "d", Active: true, CreatedBy: userID})

	if _, err := store.CreateAttempt(ctx, 999, quizID, time.Now()); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
	if _, err := store.CreateAttempt(ctx, userID, 999, time.Now()); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
	if err := store.CompleteAttempt(ctx, 999, 1, 1, time.Now()); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected attempt not found, got %v", err)
	}
}

func TestStoreOpenAttemptStaysUncounted(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	userID, _ := store.CreateUser(ctx, domain.User{Username: "u", Email: "u@example.com", PasswordHash: "x", Role: domain.RoleUser})
	quizID, _ := store.CreateQuiz(ctx, domain.Quiz{Title: "Q", Description: "d", Active: true, CreatedBy: userID})
	attemptID, _ := store.CreateAttempt(ctx, userID, quizID, time.Now())

	attempt, err := store.GetAttempt(ctx, attemptID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if attempt.Completed() || attempt.Score != nil || attempt.TotalQuestions != nil {
		t.Fatalf("open attempt must have null completion fields: %+v", attempt)
	}

	history, _ := store.ListCompletedAttempts(ctx, userID)
	if len(history) != 0 {
		t.Fatalf("open attempt must not appear in history")
	}
	rows, _ := store.Leaderboard(ctx)
	if len(rows) != 0 {
		t.Fatalf("open attempt must not appear on the leaderboard")
	}
}

func TestStoreDeleteQuestionRemovesIt(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	userID, _ := store.CreateUser(ctx, domain.User{Username: "u", Email: "u@example.com", PasswordHash: "x", Role: domain.RoleUser})
	quizID, _ := store.CreateQuiz(ctx, domain.Quiz{Title: "Q", Description: "d", Active: true, CreatedBy: userID})
	questionID, _ := store.CreateQuestion(ctx, domain.Question{QuizID: quizID, Text: "t", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", Correct: domain.OptionA, Points: 10})

	if err := store.DeleteQuestion(ctx, questionID); err != nil {
		t.Fatalf("delete question: %v", err)
	}
	if err := store.DeleteQuestion(ctx, questionID); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found on second delete, got %v", err)
	}
	questions, _ := store.GetQuestions(ctx, quizID)
	if len(questions) != 0 {
		t.Fatalf("question still present after delete")
	}
}
