package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuizNotFound indicates the quiz does not exist or is inactive.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a question id resolves to nothing.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAttemptNotFound indicates the attempt row does not exist.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrUserNotFound indicates the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrCategoryNotFound indicates the category does not exist.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrInvalidInput indicates a missing required field or malformed value.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized indicates the caller is not authenticated.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrStoreFailure indicates the underlying store did not complete a
	// read or write. Raw storage errors never cross a service boundary.
	ErrStoreFailure = errors.New("storage failure")
)

// notFoundErrs are the sentinels services let pass through unwrapped.
var notFoundErrs = []error{
	ErrQuizNotFound,
	ErrQuestionNotFound,
	ErrAttemptNotFound,
	ErrUserNotFound,
	ErrCategoryNotFound,
	ErrDuplicateEmail,
}

// WrapStore converts an unexpected storage error into ErrStoreFailure while
// letting domain sentinels through untouched.
func WrapStore(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range notFoundErrs {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrStoreFailure, err)
}
