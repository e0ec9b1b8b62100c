package util

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrQuizNotFound      = errors.New("quiz not found")
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrEmailRegistered   = errors.New("email already registered")
	ErrNameTaken         = errors.New("name already in use")
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidInput      = errors.New("invalid input")

	ErrQuizInactive     = errors.New("quiz is not currently active")
	ErrQuizUnavailable  = errors.New("quiz is not currently available")
	ErrQuizLocked       = fmt.Errorf("%w: quiz is locked", ErrQuizUnavailable)
	ErrQuizNotStarted   = fmt.Errorf("%w: quiz has not started yet", ErrQuizUnavailable)
	ErrQuizExpired      = fmt.Errorf("%w: quiz has expired", ErrQuizUnavailable)
	ErrQuizSchedule     = fmt.Errorf("%w: invalid schedule", ErrQuizUnavailable)
	ErrNoQuestions      = errors.New("this quiz has no questions yet")
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	ErrMissingAnswers   = errors.New("missing answers")
	ErrNotInProgress    = errors.New("attempt is not in progress")
	ErrNotCompleted     = errors.New("results are only available for completed attempts")

	ErrDatabase = errors.New("database error")
)
