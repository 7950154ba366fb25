package services

import "errors"

// Task access errors. Handlers map each one to a single HTTP status.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrTaskNotFound    = errors.New("task not found")
	ErrForbidden       = errors.New("not authorized to access this task")
	ErrValidation      = errors.New("validation failed")
)

// Account errors.
var (
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)
