package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrConflict              = errors.New("conflict")
	ErrAlreadyRunning        = errors.New("already running")
	ErrNotRunning            = errors.New("not running")
	ErrMatchNotFinishable    = errors.New("match cannot be finished")
)
