package domain

import "errors"

// Sentinel errors for the run outcome taxonomy.
var (
	ErrInvalidQuery    = errors.New("invalid query")
	ErrInvalidInput    = errors.New("invalid input")
	ErrSinkUnavailable = errors.New("sink unavailable")
	ErrScoringFailure  = errors.New("scoring failure")
	ErrWriteFailure    = errors.New("write failure")
	ErrSourceFailure   = errors.New("source failure")
	// ErrConnection is always wrapped together with ErrSinkUnavailable or ErrWriteFailure.
	ErrConnection = errors.New("connection error")
)

// Process exit codes.
const (
	ExitCompleted       = 0
	ExitFailed          = 1
	ExitInvalidQuery    = 2
	ExitSinkUnavailable = 3
)

// ExitCode maps a run error onto a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitCompleted
	case errors.Is(err, ErrInvalidQuery), errors.Is(err, ErrInvalidInput):
		return ExitInvalidQuery
	case errors.Is(err, ErrSinkUnavailable):
		return ExitSinkUnavailable
	default:
		return ExitFailed
	}
}
