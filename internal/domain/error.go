package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotAuthorized   = errors.New("not authorized for this content")

	// Job lifecycle errors
	ErrSubmissionRejected = errors.New("job submission rejected")
	ErrStatusQuery        = errors.New("job status query failed")
	ErrMissingResult      = errors.New("job completed but no result available")
	ErrJobFailed          = errors.New("job failed")
	ErrPollTimeout        = errors.New("polling timed out after 5 minutes")
	ErrJobCancelled       = errors.New("polling cancelled")

	// Session continuation
	ErrNoSession = errors.New("no continuable session found")

	// Infra errors
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrLocked             = errors.New("resource is locked")
)
