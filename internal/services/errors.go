package services

// Typed service errors; handlers map them onto HTTP statuses in
// handleServiceError.

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

// LockedError rejects navigation into a lesson whose prerequisites are not
// completed. It is user-facing but never fatal.
type LockedError struct{ Message string }

func (e *LockedError) Error() string { return e.Message }

// MediaUnavailableError is terminal for one lesson view: no playback URL
// could be resolved. No retry loop.
type MediaUnavailableError struct{ Message string }

func (e *MediaUnavailableError) Error() string { return e.Message }
