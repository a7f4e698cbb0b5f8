package core

// Request failures fall into three categories the HTTP layer maps to a
// status code: invalid input (400), a uniqueness or referential conflict
// (400) and a missing record (404). Anything else is an internal error.
// Messages are human-readable and returned to the client verbatim.

type (
	// ValidationError reports missing or malformed required input.
	ValidationError struct {
		Message string
	}

	// ConflictError reports a uniqueness or referential-dependency violation.
	ConflictError struct {
		Message string
	}

	// NotFoundError reports that no record matched the request.
	NotFoundError struct {
		Message string
	}
)

func (e *ValidationError) Error() string { return e.Message }
func (e *ConflictError) Error() string   { return e.Message }
func (e *NotFoundError) Error() string   { return e.Message }

// Validation builds a ValidationError with the given message.
func Validation(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// Conflict builds a ConflictError with the given message.
func Conflict(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// NotFound builds a NotFoundError with the given message.
func NotFound(message string) *NotFoundError {
	return &NotFoundError{Message: message}
}
