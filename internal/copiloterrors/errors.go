// Package copiloterrors provides sentinel and custom error types for the engine.
//
// The taxonomy separates client errors (InvalidQueryError), service-level
// failures (IndexEmptyError, UpstreamError) and keeps content-grounded
// "blocked" answers out of the error space entirely: a blocked answer is a
// successful result, not an error.
package copiloterrors

// ErrInvalidQuery represents an invalid query error.
// Use when the caller-supplied query fails boundary validation (empty, over-length).
var ErrInvalidQuery = &InvalidQueryError{}

// InvalidQueryError is a sentinel error for queries rejected before any retrieval work.
type InvalidQueryError struct {
	Message string
}

// NewInvalidQueryError creates a new InvalidQueryError with a custom message.
func NewInvalidQueryError(message string) *InvalidQueryError {
	return &InvalidQueryError{Message: message}
}

// Error implements the error interface.
func (e *InvalidQueryError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "invalid query"
}

// Is implements the error interface for error comparison.
func (e *InvalidQueryError) Is(target error) bool {
	_, ok := target.(*InvalidQueryError)

	return ok
}

// ErrIndexEmpty is the sentinel for an unpopulated index.
// Use when a query arrives before any passages have been indexed; this is a
// service-unavailable condition (misconfiguration), distinct from a blocked answer.
var ErrIndexEmpty = &IndexEmptyError{}

// IndexEmptyError is a sentinel error for queries against an empty index.
type IndexEmptyError struct {
	Message string
}

// NewIndexEmptyError creates an IndexEmptyError with a custom message.
func NewIndexEmptyError(message string) *IndexEmptyError {
	return &IndexEmptyError{Message: message}
}

// Error implements the error interface.
func (e *IndexEmptyError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "no passages indexed"
}

// Is implements the error interface for error comparison.
func (e *IndexEmptyError) Is(target error) bool {
	_, ok := target.(*IndexEmptyError)

	return ok
}

// ErrEmbeddingUnavailable is the sentinel for embedding backend failures.
// The upstream model call failed or timed out; retryable by the caller.
var ErrEmbeddingUnavailable = &EmbeddingUnavailableError{}

// EmbeddingUnavailableError is a sentinel error for embedding backend failures or timeouts.
type EmbeddingUnavailableError struct {
	Message string
}

// NewEmbeddingUnavailableError creates an EmbeddingUnavailableError with a custom message.
func NewEmbeddingUnavailableError(message string) *EmbeddingUnavailableError {
	return &EmbeddingUnavailableError{Message: message}
}

// Error implements the error interface.
func (e *EmbeddingUnavailableError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "embedding backend unavailable"
}

// Is implements the error interface for error comparison.
func (e *EmbeddingUnavailableError) Is(target error) bool {
	_, ok := target.(*EmbeddingUnavailableError)

	return ok
}

// ErrGenerationUnavailable is the sentinel for generation backend failures.
// The upstream model call failed or timed out; retryable by the caller and
// never silently converted into a low-confidence answer.
var ErrGenerationUnavailable = &GenerationUnavailableError{}

// GenerationUnavailableError is a sentinel error for generation backend failures or timeouts.
type GenerationUnavailableError struct {
	Message string
}

// NewGenerationUnavailableError creates a GenerationUnavailableError with a custom message.
func NewGenerationUnavailableError(message string) *GenerationUnavailableError {
	return &GenerationUnavailableError{Message: message}
}

// Error implements the error interface.
func (e *GenerationUnavailableError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "generation backend unavailable"
}

// Is implements the error interface for error comparison.
func (e *GenerationUnavailableError) Is(target error) bool {
	_, ok := target.(*GenerationUnavailableError)

	return ok
}
