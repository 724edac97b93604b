// Package types defines core data types and enums shared across the
// LaTeX chunking engine.
package types

// ChunkContext describes what kind of document element a chunk came from.
type ChunkContext string

const (
	ContextTitle     ChunkContext = "title"
	ContextSection   ChunkContext = "section"
	ContextParagraph ChunkContext = "paragraph"
	ContextCaption   ChunkContext = "caption"
	ContextAbstract  ChunkContext = "abstract"
	// ContextProtected marks a chunk that only carries a preserved element
	// and must never be sent for translation.
	ContextProtected ChunkContext = "protected"
)

// Translatable reports whether chunks with this context should be handed
// to the translation dispatcher.
func (c ChunkContext) Translatable() bool {
	return c != ContextProtected
}

// ValidationResult holds the outcome of a structural comparison between a
// source chunk and its candidate translation.
type ValidationResult struct {
	Passed   bool     `json:"passed"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// ErrorCode identifies a failure class.
type ErrorCode string

const (
	ErrUnbalanced           ErrorCode = "UNBALANCED_DELIMITER"
	ErrPlaceholderCollision ErrorCode = "PLACEHOLDER_COLLISION"
	ErrFileNotFound         ErrorCode = "FILE_NOT_FOUND"
	ErrInvalidInput         ErrorCode = "INVALID_INPUT"
	ErrEncoding             ErrorCode = "ENCODING_ERROR"
	ErrNetwork              ErrorCode = "NETWORK_ERROR"
	ErrAPICall              ErrorCode = "API_CALL_ERROR"
	ErrAPIRateLimit         ErrorCode = "API_RATE_LIMIT"
	ErrTranslation          ErrorCode = "TRANSLATION_ERROR"
	ErrConfig               ErrorCode = "CONFIG_ERROR"
	ErrInternal             ErrorCode = "INTERNAL_ERROR"
)

// AppError is the application error type carrying a code, a message, and
// optional details and cause.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}
