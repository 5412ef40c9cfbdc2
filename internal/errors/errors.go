package errors

import "fmt"

// IngestError is the structured error type used across the ingestion core.
// It carries enough context for logging, retry decisions, and the
// per-item error reporting required by ProcessingJob/BatchResult.
type IngestError struct {
	// Code is the unique error code (e.g., "ERR_301_LLM_TRANSPORT").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *IngestError) Unwrap() error {
	return e.Cause
}

// Is enables errors.Is() to match by code.
func (e *IngestError) Is(target error) bool {
	if t, ok := target.(*IngestError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error and returns it for chaining.
func (e *IngestError) WithDetail(key, value string) *IngestError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new IngestError with category/severity/retryable derived from code.
func New(code string, message string, cause error) *IngestError {
	return &IngestError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an IngestError from an existing error, reusing its message.
func Wrap(code string, err error) *IngestError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

func ValidationError(message string, cause error) *IngestError {
	return New(ErrCodeInvalidInput, message, cause)
}

func IOError(message string, cause error) *IngestError {
	return New(ErrCodeFileNotFound, message, cause)
}

func InternalError(message string, cause error) *IngestError {
	return New(ErrCodeInternal, message, cause)
}

func NotFoundError(message string, cause error) *IngestError {
	return New(ErrCodeNotFound, message, cause)
}

func LLMTransportError(message string, cause error) *IngestError {
	return New(ErrCodeLLMTransport, message, cause)
}

func LLMRateLimitedError(message string, cause error) *IngestError {
	return New(ErrCodeLLMRateLimited, message, cause)
}

func LLMParseError(message string, cause error) *IngestError {
	return New(ErrCodeLLMParse, message, cause)
}

func ExtractorUnsupportedError(message string, cause error) *IngestError {
	return New(ErrCodeExtractorUnsupported, message, cause)
}

func ResourceLimitError(message string, cause error) *IngestError {
	return New(ErrCodeResourceLimit, message, cause)
}

func CancellationError(message string, cause error) *IngestError {
	return New(ErrCodeCancellation, message, cause)
}

func TimeoutError(message string, cause error) *IngestError {
	return New(ErrCodeTimeout, message, cause)
}

// IsRetryable reports whether err is an IngestError with Retryable set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ie, ok := err.(*IngestError); ok {
		return ie.Retryable
	}
	return false
}

// IsFatal reports whether err is an IngestError with fatal severity.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ie, ok := err.(*IngestError); ok {
		return ie.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code, or "" if err is not an IngestError.
func GetCode(err error) string {
	if ie, ok := err.(*IngestError); ok {
		return ie.Code
	}
	return ""
}
