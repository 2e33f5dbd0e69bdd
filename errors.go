package rawpreview

// ErrorCode classifies every way an extraction can fail. The set is closed;
// callers can switch on it without a default surprise.
type ErrorCode string

const (
	CodeSuccess             ErrorCode = "SUCCESS"
	CodeFileNotFound        ErrorCode = "FILE_NOT_FOUND"
	CodeFileAccessDenied    ErrorCode = "FILE_ACCESS_DENIED"
	CodeInvalidFormat       ErrorCode = "INVALID_FORMAT"
	CodeCorruptedFile       ErrorCode = "CORRUPTED_FILE"
	CodeTimeoutExceeded     ErrorCode = "TIMEOUT_EXCEEDED"
	CodeMemoryLimitExceeded ErrorCode = "MEMORY_LIMIT_EXCEEDED"
	CodeNoPreviewsFound     ErrorCode = "NO_PREVIEWS_FOUND"
	CodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	CodeUnknownError        ErrorCode = "UNKNOWN_ERROR"
)

// Retryable reports whether the same call could succeed with a larger
// budget. Only the two governor aborts qualify.
func (c ErrorCode) Retryable() bool {
	return c == CodeTimeoutExceeded || c == CodeMemoryLimitExceeded
}

// ErrorInfo is the structured failure half of an ExtractionResult.
type ErrorInfo struct {
	Code    ErrorCode
	Message string
	Context string
}

// Error makes ErrorInfo usable where a plain error is wanted.
func (e *ErrorInfo) Error() string {
	if e.Context != "" {
		return string(e.Code) + ": " + e.Message + " (" + e.Context + ")"
	}
	return string(e.Code) + ": " + e.Message
}

func newError(code ErrorCode, message, context string) *ErrorInfo {
	return &ErrorInfo{Code: code, Message: message, Context: context}
}
