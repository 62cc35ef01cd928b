package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation ErrCode = "VALIDATION_ERROR"
	ErrInvalidID  ErrCode = "INVALID_ID"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Session-specific ──────────────────────────────────────────────
	ErrExamNotAvailable  ErrCode = "EXAM_NOT_AVAILABLE"
	ErrSessionNotStarted ErrCode = "SESSION_NOT_STARTED"
	ErrSessionSubmitted  ErrCode = "SESSION_ALREADY_SUBMITTED"
	ErrResultNotReady    ErrCode = "RESULT_NOT_READY"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrNotFound:
		return "Resource not found."
	case ErrExamNotAvailable:
		return "This exam is not currently available."
	case ErrSessionNotStarted:
		return "No active session for this exam. Start the test first."
	case ErrSessionSubmitted:
		return "This test has already been submitted."
	case ErrResultNotReady:
		return "The result is not available yet."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
