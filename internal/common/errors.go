package common

import "errors"

// Kind classifies an error for propagation and transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindAuthorization
	KindValidation
	KindThrottled
	KindTransient
	KindConflict
	KindIntegrity
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindThrottled:
		return "throttled"
	case KindTransient:
		return "transient"
	case KindConflict:
		return "conflict"
	case KindIntegrity:
		return "integrity"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a sentinel carrying a kind and a stable, localizable code.
// Callers add detail by wrapping: fmt.Errorf("%w: ...", common.ErrSizeMismatch).
type Error struct {
	kind Kind
	code string
	msg  string
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{kind: kind, code: code, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Kind returns the error classification.
func (e *Error) Kind() Kind { return e.kind }

// Code returns the stable machine-readable code.
func (e *Error) Code() string { return e.code }

var (
	// Repository-level errors.
	ErrorNotFound = newError(KindNotFound, "NOT_FOUND", "not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = newError(KindInternal, "INTERNAL", "internal error")

	// Auth errors.
	ErrorUnauthorized   = newError(KindUnauthenticated, "UNAUTHENTICATED", "unauthorized")
	ErrInvalidToken     = newError(KindUnauthenticated, "INVALID_TOKEN", "invalid token")
	ErrPermissionDenied = newError(KindAuthorization, "PERMISSION_DENIED", "permission denied")

	// Validation errors.
	ErrInvalidInput    = newError(KindValidation, "INVALID_INPUT", "invalid input")
	ErrFileEmpty       = newError(KindValidation, "UPLOAD_FILE_EMPTY", "file is empty")
	ErrFileTooLarge    = newError(KindValidation, "UPLOAD_FILE_TOO_LARGE", "file is too large")
	ErrUnsupportedType = newError(KindValidation, "UPLOAD_UNSUPPORTED_TYPE", "unsupported file type")

	ErrThrottled = newError(KindThrottled, "RATE_LIMITED", "too many requests")

	// Transient storage errors: safe to retry finalize with the same intent.
	ErrObjectNotFound     = newError(KindTransient, "UPLOAD_OBJECT_NOT_FOUND", "uploaded object not found")
	ErrStorageUnavailable = newError(KindTransient, "STORAGE_UNAVAILABLE", "storage unavailable")

	// Conflicts: the client must refresh and initiate again.
	ErrIntentNotFound  = newError(KindConflict, "UPLOAD_INTENT_NOT_FOUND", "upload session not found")
	ErrIntentMismatch  = newError(KindConflict, "UPLOAD_INTENT_MISMATCH", "upload session does not match request")
	ErrIntentClosed    = newError(KindConflict, "UPLOAD_INTENT_CLOSED", "upload session is closed")
	ErrIntentExpired   = newError(KindConflict, "UPLOAD_INTENT_EXPIRED", "upload session expired")
	ErrVersionConflict = newError(KindConflict, "DOCUMENT_VERSION_CONFLICT", "document version changed, refresh and retry")
	ErrCaseMismatch    = newError(KindConflict, "DOCUMENT_CASE_MISMATCH", "document belongs to another case")

	// Integrity failures against the stored object.
	ErrKeyMismatch         = newError(KindIntegrity, "UPLOAD_KEY_MISMATCH", "object key does not belong to target")
	ErrSizeMismatch        = newError(KindIntegrity, "UPLOAD_SIZE_MISMATCH", "stored object size mismatch")
	ErrTypeMismatch        = newError(KindIntegrity, "UPLOAD_TYPE_MISMATCH", "stored object type not allowed")
	ErrStoredObjectInvalid = newError(KindIntegrity, "UPLOAD_OBJECT_INVALID", "stored object is invalid")

	ErrDocumentNotFound = newError(KindNotFound, "DOCUMENT_NOT_FOUND", "document not found")
)

// KindOf reports the kind of the first *Error in err's chain.
// Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindInternal
}

// CodeOf reports the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return ErrorInternal.code
}

// Retryable reports whether the same call may succeed later unchanged.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindThrottled, KindTransient:
		return true
	}
	return false
}

// Terminal reports whether err must close an upload intent.
func Terminal(err error) bool {
	switch KindOf(err) {
	case KindConflict, KindIntegrity:
		return true
	}
	return false
}
