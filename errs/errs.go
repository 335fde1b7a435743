// Package errs holds the gateway's closed error-kind taxonomy (spec.md §7).
// Every kind carries a category, a short human code, and a user-safe
// message; internal detail is attached via cockroachdb/errors and never
// crosses into the user-safe envelope. Grounded on the teacher's
// response.Code -> codeValue lookup table (response/response.go), adapted
// from HTTP status codes to the spec's error categories.
package errs

import (
	"github.com/cockroachdb/errors"
)

// Category is the closed sum type spec.md §7 defines.
type Category string

const (
	CategoryValidation     Category = "VALIDATION"
	CategorySecurity       Category = "SECURITY"
	CategoryAuthentication Category = "AUTHENTICATION"
	CategoryAuthorization  Category = "AUTHORIZATION"
	CategoryNotFound       Category = "NOT_FOUND"
	CategoryConflict       Category = "CONFLICT"
	CategoryConnection     Category = "CONNECTION"
	CategoryTimeout        Category = "TIMEOUT"
	CategoryThrottle       Category = "THROTTLE"
	CategoryAdmission      Category = "ADMISSION"
	CategoryUnknown        Category = "UNKNOWN"
)

// Kind is a specific named error within a Category. Token expiry is a
// sub-kind of authentication, per spec.md §7.
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindSecurity        Kind = "security_error"
	KindAuthentication  Kind = "authentication_error"
	KindTokenExpired    Kind = "token_expired"
	KindAuthorization   Kind = "authorization_error"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindConnection      Kind = "connection_error"
	KindTimeout         Kind = "timeout_error"
	KindThrottle        Kind = "throttle_error"
	KindAdmission       Kind = "admission_error"
	KindRouting         Kind = "routing_error"
	KindUnknown         Kind = "unknown_error"
)

type kindInfo struct {
	category Category
	message  string
}

var registry = map[Kind]kindInfo{
	KindValidation:     {CategoryValidation, "The request did not pass validation."},
	KindSecurity:       {CategorySecurity, "The request was rejected for security reasons."},
	KindAuthentication: {CategoryAuthentication, "Authentication could not be established."},
	KindTokenExpired:   {CategoryAuthentication, "The provided credential has expired."},
	KindAuthorization:  {CategoryAuthorization, "You are not authorized to perform this operation."},
	KindNotFound:       {CategoryNotFound, "The requested object was not found."},
	KindConflict:       {CategoryConflict, "The operation conflicted with a concurrent change."},
	KindConnection:     {CategoryConnection, "Could not reach the warehouse."},
	KindTimeout:        {CategoryTimeout, "The operation timed out."},
	KindThrottle:       {CategoryThrottle, "Too many requests; please slow down."},
	KindAdmission:      {CategoryAdmission, "The server is at capacity; please retry."},
	// Routing errors (an unknown operation/mode/scenario tuple) are a
	// client-shaped mistake, so they share VALIDATION's category rather
	// than adding a new top-level Category the spec doesn't enumerate.
	KindRouting: {CategoryValidation, "The requested operation is not supported."},
	KindUnknown: {CategoryUnknown, "An unexpected error occurred."},
}

// Detail is the typed error envelope surfaced to callers (spec.md §3
// OperationResponse.errors).
type Detail struct {
	Category Category `json:"category"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Field    string   `json:"field,omitempty"`
}

// gatewayError is the internal carrier: a Kind plus safe/internal messages,
// wrapped with cockroachdb/errors so stack traces and internal detail
// survive for logging while never reaching the caller.
type gatewayError struct {
	kind  Kind
	field string
	cause error
}

func (e *gatewayError) Error() string {
	if e.cause != nil {
		return string(e.kind) + ": " + e.cause.Error()
	}
	return string(e.kind)
}

func (e *gatewayError) Unwrap() error { return e.cause }

// New creates a gateway error of the given kind with an internal message
// (logged, never returned to the caller).
func New(kind Kind, internalMsg string) error {
	return &gatewayError{kind: kind, cause: errors.New(internalMsg)}
}

// Newf is New with fmt-style formatting of the internal message.
func Newf(kind Kind, format string, args ...any) error {
	return &gatewayError{kind: kind, cause: errors.Newf(format, args...)}
}

// Wrap attaches a Kind to an existing error, preserving it as the cause for
// internal logging via errors.Wrap. An error that already carries
// KindTimeout is returned unchanged, so a statement timeout keeps its kind
// when a caller wraps it again.
func Wrap(kind Kind, err error, internalMsg string) error {
	if err == nil {
		return nil
	}
	if KindOf(err) == KindTimeout {
		return err
	}
	return &gatewayError{kind: kind, cause: errors.Wrap(err, internalMsg)}
}

// WithField attaches the offending field name (e.g. for VALIDATION errors).
func WithField(err error, field string) error {
	var ge *gatewayError
	if errors.As(err, &ge) {
		ge.field = field
		return ge
	}
	return &gatewayError{kind: KindUnknown, field: field, cause: err}
}

// KindOf extracts the Kind from an error produced by this package, falling
// back to KindUnknown for any other error (e.g. a raw error bubbling up
// from a handler that forgot to wrap it).
func KindOf(err error) Kind {
	var ge *gatewayError
	if errors.As(err, &ge) {
		return ge.kind
	}
	return KindUnknown
}

// ToDetail builds the user-safe Detail envelope for any error, looking up
// the registered category/message for gateway errors and falling back to
// KindUnknown for foreign errors. Internal detail (err.Error()) is never
// placed in the returned Detail — callers that need it for logging should
// log err separately.
func ToDetail(err error) Detail {
	var ge *gatewayError
	kind := KindUnknown
	field := ""
	if errors.As(err, &ge) {
		kind = ge.kind
		field = ge.field
	}
	info, ok := registry[kind]
	if !ok {
		info = registry[KindUnknown]
	}
	return Detail{
		Category: info.category,
		Code:     string(kind),
		Message:  info.message,
		Field:    field,
	}
}
