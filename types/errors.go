// Package types is Nodalync's typed data model: artifacts, versions,
// provenance, manifests, access rules, economics, channels, payments,
// settlement entries and the stable error taxonomy, per spec.md §3 and §7.
package types

// Code is a stable numeric error code usable on the wire (spec.md §7).
type Code uint16

const (
	// Query errors.
	CodeNotFound        Code = 0x0001
	CodeAccessDenied    Code = 0x0002
	CodePaymentRequired Code = 0x0003
	CodePaymentInvalid  Code = 0x0004
	CodeRateLimited     Code = 0x0005
	CodeVersionNotFound Code = 0x0006

	// Channel errors.
	CodeChannelNotFound     Code = 0x0101
	CodeChannelClosed       Code = 0x0102
	CodeInsufficientBalance Code = 0x0103
	CodeInvalidNonce        Code = 0x0104
	CodeInvalidSignature    Code = 0x0105

	// Validation errors.
	CodeInvalidHash       Code = 0x0201
	CodeInvalidProvenance Code = 0x0202
	CodeInvalidVersion    Code = 0x0203
	CodeInvalidManifest   Code = 0x0204
	CodeContentTooLarge   Code = 0x0205

	// Network errors.
	CodePeerNotFound     Code = 0x0301
	CodeConnectionFailed Code = 0x0302
	CodeTimeout          Code = 0x0303

	// Internal.
	CodeInternalError Code = 0x0401
)

// Error is a taxonomy-tagged error: a stable Code plus a human message and
// optional wrapped cause. Comparisons should use errors.Is against the
// package-level sentinels below, not string matching.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, ErrNotFound) to match any *Error with the same
// Code, regardless of message/cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError builds an *Error with the given code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an *Error with the given code, message, and wrapped cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinel errors for errors.Is comparisons. Construct with NewError/Wrap to
// attach a message; compare with errors.Is(err, types.ErrNotFound).
var (
	ErrNotFound            = NewError(CodeNotFound, "not found")
	ErrAccessDenied        = NewError(CodeAccessDenied, "access denied")
	ErrPaymentRequired     = NewError(CodePaymentRequired, "payment required")
	ErrPaymentInvalid      = NewError(CodePaymentInvalid, "payment invalid")
	ErrRateLimited         = NewError(CodeRateLimited, "rate limited")
	ErrVersionNotFound     = NewError(CodeVersionNotFound, "version not found")
	ErrChannelNotFound     = NewError(CodeChannelNotFound, "channel not found")
	ErrChannelClosed       = NewError(CodeChannelClosed, "channel closed")
	ErrInsufficientBalance = NewError(CodeInsufficientBalance, "insufficient balance")
	ErrInvalidNonce        = NewError(CodeInvalidNonce, "invalid nonce")
	ErrInvalidSignature    = NewError(CodeInvalidSignature, "invalid signature")
	ErrInvalidHash         = NewError(CodeInvalidHash, "invalid hash")
	ErrInvalidProvenance   = NewError(CodeInvalidProvenance, "invalid provenance")
	ErrInvalidVersion      = NewError(CodeInvalidVersion, "invalid version")
	ErrInvalidManifest     = NewError(CodeInvalidManifest, "invalid manifest")
	ErrContentTooLarge     = NewError(CodeContentTooLarge, "content too large")
	ErrPeerNotFound        = NewError(CodePeerNotFound, "peer not found")
	ErrConnectionFailed    = NewError(CodeConnectionFailed, "connection failed")
	ErrTimeout             = NewError(CodeTimeout, "timeout")
	ErrInternalError       = NewError(CodeInternalError, "internal error")
)
