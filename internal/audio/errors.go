package audio

import (
	"errors"
	"fmt"
)

// Kind identifies a class of audio error.
type Kind string

const (
	// KindUnknown is reported for errors that carry no kind.
	KindUnknown Kind = "UNKNOWN"

	// KindInvalidSpeed is a fingerprint built from a NaN speed.
	KindInvalidSpeed Kind = "INVALID_SPEED"

	// KindSynthesisFailed is a generator that could not produce audio.
	KindSynthesisFailed Kind = "SYNTHESIS_FAILED"

	// KindEncodingFailed is a processor that could not compress audio.
	KindEncodingFailed Kind = "ENCODING_FAILED"
)

// Sentinel errors. Use errors.Is to match any error of the same kind.
var (
	// ErrInvalidSpeed is returned by NewFingerprint when speed is NaN.
	ErrInvalidSpeed = &Error{Kind: KindInvalidSpeed, Message: "speed must not be NaN"}

	// ErrSynthesisFailed matches every generator failure.
	ErrSynthesisFailed = &Error{Kind: KindSynthesisFailed, Message: "speech synthesis failed"}

	// ErrEncodingFailed matches every processor compression failure.
	ErrEncodingFailed = &Error{Kind: KindEncodingFailed, Message: "audio encoding failed"}

	// ErrNotCacheable is returned by Seed for text outside the cacheable targets.
	ErrNotCacheable = errors.New("fingerprint is not cacheable")
)

// Error is an audio error with a kind and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// NewError creates an error of the given kind.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}
