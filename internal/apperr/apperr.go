// Package apperr defines the typed error taxonomy shared by the mudra packages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the component that raised it.
type Kind string

const (
	KindDecode     Kind = "decode"
	KindExtraction Kind = "extraction"
	KindInference  Kind = "inference"
	KindStartup    Kind = "startup"
	KindConfig     Kind = "config"
	KindTransport  Kind = "transport"
	KindStorage    Kind = "storage"
	KindUnknown    Kind = "unknown"
)

// Reason refines a Kind.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonMalformedEnvelope Reason = "malformed_envelope"
	ReasonUnsupportedFormat Reason = "unsupported_format"
	ReasonEmptyBody         Reason = "empty_body"
	ReasonTooLarge          Reason = "too_large"
	ReasonTimeout           Reason = "timeout"
	ReasonShapeMismatch     Reason = "shape_mismatch"
	ReasonUnavailable       Reason = "unavailable"
	ReasonBadDistribution   Reason = "bad_distribution"
)

// Error is the concrete error type carried through the pipeline.
type Error struct {
	Kind    Kind
	Reason  Reason
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	tag := string(e.Kind)
	if e.Reason != ReasonNone {
		tag += "/" + string(e.Reason)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", tag, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", tag, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same Kind and Reason, so callers can
// compare against templates such as apperr.New(KindDecode, "", "").WithReason(...).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == ReasonNone || t.Reason == e.Reason)
}

// WithReason returns a copy of e carrying reason.
func (e *Error) WithReason(reason Reason) *Error {
	if e == nil {
		return nil
	}
	c := *e
	c.Reason = reason
	return &c
}

// New builds an error without an underlying cause.
func New(kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// Wrap attaches kind, op and message to err. A nil err yields nil and an
// err that already is an *Error is returned unchanged.
func Wrap(kind Kind, op, message string, err error) error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return err
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

// WrapReason is Wrap for errors that also carry a reason.
func WrapReason(kind Kind, reason Reason, op, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    kind,
		Reason:  reason,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

// IsKind reports whether the first *Error in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindUnknown
}

// ReasonOf returns the reason of the first *Error in err's chain.
func ReasonOf(err error) Reason {
	var target *Error
	if errors.As(err, &target) {
		return target.Reason
	}
	return ReasonNone
}
