package core_domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the gateway can pick a status code and the
// delivery orchestrator can report each attempt consistently.
type Kind string

const (
	KindUnknown             Kind = "unknown"
	KindValidation          Kind = "validation_error"
	KindUpstreamAuth        Kind = "upstream_auth_error"
	KindUpstreamTimeout     Kind = "upstream_timeout"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindNoChannelConfigured Kind = "no_channel_configured"
	KindAllChannelsFailed   Kind = "all_channels_failed"
	KindModelNotFound       Kind = "model_not_found"
	KindDecodeError         Kind = "decode_error"
)

// Error carries a Kind alongside the underlying cause. Hint is an optional
// remediation message that is safe to show to API clients.
type Error struct {
	Kind Kind
	Op   string
	Err  error
	Hint string
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error from a format string.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// WithHint returns a copy of e carrying hint.
func (e *Error) WithHint(hint string) *Error {
	cp := *e
	cp.Hint = hint
	return &cp
}

// ErrorKind lets aggregate errors report their own kind instead of the kind
// of whatever they wrap.
func (e *Error) ErrorKind() Kind { return e.Kind }

type kinded interface {
	ErrorKind() Kind
}

// KindOf reports the Kind of the first classified error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var k kinded
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	return KindUnknown
}

// HintOf reports the first non-empty hint in err's chain.
func HintOf(err error) string {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return ""
		}
		if e.Hint != "" {
			return e.Hint
		}
		err = e.Err
	}
	return ""
}

// IsKind reports whether err carries kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
