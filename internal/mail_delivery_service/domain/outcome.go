package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/fslexpress/golang_services/internal/core_domain"
)

// Stage identifies which channel operation an attempt failed in.
type Stage string

const (
	StageVerify Stage = "verify"
	StageSend   Stage = "send"
)

// Attempt records one failed channel operation.
type Attempt struct {
	Channel  string
	Stage    Stage
	Kind     core_domain.Kind
	Err      error
	Duration time.Duration
}

func (a Attempt) String() string {
	return fmt.Sprintf("%s (%s, %s): %v", a.Channel, a.Stage, a.Kind, a.Err)
}

// Receipt is the successful outcome of a delivery. Attempts holds the
// failures recorded on earlier channels, if any.
type Receipt struct {
	Channel           string
	ProviderMessageID string
	Attempts          []Attempt
}

// DeliveryError is the failed outcome of a delivery. Kind is
// KindNoChannelConfigured or KindAllChannelsFailed, unless the caller's
// context ended first: then Cause holds that error, Kind is its kind and
// Attempts lists the channels that had already failed.
type DeliveryError struct {
	Kind     core_domain.Kind
	Attempts []Attempt
	Cause    error
}

// Aborted reports whether the delivery stopped before every channel was tried.
func (e *DeliveryError) Aborted() bool { return e.Cause != nil }

func (e *DeliveryError) Error() string {
	if e.Cause != nil {
		if len(e.Attempts) == 0 {
			return fmt.Sprintf("email delivery aborted: %v", e.Cause)
		}
		return fmt.Sprintf("email delivery aborted after %d failed attempts: %v; %s", len(e.Attempts), e.Cause, e.attemptList())
	}
	if e.Kind == core_domain.KindNoChannelConfigured || len(e.Attempts) == 0 {
		return "no email channel is configured"
	}
	return fmt.Sprintf("all %d email channels failed: %s", len(e.Attempts), e.attemptList())
}

func (e *DeliveryError) attemptList() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, "; ")
}

func (e *DeliveryError) ErrorKind() core_domain.Kind { return e.Kind }

// Unwrap exposes the cause and every attempt error so errors.Is and
// errors.As can match on any of them.
func (e *DeliveryError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts)+1)
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

// Hint returns the first remediation hint found among the attempts.
func (e *DeliveryError) Hint() string {
	for _, a := range e.Attempts {
		if h := core_domain.HintOf(a.Err); h != "" {
			return h
		}
	}
	return ""
}
