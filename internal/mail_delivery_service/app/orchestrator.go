package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fslexpress/golang_services/internal/core_domain"
	"github.com/fslexpress/golang_services/internal/mail_delivery_service/domain"
	"github.com/fslexpress/golang_services/internal/mail_delivery_service/provider"
)

type phase int

const (
	phasePending phase = iota
	phaseTrying
	phaseSucceeded
	phaseExhausted
	phaseAborted
)

func (p phase) terminal() bool {
	return p == phaseSucceeded || p == phaseExhausted || p == phaseAborted
}

// deliveryRun is the per-call state of one Deliver invocation.
type deliveryRun struct {
	msg      domain.OutgoingMessage
	phase    phase
	next     int
	active   int
	attempts []domain.Attempt
	receipt  *domain.Receipt
	err      error
}

// Orchestrator delivers a message through the first channel, in configured
// order, that verifies and accepts it.
type Orchestrator struct {
	channels []provider.ChannelDescriptor
	audit    *AuditPublisher
	logger   *slog.Logger
	now      func() time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithAuditPublisher emits one audit event per Deliver call.
func WithAuditPublisher(a *AuditPublisher) OrchestratorOption {
	return func(o *Orchestrator) { o.audit = a }
}

// WithClock replaces time.Now for attempt durations and audit timestamps.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func NewOrchestrator(channels []provider.ChannelDescriptor, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		channels: append([]provider.ChannelDescriptor(nil), channels...),
		logger:   logger.With("component", "mail_orchestrator"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Channels returns the configured channel names in order.
func (o *Orchestrator) Channels() []string {
	out := make([]string, 0, len(o.channels))
	for _, d := range o.channels {
		out = append(out, d.Name())
	}
	return out
}

// ActiveChannels returns the names of channels whose configuration is usable.
func (o *Orchestrator) ActiveChannels() []string {
	var out []string
	for _, d := range o.channels {
		if d.Channel != nil && d.Channel.Active() {
			out = append(out, d.Name())
		}
	}
	return out
}

// Deliver tries each active channel in order: verify, then send. The first
// successful send ends the run. Channel failures are recorded, never
// returned individually; if no channel succeeds, or ctx ends first, the
// result is a *domain.DeliveryError listing every attempt.
func (o *Orchestrator) Deliver(ctx context.Context, msg domain.OutgoingMessage) (*domain.Receipt, error) {
	if err := msg.Validate(); err != nil {
		return nil, core_domain.E(core_domain.KindValidation, "deliver", err)
	}

	run := &deliveryRun{msg: msg, phase: phasePending}
	for !run.phase.terminal() {
		o.step(ctx, run)
	}

	switch run.phase {
	case phaseSucceeded:
		o.logger.InfoContext(ctx, "Email delivered",
			"channel", run.receipt.Channel,
			"provider_message_id", run.receipt.ProviderMessageID,
			"recipient_domain", msg.RecipientDomain(),
			"failed_attempts", len(run.attempts))
		o.publishAudit(ctx, run)
		return run.receipt, nil
	case phaseAborted:
		derr := &domain.DeliveryError{Kind: core_domain.KindOf(run.err), Attempts: run.attempts, Cause: run.err}
		run.err = derr
		o.logger.WarnContext(ctx, "Email delivery aborted", "error", derr, "failed_attempts", len(run.attempts))
		o.publishAudit(ctx, run)
		return nil, derr
	default:
		derr := &domain.DeliveryError{Kind: core_domain.KindAllChannelsFailed, Attempts: run.attempts}
		if run.active == 0 {
			derr.Kind = core_domain.KindNoChannelConfigured
		}
		run.err = derr
		o.logger.ErrorContext(ctx, "Email delivery failed", "kind", derr.Kind, "error", derr, "recipient_domain", msg.RecipientDomain())
		o.publishAudit(ctx, run)
		return nil, derr
	}
}

// step advances run by one transition.
func (o *Orchestrator) step(ctx context.Context, run *deliveryRun) {
	switch run.phase {
	case phasePending:
		run.phase, run.next = phaseTrying, 0
	case phaseTrying:
		if err := ctx.Err(); err != nil {
			run.phase = phaseAborted
			run.err = core_domain.E(contextKind(err), "deliver", err)
			return
		}
		if run.next >= len(o.channels) {
			run.phase = phaseExhausted
			return
		}
		d := o.channels[run.next]
		run.next++
		if d.Channel == nil || !d.Channel.Active() {
			o.logger.DebugContext(ctx, "Skipping inactive channel", "channel", d.Name())
			return
		}
		run.active++

		id, failed := o.try(ctx, d, run.msg)
		if failed != nil {
			run.attempts = append(run.attempts, *failed)
			return
		}
		run.receipt = &domain.Receipt{Channel: d.Name(), ProviderMessageID: id, Attempts: run.attempts}
		run.phase = phaseSucceeded
	}
}

// try runs verify then send on one channel and returns either the provider
// message id or the failed attempt.
func (o *Orchestrator) try(ctx context.Context, d provider.ChannelDescriptor, msg domain.OutgoingMessage) (string, *domain.Attempt) {
	name := d.Name()

	start := o.now()
	_, err := runWithTimeout(ctx, d.VerifyTimeout, name+" verify", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, d.Channel.Verify(ctx)
	})
	elapsed := o.now().Sub(start)
	observeAttempt(name, domain.StageVerify, err, elapsed)
	if err != nil {
		return "", o.failed(ctx, name, domain.StageVerify, err, elapsed)
	}

	start = o.now()
	id, err := runWithTimeout(ctx, d.SendTimeout, name+" send", func(ctx context.Context) (string, error) {
		return d.Channel.Send(ctx, msg)
	})
	elapsed = o.now().Sub(start)
	observeAttempt(name, domain.StageSend, err, elapsed)
	if err != nil {
		return "", o.failed(ctx, name, domain.StageSend, err, elapsed)
	}
	return id, nil
}

func (o *Orchestrator) failed(ctx context.Context, channel string, stage domain.Stage, err error, elapsed time.Duration) *domain.Attempt {
	a := &domain.Attempt{
		Channel:  channel,
		Stage:    stage,
		Kind:     attemptKind(err),
		Err:      err,
		Duration: elapsed,
	}
	o.logger.WarnContext(ctx, "Email channel failed, trying next",
		"channel", channel, "stage", stage, "kind", a.Kind, "error", err, "duration_ms", elapsed.Milliseconds())
	return a
}

func (o *Orchestrator) publishAudit(ctx context.Context, run *deliveryRun) {
	if o.audit == nil {
		return
	}
	o.audit.Publish(ctx, newAuditEvent(run.msg, run.receipt, run.err, run.attempts, o.now()))
}

// attemptKind is the kind recorded for a failed attempt. Errors a channel
// did not classify count as the upstream being unavailable.
func attemptKind(err error) core_domain.Kind {
	if k := core_domain.KindOf(err); k != core_domain.KindUnknown {
		return k
	}
	return core_domain.KindUpstreamUnavailable
}

// runWithTimeout races fn against timeout. fn gets a context that is
// cancelled when the race is decided; if the timer wins, fn keeps running in
// the background and its result is discarded. A non-positive timeout only
// bounds fn by ctx.
func runWithTimeout[T any](ctx context.Context, timeout time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	var (
		zero   T
		opCtx  context.Context
		cancel context.CancelFunc
		timer  <-chan time.Time
	)
	if timeout > 0 {
		opCtx, cancel = context.WithTimeout(ctx, timeout)
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	} else {
		opCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(opCtx)
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && core_domain.KindOf(r.err) == core_domain.KindUnknown && errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return zero, core_domain.E(core_domain.KindUpstreamTimeout, op, r.err)
		}
		return r.v, r.err
	case <-timer:
		return zero, core_domain.Errorf(core_domain.KindUpstreamTimeout, op, "no response within %s", timeout)
	case <-ctx.Done():
		return zero, core_domain.E(contextKind(ctx.Err()), op, ctx.Err())
	}
}

func contextKind(err error) core_domain.Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return core_domain.KindUpstreamTimeout
	}
	return core_domain.KindUpstreamUnavailable
}
