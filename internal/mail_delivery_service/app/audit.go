package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fslexpress/golang_services/internal/core_domain"
	"github.com/fslexpress/golang_services/internal/mail_delivery_service/domain"
	"github.com/fslexpress/golang_services/internal/platform/messagebroker"
)

// Audit outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeNoChannel = "no_channel"
	OutcomeAborted   = "aborted"
)

const auditPublishTimeout = 2 * time.Second

// AuditEvent summarises one Deliver call. It never carries the recipient's
// local part or the message body.
type AuditEvent struct {
	EventID           string         `json:"event_id"`
	OccurredAt        time.Time      `json:"occurred_at"`
	RecipientDomain   string         `json:"recipient_domain"`
	Outcome           string         `json:"outcome"`
	Channel           string         `json:"channel,omitempty"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	Attempts          []AuditAttempt `json:"attempts"`
}

type AuditAttempt struct {
	Channel    string `json:"channel"`
	Stage      string `json:"stage"`
	Kind       string `json:"kind"`
	Error      string `json:"error"`
	DurationMs int64  `json:"duration_ms"`
}

func newAuditEvent(msg domain.OutgoingMessage, receipt *domain.Receipt, err error, attempts []domain.Attempt, now time.Time) AuditEvent {
	ev := AuditEvent{
		EventID:         uuid.NewString(),
		OccurredAt:      now.UTC(),
		RecipientDomain: msg.RecipientDomain(),
		Attempts:        make([]AuditAttempt, 0, len(attempts)),
	}
	switch {
	case receipt != nil:
		ev.Outcome = OutcomeDelivered
		ev.Channel = receipt.Channel
		ev.ProviderMessageID = receipt.ProviderMessageID
	case isAborted(err):
		ev.Outcome = OutcomeAborted
	case core_domain.KindOf(err) == core_domain.KindNoChannelConfigured:
		ev.Outcome = OutcomeNoChannel
	default:
		ev.Outcome = OutcomeFailed
	}

	redact := strings.NewReplacer(msg.To, "<recipient>")
	for _, a := range attempts {
		text := ""
		if a.Err != nil {
			text = redact.Replace(a.Err.Error())
		}
		ev.Attempts = append(ev.Attempts, AuditAttempt{
			Channel:    a.Channel,
			Stage:      string(a.Stage),
			Kind:       string(a.Kind),
			Error:      text,
			DurationMs: a.Duration.Milliseconds(),
		})
	}
	return ev
}

func isAborted(err error) bool {
	var derr *domain.DeliveryError
	return errors.As(err, &derr) && derr.Aborted()
}

// AuditPublisher sends delivery audit events to the message broker.
// Failures are logged and counted, never returned.
type AuditPublisher struct {
	publisher messagebroker.Publisher
	topic     string
	logger    *slog.Logger
}

func NewAuditPublisher(publisher messagebroker.Publisher, topic string, logger *slog.Logger) *AuditPublisher {
	return &AuditPublisher{
		publisher: publisher,
		topic:     topic,
		logger:    logger.With("component", "mail_audit"),
	}
}

// Publish sends ev. It outlives a cancelled request context so events for
// abandoned requests still reach the broker.
func (a *AuditPublisher) Publish(ctx context.Context, ev AuditEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		auditPublishFailuresCounter.Inc()
		a.logger.ErrorContext(ctx, "Failed to marshal audit event", "error", err)
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditPublishTimeout)
	defer cancel()
	if err := a.publisher.Publish(pubCtx, a.topic, data); err != nil {
		auditPublishFailuresCounter.Inc()
		a.logger.WarnContext(ctx, "Failed to publish delivery audit event", "topic", a.topic, "event_id", ev.EventID, "error", err)
		return
	}
	a.logger.DebugContext(ctx, "Published delivery audit event", "topic", a.topic, "event_id", ev.EventID, "outcome", ev.Outcome)
}
