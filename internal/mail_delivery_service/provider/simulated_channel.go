package provider

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fslexpress/golang_services/internal/core_domain"
	"github.com/fslexpress/golang_services/internal/mail_delivery_service/domain"
)

// SimulatedChannelName is the name of the development-only channel.
const SimulatedChannelName = "simulated"

// SimulatedChannel accepts every valid message without contacting anyone.
// It only exists when MAIL_SIMULATE is set.
type SimulatedChannel struct {
	logger *slog.Logger
}

func NewSimulatedChannel(logger *slog.Logger) *SimulatedChannel {
	return &SimulatedChannel{logger: logger.With("channel", SimulatedChannelName)}
}

func (s *SimulatedChannel) Name() string { return SimulatedChannelName }

func (s *SimulatedChannel) Active() bool { return true }

func (s *SimulatedChannel) Verify(ctx context.Context) error { return ctx.Err() }

func (s *SimulatedChannel) Send(ctx context.Context, msg domain.OutgoingMessage) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", core_domain.E(core_domain.KindValidation, "simulated send", err)
	}
	id := "simulated-" + uuid.NewString()
	s.logger.InfoContext(ctx, "Simulated email delivery", "message_id", id, "recipient_domain", msg.RecipientDomain())
	return id, nil
}
