package provider

import (
	"context"
	"time"

	"github.com/fslexpress/golang_services/internal/mail_delivery_service/domain"
)

// Channel is one email delivery backend together with its credentials.
type Channel interface {
	// Name identifies the channel in attempts, logs and metrics.
	Name() string
	// Active reports whether the channel's configuration is usable. It must
	// not perform I/O.
	Active() bool
	// Verify performs a lightweight handshake with the backing service.
	Verify(ctx context.Context) error
	// Send delivers msg and returns the provider-assigned message id.
	Send(ctx context.Context, msg domain.OutgoingMessage) (string, error)
}

// ChannelDescriptor pairs a Channel with the time budget of each operation.
// Descriptors are built once at startup and shared read-only.
type ChannelDescriptor struct {
	Channel       Channel
	VerifyTimeout time.Duration
	SendTimeout   time.Duration
}

func (d ChannelDescriptor) Name() string {
	if d.Channel == nil {
		return ""
	}
	return d.Channel.Name()
}
