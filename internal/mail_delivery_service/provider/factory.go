package provider

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fslexpress/golang_services/internal/platform/config"
)

// Channel names accepted in MAIL_CHANNEL_ORDER.
const (
	ChannelBrevoSMTP    = "brevo-smtp"
	ChannelBrevoAPI     = "brevo-api"
	ChannelSendGridAPI  = "sendgrid-api"
	ChannelFallbackSMTP = "fallback-smtp"
)

// BuildChannels creates the channel list in MAIL_CHANNEL_ORDER. The simulated
// channel, when enabled, is placed first. Channels whose credentials are
// missing are still built; the orchestrator skips them via Active.
func BuildChannels(cfg *config.Config, logger *slog.Logger, httpClient *http.Client, smtpOpts ...SMTPOption) ([]ChannelDescriptor, error) {
	order := cfg.ChannelOrder()
	if len(order) == 0 {
		return nil, fmt.Errorf("MAIL_CHANNEL_ORDER is empty")
	}

	wrap := func(ch Channel) ChannelDescriptor {
		return ChannelDescriptor{Channel: ch, VerifyTimeout: cfg.VerifyTimeout(), SendTimeout: cfg.SendTimeout()}
	}

	var out []ChannelDescriptor
	if cfg.MailSimulate {
		out = append(out, wrap(NewSimulatedChannel(logger)))
	}

	seen := make(map[string]bool, len(order))
	for _, raw := range order {
		name := strings.ToLower(raw)
		if seen[name] {
			return nil, fmt.Errorf("channel %q listed twice in MAIL_CHANNEL_ORDER", name)
		}
		seen[name] = true

		switch name {
		case ChannelBrevoSMTP:
			out = append(out, wrap(NewSMTPChannel(SMTPConfig{
				Name: name,
				Host: cfg.SMTPHost,
				Port: cfg.SMTPPort,
				User: cfg.SMTPUser,
				Pass: cfg.SMTPPass,
			}, logger, smtpOpts...)))
		case ChannelBrevoAPI:
			out = append(out, wrap(NewBrevoAPIChannel(name, cfg.BrevoAPIKey, cfg.BrevoBaseURL, httpClient, logger)))
		case ChannelSendGridAPI:
			out = append(out, wrap(NewSendGridAPIChannel(name, cfg.SendGridAPIKey, cfg.SendGridBaseURL, httpClient, logger)))
		case ChannelFallbackSMTP:
			out = append(out, wrap(NewSMTPChannel(SMTPConfig{
				Name:           name,
				Host:           cfg.FallbackSMTPHost,
				Port:           cfg.FallbackSMTPPort,
				User:           cfg.FallbackSMTPUser,
				Pass:           cfg.FallbackSMTPPass,
				OverrideSender: true,
			}, logger, smtpOpts...)))
		case SimulatedChannelName:
			if !cfg.MailSimulate {
				logger.Warn("simulated channel listed in MAIL_CHANNEL_ORDER but MAIL_SIMULATE is off; ignoring")
			}
		default:
			return nil, fmt.Errorf("unknown mail channel %q in MAIL_CHANNEL_ORDER", raw)
		}
	}
	return out, nil
}
