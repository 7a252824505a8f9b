package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fslexpress/golang_services/internal/platform/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		SMTPHost:            "smtp-relay.brevo.com",
		SMTPPort:            587,
		SMTPUser:            "relay@example.com",
		SMTPPass:            "secret",
		BrevoBaseURL:        "https://api.brevo.com",
		SendGridBaseURL:     "https://api.sendgrid.com",
		FallbackSMTPHost:    "smtp.gmail.com",
		FallbackSMTPPort:    587,
		MailChannelOrder:    "brevo-smtp,brevo-api,sendgrid-api,fallback-smtp",
		MailVerifyTimeoutMs: 1500,
		MailSendTimeoutMs:   3000,
	}
}

func names(descs []ChannelDescriptor) []string {
	out := make([]string, 0, len(descs))
	for _, d := range descs {
		out = append(out, d.Name())
	}
	return out
}

func TestBuildChannels_Order(t *testing.T) {
	descs, err := BuildChannels(baseConfig(), testLogger(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{ChannelBrevoSMTP, ChannelBrevoAPI, ChannelSendGridAPI, ChannelFallbackSMTP}, names(descs))
	for _, d := range descs {
		assert.Equal(t, 1500*time.Millisecond, d.VerifyTimeout)
		assert.Equal(t, 3*time.Second, d.SendTimeout)
	}
	assert.True(t, descs[0].Channel.Active())
	assert.False(t, descs[1].Channel.Active(), "no Brevo API key configured")
	assert.False(t, descs[3].Channel.Active(), "no fallback credentials configured")
}

func TestBuildChannels_CustomOrderAndSimulation(t *testing.T) {
	cfg := baseConfig()
	cfg.MailChannelOrder = "fallback-smtp, Brevo-SMTP"
	cfg.MailSimulate = true

	descs, err := BuildChannels(cfg, testLogger(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{SimulatedChannelName, ChannelFallbackSMTP, ChannelBrevoSMTP}, names(descs))
}

func TestBuildChannels_Rejects(t *testing.T) {
	cfg := baseConfig()
	cfg.MailChannelOrder = "brevo-smtp,carrier-pigeon"
	_, err := BuildChannels(cfg, testLogger(), nil)
	assert.ErrorContains(t, err, "carrier-pigeon")

	cfg.MailChannelOrder = "brevo-smtp,brevo-smtp"
	_, err = BuildChannels(cfg, testLogger(), nil)
	assert.ErrorContains(t, err, "listed twice")

	cfg.MailChannelOrder = " , "
	_, err = BuildChannels(cfg, testLogger(), nil)
	assert.Error(t, err)
}
