package provider

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fslexpress/golang_services/internal/core_domain"
	"github.com/fslexpress/golang_services/internal/mail_delivery_service/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMessage() domain.OutgoingMessage {
	return domain.OutgoingMessage{
		To:       "user@example.org",
		Subject:  "Your OTP Code",
		HTMLBody: "<p>Your OTP code is: <b>123456</b></p>",
		TextBody: "Your OTP code is: 123456",
		From:     domain.Sender{Name: "FSL Express", Address: "sender@example.com"},
	}
}

func newTestSMTPChannel(srv *fakeSMTPServer, cfg SMTPConfig) *SMTPChannel {
	if cfg.Name == "" {
		cfg.Name = ChannelBrevoSMTP
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 2525
	}
	if cfg.User == "" {
		cfg.User = "relay@example.com"
	}
	if cfg.Pass == "" {
		cfg.Pass = "s3cret"
	}
	return NewSMTPChannel(cfg, testLogger(),
		WithSMTPDialer(srv),
		WithSMTPClock(func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }),
	)
}

func TestSMTPChannel_Active(t *testing.T) {
	tests := []struct {
		name string
		cfg  SMTPConfig
		want bool
	}{
		{"configured", SMTPConfig{Host: "smtp.example.com", Port: 587, User: "u@example.com", Pass: "p"}, true},
		{"empty host", SMTPConfig{Port: 587, User: "u@example.com", Pass: "p"}, false},
		{"bad port", SMTPConfig{Host: "smtp.example.com", Port: 0, User: "u@example.com", Pass: "p"}, false},
		{"empty pass", SMTPConfig{Host: "smtp.example.com", Port: 587, User: "u@example.com"}, false},
		{"placeholder user", SMTPConfig{Host: "smtp.example.com", Port: 587, User: "your_smtp_user", Pass: "p"}, false},
		{"placeholder pass", SMTPConfig{Host: "smtp.example.com", Port: 587, User: "u@example.com", Pass: "changeme"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := NewSMTPChannel(tt.cfg, testLogger())
			assert.Equal(t, tt.want, ch.Active())
		})
	}
}

func TestSMTPChannel_Verify_Success(t *testing.T) {
	srv := &fakeSMTPServer{}
	ch := newTestSMTPChannel(srv, SMTPConfig{})

	err := ch.Verify(context.Background())
	require.NoError(t, err)
	srv.wait()

	assert.Contains(t, srv.authLine, "AUTH PLAIN")
	assert.Empty(t, srv.mailFrom, "verify must not start a transaction")
}

func TestSMTPChannel_Verify_AuthRejected(t *testing.T) {
	srv := &fakeSMTPServer{authReply: "535 5.7.8 Authentication failed"}
	ch := newTestSMTPChannel(srv, SMTPConfig{})

	err := ch.Verify(context.Background())
	require.Error(t, err)
	srv.wait()

	assert.Equal(t, core_domain.KindUpstreamAuth, core_domain.KindOf(err))
	assert.Equal(t, HintCheckCredentials, core_domain.HintOf(err))
}

func TestSMTPChannel_Verify_TimesOutOnSilentServer(t *testing.T) {
	srv := &fakeSMTPServer{stall: true}
	ch := newTestSMTPChannel(srv, SMTPConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := ch.Verify(ctx)
	require.Error(t, err)
	srv.wait()

	assert.Equal(t, core_domain.KindUpstreamTimeout, core_domain.KindOf(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSMTPChannel_Send_Success(t *testing.T) {
	srv := &fakeSMTPServer{}
	ch := newTestSMTPChannel(srv, SMTPConfig{})

	id, err := ch.Send(context.Background(), testMessage())
	require.NoError(t, err)
	srv.wait()

	assert.Regexp(t, `^<[0-9a-f-]+@example\.com>$`, id)
	assert.Contains(t, srv.mailFrom, "MAIL FROM:<sender@example.com>")
	assert.Contains(t, srv.rcptTo, "RCPT TO:<user@example.org>")
	assert.Contains(t, srv.data, `From: "FSL Express" <sender@example.com>`)
	assert.Contains(t, srv.data, "Subject: Your OTP Code")
	assert.Contains(t, srv.data, "Message-ID: "+id)
	assert.Contains(t, srv.data, "multipart/alternative")
	assert.Contains(t, srv.data, "text/plain; charset=UTF-8")
	assert.Contains(t, srv.data, "text/html; charset=UTF-8")
	assert.Contains(t, srv.data, "Date: Tue, 02 Jan 2024 03:04:05 +0000")
}

func TestSMTPChannel_Send_OverrideSender(t *testing.T) {
	srv := &fakeSMTPServer{}
	ch := newTestSMTPChannel(srv, SMTPConfig{
		Name:           ChannelFallbackSMTP,
		User:           "fallback@gmail.com",
		OverrideSender: true,
	})
	msg := testMessage()

	_, err := ch.Send(context.Background(), msg)
	require.NoError(t, err)
	srv.wait()

	assert.Contains(t, srv.mailFrom, "<fallback@gmail.com>")
	assert.Contains(t, srv.data, `From: "FSL Express" <fallback@gmail.com>`)
	assert.Equal(t, "sender@example.com", msg.From.Address, "caller's message must not change")
}

func TestSMTPChannel_Send_SenderRejected(t *testing.T) {
	srv := &fakeSMTPServer{mailReply: "550 5.7.1 Sender not authorized"}
	ch := newTestSMTPChannel(srv, SMTPConfig{})

	_, err := ch.Send(context.Background(), testMessage())
	require.Error(t, err)
	srv.wait()

	assert.Equal(t, core_domain.KindUpstreamAuth, core_domain.KindOf(err))
	assert.Equal(t, HintVerifiedSender, core_domain.HintOf(err))
}

func TestSMTPChannel_Send_DataRejected(t *testing.T) {
	srv := &fakeSMTPServer{dataReply: "451 4.3.0 Temporary local problem"}
	ch := newTestSMTPChannel(srv, SMTPConfig{})

	_, err := ch.Send(context.Background(), testMessage())
	require.Error(t, err)
	srv.wait()

	assert.Equal(t, core_domain.KindUpstreamUnavailable, core_domain.KindOf(err))
	assert.Contains(t, err.Error(), "Temporary local problem")
}

func TestSMTPChannel_Send_InvalidMessageDoesNotDial(t *testing.T) {
	srv := &fakeSMTPServer{}
	ch := newTestSMTPChannel(srv, SMTPConfig{})
	msg := testMessage()
	msg.To = "not-an-address"

	_, err := ch.Send(context.Background(), msg)
	require.Error(t, err)

	assert.Equal(t, core_domain.KindValidation, core_domain.KindOf(err))
	assert.Zero(t, srv.dials)
}
