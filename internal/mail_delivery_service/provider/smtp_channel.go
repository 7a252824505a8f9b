package provider

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fslexpress/golang_services/internal/core_domain"
	"github.com/fslexpress/golang_services/internal/mail_delivery_service/domain"
)

// SMTPConfig describes one SMTP account.
type SMTPConfig struct {
	Name string
	Host string
	Port int
	User string
	Pass string
	// OverrideSender makes every message go out from User, whatever sender the
	// caller asked for. Mailbox providers reject other From addresses.
	OverrideSender bool
}

// Dialer abstracts net.Dialer so tests can hand out in-memory connections.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// SMTPOption configures an SMTPChannel.
type SMTPOption func(*SMTPChannel)

// WithSMTPDialer swaps the dialer used to reach the server.
func WithSMTPDialer(d Dialer) SMTPOption {
	return func(c *SMTPChannel) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithSMTPTLSConfig overrides the TLS settings. A nil config disables
// STARTTLS and implicit TLS.
func WithSMTPTLSConfig(cfg *tls.Config) SMTPOption {
	return func(c *SMTPChannel) {
		c.tlsConfig = cfg
	}
}

// WithSMTPAuth replaces the PLAIN auth built from the account credentials.
func WithSMTPAuth(auth smtp.Auth) SMTPOption {
	return func(c *SMTPChannel) {
		c.auth = auth
	}
}

// WithSMTPHelloName sets the EHLO identity.
func WithSMTPHelloName(name string) SMTPOption {
	return func(c *SMTPChannel) {
		if strings.TrimSpace(name) != "" {
			c.helloName = strings.TrimSpace(name)
		}
	}
}

// WithSMTPClock replaces the clock used for the Date header.
func WithSMTPClock(now func() time.Time) SMTPOption {
	return func(c *SMTPChannel) {
		if now != nil {
			c.now = now
		}
	}
}

// SMTPChannel delivers mail through an SMTP relay or mailbox account.
type SMTPChannel struct {
	cfg       SMTPConfig
	dialer    Dialer
	tlsConfig *tls.Config
	auth      smtp.Auth
	helloName string
	now       func() time.Time
	logger    *slog.Logger
}

// NewSMTPChannel builds an SMTPChannel. An incomplete configuration does not
// fail construction; the channel simply reports itself inactive.
func NewSMTPChannel(cfg SMTPConfig, logger *slog.Logger, opts ...SMTPOption) *SMTPChannel {
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.User = strings.TrimSpace(cfg.User)
	c := &SMTPChannel{
		cfg:       cfg,
		dialer:    &net.Dialer{Timeout: 30 * time.Second},
		helloName: "localhost",
		now:       time.Now,
		logger:    logger.With("channel", cfg.Name),
		tlsConfig: &tls.Config{
			ServerName: cfg.Host,
			MinVersion: tls.VersionTLS12,
		},
	}
	if cfg.User != "" {
		c.auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *SMTPChannel) Name() string { return c.cfg.Name }

func (c *SMTPChannel) Active() bool {
	if c.cfg.Host == "" || c.cfg.Port <= 0 || c.cfg.Port > 65535 {
		return false
	}
	return configured(c.cfg.User, c.cfg.Pass)
}

// Verify connects, negotiates TLS, authenticates and quits.
func (c *SMTPChannel) Verify(ctx context.Context) error {
	const op = "smtp verify"
	client, closeFn, err := c.open(ctx, op)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := client.Quit(); err != nil && !errors.Is(err, io.EOF) {
		return sessionError(ctx, op+": quit", err)
	}
	c.logger.DebugContext(ctx, "SMTP account verified", "host", c.cfg.Host)
	return nil
}

// Send delivers msg in a fresh SMTP session and returns the Message-ID it
// was sent with.
func (c *SMTPChannel) Send(ctx context.Context, msg domain.OutgoingMessage) (string, error) {
	const op = "smtp send"
	if c.cfg.OverrideSender {
		msg = msg.WithSender(domain.Sender{Name: msg.From.Name, Address: c.cfg.User})
	}
	if err := msg.Validate(); err != nil {
		return "", core_domain.E(core_domain.KindValidation, op, err)
	}
	from, err := mail.ParseAddress(msg.From.Address)
	if err != nil {
		return "", core_domain.E(core_domain.KindValidation, op, fmt.Errorf("invalid sender: %w", err))
	}
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return "", core_domain.E(core_domain.KindValidation, op, fmt.Errorf("invalid recipient: %w", err))
	}

	messageID := newMessageID(from.Address)
	body, err := buildMIMEMessage(msg, messageID, c.now())
	if err != nil {
		return "", core_domain.E(core_domain.KindValidation, op, err)
	}

	client, closeFn, err := c.open(ctx, op)
	if err != nil {
		return "", err
	}
	defer closeFn()

	if err := client.Mail(from.Address); err != nil {
		return "", sessionError(ctx, op+": mail from", err)
	}
	if err := client.Rcpt(to.Address); err != nil {
		return "", sessionError(ctx, op+": rcpt to", err)
	}
	w, err := client.Data()
	if err != nil {
		return "", sessionError(ctx, op+": data", err)
	}
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return "", sessionError(ctx, op+": data write", err)
	}
	if err := w.Close(); err != nil {
		return "", sessionError(ctx, op+": data close", err)
	}
	if err := client.Quit(); err != nil && !errors.Is(err, io.EOF) {
		c.logger.WarnContext(ctx, "SMTP quit failed after accepted message", "error", err)
	}

	c.logger.DebugContext(ctx, "SMTP message accepted", "message_id", messageID, "from", from.Address)
	return messageID, nil
}

// open dials the server and runs the session up to authentication. The
// returned func releases the connection.
func (c *SMTPChannel) open(ctx context.Context, op string) (*smtp.Client, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, sessionError(ctx, op, err)
	}

	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	c.logger.DebugContext(ctx, "SMTP dial", "addr", addr)
	raw, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, sessionError(ctx, op+": dial", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = raw.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = raw.Close() })

	conn := raw
	implicitTLS := c.cfg.Port == 465 && c.tlsConfig != nil
	if implicitTLS {
		conn = tls.Client(raw, c.sessionTLSConfig())
	}

	client, err := smtp.NewClient(conn, c.cfg.Host)
	if err != nil {
		stop()
		_ = raw.Close()
		return nil, nil, sessionError(ctx, op+": greeting", err)
	}
	release := func() {
		stop()
		_ = client.Close()
	}

	if err := client.Hello(c.helloName); err != nil {
		release()
		return nil, nil, sessionError(ctx, op+": hello", err)
	}

	if cfg := c.sessionTLSConfig(); cfg != nil && !implicitTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			c.logger.DebugContext(ctx, "SMTP starttls")
			if err := client.StartTLS(cfg); err != nil {
				release()
				return nil, nil, sessionError(ctx, op+": starttls", err)
			}
		}
	}

	if c.auth != nil {
		if ok, _ := client.Extension("AUTH"); !ok {
			release()
			return nil, nil, core_domain.Errorf(core_domain.KindUpstreamAuth, op, "server %s does not offer AUTH", c.cfg.Host).
				WithHint(HintCheckCredentials)
		}
		c.logger.DebugContext(ctx, "SMTP auth", "user_len", len(c.cfg.User))
		if err := client.Auth(c.auth); err != nil {
			release()
			return nil, nil, sessionError(ctx, op+": auth", err)
		}
	}

	return client, release, nil
}

func (c *SMTPChannel) sessionTLSConfig() *tls.Config {
	if c.tlsConfig == nil {
		return nil
	}
	cfg := c.tlsConfig.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = c.cfg.Host
	}
	return cfg
}

func newMessageID(fromAddress string) string {
	host := "localhost"
	if i := strings.LastIndexByte(fromAddress, '@'); i >= 0 && i < len(fromAddress)-1 {
		host = fromAddress[i+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), host)
}

// sessionError classifies err, treating any failure after the context ended
// as caused by it. The watchdog closing the connection surfaces as a plain
// I/O error otherwise.
func sessionError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	return classifySMTPError(op, err)
}
