package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"regexp"
	"strings"

	"github.com/fslexpress/golang_services/internal/core_domain"
)

const (
	HintCheckCredentials = "Check SMTP_USER/SMTP_PASS."
	HintVerifiedSender   = "Use a Brevo-verified FROM_EMAIL."
	HintCheckAPIKey      = "Check the provider API key."
)

var (
	authPattern   = regexp.MustCompile(`(?i)(EAUTH|authentication failed|invalid login|username and password|bad credentials|unauthorized)`)
	senderPattern = regexp.MustCompile(`(?i)(sender|from).*(not|allowed|authorized|verif)`)
)

// RemediationHint derives a client-safe hint from error text. It is a best
// effort diagnostic and returns "" when nothing matches.
func RemediationHint(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch {
	case senderPattern.MatchString(msg):
		return HintVerifiedSender
	case authPattern.MatchString(msg):
		return HintCheckCredentials
	default:
		return ""
	}
}

// classifySMTPError maps an SMTP session failure onto a core_domain kind.
func classifySMTPError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *core_domain.Error
	if errors.As(err, &ce) {
		return err
	}
	if isTimeout(err) {
		return core_domain.E(core_domain.KindUpstreamTimeout, op, err)
	}

	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch tpErr.Code {
		case 530, 534, 535:
			return core_domain.E(core_domain.KindUpstreamAuth, op, err).WithHint(HintCheckCredentials)
		case 550, 551, 553, 554:
			if senderPattern.MatchString(tpErr.Msg) {
				return core_domain.E(core_domain.KindUpstreamAuth, op, err).WithHint(HintVerifiedSender)
			}
		}
	}
	if strings.Contains(err.Error(), "unencrypted connection") {
		return core_domain.E(core_domain.KindUpstreamAuth, op, err).WithHint(HintCheckCredentials)
	}

	ue := core_domain.E(core_domain.KindUpstreamUnavailable, op, err)
	if hint := RemediationHint(err); hint != "" {
		return ue.WithHint(hint)
	}
	return ue
}

// classifyHTTPStatus maps a non-2xx provider response onto a core_domain kind.
// detail is the provider's own error text and is preserved in the error.
func classifyHTTPStatus(op string, status int, detail string) error {
	err := fmt.Errorf("status %d: %s", status, detail)
	switch {
	case status == 401 || status == 403:
		if senderPattern.MatchString(detail) {
			return core_domain.E(core_domain.KindUpstreamAuth, op, err).WithHint(HintVerifiedSender)
		}
		return core_domain.E(core_domain.KindUpstreamAuth, op, err).WithHint(HintCheckAPIKey)
	case status == 408 || status == 504:
		return core_domain.E(core_domain.KindUpstreamTimeout, op, err)
	case senderPattern.MatchString(detail):
		return core_domain.E(core_domain.KindUpstreamAuth, op, err).WithHint(HintVerifiedSender)
	default:
		return core_domain.E(core_domain.KindUpstreamUnavailable, op, err)
	}
}

// classifyTransportError maps an HTTP client failure (dial, TLS, read).
func classifyTransportError(op string, err error) error {
	if isTimeout(err) {
		return core_domain.E(core_domain.KindUpstreamTimeout, op, err)
	}
	return core_domain.E(core_domain.KindUpstreamUnavailable, op, err)
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
