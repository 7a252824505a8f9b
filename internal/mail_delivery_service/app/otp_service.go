package app

import (
	"context"
	"html"
	"log/slog"
	"strings"

	"github.com/fslexpress/golang_services/internal/core_domain"
	"github.com/fslexpress/golang_services/internal/mail_delivery_service/domain"
)

// MsgMissingOTPFields is returned to clients that omit the recipient or code.
const MsgMissingOTPFields = "Missing 'to' or 'otp'."

// Deliverer is implemented by Orchestrator.
type Deliverer interface {
	Deliver(ctx context.Context, msg domain.OutgoingMessage) (*domain.Receipt, error)
}

// OTPRequest is a request to email a one-time code.
type OTPRequest struct {
	To      string
	OTP     string
	Subject string
}

// OTPService renders OTP emails and hands them to the orchestrator.
type OTPService struct {
	deliverer      Deliverer
	sender         domain.Sender
	defaultSubject string
	logger         *slog.Logger
}

func NewOTPService(deliverer Deliverer, sender domain.Sender, defaultSubject string, logger *slog.Logger) *OTPService {
	if strings.TrimSpace(defaultSubject) == "" {
		defaultSubject = "Your OTP Code"
	}
	return &OTPService{
		deliverer:      deliverer,
		sender:         sender,
		defaultSubject: defaultSubject,
		logger:         logger.With("service", "otp"),
	}
}

// SendOTP validates req, renders the message and delivers it.
func (s *OTPService) SendOTP(ctx context.Context, req OTPRequest) (*domain.Receipt, error) {
	to := strings.TrimSpace(req.To)
	code := strings.TrimSpace(req.OTP)
	if to == "" || code == "" {
		otpRequestsCounter.WithLabelValues("invalid").Inc()
		return nil, core_domain.Errorf(core_domain.KindValidation, "send otp", MsgMissingOTPFields)
	}
	if strings.TrimSpace(s.sender.Address) == "" {
		otpRequestsCounter.WithLabelValues("failed").Inc()
		return nil, core_domain.Errorf(core_domain.KindNoChannelConfigured, "send otp", "no sender address configured (FROM_EMAIL or SMTP_USER)")
	}

	msg := BuildOTPMessage(to, code, s.subject(req.Subject), s.sender)
	receipt, err := s.deliverer.Deliver(ctx, msg)
	if err != nil {
		outcome := "failed"
		if core_domain.KindOf(err) == core_domain.KindValidation {
			outcome = "invalid"
		}
		otpRequestsCounter.WithLabelValues(outcome).Inc()
		return nil, err
	}
	otpRequestsCounter.WithLabelValues("sent").Inc()
	return receipt, nil
}

func (s *OTPService) subject(requested string) string {
	if v := strings.TrimSpace(requested); v != "" {
		return v
	}
	return s.defaultSubject
}

// BuildOTPMessage renders the OTP email with an HTML and a plain text part.
func BuildOTPMessage(to, code, subject string, sender domain.Sender) domain.OutgoingMessage {
	code = strings.TrimSpace(code)
	return domain.OutgoingMessage{
		To:       to,
		Subject:  subject,
		HTMLBody: "<p>Your OTP code is: <b>" + html.EscapeString(code) + "</b></p>",
		TextBody: "Your OTP code is: " + code,
		From:     sender,
	}
}
