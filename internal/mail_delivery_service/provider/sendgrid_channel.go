package provider

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fslexpress/golang_services/internal/core_domain"
	"github.com/fslexpress/golang_services/internal/mail_delivery_service/domain"
)

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

// SendGridAPIChannel sends through the SendGrid v3 mail API.
type SendGridAPIChannel struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewSendGridAPIChannel(name, apiKey, baseURL string, httpClient *http.Client, logger *slog.Logger) *SendGridAPIChannel {
	return &SendGridAPIChannel{
		name:       name,
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: defaultHTTPClient(httpClient),
		logger:     logger.With("channel", name),
	}
}

func (s *SendGridAPIChannel) Name() string { return s.name }

func (s *SendGridAPIChannel) Active() bool {
	return s.baseURL != "" && configured(s.apiKey)
}

// Verify lists the key's scopes, which fails for revoked or unknown keys.
func (s *SendGridAPIChannel) Verify(ctx context.Context) error {
	const op = "sendgrid verify"
	resp, err := doJSON(ctx, s.httpClient, op, http.MethodGet, s.baseURL+"/v3/scopes", s.headers(), nil)
	if err != nil {
		return err
	}
	if resp.status != http.StatusOK {
		return classifyHTTPStatus(op, resp.status, errorDetail(resp.body))
	}
	return nil
}

// Send posts the message. SendGrid answers 202 with an empty body; the id
// comes from the X-Message-Id header.
func (s *SendGridAPIChannel) Send(ctx context.Context, msg domain.OutgoingMessage) (string, error) {
	const op = "sendgrid send"
	if err := msg.Validate(); err != nil {
		return "", core_domain.E(core_domain.KindValidation, op, err)
	}

	var content []sendGridContent
	if msg.TextBody != "" {
		content = append(content, sendGridContent{Type: "text/plain", Value: msg.TextBody})
	}
	if msg.HTMLBody != "" {
		content = append(content, sendGridContent{Type: "text/html", Value: msg.HTMLBody})
	}
	payload := sendGridRequest{
		Personalizations: []sendGridPersonalization{{To: []sendGridAddress{{Email: msg.To}}}},
		From:             sendGridAddress{Email: msg.From.Address, Name: msg.From.Name},
		Subject:          msg.Subject,
		Content:          content,
	}

	resp, err := doJSON(ctx, s.httpClient, op, http.MethodPost, s.baseURL+"/v3/mail/send", s.headers(), payload)
	if err != nil {
		return "", err
	}
	if resp.status < 200 || resp.status >= 300 {
		return "", classifyHTTPStatus(op, resp.status, errorDetail(resp.body))
	}

	id := strings.TrimSpace(resp.header.Get("X-Message-Id"))
	if id == "" {
		id = "sendgrid-" + uuid.NewString()
		s.logger.WarnContext(ctx, "SendGrid response had no X-Message-Id, using generated id", "message_id", id)
	}
	return id, nil
}

func (s *SendGridAPIChannel) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.apiKey}
}
