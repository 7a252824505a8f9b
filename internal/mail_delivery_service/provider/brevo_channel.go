package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fslexpress/golang_services/internal/core_domain"
	"github.com/fslexpress/golang_services/internal/mail_delivery_service/domain"
)

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoSendRequest struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent,omitempty"`
	TextContent string         `json:"textContent,omitempty"`
}

type brevoSendResponse struct {
	MessageID string `json:"messageId"`
}

// BrevoAPIChannel sends through the Brevo transactional email HTTP API.
type BrevoAPIChannel struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewBrevoAPIChannel(name, apiKey, baseURL string, httpClient *http.Client, logger *slog.Logger) *BrevoAPIChannel {
	return &BrevoAPIChannel{
		name:       name,
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: defaultHTTPClient(httpClient),
		logger:     logger.With("channel", name),
	}
}

func (b *BrevoAPIChannel) Name() string { return b.name }

func (b *BrevoAPIChannel) Active() bool {
	return b.baseURL != "" && configured(b.apiKey)
}

// Verify checks the key against the account endpoint.
func (b *BrevoAPIChannel) Verify(ctx context.Context) error {
	const op = "brevo verify"
	resp, err := doJSON(ctx, b.httpClient, op, http.MethodGet, b.baseURL+"/v3/account", b.headers(), nil)
	if err != nil {
		return err
	}
	if resp.status != http.StatusOK {
		return classifyHTTPStatus(op, resp.status, errorDetail(resp.body))
	}
	return nil
}

func (b *BrevoAPIChannel) Send(ctx context.Context, msg domain.OutgoingMessage) (string, error) {
	const op = "brevo send"
	if err := msg.Validate(); err != nil {
		return "", core_domain.E(core_domain.KindValidation, op, err)
	}
	payload := brevoSendRequest{
		Sender:      brevoContact{Email: msg.From.Address, Name: msg.From.Name},
		To:          []brevoContact{{Email: msg.To}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTMLBody,
		TextContent: msg.TextBody,
	}

	resp, err := doJSON(ctx, b.httpClient, op, http.MethodPost, b.baseURL+"/v3/smtp/email", b.headers(), payload)
	if err != nil {
		return "", err
	}
	if resp.status < 200 || resp.status >= 300 {
		return "", classifyHTTPStatus(op, resp.status, errorDetail(resp.body))
	}

	// The message is accepted at this point; failing here would make the
	// orchestrator send it again through the next channel.
	var out brevoSendResponse
	if err := json.Unmarshal(resp.body, &out); err != nil || out.MessageID == "" {
		id := fmt.Sprintf("brevo-accepted-%d-%s", resp.status, uuid.NewString())
		b.logger.WarnContext(ctx, "Brevo accepted message without a readable messageId, using generated id",
			"status_code", resp.status, "message_id", id)
		return id, nil
	}
	return out.MessageID, nil
}

func (b *BrevoAPIChannel) headers() map[string]string {
	return map[string]string{"api-key": b.apiKey}
}
