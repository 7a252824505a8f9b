package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httptransport "github.com/fslexpress/golang_services/internal/gateway_service/transport/http"
	mailapp "github.com/fslexpress/golang_services/internal/mail_delivery_service/app"
	maildomain "github.com/fslexpress/golang_services/internal/mail_delivery_service/domain"
	"github.com/fslexpress/golang_services/internal/mail_delivery_service/provider"
)

func newSendGridServer(t *testing.T, sends *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/scopes":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"scopes":["mail.send"]}`))
		case "/v3/mail/send":
			sends.Add(1)
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Header().Set("X-Message-Id", "sg-123")
			w.WriteHeader(http.StatusAccepted)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func otpStack(t *testing.T, channels ...provider.Channel) http.Handler {
	t.Helper()
	descriptors := make([]provider.ChannelDescriptor, 0, len(channels))
	for _, c := range channels {
		descriptors = append(descriptors, provider.ChannelDescriptor{Channel: c, VerifyTimeout: 2 * time.Second, SendTimeout: 2 * time.Second})
	}
	orch := mailapp.NewOrchestrator(descriptors, discardLogger())
	svc := mailapp.NewOTPService(orch, maildomain.Sender{Name: "FSL Express", Address: "no-reply@fsl.example"}, "", discardLogger())
	return httptransport.NewRouter(httptransport.RouterConfig{}, httptransport.NewOTPHandler(svc, validator.New(), nil, discardLogger()))
}

func TestSendOTP_PlaceholderChannelIsSkipped(t *testing.T) {
	var brevoCalls, sgSends atomic.Int32
	brevo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		brevoCalls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(brevo.Close)
	sg := newSendGridServer(t, &sgSends)

	router := otpStack(t,
		provider.NewBrevoAPIChannel("brevo-api", "your_api_key", brevo.URL, brevo.Client(), discardLogger()),
		provider.NewSendGridAPIChannel("sendgrid-api", "SG.live-key", sg.URL, sg.Client(), discardLogger()),
	)

	rr, body := serve(t, router, otpRequest(`{"to":"user@example.org","otp":"424242"}`))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "sendgrid-api", body["channel"])
	assert.Equal(t, "sg-123", body["messageId"])
	assert.Zero(t, brevoCalls.Load(), "placeholder channel must never be contacted")
	assert.EqualValues(t, 1, sgSends.Load())
}

func TestSendOTP_FailingChannelFallsThrough(t *testing.T) {
	var sgSends atomic.Int32
	brevo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"unauthorized","message":"Key not found"}`))
	}))
	t.Cleanup(brevo.Close)
	sg := newSendGridServer(t, &sgSends)

	router := otpStack(t,
		provider.NewBrevoAPIChannel("brevo-api", "xkeysib-real", brevo.URL, brevo.Client(), discardLogger()),
		provider.NewSendGridAPIChannel("sendgrid-api", "SG.live-key", sg.URL, sg.Client(), discardLogger()),
	)

	rr, body := serve(t, router, otpRequest(`{"to":"user@example.org","otp":"424242"}`))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "sendgrid-api", body["channel"])
	assert.EqualValues(t, 1, sgSends.Load())
}

func TestSendOTP_EveryChannelFails(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(down.Close)

	router := otpStack(t,
		provider.NewBrevoAPIChannel("brevo-api", "xkeysib-real", down.URL, down.Client(), discardLogger()),
		provider.NewSendGridAPIChannel("sendgrid-api", "SG.live-key", down.URL, down.Client(), discardLogger()),
	)

	rr, body := serve(t, router, otpRequest(`{"to":"user@example.org","otp":"424242"}`))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Failed to send OTP", body["message"])
	attempts := body["attempts"].([]any)
	require.Len(t, attempts, 2)
	assert.Equal(t, "brevo-api", attempts[0].(map[string]any)["channel"])
	assert.Equal(t, "sendgrid-api", attempts[1].(map[string]any)["channel"])
	assert.Equal(t, "upstream_unavailable", attempts[1].(map[string]any)["kind"])
}

func TestSendOTP_InvalidRecipientIsBadRequest(t *testing.T) {
	router := otpStack(t, provider.NewSimulatedChannel(discardLogger()))

	rr, body := serve(t, router, otpRequest(`{"to":"not-an-address","otp":"1"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, body["message"], "invalid recipient")
}
