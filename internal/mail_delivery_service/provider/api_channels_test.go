package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fslexpress/golang_services/internal/core_domain"
)

func TestBrevoAPIChannel_Send_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/smtp/email", r.URL.Path)
		assert.Equal(t, "test-brevo-key", r.Header.Get("api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req brevoSendRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "sender@example.com", req.Sender.Email)
		assert.Equal(t, "FSL Express", req.Sender.Name)
		require.Len(t, req.To, 1)
		assert.Equal(t, "user@example.org", req.To[0].Email)
		assert.Equal(t, "Your OTP Code", req.Subject)
		assert.Contains(t, req.HTMLContent, "<b>123456</b>")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"<202401020304.123@smtp-relay.mailin.fr>"}`))
	}))
	defer server.Close()

	ch := NewBrevoAPIChannel(ChannelBrevoAPI, "test-brevo-key", server.URL, server.Client(), testLogger())
	id, err := ch.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.Equal(t, "<202401020304.123@smtp-relay.mailin.fr>", id)
}

func TestBrevoAPIChannel_Send_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind core_domain.Kind
		wantHint string
	}{
		{"bad key", http.StatusUnauthorized, `{"code":"unauthorized","message":"Key not found"}`, core_domain.KindUpstreamAuth, HintCheckAPIKey},
		{"unverified sender", http.StatusBadRequest, `{"code":"invalid_parameter","message":"sender is not valid, please verify it"}`, core_domain.KindUpstreamAuth, HintVerifiedSender},
		{"rate limited", http.StatusTooManyRequests, `{"message":"Too many requests"}`, core_domain.KindUpstreamUnavailable, ""},
		{"server error", http.StatusInternalServerError, `oops`, core_domain.KindUpstreamUnavailable, ""},
		{"gateway timeout", http.StatusGatewayTimeout, ``, core_domain.KindUpstreamTimeout, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			ch := NewBrevoAPIChannel(ChannelBrevoAPI, "k", server.URL, server.Client(), testLogger())
			_, err := ch.Send(context.Background(), testMessage())
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, core_domain.KindOf(err))
			assert.Equal(t, tt.wantHint, core_domain.HintOf(err))
		})
	}
}

func TestBrevoAPIChannel_Send_AcceptedWithoutMessageID(t *testing.T) {
	for _, body := range []string{`{}`, `not json`} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(body))
		}))

		ch := NewBrevoAPIChannel(ChannelBrevoAPI, "k", server.URL, server.Client(), testLogger())
		id, err := ch.Send(context.Background(), testMessage())
		server.Close()

		require.NoError(t, err, "an accepted message must not be retried on another channel")
		assert.Regexp(t, `^brevo-accepted-201-[0-9a-f-]{36}$`, id)
	}
}

func TestBrevoAPIChannel_Verify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v3/account", r.URL.Path)
		if r.Header.Get("api-key") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":"unauthorized","message":"Key not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"email":"owner@example.com"}`))
	}))
	defer server.Close()

	good := NewBrevoAPIChannel(ChannelBrevoAPI, "good", server.URL, server.Client(), testLogger())
	require.NoError(t, good.Verify(context.Background()))

	bad := NewBrevoAPIChannel(ChannelBrevoAPI, "bad", server.URL, server.Client(), testLogger())
	err := bad.Verify(context.Background())
	require.Error(t, err)
	assert.Equal(t, core_domain.KindUpstreamAuth, core_domain.KindOf(err))
	assert.Contains(t, err.Error(), "Key not found")
}

func TestBrevoAPIChannel_Active(t *testing.T) {
	assert.True(t, NewBrevoAPIChannel(ChannelBrevoAPI, "xkeysib-123", "https://api.brevo.com", nil, testLogger()).Active())
	assert.False(t, NewBrevoAPIChannel(ChannelBrevoAPI, "", "https://api.brevo.com", nil, testLogger()).Active())
	assert.False(t, NewBrevoAPIChannel(ChannelBrevoAPI, "your_api_key", "https://api.brevo.com", nil, testLogger()).Active())
}

func TestSendGridAPIChannel_Send_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer SG.test", r.Header.Get("Authorization"))

		var req sendGridRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Personalizations, 1)
		assert.Equal(t, "user@example.org", req.Personalizations[0].To[0].Email)
		assert.Equal(t, "sender@example.com", req.From.Email)
		require.Len(t, req.Content, 2)
		assert.Equal(t, "text/plain", req.Content[0].Type)
		assert.Equal(t, "text/html", req.Content[1].Type)

		w.Header().Set("X-Message-Id", "sg-abc123")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	ch := NewSendGridAPIChannel(ChannelSendGridAPI, "SG.test", server.URL, server.Client(), testLogger())
	id, err := ch.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.Equal(t, "sg-abc123", id)
}

func TestSendGridAPIChannel_Send_Forbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errors":[{"message":"The from address does not match a verified Sender Identity.","field":"from"}]}`))
	}))
	defer server.Close()

	ch := NewSendGridAPIChannel(ChannelSendGridAPI, "SG.test", server.URL, server.Client(), testLogger())
	_, err := ch.Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.Equal(t, core_domain.KindUpstreamAuth, core_domain.KindOf(err))
	assert.Equal(t, HintVerifiedSender, core_domain.HintOf(err))
	assert.Contains(t, err.Error(), "verified Sender Identity")
}

func TestSendGridAPIChannel_Send_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ch := NewSendGridAPIChannel(ChannelSendGridAPI, "SG.test", server.URL, server.Client(), testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := ch.Send(ctx, testMessage())
	require.Error(t, err)
	assert.Equal(t, core_domain.KindUpstreamTimeout, core_domain.KindOf(err))
}

func TestSendGridAPIChannel_Verify_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	ch := NewSendGridAPIChannel(ChannelSendGridAPI, "SG.test", url, nil, testLogger())
	err := ch.Verify(context.Background())
	require.Error(t, err)
	assert.Equal(t, core_domain.KindUpstreamUnavailable, core_domain.KindOf(err))
}

func TestSimulatedChannel(t *testing.T) {
	ch := NewSimulatedChannel(testLogger())
	assert.True(t, ch.Active())
	require.NoError(t, ch.Verify(context.Background()))

	id, err := ch.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.Regexp(t, `^simulated-[0-9a-f-]{36}$`, id)
}
