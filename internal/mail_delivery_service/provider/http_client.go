package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody bounds how much of a provider error response is kept.
const maxErrorBody = 4 << 10

func defaultHTTPClient(c *http.Client) *http.Client {
	if c == nil {
		return &http.Client{Timeout: 15 * time.Second}
	}
	return c
}

type apiResponse struct {
	status int
	header http.Header
	body   []byte
}

// doJSON issues one JSON request and reads the whole response. Transport
// failures are classified; HTTP status handling is left to the caller.
func doJSON(ctx context.Context, client *http.Client, op, method, url string, headers map[string]string, payload any) (*apiResponse, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransportError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, classifyTransportError(op+": read response", err)
	}
	return &apiResponse{status: resp.StatusCode, header: resp.Header, body: raw}, nil
}

// errorDetail extracts a readable message from a provider error body.
func errorDetail(body []byte) string {
	var probe struct {
		Message string `json:"message"`
		Code    string `json:"code"`
		Errors  []struct {
			Message string `json:"message"`
			Field   string `json:"field"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &probe); err == nil {
		var parts []string
		if probe.Code != "" {
			parts = append(parts, probe.Code)
		}
		if probe.Message != "" {
			parts = append(parts, probe.Message)
		}
		for _, e := range probe.Errors {
			if e.Message != "" {
				parts = append(parts, e.Message)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, ": ")
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	if s == "" {
		return "empty response"
	}
	return s
}
