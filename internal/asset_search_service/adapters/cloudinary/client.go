package cloudinary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fslexpress/golang_services/internal/asset_search_service/domain"
	"github.com/fslexpress/golang_services/internal/core_domain"
)

// Config identifies a Cloudinary account.
type Config struct {
	BaseURL   string
	CloudName string
	APIKey    string
	APISecret string
}

type searchResource struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
}

type searchResponse struct {
	Resources []searchResource `json:"resources"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client lists assets through the Cloudinary Admin search API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.With("adapter", "cloudinary"),
	}
}

// ListFolder returns up to maxResults resources under folder, in the order
// Cloudinary returns them.
func (c *Client) ListFolder(ctx context.Context, folder string, maxResults int) ([]domain.Asset, error) {
	const op = "cloudinary search"
	if c.cfg.CloudName == "" {
		return nil, core_domain.Errorf(core_domain.KindUpstreamAuth, op, "CLOUD_NAME is not configured")
	}

	q := url.Values{}
	q.Set("expression", "folder:"+folder)
	q.Set("max_results", strconv.Itoa(maxResults))
	endpoint := fmt.Sprintf("%s/v1_1/%s/resources/search?%s", c.cfg.BaseURL, url.PathEscape(c.cfg.CloudName), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.SetBasicAuth(c.cfg.APIKey, c.cfg.APISecret)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := core_domain.KindUpstreamUnavailable
		if ctx.Err() == context.DeadlineExceeded {
			kind = core_domain.KindUpstreamTimeout
		}
		return nil, core_domain.E(kind, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, core_domain.E(core_domain.KindUpstreamUnavailable, op, fmt.Errorf("read response: %w", err))
	}
	c.logger.DebugContext(ctx, "Cloudinary search response", "status_code", resp.StatusCode, "bytes", len(body), "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		detail := strings.TrimSpace(string(body))
		var e errorResponse
		if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
			detail = e.Error.Message
		}
		kind := core_domain.KindUpstreamUnavailable
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = core_domain.KindUpstreamAuth
		}
		return nil, core_domain.Errorf(kind, op, "status %d: %s", resp.StatusCode, detail)
	}

	var out searchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, core_domain.E(core_domain.KindUpstreamUnavailable, op, fmt.Errorf("decode response: %w", err))
	}

	assets := make([]domain.Asset, 0, len(out.Resources))
	for _, r := range out.Resources {
		assets = append(assets, domain.Asset{PublicID: r.PublicID, URL: r.SecureURL})
	}
	return assets, nil
}
