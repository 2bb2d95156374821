// Package marketplace fetches raw product details from the marketplace API.
package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/valeevte/pricewatch/internal/metrics"
)

const (
	// MaxTimeout bounds a single fetch.
	MaxTimeout = 15 * time.Second

	// MaxResponseSize is the maximum accepted body size (5MB)
	MaxResponseSize = 5 * 1024 * 1024

	DefaultCountry = "ES"
)

// RawPayload is the undecoded JSON body of a successful fetch.
type RawPayload = json.RawMessage

type Config struct {
	Name    string
	BaseURL string
	APIKey  string
	APIHost string
	Country string
	Timeout time.Duration
}

// Client performs exactly one request per Fetch; it never retries.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 || cfg.Timeout > MaxTimeout {
		cfg.Timeout = MaxTimeout
	}
	if cfg.Country == "" {
		cfg.Country = DefaultCountry
	}
	if cfg.Name == "" {
		cfg.Name = "amazon"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		logger: log,
	}
}

func (c *Client) Marketplace() string { return c.cfg.Name }

func (c *Client) Country() string { return c.cfg.Country }

// HasCredential reports whether an API key is configured.
func (c *Client) HasCredential() bool { return c.cfg.APIKey != "" }

// Fetch requests product details for externalID. An empty country uses the
// configured default. Every failure is a *FetchError.
func (c *Client) Fetch(ctx context.Context, externalID, country string) (RawPayload, error) {
	if country == "" {
		country = c.cfg.Country
	}

	q := url.Values{}
	q.Set("asin", externalID)
	q.Set("country", country)
	endpoint := c.cfg.BaseURL + "/product-details?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, ExternalID: externalID, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("x-rapidapi-key", c.cfg.APIKey)
	req.Header.Set("x-rapidapi-host", c.cfg.APIHost)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest(c.cfg.Name, 0, time.Since(start).Seconds())
		return nil, &FetchError{Kind: KindTransport, ExternalID: externalID, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	duration := time.Since(start)
	metrics.RecordUpstreamRequest(c.cfg.Name, resp.StatusCode, duration.Seconds())

	c.logger.Debug("marketplace request",
		zap.String("external_id", externalID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration),
	)

	if kind, failed := classify(resp.StatusCode); failed {
		return nil, &FetchError{Kind: kind, ExternalID: externalID, StatusCode: resp.StatusCode}
	}
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, ExternalID: externalID, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if len(body) > MaxResponseSize {
		return nil, &FetchError{Kind: KindUpstream, ExternalID: externalID, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("response body too large: %d bytes", len(body))}
	}

	return RawPayload(body), nil
}

func classify(status int) (Kind, bool) {
	switch {
	case status >= 200 && status < 300:
		return 0, false
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuthDenied, true
	case status == http.StatusTooManyRequests:
		return KindRateLimited, true
	default:
		return KindUpstream, true
	}
}
