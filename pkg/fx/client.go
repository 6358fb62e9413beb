// Package fx fetches KRW-based exchange rates from an exchangerate.host style
// feed.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/pricesync-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://api.exchangerate.host"
	baseCurrency                = "KRW"
	requestBodyReadLimit  int64 = 1024
	responseBodyReadLimit int64 = 64 << 10
)

// Rates is one KRW-based snapshot: how many USD and AED one won buys.
type Rates struct {
	USDPerKRW float64
	AEDPerKRW float64
	FetchedAt time.Time
}

// Client reads the latest rates from the feed.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	now        func() time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the feed base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithAPIKey sends the key in the apikey header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// Latest fetches one snapshot. Any transport error, non-200 status, wrong
// base or non-finite/non-positive rate is a CodeDependency error.
func (c *Client) Latest(ctx context.Context) (Rates, error) {
	if c == nil {
		return Rates{}, pkgerrors.New(pkgerrors.CodeDependency, "fx client not configured")
	}

	q := url.Values{}
	q.Set("base", baseCurrency)
	q.Set("symbols", "USD,AED")
	endpoint := fmt.Sprintf("%s/latest?%s", strings.TrimRight(c.baseURL, "/"), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Rates{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build fx request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Rates{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute fx request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return Rates{}, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "fx request failed")
	}

	var apiResp struct {
		Base  string             `json:"base"`
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, responseBodyReadLimit)).Decode(&apiResp); err != nil {
		return Rates{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode fx response")
	}
	if apiResp.Base != "" && !strings.EqualFold(apiResp.Base, baseCurrency) {
		return Rates{}, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("fx feed returned base %q", apiResp.Base))
	}

	usd, err := positiveRate(apiResp.Rates, "USD")
	if err != nil {
		return Rates{}, err
	}
	aed, err := positiveRate(apiResp.Rates, "AED")
	if err != nil {
		return Rates{}, err
	}
	return Rates{USDPerKRW: usd, AEDPerKRW: aed, FetchedAt: c.now().UTC()}, nil
}

func positiveRate(rates map[string]float64, symbol string) (float64, error) {
	v, ok := rates[symbol]
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("fx feed missing %s rate", symbol))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("fx feed %s rate %v is not usable", symbol, v))
	}
	return v, nil
}
