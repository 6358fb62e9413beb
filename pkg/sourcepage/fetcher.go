// Package sourcepage downloads marketplace listing pages and decodes them to
// UTF-8 text.
package sourcepage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	pkgerrors "github.com/angelmondragon/pricesync-backend/pkg/errors"
)

const (
	defaultUserAgent          = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultMaxBodyBytes int64 = 4 << 20
	errorBodyReadLimit  int64 = 512
)

// ErrBodyTooLarge is returned when a page exceeds the configured size cap.
var ErrBodyTooLarge = errors.New("page body exceeds size limit")

// Fetcher retrieves one page at a time, paced by a token bucket.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	limiter    *rate.Limiter
}

// Option configures optional fetcher behavior.
type Option func(*Fetcher)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.httpClient = client
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if trimmed := strings.TrimSpace(ua); trimmed != "" {
			f.userAgent = trimmed
		}
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithRequestsPerMinute paces requests. Zero or less disables pacing.
func WithRequestsPerMinute(n int) Option {
	return func(f *Fetcher) {
		if n <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.httpClient.Timeout = timeout
		}
	}
}

func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		userAgent:  defaultUserAgent,
		maxBytes:   defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Fetch downloads rawURL and returns the body decoded to UTF-8. The charset
// comes from the Content-Type header or, failing that, from the document's
// meta tags.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "wait for fetch slot")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "build page request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute page request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "page request failed")
	}

	limited := &io.LimitedReader{R: resp.Body, N: f.maxBytes + 1}
	decoded, err := charset.NewReader(limited, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detect page charset")
	}
	body, err := io.ReadAll(decoded)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read page body")
	}
	if limited.N <= 0 {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, ErrBodyTooLarge, fmt.Sprintf("page larger than %d bytes", f.maxBytes))
	}
	return string(body), nil
}
