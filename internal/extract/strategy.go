// Package extract turns marketplace listing markup into a pricing.ParsedPrice.
// Each supported source is a Strategy selected by host name; pages from any
// other host are rejected.
package extract

import (
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pricesync-backend/internal/pricing"
)

// Strategy extracts prices from the cleaned text of one source's pages.
type Strategy interface {
	Name() string
	Matches(u *url.URL) bool
	Extract(text string, now time.Time) (pricing.ParsedPrice, error)
}

// Registry dispatches a source URL to the first strategy that claims it.
type Registry struct {
	strategies []Strategy
}

func NewRegistry(strategies ...Strategy) *Registry {
	return &Registry{strategies: strategies}
}

// DefaultRegistry registers the smart store strategy and, when genericHosts
// is non-empty, a generic strategy limited to those hosts.
func DefaultRegistry(genericHosts []string) *Registry {
	strategies := []Strategy{NewSmartStoreStrategy()}
	if generic := NewGenericStrategy(genericHosts); generic.HasHosts() {
		strategies = append(strategies, generic)
	}
	return NewRegistry(strategies...)
}

// Resolve parses rawURL and returns the strategy responsible for its host.
func (r *Registry) Resolve(rawURL string) (Strategy, error) {
	u, err := ParseSourceURL(rawURL)
	if err != nil {
		return nil, err
	}
	for _, s := range r.strategies {
		if s.Matches(u) {
			return s, nil
		}
	}
	return nil, pricing.Fail(pricing.ErrUnsupportedSource, "no extraction strategy for host %q", u.Hostname())
}

// Extract resolves the strategy for rawURL and runs it over the cleaned markup.
func (r *Registry) Extract(rawURL, markup string, now time.Time) (pricing.ParsedPrice, error) {
	strategy, err := r.Resolve(rawURL)
	if err != nil {
		return pricing.ParsedPrice{}, err
	}
	return strategy.Extract(CleanText(markup), now)
}

// ParseSourceURL accepts absolute http(s) URLs only.
func ParseSourceURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, pricing.Fail(pricing.ErrUnsupportedSource, "invalid source url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, pricing.Fail(pricing.ErrUnsupportedSource, "source url scheme %q is not http(s)", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, pricing.Fail(pricing.ErrUnsupportedSource, "source url has no host")
	}
	return u, nil
}

// canonicalHost lowercases and drops the www. and m. prefixes.
func canonicalHost(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	for _, prefix := range []string{"www.", "m."} {
		host = strings.TrimPrefix(host, prefix)
	}
	return host
}

var saleKeywords = []string{"할인", "세일", "특가", "sale", "discount"}

func hasSaleKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range saleKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// decideFromTokens applies the label-free rule: with a sale keyword and at
// least two distinct amounts the largest is regular and the smallest is the
// sale price; otherwise the largest amount is the regular price.
func decideFromTokens(values []decimal.Decimal, saleKeyword bool) (pricing.ParsedPrice, error) {
	if len(values) == 0 {
		return pricing.ParsedPrice{}, pricing.Fail(pricing.ErrExtraction, "no currency-marked amounts found")
	}
	maxV, minV := values[0], values[0]
	for _, v := range values[1:] {
		maxV = decimal.Max(maxV, v)
		minV = decimal.Min(minV, v)
	}
	if saleKeyword && len(values) >= 2 {
		sale := minV
		return pricing.ParsedPrice{RegularKRW: maxV, SaleKRW: &sale, SaleDetected: true}, nil
	}
	return pricing.ParsedPrice{RegularKRW: maxV}, nil
}

// withSaleDates attaches the page's sale window to a detected sale.
func withSaleDates(parsed pricing.ParsedPrice, text string, now time.Time) pricing.ParsedPrice {
	if !parsed.SaleDetected {
		return parsed
	}
	if dates, ok := ExtractSaleDates(text, now); ok {
		parsed.SaleStart = dates.Start
		parsed.SaleEnd = dates.End
	}
	return parsed
}
