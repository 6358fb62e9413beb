package extract

import (
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/pricesync-backend/internal/pricing"
)

// GenericStrategy applies the label-free token rule. It only claims hosts that
// were explicitly allowed, so unknown sites still fail as unsupported.
type GenericStrategy struct {
	hosts map[string]bool
}

func NewGenericStrategy(hosts []string) *GenericStrategy {
	allowed := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		h = strings.TrimPrefix(strings.TrimPrefix(h, "www."), "m.")
		if h != "" {
			allowed[h] = true
		}
	}
	return &GenericStrategy{hosts: allowed}
}

func (g *GenericStrategy) Name() string { return "generic" }

func (g *GenericStrategy) HasHosts() bool { return len(g.hosts) > 0 }

func (g *GenericStrategy) Matches(u *url.URL) bool {
	return g.hosts[canonicalHost(u)]
}

func (g *GenericStrategy) Extract(text string, now time.Time) (pricing.ParsedPrice, error) {
	parsed, err := decideFromTokens(distinctValues(scanTokens(text)), hasSaleKeyword(text))
	if err != nil {
		return pricing.ParsedPrice{}, err
	}
	return withSaleDates(parsed, text, now), nil
}
