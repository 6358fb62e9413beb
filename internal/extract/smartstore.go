package extract

import (
	"net/url"
	"time"

	"github.com/angelmondragon/pricesync-backend/internal/pricing"
)

var (
	regularPriceLabels = []string{"정가", "판매가", "원가"}
	salePriceLabels    = []string{"할인가", "최저가", "혜택가", "쿠폰적용가", "특가"}
)

var smartStoreHosts = map[string]bool{
	"smartstore.naver.com": true,
	"brand.naver.com":      true,
	"shopping.naver.com":   true,
}

// SmartStoreStrategy reads Naver smart store and brand store pages, which
// print a labelled list price and a labelled discounted price.
type SmartStoreStrategy struct{}

func NewSmartStoreStrategy() *SmartStoreStrategy {
	return &SmartStoreStrategy{}
}

func (s *SmartStoreStrategy) Name() string { return "naver-smartstore" }

func (s *SmartStoreStrategy) Matches(u *url.URL) bool {
	return smartStoreHosts[canonicalHost(u)]
}

func (s *SmartStoreStrategy) Extract(text string, now time.Time) (pricing.ParsedPrice, error) {
	tokens := scanTokens(text)
	if len(tokens) == 0 {
		return pricing.ParsedPrice{}, pricing.Fail(pricing.ErrExtraction, "no currency-marked amounts found")
	}

	regular, hasRegular := labelledAmount(text, tokens, regularPriceLabels)
	sale, hasSale := labelledAmount(text, tokens, salePriceLabels)

	var parsed pricing.ParsedPrice
	switch {
	case hasRegular && hasSale && sale.LessThan(regular):
		parsed = pricing.ParsedPrice{RegularKRW: regular, SaleKRW: &sale, SaleDetected: true}
	case hasRegular && hasSale:
		// A "discount" at or above list price is not a sale.
		if sale.GreaterThan(regular) {
			regular = sale
		}
		parsed = pricing.ParsedPrice{RegularKRW: regular}
	case hasRegular:
		parsed = pricing.ParsedPrice{RegularKRW: regular}
	case hasSale:
		parsed = pricing.ParsedPrice{RegularKRW: sale}
	default:
		var err error
		parsed, err = decideFromTokens(distinctValues(tokens), hasSaleKeyword(text))
		if err != nil {
			return pricing.ParsedPrice{}, err
		}
	}

	return withSaleDates(parsed, text, now), nil
}
