package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// amount is thousands-separated digits or a bare run of at least three
// digits. The won marker may follow (원) or precede (₩, KRW).
const amountPattern = `(\d{1,3}(?:,\d{3})+|\d{3,})`

var priceTokenRe = regexp.MustCompile(
	`(?:₩|KRW)\s*` + amountPattern + `|` + amountPattern + `\s*원`,
)

// LookaheadRunes bounds how far after a label the labelled amount may start.
const LookaheadRunes = 80

type priceToken struct {
	value decimal.Decimal
	start int
}

func scanTokens(text string) []priceToken {
	matches := priceTokenRe.FindAllStringSubmatchIndex(text, -1)
	tokens := make([]priceToken, 0, len(matches))
	for _, m := range matches {
		var raw string
		switch {
		case m[2] >= 0:
			raw = text[m[2]:m[3]]
		case m[4] >= 0:
			raw = text[m[4]:m[5]]
		default:
			continue
		}
		value, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
		if err != nil || !value.IsPositive() {
			continue
		}
		tokens = append(tokens, priceToken{value: value, start: m[0]})
	}
	return tokens
}

// distinctValues keeps the first occurrence of every amount, in document order.
func distinctValues(tokens []priceToken) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(tokens))
	for _, tok := range tokens {
		seen := false
		for _, v := range out {
			if v.Equal(tok.value) {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, tok.value)
		}
	}
	return out
}

// labelledAmount returns the first token that starts within LookaheadRunes
// runes after any occurrence of any label. Labels are tried in order.
func labelledAmount(text string, tokens []priceToken, labels []string) (decimal.Decimal, bool) {
	for _, label := range labels {
		offset := 0
		for {
			idx := strings.Index(text[offset:], label)
			if idx < 0 {
				break
			}
			from := offset + idx + len(label)
			to := advanceRunes(text, from, LookaheadRunes)
			for _, tok := range tokens {
				if tok.start >= from && tok.start < to {
					return tok.value, true
				}
			}
			offset = from
		}
	}
	return decimal.Zero, false
}

func advanceRunes(text string, from, n int) int {
	pos := from
	for i := 0; i < n && pos < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[pos:])
		pos += size
	}
	return pos
}
