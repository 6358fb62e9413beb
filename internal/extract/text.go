package extract

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// CleanText reduces page markup to compact visible text: non-visible element
// bodies are dropped, tags become spaces, entities are decoded, full-width
// forms are folded by NFKC and whitespace runs collapse to one space.
func CleanText(markup string) string {
	z := html.NewTokenizer(strings.NewReader(markup))
	var b strings.Builder
	skipDepth := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or truncated markup; either way keep what was read.
			return collapse(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if skippedElements[string(name)] {
				skipDepth++
				continue
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if skippedElements[string(name)] {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}
