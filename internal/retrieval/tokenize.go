package retrieval

import "strings"

const maxQueryTokens = 6

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"has": true, "what": true, "when": true, "where": true, "who": true,
	"which": true, "with": true, "how": true, "why": true, "did": true,
	"does": true, "about": true, "tell": true, "know": true, "this": true,
	"that": true, "have": true, "from": true, "they": true, "them": true,
	"were": true, "been": true, "their": true, "would": true, "there": true,
	"could": true, "should": true, "your": true, "into": true, "more": true,
	"some": true, "other": true, "than": true, "then": true, "these": true,
	"will": true, "just": true, "like": true, "over": true, "also": true,
	"most": true, "such": true, "only": true, "very": true, "much": true,
	"any": true, "may": true, "said": true, "each": true, "she": true,
	"him": true, "his": true, "its": true, "let": true, "lets": true,
	"show": true, "give": true, "list": true, "find": true, "remember": true,
}

// tokenize breaks a free-text query into at most 6 lowercase alphanumeric
// search terms, dropping short words and stopwords.
func tokenize(query string) []string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !isAlnum(r)
	})

	var tokens []string
	for _, w := range words {
		if len(w) < 3 || stopwords[w] {
			continue
		}
		tokens = append(tokens, w)
		if len(tokens) == maxQueryTokens {
			break
		}
	}

	return tokens
}

func isAlnum(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= '0' && r <= '9'
}

// matchExpr builds the FTS5 MATCH expression: tokens quoted and OR-joined,
// falling back to the raw query (quoted) when nothing survives tokenization.
func matchExpr(query string, tokens []string) string {
	if len(tokens) == 0 {
		return quote(query)
	}

	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = quote(t)
	}

	return strings.Join(quoted, " OR ")
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
