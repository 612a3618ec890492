// Package index provides the in-memory retrieval indexes: a dense vector
// index searched by L2 distance and a BM25 keyword index. Instances are built
// fully before use and never mutated after publication; concurrent readers
// need no locking.
package index

import (
	"strings"
	"unicode"
)

// stopwords are excluded from keyword scoring and coverage checks. The set is
// intentionally small; support queries are short and aggressive filtering
// hurts recall more than it helps precision.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "can": {}, "do": {}, "does": {}, "for": {}, "from": {},
	"how": {}, "i": {}, "in": {}, "is": {}, "it": {}, "my": {}, "of": {},
	"on": {}, "or": {}, "the": {}, "to": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "who": {}, "why": {}, "with": {}, "you": {},
	"your": {},
}

// Tokenize lowercases the input, splits on whitespace, and trims surrounding
// punctuation from each token. The same tokenization must be applied to corpus
// text and queries; keyword scores are only comparable when both sides agree.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))

	for _, f := range fields {
		tok := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}

	return tokens
}

// FilterStopwords returns tokens with stop-words removed.
func FilterStopwords(tokens []string) []string {
	out := make([]string, 0, len(tokens))

	for _, tok := range tokens {
		if _, stop := stopwords[tok]; !stop {
			out = append(out, tok)
		}
	}

	return out
}

// IsStopword reports whether the token is in the stop-word set.
func IsStopword(token string) bool {
	_, ok := stopwords[token]

	return ok
}
