// Package pattern implements the learned description-to-target rule store.
// Patterns are created when a human confirms a create-type suggestion and
// reinforced on every repeat confirmation.
package pattern

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ledgerline/loanbook/internal/match"
)

// fingerprintSize caps a fingerprint at its most significant tokens.
const fingerprintSize = 5

// Token-level fuzzy match weights.
const (
	weightExact     = 1.0
	weightSubstring = 0.75
	weightEditClose = 0.55
	// editSimilarityFloor is the minimum edit-distance similarity for the
	// weightEditClose bucket.
	editSimilarityFloor = 0.75
)

var (
	urlPattern     = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+|\S+\.(?:com|net|org|io|co\.uk|uk)\S*)`)
	phonePattern   = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
	longRefPattern = regexp.MustCompile(`\d{5,}`)
)

// fingerprintStopwords drops transaction jargon, currency codes and common
// payment vocabulary that would otherwise dominate fingerprints.
var fingerprintStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "from": true, "with": true,
	"payment": true, "pymt": true, "transfer": true, "trf": true,
	"tfr": true, "ref": true, "reference": true, "invoice": true,
	"inv": true, "bill": true, "direct": true, "dd": true,
	"standing": true, "order": true, "faster": true, "fps": true,
	"bacs": true, "chaps": true, "sepa": true, "swift": true,
	"card": true, "debit": true, "credit": true, "cash": true,
	"gbp": true, "usd": true, "eur": true, "aud": true, "cad": true,
	"online": true, "mobile": true, "banking": true, "bank": true,
	"account": true, "acct": true,
}

// Fingerprint distills a bank description into up to five significant
// tokens: lowercased, with URLs, phone numbers and long numeric references
// stripped, stopwords dropped.
func Fingerprint(description string) []string {
	s := strings.ToLower(description)
	s = urlPattern.ReplaceAllString(s, " ")
	s = phonePattern.ReplaceAllString(s, " ")
	s = longRefPattern.ReplaceAllString(s, " ")

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var tokens []string
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if fingerprintStopwords[f] {
			continue
		}
		if isNumeric(f) {
			continue
		}
		tokens = append(tokens, f)
		if len(tokens) == fingerprintSize {
			break
		}
	}
	return tokens
}

// Key returns a description's fingerprint in the stable string form used to
// key persisted dismissals. Empty when the description has no significant
// tokens.
func Key(description string) string {
	return strings.Join(Fingerprint(description), " ")
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

// MatchScore fuzzily compares two fingerprints. Each token of a is matched
// against its best counterpart in b: exact equality scores 1.0, substring
// containment 0.75, and near edit-distance matches 0.55. The total matched
// weight is normalized by the larger fingerprint.
func MatchScore(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	var matched float64
	for _, ta := range a {
		matched += bestTokenWeight(ta, b)
	}

	larger := len(a)
	if len(b) > larger {
		larger = len(b)
	}
	return matched / float64(larger)
}

func bestTokenWeight(token string, candidates []string) float64 {
	var best float64
	for _, c := range candidates {
		var w float64
		switch {
		case token == c:
			w = weightExact
		case strings.Contains(token, c) || strings.Contains(c, token):
			w = weightSubstring
		case match.LevenshteinSimilarity(token, c) >= editSimilarityFloor:
			w = weightEditClose
		}
		if w > best {
			best = w
			if best == weightExact {
				break
			}
		}
	}
	return best
}
