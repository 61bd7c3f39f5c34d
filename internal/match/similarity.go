package match

import (
	"math"
	"strings"
	"time"
	"unicode"
)

// AmountClass buckets the closeness of two amounts.
type AmountClass int

// Amount classes, ordered from worst to best.
const (
	AmountFar AmountClass = iota
	AmountClose
	AmountExact
)

// ClassifyAmount compares two amounts as absolute values and buckets their
// difference. Direction is checked separately by callers.
func ClassifyAmount(a, b float64) AmountClass {
	a = math.Abs(a)
	b = math.Abs(b)

	larger := math.Max(a, b)
	if larger == 0 {
		return AmountExact
	}

	diff := math.Abs(a - b)
	switch {
	case diff <= larger*ExactAmountTolerance:
		return AmountExact
	case diff <= larger*CloseAmountTolerance:
		return AmountClose
	}
	return AmountFar
}

// DaysBetween returns the absolute difference between two dates in whole
// calendar days, ignoring time-of-day.
func DaysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(ad.Sub(bd).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// DateProximity scores how near two dates are, from 1.0 (same day) down to
// 0.1. Symmetric and monotonically non-increasing in day difference.
func DateProximity(a, b time.Time) float64 {
	days := DaysBetween(a, b)
	switch {
	case days == 0:
		return 1.0
	case days <= 1:
		return 0.95
	case days <= 3:
		return 0.85
	case days <= 7:
		return 0.70
	case days <= 14:
		return 0.50
	case days <= 30:
		return 0.30
	}
	return 0.1
}

// descriptionStopwords are banking boilerplate tokens that carry no
// discriminating signal between statement lines.
var descriptionStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "from": true, "with": true,
	"payment": true, "transfer": true, "trf": true, "tfr": true,
	"ref": true, "reference": true, "faster": true, "fps": true,
	"bacs": true, "chaps": true, "card": true, "debit": true,
	"credit": true, "gbp": true, "usd": true, "eur": true,
	"via": true, "online": true, "mobile": true, "banking": true,
}

// SignificantTokens extracts the lowercase tokens of a description that are
// worth comparing: at least three characters, not boilerplate, not purely
// numeric.
func SignificantTokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var tokens []string
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if descriptionStopwords[f] {
			continue
		}
		if isNumeric(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

// TokenOverlap returns the fraction of significant tokens shared between two
// descriptions, measured against the larger token set.
func TokenOverlap(a, b string) float64 {
	ta := SignificantTokens(a)
	tb := SignificantTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}

	shared := 0
	seen := make(map[string]bool, len(tb))
	for _, t := range tb {
		if set[t] && !seen[t] {
			shared++
			seen[t] = true
		}
	}

	larger := len(ta)
	if len(tb) > larger {
		larger = len(tb)
	}
	return float64(shared) / float64(larger)
}

// legalSuffixes are stripped from names before containment checks, so that
// "Acme Ltd" still matches a statement line reading "ACME".
var legalSuffixes = []string{
	"limited", "ltd", "llp", "llc", "plc", "inc", "incorporated",
	"company", "co",
}

// NormalizeName lowercases a legal or personal name and strips legal
// suffixes and punctuation.
func NormalizeName(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var kept []string
	for _, f := range fields {
		suffix := false
		for _, s := range legalSuffixes {
			if f == s {
				suffix = true
				break
			}
		}
		if !suffix {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

// ContainsName reports whether the bank description contains the counterpart
// name in normalized form.
func ContainsName(description, name string) bool {
	normName := NormalizeName(name)
	if normName == "" {
		return false
	}
	normDesc := NormalizeName(description)
	return strings.Contains(normDesc, normName)
}

// ContainsNameToken reports whether any single token of the name (at least
// four characters, to avoid noise from initials and short words) appears in
// the description.
func ContainsNameToken(description, name string) bool {
	normDesc := " " + NormalizeName(description) + " "
	for _, tok := range strings.Fields(NormalizeName(name)) {
		if len(tok) < 4 {
			continue
		}
		if strings.Contains(normDesc, " "+tok+" ") {
			return true
		}
	}
	return false
}

// LevenshteinSimilarity returns 1 minus the normalized edit distance between
// two strings, case-insensitively.
func LevenshteinSimilarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	dist := levenshtein(a, b)
	larger := len(a)
	if len(b) > larger {
		larger = len(b)
	}
	return 1.0 - float64(dist)/float64(larger)
}

func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
