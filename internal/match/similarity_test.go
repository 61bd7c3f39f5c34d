package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestClassifyAmount(t *testing.T) {
	tests := []struct {
		name string
		a    float64
		b    float64
		want AmountClass
	}{
		{name: "identical", a: 500.00, b: 500.00, want: AmountExact},
		{name: "within 0.1 percent", a: 1000.00, b: 1000.50, want: AmountExact},
		{name: "just past exact tolerance", a: 1000.00, b: 1002.00, want: AmountClose},
		{name: "within 5 percent", a: 1000.00, b: 1040.00, want: AmountClose},
		{name: "exactly 5 percent", a: 1000.00, b: 1050.00, want: AmountClose},
		{name: "past 5 percent", a: 1000.00, b: 1051.00, want: AmountFar},
		{name: "wildly different", a: 100.00, b: 7500.00, want: AmountFar},
		{name: "sign ignored", a: -500.00, b: 500.00, want: AmountExact},
		{name: "both zero", a: 0, b: 0, want: AmountExact},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyAmount(tt.a, tt.b))
			// Classification is symmetric.
			assert.Equal(t, tt.want, ClassifyAmount(tt.b, tt.a))
		})
	}
}

func TestDaysBetween(t *testing.T) {
	base := date(2024, time.March, 15)

	assert.Equal(t, 0, DaysBetween(base, base))
	assert.Equal(t, 3, DaysBetween(base, date(2024, time.March, 18)))
	assert.Equal(t, 3, DaysBetween(date(2024, time.March, 18), base))

	// Time-of-day is ignored.
	late := time.Date(2024, time.March, 15, 23, 59, 0, 0, time.UTC)
	next := time.Date(2024, time.March, 16, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysBetween(late, next))
}

func TestDateProximity(t *testing.T) {
	base := date(2024, time.June, 1)

	tests := []struct {
		days int
		want float64
	}{
		{0, 1.0},
		{1, 0.95},
		{3, 0.85},
		{7, 0.70},
		{14, 0.50},
		{30, 0.30},
		{31, 0.1},
		{365, 0.1},
	}

	for _, tt := range tests {
		other := base.AddDate(0, 0, tt.days)
		assert.InDelta(t, tt.want, DateProximity(base, other), 0.001, "days=%d", tt.days)
		// Symmetric.
		assert.InDelta(t, tt.want, DateProximity(other, base), 0.001, "days=%d reversed", tt.days)
	}

	// Monotonically non-increasing in day difference.
	prev := 1.1
	for d := 0; d <= 40; d++ {
		p := DateProximity(base, base.AddDate(0, 0, d))
		assert.LessOrEqual(t, p, prev, "proximity increased at %d days", d)
		prev = p
	}
}

func TestSignificantTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "strips stopwords and short tokens",
			input: "FASTER PAYMENT FROM ACME LTD REF 123456",
			want:  []string{"acme", "ltd"},
		},
		{
			name:  "pure numbers dropped",
			input: "TFR 9982 4411",
			want:  nil,
		},
		{
			name:  "mixed alphanumerics kept",
			input: "INV2024 acme",
			want:  []string{"inv2024", "acme"},
		},
		{
			name:  "punctuation splits tokens",
			input: "SMITH,J/LOAN-REPAY",
			want:  []string{"smith", "loan", "repay"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SignificantTokens(tt.input))
		})
	}
}

func TestTokenOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, TokenOverlap("ACME INVOICE", "acme invoice"), 0.001)
	assert.InDelta(t, 0.5, TokenOverlap("acme invoice", "acme receipt"), 0.001)
	assert.InDelta(t, 0.0, TokenOverlap("acme invoice", "globex receipt"), 0.001)
	// Normalized by the larger token set.
	assert.InDelta(t, 1.0/3.0, TokenOverlap("acme", "acme widgets division"), 0.001)
	// Empty sides score zero.
	assert.Zero(t, TokenOverlap("", "acme"))
	assert.Zero(t, TokenOverlap("123 456", "acme"))
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Acme Ltd", "acme"},
		{"ACME LIMITED", "acme"},
		{"Smith & Jones LLP", "smith jones"},
		{"J. Smith", "j smith"},
		{"Globex Co.", "globex"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.input), "input %q", tt.input)
	}
}

func TestContainsName(t *testing.T) {
	assert.True(t, ContainsName("FASTER PAYMENT ACME LTD INV 42", "Acme Limited"))
	assert.True(t, ContainsName("acme ltd payment", "ACME"))
	assert.False(t, ContainsName("GLOBEX PAYMENT", "Acme Ltd"))
	assert.False(t, ContainsName("anything", ""))
}

func TestContainsNameToken(t *testing.T) {
	// Full name absent but one token present.
	assert.True(t, ContainsNameToken("PAYMENT JONES 4411", "Smith Jones Partners"))
	// Short tokens (initials) never match.
	assert.False(t, ContainsNameToken("J PAYMENT", "J Smith"))
	assert.False(t, ContainsNameToken("PAYMENT RECEIVED", "Acme Ltd"))
}

func TestLevenshteinSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, LevenshteinSimilarity("acme", "ACME"), 0.001)
	assert.InDelta(t, 0.75, LevenshteinSimilarity("acme", "acmo"), 0.001)
	assert.Zero(t, LevenshteinSimilarity("", "acme"))
	assert.Less(t, LevenshteinSimilarity("acme", "globex"), 0.5)
}
