package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "strips stopwords and long references",
			input: "DIRECT DEBIT ACME LTD INVOICE 8839221",
			want:  []string{"acme", "ltd"},
		},
		{
			name:  "urls removed",
			input: "PAYPAL www.example.com SUBSCRIPTION",
			want:  []string{"paypal", "subscription"},
		},
		{
			name:  "phone numbers removed",
			input: "MOBILE TOPUP +44 7911 123456 VODAFONE",
			want:  []string{"topup", "vodafone"},
		},
		{
			name:  "capped at five tokens",
			input: "alpha bravo charlie delta echo foxtrot golf",
			want:  []string{"alpha", "bravo", "charlie", "delta", "echo"},
		},
		{
			name:  "empty after stripping",
			input: "REF 12345678 GBP",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fingerprint(tt.input))
		})
	}
}

func TestMatchScore(t *testing.T) {
	t.Run("identical fingerprints", func(t *testing.T) {
		fp := []string{"acme", "ltd"}
		assert.InDelta(t, 1.0, MatchScore(fp, fp), 0.001)
	})

	t.Run("variant descriptions of one counterparty", func(t *testing.T) {
		a := Fingerprint("acme ltd invoice")
		b := Fingerprint("ACME LTD INV 2")
		// "invoice" and "inv" are both stopwords, leaving {acme, ltd} on
		// both sides.
		assert.InDelta(t, 1.0, MatchScore(a, b), 0.001)
	})

	t.Run("substring containment scores 0.75", func(t *testing.T) {
		assert.InDelta(t, 0.75, MatchScore([]string{"acmegroup"}, []string{"acme"}), 0.001)
	})

	t.Run("near edit distance scores 0.55", func(t *testing.T) {
		// "vodafone" vs "vodafon8" shares 7 of 8 runes: similarity 0.875.
		assert.InDelta(t, 0.55, MatchScore([]string{"vodafone"}, []string{"vodafon8"}), 0.001)
	})

	t.Run("normalized by larger fingerprint", func(t *testing.T) {
		a := []string{"acme"}
		b := []string{"acme", "widgets", "division", "north"}
		assert.InDelta(t, 0.25, MatchScore(a, b), 0.001)
	})

	t.Run("empty sides score zero", func(t *testing.T) {
		assert.Zero(t, MatchScore(nil, []string{"acme"}))
		assert.Zero(t, MatchScore([]string{"acme"}, nil))
	})
}
