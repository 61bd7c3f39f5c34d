package ofx

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/ledgerline/loanbook/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sample OFX data for testing.
const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>GBP
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>500.00
<FITID>2024011501
<NAME>ACME LTD REPAYMENT
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240120120000[0:GMT]
<TRNAMT>-125.00
<FITID>2024012001
<NAME>HMRC VAT
</STMTTRN>
<STMTTRN>
<TRNTYPE>CHECK
<DTPOSTED>20240125120000[0:GMT]
<TRNAMT>-750.00
<FITID>2024012501
<CHECKNUM>1234
<NAME>SMITH DISBURSEMENT
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func TestParseFile(t *testing.T) {
	tests := []struct {
		name          string
		ofxData       string
		expectedCount int
		expectedError bool
	}{
		{
			name:          "valid bank statement",
			ofxData:       sampleBankOFX,
			expectedCount: 3,
			expectedError: false,
		},
		{
			name:          "invalid OFX data",
			ofxData:       "not valid OFX",
			expectedCount: 0,
			expectedError: true,
		},
		{
			name:          "empty OFX",
			ofxData:       "",
			expectedCount: 0,
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewParser()
			reader := strings.NewReader(tt.ofxData)

			entries, err := parser.ParseFile(context.Background(), reader)

			if tt.expectedError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Len(t, entries, tt.expectedCount)
			}
		})
	}
}

func TestParseBankEntries(t *testing.T) {
	parser := NewParser()
	reader := strings.NewReader(sampleBankOFX)

	entries, err := parser.ParseFile(context.Background(), reader)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Credit keeps its positive sign.
	e1 := entries[0]
	assert.Equal(t, "2024011501", e1.ID)
	assert.Equal(t, "ACME LTD REPAYMENT", e1.Description)
	assert.Equal(t, 500.00, e1.Amount)
	assert.Equal(t, model.DirectionCredit, e1.Direction())
	assert.Equal(t, "1234567890", e1.Source)
	assert.NotEmpty(t, e1.Hash)
	// Compare just the date components, ignoring timezone.
	assert.Equal(t, 2024, e1.Date.Year())
	assert.Equal(t, time.January, e1.Date.Month())
	assert.Equal(t, 15, e1.Date.Day())

	// Debit stays negative.
	e2 := entries[1]
	assert.Equal(t, -125.00, e2.Amount)
	assert.Equal(t, model.DirectionDebit, e2.Direction())

	// Check number lands in the reference field.
	e3 := entries[2]
	assert.Equal(t, "1234", e3.Reference)
	assert.Equal(t, -750.00, e3.Amount)
}

func TestExtractDescription(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "remove faster payment prefix",
			input:    "FASTER PAYMENT ACME LTD",
			expected: "ACME LTD",
		},
		{
			name:     "remove bank transfer prefix",
			input:    "BANK TRANSFER SMITH J",
			expected: "SMITH J",
		},
		{
			name:     "keep clean name",
			input:    "ACME LTD",
			expected: "ACME LTD",
		},
		{
			name:     "trim whitespace",
			input:    "  GLOBEX  ",
			expected: "GLOBEX",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := ofxgo.Transaction{
				Name: ofxgo.String(tt.input),
			}
			result := parser.extractDescription(tx)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestEntryDeduplicationHash(t *testing.T) {
	e1 := model.BankEntry{
		ID:          "TX001",
		Date:        time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Description: "ACME LTD",
		Amount:      500.00,
		Source:      "1234567890",
	}
	e1.Hash = e1.GenerateHash()

	// A re-imported line with a different bank-side id still deduplicates.
	e2 := e1
	e2.ID = "TX002"
	e2.Hash = e2.GenerateHash()
	assert.Equal(t, e1.Hash, e2.Hash)

	e3 := e1
	e3.Amount = 501.00
	e3.Hash = e3.GenerateHash()
	assert.NotEqual(t, e1.Hash, e3.Hash)

	e4 := e1
	e4.Date = e1.Date.AddDate(0, 0, 1)
	e4.Hash = e4.GenerateHash()
	assert.NotEqual(t, e1.Hash, e4.Hash)
}
