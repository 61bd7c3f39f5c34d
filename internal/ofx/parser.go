// Package ofx parses OFX/QFX bank statement exports into bank entries.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/google/uuid"
	"github.com/ledgerline/loanbook/internal/model"
)

// Parser implements OFX/QFX file parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	// Trim any leading whitespace or blank lines before the header
	content = strings.TrimLeft(content, " \t\r\n")

	// Fix mixed-case SEVERITY values (should be INFO, WARN, or ERROR)
	severityRegex := regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	content = severityRegex.ReplaceAllStringFunc(content, func(match string) string {
		return strings.ToUpper(match)
	})

	// Fix missing closing angle brackets in SGML-style OFX files
	tagFixRegex := regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	content = tagFixRegex.ReplaceAllString(content, "$1>")

	return content
}

// ParseFile parses an OFX/QFX file and returns bank entries ready for
// import. Amounts keep the OFX sign convention: credits positive, debits
// negative.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]model.BankEntry, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	processedContent := p.preprocessOFX(string(content))

	resp, err := ofxgo.ParseResponse(strings.NewReader(processedContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var entries []model.BankEntry
	var statements int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			statements++
			stmtEntries, err := p.processStatement(stmt)
			if err != nil {
				slog.Warn("Failed to process bank statement",
					"account", stmt.BankAcctFrom.AcctID,
					"error", err)
				continue
			}
			entries = append(entries, stmtEntries...)
		}
	}

	slog.Info("Parsed OFX file",
		"total_entries", len(entries),
		"statements", statements)

	return entries, nil
}

// processStatement converts OFX bank transactions to bank entries.
func (p *Parser) processStatement(stmt *ofxgo.StatementResponse) ([]model.BankEntry, error) {
	if stmt.BankTranList == nil {
		return nil, nil
	}

	var entries []model.BankEntry
	accountID := string(stmt.BankAcctFrom.AcctID)

	for _, ofxTx := range stmt.BankTranList.Transactions {
		entries = append(entries, p.convertTransaction(ofxTx, accountID))
	}

	return entries, nil
}

// convertTransaction converts one OFX transaction to a bank entry.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction, accountID string) model.BankEntry {
	amount, _ := ofxTx.TrnAmt.Float64()

	id := string(ofxTx.FiTID)
	if id == "" {
		id = uuid.New().String()
	}

	entry := model.BankEntry{
		ID:          id,
		Date:        ofxTx.DtPosted.Time,
		Description: p.extractDescription(ofxTx),
		Reference:   string(ofxTx.CheckNum),
		Source:      accountID,
		Amount:      amount,
	}
	entry.Hash = entry.GenerateHash()

	return entry
}

// extractDescription tries to get a clean counterparty description from OFX
// data.
func (p *Parser) extractDescription(tx ofxgo.Transaction) string {
	// Prefer PAYEE if available (cleaner name)
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)

	// Use MEMO field if NAME is generic
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}

	name = strings.TrimSpace(name)

	// Remove common prefixes
	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"CHECK CARD ",
		"FASTER PAYMENT ",
		"BANK TRANSFER ",
	}

	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Clean up date patterns like "MM/DD" at the beginning
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

// isGenericDescription checks if a transaction name is too generic to be
// useful for matching.
func isGenericDescription(name string) bool {
	generic := []string{
		"DEBIT",
		"CREDIT",
		"PURCHASE",
		"PAYMENT",
		"TRANSFER",
		"POS TRANSACTION",
	}

	upperName := strings.ToUpper(name)
	for _, g := range generic {
		if upperName == g {
			return true
		}
	}
	return false
}
