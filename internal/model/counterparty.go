package model

// Counterparty is a borrower or investor contact used for name matching.
type Counterparty struct {
	ID        string
	Name      string
	LegalName string
	Email     string
	OwnerType OwnerType
	OwnerID   string
}

// DisplayName prefers the legal name when one is recorded.
func (c *Counterparty) DisplayName() string {
	if c.LegalName != "" {
		return c.LegalName
	}
	return c.Name
}
