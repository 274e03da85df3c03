package domain

import (
	"fmt"
	"regexp"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Transaction represents one transaction flowing through the analytics pipeline.
// Sources populate Date, Merchant, Amount, Description and AccountName; the
// classifier fills in Category and Reasoning.
type Transaction struct {
	Date        civil.Date      `json:"date"`         // "YYYY-MM-DD"
	Merchant    string          `json:"merchant"`     // counterparty display name
	Amount      decimal.Decimal `json:"amount"`       // negative = OUT, positive = IN
	Description string          `json:"description"`  // sanitized free text
	AccountName string          `json:"account_name"` // logical account label

	Category  string `json:"category,omitempty"`  // empty until classified
	Reasoning string `json:"reasoning,omitempty"` // diagnostic only
}

// IsOutflow reports whether the transaction moves money out of the account.
func (t *Transaction) IsOutflow() bool {
	return t.Amount.IsNegative()
}

// Month returns the calendar month of the transaction as "YYYY-MM".
func (t *Transaction) Month() string {
	return fmt.Sprintf("%04d-%02d", t.Date.Year, int(t.Date.Month))
}

// Validate checks that all source-supplied fields are present and well formed.
func (t *Transaction) Validate() error {
	if !t.Date.IsValid() {
		return fmt.Errorf("%w: invalid date %q", ErrMalformedInput, t.Date.String())
	}
	if strings.TrimSpace(t.Merchant) == "" {
		return fmt.Errorf("%w: merchant is empty", ErrMalformedInput)
	}
	if strings.TrimSpace(t.AccountName) == "" {
		return fmt.Errorf("%w: account_name is empty", ErrMalformedInput)
	}
	return nil
}

var punctuationRe = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// SanitizeDescription strips punctuation, trims and lower-cases a description.
// e.g. "Coffee @ Bar-Centraal!" → "coffee  barcentraal"
func SanitizeDescription(s string) string {
	return strings.ToLower(strings.TrimSpace(punctuationRe.ReplaceAllString(s, "")))
}

// ParseDate parses an ISO date ("YYYY-MM-DD"). A trailing time component
// ("2024-03-01T10:22:00Z", "2024-03-01 10:22:00") is tolerated and dropped.
func ParseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i > 0 {
		s = s[:i]
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w: invalid date %q", ErrMalformedInput, s)
	}
	return d, nil
}

// ParseAmount parses a signed decimal amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q", ErrMalformedInput, s)
	}
	return d, nil
}
