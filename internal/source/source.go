// Package source loads raw transactions for analysis from delimited files,
// Cloud Storage objects or a BigQuery table.
package source

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/dvloznov/finance-wrapped/internal/domain"
)

// TransactionSource supplies uncategorized transactions.
type TransactionSource interface {
	Fetch(ctx context.Context) ([]*domain.Transaction, error)
}

// HeaderMapping maps record fields to column headers of a delimited file.
// Category is optional and ignored: records are always reclassified.
type HeaderMapping struct {
	Date        string `mapstructure:"date" json:"date"`
	Merchant    string `mapstructure:"merchant" json:"merchant"`
	Amount      string `mapstructure:"amount" json:"amount"`
	Description string `mapstructure:"description" json:"description"`
	Category    string `mapstructure:"category" json:"category,omitempty"`
	AccountName string `mapstructure:"account_name" json:"account_name"`
}

// DefaultHeaderMapping matches the column names of the bundled persona exports.
func DefaultHeaderMapping() HeaderMapping {
	return HeaderMapping{
		Date:        "Timestamp",
		Merchant:    "Merchant",
		Amount:      "Amount",
		Description: "Description",
		Category:    "Category",
		AccountName: "Account",
	}
}

func (m HeaderMapping) required() []struct{ field, column string } {
	return []struct{ field, column string }{
		{"date", m.Date},
		{"merchant", m.Merchant},
		{"amount", m.Amount},
		{"description", m.Description},
		{"account_name", m.AccountName},
	}
}

// Validate reports every missing required field and every column claimed by
// more than one field.
func (m HeaderMapping) Validate() error {
	var result *multierror.Error

	owners := make(map[string]string)
	claim := func(field, column string) {
		if prev, ok := owners[column]; ok {
			result = multierror.Append(result, fmt.Errorf("column %q mapped to both %s and %s", column, prev, field))
			return
		}
		owners[column] = field
	}

	for _, f := range m.required() {
		if f.column == "" {
			result = multierror.Append(result, fmt.Errorf("missing column for %s", f.field))
			continue
		}
		claim(f.field, f.column)
	}
	if m.Category != "" {
		claim("category", m.Category)
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("HeaderMapping.Validate: %w: %w", domain.ErrMalformedInput, err)
	}
	return nil
}

// PersonaCSVPath returns the demo export for a persona id: <dir>/<alias>.csv.
func PersonaCSVPath(dir string, personas domain.PersonaTable, userID int) (string, error) {
	p, ok := personas.Get(userID)
	if !ok {
		return "", fmt.Errorf("PersonaCSVPath: unknown user id %d", userID)
	}
	return filepath.Join(dir, p.CharacterAlias+".csv"), nil
}
