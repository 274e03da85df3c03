package pipeline

import (
	"fmt"
	"strings"

	"github.com/dvloznov/finance-wrapped/internal/domain"
)

// validateInput checks every raw record and sanitizes descriptions in place.
// Categories supplied by a source are discarded; the classifier owns them.
func validateInput(records []*domain.Transaction) error {
	for i, r := range records {
		if r == nil {
			return fmt.Errorf("validateInput: record %d: %w: nil record", i, domain.ErrMalformedInput)
		}
		if err := r.Validate(); err != nil {
			return fmt.Errorf("validateInput: record %d: %w", i, err)
		}
		r.Merchant = strings.TrimSpace(r.Merchant)
		r.AccountName = strings.TrimSpace(r.AccountName)
		r.Description = domain.SanitizeDescription(r.Description)
		r.Category = ""
		r.Reasoning = ""
	}
	return nil
}

// requireCategorized checks that every record carries a taxonomy category.
func requireCategorized(records []*domain.Transaction, tax domain.Taxonomy) error {
	for i, r := range records {
		if r.Category == "" {
			return fmt.Errorf("record %d (%s): %w: uncategorized", i, r.Merchant, domain.ErrMalformedInput)
		}
		if !tax.Contains(r.Category) {
			return fmt.Errorf("record %d (%s): %w: unknown category %q", i, r.Merchant, domain.ErrMalformedInput, r.Category)
		}
	}
	return nil
}

// splitCategorized partitions records into classified and uncategorized ones,
// preserving order.
func splitCategorized(records []*domain.Transaction) (kept, dropped []*domain.Transaction) {
	kept = make([]*domain.Transaction, 0, len(records))
	for _, r := range records {
		if r.Category == "" {
			dropped = append(dropped, r)
			continue
		}
		kept = append(kept, r)
	}
	return kept, dropped
}
