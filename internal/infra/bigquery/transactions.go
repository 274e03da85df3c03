package bigquery

import (
	"fmt"
	"math/big"
	"strings"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-wrapped/internal/domain"
)

// numericScale is the fixed scale of BigQuery NUMERIC values.
const numericScale = 9

// TransactionRow is one row of the transactions table the analytics read.
type TransactionRow struct {
	UserID string `bigquery:"user_id"` // NULLABLE

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	Merchant        string     `bigquery:"merchant"`         // REQUIRED
	Amount          *big.Rat   `bigquery:"amount"`           // REQUIRED NUMERIC

	Description bigquery.NullString `bigquery:"description"`  // NULLABLE
	AccountName string              `bigquery:"account_name"` // REQUIRED
}

// ToDomain converts a row into an unclassified domain record.
func (r *TransactionRow) ToDomain() (*domain.Transaction, error) {
	if r.Amount == nil {
		return nil, fmt.Errorf("ToDomain: %w: amount is NULL", domain.ErrMalformedInput)
	}
	amount, err := decimal.NewFromString(r.Amount.FloatString(numericScale))
	if err != nil {
		return nil, fmt.Errorf("ToDomain: %w: amount %s", domain.ErrMalformedInput, r.Amount.String())
	}

	tx := &domain.Transaction{
		Date:        r.TransactionDate,
		Merchant:    strings.TrimSpace(r.Merchant),
		Amount:      amount,
		Description: r.Description.StringVal,
		AccountName: strings.TrimSpace(r.AccountName),
	}
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("ToDomain: %w", err)
	}
	return tx, nil
}
