package classcache

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-wrapped/internal/domain"
)

func sampleRecords(t *testing.T) []*domain.Transaction {
	t.Helper()
	return []*domain.Transaction{{
		Date:        civil.Date{Year: 2024, Month: 3, Day: 2},
		Merchant:    "Albert Heijn",
		Amount:      decimal.RequireFromString("-23.10"),
		AccountName: "Main",
	}}
}
