package source

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-wrapped/internal/domain"
	bq "github.com/dvloznov/finance-wrapped/internal/infra/bigquery"
	"github.com/dvloznov/finance-wrapped/internal/logger"
)

// TransactionQuerier is implemented by *bigquery.TransactionReader.
type TransactionQuerier interface {
	QueryTransactions(ctx context.Context, f bq.TransactionFilter) ([]*bq.TransactionRow, error)
}

// BigQuerySource reads transactions from a warehouse table.
type BigQuerySource struct {
	Reader TransactionQuerier
	Filter bq.TransactionFilter
}

func (s *BigQuerySource) Fetch(ctx context.Context) ([]*domain.Transaction, error) {
	rows, err := s.Reader.QueryTransactions(ctx, s.Filter)
	if err != nil {
		return nil, fmt.Errorf("BigQuerySource.Fetch: %w", err)
	}

	txs := make([]*domain.Transaction, 0, len(rows))
	for i, r := range rows {
		tx, err := r.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("BigQuerySource.Fetch: row %d: %w", i+1, err)
		}
		txs = append(txs, tx)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("user_id", s.Filter.UserID).Int("transactions", len(txs)).Msg("loaded bigquery transactions")
	return txs, nil
}

var (
	_ TransactionSource  = (*CSVFileSource)(nil)
	_ TransactionSource  = (*GCSSource)(nil)
	_ TransactionSource  = (*BigQuerySource)(nil)
	_ TransactionQuerier = (*bq.TransactionReader)(nil)
)
