package bigquery

import (
	"context"
	"fmt"
	"regexp"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
)

// TransactionFilter narrows a transactions query. Zero fields are ignored.
type TransactionFilter struct {
	UserID    string
	StartDate civil.Date
	EndDate   civil.Date
}

var tableRefRe = regexp.MustCompile("^[A-Za-z0-9_.-]+$")

// TransactionReader reads transaction rows from a BigQuery table.
type TransactionReader struct {
	client *bigquery.Client
	table  string
}

// NewTransactionReader creates a reader for a fully qualified table
// ("project.dataset.table" or "dataset.table").
func NewTransactionReader(ctx context.Context, projectID, table string) (*TransactionReader, error) {
	if !tableRefRe.MatchString(table) {
		return nil, fmt.Errorf("NewTransactionReader: invalid table reference %q", table)
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewTransactionReader: bigquery client: %w", err)
	}
	return &TransactionReader{client: client, table: table}, nil
}

// Close closes the BigQuery client connection.
func (r *TransactionReader) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// QueryTransactions returns the rows matching f ordered by date.
func (r *TransactionReader) QueryTransactions(ctx context.Context, f TransactionFilter) ([]*TransactionRow, error) {
	q := r.client.Query(buildTransactionsQuery(r.table))
	q.Parameters = transactionsQueryParams(f)

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactions: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactions: iter next: %w", err)
		}
		rows = append(rows, &row)
	}

	return rows, nil
}

func buildTransactionsQuery(table string) string {
	return "SELECT\n" +
		"\tt.user_id,\n" +
		"\tt.transaction_date,\n" +
		"\tt.merchant,\n" +
		"\tt.amount,\n" +
		"\tt.description,\n" +
		"\tt.account_name\n" +
		"FROM `" + table + "` t\n" +
		"WHERE (@user_id = '' OR t.user_id = @user_id)\n" +
		"  AND (@start_date = '' OR t.transaction_date >= SAFE_CAST(@start_date AS DATE))\n" +
		"  AND (@end_date = '' OR t.transaction_date <= SAFE_CAST(@end_date AS DATE))\n" +
		"ORDER BY t.transaction_date"
}

func transactionsQueryParams(f TransactionFilter) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "user_id", Value: f.UserID},
		{Name: "start_date", Value: dateParam(f.StartDate)},
		{Name: "end_date", Value: dateParam(f.EndDate)},
	}
}

func dateParam(d civil.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}
