package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dvloznov/finance-wrapped/internal/domain"
	"github.com/dvloznov/finance-wrapped/internal/logger"
)

// ReadCSV parses a header-led delimited export. Every row must carry a
// date, merchant, amount and account; description may be blank.
func ReadCSV(r io.Reader, mapping HeaderMapping) ([]*domain.Transaction, error) {
	if err := mapping.Validate(); err != nil {
		return nil, fmt.Errorf("ReadCSV: %w", err)
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("ReadCSV: %w: missing header row", domain.ErrMalformedInput)
	}
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: read header: %w: %v", domain.ErrMalformedInput, err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		index[strings.TrimSpace(h)] = i
	}
	cols := make(map[string]int)
	for _, f := range mapping.required() {
		i, ok := index[f.column]
		if !ok {
			return nil, fmt.Errorf("ReadCSV: %w: column %q for %s not in header", domain.ErrMalformedInput, f.column, f.field)
		}
		cols[f.field] = i
	}

	var out []*domain.Transaction
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadCSV: row %d: %w: %v", row, domain.ErrMalformedInput, err)
		}

		field := func(name string) string { return strings.TrimSpace(rec[cols[name]]) }
		for _, name := range []string{"date", "merchant", "amount", "account_name"} {
			if field(name) == "" {
				return nil, fmt.Errorf("ReadCSV: row %d: %w: empty %s", row, domain.ErrMalformedInput, name)
			}
		}

		date, err := domain.ParseDate(field("date"))
		if err != nil {
			return nil, fmt.Errorf("ReadCSV: row %d: %w", row, err)
		}
		amount, err := domain.ParseAmount(field("amount"))
		if err != nil {
			return nil, fmt.Errorf("ReadCSV: row %d: %w", row, err)
		}

		out = append(out, &domain.Transaction{
			Date:        date,
			Merchant:    field("merchant"),
			Amount:      amount,
			Description: field("description"),
			AccountName: field("account_name"),
		})
	}
	return out, nil
}

// CSVFileSource reads a local export.
type CSVFileSource struct {
	Path    string
	Mapping HeaderMapping
}

func (s *CSVFileSource) Fetch(ctx context.Context) ([]*domain.Transaction, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("CSVFileSource.Fetch: open %q: %w", s.Path, err)
	}
	defer f.Close()

	txs, err := ReadCSV(f, s.Mapping)
	if err != nil {
		return nil, fmt.Errorf("CSVFileSource.Fetch: %s: %w", s.Path, err)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("path", s.Path).Int("transactions", len(txs)).Msg("loaded csv export")
	return txs, nil
}
