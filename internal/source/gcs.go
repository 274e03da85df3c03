package source

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-wrapped/internal/domain"
	"github.com/dvloznov/finance-wrapped/internal/gcs"
	"github.com/dvloznov/finance-wrapped/internal/logger"
)

// GCSSource reads an export stored at a gs:// URI.
type GCSSource struct {
	Store   gcs.ObjectStore
	URI     string
	Mapping HeaderMapping
}

func (s *GCSSource) Fetch(ctx context.Context) ([]*domain.Transaction, error) {
	rc, err := gcs.Open(ctx, s.Store, s.URI)
	if err != nil {
		return nil, fmt.Errorf("GCSSource.Fetch: %w", err)
	}
	defer rc.Close()

	txs, err := ReadCSV(rc, s.Mapping)
	if err != nil {
		return nil, fmt.Errorf("GCSSource.Fetch: %s: %w", s.URI, err)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("uri", s.URI).Int("transactions", len(txs)).Msg("loaded gcs export")
	return txs, nil
}
