package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KI7MT/ki7mt-ssi-apps/internal/dataset"
)

// DefaultBatchSize is the number of spectrum rows per insert block when
// Sink.BatchSize is unset.
const DefaultBatchSize = 100000

// Catalog records one row per loaded dataset. *Warehouse satisfies it.
type Catalog interface {
	PutDataset(ctx context.Context, rec Record) error
}

// Sink implements pipeline.Sink. Spectrum rows go first; the catalog row
// is written only once every block has been accepted.
type Sink struct {
	Database  string
	Blocks    BlockInserter
	Catalog   Catalog
	BatchSize int
	Now       func() time.Time
	Logger    *slog.Logger
}

// Persist implements pipeline.Sink.
func (s *Sink) Persist(ctx context.Context, name string, ds *dataset.Dataset) (string, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	loadedAt := now().UTC().Truncate(time.Second)
	size := s.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	table := fqn(s.Database, SpectrumTable)

	batch := NewSpectrumBatch()
	days, times, w, ssi := ds.T(), ds.Times(), ds.W(), ds.SSI()
	var sent int
	for i, day := range days {
		for j, wl := range w {
			batch.AddRecord(name, day, times[i], wl, ssi[i][j], loadedAt)
			if batch.Len() >= size {
				if err := s.flush(ctx, table, batch); err != nil {
					return "", fmt.Errorf("insert %s: %w", name, err)
				}
				sent += size
			}
		}
	}
	rest := batch.Len()
	if err := s.flush(ctx, table, batch); err != nil {
		return "", fmt.Errorf("insert %s: %w", name, err)
	}
	sent += rest

	rec := Record{
		Name:            name,
		NT:              uint32(ds.NT()),
		NW:              uint32(ds.NW()),
		TimeIndependent: ds.TimeIndependent(),
		Attrs:           ds.Attrs(),
		LoadedAt:        loadedAt,
	}
	if err := s.Catalog.PutDataset(ctx, rec); err != nil {
		return "", err
	}
	if s.Logger != nil {
		s.Logger.Debug("loaded", slog.String("name", name), slog.Int("rows", sent))
	}
	return fmt.Sprintf("clickhouse://%s?dataset=%s", table, name), nil
}

func (s *Sink) flush(ctx context.Context, table string, batch *SpectrumBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := flushBatch(ctx, s.Blocks, table, batch); err != nil {
		return err
	}
	batch.Reset()
	return nil
}
