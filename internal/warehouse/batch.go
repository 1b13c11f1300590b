package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/ClickHouse/ch-go/proto"
)

// SpectrumBatch holds column data for native insert
type SpectrumBatch struct {
	Dataset    *proto.ColStr
	Days       *proto.ColFloat64
	Date       *proto.ColDate32
	Wavelength *proto.ColFloat32
	SSI        *proto.ColFloat32
	LoadedAt   *proto.ColDateTime
}

func NewSpectrumBatch() *SpectrumBatch {
	return &SpectrumBatch{
		Dataset:    new(proto.ColStr),
		Days:       new(proto.ColFloat64),
		Date:       new(proto.ColDate32),
		Wavelength: new(proto.ColFloat32),
		SSI:        new(proto.ColFloat32),
		LoadedAt:   new(proto.ColDateTime),
	}
}

func (b *SpectrumBatch) Reset() {
	b.Dataset.Reset()
	b.Days.Reset()
	b.Date.Reset()
	b.Wavelength.Reset()
	b.SSI.Reset()
	b.LoadedAt.Reset()
}

func (b *SpectrumBatch) Len() int {
	return b.Dataset.Rows()
}

func (b *SpectrumBatch) Input() proto.Input {
	return proto.Input{
		{Name: "dataset", Data: b.Dataset},
		{Name: "t", Data: b.Days},
		{Name: "date", Data: b.Date},
		{Name: "w", Data: b.Wavelength},
		{Name: "ssi", Data: b.SSI},
		{Name: "loaded_at", Data: b.LoadedAt},
	}
}

func (b *SpectrumBatch) AddRecord(dataset string, days float64, date time.Time, w, ssi float32, loadedAt time.Time) {
	b.Dataset.Append(dataset)
	b.Days.Append(days)
	b.Date.Append(date)
	b.Wavelength.Append(w)
	b.SSI.Append(ssi)
	b.LoadedAt.Append(loadedAt)
}

// BlockInserter sends one native insert block. *ch.Client satisfies it.
type BlockInserter interface {
	Do(ctx context.Context, q ch.Query) error
}

func flushBatch(ctx context.Context, conn BlockInserter, tableFQN string, batch *SpectrumBatch) error {
	if batch.Len() == 0 {
		return nil
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES", tableFQN, spectrumColumns)
	return conn.Do(ctx, ch.Query{
		Body:  query,
		Input: batch.Input(),
	})
}
