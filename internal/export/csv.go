package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"

	"github.com/KI7MT/ki7mt-ssi-apps/internal/dataset"
)

// CSVExt is the compressed CSV file extension.
const CSVExt = ".csv.gz"

// CSVSink writes <Dir>/<name>.csv.gz: "# key: value" attribute lines, a
// "t,w,ssi" header and one line per (t, w) cell. A non-empty Path replaces
// the per-name location.
type CSVSink struct {
	Dir  string
	Path string
}

// Persist implements pipeline.Sink.
func (s CSVSink) Persist(ctx context.Context, name string, ds *dataset.Dataset) (string, error) {
	path := target(s.Path, s.Dir, name, CSVExt)
	err := writeAtomic(path, func(w io.Writer) error { return WriteCSV(ctx, w, ds) })
	if err != nil {
		return "", err
	}
	return path, nil
}

// WriteCSV encodes ds to w through a parallel gzip writer.
func WriteCSV(ctx context.Context, w io.Writer, ds *dataset.Dataset) error {
	gz := pgzip.NewWriter(w)
	if err := gz.SetConcurrency(256*1024, runtime.NumCPU()); err != nil {
		return fmt.Errorf("pgzip: %w", err)
	}

	attrs := ds.Attrs()
	for _, k := range ds.AttrKeys() {
		for _, line := range strings.Split(attrs[k], "\n") {
			if _, err := fmt.Fprintf(gz, "# %s: %s\n", k, line); err != nil {
				return err
			}
		}
	}

	cw := csv.NewWriter(gz)
	if err := cw.Write([]string{dataset.DimT, dataset.DimW, dataset.VarSSI}); err != nil {
		return err
	}
	t, wl, ssi := ds.T(), ds.W(), ds.SSI()
	rec := make([]string, 3)
	for i, day := range t {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec[0] = strconv.FormatFloat(day, 'f', -1, 64)
		for j, w := range wl {
			rec[1] = strconv.FormatFloat(float64(w), 'g', -1, 32)
			rec[2] = strconv.FormatFloat(float64(ssi[i][j]), 'g', -1, 32)
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	return gz.Close()
}
