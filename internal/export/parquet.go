// Package export writes canonical datasets in tabular forms for tools that
// do not read netCDF: long-format Parquet and gzip-compressed CSV.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/KI7MT/ki7mt-ssi-apps/internal/dataset"
)

// ParquetExt is the Parquet file extension.
const ParquetExt = ".parquet"

// Metadata keys that are not dataset attributes.
const (
	metaName            = "ssi:name"
	metaTimeIndependent = "ssi:time_independent"
)

const writeBatch = 10_000

// SpectrumRow is one (t, w) cell in long format.
type SpectrumRow struct {
	Dataset    string  `parquet:"dataset"`
	Day        float64 `parquet:"t"`
	Wavelength float32 `parquet:"w"`
	SSI        float32 `parquet:"ssi"`
}

// Rows flattens ds into long-format rows, t-major.
func Rows(name string, ds *dataset.Dataset) []SpectrumRow {
	t, w, ssi := ds.T(), ds.W(), ds.SSI()
	rows := make([]SpectrumRow, 0, len(t)*len(w))
	for i, day := range t {
		for j, wl := range w {
			rows = append(rows, SpectrumRow{Dataset: name, Day: day, Wavelength: wl, SSI: ssi[i][j]})
		}
	}
	return rows
}

// ParquetSink writes <Dir>/<name>.parquet with the global attributes as
// key/value metadata. A non-empty Path replaces the per-name location.
type ParquetSink struct {
	Dir  string
	Path string
}

// Persist implements pipeline.Sink.
func (s ParquetSink) Persist(ctx context.Context, name string, ds *dataset.Dataset) (string, error) {
	path := target(s.Path, s.Dir, name, ParquetExt)
	err := writeAtomic(path, func(w io.Writer) error { return WriteParquet(ctx, w, name, ds) })
	if err != nil {
		return "", err
	}
	return path, nil
}

// WriteParquet encodes ds to w.
func WriteParquet(ctx context.Context, w io.Writer, name string, ds *dataset.Dataset) error {
	opts := []parquet.WriterOption{
		parquet.Compression(&parquet.Zstd),
		parquet.KeyValueMetadata(metaName, name),
		parquet.KeyValueMetadata(metaTimeIndependent, fmt.Sprint(ds.TimeIndependent())),
	}
	attrs := ds.Attrs()
	for _, k := range ds.AttrKeys() {
		opts = append(opts, parquet.KeyValueMetadata(k, attrs[k]))
	}

	writer := parquet.NewGenericWriter[SpectrumRow](w, opts...)
	rows := Rows(name, ds)
	for start := 0; start < len(rows); start += writeBatch {
		if err := ctx.Err(); err != nil {
			writer.Close()
			return err
		}
		end := min(start+writeBatch, len(rows))
		if _, err := writer.Write(rows[start:end]); err != nil {
			writer.Close()
			return fmt.Errorf("parquet write: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("parquet close: %w", err)
	}
	return nil
}

// ReadParquet loads a file written by ParquetSink back into a dataset.
func ReadParquet(path string) (string, *dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", nil, err
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return "", nil, fmt.Errorf("parquet open %s: %w", path, err)
	}

	name, _ := pf.Lookup(metaName)
	timeIndependent, _ := pf.Lookup(metaTimeIndependent)
	attrs := make(map[string]string)
	for _, kv := range pf.Metadata().KeyValueMetadata {
		if kv.Key == metaName || kv.Key == metaTimeIndependent {
			continue
		}
		attrs[kv.Key] = kv.Value
	}

	reader := parquet.NewGenericReader[SpectrumRow](pf)
	defer reader.Close()

	var rows []SpectrumRow
	buf := make([]SpectrumRow, 1000)
	for {
		n, err := reader.Read(buf)
		rows = append(rows, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, fmt.Errorf("parquet read %s: %w", path, err)
		}
		if n == 0 {
			break
		}
	}

	t, w, ssi, err := fromRows(rows)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", path, err)
	}
	ds, err := dataset.Restore(t, w, ssi, attrs, timeIndependent == "true")
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", path, err)
	}
	return name, ds, nil
}

// fromRows rebuilds the axes from t-major long rows. A row ends where the
// wavelength stops increasing.
func fromRows(rows []SpectrumRow) ([]float64, []float32, [][]float32, error) {
	if len(rows) == 0 {
		return nil, nil, nil, errors.New("no rows")
	}
	nw := len(rows)
	for i := 1; i < len(rows); i++ {
		if rows[i].Wavelength <= rows[i-1].Wavelength {
			nw = i
			break
		}
	}
	if len(rows)%nw != 0 {
		return nil, nil, nil, fmt.Errorf("%d rows do not divide into spectra of %d wavelengths", len(rows), nw)
	}

	w := make([]float32, nw)
	for j := range w {
		w[j] = rows[j].Wavelength
	}
	nt := len(rows) / nw
	t := make([]float64, nt)
	ssi := make([][]float32, nt)
	for i := range t {
		chunk := rows[i*nw : (i+1)*nw]
		t[i] = chunk[0].Day
		ssi[i] = make([]float32, nw)
		for j, r := range chunk {
			if r.Wavelength != w[j] || r.Day != t[i] {
				return nil, nil, nil, fmt.Errorf("row %d: (t=%v, w=%v) out of order", i*nw+j, r.Day, r.Wavelength)
			}
			ssi[i][j] = r.SSI
		}
	}
	return t, w, ssi, nil
}

func target(path, dir, name, ext string) string {
	if path != "" {
		return path
	}
	return filepath.Join(dir, name+ext)
}

func writeAtomic(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir failed: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file failed: %w", err)
	}
	err = write(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename failed: %w", err)
	}
	return nil
}
