package export

import (
	"bufio"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KI7MT/ki7mt-ssi-apps/internal/dataset"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/units"
)

func sample(t *testing.T, times []time.Time) *dataset.Dataset {
	t.Helper()
	w, err := units.New([]float64{300, 400}, units.Nanometer)
	require.NoError(t, err)
	var ssi units.Quantity
	if times == nil {
		ssi, err = units.New([]float64{0.5, math.NaN()}, units.Irradiance)
	} else {
		ssi, err = units.NewMatrix([][]float64{{1, 2}, {3, 4}, {5, 6}}, units.Irradiance)
	}
	require.NoError(t, err)

	attrs := map[string]string{
		dataset.AttrTitle:       "Export sample",
		dataset.AttrInstitution: "Lab",
		dataset.AttrSource:      "test",
		dataset.AttrReferences:  "ref",
		dataset.AttrHistory:     "2001-01-01T00:00:00Z - release",
	}
	ds, err := dataset.NewBuilder(dataset.WithTool("ssi-make", "test")).Build(ssi, w, "https://example.org/a", attrs, times)
	require.NoError(t, err)
	return ds
}

func TestParquetRoundTrip(t *testing.T) {
	days := []time.Time{dataset.Day(2014, 12, 30), dataset.Day(2014, 12, 30), dataset.Day(2014, 12, 31)}
	ds := sample(t, days)
	dir := t.TempDir()

	path, err := ParquetSink{Dir: dir}.Persist(context.Background(), "solid_2017", ds)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "solid_2017.parquet"), path)

	name, back, err := ReadParquet(path)
	require.NoError(t, err)
	assert.Equal(t, "solid_2017", name)
	assert.Equal(t, ds.T(), back.T())
	assert.Equal(t, ds.W(), back.W())
	assert.Equal(t, ds.SSI(), back.SSI())
	assert.Equal(t, ds.Attrs(), back.Attrs())
	assert.False(t, back.TimeIndependent())
}

func TestParquetRoundTrip_TimeIndependent(t *testing.T) {
	ds := sample(t, nil)
	path, err := ParquetSink{Dir: t.TempDir()}.Persist(context.Background(), "thuillier_2003", ds)
	require.NoError(t, err)

	_, back, err := ReadParquet(path)
	require.NoError(t, err)
	assert.True(t, back.TimeIndependent())
	assert.True(t, math.IsNaN(float64(back.SSI()[0][1])))
}

func TestRows(t *testing.T) {
	rows := Rows("x", sample(t, []time.Time{dataset.Day(1970, 1, 2), dataset.Day(1970, 1, 3), dataset.Day(1970, 1, 4)}))
	require.Len(t, rows, 6)
	assert.Equal(t, SpectrumRow{Dataset: "x", Day: 1, Wavelength: 300, SSI: 1}, rows[0])
	assert.Equal(t, SpectrumRow{Dataset: "x", Day: 3, Wavelength: 400, SSI: 6}, rows[5])

	_, _, _, err := fromRows([]SpectrumRow{{Wavelength: 1}, {Wavelength: 2}, {Wavelength: 1}})
	assert.Error(t, err)
	_, _, _, err = fromRows(nil)
	assert.Error(t, err)
}

func TestCSVSink(t *testing.T) {
	ds := sample(t, nil)
	path, err := CSVSink{Dir: t.TempDir()}.Persist(context.Background(), "meftah_2018", ds)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "meftah_2018.csv.gz"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var lines []string
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())

	assert.Equal(t, "# Conventions: CF-1.10", lines[0])
	assert.Contains(t, lines, "# title: Export sample")
	assert.Contains(t, lines, "# history: 2001-01-01T00:00:00Z - release")
	n := len(lines)
	assert.Equal(t, []string{"t,w,ssi", "0,300,0.5", "0,400,NaN"}, lines[n-3:])
}

func TestSinks_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dir := t.TempDir()

	_, err := ParquetSink{Dir: dir}.Persist(ctx, "x", sample(t, nil))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = CSVSink{Dir: dir}.Persist(ctx, "x", sample(t, nil))
	assert.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSinks_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	want := filepath.Join(dir, "nested", "out.parquet")
	got, err := ParquetSink{Dir: "ignored", Path: want}.Persist(context.Background(), "x", sample(t, nil))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.FileExists(t, want)

	want = filepath.Join(dir, "out.csv.gz")
	got, err = CSVSink{Path: want}.Persist(context.Background(), "x", sample(t, nil))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
