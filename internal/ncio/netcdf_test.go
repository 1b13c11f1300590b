package ncio

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KI7MT/ki7mt-ssi-apps/internal/dataset"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/units"
)

func buildDataset(t *testing.T, times []time.Time, rows [][]float64) *dataset.Dataset {
	t.Helper()
	w, err := units.New([]float64{200.5, 300.25, 400}, units.Nanometer)
	require.NoError(t, err)

	var ssi units.Quantity
	if times == nil {
		ssi, err = units.New(rows[0], "mW m^-2 nm^-1")
	} else {
		ssi, err = units.NewMatrix(rows, "mW m^-2 nm^-1")
	}
	require.NoError(t, err)

	b := dataset.NewBuilder(
		dataset.WithClock(func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }),
		dataset.WithTool("ssi-make", "test"),
	)
	ds, err := b.Build(ssi, w, "https://example.org/raw.dat", map[string]string{
		dataset.AttrTitle:             "Round trip",
		dataset.AttrInstitution:       "Lab",
		dataset.AttrSource:            "test",
		dataset.AttrReferences:        "ref",
		dataset.AttrObservationPeriod: "2008-04-10 to 2008-04-16",
	}, times)
	require.NoError(t, err)
	return ds
}

func TestRoundTrip_TimeIndependent(t *testing.T) {
	ds := buildDataset(t, nil, [][]float64{{1500, math.NaN(), 1.25}})
	path := filepath.Join(t.TempDir(), "sub", "spectrum.nc")

	require.NoError(t, Write(path, ds))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")

	back, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, ds.W(), back.W())
	assert.Equal(t, ds.T(), back.T())
	assert.True(t, back.TimeIndependent())
	got := back.SSI()
	want := ds.SSI()
	require.Len(t, got, 1)
	assert.InDelta(t, want[0][0], got[0][0], 1e-6)
	assert.True(t, math.IsNaN(float64(got[0][1])))
	assert.InDelta(t, want[0][2], got[0][2], 1e-6)

	for _, k := range dataset.MandatoryAttrs {
		v, _ := ds.Attr(k)
		bv, ok := back.Attr(k)
		assert.True(t, ok, k)
		assert.Equal(t, v, bv, k)
	}
	op, _ := back.Attr(dataset.AttrObservationPeriod)
	assert.Equal(t, "2008-04-10 to 2008-04-16", op)
}

func TestRoundTrip_TimeSeries(t *testing.T) {
	days := []time.Time{dataset.Day(2014, 12, 29), dataset.Day(2014, 12, 30), dataset.Day(2014, 12, 31)}
	ds := buildDataset(t, days, [][]float64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}})
	path := filepath.Join(t.TempDir(), "series.nc")

	require.NoError(t, Write(path, ds))
	back, err := Read(path)
	require.NoError(t, err)

	assert.False(t, back.TimeIndependent())
	assert.Equal(t, ds.T(), back.T())
	assert.Equal(t, ds.SSI(), back.SSI())

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()
	assert.ElementsMatch(t, []string{"t", "w", "ssi"}, f.Variables())

	sv, err := f.Var(dataset.VarSSI)
	require.NoError(t, err)
	assert.Equal(t, []string{"t", "w"}, sv.Dims)
	assert.Equal(t, []int{3, 3}, sv.Shape())
	assert.Equal(t, "W m-2 nm-1", sv.Units())
	assert.Equal(t, "solar_irradiance_per_unit_wavelength", sv.Attrs["standard_name"])

	wv, err := f.Var(dataset.DimW)
	require.NoError(t, err)
	assert.Equal(t, "radiation_wavelength", wv.Attrs["standard_name"])

	assert.Equal(t, dataset.Conventions, f.GlobalAttrs()[dataset.AttrConventions])
}

func TestRead_NotCanonical(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.nc")
	require.NoError(t, WriteVars(path, []Var{
		{Name: "wavelength", Dims: []string{"n"}, Values: []float64{1, 2}, Attrs: map[string]string{"units": "nm"}},
	}, nil))

	_, err := Read(path)
	assert.ErrorIs(t, err, ErrNotCanonical)

	v, err := ReadVar(path, "wavelength")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, v.Values)
	assert.Equal(t, "nm", v.Units())
}

func TestFloat64s(t *testing.T) {
	got, err := Float64s([]int16{1, -2})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -2}, got)

	_, err = Float64s([]string{"x"})
	assert.ErrorIs(t, err, ErrValueType)

	rows, err := Float64Rows([][]float32{{1.5}, {2.5}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1.5}, {2.5}}, rows)

	_, err = Float64Rows([]float32{1})
	assert.ErrorIs(t, err, ErrValueType)
}

func TestFloat64Rows_IntegerTypes(t *testing.T) {
	// Every integer type accepted in 1-D is accepted in 2-D.
	tests := []struct {
		name string
		one  any
		two  any
	}{
		{"int8", []int8{-3}, [][]int8{{-3}}},
		{"int16", []int16{-3}, [][]int16{{-3}}},
		{"int32", []int32{-3}, [][]int32{{-3}}},
		{"int64", []int64{-3}, [][]int64{{-3}}},
		{"uint8", []uint8{3}, [][]uint8{{3}}},
		{"uint16", []uint16{3}, [][]uint16{{3}}},
		{"uint32", []uint32{3}, [][]uint32{{3}}},
		{"uint64", []uint64{3}, [][]uint64{{3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flat, err := Float64s(tt.one)
			require.NoError(t, err)
			rows, err := Float64Rows(tt.two)
			require.NoError(t, err)
			assert.Equal(t, [][]float64{flat}, rows)
		})
	}
}

func TestSinks(t *testing.T) {
	ds := buildDataset(t, nil, [][]float64{{1, 2, 3}})
	dir := t.TempDir()

	path, err := DirSink{Dir: dir}.Persist(context.Background(), "whi_2008-quiet_sun", ds)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "whi_2008-quiet_sun.nc"), path)
	assert.FileExists(t, path)

	explicit := filepath.Join(dir, "explicit.nc")
	path, err = FileSink{Path: explicit}.Persist(context.Background(), "ignored", ds)
	require.NoError(t, err)
	assert.Equal(t, explicit, path)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = DirSink{Dir: dir}.Persist(ctx, "x", ds)
	assert.ErrorIs(t, err, context.Canceled)
}
