package source

import (
	"context"
	"errors"
	"fmt"
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
	"github.com/KI7MT/ki7mt-ssi-apps/internal/ncio"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/units"
)

var testBuilder = dataset.NewBuilder(
	dataset.WithClock(func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }),
	dataset.WithTool("ssi-make", "test"),
)

func build(t *testing.T, n Normalized) *dataset.Dataset {
	t.Helper()
	ds, err := testBuilder.Build(n.SSI, n.W, n.DataURL, n.Attrs, n.T)
	require.NoError(t, err)
	return ds
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

type recordingFetcher struct {
	urls []string
	fail string
}

func (f *recordingFetcher) Fetch(_ context.Context, url, destDir string) (string, error) {
	if url == f.fail {
		return "", errors.New("boom")
	}
	f.urls = append(f.urls, url)
	return filepath.Join(destDir, filepath.Base(url)), nil
}

func TestReadTable(t *testing.T) {
	in := strings.Join([]string{
		"header line one",
		"header line two",
		"/ comment",
		"  200.0   1.5 ! inline",
		"",
		"\t201.0\t---",
		"202.0 2.5",
	}, "\n")

	cols, err := ReadTable(strings.NewReader(in), TableOptions{
		Comments:   []string{"/", "!"},
		SkipRows:   2,
		Missing:    []string{"---"},
		MinColumns: 2,
	})
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, []float64{200, 201, 202}, cols[0])
	assert.Equal(t, 1.5, cols[1][0])
	assert.True(t, math.IsNaN(cols[1][1]))

	t.Run("ragged", func(t *testing.T) {
		_, err := ReadTable(strings.NewReader("1 2\n3\n"), TableOptions{})
		var pe *ParseError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, 2, pe.Line)
	})

	t.Run("bad number", func(t *testing.T) {
		_, err := ReadTable(strings.NewReader("1 x\n"), TableOptions{})
		var pe *ParseError
		require.True(t, errors.As(err, &pe))
		assert.Contains(t, err.Error(), `"1 x"`)
	})

	t.Run("too narrow", func(t *testing.T) {
		_, err := ReadTable(strings.NewReader("1\n"), TableOptions{MinColumns: 2})
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ReadTable(strings.NewReader("; only comments\n"), TableOptions{Comments: []string{";"}})
		assert.Error(t, err)
	})
}

func TestThuillier2003(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "f0.txt", "/begin_header\n/units=nm, uW/cm^2/nm\n/end_header\n"+
		"200.0 0.8\n 200.5   0.85\n!trailer\n201.0 0.9\n")

	a := NewThuillier2003()
	out, err := a.Normalize(dir)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "thuillier_2003", out[0].OutputName(a.ID()))

	ds := build(t, out[0])
	assert.Equal(t, []float32{200, 200.5, 201}, ds.W())
	// 0.8 µW/cm^2/nm = 0.008 W/m^2/nm
	assert.InDelta(t, 0.008, ds.SSI()[0][0], 1e-9)
	url, _ := ds.Attr(dataset.AttrDataURL)
	assert.Equal(t, Thuillier2003URL, url)

	_, err = a.Normalize(t.TempDir())
	assert.ErrorIs(t, err, ErrRawMissing)
}

func whiFixture(t *testing.T, dir string) {
	t.Helper()
	var b strings.Builder
	for i := 0; i < whiHeaderRows; i++ {
		if i%3 == 0 {
			fmt.Fprintf(&b, "; header %d\n", i)
		} else {
			fmt.Fprintf(&b, "free text header line %d with words\n", i)
		}
	}
	rows := [][4]float64{
		{115.5, 9, 9, 9},
		{116.0, 9, 9, 9},
		{116.5, 0.10, 0.11, 0.12},
		{117.0, 0.20, 0.21, 0.22},
		{117.5, 0.30, 0.31, 0.32},
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "%8.2f %10.4f %10.4f %10.4f ; note\n", r[0], r[1], r[2], r[3])
	}
	writeFile(t, dir, "ref_solar_irradiance_whi-2008_ver2.dat", b.String())
}

func TestWHI2008(t *testing.T) {
	dir := t.TempDir()
	whiFixture(t, dir)

	a := NewWHI2008()
	out, err := a.Normalize(dir)
	require.NoError(t, err)
	require.Len(t, out, 3)

	wantPeriods := []string{
		"2008-03-25 to 2008-03-29",
		"2008-03-29 to 2008-04-04",
		"2008-04-10 to 2008-04-16",
	}
	wantNames := []string{"whi_2008-sunspot_active", "whi_2008-faculae_active", "whi_2008-quiet_sun"}
	seen := map[string]bool{}
	for i, n := range out {
		op := n.Attrs[dataset.AttrObservationPeriod]
		assert.Equal(t, wantPeriods[i], op)
		assert.Regexp(t, `^\d{4}-\d{2}-\d{2} to \d{4}-\d{2}-\d{2}$`, op)
		seen[op] = true
		assert.Equal(t, wantNames[i], n.OutputName(a.ID()))

		ds := build(t, n)
		assert.Equal(t, []float32{116.5, 117, 117.5}, ds.W(), "w <= 116 nm must be clipped")
		assert.InDelta(t, 0.10+0.01*float64(i), ds.SSI()[0][0], 1e-6)
	}
	assert.Len(t, seen, 3)
}

func TestMeftah2018(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "spectrum.dat.gz"))
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join([]string{
		"0.5 ---",
		"164.9 0.01",
		"165.0 0.02",
		"165.5 ---",
		"3000.1 0.0001",
	}, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	out, err := NewMeftah2018().Normalize(dir)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "2008-04-05 to 2016-12-31", out[0].Attrs[dataset.AttrObservationPeriod])

	ds := build(t, out[0])
	assert.Equal(t, []float32{165, 165.5, 3000.1}, ds.W())
	row := ds.SSI()[0]
	assert.InDelta(t, 0.02, row[0], 1e-7)
	assert.True(t, math.IsNaN(float64(row[1])), "missing token must become NaN")
	assert.Equal(t, 2, ds.ValidPoints())
}

func TestMeftah2018_NotGzip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "spectrum.dat.gz", "165 1\n")
	_, err := NewMeftah2018().Normalize(dir)
	assert.Error(t, err)
}

func writeSOLIDBin(t *testing.T, dir, name string, w []float64, rows [][]float64, wavelengthMajor bool) {
	t.Helper()
	dims := []string{"time", "wavelength"}
	if wavelengthMajor {
		dims = []string{"wavelength", "time"}
	}
	require.NoError(t, ncio.WriteVars(filepath.Join(dir, name), []ncio.Var{
		{Name: "wavelength", Dims: []string{"wavelength"}, Values: w, Attrs: map[string]string{"units": "nm"}},
		{Name: "data", Dims: dims, Rows: rows, Attrs: map[string]string{"units": "W m-2 nm-1"}},
	}, map[string]string{"title": name}))
}

func TestSOLID2017(t *testing.T) {
	dir := t.TempDir()
	// Four daily records, two wavelengths per bin.
	writeSOLIDBin(t, dir, "solid_0_100.nc", []float64{0.5, 1.5},
		[][]float64{{1, 2, 3, 4}, {5, 6, 7, 8}}, true)
	// Stored (time, wavelength).
	writeSOLIDBin(t, dir, "solid_100_100.nc", []float64{100.5, 101.5},
		[][]float64{{11, 15}, {12, 16}, {13, 17}, {14, 18}}, false)
	writeSOLIDBin(t, dir, "solid_200_100.nc", []float64{200.5, 201.5},
		[][]float64{{21, 22, 23, 24}, {25, 26, 27, 28}}, true)
	// Unlisted files are ignored.
	writeFile(t, dir, "solid_900_100.nc.tmp", "partial")

	a := NewSOLID2017()
	a.Files = []string{"solid_200_100.nc", "solid_0_100.nc", "solid_100_100.nc"}

	out, err := a.Normalize(dir)
	require.NoError(t, err)
	require.Len(t, out, 1)
	n := out[0]

	assert.Equal(t, []int{6, 4}, n.SSI.Shape(), "merged along wavelength as (w, t)")
	assert.Equal(t, units.Irradiance, n.SSI.Unit().String(), "units caret-repaired")
	require.Len(t, n.T, 4)
	assert.True(t, n.T[0].Equal(dataset.Day(2014, 12, 28)), "start = end - (records - 1) days")
	assert.True(t, n.T[3].Equal(SOLID2017End))
	assert.Equal(t, "2014-12-28 to 2014-12-31", n.Attrs[dataset.AttrObservationPeriod])
	assert.Equal(t, SOLID2017Folder, n.DataURL)

	ds := build(t, n)
	assert.Equal(t, 4, ds.NT())
	assert.Equal(t, []float32{0.5, 1.5, 100.5, 101.5, 200.5, 201.5}, ds.W())
	assert.Equal(t, [][]float32{
		{1, 5, 11, 15, 21, 25},
		{2, 6, 12, 16, 22, 26},
		{3, 7, 13, 17, 23, 27},
		{4, 8, 14, 18, 24, 28},
	}, ds.SSI(), "builder orients into (t, w)")
}

func TestSOLID2017_Errors(t *testing.T) {
	dir := t.TempDir()
	writeSOLIDBin(t, dir, "solid_0_100.nc", []float64{0.5}, [][]float64{{1, 2}}, true)
	writeSOLIDBin(t, dir, "solid_100_100.nc", []float64{100.5}, [][]float64{{1, 2, 3}}, true)

	a := NewSOLID2017()
	a.Files = []string{"solid_0_100.nc", "solid_100_100.nc", "solid_200_100.nc"}
	_, err := a.Normalize(dir)
	assert.ErrorIs(t, err, ErrRawMissing)
	assert.Contains(t, err.Error(), "solid_200_100.nc")

	a.Files = a.Files[:2]
	_, err = a.Normalize(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "records")

	a.Files = nil
	_, err = a.Normalize(t.TempDir())
	assert.ErrorIs(t, err, ErrRawMissing, "nothing to merge")

	assert.Len(t, NewSOLID2017().URLs(), 20)
	assert.Equal(t, SOLID2017Folder+"solid_1900_100.nc", NewSOLID2017().URLs()[19])
}

func TestSOLID2017_PatternSelectsBins(t *testing.T) {
	dir := t.TempDir()
	writeSOLIDBin(t, dir, "solid_0_100.nc", []float64{0.5}, [][]float64{{1, 2}}, true)
	writeSOLIDBin(t, dir, "solid_100_100.nc", []float64{100.5}, [][]float64{{3, 4, 5}}, true)
	writeSOLIDBin(t, dir, "solid_200_100.nc", []float64{200.5}, [][]float64{{6, 7}}, true)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "solid_300_100.nc"), 0o755))

	a := &SOLID2017{Folder: SOLID2017Folder, Pattern: "solid_{0,200}_100.nc", End: SOLID2017End}
	out, err := a.Normalize(dir)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 200.5}, out[0].W.Values())
	assert.Equal(t, []int{2, 2}, out[0].SSI.Shape())

	// Bins that the default pattern finds are merged even when unlisted.
	a = &SOLID2017{Folder: SOLID2017Folder, Files: []string{"solid_0_100.nc"}, End: SOLID2017End}
	_, err = a.Normalize(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "records", "the 3-record bin is in the merge")
}

func TestCoddington2021(t *testing.T) {
	dir := t.TempDir()
	a := NewCoddington2021()
	a.Variants = []CoddingtonVariant{Coddington2021Variants[0], Coddington2021Variants[4]}
	a.WavelengthVar = "vacuum_wavelength"
	a.SSIVar = "ssi_raw"

	for i, v := range a.Variants {
		require.NoError(t, ncio.WriteVars(filepath.Join(dir, v.FileName()), []ncio.Var{
			{Name: "vacuum_wavelength", Dims: []string{"n"}, Values: []float64{202, 202.5, 203}, Attrs: map[string]string{"units": "nm"}},
			{Name: "ssi_raw", Dims: []string{"n"}, Values: []float64{0.1, 0.2, float64(i)}, Attrs: map[string]string{"units": "W m-2 nm-1"}},
		}, nil))
	}

	out, err := a.Normalize(dir)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "coddington_2021-high_resolution", out[0].OutputName(a.ID()))
	assert.Equal(t, "coddington_2021-1", out[1].OutputName(a.ID()))
	assert.Equal(t, Coddington2021Root+"hybrid_reference_spectrum_1nm_resolution_c2021-03-04_with_unc.nc", out[1].DataURL)

	ds := build(t, out[1])
	assert.Equal(t, []float32{0.1, 0.2, 1}, ds.SSI()[0])

	a.Variants = append(a.Variants, Coddington2021Variants[1])
	_, err = a.Normalize(dir)
	assert.ErrorIs(t, err, ErrRawMissing)
}

func TestCoddington2021_PublishedVariableNames(t *testing.T) {
	dir := t.TempDir()
	a := NewCoddington2021()
	a.Variants = []CoddingtonVariant{Coddington2021Variants[2]}
	require.Equal(t, "Vacuum Wavelength", a.WavelengthVar)

	require.NoError(t, ncio.WriteVars(filepath.Join(dir, a.Variants[0].FileName()), []ncio.Var{
		{Name: "Vacuum Wavelength", Dims: []string{"wavelength"}, Values: []float64{202, 202.025}, Attrs: map[string]string{"units": "nm"}},
		{Name: "SSI", Dims: []string{"wavelength"}, Values: []float64{0.3, 0.4}, Attrs: map[string]string{"units": "W m-2 nm-1"}},
		{Name: "SSI_UNC", Dims: []string{"wavelength"}, Values: []float64{0.01, 0.01}, Attrs: map[string]string{"units": "W m-2 nm-1"}},
	}, map[string]string{"title": "TSIS-1 HSRS"}))

	out, err := a.Normalize(dir)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "coddington_2021-p025", out[0].OutputName(a.ID()))
	assert.Equal(t, units.Irradiance, out[0].SSI.Unit().String())

	ds := build(t, out[0])
	assert.Equal(t, []float32{202, 202.025}, ds.W())
	assert.Equal(t, []float32{0.3, 0.4}, ds.SSI()[0])
}

func TestAdapters_Fetch(t *testing.T) {
	for _, a := range []Adapter{NewThuillier2003(), NewWHI2008(), NewMeftah2018(), NewSOLID2017(), NewCoddington2021()} {
		t.Run(a.ID(), func(t *testing.T) {
			f := &recordingFetcher{}
			require.NoError(t, a.Fetch(context.Background(), f, t.TempDir()))
			assert.Equal(t, a.URLs(), f.urls)
			assert.NotEmpty(t, a.Describe())
		})
	}

	a := NewCoddington2021()
	f := &recordingFetcher{fail: a.URLs()[1]}
	err := a.Fetch(context.Background(), f, t.TempDir())
	assert.Error(t, err)
	assert.Len(t, f.urls, 1, "fetch stops at the first failure")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"coddington_2021", "meftah_2018", "solid_2017", "thuillier_2003", "whi_2008"}, r.IDs())

	a, err := r.Lookup("whi_2008")
	require.NoError(t, err)
	assert.Equal(t, "whi_2008", a.ID())

	_, err = r.Lookup("kurucz_1995")
	assert.ErrorIs(t, err, ErrUnknownSource)

	all, err := r.Resolve("all")
	require.NoError(t, err)
	assert.Len(t, all, 5)

	some, err := r.Resolve("meftah_2018", "thuillier_2003")
	require.NoError(t, err)
	assert.Equal(t, "meftah_2018", some[0].ID())

	_, err = r.Resolve("nope")
	assert.ErrorIs(t, err, ErrUnknownSource)
}
