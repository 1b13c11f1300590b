package source

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/KI7MT/ki7mt-ssi-apps/internal/dataset"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/fetch"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/ncio"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/units"
)

// SOLID2017Folder is the PMOD/WRC FTP folder of the published composite.
const SOLID2017Folder = "ftp://ftp.pmodwrc.ch/pub/projects/SOLID/database/composite_published/SOLID_1978_published/"

// SOLID2017End is the last day of the composite. The time axis counts
// backward from it, one day per record.
var SOLID2017End = dataset.Day(2014, time.December, 31)

const (
	solidPattern       = "solid_*_100.nc"
	solidWavelengthVar = "wavelength"
	solidDataVar       = "data"
)

// SOLID2017Files lists the 100 nm wavelength bins, 0 to 2000 nm.
func SOLID2017Files() []string {
	files := make([]string, 0, 20)
	for start := 0; start < 2000; start += 100 {
		files = append(files, fmt.Sprintf("solid_%d_100.nc", start))
	}
	return files
}

// SOLID2017 merges the per-bin netCDF files along wavelength.
type SOLID2017 struct {
	Folder string
	// Files are fetched from Folder and must all be present before a merge.
	Files []string
	// Pattern is the doublestar glob, relative to the raw dir, that selects
	// the bins to merge.
	Pattern string
	End     time.Time
}

// NewSOLID2017 returns the adapter for the published folder.
func NewSOLID2017() *SOLID2017 {
	return &SOLID2017{Folder: SOLID2017Folder, Files: SOLID2017Files(), Pattern: solidPattern, End: SOLID2017End}
}

func (a *SOLID2017) ID() string { return "solid_2017" }

func (a *SOLID2017) Describe() string {
	return "SOLID solar irradiance composite (daily, 1978-2014)"
}

func (a *SOLID2017) URLs() []string {
	urls := make([]string, len(a.Files))
	for i, f := range a.Files {
		urls[i] = strings.TrimSuffix(a.Folder, "/") + "/" + f
	}
	return urls
}

func (a *SOLID2017) Fetch(ctx context.Context, f fetch.Fetcher, rawDir string) error {
	return fetchAll(ctx, f, a.URLs(), rawDir)
}

type solidBin struct {
	w     []float64
	rows  [][]float64 // one row per wavelength
	wUnit string
	sUnit string
}

func (a *SOLID2017) Normalize(rawDir string) ([]Normalized, error) {
	pattern := a.Pattern
	if pattern == "" {
		pattern = solidPattern
	}
	matches, err := doublestar.Glob(os.DirFS(rawDir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %s in %s: %w", pattern, rawDir, err)
	}

	present := make(map[string]bool, len(matches))
	for _, m := range matches {
		present[path.Base(m)] = true
	}
	var missing []string
	for _, f := range a.Files {
		if !present[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrRawMissing, strings.Join(missing, ", "), rawDir)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no %s in %s", ErrRawMissing, pattern, rawDir)
	}

	bins := make([]solidBin, 0, len(matches))
	for _, m := range matches {
		b, err := readSOLIDBin(filepath.Join(rawDir, filepath.FromSlash(m)))
		if err != nil {
			return nil, err
		}
		bins = append(bins, b)
	}
	sort.SliceStable(bins, func(i, j int) bool { return bins[i].w[0] < bins[j].w[0] })

	nt := len(bins[0].rows[0])
	var w []float64
	var rows [][]float64
	for i, b := range bins {
		if b.wUnit != bins[0].wUnit || b.sUnit != bins[0].sUnit {
			return nil, fmt.Errorf("%s: bin %d units %q/%q differ from %q/%q",
				a.ID(), i, b.wUnit, b.sUnit, bins[0].wUnit, bins[0].sUnit)
		}
		if len(b.rows[0]) != nt {
			return nil, fmt.Errorf("%s: bin %d has %d records, want %d", a.ID(), i, len(b.rows[0]), nt)
		}
		w = append(w, b.w...)
		rows = append(rows, b.rows...)
	}

	wq, err := units.New(w, bins[0].wUnit)
	if err != nil {
		return nil, err
	}
	// Merged data is (w, t); the builder orients it.
	ssi, err := units.NewMatrix(rows, units.RepairUnitSyntax(bins[0].sUnit))
	if err != nil {
		return nil, err
	}

	start := a.End.AddDate(0, 0, -(nt - 1))
	t := make([]time.Time, nt)
	for i := range t {
		t[i] = start.AddDate(0, 0, i)
	}

	return []Normalized{{
		SSI:     ssi,
		W:       wq,
		T:       t,
		DataURL: a.Folder,
		Attrs: map[string]string{
			dataset.AttrTitle:             "SOLID solar irradiance composite spectrum",
			dataset.AttrInstitution:       "Physikalisch-Meteorologisches Observatorium Davos / World Radiation Center (PMOD/WRC)",
			dataset.AttrSource:            "Combined original SSI observations from 20 different instruments",
			dataset.AttrReferences:        "https://doi.org/10.1002/2016JA023492",
			dataset.AttrObservationPeriod: period(start, a.End),
		},
	}}, nil
}

func readSOLIDBin(path string) (solidBin, error) {
	f, err := ncio.Open(path)
	if err != nil {
		return solidBin{}, err
	}
	defer f.Close()

	wv, err := f.Var(solidWavelengthVar)
	if err != nil {
		return solidBin{}, err
	}
	dv, err := f.Var(solidDataVar)
	if err != nil {
		return solidBin{}, err
	}
	if dv.Rows == nil || len(dv.Rows) == 0 || len(dv.Rows[0]) == 0 {
		return solidBin{}, fmt.Errorf("%s: %s must be a non-empty 2-D variable", path, solidDataVar)
	}

	rows := dv.Rows
	if len(wv.Dims) == 1 && dv.Dims[1] == wv.Dims[0] {
		rows = transpose(rows)
	}
	if len(rows) != len(wv.Values) {
		return solidBin{}, fmt.Errorf("%s: %d data rows for %d wavelengths", path, len(rows), len(wv.Values))
	}
	return solidBin{w: wv.Values, rows: rows, wUnit: wv.Units(), sUnit: dv.Units()}, nil
}

func transpose(in [][]float64) [][]float64 {
	if len(in) == 0 {
		return nil
	}
	out := make([][]float64, len(in[0]))
	for j := range out {
		out[j] = make([]float64, len(in))
		for i := range in {
			out[j][i] = in[i][j]
		}
	}
	return out
}
