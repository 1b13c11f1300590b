package source

import (
	"context"
	"fmt"
	"os"

	"github.com/klauspost/compress/gzip"

	"github.com/KI7MT/ki7mt-ssi-apps/internal/dataset"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/fetch"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/units"
)

// Meftah2018URL is the CDS copy of the SOLAR/SOLSPEC reference spectrum.
const Meftah2018URL = "http://cdsarc.u-strasbg.fr/ftp/J/A+A/611/A1/spectrum.dat.gz"

// The raw file spans 0.5 to 3000.1 nm; the paper documents 165 to 3000 nm.
const meftahMinW = 165.0

// Meftah2018 reads the gzip-compressed SOLSPEC table, mapping "---" to
// NaN and dropping wavelengths below 165 nm.
type Meftah2018 struct {
	URL string
}

// NewMeftah2018 returns the adapter for the published URL.
func NewMeftah2018() *Meftah2018 { return &Meftah2018{URL: Meftah2018URL} }

func (a *Meftah2018) ID() string { return "meftah_2018" }

func (a *Meftah2018) Describe() string {
	return "Meftah et al (2018) SOLAR/SOLSPEC reference spectrum"
}

func (a *Meftah2018) URLs() []string { return []string{a.URL} }

func (a *Meftah2018) Fetch(ctx context.Context, f fetch.Fetcher, rawDir string) error {
	return fetchAll(ctx, f, a.URLs(), rawDir)
}

func (a *Meftah2018) Normalize(rawDir string) ([]Normalized, error) {
	path, err := rawPath(rawDir, a.URL)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("%s: gzip: %w", path, err)
	}
	defer gz.Close()

	cols, err := ReadTable(gz, TableOptions{Missing: []string{"---"}, MinColumns: 2})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cols = mask(cols, func(w float64) bool { return w >= meftahMinW })

	w, err := units.New(cols[0], units.Nanometer)
	if err != nil {
		return nil, err
	}
	ssi, err := units.New(cols[1], "W/m^2/nm")
	if err != nil {
		return nil, err
	}

	return []Normalized{{
		SSI:     ssi,
		W:       w,
		DataURL: a.URL,
		Attrs: map[string]string{
			dataset.AttrTitle:       "Meftah et al (2018) solar irradiance reference spectrum",
			dataset.AttrInstitution: "Laboratoire Atmosphères, Milieux, Observations Spatiales (LATMOS)",
			dataset.AttrSource: "Observations from the SOLSPEC instrument of the SOLAR payload " +
				"onboard the international space station",
			dataset.AttrReferences:        "https://doi.org/10.1051/0004-6361/201731316",
			dataset.AttrObservationPeriod: period(dataset.Day(2008, 4, 5), dataset.Day(2016, 12, 31)),
		},
	}}, nil
}
