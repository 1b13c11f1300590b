package source

import (
	"context"
	"fmt"
	"os"

	"github.com/KI7MT/ki7mt-ssi-apps/internal/dataset"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/fetch"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/units"
)

// Thuillier2003URL is the ATLAS-3 composite distributed by NASA Ocean Color.
const Thuillier2003URL = "https://oceancolor.gsfc.nasa.gov/docs/rsr/f0.txt"

// Thuillier2003 reads the two-column f0.txt table in µW/cm^2/nm.
type Thuillier2003 struct {
	URL string
}

// NewThuillier2003 returns the adapter for the published URL.
func NewThuillier2003() *Thuillier2003 {
	return &Thuillier2003{URL: Thuillier2003URL}
}

func (a *Thuillier2003) ID() string { return "thuillier_2003" }

func (a *Thuillier2003) Describe() string {
	return "Thuillier (2003) solar irradiance spectrum"
}

func (a *Thuillier2003) URLs() []string { return []string{a.URL} }

func (a *Thuillier2003) Fetch(ctx context.Context, f fetch.Fetcher, rawDir string) error {
	return fetchAll(ctx, f, a.URLs(), rawDir)
}

func (a *Thuillier2003) Normalize(rawDir string) ([]Normalized, error) {
	path, err := rawPath(rawDir, a.URL)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cols, err := ReadTable(file, TableOptions{Comments: []string{"/", "!"}, MinColumns: 2})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	w, err := units.New(cols[0], units.Nanometer)
	if err != nil {
		return nil, err
	}
	ssi, err := units.New(cols[1], "microwatt/cm^2/nm")
	if err != nil {
		return nil, err
	}

	return []Normalized{{
		SSI:     ssi,
		W:       w,
		DataURL: a.URL,
		Attrs: map[string]string{
			dataset.AttrTitle:       "Thuillier (2003) solar irradiance spectrum",
			dataset.AttrInstitution: "Service d'Aéronomie du CNRS, F91371, Verrières-le-Buisson, France.",
			dataset.AttrSource: "Combined observations from the SOLSPEC instrument during " +
				"the ATLAS-1 mission (from 1992-03-24 to 1992-04-02) and the SOSP " +
				"instrument onboard the EURECA satellite (from 1992-8-7 to " +
				"1993-7-1), with the Kurucz and Bell (1995) synthetic spectrum",
			dataset.AttrReferences: "https://doi.org/10.1023/A:1024048429145",
		},
	}}, nil
}
