package source

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/KI7MT/ki7mt-ssi-apps/internal/dataset"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/fetch"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/units"
)

// WHI2008URL is the Whole Heliosphere Interval reference spectra file.
const WHI2008URL = "https://lasp.colorado.edu/lisird/resources/whi_ref_spectra/data/ref_solar_irradiance_whi-2008_ver2.dat"

const (
	whiHeaderRows = 142
	whiMinW       = 116.0
)

// WHIPeriod is one of the three WHI sub-periods and the table column
// holding its spectrum.
type WHIPeriod struct {
	Label  string
	Column int
	Start  time.Time
	End    time.Time
}

// WHI2008Periods lists the sub-periods in column order.
var WHI2008Periods = []WHIPeriod{
	{Label: "sunspot active", Column: 1, Start: dataset.Day(2008, 3, 25), End: dataset.Day(2008, 3, 29)},
	{Label: "faculae active", Column: 2, Start: dataset.Day(2008, 3, 29), End: dataset.Day(2008, 4, 4)},
	{Label: "quiet sun", Column: 3, Start: dataset.Day(2008, 4, 10), End: dataset.Day(2008, 4, 16)},
}

// WHI2008 splits one four-column table into three labelled spectra,
// keeping wavelengths above 116 nm.
type WHI2008 struct {
	URL string
}

// NewWHI2008 returns the adapter for the published URL.
func NewWHI2008() *WHI2008 { return &WHI2008{URL: WHI2008URL} }

func (a *WHI2008) ID() string { return "whi_2008" }

func (a *WHI2008) Describe() string {
	return "Whole Heliosphere Interval (WHI) reference spectra (2008), three periods"
}

func (a *WHI2008) URLs() []string { return []string{a.URL} }

func (a *WHI2008) Fetch(ctx context.Context, f fetch.Fetcher, rawDir string) error {
	return fetchAll(ctx, f, a.URLs(), rawDir)
}

func (a *WHI2008) Normalize(rawDir string) ([]Normalized, error) {
	path, err := rawPath(rawDir, a.URL)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cols, err := ReadTable(file, TableOptions{
		Comments:   []string{";"},
		SkipRows:   whiHeaderRows,
		MinColumns: 1 + len(WHI2008Periods),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cols = mask(cols, func(w float64) bool { return w > whiMinW })

	w, err := units.New(cols[0], units.Nanometer)
	if err != nil {
		return nil, err
	}

	out := make([]Normalized, 0, len(WHI2008Periods))
	for _, p := range WHI2008Periods {
		ssi, err := units.New(cols[p.Column], "W/m^2/nm")
		if err != nil {
			return nil, err
		}
		obs := period(p.Start, p.End)
		out = append(out, Normalized{
			Label:   p.Label,
			SSI:     ssi,
			W:       w,
			DataURL: a.URL,
			Attrs: map[string]string{
				dataset.AttrTitle: fmt.Sprintf("Whole Heliosphere Interval (WHI) solar irradiance "+
					"reference spectrum (2008) for time period %s ('%s' spectrum)", obs, p.Label),
				dataset.AttrInstitution: "Laboratory for Atmospheric and Space Physics",
				dataset.AttrSource: fmt.Sprintf("Combination of satellite observations from the SEE "+
					"and SORCE instruments (from %s to %s) onboard the TIMED satellite and a "+
					"prototype EVE instrument onboard a sounding rocket launched on 2008-04-14.",
					p.Start.Format(time.DateOnly), p.End.Format(time.DateOnly)),
				dataset.AttrReferences:        "https://doi.org/10.1029/2008GL036373",
				dataset.AttrObservationPeriod: obs,
				dataset.AttrComment: "The original data covers the range from 0.05 to 2399.95 nm, " +
					"the present dataset includes only the part of the original data where " +
					"the wavelength > 116 nm.",
			},
		})
	}
	return out, nil
}
