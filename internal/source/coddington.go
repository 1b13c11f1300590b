package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/KI7MT/ki7mt-ssi-apps/internal/dataset"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/fetch"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/ncio"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/units"
)

// Coddington2021Root is the LISIRD folder of the TSIS-1 HSRS files.
const Coddington2021Root = "https://lasp.colorado.edu/lisird/resources/lasp/hsrs/"

// CoddingtonVariant is one spectral resolution of the HSRS.
type CoddingtonVariant struct {
	Label string
	Infix string
}

// Coddington2021Variants lists the published resolutions.
var Coddington2021Variants = []CoddingtonVariant{
	{Label: "high_resolution", Infix: ""},
	{Label: "p005", Infix: "p005nm_resolution_"},
	{Label: "p025", Infix: "p025nm_resolution_"},
	{Label: "p1", Infix: "p1nm_resolution_"},
	{Label: "1", Infix: "1nm_resolution_"},
}

// FileName is the published file name of the variant.
func (v CoddingtonVariant) FileName() string {
	return "hybrid_reference_spectrum_" + v.Infix + "c2021-03-04_with_unc.nc"
}

// Coddington2021 reads one netCDF4 file per resolution variant.
type Coddington2021 struct {
	Root          string
	Variants      []CoddingtonVariant
	WavelengthVar string
	SSIVar        string
}

// NewCoddington2021 returns the adapter for every published variant.
func NewCoddington2021() *Coddington2021 {
	return &Coddington2021{
		Root:          Coddington2021Root,
		Variants:      Coddington2021Variants,
		WavelengthVar: "Vacuum Wavelength",
		SSIVar:        "SSI",
	}
}

func (a *Coddington2021) ID() string { return "coddington_2021" }

func (a *Coddington2021) Describe() string {
	return "TSIS-1 Hybrid Solar Reference Spectrum (Coddington 2021), five resolutions"
}

func (a *Coddington2021) URLs() []string {
	urls := make([]string, len(a.Variants))
	for i, v := range a.Variants {
		urls[i] = a.url(v)
	}
	return urls
}

func (a *Coddington2021) url(v CoddingtonVariant) string {
	return strings.TrimSuffix(a.Root, "/") + "/" + v.FileName()
}

func (a *Coddington2021) Fetch(ctx context.Context, f fetch.Fetcher, rawDir string) error {
	return fetchAll(ctx, f, a.URLs(), rawDir)
}

func (a *Coddington2021) Normalize(rawDir string) ([]Normalized, error) {
	out := make([]Normalized, 0, len(a.Variants))
	for _, v := range a.Variants {
		n, err := a.normalizeVariant(rawDir, v)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", a.ID(), v.Label, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func (a *Coddington2021) normalizeVariant(rawDir string, v CoddingtonVariant) (Normalized, error) {
	url := a.url(v)
	path, err := rawPath(rawDir, url)
	if err != nil {
		return Normalized{}, err
	}
	f, err := ncio.Open(path)
	if err != nil {
		return Normalized{}, err
	}
	defer f.Close()

	wv, err := f.Var(a.WavelengthVar)
	if err != nil {
		return Normalized{}, err
	}
	sv, err := f.Var(a.SSIVar)
	if err != nil {
		return Normalized{}, err
	}
	if sv.Rows != nil {
		return Normalized{}, fmt.Errorf("%s: %q is %v, want 1-D", path, a.SSIVar, sv.Shape())
	}

	w, err := units.New(wv.Values, wv.Units())
	if err != nil {
		return Normalized{}, err
	}
	ssi, err := units.New(sv.Values, units.RepairUnitSyntax(sv.Units()))
	if err != nil {
		return Normalized{}, err
	}

	return Normalized{
		Label:   v.Label,
		SSI:     ssi,
		W:       w,
		DataURL: url,
		Attrs: map[string]string{
			dataset.AttrTitle:       "TSIS-1 Hybrid Solar Reference Spectrum (HSRS)",
			dataset.AttrInstitution: "Laboratory for Atmospheric and Space Physics",
			dataset.AttrSource: "TSIS-1 Spectral Irradiance Monitor (SIM), CubeSat Compact SIM " +
				"(CSIM), Air Force Geophysical Laboratory ultraviolet solar " +
				"irradiance balloon observations, ground-based Quality Assurance " +
				"of Spectral Ultraviolet Measurements In Europe Fourier transform " +
				"spectrometer solar irradiance observations, Kitt Peak National " +
				"Observatory solar transmittance atlas and the semi-empirical " +
				"Solar Pseudo-Transmittance Spectrum atlas.",
			dataset.AttrReferences: "https://doi.org/10.1029/2020GL091709",
		},
	}, nil
}
