package dataset

import (
	"strings"
	"time"
)

// Conventions is the CF version the canonical files claim.
const Conventions = "CF-1.10"

// Epoch is the reference time of the t coordinate.
var Epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// TimeUnits is the CF units string of the t coordinate.
const TimeUnits = "days since 1970-01-01 00:00:00"

// Dimension and variable names.
const (
	DimT   = "t"
	DimW   = "w"
	VarSSI = "ssi"
)

// Global attribute keys.
const (
	AttrConventions       = "Conventions"
	AttrTitle             = "title"
	AttrInstitution       = "institution"
	AttrSource            = "source"
	AttrReferences        = "references"
	AttrDataURL           = "data_url"
	AttrDataURLDatetime   = "data_url_datetime"
	AttrHistory           = "history"
	AttrObservationPeriod = "observation_period"
	AttrComment           = "comment"
)

// MandatoryAttrs must be present and non-empty on every canonical dataset.
var MandatoryAttrs = []string{
	AttrTitle,
	AttrInstitution,
	AttrSource,
	AttrReferences,
	AttrDataURL,
	AttrDataURLDatetime,
	AttrHistory,
}

// Variable describes the fixed metadata of one schema variable.
// CF Standard Name Table version 77.
type Variable struct {
	Name         string
	Dims         []string
	Units        string
	StandardName string
	LongName     string
}

// Variables is the canonical schema table.
var Variables = []Variable{
	{Name: DimT, Dims: []string{DimT}, Units: TimeUnits, StandardName: "time", LongName: "time"},
	{Name: DimW, Dims: []string{DimW}, Units: "nm", StandardName: "radiation_wavelength", LongName: "wavelength"},
	{Name: VarSSI, Dims: []string{DimT, DimW}, Units: "W m-2 nm-1", StandardName: "solar_irradiance_per_unit_wavelength", LongName: "solar spectral irradiance"},
}

// timeIndependentComment marks the synthesized singleton time axis.
const timeIndependentComment = "time-independent spectrum: singleton time axis"

// Attrs returns the variable attributes written next to the data.
func (v Variable) Attrs() map[string]string {
	return map[string]string{
		"units":         v.Units,
		"standard_name": v.StandardName,
		"long_name":     v.LongName,
	}
}

// LookupVariable returns the schema entry for name.
func LookupVariable(name string) (Variable, bool) {
	for _, v := range Variables {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

// OutputName derives the file stem for a dataset: the identifier alone, or
// "<id>-<label>" with spaces in the label replaced by underscores.
func OutputName(id, label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return id
	}
	return id + "-" + strings.ReplaceAll(label, " ", "_")
}
