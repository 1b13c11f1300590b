// Package dataset defines the canonical solar spectral irradiance dataset
// and the builder every source adapter funnels through.
//
// A Dataset has two axes, t (days since Epoch, non-decreasing) and w
// (nanometers, strictly increasing), one data variable ssi indexed [t][w]
// in W m^-2 nm^-1, and a set of global attributes that always includes the
// provenance fields. Datasets are immutable once built; accessors return
// copies.
package dataset

import (
	"math"
	"sort"
	"time"
)

// Dataset is a schema-conformant solar irradiance spectrum.
type Dataset struct {
	t               []float64
	w               []float32
	ssi             [][]float32
	attrs           map[string]string
	timeIndependent bool
}

// T returns the time coordinate in days since Epoch.
func (d *Dataset) T() []float64 { return append([]float64(nil), d.t...) }

// Times returns the time coordinate as UTC timestamps.
func (d *Dataset) Times() []time.Time {
	out := make([]time.Time, len(d.t))
	for i, days := range d.t {
		out[i] = Epoch.Add(time.Duration(days * float64(24*time.Hour)))
	}
	return out
}

// W returns the wavelength coordinate in nm.
func (d *Dataset) W() []float32 { return append([]float32(nil), d.w...) }

// SSI returns the irradiance array indexed [t][w].
func (d *Dataset) SSI() [][]float32 {
	out := make([][]float32, len(d.ssi))
	for i, row := range d.ssi {
		out[i] = append([]float32(nil), row...)
	}
	return out
}

// NT returns the length of the time axis.
func (d *Dataset) NT() int { return len(d.t) }

// NW returns the length of the wavelength axis.
func (d *Dataset) NW() int { return len(d.w) }

// TimeIndependent reports whether the time axis was synthesized.
func (d *Dataset) TimeIndependent() bool { return d.timeIndependent }

// Attr returns one global attribute.
func (d *Dataset) Attr(key string) (string, bool) {
	v, ok := d.attrs[key]
	return v, ok
}

// Attrs returns a copy of the global attributes.
func (d *Dataset) Attrs() map[string]string {
	out := make(map[string]string, len(d.attrs))
	for k, v := range d.attrs {
		out[k] = v
	}
	return out
}

// AttrKeys returns the global attribute keys: mandatory keys in schema
// order first, then the rest sorted.
func (d *Dataset) AttrKeys() []string {
	keys := make([]string, 0, len(d.attrs))
	seen := make(map[string]bool, len(d.attrs))
	if _, ok := d.attrs[AttrConventions]; ok {
		keys = append(keys, AttrConventions)
		seen[AttrConventions] = true
	}
	for _, k := range MandatoryAttrs {
		if _, ok := d.attrs[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range d.attrs {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// VarAttrs returns the variable attributes of t, w or ssi.
func (d *Dataset) VarAttrs(name string) map[string]string {
	v, ok := LookupVariable(name)
	if !ok {
		return nil
	}
	attrs := v.Attrs()
	if name == DimT {
		attrs["calendar"] = "standard"
		if d.timeIndependent {
			attrs[AttrComment] = timeIndependentComment
		}
	}
	return attrs
}

// IsTimeIndependentAxis reports whether the t variable attributes mark a
// synthesized singleton axis.
func IsTimeIndependentAxis(tAttrs map[string]string) bool {
	return tAttrs[AttrComment] == timeIndependentComment
}

// WithHistory returns a copy of d with entry appended to the history log.
func (d *Dataset) WithHistory(entry string) *Dataset {
	out := &Dataset{
		t:               d.T(),
		w:               d.W(),
		ssi:             d.SSI(),
		attrs:           d.Attrs(),
		timeIndependent: d.timeIndependent,
	}
	out.attrs[AttrHistory] = appendHistory(out.attrs[AttrHistory], entry)
	return out
}

// Restore rebuilds a dataset read back from storage. It validates the
// schema but does not stamp new provenance.
func Restore(t []float64, w []float32, ssi [][]float32, attrs map[string]string, timeIndependent bool) (*Dataset, error) {
	d := &Dataset{
		t:               append([]float64(nil), t...),
		w:               append([]float32(nil), w...),
		ssi:             make([][]float32, len(ssi)),
		attrs:           make(map[string]string, len(attrs)),
		timeIndependent: timeIndependent,
	}
	for i, row := range ssi {
		d.ssi[i] = append([]float32(nil), row...)
	}
	for k, v := range attrs {
		d.attrs[k] = v
	}
	if err := Validate(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks d against the canonical schema.
func Validate(d *Dataset) error {
	if err := checkWavelength(d.w); err != nil {
		return err
	}
	if err := checkTime(d.t); err != nil {
		return err
	}
	if d.timeIndependent && len(d.t) != 1 {
		return violation(DimT, -1, "time-independent dataset has %d time entries", len(d.t))
	}
	if len(d.ssi) != len(d.t) {
		return violation(VarSSI, -1, "%d rows for %d time entries", len(d.ssi), len(d.t))
	}
	for i, row := range d.ssi {
		if len(row) != len(d.w) {
			return violation(VarSSI, i, "row has %d values for %d wavelengths", len(row), len(d.w))
		}
	}
	return checkAttrs(d.attrs)
}

func checkWavelength[T float32 | float64](w []T) error {
	if len(w) == 0 {
		return violation(DimW, -1, "wavelength axis is empty")
	}
	for i, v := range w {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return violation(DimW, i, "non-finite wavelength %v", f)
		}
		if i > 0 && !(v > w[i-1]) {
			if v == w[i-1] {
				return violation(DimW, i, "duplicate wavelength %v nm", f)
			}
			return violation(DimW, i, "wavelength %v nm follows %v nm: axis must be strictly increasing", f, float64(w[i-1]))
		}
	}
	return nil
}

func checkTime(t []float64) error {
	if len(t) == 0 {
		return violation(DimT, -1, "time axis is empty")
	}
	for i, v := range t {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return violation(DimT, i, "non-finite time %v", v)
		}
		if i > 0 && v < t[i-1] {
			return violation(DimT, i, "time %v days precedes %v days: axis must be non-decreasing", v, t[i-1])
		}
	}
	return nil
}

func checkAttrs(attrs map[string]string) error {
	var missing []string
	for _, k := range MandatoryAttrs {
		if attrs[k] == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return &MissingMetadataError{Keys: missing}
	}
	return nil
}
