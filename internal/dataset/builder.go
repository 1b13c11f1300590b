package dataset

import (
	"fmt"
	"math"
	"time"

	"github.com/KI7MT/ki7mt-ssi-apps/internal/units"
)

// Default tool identity recorded in history when no WithTool option is given.
var (
	DefaultTool    = "ki7mt-ssi-apps"
	DefaultVersion = "dev"
)

// Builder assembles canonical datasets. The zero value is not usable; call
// NewBuilder.
type Builder struct {
	now     func() time.Time
	tool    string
	version string
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock overrides the clock used for data_url_datetime and history.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithTool sets the producing tool name and version written to history.
func WithTool(name, version string) Option {
	return func(b *Builder) {
		b.tool = name
		b.version = version
	}
}

// NewBuilder returns a Builder with the given options applied.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{now: time.Now, tool: DefaultTool, version: DefaultVersion}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build assembles a dataset with a default Builder.
func Build(ssi, w units.Quantity, dataURL string, attrs map[string]string, t []time.Time) (*Dataset, error) {
	return NewBuilder().Build(ssi, w, dataURL, attrs, t)
}

// Build converts ssi and w to canonical units, orients ssi into (t, w),
// merges attrs with provenance and validates the result. A nil t yields a
// time-independent dataset with a singleton time axis.
func (b *Builder) Build(ssi, w units.Quantity, dataURL string, attrs map[string]string, t []time.Time) (*Dataset, error) {
	if w.NDim() != 1 {
		return nil, violation(DimW, -1, "wavelength must be 1-D, got shape %v", w.Shape())
	}
	wnm, err := w.Magnitudes(units.Nanometer)
	if err != nil {
		return nil, fmt.Errorf("wavelength: %w", err)
	}
	if err := checkWavelength(wnm); err != nil {
		return nil, err
	}
	wf := make([]float32, len(wnm))
	for i, v := range wnm {
		wf[i] = float32(v)
	}
	// Distinct float64 values can collapse at float32 precision.
	if err := checkWavelength(wf); err != nil {
		return nil, err
	}

	d := &Dataset{w: wf, attrs: make(map[string]string, len(attrs)+4)}
	if t == nil {
		d.t = []float64{0}
		d.timeIndependent = true
	} else {
		if len(t) == 0 {
			return nil, violation(DimT, -1, "time axis is empty")
		}
		d.t = make([]float64, len(t))
		for i, ts := range t {
			d.t[i] = DaysSinceEpoch(ts)
		}
		if err := checkTime(d.t); err != nil {
			return nil, err
		}
	}

	conv, err := ssi.To(units.Irradiance)
	if err != nil {
		return nil, fmt.Errorf("ssi: %w", err)
	}
	if d.ssi, err = orient(conv, len(d.t), len(d.w)); err != nil {
		return nil, err
	}

	d.attrs[AttrConventions] = Conventions
	for k, v := range attrs {
		d.attrs[k] = v
	}
	Provenance{
		DataURL:   dataURL,
		Retrieved: b.now(),
		Tool:      b.tool,
		Version:   b.version,
	}.Stamp(d.attrs)

	if err := Validate(d); err != nil {
		return nil, err
	}
	return d, nil
}

// orient reshapes q into nt rows of nw values. When nt equals nw the data is
// taken as already (t, w).
func orient(q units.Quantity, nt, nw int) ([][]float32, error) {
	shape := q.Shape()
	vals := q.Values()
	out := make([][]float32, nt)
	switch {
	case len(shape) == 1:
		if shape[0] != nw {
			return nil, violation(VarSSI, -1, "%d values for %d wavelengths", shape[0], nw)
		}
		if nt != 1 {
			return nil, violation(VarSSI, -1, "1-D spectrum given with %d time entries", nt)
		}
		out[0] = toFloat32(vals)
	case len(shape) == 2 && shape[0] == nt && shape[1] == nw:
		for i := range out {
			out[i] = toFloat32(vals[i*nw : (i+1)*nw])
		}
	case len(shape) == 2 && shape[0] == nw && shape[1] == nt:
		for i := range out {
			row := make([]float32, nw)
			for j := range row {
				row[j] = float32(vals[j*nt+i])
			}
			out[i] = row
		}
	default:
		return nil, violation(VarSSI, -1, "shape %v aligns with neither (t=%d, w=%d) nor (w, t)", shape, nt, nw)
	}
	return out, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// DaysSinceEpoch converts ts into fractional days since Epoch.
func DaysSinceEpoch(ts time.Time) float64 {
	return ts.Sub(Epoch).Hours() / 24
}

// Day returns midnight UTC of the given calendar date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ValidPoints counts the finite ssi values.
func (d *Dataset) ValidPoints() int {
	n := 0
	for _, row := range d.ssi {
		for _, v := range row {
			if !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0) {
				n++
			}
		}
	}
	return n
}
