// Package units provides a small physical unit registry and a Quantity type
// pairing numeric arrays with a unit.
//
// Only the dimensions needed by solar spectra are modelled: length, mass
// and time. Irradiance per unit wavelength reduces to kg m^-1 s^-3, so
// W m^-2 nm^-1, mW/m^2/nm and microwatt/cm^2/nm all convert to each
// other while nm and days do not.
package units

import (
	"strconv"
	"strings"
	"unicode"
)

// Canonical units of the normalized schema.
const (
	Nanometer     = "nm"
	Irradiance    = "W m^-2 nm^-1"
	Day           = "days"
	Dimensionless = "1"
)

// Dimension holds base exponents for length, mass and time.
type Dimension [3]int

const (
	dimLength = iota
	dimMass
	dimTime
)

func (d Dimension) add(o Dimension, sign int) Dimension {
	var out Dimension
	for i := range d {
		out[i] = d[i] + sign*o[i]
	}
	return out
}

func (d Dimension) scale(n int) Dimension {
	var out Dimension
	for i := range d {
		out[i] = d[i] * n
	}
	return out
}

type baseUnit struct {
	scale    float64 // to SI base (m, kg, s)
	dim      Dimension
	prefixed bool // accepts SI prefixes
}

var (
	length = Dimension{dimLength: 1}
	mass   = Dimension{dimMass: 1}
	tm     = Dimension{dimTime: 1}
	power  = Dimension{dimLength: 2, dimMass: 1, dimTime: -3}
	energy = Dimension{dimLength: 2, dimMass: 1, dimTime: -2}
)

var registry = map[string]baseUnit{
	"m":        {1, length, true},
	"meter":    {1, length, true},
	"metre":    {1, length, true},
	"micron":   {1e-6, length, false},
	"angstrom": {1e-10, length, false},
	"Å":        {1e-10, length, false},
	"g":        {1e-3, mass, true},
	"gram":     {1e-3, mass, true},
	"s":        {1, tm, true},
	"sec":      {1, tm, false},
	"second":   {1, tm, true},
	"min":      {60, tm, false},
	"minute":   {60, tm, false},
	"h":        {3600, tm, false},
	"hr":       {3600, tm, false},
	"hour":     {3600, tm, false},
	"d":        {86400, tm, false},
	"day":      {86400, tm, false},
	"W":        {1, power, true},
	"watt":     {1, power, true},
	"J":        {1, energy, true},
	"joule":    {1, energy, true},
	"erg":      {1e-7, energy, false},
}

// Longer prefixes are tried first so "micro" wins over "m".
var prefixes = []struct {
	name  string
	scale float64
}{
	{"micro", 1e-6},
	{"milli", 1e-3},
	{"centi", 1e-2},
	{"nano", 1e-9},
	{"pico", 1e-12},
	{"kilo", 1e3},
	{"mega", 1e6},
	{"giga", 1e9},
	{"p", 1e-12},
	{"n", 1e-9},
	{"u", 1e-6},
	{"µ", 1e-6},
	{"μ", 1e-6},
	{"m", 1e-3},
	{"c", 1e-2},
	{"k", 1e3},
	{"M", 1e6},
	{"G", 1e9},
}

type factor struct {
	sym string
	exp int
}

// Unit is a parsed unit expression.
type Unit struct {
	factors []factor
	scale   float64
	dim     Dimension
}

// String renders the unit in canonical caret form, e.g. "W m^-2 nm^-1".
func (u Unit) String() string {
	if len(u.factors) == 0 {
		return Dimensionless
	}
	parts := make([]string, len(u.factors))
	for i, f := range u.factors {
		if f.exp == 1 {
			parts[i] = f.sym
		} else {
			parts[i] = f.sym + "^" + strconv.Itoa(f.exp)
		}
	}
	return strings.Join(parts, " ")
}

// Dimension returns the base dimension exponents.
func (u Unit) Dimension() Dimension { return u.dim }

// Scale returns the factor converting one of u into SI base units.
func (u Unit) Scale() float64 {
	if u.scale == 0 {
		return 1
	}
	return u.scale
}

// Compatible reports whether u and o share a dimension.
func (u Unit) Compatible(o Unit) bool { return u.dim == o.dim }

// Mul returns the product unit.
func (u Unit) Mul(o Unit) Unit { return u.combine(o, 1) }

// Div returns the quotient unit.
func (u Unit) Div(o Unit) Unit { return u.combine(o, -1) }

func (u Unit) combine(o Unit, sign int) Unit {
	out := Unit{
		scale: u.Scale(),
		dim:   u.dim.add(o.dim, sign),
	}
	if sign > 0 {
		out.scale *= o.Scale()
	} else {
		out.scale /= o.Scale()
	}
	out.factors = append(out.factors, u.factors...)
	for _, f := range o.factors {
		merged := false
		for i := range out.factors {
			if out.factors[i].sym == f.sym {
				out.factors[i].exp += sign * f.exp
				merged = true
				break
			}
		}
		if !merged {
			out.factors = append(out.factors, factor{sym: f.sym, exp: sign * f.exp})
		}
	}
	kept := out.factors[:0]
	for _, f := range out.factors {
		if f.exp != 0 {
			kept = append(kept, f)
		}
	}
	out.factors = kept
	return out
}

// MustParse is Parse for package-level constants; it panics on error.
func MustParse(expr string) Unit {
	u, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return u
}

// Parse parses a unit expression such as "W m^-2 nm^-1", "W/m^2/nm",
// "microwatt/cm^2/nm" or "W * m**-2 * nm**-1". Exponents require a caret;
// use RepairUnitSyntax on upstream strings like "m-2" first.
func Parse(expr string) (Unit, error) {
	src := strings.TrimSpace(expr)
	if src == "" {
		return Unit{}, &InvalidUnitError{Expr: expr, Reason: "empty expression"}
	}
	s := []rune(strings.ReplaceAll(src, "**", "^"))

	out := Unit{scale: 1, factors: []factor{}}
	divide := false
	expectFactor := true
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case unicode.IsSpace(c) || c == '*' || c == '·':
			i++
			continue
		case c == '/':
			if divide || (expectFactor && len(out.factors) == 0 && i == 0) {
				return Unit{}, &InvalidUnitError{Expr: expr, Reason: "dangling '/'"}
			}
			divide = true
			expectFactor = true
			i++
			continue
		case c == '1':
			// dimensionless 1, as in "1/nm"
			j := i + 1
			if j < len(s) && (unicode.IsDigit(s[j]) || s[j] == '.') {
				return Unit{}, &InvalidUnitError{Expr: expr, Reason: "numeric scale factors are not supported"}
			}
			i = j
			divide = false
			expectFactor = false
			continue
		case unicode.IsLetter(c) || c == 'µ' || c == 'Å':
		default:
			return Unit{}, &InvalidUnitError{Expr: expr, Reason: "unexpected character " + strconv.QuoteRune(c)}
		}

		j := i
		for j < len(s) && (unicode.IsLetter(s[j]) || s[j] == 'µ' || s[j] == 'Å') {
			j++
		}
		name := string(s[i:j])
		exp := 1
		if j < len(s) && s[j] == '^' {
			k := j + 1
			if k < len(s) && (s[k] == '-' || s[k] == '+') {
				k++
			}
			start := k
			for k < len(s) && unicode.IsDigit(s[k]) {
				k++
			}
			if start == k {
				return Unit{}, &InvalidUnitError{Expr: expr, Reason: "missing exponent after '^' in " + strconv.Quote(name)}
			}
			n, err := strconv.Atoi(string(s[j+1 : k]))
			if err != nil {
				return Unit{}, &InvalidUnitError{Expr: expr, Reason: err.Error()}
			}
			exp = n
			j = k
		} else if j < len(s) && (unicode.IsDigit(s[j]) || s[j] == '-' || s[j] == '+') {
			return Unit{}, &InvalidUnitError{Expr: expr, Reason: "exponent without caret after " + strconv.Quote(name)}
		}

		scale, dim, sym, ok := lookup(name)
		if !ok {
			return Unit{}, &InvalidUnitError{Expr: expr, Reason: "unknown unit " + strconv.Quote(name)}
		}
		if divide {
			exp = -exp
		}
		f := Unit{factors: []factor{{sym: sym, exp: exp}}, dim: dim.scale(exp), scale: pow(scale, exp)}
		out = out.Mul(f)
		divide = false
		expectFactor = false
		i = j
	}
	if divide {
		return Unit{}, &InvalidUnitError{Expr: expr, Reason: "dangling '/'"}
	}
	return out, nil
}

// lookup resolves a unit name, trying exact names, then SI prefixes,
// then a trailing plural "s".
func lookup(name string) (float64, Dimension, string, bool) {
	if b, ok := registry[name]; ok {
		return b.scale, b.dim, name, true
	}
	for _, p := range prefixes {
		rest, found := strings.CutPrefix(name, p.name)
		if !found || rest == "" {
			continue
		}
		if b, ok := registry[rest]; ok && b.prefixed {
			return p.scale * b.scale, b.dim, name, true
		}
	}
	if len(name) > 3 && strings.HasSuffix(name, "s") {
		if scale, dim, _, ok := lookup(strings.TrimSuffix(name, "s")); ok {
			return scale, dim, name, true
		}
	}
	return 0, Dimension{}, "", false
}

func pow(x float64, n int) float64 {
	out := 1.0
	if n < 0 {
		x = 1 / x
		n = -n
	}
	for ; n > 0; n-- {
		out *= x
	}
	return out
}
