package units

import (
	"errors"
	"fmt"
)

// ErrShape is returned when array shapes do not line up.
var ErrShape = errors.New("shape mismatch")

// Quantity is a 1-D or 2-D (row-major) float64 array tagged with a unit.
// Quantities are values: every operation returns a new Quantity.
type Quantity struct {
	values []float64
	shape  []int
	unit   Unit
}

// New returns a 1-D quantity. The values are copied.
func New(values []float64, unit string) (Quantity, error) {
	u, err := Parse(unit)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{
		values: append([]float64(nil), values...),
		shape:  []int{len(values)},
		unit:   u,
	}, nil
}

// NewMatrix returns a 2-D quantity from rows of equal length.
func NewMatrix(rows [][]float64, unit string) (Quantity, error) {
	u, err := Parse(unit)
	if err != nil {
		return Quantity{}, err
	}
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	flat := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return Quantity{}, fmt.Errorf("%w: row %d has %d values, want %d", ErrShape, i, len(r), cols)
		}
		flat = append(flat, r...)
	}
	return Quantity{values: flat, shape: []int{len(rows), cols}, unit: u}, nil
}

// Unit returns the quantity's unit.
func (q Quantity) Unit() Unit { return q.unit }

// Shape returns a copy of the array shape.
func (q Quantity) Shape() []int { return append([]int(nil), q.shape...) }

// NDim returns the number of dimensions.
func (q Quantity) NDim() int { return len(q.shape) }

// Len returns the total number of values.
func (q Quantity) Len() int { return len(q.values) }

// Values returns a copy of the flattened magnitudes.
func (q Quantity) Values() []float64 { return append([]float64(nil), q.values...) }

// Rows returns the magnitudes as rows. A 1-D quantity yields one row.
func (q Quantity) Rows() [][]float64 {
	if len(q.shape) == 1 {
		return [][]float64{q.Values()}
	}
	rows := make([][]float64, q.shape[0])
	for i := range rows {
		rows[i] = append([]float64(nil), q.values[i*q.shape[1]:(i+1)*q.shape[1]]...)
	}
	return rows
}

// To converts q into the target unit.
func (q Quantity) To(target string) (Quantity, error) {
	u, err := Parse(target)
	if err != nil {
		return Quantity{}, err
	}
	return q.ToUnit(u)
}

// ToUnit converts q into u.
func (q Quantity) ToUnit(u Unit) (Quantity, error) {
	if !q.unit.Compatible(u) {
		return Quantity{}, &IncompatibleUnitsError{From: q.unit.String(), To: u.String()}
	}
	return q.scaled(q.unit.Scale()/u.Scale(), u), nil
}

// Magnitudes converts q into the target unit and returns the flat values.
func (q Quantity) Magnitudes(target string) ([]float64, error) {
	c, err := q.To(target)
	if err != nil {
		return nil, err
	}
	return c.values, nil
}

// Scale multiplies every value by f, keeping the unit.
func (q Quantity) Scale(f float64) Quantity { return q.scaled(f, q.unit) }

func (q Quantity) scaled(f float64, u Unit) Quantity {
	out := Quantity{values: make([]float64, len(q.values)), shape: q.Shape(), unit: u}
	for i, v := range q.values {
		out.values[i] = v * f
	}
	return out
}

// Add returns q + o, converting o into q's unit first.
func (q Quantity) Add(o Quantity) (Quantity, error) { return q.additive(o, 1) }

// Sub returns q - o, converting o into q's unit first.
func (q Quantity) Sub(o Quantity) (Quantity, error) { return q.additive(o, -1) }

func (q Quantity) additive(o Quantity, sign float64) (Quantity, error) {
	if err := q.sameShape(o); err != nil {
		return Quantity{}, err
	}
	c, err := o.ToUnit(q.unit)
	if err != nil {
		return Quantity{}, err
	}
	out := q.scaled(1, q.unit)
	for i := range out.values {
		out.values[i] += sign * c.values[i]
	}
	return out, nil
}

// Mul returns the element-wise product with the product unit.
func (q Quantity) Mul(o Quantity) (Quantity, error) {
	if err := q.sameShape(o); err != nil {
		return Quantity{}, err
	}
	out := q.scaled(1, q.unit.Mul(o.unit))
	for i := range out.values {
		out.values[i] *= o.values[i]
	}
	return out, nil
}

// Div returns the element-wise quotient with the quotient unit.
func (q Quantity) Div(o Quantity) (Quantity, error) {
	if err := q.sameShape(o); err != nil {
		return Quantity{}, err
	}
	out := q.scaled(1, q.unit.Div(o.unit))
	for i := range out.values {
		out.values[i] /= o.values[i]
	}
	return out, nil
}

func (q Quantity) sameShape(o Quantity) error {
	if len(q.shape) != len(o.shape) {
		return fmt.Errorf("%w: %v vs %v", ErrShape, q.shape, o.shape)
	}
	for i := range q.shape {
		if q.shape[i] != o.shape[i] {
			return fmt.Errorf("%w: %v vs %v", ErrShape, q.shape, o.shape)
		}
	}
	return nil
}
