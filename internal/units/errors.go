package units

import (
	"errors"
	"fmt"
)

// Sentinel roots for errors.Is checks.
var (
	ErrInvalidUnit       = errors.New("invalid unit")
	ErrIncompatibleUnits = errors.New("incompatible units")
)

// InvalidUnitError reports a unit expression that cannot be parsed.
type InvalidUnitError struct {
	Expr   string
	Reason string
}

func (e *InvalidUnitError) Error() string {
	return fmt.Sprintf("invalid unit %q: %s", e.Expr, e.Reason)
}

func (e *InvalidUnitError) Unwrap() error { return ErrInvalidUnit }

// IncompatibleUnitsError reports a conversion between units of different dimensions.
type IncompatibleUnitsError struct {
	From string
	To   string
}

func (e *IncompatibleUnitsError) Error() string {
	return fmt.Sprintf("cannot convert %q to %q: dimensions differ", e.From, e.To)
}

func (e *IncompatibleUnitsError) Unwrap() error { return ErrIncompatibleUnits }
