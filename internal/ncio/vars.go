package ncio

import (
	"errors"
	"fmt"
	"sort"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
)

// ErrValueType is returned when a variable holds values of an unsupported type.
var ErrValueType = errors.New("unsupported variable type")

// Var is one variable read from a netCDF file, widened to float64.
type Var struct {
	Name  string
	Dims  []string
	Attrs map[string]string
	// Values is set for 1-D variables, Rows for 2-D ones.
	Values []float64
	Rows   [][]float64
}

// Units returns the units attribute, or "" when absent.
func (v *Var) Units() string { return v.Attrs["units"] }

// Shape returns the variable's dimension lengths.
func (v *Var) Shape() []int {
	if v.Rows == nil {
		return []int{len(v.Values)}
	}
	cols := 0
	if len(v.Rows) > 0 {
		cols = len(v.Rows[0])
	}
	return []int{len(v.Rows), cols}
}

// File is an open netCDF or HDF5-backed netCDF4 file.
type File struct {
	path string
	nc   api.Group
}

// Open opens any netCDF file the reader understands.
func Open(path string) (*File, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &File{path: path, nc: nc}, nil
}

// Close releases the file.
func (f *File) Close() { f.nc.Close() }

// Variables lists the variable names in the file.
func (f *File) Variables() []string { return f.nc.ListVariables() }

// GlobalAttrs returns the file's global attributes as strings.
func (f *File) GlobalAttrs() map[string]string { return StringAttrs(f.nc.Attributes()) }

// Var reads one variable.
func (f *File) Var(name string) (*Var, error) {
	v, err := f.nc.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("%s: variable %q: %w", f.path, name, err)
	}
	out := &Var{Name: name, Dims: v.Dimensions, Attrs: StringAttrs(v.Attributes)}
	switch len(v.Dimensions) {
	case 1:
		out.Values, err = Float64s(v.Values)
	case 2:
		out.Rows, err = Float64Rows(v.Values)
	default:
		err = fmt.Errorf("%w: %d dimensions", ErrValueType, len(v.Dimensions))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: variable %q: %w", f.path, name, err)
	}
	return out, nil
}

// ReadVar opens path, reads one variable and closes the file.
func ReadVar(path, name string) (*Var, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Var(name)
}

type number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

func widen[T number](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func widenRows[T number](in [][]T) [][]float64 {
	out := make([][]float64, len(in))
	for i, r := range in {
		out[i] = widen(r)
	}
	return out
}

// Float64s converts a 1-D netCDF value slice to float64.
func Float64s(values any) ([]float64, error) {
	switch v := values.(type) {
	case []float64:
		return append([]float64(nil), v...), nil
	case []float32:
		return widen(v), nil
	case []int8:
		return widen(v), nil
	case []int16:
		return widen(v), nil
	case []int32:
		return widen(v), nil
	case []int64:
		return widen(v), nil
	case []uint8:
		return widen(v), nil
	case []uint16:
		return widen(v), nil
	case []uint32:
		return widen(v), nil
	case []uint64:
		return widen(v), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrValueType, values)
}

// Float64Rows converts a 2-D netCDF value slice to float64 rows.
func Float64Rows(values any) ([][]float64, error) {
	switch v := values.(type) {
	case [][]float64:
		return widenRows(v), nil
	case [][]float32:
		return widenRows(v), nil
	case [][]int8:
		return widenRows(v), nil
	case [][]int16:
		return widenRows(v), nil
	case [][]int32:
		return widenRows(v), nil
	case [][]int64:
		return widenRows(v), nil
	case [][]uint8:
		return widenRows(v), nil
	case [][]uint16:
		return widenRows(v), nil
	case [][]uint32:
		return widenRows(v), nil
	case [][]uint64:
		return widenRows(v), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrValueType, values)
}

// StringAttrs flattens an attribute map to strings. Non-string values are
// formatted with %v.
func StringAttrs(am api.AttributeMap) map[string]string {
	out := map[string]string{}
	if am == nil {
		return out
	}
	for _, k := range am.Keys() {
		v, ok := am.Get(k)
		if !ok {
			continue
		}
		switch s := v.(type) {
		case string:
			out[k] = s
		default:
			out[k] = fmt.Sprint(s)
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WriteVars writes arbitrary variables to a classic netCDF file. Values keep
// the Go type they are given; Rows take precedence over Values.
func WriteVars(path string, vars []Var, global map[string]string) error {
	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("open writer %s: %w", path, err)
	}
	for _, v := range vars {
		attrs, err := orderedAttrs(sortedKeys(v.Attrs), v.Attrs)
		if err != nil {
			cw.Close()
			return err
		}
		var values any = v.Values
		if v.Rows != nil {
			values = v.Rows
		}
		if err := cw.AddVar(v.Name, api.Variable{Values: values, Dimensions: v.Dims, Attributes: attrs}); err != nil {
			cw.Close()
			return fmt.Errorf("add var %s: %w", v.Name, err)
		}
	}
	if len(global) > 0 {
		om, err := orderedAttrs(sortedKeys(global), global)
		if err != nil {
			cw.Close()
			return err
		}
		if err := cw.AddAttributes(om); err != nil {
			cw.Close()
			return fmt.Errorf("add global attrs: %w", err)
		}
	}
	return cw.Close()
}
