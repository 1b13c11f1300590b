// Package ncio reads and writes canonical datasets as netCDF classic files
// and exposes the variable readers the netCDF-based adapters share.
package ncio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	"github.com/KI7MT/ki7mt-ssi-apps/internal/dataset"
)

// Ext is the canonical file extension.
const Ext = ".nc"

// ErrNotCanonical is returned when a file lacks the canonical variables.
var ErrNotCanonical = errors.New("not a canonical ssi file")

// Write stores ds at path. The file is written next to path and renamed
// into place once complete.
func Write(path string, ds *dataset.Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir failed: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := write(tmpPath, ds); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename failed: %w", err)
	}
	return nil
}

func write(path string, ds *dataset.Dataset) error {
	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("open writer %s: %w", path, err)
	}

	vars := []struct {
		name   string
		values any
	}{
		{dataset.DimT, ds.T()},
		{dataset.DimW, ds.W()},
		{dataset.VarSSI, ds.SSI()},
	}
	for _, v := range vars {
		def, _ := dataset.LookupVariable(v.name)
		attrs, err := orderedAttrs(sortedKeys(ds.VarAttrs(v.name)), ds.VarAttrs(v.name))
		if err != nil {
			cw.Close()
			return err
		}
		err = cw.AddVar(v.name, api.Variable{
			Values:     v.values,
			Dimensions: def.Dims,
			Attributes: attrs,
		})
		if err != nil {
			cw.Close()
			return fmt.Errorf("add var %s: %w", v.name, err)
		}
	}

	global, err := orderedAttrs(ds.AttrKeys(), ds.Attrs())
	if err != nil {
		cw.Close()
		return err
	}
	if err := cw.AddAttributes(global); err != nil {
		cw.Close()
		return fmt.Errorf("add global attrs: %w", err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// Read loads a canonical file and validates it.
func Read(path string) (*dataset.Dataset, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	tv, err := nc.GetVariable(dataset.DimT)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotCanonical, path, err)
	}
	t, err := Float64s(tv.Values)
	if err != nil {
		return nil, fmt.Errorf("%s: t: %w", path, err)
	}

	wv, err := nc.GetVariable(dataset.DimW)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotCanonical, path, err)
	}
	w64, err := Float64s(wv.Values)
	if err != nil {
		return nil, fmt.Errorf("%s: w: %w", path, err)
	}
	w := make([]float32, len(w64))
	for i, v := range w64 {
		w[i] = float32(v)
	}

	sv, err := nc.GetVariable(dataset.VarSSI)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotCanonical, path, err)
	}
	rows, err := Float64Rows(sv.Values)
	if err != nil {
		return nil, fmt.Errorf("%s: ssi: %w", path, err)
	}
	ssi := make([][]float32, len(rows))
	for i, r := range rows {
		ssi[i] = make([]float32, len(r))
		for j, v := range r {
			ssi[i][j] = float32(v)
		}
	}

	ds, err := dataset.Restore(t, w, ssi, StringAttrs(nc.Attributes()),
		dataset.IsTimeIndependentAxis(StringAttrs(tv.Attributes)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

func orderedAttrs(keys []string, m map[string]string) (*util.OrderedMap, error) {
	vals := make(map[string]any, len(m))
	for k, v := range m {
		vals[k] = v
	}
	om, err := util.NewOrderedMap(keys, vals)
	if err != nil {
		return nil, fmt.Errorf("attributes: %w", err)
	}
	return om, nil
}
