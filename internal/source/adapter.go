// Package source holds one adapter per upstream solar irradiance dataset
// family. An adapter knows where its raw files live and how to turn them
// into quantities and attributes; schema enforcement belongs to the
// dataset builder.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/KI7MT/ki7mt-ssi-apps/internal/dataset"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/fetch"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/units"
)

// ErrUnknownSource is returned by Lookup for an unregistered identifier.
var ErrUnknownSource = errors.New("unknown source")

// ErrRawMissing is returned when Normalize finds no raw file to read.
var ErrRawMissing = errors.New("raw file missing")

// Adapter fetches and normalizes one dataset family.
type Adapter interface {
	// ID is the dataset identifier and the stem of every output name.
	ID() string
	// Describe is a one-line human description.
	Describe() string
	// URLs lists every remote file Fetch retrieves.
	URLs() []string
	// Fetch downloads the raw files into rawDir.
	Fetch(ctx context.Context, f fetch.Fetcher, rawDir string) error
	// Normalize parses the raw files in rawDir. Multi-output sources return
	// one entry per labelled sub-range.
	Normalize(rawDir string) ([]Normalized, error)
}

// Normalized is one builder input produced by an adapter.
type Normalized struct {
	// Label distinguishes outputs of a multi-output source; empty otherwise.
	Label   string
	SSI     units.Quantity
	W       units.Quantity
	T       []time.Time
	DataURL string
	Attrs   map[string]string
}

// OutputName is the file stem for this output of adapter id.
func (n Normalized) OutputName(id string) string {
	return dataset.OutputName(id, n.Label)
}

// fetchAll downloads every URL into rawDir, in order.
func fetchAll(ctx context.Context, f fetch.Fetcher, urls []string, rawDir string) error {
	for _, u := range urls {
		if _, err := f.Fetch(ctx, u, rawDir); err != nil {
			return err
		}
	}
	return nil
}

// rawPath returns the local path of url inside rawDir, or ErrRawMissing.
func rawPath(rawDir, url string) (string, error) {
	name, err := fetch.FileName(url)
	if err != nil {
		return "", err
	}
	p := filepath.Join(rawDir, name)
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("%w: %s", ErrRawMissing, p)
	}
	return p, nil
}

// period formats an observation_period attribute.
func period(start, end time.Time) string {
	return start.Format(time.DateOnly) + " to " + end.Format(time.DateOnly)
}

// mask keeps the rows of cols where keep(w) holds for the first column.
func mask(cols [][]float64, keep func(w float64) bool) [][]float64 {
	out := make([][]float64, len(cols))
	for i := range cols[0] {
		if !keep(cols[0][i]) {
			continue
		}
		for c := range cols {
			out[c] = append(out[c], cols[c][i])
		}
	}
	return out
}
