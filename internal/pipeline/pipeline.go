// Package pipeline runs fetch, normalize, build and persist for source
// adapters. Building in memory and persisting are separate operations;
// where output goes is always passed in by the caller.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/KI7MT/ki7mt-ssi-apps/internal/cache"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/common"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/dataset"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/fetch"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/metrics"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/source"
)

// ErrNoSink is returned by BuildAndPersist when no destination is given.
var ErrNoSink = errors.New("no sink given")

// Sink persists one canonical dataset and returns where it went.
type Sink interface {
	Persist(ctx context.Context, name string, ds *dataset.Dataset) (string, error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, name string, ds *dataset.Dataset) (string, error)

// Persist implements Sink.
func (f SinkFunc) Persist(ctx context.Context, name string, ds *dataset.Dataset) (string, error) {
	return f(ctx, name, ds)
}

// Output is one built dataset and the name it is stored under.
type Output struct {
	Source  string
	Name    string
	Dataset *dataset.Dataset
}

// Persisted records the locations an output was written to.
type Persisted struct {
	Output
	Locations []string
}

// Runner converts sources. Fetcher and Cache are required; the rest are
// optional.
type Runner struct {
	Fetcher fetch.Fetcher
	Cache   *cache.Cache
	Builder *dataset.Builder
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Stats   *common.Stats
	// SkipFetch normalizes from what is already in the raw cache.
	SkipFetch bool
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Runner) builder() *dataset.Builder {
	if r.Builder == nil {
		return dataset.NewBuilder()
	}
	return r.Builder
}

// BuildInMemory fetches, normalizes and builds every output of a, and
// returns them without persisting anything.
func (r *Runner) BuildInMemory(ctx context.Context, a source.Adapter) (out []Output, err error) {
	start := time.Now()
	log := r.logger().With(slog.String("source", a.ID()))
	defer func() {
		r.Metrics.ObserveConversion(a.ID(), time.Since(start), err)
		if err != nil && r.Stats != nil {
			r.Stats.AddFailure()
		}
	}()

	rawDir := r.Cache.RawDir(a.ID())
	if r.SkipFetch {
		log.Debug("skipping fetch", slog.String("raw_dir", rawDir))
	} else {
		log.Info("fetching", slog.Int("files", len(a.URLs())))
		if err := a.Fetch(ctx, r.Fetcher, rawDir); err != nil {
			return nil, fmt.Errorf("%s: fetch: %w", a.ID(), err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	normalized, err := a.Normalize(rawDir)
	if err != nil {
		return nil, fmt.Errorf("%s: normalize: %w", a.ID(), err)
	}

	b := r.builder()
	out = make([]Output, 0, len(normalized))
	for _, n := range normalized {
		name := n.OutputName(a.ID())
		ds, err := b.Build(n.SSI, n.W, n.DataURL, n.Attrs, n.T)
		if err != nil {
			return nil, fmt.Errorf("%s: build: %w", name, err)
		}
		points := ds.NT() * ds.NW()
		r.Metrics.AddPoints(a.ID(), points)
		if r.Stats != nil {
			r.Stats.AddDataset(uint64(points))
		}
		log.Info("built", slog.String("name", name), slog.Int("nt", ds.NT()), slog.Int("nw", ds.NW()))
		out = append(out, Output{Source: a.ID(), Name: name, Dataset: ds})
	}
	return out, nil
}

// BuildAndPersist builds every output of a and writes each to every sink.
// It fails on the first error.
func (r *Runner) BuildAndPersist(ctx context.Context, a source.Adapter, sinks ...Sink) ([]Persisted, error) {
	if len(sinks) == 0 {
		return nil, ErrNoSink
	}
	outputs, err := r.BuildInMemory(ctx, a)
	if err != nil {
		return nil, err
	}
	persisted := make([]Persisted, 0, len(outputs))
	for _, o := range outputs {
		p := Persisted{Output: o}
		for _, s := range sinks {
			loc, err := s.Persist(ctx, o.Name, o.Dataset)
			if err != nil {
				return nil, fmt.Errorf("%s: persist: %w", o.Name, err)
			}
			r.Metrics.IncPersisted(fmt.Sprintf("%T", s))
			r.logger().Info("persisted", slog.String("name", o.Name), slog.String("location", loc))
			p.Locations = append(p.Locations, loc)
		}
		persisted = append(persisted, p)
	}
	return persisted, nil
}

// RunAll converts adapters concurrently, at most limit at a time (limit <= 0
// means no limit). With no sinks the outputs are built in memory only.
// Results keep the order of adapters; the first error cancels the rest.
func (r *Runner) RunAll(ctx context.Context, adapters []source.Adapter, limit int, sinks ...Sink) ([]Persisted, error) {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	var mu sync.Mutex
	results := make([][]Persisted, len(adapters))
	for i, a := range adapters {
		g.Go(func() error {
			var res []Persisted
			if len(sinks) == 0 {
				outputs, err := r.BuildInMemory(ctx, a)
				if err != nil {
					return err
				}
				for _, o := range outputs {
					res = append(res, Persisted{Output: o})
				}
			} else {
				var err error
				if res, err = r.BuildAndPersist(ctx, a, sinks...); err != nil {
					return err
				}
			}
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Persisted
	for _, res := range results {
		all = append(all, res...)
	}
	return all, nil
}
