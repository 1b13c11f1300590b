package ncio

import (
	"context"
	"path/filepath"

	"github.com/KI7MT/ki7mt-ssi-apps/internal/dataset"
)

// DirSink writes each dataset to <Dir>/<name>.nc.
type DirSink struct {
	Dir string
}

// Persist implements pipeline.Sink.
func (s DirSink) Persist(ctx context.Context, name string, ds *dataset.Dataset) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, name+Ext)
	if err := Write(path, ds); err != nil {
		return "", err
	}
	return path, nil
}

// FileSink writes a single dataset to an explicit path regardless of name.
type FileSink struct {
	Path string
}

// Persist implements pipeline.Sink.
func (s FileSink) Persist(ctx context.Context, _ string, ds *dataset.Dataset) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := Write(s.Path, ds); err != nil {
		return "", err
	}
	return s.Path, nil
}
