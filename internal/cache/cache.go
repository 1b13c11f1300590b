// Package cache lays out the on-disk store: raw downloads under
// <root>/raw/<id> and canonical files under <root>/formatted.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// EnvDir names the environment variable that overrides the cache root.
const EnvDir = "SSI_CACHE_DIR"

const (
	rawDir       = "raw"
	formattedDir = "formatted"
	ncExt        = ".nc"
)

// Cache is a path-keyed store rooted at Root.
type Cache struct {
	Root string
}

// New returns a cache at root.
func New(root string) *Cache { return &Cache{Root: root} }

// DefaultRoot returns $SSI_CACHE_DIR, or the user cache directory.
func DefaultRoot() string {
	if dir := os.Getenv(EnvDir); dir != "" {
		return dir
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "ssi")
	}
	return filepath.Join(os.TempDir(), "ssi-cache")
}

// RawDir is where the raw files of one source are downloaded.
func (c *Cache) RawDir(id string) string {
	return filepath.Join(c.Root, rawDir, id)
}

// FormattedDir holds canonical datasets.
func (c *Cache) FormattedDir() string {
	return filepath.Join(c.Root, formattedDir)
}

// FormattedPath returns the canonical file for an output name.
func (c *Cache) FormattedPath(name string) string {
	return filepath.Join(c.FormattedDir(), name+ncExt)
}

// Init creates the raw and formatted directories.
func (c *Cache) Init() error {
	for _, dir := range []string{filepath.Join(c.Root, rawDir), c.FormattedDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir failed: %w", err)
		}
	}
	return nil
}

// List returns the output names of the canonical files, sorted.
func (c *Cache) List() ([]string, error) {
	entries, err := os.ReadDir(c.FormattedDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list cache: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ncExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ncExt))
	}
	sort.Strings(names)
	return names, nil
}

// Has reports whether a canonical file exists for name.
func (c *Cache) Has(name string) bool {
	fi, err := os.Stat(c.FormattedPath(name))
	return err == nil && !fi.IsDir()
}

// Remove deletes the whole cache tree.
func (c *Cache) Remove() error {
	if c.Root == "" || c.Root == "/" {
		return fmt.Errorf("refusing to remove cache root %q", c.Root)
	}
	if err := os.RemoveAll(c.Root); err != nil {
		return fmt.Errorf("remove cache: %w", err)
	}
	return nil
}
