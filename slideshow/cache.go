package slideshow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

var ErrInvalidName = errors.New("invalid media name")

// Cache keeps local copies of slideshow media. Warming an item downloads it
// from the Source once; concurrent requests for the same file share the
// download.
type Cache struct {
	dir    string
	source Source

	mu       sync.Mutex
	inflight map[string]*download
}

type download struct {
	done chan struct{}
	err  error
}

func NewCache(dir string, source Source) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Cache{
		dir:      dir,
		source:   source,
		inflight: make(map[string]*download),
	}, nil
}

// Path is where name lives in the cache. Names must be bare file names.
func (c *Cache) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(c.dir, name), nil
}

func (c *Cache) Warm(ctx context.Context, m MediaRef) error {
	_, err := c.Ensure(ctx, m.FileName)
	return err
}

// Ensure returns the local path of name, downloading it first if needed.
func (c *Cache) Ensure(ctx context.Context, name string) (string, error) {
	path, err := c.Path(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	for {
		c.mu.Lock()
		d, ok := c.inflight[name]
		if !ok {
			d = &download{done: make(chan struct{})}
			c.inflight[name] = d
			go c.fetch(ctx, name, path, d)
		}
		c.mu.Unlock()

		select {
		case <-d.done:
		case <-ctx.Done():
			return "", ctx.Err()
		}

		// a download started by a caller that gave up is retried for us
		if errors.Is(d.err, context.Canceled) && ctx.Err() == nil {
			continue
		}
		if d.err != nil {
			return "", d.err
		}
		return path, nil
	}
}

func (c *Cache) fetch(ctx context.Context, name, path string, d *download) {
	defer func() {
		c.mu.Lock()
		delete(c.inflight, name)
		c.mu.Unlock()
		close(d.done)
	}()

	tmp, err := os.CreateTemp(c.dir, ".partial-*")
	if err != nil {
		d.err = fmt.Errorf("unable to create cache file for %s: %w", name, err)
		return
	}
	defer os.Remove(tmp.Name())

	if err := c.source.Fetch(ctx, name, tmp); err != nil {
		tmp.Close()
		d.err = err
		return
	}
	if err := tmp.Close(); err != nil {
		d.err = fmt.Errorf("unable to write cache file for %s: %w", name, err)
		return
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		d.err = fmt.Errorf("unable to move cache file for %s: %w", name, err)
		return
	}
	slog.Debug("media cached", "name", name)
}

// Prune removes cached files that are no longer in keep.
func (c *Cache) Prune(keep mapset.Set[string]) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("unable to read cache directory, %s, %w", c.dir, err)
	}

	var removed []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || keep.Contains(name) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil {
			slog.Warn("unable to remove cached media", "name", name, "error", err)
			continue
		}
		removed = append(removed, name)
	}
	if len(removed) > 0 {
		slog.Info("pruned cached media", "count", len(removed), "names", removed)
	}
	return nil
}
