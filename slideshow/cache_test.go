package slideshow

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSource blocks fetches until release is closed.
type countingSource struct {
	fakeSource
	fetches atomic.Int32
	release chan struct{}
}

func (c *countingSource) Fetch(ctx context.Context, name string, dst io.WriterAt) error {
	c.fetches.Add(1)
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.fakeSource.Fetch(ctx, name, dst)
}

func TestCacheEnsure(t *testing.T) {
	dir := t.TempDir()
	source := &countingSource{fakeSource: fakeSource{data: map[string]string{"a.jpg": "jpeg bytes"}}}
	c, err := NewCache(dir, source)
	require.NoError(t, err)

	path, err := c.Ensure(context.Background(), "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.jpg"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(content))

	_, err = c.Ensure(context.Background(), "a.jpg")
	require.NoError(t, err)
	assert.EqualValues(t, 1, source.fetches.Load())
}

func TestCacheEnsureSharesDownload(t *testing.T) {
	source := &countingSource{
		fakeSource: fakeSource{data: map[string]string{"b.mp4": "video"}},
		release:    make(chan struct{}),
	}
	c, err := NewCache(t.TempDir(), source)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Ensure(context.Background(), "b.mp4")
		}(i)
	}
	assert.Eventually(t, func() bool { return source.fetches.Load() == 1 }, time.Second, 5*time.Millisecond)
	close(source.release)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, source.fetches.Load())
}

func TestCacheEnsureFailure(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCache(dir, &countingSource{fakeSource: fakeSource{data: map[string]string{}}})
	require.NoError(t, err)

	_, err = c.Ensure(context.Background(), "missing.jpg")
	assert.ErrorContains(t, err, "missing.jpg")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "partial downloads are removed")
}

func TestCacheEnsureRetriesAbandonedDownload(t *testing.T) {
	source := &countingSource{
		fakeSource: fakeSource{data: map[string]string{"c.jpg": "img"}},
		release:    make(chan struct{}),
	}
	c, err := NewCache(t.TempDir(), source)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		first <- c.Warm(ctx, MediaRef{FileName: "c.jpg"})
	}()
	assert.Eventually(t, func() bool { return source.fetches.Load() == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan error, 1)
	go func() {
		_, err := c.Ensure(context.Background(), "c.jpg")
		second <- err
	}()
	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(source.release)
	assert.NoError(t, <-second)
}

func TestCachePath(t *testing.T) {
	c, err := NewCache(t.TempDir(), &fakeSource{})
	require.NoError(t, err)

	for _, name := range []string{"", "../etc/passwd", "a/b.jpg", ".hidden.jpg", ".."} {
		_, err := c.Path(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)

		_, err = c.Ensure(context.Background(), name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}

	_, err = c.Path("ok.jpg")
	assert.NoError(t, err)
}

func TestCachePrune(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCache(dir, &fakeSource{})
	require.NoError(t, err)

	for _, name := range []string{"keep.jpg", "drop.jpg", ".partial-123"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	require.NoError(t, c.Prune(mapset.NewSet("keep.jpg")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"keep.jpg", ".partial-123", "sub"}, names)
}
