package slideshow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

const (
	defaultWatchInterval = time.Hour
	watchTimeout         = 5 * time.Minute
)

// Watcher polls a Source and calls onChange when the set of displayable
// files differs from the last one it saw.
type Watcher struct {
	source   Source
	interval time.Duration
	onChange func()

	known mapset.Set[string]
}

func NewWatcher(source Source, interval time.Duration, onChange func()) (*Watcher, error) {
	if source == nil {
		return nil, errors.New("no media source provided for watcher")
	}
	if onChange == nil {
		return nil, errors.New("no change handler provided for watcher")
	}
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	return &Watcher{
		source:   source,
		interval: interval,
		onChange: onChange,
	}, nil
}

// Check lists the source once. The first successful listing only records
// the set; later ones report whether anything was added or removed.
func (w *Watcher) Check(ctx context.Context) (bool, error) {
	names, err := w.source.List(ctx)
	if err != nil {
		return false, err
	}
	current := mapset.NewSet[string]()
	for _, m := range BuildPlaylist(names) {
		current.Add(m.FileName)
	}

	previous := w.known
	w.known = current
	if previous == nil {
		return false, nil
	}

	added := current.Difference(previous).ToSlice()
	removed := previous.Difference(current).ToSlice()
	if len(added) == 0 && len(removed) == 0 {
		return false, nil
	}
	slog.Info("slideshow media changed", "added", len(added), "removed", len(removed))
	slog.Debug("slideshow media diff", "added_names", added, "removed_names", removed)
	return true, nil
}

// Run checks once immediately and then every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, watchTimeout)
	defer cancel()

	changed, err := w.Check(ctx)
	if err != nil {
		slog.Warn("error while checking slideshow media", "error", err)
		return
	}
	if changed {
		w.onChange()
	}
}
