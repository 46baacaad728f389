package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher rebuilds whenever one of the watched files changes. Builds run one
// at a time on the goroutine calling Run.
type Watcher struct {
	// Paths returns the files to watch. It is called again after every
	// build, since a build may change the set of dependencies.
	Paths func() ([]string, error)

	// Build is called after a burst of changes has settled.
	Build func(ctx context.Context) error

	// Debounce is how long a burst of changes must be quiet.
	Debounce time.Duration

	added map[string]bool
	files map[string]bool
	trees map[string]bool
}

// NewWatcher creates a new watcher
func NewWatcher(paths func() ([]string, error), build func(ctx context.Context) error) *Watcher {
	return &Watcher{
		Paths:    paths,
		Build:    build,
		Debounce: 250 * time.Millisecond,
	}
}

// Run watches until ctx is done. Build errors are logged, not returned.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	w.added = make(map[string]bool)
	if err := w.watch(fw); err != nil {
		return err
	}

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-fw.Events:
			if !w.relevant(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.Debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.Debounce)
			}
			fire = timer.C
		case err := <-fw.Errors:
			log.Printf("Warning: file watcher: %v", err)
		case <-fire:
			fire = nil
			log.Printf("Change detected, rebuilding")
			if err := w.Build(ctx); err != nil {
				log.Printf("Build failed: %v", err)
			}
			if err := w.watch(fw); err != nil {
				log.Printf("Warning: failed to update watched files: %v", err)
			}
		}
	}
}

func (w *Watcher) relevant(name string) bool {
	name = filepath.Clean(name)
	return w.files[name] || w.trees[filepath.Dir(name)]
}

// watch adds the current paths to fw. Files are watched through their
// directory so that editors replacing a file on save are noticed.
func (w *Watcher) watch(fw *fsnotify.Watcher) error {
	paths, err := w.Paths()
	if err != nil {
		return fmt.Errorf("failed to determine watched files: %w", err)
	}

	files := make(map[string]bool, len(paths))
	trees := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", p, err)
		}

		dir := filepath.Dir(abs)
		if st, err := os.Stat(abs); err == nil && st.IsDir() {
			dir = abs
			trees[abs] = true
		} else {
			files[abs] = true
		}
		if w.added[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.added[dir] = true
	}
	w.files, w.trees = files, trees
	return nil
}
