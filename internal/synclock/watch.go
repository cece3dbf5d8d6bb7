package synclock

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codeatlas-dev/codeatlas/internal/events"
	"github.com/codeatlas-dev/codeatlas/internal/ignore"
)

const DefaultDebounce = 500 * time.Millisecond

// ChangeHandler receives the relative paths touched during one debounce
// window, sorted and deduplicated.
type ChangeHandler func(paths []string)

// Watcher reports batches of file changes under a directory tree.
type Watcher struct {
	root     string
	debounce time.Duration
	matcher  *ignore.Matcher
	handler  ChangeHandler
	rep      *events.Reporter

	fsw      *fsnotify.Watcher
	changes  chan string
	stopOnce sync.Once
	done     chan struct{}
}

type WatchOptions struct {
	Debounce time.Duration
	Matcher  *ignore.Matcher
	Reporter *events.Reporter
}

func NewWatcher(root string, handler ChangeHandler, opts WatchOptions) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Matcher == nil {
		opts.Matcher = ignore.NewMatcher(nil)
	}
	return &Watcher{
		root:     root,
		debounce: opts.Debounce,
		matcher:  opts.Matcher,
		handler:  handler,
		rep:      opts.Reporter,
		fsw:      fsw,
		changes:  make(chan string, 256),
		done:     make(chan struct{}),
	}, nil
}

// Run watches until ctx is cancelled or Stop is called. Pending changes are
// flushed before it returns.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Stop()
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	go w.processEvents(ctx)
	w.debounceLoop(ctx)
	return nil
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsw.Close()
	})
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(path, true) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) ignored(path string, isDir bool) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return true
	}
	return w.matcher.ShouldIgnore(filepath.ToSlash(rel), isDir)
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			isDir := false
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					isDir = true
					if !w.ignored(ev.Name, true) {
						_ = w.addRecursive(ev.Name)
					}
				}
			}
			if isDir || ev.Has(fsnotify.Chmod) || w.ignored(ev.Name, false) {
				continue
			}
			rel, err := filepath.Rel(w.root, ev.Name)
			if err != nil {
				continue
			}
			select {
			case w.changes <- filepath.ToSlash(rel):
			default:
				w.rep.Warn(events.CategorySync, "change buffer full, event dropped", map[string]string{"path": rel})
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.rep.Warn(events.CategorySync, "watch error", map[string]string{"error": err.Error()})
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	pending := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if len(pending) == 0 {
			return
		}
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		pending = make(map[string]bool)
		if w.handler != nil {
			w.handler(paths)
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case p := <-w.changes:
			pending[p] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer, timerC = nil, nil
			flush()
		}
	}
}
