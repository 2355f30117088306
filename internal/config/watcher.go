package config

import (
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spindle-coref/spindle/internal/rulebase"
)

// RuleBaseWatcher polls a rule-base file for changes and hot-swaps the
// active [rulebase.RuleBase] when its content changes (SPEC_FULL.md §9.3).
// It uses polling rather than fsnotify to keep the dependency surface the
// same shape as the rest of this package.
type RuleBaseWatcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *rulebase.RuleBase)

	current atomic.Pointer[rulebase.RuleBase]

	mu        sync.Mutex
	done      chan struct{}
	stopOnce  sync.Once
	lastMtime time.Time
	lastHash  [sha256.Size]byte
}

// WatcherOption configures a [RuleBaseWatcher].
type WatcherOption func(*RuleBaseWatcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *RuleBaseWatcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewRuleBaseWatcher loads the rule base at path immediately and starts
// polling it for changes in a background goroutine. onChange, if non-nil,
// is invoked after each successful hot-swap.
func NewRuleBaseWatcher(path string, onChange func(old, new *rulebase.RuleBase), opts ...WatcherOption) (*RuleBaseWatcher, error) {
	w := &RuleBaseWatcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	rb, hash, mtime, err := w.loadAndHash()
	if err != nil {
		return nil, fmt.Errorf("config: rule base watcher initial load: %w", err)
	}
	w.current.Store(rb)
	w.lastHash = hash
	w.lastMtime = mtime

	go w.poll()
	return w, nil
}

// Current returns the most recently loaded valid rule base.
func (w *RuleBaseWatcher) Current() *rulebase.RuleBase {
	return w.current.Load()
}

// Stop stops the file watcher.
func (w *RuleBaseWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

func (w *RuleBaseWatcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check reads the rule-base file and, if it has changed and is valid, swaps
// the active pointer and calls onChange.
func (w *RuleBaseWatcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("rulebase watcher: cannot stat file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	mtime := w.lastMtime
	w.mu.Unlock()

	if info.ModTime().Equal(mtime) {
		return
	}

	rb, hash, newMtime, err := w.loadAndHash()
	if err != nil {
		slog.Warn("rulebase watcher: failed to load rule base", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if hash == w.lastHash {
		w.lastMtime = newMtime
		w.mu.Unlock()
		return
	}
	w.lastHash = hash
	w.lastMtime = newMtime
	w.mu.Unlock()

	old := w.current.Swap(rb)

	slog.Info("rulebase watcher: rule base reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, rb)
	}
}

func (w *RuleBaseWatcher) loadAndHash() (*rulebase.RuleBase, [sha256.Size]byte, time.Time, error) {
	var zeroHash [sha256.Size]byte

	f, err := os.Open(w.path)
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}

	hash := sha256.Sum256(data)

	rb, err := rulebase.LoadFromReader(bytesReader(data))
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}

	return rb, hash, info.ModTime(), nil
}

// bytesReader wraps a byte slice in a minimal io.Reader.
type bytesReaderImpl struct {
	data []byte
	pos  int
}

func bytesReader(b []byte) io.Reader {
	return &bytesReaderImpl{data: b}
}

func (r *bytesReaderImpl) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
