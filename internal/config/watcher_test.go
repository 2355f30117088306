package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spindle-coref/spindle/internal/config"
	"github.com/spindle-coref/spindle/internal/rulebase"
)

const watcherValidYAML = `
match_predicates:
  - predicate: "http://www.w3.org/2002/07/owl#sameAs"
    callback: sameAs
cache_predicates: []
`

const watcherUpdatedYAML = `
match_predicates:
  - predicate: "http://www.w3.org/2002/07/owl#sameAs"
    callback: sameAs
  - predicate: "http://en.wikipedia.org/wiki/"
    callback: wikipedia
cache_predicates: []
`

const watcherInvalidYAML = `
match_predicates:
  - predicate: ""
    callback: sameAs
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %q: %v", path, err)
	}
}

func TestRuleBaseWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeFile(t, path, watcherValidYAML)

	w, err := config.NewRuleBaseWatcher(path, nil, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	rb := w.Current()
	if rb == nil {
		t.Fatal("Current() returned nil after initial load")
	}
}

func TestRuleBaseWatcher_DetectsChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeFile(t, path, watcherValidYAML)

	var mu sync.Mutex
	callCount := 0

	w, err := config.NewRuleBaseWatcher(path, func(old, new *rulebase.RuleBase) {
		mu.Lock()
		callCount++
		mu.Unlock()
	}, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	before := w.Current()

	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, watcherUpdatedYAML)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.Current() != before {
			mu.Lock()
			calls := callCount
			mu.Unlock()
			if calls == 0 {
				t.Fatal("rule base swapped but onChange was never invoked")
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("rule base was not hot-swapped within timeout")
}

func TestRuleBaseWatcher_InvalidFileKeepsOldRuleBase(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeFile(t, path, watcherValidYAML)

	w, err := config.NewRuleBaseWatcher(path, nil, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	before := w.Current()

	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, watcherInvalidYAML)
	time.Sleep(300 * time.Millisecond)

	if w.Current() != before {
		t.Error("expected rule base to remain unchanged after an invalid reload")
	}
}

func TestRuleBaseWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()
	_, err := config.NewRuleBaseWatcher("/nonexistent/path.yaml", nil)
	if err == nil {
		t.Fatal("expected error for non-existent file, got nil")
	}
}

func TestRuleBaseWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeFile(t, path, watcherValidYAML)

	w, err := config.NewRuleBaseWatcher(path, nil, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w.Stop()
	w.Stop()
	w.Stop()
}

func TestRuleBaseWatcher_TouchWithoutContentChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeFile(t, path, watcherValidYAML)

	w, err := config.NewRuleBaseWatcher(path, nil, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	before := w.Current()

	time.Sleep(100 * time.Millisecond)
	now := time.Now().Add(time.Second)
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatalf("failed to touch file: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	if w.Current() != before {
		t.Error("rule base should not change for a touch-only mtime update")
	}
}
