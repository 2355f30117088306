package config_test

import (
	"strings"
	"testing"

	"github.com/spindle-coref/spindle/internal/config"
)

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("{}"))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	for _, want := range []string{"root", "db", "rulebase"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}

func TestValidate_MinimalValidConfig(t *testing.T) {
	t.Parallel()
	yaml := `
root: "http://example.org/"
db: "postgres://localhost/test"
rulebase: "/etc/spindle/rules.yaml"
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.LogLevel != "" {
		t.Errorf("expected empty default log level, got %q", cfg.Server.LogLevel)
	}
}
