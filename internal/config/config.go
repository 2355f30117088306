// Package config provides the configuration schema and loader for the
// Spindle co-reference engine.
package config

// Config is the root configuration structure for Spindle. It is typically
// loaded from a YAML file using [Load] or [LoadFromReader]. Keys mirror
// spec.md §6.3 (root, multigraph, db, rulebase, dumprules) plus the ambient
// operational keys every service in this shape carries.
type Config struct {
	// Root is the proxy URI prefix; mandatory (spec.md §6.3).
	Root string `yaml:"root"`

	// Multigraph, if true, stores each proxy in its own named graph.
	Multigraph bool `yaml:"multigraph"`

	// DB is the RDBMS connection string.
	DB string `yaml:"db"`

	// RuleBase is the path to the rule-base file.
	RuleBase string `yaml:"rulebase"`

	// DumpRules, if true, dumps the resolved rule base at start-up.
	DumpRules bool `yaml:"dumprules"`

	Server ServerConfig `yaml:"server"`
	OTel   OTelConfig   `yaml:"otel"`
}

// ServerConfig holds network, logging, and worker-pool settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the health/readiness server listens on
	// (e.g., ":8080"). This is the one HTTP surface the module serves.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`

	// WorkerConcurrency bounds how many independent GraphUpdates the
	// runner processes in parallel (spec.md §5).
	WorkerConcurrency int `yaml:"worker_concurrency"`
}

// OTelConfig holds OpenTelemetry metrics/tracing settings.
type OTelConfig struct {
	// ServiceName identifies this process in exported telemetry.
	ServiceName string `yaml:"service_name"`
}
