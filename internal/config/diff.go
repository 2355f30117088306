package config

// ConfigDiff describes what changed between two configs. Only fields that
// are safe to hot-reload without a process restart are tracked; root and db
// are fixed for the lifetime of the process (SPEC_FULL.md §9.3).
type ConfigDiff struct {
	RuleBaseChanged       bool
	NewRuleBase           string
	LogLevelChanged       bool
	NewLogLevel           string
	WorkerConcurrencyDiff bool
	NewWorkerConcurrency  int
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.RuleBase != new.RuleBase {
		d.RuleBaseChanged = true
		d.NewRuleBase = new.RuleBase
	}
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Server.WorkerConcurrency != new.Server.WorkerConcurrency {
		d.WorkerConcurrencyDiff = true
		d.NewWorkerConcurrency = new.Server.WorkerConcurrency
	}

	return d
}
