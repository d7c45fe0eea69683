// Package config loads executor tunables from an optional sw.yaml
// file under the build's workdir.
package config

import (
	"os"

	"gopkg.in/yaml.v2"

	"github.com/swbuild/sw/internal/perr"
)

// Config holds the build-wide executor tunables: workdir, concurrency
// cap, fault-isolation threshold, and the rebuild-all /
// explain-outdated flags.
type Config struct {
	// WorkDir holds the db/ and rsp/ directories; defaults to the
	// current directory if empty.
	WorkDir string `yaml:"workdir"`
	// MaximumRunningCommands caps concurrent OS processes; 0 means
	// "use sysdiag's CPU-count default".
	MaximumRunningCommands uint64 `yaml:"maximum_running_commands"`
	// IgnoreErrors is the number of command failures tolerated before
	// the scheduler stops dequeueing.
	IgnoreErrors int `yaml:"ignore_errors"`
	// RebuildAll forces every command to be treated as outdated.
	RebuildAll bool `yaml:"rebuild_all"`
	// ExplainOutdated logs each command's outdatedness reason.
	ExplainOutdated bool `yaml:"explain_outdated"`
}

// Default returns the zero-configuration baseline: current directory,
// no concurrency cap set (0, which the caller resolves to sysdiag's
// CPU-count default), no fault tolerance, no rebuild-all, no explain
// logging.
func Default() *Config {
	return &Config{WorkDir: "."}
}

// Load reads path (typically "<workdir>/sw.yaml") into a Config
// seeded with Default's values; a missing file is not an error, it
// simply means "use the defaults".
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, perr.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, perr.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
