// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Remote store kinds.
const (
	RemoteNone   = "none"
	RemoteGitHub = "github"
	RemoteMemory = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// CatalogPath points at the CSV/TSV catalog file.
	CatalogPath string `koanf:"catalog_path"`

	// CatalogDir, when set, builds the catalog from video files in a folder
	// instead of CatalogPath.
	CatalogDir string `koanf:"catalog_dir"`

	// VideoBaseURL prefixes file names when the catalog comes from CatalogDir.
	VideoBaseURL string `koanf:"video_base_url"`

	// ScoresPath is the local results table.
	ScoresPath string `koanf:"scores_path"`

	// AdminMode enables destructive operations such as reset.
	AdminMode bool `koanf:"admin_mode"`

	// Remote configures the store of record.
	Remote Remote `koanf:"remote"`
}

// Remote configures the remote copy of the results table.
type Remote struct {
	// Kind is one of none, github or memory.
	Kind string `koanf:"kind"`

	Owner  string `koanf:"owner"`
	Repo   string `koanf:"repo"`
	Path   string `koanf:"path"`
	Branch string `koanf:"branch"`
	Token  string `koanf:"token"`

	// APIURL overrides the GitHub API endpoint, e.g. for GitHub Enterprise.
	APIURL string `koanf:"api_url"`

	// TimeoutMS bounds each remote request.
	TimeoutMS int `koanf:"timeout_ms"`
}

// Timeout returns the remote request timeout.
func (r Remote) Timeout() time.Duration {
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

// Enabled reports whether a remote store is configured.
func (r Remote) Enabled() bool {
	return r.Kind != "" && r.Kind != RemoteNone
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "text",
		Addr:        ":9080",
		CatalogPath: "catalog.csv",
		ScoresPath:  "expert_scores.csv",
		Remote: Remote{
			Kind:      RemoteNone,
			Path:      "expert_scores.csv",
			Branch:    "main",
			APIURL:    "https://api.github.com",
			TimeoutMS: 15_000,
		},
	}
}

// Validate checks that the configuration can start the service.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.ScoresPath == "" {
		return fmt.Errorf("%w: scores_path must not be empty", ErrInvalidConfig)
	}
	if c.CatalogPath == "" && c.CatalogDir == "" {
		return fmt.Errorf("%w: one of catalog_path or catalog_dir is required", ErrInvalidConfig)
	}
	switch strings.ToLower(c.Remote.Kind) {
	case "", RemoteNone, RemoteMemory:
	case RemoteGitHub:
		if c.Remote.Owner == "" || c.Remote.Repo == "" {
			return fmt.Errorf("%w: remote.owner and remote.repo are required for github", ErrInvalidConfig)
		}
		if c.Remote.Path == "" {
			return fmt.Errorf("%w: remote.path must not be empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown remote.kind %q", ErrInvalidConfig, c.Remote.Kind)
	}
	if c.Remote.TimeoutMS < 0 {
		return fmt.Errorf("%w: remote.timeout_ms must not be negative", ErrInvalidConfig)
	}
	return nil
}
