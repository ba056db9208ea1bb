// Package config resolves the engine's layered configuration: built-in
// defaults, an optional project-local or user config file, and environment
// variables, in that order of increasing precedence. Every resolved value
// can be traced back to the layer that set it, for diagnostics.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/stratadb/strata/internal/types"
)

// EnvPrefix is the prefix recognized on environment variables, e.g.
// STRATA_BUSY_TIMEOUT_MS.
const EnvPrefix = "STRATA"

// ConfigDirName is the project-local override directory, discovered by
// walking up from the current working directory (mirrors the teacher
// lineage's .beads/config.yaml discovery, renamed to this engine's own
// on-disk footprint).
const ConfigDirName = ".strata"

const (
	defaultBusyTimeoutMs               = 5000
	defaultScanMaxFileBytes            = 8 * 1024 * 1024
	defaultEmptyCommitPolicy           = string(types.EmptyCommitAcceptNoOp)
	defaultBlobVerifyOnRead            = string(types.BlobVerifyOff)
	defaultWatchFallbackPollIntervalMs = 2000
)

// Config is the engine's resolved, immutable configuration. It is loaded
// once at engine construction and passed around as a value from then on;
// nothing in this package keeps process-global mutable state.
type Config struct {
	DBPath                      string
	BusyTimeoutMs               int
	ScanMaxFileBytes            int64
	EmptyCommitPolicy           types.EmptyCommitPolicy
	BlobVerifyOnRead            types.BlobVerifyMode
	WatchFallbackPollIntervalMs int

	// ConfigFileUsed is the path of the config file that was read, or
	// empty if none was found and defaults/env applied alone.
	ConfigFileUsed string
}

// Source identifies which configuration layer produced a resolved value.
type Source string

const (
	SourceDefault    Source = "default"
	SourceConfigFile Source = "config_file"
	SourceEnvVar     Source = "env_var"
)

// Provenance maps each recognized key to the layer that set its effective
// value, so callers (diagnostics, via `Engine.ConfigProvenance`) can explain
// "why is busy_timeout_ms 10000" without re-deriving the precedence chain.
type Provenance map[string]Source

var recognizedKeys = []string{
	"db_path",
	"busy_timeout_ms",
	"scan_max_file_bytes",
	"empty_commit_policy",
	"blob_verify_on_read",
	"watch_fallback_poll_interval_ms",
}

// Load resolves configuration starting the project-local search from
// startDir (typically the caller's working directory; pass "" to use
// os.Getwd()). defaultDBPath is used when no layer overrides db_path; the
// engine facade computes it from the OS-appropriate data directory so this
// package stays free of platform-specific path policy.
func Load(startDir, defaultDBPath string) (Config, Provenance, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	configFileSet := false

	if startDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			startDir = cwd
		}
	}

	// 1. Walk up from startDir looking for a project-local .strata/config.yaml.
	if startDir != "" {
		for dir := startDir; ; {
			candidate := filepath.Join(dir, ConfigDirName, "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				v.SetConfigFile(candidate)
				configFileSet = true
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	// 2. OS config directory fallback ($XDG_CONFIG_HOME/strata/config.yaml
	//    or platform equivalent via os.UserConfigDir).
	if !configFileSet {
		if confDir, err := os.UserConfigDir(); err == nil {
			candidate := filepath.Join(confDir, "strata", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				v.SetConfigFile(candidate)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("db_path", defaultDBPath)
	v.SetDefault("busy_timeout_ms", defaultBusyTimeoutMs)
	v.SetDefault("scan_max_file_bytes", defaultScanMaxFileBytes)
	v.SetDefault("empty_commit_policy", defaultEmptyCommitPolicy)
	v.SetDefault("blob_verify_on_read", defaultBlobVerifyOnRead)
	v.SetDefault("watch_fallback_poll_interval_ms", defaultWatchFallbackPollIntervalMs)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, nil, fmt.Errorf("config: reading %s: %w", v.ConfigFileUsed(), err)
		}
	}

	cfg := Config{
		DBPath:                      v.GetString("db_path"),
		BusyTimeoutMs:               v.GetInt("busy_timeout_ms"),
		ScanMaxFileBytes:            v.GetInt64("scan_max_file_bytes"),
		EmptyCommitPolicy:           types.EmptyCommitPolicy(v.GetString("empty_commit_policy")),
		BlobVerifyOnRead:            types.BlobVerifyMode(v.GetString("blob_verify_on_read")),
		WatchFallbackPollIntervalMs: v.GetInt("watch_fallback_poll_interval_ms"),
	}
	if configFileSet {
		cfg.ConfigFileUsed = v.ConfigFileUsed()
	}

	prov := make(Provenance, len(recognizedKeys))
	for _, key := range recognizedKeys {
		prov[key] = sourceOf(v, key)
	}

	return cfg, prov, nil
}

// sourceOf reports which layer produced key's effective value: an
// explicitly set environment variable outranks the config file, which
// outranks the default viper.SetDefault installed.
func sourceOf(v *viper.Viper, key string) Source {
	envKey := EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
	if _, ok := os.LookupEnv(envKey); ok {
		return SourceEnvVar
	}
	if v.InConfig(key) {
		return SourceConfigFile
	}
	return SourceDefault
}

// DefaultDataDir returns the OS-appropriate data directory for app, per
// §6's persisted-state-layout contract: $XDG_DATA_HOME/<app> on Unix-like
// systems (falling back to ~/.local/share/<app>), %LOCALAPPDATA%\<app> on
// Windows.
func DefaultDataDir(app string) (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, app), nil
	}
	if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
		return filepath.Join(dir, app), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", app), nil
}
