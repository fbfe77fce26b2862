// Package config loads pipeline settings from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir = ".inputguard"
	DefaultLogFile   = "activities.json"
	DefaultDBDir     = "db"

	BackendFile      = "file"
	BackendEncrypted = "encrypted"
)

// Config is the full pipeline configuration.
type Config struct {
	Detection   DetectionConfig   `yaml:"detection"`
	Overlay     OverlayConfig     `yaml:"overlay"`
	Remediation RemediationConfig `yaml:"remediation"`
	Store       StoreConfig       `yaml:"store"`
	Host        HostConfig        `yaml:"host"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Log         LogConfig         `yaml:"log"`
}

// DetectionConfig controls gating, debounce and watchdogs.
type DetectionConfig struct {
	MinLength           int           `yaml:"min_length"`
	BrowserMinLength    int           `yaml:"browser_min_length"`
	MaxLength           int           `yaml:"max_length"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	GracePeriod         time.Duration `yaml:"grace_period"`
	InFlightTimeout     time.Duration `yaml:"in_flight_timeout"`
	InactivityReset     time.Duration `yaml:"inactivity_reset"`
	HealthInterval      time.Duration `yaml:"health_interval"`
	LivenessInterval    time.Duration `yaml:"liveness_interval"`
	WindowStateDelay    time.Duration `yaml:"window_state_delay"`
	BrowserSettleDelay  time.Duration `yaml:"browser_settle_delay"`

	// BrowserMarkers extends the built-in browser package markers.
	BrowserMarkers []string `yaml:"browser_markers"`

	// AppNames maps package ids to display names.
	AppNames map[string]string `yaml:"app_names"`
}

// OverlayConfig controls the warning overlay lifecycle.
type OverlayConfig struct {
	Cooldown         time.Duration `yaml:"cooldown"`
	EnterDuration    time.Duration `yaml:"enter_duration"`
	DisplayDuration  time.Duration `yaml:"display_duration"`
	ExitDuration     time.Duration `yaml:"exit_duration"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
}

// RemediationConfig bounds the input-clearing chain.
type RemediationConfig struct {
	AncestorDepth int           `yaml:"ancestor_depth"`
	SweepDepth    int           `yaml:"sweep_depth"`
	SweepFanout   int           `yaml:"sweep_fanout"`
	SweepBudget   int           `yaml:"sweep_budget"`
	BrowserSettle time.Duration `yaml:"browser_settle"`
}

// StoreConfig selects the activity log backend.
type StoreConfig struct {
	Backend  string `yaml:"backend"` // "file" or "encrypted"
	Path     string `yaml:"path"`    // JSON file for the file backend
	DataDir  string `yaml:"data_dir"`
	Capacity int    `yaml:"capacity"`

	// KeyEnv names an environment variable holding the hex database key.
	// Empty keeps the key in DataDir.
	KeyEnv string `yaml:"key_env"`
}

// HostConfig describes the host observation process.
type HostConfig struct {
	ObserverProcess string   `yaml:"observer_process"`
	RestartCommand  []string `yaml:"restart_command"`
	LockFile        string   `yaml:"lock_file"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controls zap output.
type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// Default returns the configuration with every built-in constant.
func Default() *Config {
	return &Config{
		Detection: DetectionConfig{
			MinLength:           2,
			BrowserMinLength:    3,
			MaxLength:           100,
			ConfidenceThreshold: 0.75,
			GracePeriod:         500 * time.Millisecond,
			InFlightTimeout:     5 * time.Second,
			InactivityReset:     60 * time.Second,
			HealthInterval:      15 * time.Second,
			LivenessInterval:    30 * time.Second,
			WindowStateDelay:    500 * time.Millisecond,
			BrowserSettleDelay:  100 * time.Millisecond,
			AppNames:            map[string]string{},
		},
		Overlay: OverlayConfig{
			Cooldown:         2000 * time.Millisecond,
			EnterDuration:    300 * time.Millisecond,
			DisplayDuration:  3000 * time.Millisecond,
			ExitDuration:     200 * time.Millisecond,
			ProgressInterval: 30 * time.Millisecond,
		},
		Remediation: RemediationConfig{
			AncestorDepth: 5,
			SweepDepth:    32,
			SweepFanout:   64,
			SweepBudget:   2000,
			BrowserSettle: 200 * time.Millisecond,
		},
		Store: StoreConfig{
			Backend:  BackendFile,
			Path:     filepath.Join("~", DefaultConfigDir, DefaultLogFile),
			DataDir:  filepath.Join("~", DefaultConfigDir, DefaultDBDir),
			Capacity: 1000,
		},
		Host: HostConfig{
			LockFile: filepath.Join(os.TempDir(), "inputguard.lock"),
		},
		Log: LogConfig{
			Path:  filepath.Join(os.TempDir(), "inputguard.log"),
			Level: "info",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(ExpandHome(path))
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.Store.Path = ExpandHome(cfg.Store.Path)
	cfg.Store.DataDir = ExpandHome(cfg.Store.DataDir)
	cfg.Host.LockFile = ExpandHome(cfg.Host.LockFile)
	cfg.Log.Path = ExpandHome(cfg.Log.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	d := c.Detection
	if d.MinLength < 1 || d.BrowserMinLength < 1 {
		return fmt.Errorf("detection: min lengths must be positive")
	}
	if d.MaxLength < d.MinLength || d.MaxLength < d.BrowserMinLength {
		return fmt.Errorf("detection: max_length %d below min length", d.MaxLength)
	}
	if d.ConfidenceThreshold < 0 || d.ConfidenceThreshold > 1 {
		return fmt.Errorf("detection: confidence_threshold %v out of [0,1]", d.ConfidenceThreshold)
	}
	if d.HealthInterval <= 0 || d.LivenessInterval <= 0 {
		return fmt.Errorf("detection: watchdog intervals must be positive")
	}
	o := c.Overlay
	if o.EnterDuration <= 0 || o.DisplayDuration <= 0 || o.ExitDuration <= 0 || o.ProgressInterval <= 0 {
		return fmt.Errorf("overlay: durations must be positive")
	}
	if c.Store.Capacity <= 0 {
		return fmt.Errorf("store: capacity must be positive")
	}
	switch c.Store.Backend {
	case BackendFile, BackendEncrypted:
	default:
		return fmt.Errorf("store: unknown backend %q", c.Store.Backend)
	}
	return nil
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
