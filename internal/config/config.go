// Package config loads runtime configuration from environment variables
// with an optional YAML config file fallback. Environment always wins.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Port             string
	StateDir         string
	ProfileDir       string
	Headless         string // "auto", "true", "false"
	ChromeBinary     string
	ChromeExtraFlags string
	LockTimeout      time.Duration // lock expiry, the ultimate backstop
	RunTimeout       time.Duration // default watchdog budget for `run`
	GracePeriod      time.Duration // SIGTERM-to-SIGKILL window
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func homeDir() string {
	h, _ := os.UserHomeDir()
	return h
}

// DebugURL is the base URL of Chrome's remote-debugging endpoint.
func (c *RuntimeConfig) DebugURL() string {
	return "http://127.0.0.1:" + c.Port
}

// FileConfig is the YAML config file format.
type FileConfig struct {
	Port           string `yaml:"port"`
	StateDir       string `yaml:"stateDir"`
	ProfileDir     string `yaml:"profileDir"`
	Headless       string `yaml:"headless,omitempty"`
	ChromeBinary   string `yaml:"chromeBinary,omitempty"`
	LockTimeoutSec int    `yaml:"lockTimeoutSec,omitempty"`
	RunTimeoutSec  int    `yaml:"runTimeoutSec,omitempty"`
}

func Load() *RuntimeConfig {
	cfg := &RuntimeConfig{
		Port:             envOr("PINCHLOCK_PORT", "9222"),
		StateDir:         envOr("PINCHLOCK_STATE_DIR", filepath.Join(homeDir(), ".pinchlock")),
		ProfileDir:       envOr("PINCHLOCK_PROFILE", filepath.Join(homeDir(), ".pinchlock", "chrome-profile")),
		Headless:         normalizeHeadless(envOr("PINCHLOCK_HEADLESS", "auto")),
		ChromeBinary:     os.Getenv("CHROME_BINARY"),
		ChromeExtraFlags: os.Getenv("CHROME_FLAGS"),
		LockTimeout:      time.Duration(envIntOr("PINCHLOCK_LOCK_TIMEOUT", 300)) * time.Second,
		RunTimeout:       time.Duration(envIntOr("PINCHLOCK_RUN_TIMEOUT", 300)) * time.Second,
		GracePeriod:      3 * time.Second,
	}

	configPath := envOr("PINCHLOCK_CONFIG", filepath.Join(homeDir(), ".pinchlock", "config.yaml"))

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		slog.Warn("invalid YAML in config file, ignoring", "path", configPath, "err", err)
		return cfg
	}

	if fc.Port != "" && os.Getenv("PINCHLOCK_PORT") == "" {
		cfg.Port = fc.Port
	}
	if fc.StateDir != "" && os.Getenv("PINCHLOCK_STATE_DIR") == "" {
		cfg.StateDir = fc.StateDir
	}
	if fc.ProfileDir != "" && os.Getenv("PINCHLOCK_PROFILE") == "" {
		cfg.ProfileDir = fc.ProfileDir
	}
	if fc.Headless != "" && os.Getenv("PINCHLOCK_HEADLESS") == "" {
		cfg.Headless = normalizeHeadless(fc.Headless)
	}
	if fc.ChromeBinary != "" && os.Getenv("CHROME_BINARY") == "" {
		cfg.ChromeBinary = fc.ChromeBinary
	}
	if fc.LockTimeoutSec > 0 && os.Getenv("PINCHLOCK_LOCK_TIMEOUT") == "" {
		cfg.LockTimeout = time.Duration(fc.LockTimeoutSec) * time.Second
	}
	if fc.RunTimeoutSec > 0 && os.Getenv("PINCHLOCK_RUN_TIMEOUT") == "" {
		cfg.RunTimeout = time.Duration(fc.RunTimeoutSec) * time.Second
	}

	return cfg
}

func normalizeHeadless(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return "true"
	case "0", "false", "no", "off":
		return "false"
	default:
		return "auto"
	}
}
