package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/tidwall/jsonc"
)

// Config is the process configuration shared by the coordinator and the
// observer commands. Assistant settings (provider, style, credentials) are
// not here; those live in the state store and change at runtime.
type Config struct {
	// Port the coordinator listens on.
	Port int `json:"port,omitempty"`

	// StateDir overrides where the coordinator keeps its state store.
	StateDir string `json:"stateDir,omitempty"`

	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `json:"logLevel,omitempty"`

	// CoordinatorURL is where observers reach the coordinator.
	CoordinatorURL string `json:"coordinatorUrl,omitempty"`

	// ScanInterval is the observer's scan period.
	ScanInterval Duration `json:"scanInterval,omitempty"`

	// Headless launches the observer's browser without a window.
	Headless bool `json:"headless,omitempty"`

	// RemoteBrowserURL attaches the observer to a running browser's
	// devtools endpoint instead of launching one.
	RemoteBrowserURL string `json:"remoteBrowserUrl,omitempty"`
}

// Duration is a time.Duration that unmarshals from a JSON string like "5s".
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Defaults returns the default process configuration.
func Defaults() *Config {
	return &Config{
		Port:           7821,
		LogLevel:       "info",
		CoordinatorURL: "http://127.0.0.1:7821",
		ScanInterval:   Duration(5 * time.Second),
	}
}

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/tabcoach/tabcoach.json or .jsonc)
// 2. TABCOACH_CONFIG file
// 3. Environment variables
func Load() (*Config, error) {
	config := Defaults()

	globalDir := GetPaths().Config
	loadConfigFile(filepath.Join(globalDir, "tabcoach.json"), config)
	loadConfigFile(filepath.Join(globalDir, "tabcoach.jsonc"), config)

	if path := os.Getenv("TABCOACH_CONFIG"); path != "" {
		loadConfigFile(path, config)
	}

	applyEnvOverrides(config)

	return config, nil
}

// loadConfigFile loads a single config file with interpolation support.
// Missing files are skipped silently.
func loadConfigFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Strip JSONC comments using tidwall/jsonc
	data = jsonc.ToJSON(data)
	data = interpolate(data)

	return json.Unmarshal(data, config)
}

// interpolate processes {env:VAR} placeholders.
func interpolate(data []byte) []byte {
	envPattern := regexp.MustCompile(`\{env:([^}]+)\}`)
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(varName)))
	})
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *Config) {
	if port := os.Getenv("TABCOACH_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			config.Port = n
		}
	}
	if dir := os.Getenv("TABCOACH_STATE_DIR"); dir != "" {
		config.StateDir = dir
	}
	if level := os.Getenv("TABCOACH_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
	if url := os.Getenv("TABCOACH_COORDINATOR_URL"); url != "" {
		config.CoordinatorURL = url
	}
	if interval := os.Getenv("TABCOACH_SCAN_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.ScanInterval = Duration(d)
		}
	}
}

// StoragePath returns the effective state storage directory.
func (c *Config) StoragePath() string {
	if c.StateDir != "" {
		return c.StateDir
	}
	return GetPaths().StoragePath()
}
