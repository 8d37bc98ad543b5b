// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/docchat-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete docchat configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Backend BackendConfig `toml:"backend" json:"backend"`
	Stream  StreamConfig  `toml:"stream" json:"stream"`
	Upload  UploadConfig  `toml:"upload" json:"upload"`
	Models  ModelsConfig  `toml:"models" json:"models"`
	Chats   ChatsConfig   `toml:"chats" json:"chats"`
	Log     LogConfig     `toml:"log" json:"log"`
	Metrics MetricsConfig `toml:"metrics" json:"metrics"`
	UI      UIConfig      `toml:"ui" json:"ui"`
}

// BackendConfig locates the chat backend.
type BackendConfig struct {
	// URL is the API base, e.g. http://localhost:8000/api
	URL string `toml:"url" json:"url"`

	// RequestTimeoutSecs bounds non-streaming requests.
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs"`
}

// StreamConfig controls the response stream.
type StreamConfig struct {
	// IdleTimeoutSecs aborts a stream that delivers no data for this long.
	// Zero disables the watchdog.
	IdleTimeoutSecs int `toml:"idle_timeout_secs" json:"idle_timeout_secs"`
}

// UploadConfig controls attachment uploads.
type UploadConfig struct {
	// Overwrite replaces a same-named document already stored on the backend.
	Overwrite bool `toml:"overwrite" json:"overwrite"`

	// MaxConcurrent caps parallel uploads per turn. Zero means unbounded.
	MaxConcurrent int `toml:"max_concurrent" json:"max_concurrent"`
}

// ModelsConfig holds model selection defaults.
type ModelsConfig struct {
	Default  string   `toml:"default" json:"default"`
	Fallback []string `toml:"fallback" json:"fallback"`
}

// ChatsConfig controls chat list requests.
type ChatsConfig struct {
	ListLimit int `toml:"list_limit" json:"list_limit"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `toml:"level" json:"level"`
	Pretty bool   `toml:"pretty" json:"pretty"`

	// File is the log destination. Empty means ~/.docchat/docchat.log.
	File string `toml:"file" json:"file"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables serving.
	Addr string `toml:"addr" json:"addr"`
}

// UIConfig contains user interface settings.
type UIConfig struct {
	Theme        string `toml:"theme" json:"theme"`
	ShowThinking bool   `toml:"show_thinking" json:"show_thinking"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultBackendURL is the backend's default API base.
	DefaultBackendURL = "http://localhost:8000/api"

	// CurrentVersion is the config file schema version.
	CurrentVersion = "1"
)

// DefaultFallbackModels are offered when the model registry is unreachable.
var DefaultFallbackModels = []string{"llama3", "mistral"}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Backend: BackendConfig{
			URL:                DefaultBackendURL,
			RequestTimeoutSecs: 30,
		},
		Stream: StreamConfig{
			IdleTimeoutSecs: 120,
		},
		Upload: UploadConfig{
			Overwrite:     false,
			MaxConcurrent: 0,
		},
		Models: ModelsConfig{
			Fallback: append([]string(nil), DefaultFallbackModels...),
		},
		Chats: ChatsConfig{
			ListLimit: 50,
		},
		Log: LogConfig{
			Level: "info",
		},
		UI: UIConfig{
			Theme:        "auto",
			ShowThinking: true,
		},
	}
}

// RequestTimeout returns the request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Backend.RequestTimeoutSecs) * time.Second
}

// IdleTimeout returns the stream idle timeout as a duration. Zero disables.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Stream.IdleTimeoutSecs) * time.Second
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the docchat configuration directory (~/.docchat).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".docchat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DefaultLogPath returns ~/.docchat/docchat.log.
func DefaultLogPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "docchat.log"), nil
}

// ErrNoConfig is returned by Path when no config file exists.
var ErrNoConfig = errors.New("no config file found")

// Path returns the config file Load would read.
func Path() (string, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrNoConfig
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from ~/.docchat. TOML is tried first, then JSON,
// then built-in defaults. Environment overrides are applied last.
//
// A config file that fails to decode is reported alongside the defaults so
// callers can warn and keep going.
func Load() (*Config, error) {
	var loadErr error

	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg, err := LoadFromPath(path)
		if err == nil {
			return cfg, nil
		}
		if loadErr == nil {
			loadErr = err
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, loadErr
}

// LoadFromPath loads configuration from a specific file. Files ending in
// .json are decoded as JSON, everything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	if strings.HasSuffix(path, ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read JSON config from %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode JSON config from %s: %w", path, err)
		}
	} else {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML config from %s: %w", path, err)
		}
	}

	fillDefaults(cfg)
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. With no
// arguments ".env" in the working directory is used. Missing files are
// skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// fillDefaults fills in any missing values with defaults.
//
// Zero is meaningful for stream.idle_timeout_secs and upload.max_concurrent,
// so those are left untouched.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.Backend.URL == "" {
		cfg.Backend.URL = defaults.Backend.URL
	}
	if cfg.Backend.RequestTimeoutSecs == 0 {
		cfg.Backend.RequestTimeoutSecs = defaults.Backend.RequestTimeoutSecs
	}
	if cfg.Models.Fallback == nil {
		cfg.Models.Fallback = defaults.Models.Fallback
	}
	if cfg.Chats.ListLimit == 0 {
		cfg.Chats.ListLimit = defaults.Chats.ListLimit
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# docchat configuration file\n")
	b.WriteString("# Generated by docchat - edit with care\n\n")

	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true,
	"error": true, "fatal": true, "disabled": true,
}

var validThemes = map[string]bool{"auto": true, "dark": true, "light": true, "notty": true}

// Validate validates the configuration and returns ValidateErrors when any
// field is out of range.
func (c *Config) Validate() error {
	var errs ValidateErrors

	u, err := url.Parse(c.Backend.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{
			Field:   "backend.url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]/path", c.Backend.URL),
		})
	}
	if c.Backend.RequestTimeoutSecs < 1 || c.Backend.RequestTimeoutSecs > 3600 {
		errs = append(errs, ValidationError{
			Field:   "backend.request_timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 3600, got %d", c.Backend.RequestTimeoutSecs),
		})
	}
	if c.Stream.IdleTimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "stream.idle_timeout_secs",
			Message: fmt.Sprintf("must not be negative, got %d", c.Stream.IdleTimeoutSecs),
		})
	}
	if c.Upload.MaxConcurrent < 0 {
		errs = append(errs, ValidationError{
			Field:   "upload.max_concurrent",
			Message: fmt.Sprintf("must not be negative, got %d", c.Upload.MaxConcurrent),
		})
	}
	if c.Chats.ListLimit < 1 || c.Chats.ListLimit > 1000 {
		errs = append(errs, ValidationError{
			Field:   "chats.list_limit",
			Message: fmt.Sprintf("must be between 1 and 1000, got %d", c.Chats.ListLimit),
		})
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s'", c.Log.Level),
		})
	}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light, notty", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies DOCCHAT_* environment variables. Malformed
// numeric or boolean values are ignored.
func (c *Config) ApplyEnvOverrides() {
	// DOCCHAT_API_URL
	if v := os.Getenv("DOCCHAT_API_URL"); v != "" {
		c.Backend.URL = v
	}

	// DOCCHAT_MODEL
	if v := os.Getenv("DOCCHAT_MODEL"); v != "" {
		c.Models.Default = v
	}

	// DOCCHAT_LOG_LEVEL
	if v := os.Getenv("DOCCHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}

	// DOCCHAT_IDLE_TIMEOUT (seconds)
	if v := os.Getenv("DOCCHAT_IDLE_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Stream.IdleTimeoutSecs = n
		}
	}

	// DOCCHAT_OVERWRITE
	if v := os.Getenv("DOCCHAT_OVERWRITE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Upload.Overwrite = b
		}
	}

	// DOCCHAT_METRICS_ADDR
	if v := os.Getenv("DOCCHAT_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Models.Fallback = append([]string(nil), c.Models.Fallback...)
	return &clone
}

// String returns the configuration encoded as TOML.
func (c *Config) String() string {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return b.String()
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if cfg == nil {
		return err
	}
	SetGlobal(cfg)
	return err
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
