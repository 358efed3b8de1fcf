package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"roomcal/internal/schedule"
)

// EnvAPIBaseURL overrides api_base_url when set.
const EnvAPIBaseURL = "ROOMCAL_API_BASE_URL"

const (
	defaultListen      = "127.0.0.1:8080"
	defaultAPIBaseURL  = "https://os3-378-22222.vs.sakura.ne.jp:5001"
	defaultLocale      = "ja"
	defaultLogLevel    = "info"
	defaultPreviewPath = "/var/lib/roomcal/preview.png"
)

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the calendar UI.
	Listen string `yaml:"listen" json:"listen"`

	// APIBaseURL is the root of the remote booking service. The
	// ROOMCAL_API_BASE_URL environment variable takes precedence.
	APIBaseURL string `yaml:"api_base_url" json:"api_base_url"`

	// Locale of date labels: "ja" (default) or "en".
	Locale string `yaml:"locale" json:"locale"`

	// HealthCheck runs a reachability probe before the first fetch.
	HealthCheck bool `yaml:"health_check" json:"health_check"`

	// RefreshCron is a cron-style schedule (e.g. "*/5 * * * *") for
	// re-fetching the displayed week. Empty disables it.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// RequestTimeout bounds each booking API call. Zero means no local
	// timeout.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// LogLevel is one of "debug", "info", "error".
	LogLevel string `yaml:"log_level" json:"log_level"`

	// PreviewPath is where -capture writes and /preview.png reads the
	// screenshot of the calendar.
	PreviewPath string `yaml:"preview_path" json:"preview_path"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		APIBaseURL:  defaultAPIBaseURL,
		Locale:      defaultLocale,
		HealthCheck: true,
		RefreshCron: "",
		LogLevel:    defaultLogLevel,
		PreviewPath: defaultPreviewPath,
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	switch c.Locale {
	case "ja", "en":
	default:
		c.Locale = defaultLocale
	}
	c.RefreshCron = strings.TrimSpace(c.RefreshCron)
	if c.RequestTimeout < 0 {
		c.RequestTimeout = 0
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = defaultLogLevel
	}
	if c.PreviewPath == "" {
		c.PreviewPath = defaultPreviewPath
	}
}

// ApplyEnv overlays environment-provided values.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvAPIBaseURL)); v != "" {
		c.APIBaseURL = strings.TrimRight(v, "/")
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written there with
//     0600 perms and returned.
//   - Otherwise the YAML is read, normalized and returned.
//
// The environment overlay is applied in both cases but never saved.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				cfg.ApplyEnv()
				return cfg, err
			}
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	// Start from defaults so keys missing from the file (health_check
	// in particular) keep their default value.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports settings that Normalize cannot repair.
func (c *Config) Validate() error {
	if c.RefreshCron != "" {
		if err := schedule.Validate(c.RefreshCron); err != nil {
			return fmt.Errorf("config: invalid refresh schedule %q: %w", c.RefreshCron, err)
		}
	}
	return nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms,
// creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".roomcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
