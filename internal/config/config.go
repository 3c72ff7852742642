// Package config loads process configuration from the environment and an
// optional dotenv file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	// AppName is the application directory name.
	AppName = "reschedule"

	// OAuthClientFile is the OAuth client credentials filename.
	OAuthClientFile = "oauth_client.json"

	// TokenFile is the stored OAuth token filename.
	TokenFile = "token.json"

	// DefaultEnvFile is read from the working directory when present.
	DefaultEnvFile = ".env"
)

// Backend names.
const (
	BackendTodoist     = "todoist"
	BackendGoogleTasks = "googletasks"
)

// Keys. Each one is also the lowercased environment variable name.
const (
	KeyAPIToken    = "todoist_api_token"
	KeyBackend     = "reschedule_backend"
	KeyBaseURL     = "reschedule_base_url"
	KeyFilter      = "reschedule_filter"
	KeyTimezone    = "reschedule_timezone"
	KeyConcurrency = "reschedule_concurrency"
	KeyRatePerSec  = "reschedule_rate_per_sec"
	KeyRateBurst   = "reschedule_rate_burst"
	KeyTimeout     = "reschedule_timeout"
	KeyLogLevel    = "reschedule_log_level"
	KeyLogFormat   = "reschedule_log_format"
	KeyConfigDir   = "reschedule_config_dir"
	KeyGoogleList  = "reschedule_google_tasklist"
	keyEnvFile     = "RESCHEDULE_ENV_FILE"
)

// DefaultBaseURL is the Todoist REST API root.
const DefaultBaseURL = "https://api.todoist.com/rest/v2"

var (
	// ErrMissingToken is returned when the todoist backend has no API token.
	ErrMissingToken = errors.New("TODOIST_API_TOKEN must be set")

	// ErrMissingCredentials is returned when the googletasks backend has no
	// OAuth client file or stored token in the config directory.
	ErrMissingCredentials = errors.New("google credentials not found")

	// ErrInvalid is wrapped by every validation failure.
	ErrInvalid = errors.New("invalid configuration")
)

// Config holds settings for one run. It is read once at startup and never
// mutated afterwards.
type Config struct {
	// Dir is the configuration directory path (googletasks credentials).
	Dir string

	Backend  string
	APIToken string
	BaseURL  string
	Filter   string

	// Location is used to compute today's date.
	Location *time.Location

	// Concurrency caps in-flight updates; 0 means unbounded.
	Concurrency int

	// RatePerSec limits update calls per second; 0 disables limiting.
	RatePerSec float64
	RateBurst  int

	// Timeout bounds each backend request.
	Timeout time.Duration

	LogLevel  string
	LogFormat string

	GoogleTaskList string
}

// Load reads configuration from the process environment, falling back to a
// dotenv file. The file is RESCHEDULE_ENV_FILE if set, otherwise .env in the
// working directory; a missing file is not an error.
func Load() (*Config, error) {
	envFile := os.Getenv(keyEnvFile)
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	return LoadFrom(envFile)
}

// LoadFrom is like Load with an explicit dotenv path. An empty path skips
// the file entirely.
func LoadFrom(envFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("%w: read %s: %v", ErrInvalid, envFile, err)
			}
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyBackend, BackendTodoist)
	v.SetDefault(KeyBaseURL, DefaultBaseURL)
	v.SetDefault(KeyFilter, "overdue")
	v.SetDefault(KeyTimezone, "UTC")
	v.SetDefault(KeyConcurrency, 0)
	v.SetDefault(KeyRatePerSec, 0)
	v.SetDefault(KeyRateBurst, 1)
	v.SetDefault(KeyTimeout, "30s")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyGoogleList, "@default")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Dir:            v.GetString(KeyConfigDir),
		Backend:        strings.ToLower(strings.TrimSpace(v.GetString(KeyBackend))),
		APIToken:       strings.TrimSpace(v.GetString(KeyAPIToken)),
		BaseURL:        strings.TrimRight(v.GetString(KeyBaseURL), "/"),
		Filter:         strings.TrimSpace(v.GetString(KeyFilter)),
		LogLevel:       v.GetString(KeyLogLevel),
		LogFormat:      strings.ToLower(v.GetString(KeyLogFormat)),
		GoogleTaskList: v.GetString(KeyGoogleList),
	}
	if cfg.Dir == "" {
		cfg.Dir = DefaultConfigDir()
	}

	var err error
	if cfg.Location, err = time.LoadLocation(v.GetString(KeyTimezone)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, KeyTimezone, err)
	}
	if cfg.Concurrency, err = cast.ToIntE(v.Get(KeyConcurrency)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, KeyConcurrency, err)
	}
	if cfg.RatePerSec, err = cast.ToFloat64E(v.Get(KeyRatePerSec)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, KeyRatePerSec, err)
	}
	if cfg.RateBurst, err = cast.ToIntE(v.Get(KeyRateBurst)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, KeyRateBurst, err)
	}
	if cfg.Timeout, err = cast.ToDurationE(v.Get(KeyTimeout)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, KeyTimeout, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration before any network call is made.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendTodoist:
		if c.APIToken == "" {
			return ErrMissingToken
		}
	case BackendGoogleTasks:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Backend)
	}
	if c.Filter == "" {
		return fmt.Errorf("%w: empty filter", ErrInvalid)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("%w: negative concurrency: %d", ErrInvalid, c.Concurrency)
	}
	if c.RatePerSec < 0 {
		return fmt.Errorf("%w: negative rate: %v", ErrInvalid, c.RatePerSec)
	}
	if c.RatePerSec > 0 && c.RateBurst < 1 {
		return fmt.Errorf("%w: rate burst must be at least 1", ErrInvalid)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout: %s", ErrInvalid, c.Timeout)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.LogFormat)
	}
	return nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// OAuthClientPath returns the path to the OAuth client credentials file.
func (c *Config) OAuthClientPath() string {
	return filepath.Join(c.Dir, OAuthClientFile)
}

// TokenPath returns the path to the stored OAuth token file.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Dir, TokenFile)
}

// HasOAuthClient checks if the OAuth client credentials file exists.
func (c *Config) HasOAuthClient() bool {
	_, err := os.Stat(c.OAuthClientPath())
	return err == nil
}

// HasToken checks if the token file exists.
func (c *Config) HasToken() bool {
	_, err := os.Stat(c.TokenPath())
	return err == nil
}
