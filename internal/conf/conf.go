package conf

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tesla-sdk/internal/apperr"
	"tesla-sdk/internal/auth"
)

// Version is the SDK version, reported by the CLI and in the default User-Agent.
var Version = "0.3.0"

const (
	DefaultAPIBaseURL   = "https://owner-api.teslamotors.com/api/1/"
	DefaultAppUserAgent = "TeslaApp/4.10.0"
	DefaultCacheFile    = "~/.cache/tesla/cache.json"
	DefaultTimeout      = 30 * time.Second
)

// Config is the config structure.
type Config struct {
	// Email identifies the account and keys its cache record.
	Email   string  `yaml:"email"`
	SSO     SSO     `yaml:"sso"`
	API     API     `yaml:"api"`
	HTTP    HTTP    `yaml:"http"`
	Cache   Cache   `yaml:"cache"`
	Vehicle Vehicle `yaml:"vehicle"`
}

// SSO is the single sign-on service config.
type SSO struct {
	BaseURL     string   `yaml:"base_url"`
	RedirectURL string   `yaml:"redirect_url"`
	Scopes      []string `yaml:"scopes"`
}

// API is the owner API config.
type API struct {
	BaseURL      string `yaml:"base_url"`
	UserAgent    string `yaml:"user_agent"`
	AppUserAgent string `yaml:"app_user_agent"` // sent as X-Tesla-User-Agent
}

// HTTP is the shared HTTP client config.
type HTTP struct {
	Timeout            time.Duration `yaml:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

// Cache is the token cache config.
type Cache struct {
	File string `yaml:"file"`
}

// Vehicle holds the PINs some vehicle commands require.
type Vehicle struct {
	SpeedLimitPIN string `yaml:"speed_limit_pin"`
	ValetPIN      string `yaml:"valet_pin"`
}

// Default returns a config with every default applied and no email.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads config from file. An empty path loads defaults only.
// Environment variables override the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(ExpandHome(path))
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

// LoadEnv loads dotenv files into the process environment. Missing files are
// skipped; variables already set are not overwritten.
func LoadEnv(files ...string) error {
	for _, f := range files {
		f = ExpandHome(f)
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the fields every session needs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Email) == "" {
		return apperr.Configuration("config", "email is not set")
	}
	return nil
}

// CachePath returns the cache file with a leading ~ expanded.
func (c *Config) CachePath() string {
	return ExpandHome(c.Cache.File)
}

func (c *Config) applyDefaults() {
	if c.SSO.BaseURL == "" {
		c.SSO.BaseURL = auth.DefaultSSOBaseURL
	}
	if c.SSO.RedirectURL == "" {
		c.SSO.RedirectURL = auth.DefaultRedirectURL
	}
	if len(c.SSO.Scopes) == 0 {
		c.SSO.Scopes = append([]string(nil), auth.DefaultScopes...)
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultAPIBaseURL
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = "tesla-sdk/" + Version
	}
	if c.API.AppUserAgent == "" {
		c.API.AppUserAgent = DefaultAppUserAgent
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = DefaultTimeout
	}
	if c.Cache.File == "" {
		c.Cache.File = DefaultCacheFile
	}
}

// Override config from env vars if present
func (c *Config) applyEnv() {
	overrides := []struct {
		name string
		dst  *string
	}{
		{"TESLA_EMAIL", &c.Email},
		{"TESLA_SSO_BASE_URL", &c.SSO.BaseURL},
		{"TESLA_API_BASE_URL", &c.API.BaseURL},
		{"TESLA_CACHE_FILE", &c.Cache.File},
		{"TESLA_USER_AGENT", &c.API.UserAgent},
		{"TESLA_APP_USER_AGENT", &c.API.AppUserAgent},
		{"TESLA_SPEED_PIN", &c.Vehicle.SpeedLimitPIN},
		{"TESLA_VALET_PIN", &c.Vehicle.ValetPIN},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.name); v != "" {
			*o.dst = v
		}
	}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
