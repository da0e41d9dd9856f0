package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port     string         `yaml:"port"`
	Version  string         `yaml:"version"`
	HomeURL  string         `yaml:"home_url"`
	SiteURL  string         `yaml:"site_url"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Uploads  UploadsConfig  `yaml:"uploads"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Log      LogConfig      `yaml:"log"`
	Support  SupportConfig  `yaml:"support"`
	CORS     CORSConfig     `yaml:"cors"`
}

type DatabaseConfig struct {
	URL         string `yaml:"url"`
	TablePrefix string `yaml:"table_prefix"`
	// Migrate creates the posts/postmeta/options tables on startup.
	Migrate bool `yaml:"migrate"`
}

type AuthConfig struct {
	Secret       string `yaml:"secret"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
}

type UploadsConfig struct {
	Dir      string `yaml:"dir"`
	BaseURL  string `yaml:"base_url"`
	MaxBytes int64  `yaml:"max_bytes"`
}

type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	Attempts  int           `yaml:"attempts"`
	MaxBytes  int64         `yaml:"max_bytes"`
	UserAgent string        `yaml:"user_agent"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type SupportConfig struct {
	InstallKeys       map[string]string `yaml:"install_keys"`
	ObfuscatePrefixes []string          `yaml:"obfuscate_prefixes"`
	SettingsPrefixes  []string          `yaml:"settings_prefixes"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func Default() *Config {
	return &Config{
		Port:    "8080",
		Version: "dev",
		Database: DatabaseConfig{
			TablePrefix: "wp_",
		},
		Uploads: UploadsConfig{
			Dir:      "./var/uploads",
			BaseURL:  "http://localhost:8080/uploads",
			MaxBytes: 32 << 20,
		},
		Fetch: FetchConfig{
			Timeout:   30 * time.Second,
			Attempts:  1,
			MaxBytes:  32 << 20,
			UserAgent: "featured-media/1.0",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
		Support: SupportConfig{
			InstallKeys:       map[string]string{},
			ObfuscatePrefixes: []string{"pue_install_key_"},
			SettingsPrefixes:  []string{"tribe_events_"},
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
	}
}

// Load reads the YAML file at path (a missing file is fine), then applies
// env overrides and fills defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.Normalize()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Port, "PORT")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Database.TablePrefix, "DATABASE_TABLE_PREFIX")
	setString(&c.Auth.Secret, "AUTH_SECRET")
	setString(&c.Auth.PasswordHash, "AUTH_PASSWORD_HASH")
	setString(&c.Uploads.Dir, "UPLOADS_DIR")
	setString(&c.Uploads.BaseURL, "UPLOADS_BASE_URL")
	setString(&c.Log.File, "LOG_FILE")
	setString(&c.Log.Level, "LOG_LEVEL")

	if v := os.Getenv("DATABASE_MIGRATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Database.Migrate = b
		}
	}
}

func setString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

// Normalize fills zero values so partial configs still work.
func (c *Config) Normalize() {
	def := Default()
	if c.Port == "" {
		c.Port = def.Port
	}
	if c.Version == "" {
		c.Version = def.Version
	}
	if c.Uploads.Dir == "" {
		c.Uploads.Dir = def.Uploads.Dir
	}
	if c.Uploads.BaseURL == "" {
		c.Uploads.BaseURL = def.Uploads.BaseURL
	}
	c.Uploads.BaseURL = strings.TrimRight(c.Uploads.BaseURL, "/")
	if c.Uploads.MaxBytes <= 0 {
		c.Uploads.MaxBytes = def.Uploads.MaxBytes
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = def.Fetch.Timeout
	}
	if c.Fetch.Attempts <= 0 {
		c.Fetch.Attempts = def.Fetch.Attempts
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = def.Fetch.MaxBytes
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = def.Fetch.UserAgent
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Support.InstallKeys == nil {
		c.Support.InstallKeys = map[string]string{}
	}
	if c.Support.ObfuscatePrefixes == nil {
		c.Support.ObfuscatePrefixes = def.Support.ObfuscatePrefixes
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = def.CORS.AllowedOrigins
	}
}

func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	if c.Auth.Secret == "" {
		return errors.New("AUTH_SECRET is not set")
	}
	return nil
}
