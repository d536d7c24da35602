package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Auth     AuthConfig     `toml:"auth"`
	Media    MediaConfig    `toml:"media"`
	Ingest   IngestConfig   `toml:"ingest"`
	Cache    CacheConfig    `toml:"cache"`
	Ngrok    NgrokConfig    `toml:"ngrok"`
	Player   PlayerConfig   `toml:"player"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port           string   `toml:"port"`
	Host           string   `toml:"host"`
	EnableCORS     bool     `toml:"enable_cors"`
	AllowedOrigins []string `toml:"allowed_origins"`
	ReadTimeout    int      `toml:"read_timeout_seconds"`
	RequestLogging bool     `toml:"request_logging"`
}

// DatabaseConfig contains database-related configuration
type DatabaseConfig struct {
	Path           string `toml:"path"`
	MaxConnections int    `toml:"max_connections"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// AuthConfig controls token issuing and the auth cookie
type AuthConfig struct {
	JWTSecret     string `toml:"jwt_secret"`
	TokenTTLHours int    `toml:"token_ttl_hours"`
	SecureCookies bool   `toml:"secure_cookies"`
	BcryptCost    int    `toml:"bcrypt_cost"`
}

// MediaConfig describes where relayed audio and thumbnails live
type MediaConfig struct {
	Dir              string   `toml:"dir"`
	PublicBaseURL    string   `toml:"public_base_url"`
	ImportDir        string   `toml:"import_dir"`
	SupportedFormats []string `toml:"supported_formats"`
}

// IngestConfig configures the conversion service and download limits
type IngestConfig struct {
	Enabled            bool    `toml:"enabled"`
	APIHost            string  `toml:"api_host"`
	APIKey             string  `toml:"api_key"`
	RequestsPerSecond  float64 `toml:"requests_per_second"`
	DownloadTimeoutSec int     `toml:"download_timeout_seconds"`
	MaxDownloadMB      int     `toml:"max_download_mb"`
	StrictRelay        bool    `toml:"strict_relay"`
	Workers            int     `toml:"workers"`
}

// CacheConfig controls the catalog cache
type CacheConfig struct {
	Enabled    bool `toml:"enabled"`
	TTLMinutes int  `toml:"ttl_minutes"`
}

// NgrokConfig contains ngrok tunnel configuration
type NgrokConfig struct {
	Enabled      bool   `toml:"enabled"`
	AuthToken    string `toml:"auth_token"`
	Domain       string `toml:"domain"`
	EnableAuth   bool   `toml:"enable_auth"`
	AuthProvider string `toml:"auth_provider"`
}

// PlayerConfig configures the terminal player
type PlayerConfig struct {
	ServerURL string `toml:"server_url"`
	StatePath string `toml:"state_path"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			Host:           "0.0.0.0",
			EnableCORS:     true,
			AllowedOrigins: []string{"http://localhost:5173"},
			ReadTimeout:    30,
			RequestLogging: true,
		},
		Database: DatabaseConfig{
			Path:           "./echovia.db",
			MaxConnections: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Auth: AuthConfig{
			TokenTTLHours: 24 * 7,
			SecureCookies: false,
			BcryptCost:    12,
		},
		Media: MediaConfig{
			Dir:              "./media",
			PublicBaseURL:    "/media",
			SupportedFormats: []string{".mp3", ".flac", ".wav", ".m4a"},
		},
		Ingest: IngestConfig{
			Enabled:            true,
			APIHost:            "youtube-mp36.p.rapidapi.com",
			RequestsPerSecond:  1,
			DownloadTimeoutSec: 45,
			MaxDownloadMB:      15,
			Workers:            2,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLMinutes: 15,
		},
		Ngrok: NgrokConfig{
			AuthProvider: "google",
		},
		Player: PlayerConfig{
			ServerURL: "http://localhost:8080",
			StatePath: "./player.db",
		},
	}
}

// LoadConfig loads configuration from a TOML file, writing the defaults
// first when the file does not exist. Environment overrides are applied
// before validation.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
	} else if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overlays secrets that are usually kept in .env rather than in
// the config file. Only non-empty values override.
func (c *Config) ApplyEnv(getenv func(string) string) {
	overrides := map[string]*string{
		"JWT_SECRET":      &c.Auth.JWTSecret,
		"API_KEY":         &c.Ingest.APIKey,
		"API_HOST":        &c.Ingest.APIHost,
		"NGROK_AUTHTOKEN": &c.Ngrok.AuthToken,
		"ECHOVIA_SERVER":  &c.Player.ServerURL,
	}
	for key, dst := range overrides {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# Echovia Configuration
# Secrets (jwt_secret, api_key, auth_token) may be left empty here and
# provided through JWT_SECRET, API_KEY and NGROK_AUTHTOKEN in .env instead.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	if err := toml.NewEncoder(file).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Auth.TokenTTLHours < 1 {
		return fmt.Errorf("auth token ttl must be at least one hour")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost must be between 4 and 31")
	}

	if c.Media.Dir == "" {
		return fmt.Errorf("media dir cannot be empty")
	}
	if len(c.Media.SupportedFormats) == 0 {
		return fmt.Errorf("at least one supported audio format must be specified")
	}

	if c.Ingest.Enabled {
		if c.Ingest.APIHost == "" {
			return fmt.Errorf("ingest api host cannot be empty")
		}
		if c.Ingest.DownloadTimeoutSec < 1 {
			return fmt.Errorf("ingest download timeout must be at least one second")
		}
		if c.Ingest.MaxDownloadMB < 1 {
			return fmt.Errorf("ingest max download size must be at least 1 MB")
		}
		if c.Ingest.Workers < 1 {
			return fmt.Errorf("ingest workers must be at least 1")
		}
		if c.Ingest.RequestsPerSecond <= 0 {
			return fmt.Errorf("ingest requests per second must be positive")
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// GetAddress returns the full server address
func (c *Config) GetAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}

// IsFormatSupported checks if an audio file extension is accepted
func (c *Config) IsFormatSupported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, supported := range c.Media.SupportedFormats {
		if supported == ext {
			return true
		}
	}
	return false
}
