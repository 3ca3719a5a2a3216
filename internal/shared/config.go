package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override values read from config.toml.
const (
	EnvRedditClientID     = "JOIP_REDDIT_CLIENT_ID"
	EnvRedditClientSecret = "JOIP_REDDIT_CLIENT_SECRET"
	EnvServerAPIKey       = "JOIP_SERVER_API_KEY"
	EnvDatabasePath       = "JOIP_DATABASE_PATH"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Reddit   RedditConfig   `toml:"reddit"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Player   PlayerConfig   `toml:"player"`
}

// RedditConfig contains the application credentials and endpoints used to talk to Reddit.
type RedditConfig struct {
	ClientID          string  `toml:"client_id"`
	ClientSecret      string  `toml:"client_secret"`
	RedirectURI       string  `toml:"redirect_uri"`
	TokenURL          string  `toml:"token_url"`
	AuthURL           string  `toml:"auth_url"`
	APIBase           string  `toml:"api_base"`
	UserAgent         string  `toml:"user_agent"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host   string `toml:"host"`
	Port   int    `toml:"port"`
	APIKey string `toml:"api_key"`
}

// PlayerConfig contains slideshow playback settings.
type PlayerConfig struct {
	DefaultLimit     int    `toml:"default_limit"`
	LoadTimeout      string `toml:"load_timeout"`
	CaptionsEndpoint string `toml:"captions_endpoint"`
	LogFile          string `toml:"log_file"`
}

// LoadTimeoutDuration parses LoadTimeout, falling back to ten seconds when unset or malformed.
func (p PlayerConfig) LoadTimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(p.LoadTimeout); err == nil && d > 0 {
		return d
	}
	return 10 * time.Second
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes config as TOML and writes it to path, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ApplyEnv loads the dotenv files (defaulting to .env in the working directory) into the process
// environment and copies any JOIP_* overrides onto config. A missing .env file is not an error.
func ApplyEnv(config *Config, files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	override(&config.Reddit.ClientID, EnvRedditClientID)
	override(&config.Reddit.ClientSecret, EnvRedditClientSecret)
	override(&config.Server.APIKey, EnvServerAPIKey)
	override(&config.Database.Path, EnvDatabasePath)
	return nil
}

// HasRedditCredentials reports whether an application client id and secret are configured.
func (c *Config) HasRedditCredentials() bool {
	id, secret := c.Reddit.ClientID, c.Reddit.ClientSecret
	return id != "" && secret != "" && !strings.HasPrefix(id, "your_") && !strings.HasPrefix(secret, "your_")
}
