package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the pitch backend
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LLMConfig contains LLM provider configurations
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type        string        `mapstructure:"type"` // openai, litellm
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LLMRoutingConfig defines which model each agent role uses
type LLMRoutingConfig struct {
	Greeter      string `mapstructure:"greeter"`
	Researcher   string `mapstructure:"researcher"`
	Screenwriter string `mapstructure:"screenwriter"`
	Critic       string `mapstructure:"critic"`
	Fallback     string `mapstructure:"fallback"`
}

// ModelFor resolves the model for an agent role, falling back to the
// fallback model when the role has no explicit route.
func (r LLMRoutingConfig) ModelFor(role string) string {
	var m string
	switch role {
	case "greeter":
		m = r.Greeter
	case "researcher":
		m = r.Researcher
	case "screenwriter":
		m = r.Screenwriter
	case "critic":
		m = r.Critic
	}
	if m == "" {
		m = r.Fallback
	}
	return m
}

// AgentsConfig contains pipeline-level settings
type AgentsConfig struct {
	PitchDir      string        `mapstructure:"pitch_dir"`       // directory where final pitch documents are written
	SweepCron     string        `mapstructure:"sweep_cron"`      // schedule for the stale-session sweep
	StaleAfter    time.Duration `mapstructure:"stale_after"`     // idle window before a session is marked stale
	WikiCacheTTL  time.Duration `mapstructure:"wiki_cache_ttl"`  // redis TTL for cached wikipedia lookups
	WikipediaOn   bool          `mapstructure:"wikipedia_on"`    // enrich researcher input with wikipedia context
	MessageMaxLen int           `mapstructure:"message_max_len"` // inbound message length cap
}

// StorageConfig contains database settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds a Postgres connection string from the configured fields.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Addr() string {
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", r.Host, port)
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig reads configuration from file and environment.
// Environment variables use the MOVIEPITCH_ prefix (MOVIEPITCH_SERVER_ADDRESS etc).
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", time.Minute)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("agents.pitch_dir", "pitches")
	viper.SetDefault("agents.sweep_cron", "@hourly")
	viper.SetDefault("agents.stale_after", 24*time.Hour)
	viper.SetDefault("agents.wiki_cache_ttl", 6*time.Hour)
	viper.SetDefault("agents.wikipedia_on", true)
	viper.SetDefault("agents.message_max_len", 8192)
	viper.SetDefault("llm.routing.fallback", "gpt-4o-mini")
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("MOVIEPITCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return &config
}
