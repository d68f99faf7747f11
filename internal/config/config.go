package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable that overrides the file.
const EnvPrefix = "CLUBHUB_"

// Config represents the application configuration.
type Config struct {
	Discord        DiscordConfig        `yaml:"discord" envPrefix:"DISCORD_"`
	Database       DatabaseConfig       `yaml:"database" envPrefix:"DB_"`
	Server         ServerConfig         `yaml:"server" envPrefix:"SERVER_"`
	Telemetry      TelemetryConfig      `yaml:"telemetry" envPrefix:"OTEL_"`
	LeaderElection LeaderElectionConfig `yaml:"leader_election" envPrefix:"LEADER_"`
}

// DiscordConfig holds Discord bot settings. An empty token disables the bot
// and Discord notification delivery.
type DiscordConfig struct {
	Token   string `yaml:"token" env:"TOKEN"`
	GuildID string `yaml:"guild_id" env:"GUILD_ID"`
}

// Enabled reports whether a bot token is configured.
func (d DiscordConfig) Enabled() bool { return d.Token != "" }

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	DBName   string `yaml:"dbname" env:"NAME"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"`
	Driver   string `yaml:"driver" env:"DRIVER"` // "postgres" or "memory"
	// Migrate applies the embedded schema migrations on startup.
	Migrate bool `yaml:"migrate" env:"MIGRATE"`
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" env:"SERVICE_NAME"`
	ServiceVersion string `yaml:"service_version" env:"SERVICE_VERSION"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" env:"ENDPOINT"`
	Insecure       bool   `yaml:"insecure" env:"INSECURE"`
}

// LeaderElectionConfig holds Kubernetes leader election settings.
type LeaderElectionConfig struct {
	Enabled        bool          `yaml:"enabled" env:"ENABLED"`
	LeaseName      string        `yaml:"lease_name" env:"LEASE_NAME"`
	LeaseNamespace string        `yaml:"lease_namespace" env:"LEASE_NAMESPACE"`
	LeaseDuration  time.Duration `yaml:"lease_duration" env:"LEASE_DURATION"`
	RenewDeadline  time.Duration `yaml:"renew_deadline" env:"RENEW_DEADLINE"`
	RetryPeriod    time.Duration `yaml:"retry_period" env:"RETRY_PERIOD"`
}

// Defaults returns the configuration used before the file and environment
// are applied.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
			Driver:  "postgres",
			Migrate: true,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "clubhub",
			ServiceVersion: "0.1.0",
		},
		LeaderElection: LeaderElectionConfig{
			Enabled:        false,
			LeaseName:      "clubhub-leader",
			LeaseNamespace: "default",
			LeaseDuration:  15 * time.Second,
			RenewDeadline:  10 * time.Second,
			RetryPeriod:    2 * time.Second,
		},
	}
}

// Load reads a YAML configuration file from the given path and applies
// CLUBHUB_* environment overrides on top. A .env file in the working
// directory is loaded first when present.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	_ = godotenv.Load()
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
		// valid
	default:
		return fmt.Errorf("unsupported database driver %q: must be \"postgres\" or \"memory\"", c.Database.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.LeaderElection.Enabled && c.LeaderElection.RenewDeadline >= c.LeaderElection.LeaseDuration {
		return fmt.Errorf("leader election renew_deadline (%s) must be shorter than lease_duration (%s)",
			c.LeaderElection.RenewDeadline, c.LeaderElection.LeaseDuration)
	}
	return nil
}
