package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the relay server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	CORS      CORSConfig      `yaml:"cors"`
	Relay     RelayConfig     `yaml:"relay"`
	Command   CommandConfig   `yaml:"command"`
	S3        S3Config        `yaml:"s3"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Jobs      JobsConfig      `yaml:"jobs"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	Env             string        `yaml:"env"`
	LogLevel        string        `yaml:"log_level"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // postgres | sqlite
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

type CORSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins"`
}

type RelayConfig struct {
	MaxMessageSize int64 `yaml:"max_message_size"`
}

type CommandConfig struct {
	UpstreamURL string        `yaml:"upstream_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
}

// Enabled reports whether snapshot archiving is configured
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.Region != ""
}

type DiscoveryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

type JobsConfig struct {
	StatsSchedule string `yaml:"stats_schedule"`
}

// Default returns the configuration used when no file or environment overrides apply
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Env:             "dev",
			LogLevel:        "info",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			URL:             "aether.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Channel: "aether:relay",
		},
		CORS: CORSConfig{
			AllowedOrigins: "*",
		},
		Relay: RelayConfig{
			MaxMessageSize: 16 << 20,
		},
		Command: CommandConfig{
			Timeout: 30 * time.Second,
		},
		Discovery: DiscoveryConfig{
			Instance: "aether-relay",
		},
		Jobs: JobsConfig{
			StatsSchedule: "@every 1m",
		},
	}
}

// Load reads defaults, then the yaml file at path if it exists, then environment overrides
func Load(path string) (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (cfg *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if env := os.Getenv("ENV"); env != "" {
		cfg.Server.Env = env
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORS.AllowedOrigins = origins
	}
	if upstream := os.Getenv("COMMAND_UPSTREAM_URL"); upstream != "" {
		cfg.Command.UpstreamURL = upstream
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		cfg.S3.Bucket = bucket
	}
	if region := os.Getenv("S3_REGION"); region != "" {
		cfg.S3.Region = region
	}
	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		cfg.S3.Endpoint = endpoint
	}
	if accessKey := os.Getenv("S3_ACCESS_KEY"); accessKey != "" {
		cfg.S3.AccessKey = accessKey
	}
	if secretKey := os.Getenv("S3_SECRET_KEY"); secretKey != "" {
		cfg.S3.SecretKey = secretKey
	}
	if enabled := os.Getenv("DISCOVERY_ENABLED"); enabled != "" {
		cfg.Discovery.Enabled = strings.EqualFold(enabled, "true") || enabled == "1"
	}
}
