package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	dbtypes "github.com/nitesh/news_digest/internal/db"
	"github.com/nitesh/news_digest/pkg/models"
)

const (
	configPathEnv = "DIGEST_CONFIG"

	defaultFeedTTL    = 5 * time.Minute
	defaultLLMTimeout = 60 * time.Second
)

// Config holds everything the service needs at startup.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	LLM      LLMConfig      `yaml:"llm"`
	Log      LogConfig      `yaml:"log"`
	Profile  ProfileConfig  `yaml:"profile"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// DatabaseConfig selects the SQL driver and its DSN. Driver is "postgres"
// in deployments; "sqlite" is accepted for local runs.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Disabled bool          `yaml:"disabled"`
	FeedTTL  time.Duration `yaml:"feedTtl"`
}

type LLMConfig struct {
	URL     string        `yaml:"url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// ProfileConfig names the user whose profile this instance serves.
// Defaults are applied to a brand-new profile only when SeedDefaults is set;
// otherwise a new profile starts empty and shows every article.
type ProfileConfig struct {
	UserID       string             `yaml:"userId"`
	SeedDefaults bool               `yaml:"seedDefaults"`
	Defaults     models.Preferences `yaml:"defaults"`
}

// Load applies, in order: defaults, the YAML file named by DIGEST_CONFIG,
// then environment overrides.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := cfg.mergeYAML(raw); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: "8080"},
		Database: DatabaseConfig{
			Driver: "postgres",
			DSN:    postgresDSN("scout_user", "Scout@1111", "localhost", "5432", "news_digest"),
		},
		Redis: RedisConfig{Addr: "localhost:6379", FeedTTL: defaultFeedTTL},
		LLM: LLMConfig{
			URL:     "http://host.docker.internal:11434/api/generate",
			Model:   "smollm2:135m",
			Timeout: defaultLLMTimeout,
		},
		Log: LogConfig{Level: "info"},
		Profile: ProfileConfig{
			UserID: "default",
			Defaults: models.Preferences{
				Topics:   dbtypes.StringSlice{"Technology", "Science"},
				Keywords: dbtypes.StringSlice{"AI", "climate"},
				Sources:  dbtypes.StringSlice{"BBC News", "Reuters"},
			},
		},
	}
}

// mergeYAML decodes raw over the current values; keys absent from the file
// keep their defaults.
func (c *Config) mergeYAML(raw []byte) error {
	return yaml.Unmarshal(raw, c)
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if host := os.Getenv("DB_HOST"); host != "" {
		c.Database.DSN = postgresDSN(
			envOrDefault("DB_USER", "scout_user"),
			envOrDefault("DB_PASS", "Scout@1111"),
			host,
			envOrDefault("DB_PORT", "5432"),
			envOrDefault("DB_NAME", "news_digest"),
		)
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_DISABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: REDIS_DISABLED: %w", err)
		}
		c.Redis.Disabled = b
	}
	if v := os.Getenv("FEED_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: FEED_CACHE_TTL: %w", err)
		}
		c.Redis.FeedTTL = d
	}
	if v := os.Getenv("LLM_URL"); v != "" {
		c.LLM.URL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("DIGEST_USER_ID"); v != "" {
		c.Profile.UserID = strings.TrimSpace(v)
	}
	return nil
}

func envOrDefault(key, d string) string {
	v := os.Getenv(key)
	if v == "" {
		return d
	}
	return v
}

func postgresDSN(user, pass, host, port, name string) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, pass, name)
}
