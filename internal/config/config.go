// Package config loads runtime settings from the environment, an optional
// .env file and an optional YAML overlay.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          string        `yaml:"port"`
	Env           string        `yaml:"env"`
	DatabaseURL   string        `yaml:"database_url"`
	RedisURL      string        `yaml:"redis_url"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	WeatherAPIKey string        `yaml:"visualcrossing_api_key"`
	WeatherURL    string        `yaml:"visualcrossing_url"`

	Voice struct {
		DeepgramAPIKey string `yaml:"deepgram_api_key"`
		DeepgramURL    string `yaml:"deepgram_url"`
		Language       string `yaml:"language"`
		CaptureCommand string `yaml:"capture_command"`
	} `yaml:"voice"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"log"`

	WidgetIdleTimeout time.Duration `yaml:"widget_idle_timeout"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	cfg := &Config{
		Port:              "8080",
		Env:               "development",
		CacheTTL:          10 * time.Minute,
		WidgetIdleTimeout: 30 * time.Minute,
	}
	cfg.Voice.Language = "en-US"
	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	return cfg
}

// Load reads .env (if present), the YAML file named by CONFIG_FILE (if set)
// and then the environment, which wins over both.
func Load() (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: open %s: %w", path, err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Env = getEnv("GO_ENV", cfg.Env)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.WeatherAPIKey = getEnv("VISUALCROSSING_API_KEY", cfg.WeatherAPIKey)
	cfg.WeatherURL = getEnv("VISUALCROSSING_URL", cfg.WeatherURL)
	cfg.Voice.DeepgramAPIKey = getEnv("DEEPGRAM_API_KEY", cfg.Voice.DeepgramAPIKey)
	cfg.Voice.DeepgramURL = getEnv("DEEPGRAM_URL", cfg.Voice.DeepgramURL)
	cfg.Voice.Language = getEnv("VOICE_LANGUAGE", cfg.Voice.Language)
	cfg.Voice.CaptureCommand = getEnv("VOICE_CAPTURE_CMD", cfg.Voice.CaptureCommand)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)

	var err error
	if cfg.CacheTTL, err = getDuration("CACHE_TTL", cfg.CacheTTL); err != nil {
		return err
	}
	if cfg.WidgetIdleTimeout, err = getDuration("WIDGET_IDLE_TIMEOUT", cfg.WidgetIdleTimeout); err != nil {
		return err
	}
	return nil
}

// IsProduction reports whether GO_ENV names a production deployment
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
