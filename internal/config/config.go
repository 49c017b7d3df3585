// Package config loads application settings from config.json, a .env file and
// the process environment, in increasing order of precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Environment    string   `json:"environment"`
	LogLevel       string   `json:"log_level"`
	GeminiAPIKey   string   `json:"gemini_api_key"`
	GeminiModel    string   `json:"gemini_model"`
	EmbeddingModel string   `json:"embedding_model"`
	DatabaseURL    string   `json:"DATABASE_URL"`
	RedisURL       string   `json:"redis_url"`
	LocalLLMURL    string   `json:"local_llm_url"`
	LocalLLMModel  string   `json:"local_llm_model"`
	AllowedOrigins []string `json:"allowed_origins"`
	Port           string   `json:"port"`
	S3Bucket       string   `json:"s3_bucket"`
	AWSRegion      string   `json:"aws_region"`
	ImageDir       string   `json:"image_dir"`
	RateLimit      int      `json:"rate_limit"`
	RateWindow     Duration `json:"rate_window"`
}

// Duration is a time.Duration written as "1m" or "30s" in config.json.
type Duration time.Duration

// UnmarshalJSON implements the json.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string such as \"1m\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *Config {
	return &Config{
		Environment:    "development",
		LogLevel:       "info",
		GeminiModel:    "gemini-1.5-flash",
		EmbeddingModel: "text-embedding-004",
		RedisURL:       "redis://localhost:6379/0",
		AllowedOrigins: []string{"http://localhost:8081"},
		Port:           "8080",
		ImageDir:       "images",
		RateLimit:      30,
		RateWindow:     Duration(time.Minute),
	}
}

// Load reads configPath and envPath (both optional), applies environment
// overrides and validates the result.
func Load(configPath, envPath string) (*Config, error) {
	cfg := Defaults()

	configData, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(configData, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", configPath, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read %s: %w", configPath, err)
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"ENVIRONMENT":     &c.Environment,
		"LOG_LEVEL":       &c.LogLevel,
		"GEMINI_API_KEY":  &c.GeminiAPIKey,
		"GEMINI_MODEL":    &c.GeminiModel,
		"EMBEDDING_MODEL": &c.EmbeddingModel,
		"DATABASE_URL":    &c.DatabaseURL,
		"REDIS_URL":       &c.RedisURL,
		"LOCAL_LLM_URL":   &c.LocalLLMURL,
		"LOCAL_LLM_MODEL": &c.LocalLLMModel,
		"PORT":            &c.Port,
		"S3_BUCKET":       &c.S3Bucket,
		"AWS_REGION":      &c.AWSRegion,
		"IMAGE_DIR":       &c.ImageDir,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, origin)
			}
		}
	}
	if v, ok := os.LookupEnv("RATE_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return ValidationError{Field: "RATE_LIMIT", Message: "must be an integer"}
		}
		c.RateLimit = n
	}
	if v, ok := os.LookupEnv("RATE_WINDOW"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return ValidationError{Field: "RATE_WINDOW", Message: "must be a duration such as 1m"}
		}
		c.RateWindow = Duration(d)
	}
	return nil
}

// Validate checks the configuration for missing or malformed values.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return ValidationError{Field: "gemini_api_key", Message: "is required"}
	}
	if c.DatabaseURL == "" {
		return ValidationError{Field: "DATABASE_URL", Message: "is required"}
	}
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return ValidationError{Field: "port", Message: fmt.Sprintf("invalid port %q", c.Port)}
	}
	if len(c.AllowedOrigins) == 0 {
		return ValidationError{Field: "allowed_origins", Message: "at least one origin is required"}
	}
	if c.RateLimit <= 0 {
		return ValidationError{Field: "rate_limit", Message: "must be positive"}
	}
	if c.RateWindow <= 0 {
		return ValidationError{Field: "rate_window", Message: "must be positive"}
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Window is the rate-limit window as a time.Duration.
func (c *Config) Window() time.Duration {
	return time.Duration(c.RateWindow)
}
