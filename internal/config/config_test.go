package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads so the host environment does not
// leak into the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"ENVIRONMENT", "LOG_LEVEL", "GEMINI_API_KEY", "GEMINI_MODEL", "EMBEDDING_MODEL",
		"DATABASE_URL", "REDIS_URL", "LOCAL_LLM_URL", "LOCAL_LLM_MODEL", "ALLOWED_ORIGINS",
		"PORT", "S3_BUCKET", "AWS_REGION", "IMAGE_DIR", "RATE_LIMIT", "RATE_WINDOW",
	} {
		if v, ok := os.LookupEnv(name); ok {
			require.NoError(t, os.Unsetenv(name))
			t.Cleanup(func() { os.Setenv(name, v) })
		}
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{
		"gemini_api_key": "key",
		"DATABASE_URL": "postgres://localhost/recipes",
		"rate_window": "30s",
		"allowed_origins": ["https://app.example.com"]
	}`)

	cfg, err := Load(path, filepath.Join(dir, ".env"))
	require.NoError(t, err)

	assert.Equal(t, "key", cfg.GeminiAPIKey)
	assert.Equal(t, "gemini-1.5-flash", cfg.GeminiModel)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Window())
	assert.Equal(t, []string{"https://app.example.com"}, cfg.AllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{"gemini_api_key": "file-key", "DATABASE_URL": "postgres://file"}`)
	envPath := writeFile(t, dir, ".env", "S3_BUCKET=dishes\nRATE_LIMIT=5\n")

	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("RATE_WINDOW", "2m")

	t.Cleanup(func() {
		os.Unsetenv("S3_BUCKET")
		os.Unsetenv("RATE_LIMIT")
	})

	cfg, err := Load(path, envPath)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.GeminiAPIKey)
	assert.Equal(t, "postgres://file", cfg.DatabaseURL)
	assert.Equal(t, "dishes", cfg.S3Bucket)
	assert.Equal(t, 5, cfg.RateLimit)
	assert.Equal(t, 2*time.Minute, cfg.Window())
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.True(t, cfg.IsProduction())
}

func TestLoadWithoutFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("DATABASE_URL", "postgres://env")

	cfg, err := Load(filepath.Join(dir, "missing.json"), filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "images", cfg.ImageDir)
}

func TestLoadMalformed(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := Load(writeFile(t, dir, "bad.json", `{"gemini_api_key": `), "")
	assert.ErrorContains(t, err, "failed to unmarshal")

	_, err = Load(writeFile(t, dir, "window.json", `{"rate_window": "soon"}`), "")
	assert.Error(t, err)

	t.Setenv("RATE_LIMIT", "many")
	_, err = Load(filepath.Join(dir, "missing.json"), "")
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "RATE_LIMIT", verr.Field)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Defaults()
		cfg.GeminiAPIKey = "key"
		cfg.DatabaseURL = "postgres://x"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing api key", mutate: func(c *Config) { c.GeminiAPIKey = "" }, field: "gemini_api_key"},
		{name: "missing database", mutate: func(c *Config) { c.DatabaseURL = "" }, field: "DATABASE_URL"},
		{name: "port not a number", mutate: func(c *Config) { c.Port = "http" }, field: "port"},
		{name: "port out of range", mutate: func(c *Config) { c.Port = "70000" }, field: "port"},
		{name: "no origins", mutate: func(c *Config) { c.AllowedOrigins = nil }, field: "allowed_origins"},
		{name: "zero rate limit", mutate: func(c *Config) { c.RateLimit = 0 }, field: "rate_limit"},
		{name: "zero window", mutate: func(c *Config) { c.RateWindow = 0 }, field: "rate_window"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}
