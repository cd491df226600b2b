package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/manash/pollgen/internal/keys"
	"github.com/manash/pollgen/pkg/models"
)

func noEnv(string) string { return "" }

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1024, cfg.Width)
	assert.Equal(t, 768, cfg.Height)
	assert.Equal(t, "flux", cfg.Model)
	assert.Equal(t, "kontext", cfg.EditModel)
	assert.Equal(t, 120*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 30*24*time.Hour, cfg.CacheMaxAge())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overlay(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{"width": 512, "image_format": "webp", "add_logo": false, "model_edicion": "flux"}`)

	cfg := Load(path, LoadOptions{GetEnv: noEnv})

	assert.Equal(t, 512, cfg.Width)
	assert.Equal(t, 768, cfg.Height, "unset keys keep defaults")
	format, err := cfg.OutputFormat()
	require.NoError(t, err)
	assert.Equal(t, models.FormatWebP, format)
	edit, err := cfg.PreferredEditModel()
	require.NoError(t, err)
	assert.Equal(t, models.EditFlux, edit)
	assert.True(t, cfg.Params().NoLogo)
}

func TestLoad_MissingAndMalformed(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(core)

	cfg := Load(filepath.Join(t.TempDir(), "missing.json"), LoadOptions{GetEnv: noEnv, Logger: logger})
	assert.Equal(t, Default().Width, cfg.Width)
	assert.Equal(t, 1, logs.FilterMessage("config file not found, using defaults").Len())

	path := writeFile(t, t.TempDir(), "config.json", `{"width": 512,`)
	cfg = Load(path, LoadOptions{GetEnv: noEnv, Logger: logger})
	assert.Equal(t, 1024, cfg.Width)
	assert.Equal(t, 1, logs.FilterMessage("failed to parse config, using defaults").Len())
}

func TestLoad_SecretPriority(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json",
		`{"api_token": "doc-token", "gofile_api_token": "doc-gofile", "gofile_folder_id": "doc-folder"}`)
	envFile := writeFile(t, dir, ".env", "GOFILE_API_TOKEN=dotenv-gofile\nGOFILE_FOLDER_ID=dotenv-folder\n")
	store := keys.NewStoreAt(filepath.Join(dir, "keys"))
	require.NoError(t, store.Set(keys.GoFileFolder, "store-folder"))

	cfg := Load(path, LoadOptions{
		EnvFile: envFile,
		GetEnv:  envOf(map[string]string{"GOFILE_FOLDER_ID": "env-folder"}),
		Keys:    store,
	})

	assert.Equal(t, "doc-token", cfg.APIKey())
	assert.Equal(t, "dotenv-gofile", cfg.GoFileToken())
	assert.Equal(t, "env-folder", cfg.GoFileFolderID())
	assert.Equal(t, "environment (GOFILE_FOLDER_ID)", cfg.Secret(keys.GoFileFolder).Source)
	assert.Equal(t, "config file (api_token)", cfg.Secret(keys.Pollinations).Source)
}

func TestLoad_CredentialStore(t *testing.T) {
	dir := t.TempDir()
	store := keys.NewStoreAt(dir)
	require.NoError(t, store.Set(keys.Pollinations, "stored-token"))

	cfg := Load(filepath.Join(dir, "none.json"), LoadOptions{GetEnv: noEnv, Keys: store})
	assert.Equal(t, "stored-token", cfg.APIKey())
	assert.Equal(t, "credential store", cfg.Secret(keys.Pollinations).Source)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   string
	}{
		{"zero width", func(c *Config) { c.Width = 0 }, ErrCodeInvalidValue},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, ErrCodeInvalidValue},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrCodeInvalidValue},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, ErrCodeInvalidValue},
		{"unknown edit model", func(c *Config) { c.EditModel = "dalle" }, ErrCodeInvalidValue},
		{"bad format", func(c *Config) { c.ImageFormat = "bmp" }, ErrCodeInvalidValue},
		{"bad base url", func(c *Config) { c.BaseURL = "ftp://example.com" }, ErrCodeInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "error = %v", err)
			assert.Equal(t, tt.code, cfgErr.Code)
			assert.NotEmpty(t, cfgErr.Action)
		})
	}
}

func TestSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("width", "640"))
	assert.Equal(t, 640, cfg.Width)

	require.NoError(t, cfg.Set("enable_cache", "false"))
	assert.False(t, cfg.EnableCache)

	require.NoError(t, cfg.Set("model", "turbo"))
	assert.Equal(t, "turbo", cfg.Model)

	var cfgErr *ConfigError
	err := cfg.Set("width", "wide")
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrCodeInvalidValue, cfgErr.Code)

	err = cfg.Set("height", "0")
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 768, cfg.Height, "invalid value is not applied")

	err = cfg.Set("colour", "red")
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrCodeUnknownKey, cfgErr.Code)

	err = cfg.Set("gofile_api_token", "x")
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrCodeSecretKey, cfgErr.Code)
}

func TestSave_DoesNotWriteEnvSecrets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := Load(path, LoadOptions{GetEnv: envOf(map[string]string{"POLLINATIONS_API_KEY": "env-secret"})})
	require.NoError(t, cfg.Set("width", "800"))
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "env-secret")

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, float64(800), doc["width"])
	assert.Equal(t, "kontext", doc["model_edicion"])

	reloaded := Load(path, LoadOptions{GetEnv: noEnv})
	assert.Equal(t, 800, reloaded.Width)
}

func TestLogCredentialStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	cfg := Load(filepath.Join(t.TempDir(), "none.json"), LoadOptions{GetEnv: envOf(map[string]string{
		"POLLINATIONS_API_KEY": "abcdef123456",
	})})

	cfg.LogCredentialStatus(zap.New(core))

	tokenLogs := logs.FilterMessage("pollinations token configured").All()
	require.Len(t, tokenLogs, 1)
	assert.Equal(t, "abcdef...", tokenLogs[0].ContextMap()["prefix"])
	assert.Equal(t, 1, logs.FilterMessage("GoFile credentials not configured, image editing may fail").Len())
}

func TestLogCredentialStatus_MissingTokenIsInfo(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := Load(filepath.Join(t.TempDir(), "none.json"), LoadOptions{GetEnv: noEnv})

	cfg.LogCredentialStatus(zap.New(core))

	missing := logs.FilterMessage("pollinations token not configured").All()
	require.Len(t, missing, 1)
	assert.Equal(t, zapcore.InfoLevel, missing[0].Level)
}

func TestLoad_DocumentFolderSecret(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.json", `{"gofile_folder_id": "doc-folder"}`)

	cfg := Load(path, LoadOptions{GetEnv: noEnv})

	assert.Equal(t, "doc-folder", cfg.GoFileFolder)
	assert.Equal(t, "doc-folder", cfg.GoFileFolderID())
	assert.Equal(t, "config file (gofile_folder_id)", cfg.Secret(keys.GoFileFolder).Source)

	doc, err := cfg.Document()
	require.NoError(t, err)
	assert.Equal(t, "doc-folder", doc["gofile_folder_id"])
}
