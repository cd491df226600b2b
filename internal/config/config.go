// Package config resolves the settings document, the .env file and the
// credential sources into one Config.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/manash/pollgen/internal/keys"
	"github.com/manash/pollgen/internal/security"
	"github.com/manash/pollgen/pkg/models"
)

const (
	DefaultPath    = "config/config.json"
	DefaultEnvFile = "config/.env"
)

type Config struct {
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Model           string `json:"model"`
	MaxRetries      int    `json:"max_retries"`
	Timeout         int    `json:"timeout"`
	OutputDir       string `json:"output_dir"`
	ImageFormat     string `json:"image_format"`
	EnableCache     bool   `json:"enable_cache"`
	BatchSize       int    `json:"batch_size"`
	EditModel       string `json:"model_edicion"`
	AddLogo         bool   `json:"add_logo"`
	CacheDir        string `json:"cache_dir"`
	CacheMaxAgeDays int    `json:"cache_max_age_days"`
	TemplatesFile   string `json:"templates_file"`
	LogFile         string `json:"log_file"`
	BaseURL         string `json:"base_url"`
	TranslateURL    string `json:"translate_url"`
	GoFileAPIURL    string `json:"gofile_api_url"`

	// Secrets as written in the document. Resolved values come from Secret.
	APIToken       string `json:"api_token,omitempty"`
	GoFileAPIToken string `json:"gofile_api_token,omitempty"`
	GoFileFolder   string `json:"gofile_folder_id,omitempty"`

	secrets map[string]Secret
}

// Secret is a resolved credential and where it came from.
type Secret struct {
	Value  string
	Source string
}

var documentKeys = map[string]string{
	keys.Pollinations: "api_token",
	keys.GoFileToken:  "gofile_api_token",
	keys.GoFileFolder: "gofile_folder_id",
}

func Default() *Config {
	return &Config{
		Width:           1024,
		Height:          768,
		Model:           "flux",
		MaxRetries:      3,
		Timeout:         120,
		OutputDir:       "./generated_images",
		ImageFormat:     "PNG",
		EnableCache:     true,
		BatchSize:       5,
		EditModel:       "kontext",
		AddLogo:         true,
		CacheDir:        "./cache",
		CacheMaxAgeDays: 30,
		TemplatesFile:   "config/prompt_templates.json",
		LogFile:         "logs/pollgen.log",
		BaseURL:         "https://image.pollinations.ai",
		TranslateURL:    "https://api.mymemory.translated.net/get",
		GoFileAPIURL:    "https://api.gofile.io",
	}
}

type LoadOptions struct {
	EnvFile string
	GetEnv  func(string) string
	Keys    *keys.Store
	Logger  *zap.Logger
}

// Load builds a Config from defaults overlaid with the document at path.
// A missing or malformed document is logged and the defaults are kept.
// Each secret is taken from the first source that has it: the process
// environment, the .env file, the credential store, then the document.
func Load(path string, opts LoadOptions) *Config {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	getenv := opts.GetEnv
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("config file not found, using defaults", zap.String("path", path))
	case err != nil:
		logger.Error("failed to read config, using defaults", zap.String("path", path), zap.Error(err))
	default:
		overlay := *cfg
		if err := json.Unmarshal(data, &overlay); err != nil {
			logger.Error("failed to parse config, using defaults", zap.String("path", path), zap.Error(err))
		} else {
			*cfg = overlay
			logger.Info("config loaded", zap.String("path", path))
		}
	}

	dotenv := map[string]string{}
	if opts.EnvFile != "" {
		if m, err := godotenv.Read(opts.EnvFile); err != nil {
			logger.Warn("no .env file, credentials must come from the environment", zap.String("path", opts.EnvFile))
		} else {
			dotenv = m
			logger.Info("environment loaded", zap.String("path", opts.EnvFile))
		}
	}

	cfg.secrets = make(map[string]Secret, len(keys.EnvVars))
	for _, name := range keys.Names() {
		cfg.secrets[name] = cfg.resolveSecret(name, getenv, dotenv, opts.Keys, logger)
	}
	return cfg
}

func (c *Config) resolveSecret(name string, getenv func(string) string, dotenv map[string]string, store *keys.Store, logger *zap.Logger) Secret {
	envVar := keys.EnvVars[name]
	if v := getenv(envVar); v != "" {
		return Secret{Value: v, Source: "environment (" + envVar + ")"}
	}
	if v := dotenv[envVar]; v != "" {
		return Secret{Value: v, Source: ".env (" + envVar + ")"}
	}
	if store != nil {
		v, err := store.Get(name)
		if err != nil {
			logger.Warn("credential store unreadable", zap.String("path", store.Path()), zap.Error(err))
		} else if v != "" {
			return Secret{Value: v, Source: "credential store"}
		}
	}
	if v := c.documentSecret(name); v != "" {
		return Secret{Value: v, Source: "config file (" + documentKeys[name] + ")"}
	}
	return Secret{}
}

func (c *Config) documentSecret(name string) string {
	switch name {
	case keys.Pollinations:
		return c.APIToken
	case keys.GoFileToken:
		return c.GoFileAPIToken
	case keys.GoFileFolder:
		return c.GoFileFolder
	}
	return ""
}

// Secret returns the resolved credential for a keys name.
func (c *Config) Secret(name string) Secret {
	if s, ok := c.secrets[name]; ok {
		return s
	}
	if v := c.documentSecret(name); v != "" {
		return Secret{Value: v, Source: "config file (" + documentKeys[name] + ")"}
	}
	return Secret{}
}

func (c *Config) APIKey() string         { return c.Secret(keys.Pollinations).Value }
func (c *Config) GoFileToken() string    { return c.Secret(keys.GoFileToken).Value }
func (c *Config) GoFileFolderID() string { return c.Secret(keys.GoFileFolder).Value }

// LogCredentialStatus reports which credentials are present without
// revealing them.
func (c *Config) LogCredentialStatus(logger *zap.Logger) {
	if token := c.APIKey(); token != "" {
		logger.Info("pollinations token configured", zap.String("prefix", keys.Mask(token)))
	} else {
		logger.Info("pollinations token not configured")
	}

	if c.GoFileToken() != "" && c.GoFileFolderID() != "" {
		logger.Info("GoFile credentials configured for image editing")
	} else {
		logger.Warn("GoFile credentials not configured, image editing may fail")
	}
}

// Validate reports every invalid value.
func (c *Config) Validate() error {
	var errs []error
	for _, f := range []struct {
		key string
		v   int
	}{
		{"width", c.Width},
		{"height", c.Height},
		{"max_retries", c.MaxRetries},
		{"timeout", c.Timeout},
		{"batch_size", c.BatchSize},
		{"cache_max_age_days", c.CacheMaxAgeDays},
	} {
		if f.v <= 0 {
			errs = append(errs, errPositive(f.key, f.v))
		}
	}

	if c.Model == "" {
		errs = append(errs, &ConfigError{
			Code:    ErrCodeInvalidValue,
			Message: "model must not be empty",
			Action:  "Set model to a Pollinations model such as flux",
		})
	}
	if _, err := models.ParseEditModel(c.EditModel); err != nil {
		errs = append(errs, &ConfigError{
			Code:    ErrCodeInvalidValue,
			Message: fmt.Sprintf("invalid model_edicion: %v", err),
			Action:  "Set model_edicion to kontext, flux or flux-kontext",
		})
	}
	if _, err := models.ParseFormat(c.ImageFormat); err != nil {
		errs = append(errs, &ConfigError{
			Code:    ErrCodeInvalidValue,
			Message: err.Error(),
			Action:  "Set image_format to PNG, JPEG or WEBP",
		})
	}
	for _, u := range []struct{ key, v string }{
		{"base_url", c.BaseURL},
		{"translate_url", c.TranslateURL},
		{"gofile_api_url", c.GoFileAPIURL},
	} {
		if err := security.ValidateEndpointURL(u.v); err != nil {
			errs = append(errs, errInvalidURL(u.key, u.v, err))
		}
	}
	return errors.Join(errs...)
}

// Save writes the document form of c. Secrets resolved from other sources
// are not written.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Document returns the settings as the JSON document sees them.
func (c *Config) Document() (map[string]any, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Set assigns one document key from its string form. The value is parsed
// according to the key's current type and the result must validate.
func (c *Config) Set(key, value string) error {
	for name, docKey := range documentKeys {
		if docKey == key {
			return &ConfigError{
				Code:    ErrCodeSecretKey,
				Message: fmt.Sprintf("%s is a credential", key),
				Action:  fmt.Sprintf("Use 'pollgen keys set %s' or set %s", name, keys.EnvVars[name]),
			}
		}
	}

	doc, err := c.Document()
	if err != nil {
		return err
	}
	current, ok := doc[key]
	if !ok {
		return &ConfigError{
			Code:    ErrCodeUnknownKey,
			Message: fmt.Sprintf("unknown config key %q", key),
			Action:  "Run 'pollgen config show' to list the available keys",
		}
	}

	switch current.(type) {
	case float64:
		n, err := strconv.Atoi(value)
		if err != nil {
			return &ConfigError{Code: ErrCodeInvalidValue, Message: fmt.Sprintf("%s must be an integer, got %q", key, value)}
		}
		doc[key] = n
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return &ConfigError{Code: ErrCodeInvalidValue, Message: fmt.Sprintf("%s must be true or false, got %q", key, value)}
		}
		doc[key] = b
	default:
		doc[key] = value
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	next := *c
	if err := json.Unmarshal(data, &next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (c *Config) CacheMaxAge() time.Duration {
	return time.Duration(c.CacheMaxAgeDays) * 24 * time.Hour
}

func (c *Config) OutputFormat() (models.OutputFormat, error) {
	return models.ParseFormat(c.ImageFormat)
}

func (c *Config) PreferredEditModel() (models.EditModel, error) {
	return models.ParseEditModel(c.EditModel)
}

// Params is the default parameter set for generation requests. The seed is
// drawn per request.
func (c *Config) Params() models.Params {
	return models.Params{
		Width:  c.Width,
		Height: c.Height,
		Model:  c.Model,
		NoLogo: !c.AddLogo,
	}
}
