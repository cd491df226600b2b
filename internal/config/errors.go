package config

import "fmt"

// ConfigError is an invalid configuration value with an instruction for
// fixing it.
type ConfigError struct {
	Code    string
	Message string
	Action  string
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

const (
	ErrCodeInvalidValue = "INVALID_VALUE"
	ErrCodeInvalidURL   = "INVALID_URL"
	ErrCodeUnknownKey   = "UNKNOWN_KEY"
	ErrCodeSecretKey    = "SECRET_KEY"
)

func errPositive(key string, got int) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("%s must be positive, got %d", key, got),
		Action:  fmt.Sprintf("Set %s to a value greater than zero", key),
	}
}

func errInvalidURL(key, raw string, err error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidURL,
		Message: fmt.Sprintf("invalid %s %q: %v", key, raw, err),
		Action:  fmt.Sprintf("Set %s to an http(s) URL such as https://example.com", key),
	}
}
