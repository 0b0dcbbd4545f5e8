package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrNoLocations   = errors.New("no locations configured")
	ErrUnknownSource = errors.New("unknown data source")
)

// ConfigError marks a missing credential or identifier. Terminal for the
// affected call; never retried.
type ConfigError struct{ Msg string }

func (e *ConfigError) Error() string { return e.Msg }

// ProviderError carries a remote API's own error text. Terminal.
type ProviderError struct {
	Source string
	Msg    string
}

func (e *ProviderError) Error() string { return e.Source + ": " + e.Msg }

func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
