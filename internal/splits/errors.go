package splits

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every *ConfigurationError via errors.Is.
	ErrConfiguration = errors.New("splits: invalid payment configuration")
	// ErrMissingConfiguration is returned when no payment configuration is supplied.
	ErrMissingConfiguration = errors.New("splits: payment configuration missing")
)

// ConfigurationError reports a merchant payment configuration that cannot be settled.
type ConfigurationError struct {
	Model  SplitModel
	Sum    float64
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("splits: %s configuration: %s: %s", e.Model.Tag(), e.Field, e.Reason)
	}
	return fmt.Sprintf("splits: %s configuration: %s (sum %.4f)", e.Model.Tag(), e.Reason, e.Sum)
}

// Is allows errors.Is(err, ErrConfiguration).
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
