package core

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration     = errors.New("configuration error")
	ErrInvalidTransition = errors.New("invalid domain status transition")
	ErrTenantNotFound    = errors.New("tenant not found")
	ErrNoDomainRequest   = errors.New("tenant has no custom domain request")
	ErrSessionNotFound   = errors.New("monitoring session not found")
	ErrHostnameInUse     = errors.New("hostname is already claimed by another tenant")
)

// ConfigurationError is returned at request-creation time when the request
// or the platform target can never verify, no matter how often it is retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

func configErr(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
