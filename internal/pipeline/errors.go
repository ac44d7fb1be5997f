// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is the sentinel error wrapped by ConfigurationError.
	ErrConfiguration = errors.New("invalid launcher configuration")

	// ErrCredentialMissing is returned when a private source has no token.
	ErrCredentialMissing = errors.New("access token required")

	// ErrTreeNotFound is returned when the extracted archive holds no
	// recognizable working tree.
	ErrTreeNotFound = errors.New("working tree not found in archive")
)

// ConfigurationError reports a setting that prevents the run from starting.
// It is raised before any filesystem or network work.
type ConfigurationError struct {
	Field string
	Err   error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Field, e.Err)
}

// Unwrap exposes both the ErrConfiguration sentinel and the underlying cause.
func (e *ConfigurationError) Unwrap() []error { return []error{ErrConfiguration, e.Err} }
