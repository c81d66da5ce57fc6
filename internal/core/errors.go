// Package core defines the fundamental types and errors for focuscoach.
package core

import (
	"errors"
	"fmt"
)

// Core errors that can occur across the system
var (
	// User errors
	ErrUnknownUser  = errors.New("unknown user")
	ErrInvalidTrait = errors.New("invalid trait value")

	// Configuration errors
	ErrConfiguration = errors.New("configuration error")

	// Storage errors
	ErrMigrationFailed = errors.New("migration failed")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)

// CatalogConfigurationError reports a catalog that cannot be used to make
// decisions, such as one without a default template.
type CatalogConfigurationError struct {
	Reason     string
	TemplateID TemplateID
}

func (e *CatalogConfigurationError) Error() string {
	if e.TemplateID != "" {
		return fmt.Sprintf("catalog configuration: template %q: %s", e.TemplateID, e.Reason)
	}
	return "catalog configuration: " + e.Reason
}

// Unwrap lets callers match with errors.Is(err, ErrConfiguration).
func (e *CatalogConfigurationError) Unwrap() error {
	return ErrConfiguration
}
