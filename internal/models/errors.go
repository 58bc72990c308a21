package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

var (
	// ErrURLRequired indicates a channel without a playback source.
	ErrURLRequired = errors.New("url is required")

	// ErrChannelNotFound indicates a lookup for an unknown channel id.
	ErrChannelNotFound = errors.New("channel not found")
)
