// Package models defines the value types shared by the playlist, catalog and
// player packages.
package models

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID generates a new lexically sortable channel identifier.
func NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// ParseID validates an identifier produced by NewID.
func ParseID(s string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("invalid ULID: %w", err)
	}
	return id, nil
}

// Float64Ptr returns a pointer to a float64 value.
func Float64Ptr(f float64) *float64 {
	return &f
}

// BoolPtr returns a pointer to a bool value.
func BoolPtr(b bool) *bool {
	return &b
}

// StringPtr returns a pointer to a string value.
func StringPtr(s string) *string {
	return &s
}
