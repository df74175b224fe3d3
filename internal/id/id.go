// Package id generates entity identifiers.
package id

import "github.com/google/uuid"

// New returns a fresh random (v4) identifier in canonical lowercase form.
func New() string {
	return uuid.NewString()
}
