// Package uuid issues the string primary keys stored on every row.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New returns a time-ordered UUIDv7 string, so ids of sync logs and ticker rows
// sort in creation order. It falls back to a random v4 id if the v7 clock
// sequence cannot be read.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		return googleuuid.NewString()
	}
	return id.String()
}

// IsValid reports whether s is a canonical UUID of any version.
func IsValid(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := googleuuid.Parse(s)
	return err == nil
}
