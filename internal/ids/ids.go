// Package ids generates record identifiers.
package ids

import "github.com/google/uuid"

// New returns a time-ordered UUIDv7 string.
// Entropy failure is unrecoverable, so it panics like uuid.Must.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic("ids: failed to generate UUID: " + err.Error())
	}
	return id.String()
}
