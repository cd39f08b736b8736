package common

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewULID returns a lexicographically sortable unique id.
func NewULID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewRequestID returns a correlation id for error reporting, prefixed so it
// is recognizable in logs.
func NewRequestID() string {
	id, err := NewULID()
	if err != nil {
		return "req_unknown"
	}
	return "req_" + id
}
