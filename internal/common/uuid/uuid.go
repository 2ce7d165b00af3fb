// Package uuid wraps github.com/google/uuid and issues time-ordered UUIDv7
// values. Session and request identifiers are minted here so their creation
// time can be recovered from the identifier alone.
package uuid

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// UUID is an alias for github.com/google/uuid.UUID.
type UUID = uuid.UUID

// Nil is the zero UUID value.
var Nil = uuid.Nil

// New returns a new UUIDv7. Panics if the random source fails.
func New() UUID {
	id, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return id
}

// NewString returns the canonical string form of a fresh UUIDv7.
func NewString() string {
	return New().String()
}

// Parse parses a UUID string.
func Parse(s string) (UUID, error) {
	return uuid.Parse(s)
}

// IsUUIDv7 reports whether id is a version 7 UUID.
func IsUUIDv7(id UUID) bool {
	return id.Version() == uuid.Version(7)
}

// Timestamp extracts the millisecond timestamp held in the top 48 bits of a
// UUIDv7.
func Timestamp(u UUID) time.Time {
	ms := binary.BigEndian.Uint64(u[0:8]) >> 16
	return time.UnixMilli(int64(ms))
}

// TimestampOf parses s and returns its embedded timestamp. The zero time is
// returned for strings that are not UUIDv7.
func TimestampOf(s string) time.Time {
	id, err := uuid.Parse(s)
	if err != nil || !IsUUIDv7(id) {
		return time.Time{}
	}
	return Timestamp(id)
}
