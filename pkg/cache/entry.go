package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Entry is one cached, already-validated backend payload.
type Entry struct {
	// Payload is the serialized resource payload.
	Payload []byte `json:"payload"`

	// ETag is the entity tag derived from the payload.
	ETag string `json:"etag"`

	// StoredAt is when the entry was written.
	StoredAt time.Time `json:"stored_at"`

	// TTL is how long the entry stays fresh after StoredAt.
	TTL time.Duration `json:"ttl"`

	// Directives are the cache-control flags active when the entry was
	// written.
	Directives Directives `json:"directives"`
}

// NewEntry builds an entry for a payload, stamping it with the current
// time and a content-derived ETag.
func NewEntry(payload []byte, ttl time.Duration, directives Directives) *Entry {
	return &Entry{
		Payload:    payload,
		ETag:       ETagFor(payload),
		StoredAt:   time.Now(),
		TTL:        ttl,
		Directives: directives,
	}
}

// Expired returns true if the entry has outlived its TTL.
func (e *Entry) Expired() bool {
	return time.Since(e.StoredAt) > e.TTL
}

// Age returns how long ago the entry was stored. Never negative.
func (e *Entry) Age() time.Duration {
	age := time.Since(e.StoredAt)
	if age < 0 {
		return 0
	}
	return age
}

// Remaining returns the time until expiry, or 0 if already expired.
func (e *Entry) Remaining() time.Duration {
	rem := e.TTL - time.Since(e.StoredAt)
	if rem < 0 {
		return 0
	}
	return rem
}

// ETagFor derives a strong entity tag from payload content.
func ETagFor(payload []byte) string {
	sum := sha256.Sum256(payload)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}
