package resource

import (
	"strconv"
	"time"

	"github.com/maasops/maas-bridge/pkg/cache"
)

// jsonMimeType is the only payload format currently negotiated.
const jsonMimeType = "application/json"

// Content is one item of a response envelope.
type Content struct {
	URI      string            `json:"uri"`
	Text     string            `json:"text"`
	MimeType string            `json:"mimeType"`
	Headers  map[string]string `json:"headers"`
}

// Envelope is the normalized response returned by every resolution.
type Envelope struct {
	Contents []Content `json:"contents"`
}

// newEnvelope builds the single-content response for a payload entry. The
// Age header is only present on cache hits.
func newEnvelope(uri string, entry *cache.Entry, opts cache.Options, ttl time.Duration, hit bool) *Envelope {
	headers := map[string]string{
		"Content-Type":  jsonMimeType,
		"Cache-Control": opts.CacheControl(ttl),
		"ETag":          entry.ETag,
	}
	if hit {
		headers["Age"] = strconv.Itoa(int(entry.Age().Seconds()))
	}

	return &Envelope{
		Contents: []Content{{
			URI:      uri,
			Text:     string(entry.Payload),
			MimeType: jsonMimeType,
			Headers:  headers,
		}},
	}
}
