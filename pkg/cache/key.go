package cache

import (
	"fmt"
	"sort"
	"strings"
)

// Key identifies one cached payload. Two logically identical requests
// (same kind, same path parameters, same relevant query parameters, same
// cache option fingerprint) produce the same key string; changing any
// relevant parameter changes it.
type Key struct {
	// Kind is the resource kind label (e.g. "machine", "machines").
	Kind string

	// URI is the canonical matched URI without its query string.
	URI string

	// ID is the extracted resource id for detail kinds, empty for lists.
	// It is encoded as a dedicated key segment so that id-scoped
	// invalidation can recognize it.
	ID string

	// Params are the validated parameters that participate in key
	// derivation.
	Params map[string]string

	// Fingerprint distinguishes entries written under different cache
	// options.
	Fingerprint string
}

// keyEscaper makes component values safe to embed between the key's
// separators. '%' is escaped first so the encoding stays reversible.
var keyEscaper = strings.NewReplacer("%", "%25", ":", "%3A", "=", "%3D")

// escapeComponent escapes the separator characters inside a component
// value, so ':' and '=' in a key string only ever delimit segments.
func escapeComponent(v string) string {
	return keyEscaper.Replace(v)
}

// String generates the deterministic key string.
// Format: maas:<kind>:<uri>:id=<id>:param1=val1:...:opt=<fingerprint>
// The uri, id, and param components are escaped; an id containing
// separator characters cannot masquerade as another segment.
func (k Key) String() string {
	parts := []string{"maas", k.Kind, escapeComponent(strings.Trim(k.URI, "/"))}

	if k.ID != "" {
		parts = append(parts, "id="+escapeComponent(k.ID))
	}

	if len(k.Params) > 0 {
		names := make([]string, 0, len(k.Params))
		for name := range k.Params {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", escapeComponent(name), escapeComponent(k.Params[name])))
		}
	}

	if k.Fingerprint != "" {
		parts = append(parts, "opt="+k.Fingerprint)
	}

	return strings.Join(parts, ":")
}

// kindPrefix is the key prefix shared by all entries of a kind.
func kindPrefix(kind string) string {
	return "maas:" + kind + ":"
}

// encodesID reports whether a key string carries the given resource id.
// Components are escaped, so the id segment, when present, is exactly the
// fourth colon-separated field.
func encodesID(key, id string) bool {
	parts := strings.SplitN(key, ":", 5)
	return len(parts) > 3 && parts[3] == "id="+escapeComponent(id)
}
