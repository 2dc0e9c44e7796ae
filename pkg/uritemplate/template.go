// Package uritemplate compiles resource URI templates into anchored
// whole-path matchers and extracts named path parameters from concrete URIs.
//
// A template is a scheme followed by literal and placeholder segments:
//
//	maas://machine/{system_id}/details
//	maas://machine/{system_id}/power/{action:status|parameters}
//	maas://machines/{pool?}/list
//
// Placeholder forms:
//
//	{name}       required, matches one or more non-separator characters
//	{name?}      optional, may match zero characters; when the segment is
//	             omitted entirely its separator is omitted with it
//	{name:a|b}   matches exactly one of the listed literal alternatives
//
// Literal segments and enum alternatives match case sensitively. Extracted
// values are returned verbatim. The query string never participates in path
// matching; it is parsed separately into a flat name/value map.
package uritemplate

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// placeholderName restricts parameter names to identifier characters.
var placeholderName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Template is a compiled URI template.
type Template struct {
	raw      string
	re       *regexp.Regexp
	names    []string
	optional map[string]bool
}

// Match is the result of matching a concrete URI against a template.
type Match struct {
	// Params maps placeholder names to extracted values. An optional
	// placeholder whose segment was omitted is present with an empty
	// value.
	Params map[string]string

	// Query holds the query parameters present on the URI. Repeated keys
	// collapse to the last value.
	Query map[string]string
}

// Compile parses a template and builds its matcher.
func Compile(template string) (*Template, error) {
	scheme, rest, ok := strings.Cut(template, "://")
	if !ok || scheme == "" {
		return nil, fmt.Errorf("template %q: missing scheme", template)
	}
	if rest == "" {
		return nil, fmt.Errorf("template %q: empty path", template)
	}

	t := &Template{
		raw:      template,
		optional: make(map[string]bool),
	}

	var pattern strings.Builder
	pattern.WriteString("^")
	pattern.WriteString(regexp.QuoteMeta(scheme + "://"))

	seen := make(map[string]bool)
	for i, seg := range strings.Split(rest, "/") {
		sep := ""
		if i > 0 {
			sep = "/"
		}

		if !strings.HasPrefix(seg, "{") {
			if strings.ContainsAny(seg, "{}") {
				return nil, fmt.Errorf("template %q: malformed segment %q", template, seg)
			}
			pattern.WriteString(sep + regexp.QuoteMeta(seg))
			continue
		}

		if !strings.HasSuffix(seg, "}") {
			return nil, fmt.Errorf("template %q: unterminated placeholder %q", template, seg)
		}
		body := seg[1 : len(seg)-1]

		name := body
		optional := false
		var enum []string

		switch {
		case strings.HasSuffix(body, "?"):
			name = body[:len(body)-1]
			optional = true
		case strings.Contains(body, ":"):
			var spec string
			name, spec, _ = strings.Cut(body, ":")
			for _, alt := range strings.Split(spec, "|") {
				if alt == "" {
					return nil, fmt.Errorf("template %q: empty enum alternative in %q", template, seg)
				}
				enum = append(enum, regexp.QuoteMeta(alt))
			}
		}

		if !placeholderName.MatchString(name) {
			return nil, fmt.Errorf("template %q: invalid placeholder name %q", template, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("template %q: duplicate placeholder %q", template, name)
		}
		seen[name] = true
		t.names = append(t.names, name)

		switch {
		case optional:
			t.optional[name] = true
			// The separator folds into the optional group so that an
			// omitted segment also omits its slash.
			pattern.WriteString(fmt.Sprintf("(?:%s(?P<%s>[^/]*))?", sep, name))
		case len(enum) > 0:
			pattern.WriteString(fmt.Sprintf("%s(?P<%s>%s)", sep, name, strings.Join(enum, "|")))
		default:
			pattern.WriteString(fmt.Sprintf("%s(?P<%s>[^/]+)", sep, name))
		}
	}
	pattern.WriteString("$")

	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", template, err)
	}
	t.re = re
	return t, nil
}

// MustCompile is Compile that panics on error, for template literals.
func MustCompile(template string) *Template {
	t, err := Compile(template)
	if err != nil {
		panic(err)
	}
	return t
}

// Raw returns the template source text.
func (t *Template) Raw() string {
	return t.raw
}

// Names returns the placeholder names in template order.
func (t *Template) Names() []string {
	return append([]string(nil), t.names...)
}

// Match matches a concrete URI against the template. The query string is
// stripped before path matching and returned as a flat map. A URI with
// extra trailing segments, or missing a required segment, does not match.
func (t *Template) Match(uri string) (*Match, bool) {
	path, rawQuery, _ := strings.Cut(uri, "?")

	m := t.re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}

	result := &Match{
		Params: make(map[string]string, len(t.names)),
		Query:  make(map[string]string),
	}
	for i, name := range t.re.SubexpNames() {
		if name == "" {
			continue
		}
		result.Params[name] = m[i]
	}

	if rawQuery != "" {
		values, err := url.ParseQuery(rawQuery)
		if err == nil {
			for key, vals := range values {
				if len(vals) == 0 {
					continue
				}
				// Last value wins for repeated keys.
				result.Query[key] = vals[len(vals)-1]
			}
		}
	}

	return result, true
}
