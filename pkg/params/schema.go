// Package params applies per-field schemas to raw string parameters
// extracted from a matched URI, producing typed values or a structured
// invalid_parameters failure.
package params

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/maasops/maas-bridge/pkg/failure"
)

// Type selects the coercion applied to a raw string value.
type Type string

const (
	// TypeString keeps the raw value as-is.
	TypeString Type = "string"

	// TypeInt coerces the raw value with strconv.Atoi.
	TypeInt Type = "int"

	// TypeBool coerces the raw value with strconv.ParseBool.
	TypeBool Type = "bool"
)

// Field declares one parameter: its name, target type, whether it must be
// present and non-empty, and an optional validator rule set (any tag
// expression accepted by go-playground/validator, e.g. "alphanum" or
// "oneof=ready deployed").
type Field struct {
	Name     string
	Type     Type
	Required bool
	Rules    string
}

// Schema is a compiled set of parameter fields.
type Schema struct {
	fields   []Field
	validate *validator.Validate
}

// Values holds validated, typed parameter values keyed by field name.
// Raw parameters not declared in the schema are carried through verbatim
// as strings so that list handlers can forward arbitrary filters.
type Values map[string]any

// NewSchema compiles a parameter schema.
func NewSchema(fields ...Field) *Schema {
	return &Schema{
		fields:   fields,
		validate: validator.New(),
	}
}

// Validate checks raw parameters against the schema and returns typed
// values. Coercion is part of validation, not a separate step. On any
// finding it returns a {400, invalid_parameters} failure carrying the
// structured issues; kind names the resource kind for diagnostics.
func (s *Schema) Validate(raw map[string]string, kind string) (Values, error) {
	values := make(Values, len(raw))
	var issues []failure.Issue

	declared := make(map[string]bool, len(s.fields))
	for _, f := range s.fields {
		declared[f.Name] = true

		rawVal, present := raw[f.Name]
		if !present || rawVal == "" {
			if f.Required {
				issues = append(issues, failure.Issue{
					Field:      f.Name,
					Constraint: "required",
					Message:    fmt.Sprintf("%s is required", f.Name),
				})
			}
			continue
		}

		val, issue := coerce(f, rawVal)
		if issue != nil {
			issues = append(issues, *issue)
			continue
		}

		if f.Rules != "" {
			if err := s.validate.Var(val, f.Rules); err != nil {
				if verrs, ok := err.(validator.ValidationErrors); ok {
					for _, fe := range verrs {
						issues = append(issues, failure.Issue{
							Field:      f.Name,
							Constraint: fe.Tag(),
							Message:    fmt.Sprintf("%s failed %q validation", f.Name, fe.Tag()),
						})
					}
					continue
				}
				issues = append(issues, failure.Issue{
					Field:      f.Name,
					Constraint: "rules",
					Message:    err.Error(),
				})
				continue
			}
		}

		values[f.Name] = val
	}

	// Undeclared parameters pass through untyped.
	for name, rawVal := range raw {
		if !declared[name] {
			values[name] = rawVal
		}
	}

	if len(issues) > 0 {
		f := failure.New(http.StatusBadRequest, failure.CodeInvalidParameters,
			"invalid parameters for %s", kind)
		f.Issues = issues
		return nil, f
	}

	return values, nil
}

// coerce converts a raw string to the field's target type.
func coerce(f Field, raw string) (any, *failure.Issue) {
	switch f.Type {
	case TypeInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, &failure.Issue{
				Field:      f.Name,
				Constraint: "int",
				Message:    fmt.Sprintf("%s must be an integer, got %q", f.Name, raw),
			}
		}
		return n, nil
	case TypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, &failure.Issue{
				Field:      f.Name,
				Constraint: "bool",
				Message:    fmt.Sprintf("%s must be a boolean, got %q", f.Name, raw),
			}
		}
		return b, nil
	default:
		return raw, nil
	}
}

// String returns the named value as a string, or empty when absent.
func (v Values) String(name string) string {
	if s, ok := v[name].(string); ok {
		return s
	}
	return ""
}

// Decode decodes validated values into a typed struct. Weak typing covers
// the remaining string-to-number conversions for pass-through filters.
// Struct fields bind by `param` tag.
func Decode(values Values, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "param",
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(values)); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}
