// Package kinds declares the concrete resource kinds the bridge serves.
// Each kind is a value built from resource.Definition: a template, a
// parameter schema, a payload shape, and a backend path builder. There are
// no per-kind handler types.
package kinds

import (
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/maasops/maas-bridge/pkg/cache"
	"github.com/maasops/maas-bridge/pkg/params"
	"github.com/maasops/maas-bridge/pkg/resource"
	"github.com/maasops/maas-bridge/pkg/uritemplate"
)

// systemIDRules constrains MAAS system ids (short lowercase tokens).
const systemIDRules = "alphanum,max=12"

// subnetRef is the typed view of the subnet path parameters.
type subnetRef struct {
	SubnetID int `param:"subnet_id"`
}

// definitions returns every resource kind definition in registration
// order. Detail kinds precede their list kinds so the more specific
// template wins dispatch.
func definitions() []resource.Definition {
	return []resource.Definition{
		{
			Kind:     "machine",
			Template: uritemplate.MustCompile("maas://machine/{system_id}/details"),
			Params: params.NewSchema(
				params.Field{Name: "system_id", Type: params.TypeString, Required: true, Rules: systemIDRules},
			),
			NewPayload: func() any { return &Machine{} },
			BackendPath: func(v params.Values) (string, url.Values, error) {
				return fmt.Sprintf("machines/%s/", v.String("system_id")), nil, nil
			},
			ResourceID: func(v params.Values) string { return v.String("system_id") },
		},
		{
			// Power status and power parameters share one template; the
			// payload shapes differ per action, so shape validation is
			// left to the power consumers.
			Kind:     "machine",
			Template: uritemplate.MustCompile("maas://machine/{system_id}/power/{action:status|parameters}"),
			Params: params.NewSchema(
				params.Field{Name: "system_id", Type: params.TypeString, Required: true, Rules: systemIDRules},
				params.Field{Name: "action", Type: params.TypeString, Required: true, Rules: "oneof=status parameters"},
			),
			BackendPath: func(v params.Values) (string, url.Values, error) {
				op := "query_power_state"
				if v.String("action") == "parameters" {
					op = "power_parameters"
				}
				return fmt.Sprintf("machines/%s/", v.String("system_id")),
					url.Values{"op": []string{op}}, nil
			},
			ResourceID: func(v params.Values) string { return v.String("system_id") },
		},
		{
			Kind:     "machines",
			Template: uritemplate.MustCompile("maas://machines/list"),
			Params: params.NewSchema(
				params.Field{Name: "hostname", Type: params.TypeString},
				params.Field{Name: "zone", Type: params.TypeString},
				params.Field{Name: "pool", Type: params.TypeString},
				params.Field{Name: "tags", Type: params.TypeString},
			),
			NewPayload: func() any { return &[]Machine{} },
			BackendPath: func(v params.Values) (string, url.Values, error) {
				// Undeclared parameters pass through as filters too; the
				// backend decides which it honors.
				return "machines/", filterQuery(v), nil
			},
			List: true,
		},
		{
			Kind:     "device",
			Template: uritemplate.MustCompile("maas://device/{system_id}/details"),
			Params: params.NewSchema(
				params.Field{Name: "system_id", Type: params.TypeString, Required: true, Rules: systemIDRules},
			),
			NewPayload: func() any { return &Device{} },
			BackendPath: func(v params.Values) (string, url.Values, error) {
				return fmt.Sprintf("devices/%s/", v.String("system_id")), nil, nil
			},
			ResourceID: func(v params.Values) string { return v.String("system_id") },
		},
		{
			Kind:     "devices",
			Template: uritemplate.MustCompile("maas://devices/list"),
			Params: params.NewSchema(
				params.Field{Name: "hostname", Type: params.TypeString},
			),
			NewPayload: func() any { return &[]Device{} },
			BackendPath: func(v params.Values) (string, url.Values, error) {
				return "devices/", filterQuery(v), nil
			},
			List: true,
		},
		{
			Kind:     "subnet",
			Template: uritemplate.MustCompile("maas://subnet/{subnet_id}/details"),
			Params: params.NewSchema(
				params.Field{Name: "subnet_id", Type: params.TypeInt, Required: true, Rules: "gt=0"},
			),
			NewPayload: func() any { return &Subnet{} },
			BackendPath: func(v params.Values) (string, url.Values, error) {
				var ref subnetRef
				if err := params.Decode(v, &ref); err != nil {
					return "", nil, err
				}
				return fmt.Sprintf("subnets/%d/", ref.SubnetID), nil, nil
			},
			ResourceID: func(v params.Values) string { return fmt.Sprintf("%v", v["subnet_id"]) },
		},
		{
			Kind:       "subnets",
			Template:   uritemplate.MustCompile("maas://subnets/list"),
			NewPayload: func() any { return &[]Subnet{} },
			BackendPath: func(v params.Values) (string, url.Values, error) {
				return "subnets/", filterQuery(v), nil
			},
			List: true,
		},
		{
			Kind:       "zones",
			Template:   uritemplate.MustCompile("maas://zones/list"),
			NewPayload: func() any { return &[]Zone{} },
			BackendPath: func(v params.Values) (string, url.Values, error) {
				return "zones/", filterQuery(v), nil
			},
			List: true,
		},
		{
			Kind:       "domains",
			Template:   uritemplate.MustCompile("maas://domains/list"),
			NewPayload: func() any { return &[]Domain{} },
			BackendPath: func(v params.Values) (string, url.Values, error) {
				return "domains/", filterQuery(v), nil
			},
			List: true,
		},
		{
			Kind:     "tag",
			Template: uritemplate.MustCompile("maas://tag/{tag_name}/machines"),
			Params: params.NewSchema(
				params.Field{Name: "tag_name", Type: params.TypeString, Required: true, Rules: "max=64"},
			),
			NewPayload: func() any { return &[]Machine{} },
			BackendPath: func(v params.Values) (string, url.Values, error) {
				return fmt.Sprintf("tags/%s/", v.String("tag_name")),
					url.Values{"op": []string{"machines"}}, nil
			},
			ResourceID: func(v params.Values) string { return v.String("tag_name") },
		},
		{
			Kind:       "tags",
			Template:   uritemplate.MustCompile("maas://tags/list"),
			NewPayload: func() any { return &[]Tag{} },
			BackendPath: func(v params.Values) (string, url.Values, error) {
				return "tags/", filterQuery(v), nil
			},
			List: true,
		},
	}
}

// All builds a handler for every resource kind, sharing one cache store,
// backend client, and audit sink.
func All(store cache.Store, backend resource.Backend, auditor resource.Auditor, logger zerolog.Logger) ([]*resource.Handler, error) {
	defs := definitions()
	handlers := make([]*resource.Handler, 0, len(defs))
	for _, def := range defs {
		h, err := resource.NewHandler(def, store, backend, auditor, logger)
		if err != nil {
			return nil, fmt.Errorf("build %s handler: %w", def.Kind, err)
		}
		handlers = append(handlers, h)
	}
	return handlers, nil
}

// RegisterAll builds every handler and binds it into the registry under
// its template's raw text.
func RegisterAll(reg resource.Registry, store cache.Store, backend resource.Backend, auditor resource.Auditor, logger zerolog.Logger) ([]*resource.Handler, error) {
	handlers, err := All(store, backend, auditor, logger)
	if err != nil {
		return nil, err
	}
	for _, h := range handlers {
		h.Register(h.Template().Raw(), reg)
	}
	return handlers, nil
}

// filterQuery renders every validated value as a backend filter.
func filterQuery(v params.Values) url.Values {
	if len(v) == 0 {
		return nil
	}
	query := make(url.Values, len(v))
	for name, val := range v {
		query.Set(name, fmt.Sprintf("%v", val))
	}
	return query
}
