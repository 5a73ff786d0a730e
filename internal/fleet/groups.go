package fleet

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Group is one advisor-group entry: which strategy to run, which factory
// mints the specs, and which slice of the product universe it covers.
type Group struct {
	ID       string
	Advisor  string
	Factory  string
	Products string
	Config   map[string]any
}

// FieldError is a per-group configuration problem.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) String() string {
	return e.Field + " " + e.Message
}

// ConfigErrors collects field errors per group id. When any group has
// errors, ParseConfig and BuildSpecs return no groups or specs at all.
type ConfigErrors map[string][]FieldError

func (e ConfigErrors) Error() string {
	ids := make([]string, 0, len(e))
	for id := range e {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		msgs := make([]string, 0, len(e[id]))
		for _, fe := range e[id] {
			msgs = append(msgs, fe.String())
		}
		parts = append(parts, fmt.Sprintf("%s: %s", id, strings.Join(msgs, ", ")))
	}
	return "invalid advisor groups: " + strings.Join(parts, "; ")
}

type groupDoc struct {
	Advisor  string         `mapstructure:"advisor"`
	Factory  string         `mapstructure:"factory"`
	Products string         `mapstructure:"products"`
	Config   map[string]any `mapstructure:"config"`
}

// ParseConfig decodes the group_id -> entry mapping. Every entry requires
// advisor, factory, and products; config defaults to an empty map. Errors
// from all groups are returned together.
func ParseConfig(raw map[string]any) ([]Group, error) {
	if err := validateGroupsDoc(raw); err != nil {
		return nil, err
	}

	errs := make(ConfigErrors)
	groups := make([]Group, 0, len(raw))
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		var doc groupDoc
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &doc,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(raw[id]); err != nil {
			errs[id] = append(errs[id], FieldError{Field: "group", Message: err.Error()})
			continue
		}

		var groupErrs []FieldError
		if strings.TrimSpace(doc.Advisor) == "" {
			groupErrs = append(groupErrs, FieldError{Field: "advisor", Message: "must be present"})
		}
		if strings.TrimSpace(doc.Factory) == "" {
			groupErrs = append(groupErrs, FieldError{Field: "factory", Message: "must be present"})
		}
		if strings.TrimSpace(doc.Products) == "" {
			groupErrs = append(groupErrs, FieldError{Field: "products", Message: "must be present"})
		}
		if len(groupErrs) > 0 {
			errs[id] = groupErrs
			continue
		}

		cfg := doc.Config
		if cfg == nil {
			cfg = map[string]any{}
		}
		groups = append(groups, Group{
			ID:       id,
			Advisor:  doc.Advisor,
			Factory:  doc.Factory,
			Products: doc.Products,
			Config:   cfg,
		})
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return groups, nil
}

// ParseConfigYAML decodes a raw YAML document of advisor groups.
func ParseConfigYAML(data []byte) ([]Group, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing advisor groups failed: %w", err)
	}
	return ParseConfig(raw)
}
