package fleet

import (
	"fmt"

	"keel/internal/advisor"
	"keel/internal/pkg/symbol"
)

// Builder expands groups against a product universe into advisor specs.
type Builder struct {
	registry *Registry
	universe []symbol.Product
}

func NewBuilder(registry *Registry, universe []symbol.Product) *Builder {
	return &Builder{registry: registry, universe: universe}
}

// BuildSpecs resolves every group: filter the universe by the group's
// selector, then let the group's factory mint the specs.
func (b *Builder) BuildSpecs(groups []Group) ([]advisor.Spec, error) {
	var specs []advisor.Spec
	errs := make(ConfigErrors)

	for _, g := range groups {
		ctor, ok := b.registry.Advisor(g.Advisor)
		if !ok {
			errs[g.ID] = append(errs[g.ID], FieldError{Field: "advisor", Message: fmt.Sprintf("%q is not registered", g.Advisor)})
		}
		factory, ok := b.registry.Factory(g.Factory)
		if !ok {
			errs[g.ID] = append(errs[g.ID], FieldError{Field: "factory", Message: fmt.Sprintf("%q is not registered", g.Factory)})
		}
		if len(errs[g.ID]) > 0 {
			continue
		}

		products := ParseSelector(g.Products).Filter(b.universe)
		minted, err := factory.Specs(g, products, ctor)
		if err != nil {
			errs[g.ID] = append(errs[g.ID], FieldError{Field: "factory", Message: err.Error()})
			continue
		}
		specs = append(specs, minted...)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return specs, nil
}

// BuildSpecsForGroup narrows the output to one group id.
func (b *Builder) BuildSpecsForGroup(groups []Group, groupID string) ([]advisor.Spec, error) {
	for _, g := range groups {
		if g.ID == groupID {
			return b.BuildSpecs([]Group{g})
		}
	}
	return nil, fmt.Errorf("unknown advisor group: %s", groupID)
}

// BuildSpecsForAdvisor narrows the output to a single advisor.
func (b *Builder) BuildSpecsForAdvisor(groups []Group, groupID, advisorID string) ([]advisor.Spec, error) {
	specs, err := b.BuildSpecsForGroup(groups, groupID)
	if err != nil {
		return nil, err
	}
	var out []advisor.Spec
	for _, s := range specs {
		if s.AdvisorID == advisorID {
			out = append(out, s)
		}
	}
	return out, nil
}
