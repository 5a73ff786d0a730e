package fleet

import (
	"fmt"
	"sync"

	"keel/internal/advisor"
	"keel/internal/pkg/symbol"
)

// Factory decides how many advisors a group mints for its filtered
// products and what each spec receives.
type Factory interface {
	Specs(group Group, products []symbol.Product, newAdvisor func() advisor.Advisor) ([]advisor.Spec, error)
}

// Registry resolves the implementation references named in group config.
type Registry struct {
	mu        sync.RWMutex
	advisors  map[string]func() advisor.Advisor
	factories map[string]Factory
}

func NewRegistry() *Registry {
	r := &Registry{
		advisors:  make(map[string]func() advisor.Advisor),
		factories: make(map[string]Factory),
	}
	r.RegisterFactory("per_product", PerProductFactory{})
	r.RegisterFactory("per_group", PerGroupFactory{})
	return r
}

func (r *Registry) RegisterAdvisor(name string, ctor func() advisor.Advisor) {
	if name == "" || ctor == nil {
		return
	}
	r.mu.Lock()
	r.advisors[name] = ctor
	r.mu.Unlock()
}

func (r *Registry) RegisterFactory(name string, f Factory) {
	if name == "" || f == nil {
		return
	}
	r.mu.Lock()
	r.factories[name] = f
	r.mu.Unlock()
}

func (r *Registry) Advisor(name string) (func() advisor.Advisor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.advisors[name]
	return ctor, ok
}

func (r *Registry) Factory(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// PerProductFactory mints one advisor per filtered product. The advisor id
// is "{venue}_{symbol}" and each spec subscribes to its product's book.
type PerProductFactory struct{}

func (PerProductFactory) Specs(group Group, products []symbol.Product, newAdvisor func() advisor.Advisor) ([]advisor.Spec, error) {
	specs := make([]advisor.Spec, 0, len(products))
	for _, p := range products {
		specs = append(specs, advisor.Spec{
			Advisor:    newAdvisor(),
			GroupID:    group.ID,
			AdvisorID:  fmt.Sprintf("%s_%s", p.VenueID, p.Symbol),
			Products:   []symbol.Product{p},
			OrderBooks: symbol.ByVenue([]symbol.Product{p}),
			Config:     group.Config,
		})
	}
	return specs, nil
}

// PerGroupFactory mints a single advisor covering every filtered product.
type PerGroupFactory struct{}

func (PerGroupFactory) Specs(group Group, products []symbol.Product, newAdvisor func() advisor.Advisor) ([]advisor.Spec, error) {
	if len(products) == 0 {
		return nil, nil
	}
	return []advisor.Spec{{
		Advisor:    newAdvisor(),
		GroupID:    group.ID,
		AdvisorID:  "main",
		Products:   products,
		OrderBooks: symbol.ByVenue(products),
		Config:     group.Config,
	}}, nil
}
