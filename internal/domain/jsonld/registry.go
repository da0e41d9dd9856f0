package jsonld

import (
	"fmt"
	"sort"
)

// Registry maps a schema type to its generator. Build it once at startup.
type Registry struct {
	generators map[string]Generator
}

func NewRegistry(generators ...Generator) (*Registry, error) {
	r := &Registry{generators: make(map[string]Generator, len(generators))}
	for _, g := range generators {
		if err := r.Register(g); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(g Generator) error {
	if _, ok := r.generators[g.Type()]; ok {
		return fmt.Errorf("jsonld: generator %q already registered", g.Type())
	}
	r.generators[g.Type()] = g
	return nil
}

func (r *Registry) Get(typ string) (Generator, bool) {
	g, ok := r.generators[typ]
	return g, ok
}

func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.generators))
	for t := range r.generators {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
