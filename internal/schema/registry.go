package schema

import "fmt"

// Registry maps selector names to definitions, preserving document order.
type Registry struct {
	order []string
	defs  map[string]*Definition
}

// NewRegistry indexes defs. Empty and duplicate names are rejected.
func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]*Definition, len(defs))}
	for i := range defs {
		d := &defs[i]
		if d.Name == "" {
			return nil, fmt.Errorf("selector at index %d has no name", i)
		}
		if _, dup := r.defs[d.Name]; dup {
			return nil, fmt.Errorf("duplicate selector name %q", d.Name)
		}
		r.defs[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Names returns selector names in document order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of selectors.
func (r *Registry) Len() int { return len(r.order) }

// Defaults returns every definition marked default, in document order.
func (r *Registry) Defaults() []*Definition {
	var out []*Definition
	for _, name := range r.order {
		if d := r.defs[name]; d.Default {
			out = append(out, d)
		}
	}
	return out
}
