package model

import (
	"fmt"
	"sort"
)

// Registry maps model names to constructors, standing in for artifact selection.
type Registry struct {
	models map[string]func() Model
}

func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]func() Model)}
	r.models["fedbatch"] = func() Model { return NewFedbatch() }
	return r
}

func (r *Registry) Register(name string, fn func() Model) {
	r.models[name] = fn
}

func (r *Registry) Get(name string) (Model, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s (available: %v)", name, r.List())
	}
	return fn(), nil
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
