// Package model describes compiled simulation models by their named variables.
//
// A [Model] is what the session sees of an external simulation component: a list
// of variables with metadata, the stateful subset (variables with a derivative),
// the default parameter table and a factory that turns engine start values into a
// runnable [Instance].
package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/fmuexplore/internal/dynamo"
)

type Causality string

const (
	CausalityParameter Causality = "parameter"
	CausalityState     Causality = "state"
	CausalityOutput    Causality = "output"
	CausalityConstant  Causality = "constant"
)

// Variable is the metadata of one named model variable.
type Variable struct {
	Name        string
	Description string
	Unit        string
	Causality   Causality
	Start       float64
}

// Parameter is one row of the default parameter table: a short user-facing name
// bound to an engine location.
type Parameter struct {
	Name     string
	Location string
	Default  any
	Required bool
}

// Instance is a model configured with start values, ready to integrate.
type Instance interface {
	dynamo.System
	Initial() dynamo.State
	Observe(x dynamo.State, t float64) map[string]float64
}

type Model interface {
	Name() string
	Variables() []Variable
	// StateNames lists the stateful variables in state-vector order.
	StateNames() []string
	Parameters() []Parameter
	Invariants() []string
	KeyVariables() []string
	Instantiate(start map[string]any) (Instance, error)
}

// Catalog indexes a model's variables for metadata lookup.
type Catalog struct {
	vars  []Variable
	index map[string]int
}

func NewCatalog(m Model) *Catalog {
	vars := m.Variables()
	c := &Catalog{vars: vars, index: make(map[string]int, len(vars))}
	for i, v := range vars {
		c.index[v.Name] = i
	}
	return c
}

// Describe returns the metadata for an exact variable name.
func (c *Catalog) Describe(name string) (Variable, bool) {
	i, ok := c.index[name]
	if !ok {
		return Variable{}, false
	}
	return c.vars[i], true
}

// Parts lists the top-level components of the model, sorted without regard to case.
func (c *Catalog) Parts() []string {
	seen := make(map[string]bool)
	parts := make([]string, 0)
	for _, v := range c.vars {
		p := component(v.Name)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool {
		return strings.ToLower(parts[i]) < strings.ToLower(parts[j])
	})
	return parts
}

func component(name string) string {
	if name == "" || name[0] == '_' || name == "time" {
		return ""
	}
	if i := strings.IndexAny(name, ".("); i >= 0 {
		name = name[:i]
	}
	if name == "der" {
		return ""
	}
	return name
}

// Float converts an engine start value to a number.
func Float(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
	}
}
