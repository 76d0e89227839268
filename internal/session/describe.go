package session

import (
	"fmt"
	"strings"

	"github.com/san-kum/fmuexplore/internal/engine"
	"github.com/san-kum/fmuexplore/internal/params"
)

// Description is the metadata and current value of one name.
type Description struct {
	Name     string
	Location string
	Text     string
	Unit     string
	Kind     string
	Value    any
}

func (d Description) String() string {
	unit := d.Unit
	if unit == "" {
		unit = "-"
	}
	return fmt.Sprintf("%s : %v [%s] : %s", d.Name, d.Value, unit, d.Text)
}

// Describe looks name up as a short parameter name, an engine location, the
// time axis, a key variable's short name or a model variable. Variable values
// come from the newest table.
func (s *Session) Describe(name string) (Description, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.store.Get(name); ok {
		d := Description{Name: e.Name, Location: e.Location, Kind: e.Kind.String(), Value: e.Value}
		if v, ok := s.catalog.Describe(e.Location); ok {
			d.Text, d.Unit = v.Description, v.Unit
		}
		return d, nil
	}

	if name == engine.TimeName {
		return Description{Name: name, Location: name, Text: "Time", Unit: "h", Kind: "time", Value: s.clock}, nil
	}

	loc := name
	if full, ok := s.aliases[name]; ok {
		loc = full
	}
	v, ok := s.catalog.Describe(loc)
	if !ok {
		return Description{}, fmt.Errorf("%w: %s", ErrUnknownName, name)
	}
	d := Description{Name: name, Location: loc, Text: v.Description, Unit: v.Unit, Kind: string(v.Causality), Value: params.Missing}
	if x, err := s.last.Last(loc); err == nil {
		d.Value = x
	} else if fv, ok := s.store.CurrentState()[loc]; ok {
		d.Value = fv
	}
	return d, nil
}

// Disp lists the entries whose short name or location contains filter.
func (s *Session) Disp(filter string) []params.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []params.Entry
	for _, e := range s.store.Entries() {
		if filter == "" || strings.Contains(e.Name, filter) || strings.Contains(e.Location, filter) {
			out = append(out, e)
		}
	}
	return out
}

// Parts lists the model's top-level components.
func (s *Session) Parts() []string {
	return s.catalog.Parts()
}
