// Package params holds the working set of a simulation session: parameters and
// state seeds by short name, and the final values of the stateful variables.
package params

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/fmuexplore/internal/naming"
)

type Kind int

const (
	KindParameter Kind = iota
	KindSeed
)

func (k Kind) String() string {
	if k == KindSeed {
		return "seed"
	}
	return "parameter"
}

// Entry is one named value. Location is the name the engine knows it by.
type Entry struct {
	Name     string
	Location string
	Value    any
	Kind     Kind
	Required bool
}

// Sampler is the part of a result table the store reads final values from.
type Sampler interface {
	Last(name string) (float64, error)
}

type Store struct {
	entries    map[string]*Entry
	byLocation map[string]string
	invariants []Invariant
	pairing    *naming.Pairing
	final      map[string]any
}

// New builds a store. Entry kinds are derived from the seed marker in the
// name or location; stateful variables start out Missing.
func New(pairing *naming.Pairing, entries []Entry, invariants []Invariant) (*Store, error) {
	s := &Store{
		entries:    make(map[string]*Entry, len(entries)),
		byLocation: make(map[string]string, len(entries)),
		invariants: invariants,
		pairing:    pairing,
		final:      make(map[string]any, pairing.Len()),
	}
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("params: entry with empty name")
		}
		if e.Location == "" {
			e.Location = e.Name
		}
		if _, dup := s.entries[e.Name]; dup {
			return nil, fmt.Errorf("params: duplicate entry %s", e.Name)
		}
		if other, dup := s.byLocation[e.Location]; dup {
			return nil, fmt.Errorf("params: %s and %s share location %s", other, e.Name, e.Location)
		}
		v, err := normalize(e.Value)
		if err != nil {
			return nil, fmt.Errorf("params: %s: %w", e.Name, err)
		}
		e.Value = v
		e.Kind = KindParameter
		if naming.IsSeedName(e.Name) || naming.IsSeedName(e.Location) {
			e.Kind = KindSeed
		}
		entry := e
		s.entries[e.Name] = &entry
		s.byLocation[e.Location] = e.Name
	}
	for _, st := range pairing.States() {
		s.final[st] = Missing
	}
	return s, nil
}

func (s *Store) Pairing() *naming.Pairing { return s.pairing }

// SetParameters merges updates for names already in the store. Unknown names
// are rejected and not applied; the invariants are then checked against the
// updated store and violations reported without rolling back.
func (s *Store) SetParameters(updates map[string]any) error {
	return s.report(s.setParameters(updates))
}

func (s *Store) setParameters(updates map[string]any) []Rejection {
	var rejected []Rejection
	for _, key := range sortedKeys(updates) {
		e, ok := s.entries[key]
		if !ok {
			rejected = append(rejected, Rejection{Key: key, Reason: "not an accessible parameter"})
			continue
		}
		v, err := normalize(updates[key])
		if err != nil {
			rejected = append(rejected, Rejection{Key: key, Reason: err.Error()})
			continue
		}
		e.Value = v
	}
	return rejected
}

// SetSeeds merges initial values. Keys must carry the seed marker and name a
// seed entry by short name or engine location.
func (s *Store) SetSeeds(updates map[string]any) error {
	return s.report(s.setSeeds(updates))
}

func (s *Store) setSeeds(updates map[string]any) []Rejection {
	var rejected []Rejection
	for _, key := range sortedKeys(updates) {
		if !naming.IsSeedName(key) {
			rejected = append(rejected, Rejection{Key: key, Reason: "not an initial value, set it as a parameter"})
			continue
		}
		e := s.resolve(key)
		if e == nil || e.Kind != KindSeed {
			rejected = append(rejected, Rejection{Key: key, Reason: "no such initial value"})
			continue
		}
		v, err := normalize(updates[key])
		if err != nil {
			rejected = append(rejected, Rejection{Key: key, Reason: err.Error()})
			continue
		}
		e.Value = v
	}
	return rejected
}

// Update applies a parameter batch and a seed batch as one update. A rejected
// key in either batch does not stop the other; all rejections and the
// violations of the final store are reported together.
func (s *Store) Update(pars, seeds map[string]any) error {
	rejected := s.setParameters(pars)
	rejected = append(rejected, s.setSeeds(seeds)...)
	return s.report(rejected)
}

func (s *Store) report(rejected []Rejection) error {
	var errs []error
	if len(rejected) > 0 {
		errs = append(errs, &RejectedKeyError{Rejected: rejected})
	}
	if violated := s.Violations(); len(violated) > 0 {
		errs = append(errs, &ValidationError{Violated: violated})
	}
	return errors.Join(errs...)
}

func (s *Store) resolve(key string) *Entry {
	if e, ok := s.entries[key]; ok {
		return e
	}
	if name, ok := s.byLocation[key]; ok {
		return s.entries[name]
	}
	return nil
}

func (s *Store) lookup(name string) (any, bool) {
	e, ok := s.entries[name]
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// Violations lists the invariants that do not hold, in declaration order.
func (s *Store) Violations() []string {
	var out []string
	for _, inv := range s.invariants {
		if !inv.Holds(s.lookup) {
			out = append(out, inv.Name)
		}
	}
	return out
}

// Validate is the pre-run check: every required parameter must hold a value.
// Invariants are diagnostics only, see Violations.
func (s *Store) Validate() error {
	var miss []string
	for _, name := range s.names() {
		e := s.entries[name]
		if e.Required && IsMissing(e.Value) {
			miss = append(miss, name)
		}
	}
	if len(miss) > 0 {
		return &MissingError{Names: miss}
	}
	return nil
}

// Get returns a copy of the entry for a short name or location.
func (s *Store) Get(key string) (Entry, bool) {
	e := s.resolve(key)
	if e == nil {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns copies of all entries sorted by name.
func (s *Store) Entries() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, name := range s.names() {
		out = append(out, *s.entries[name])
	}
	return out
}

// CurrentState returns the final values of the stateful variables; Missing
// before the first run.
func (s *Store) CurrentState() map[string]any {
	out := make(map[string]any, len(s.final))
	for k, v := range s.final {
		out[k] = v
	}
	return out
}

// ApplyFinalState overwrites every stateful value with the last sample of its
// series. Nothing is written unless every series is present.
func (s *Store) ApplyFinalState(tab Sampler) error {
	next := make(map[string]any, len(s.final))
	for _, st := range s.pairing.States() {
		v, err := tab.Last(st)
		if err != nil {
			return fmt.Errorf("params: final state of %s: %w", st, err)
		}
		next[st] = v
	}
	s.final = next
	return nil
}

func (s *Store) names() []string {
	names := make([]string, 0, len(s.entries))
	for n := range s.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
