package naming

import "fmt"

// Pairing is the bijection between the stateful variables of one model and
// their seed names.
type Pairing struct {
	states  []string
	toSeed  map[string]string
	toState map[string]string
}

// NewPairing translates every state name. Any untranslatable name, or two
// states mapping to the same seed, is an error.
func NewPairing(t *Translator, states []string) (*Pairing, error) {
	p := &Pairing{
		states:  make([]string, 0, len(states)),
		toSeed:  make(map[string]string, len(states)),
		toState: make(map[string]string, len(states)),
	}
	for _, s := range states {
		if _, dup := p.toSeed[s]; dup {
			return nil, &NamingError{Name: s, Reason: "listed twice"}
		}
		seed, err := t.SeedName(s)
		if err != nil {
			return nil, err
		}
		if other, clash := p.toState[seed]; clash {
			return nil, &NamingError{
				Name:   s,
				Reason: fmt.Sprintf("seed %q already used by %q", seed, other),
			}
		}
		p.states = append(p.states, s)
		p.toSeed[s] = seed
		p.toState[seed] = s
	}
	return p, nil
}

// States lists the stateful variables in the order given to NewPairing.
func (p *Pairing) States() []string {
	out := make([]string, len(p.states))
	copy(out, p.states)
	return out
}

func (p *Pairing) Seed(state string) (string, bool) {
	s, ok := p.toSeed[state]
	return s, ok
}

func (p *Pairing) State(seed string) (string, bool) {
	s, ok := p.toState[seed]
	return s, ok
}

// IsSeed reports whether name is the seed of one of the paired states.
func (p *Pairing) IsSeed(name string) bool {
	_, ok := p.toState[name]
	return ok
}

func (p *Pairing) Len() int { return len(p.states) }
