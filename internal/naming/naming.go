// Package naming translates between the name a result table reports for a state
// variable and the seed name the engine accepts for its initial value.
//
// Translation is an ordered rule table; the first matching rule wins:
//
//	PIreg.limPID.I.y  ->  PIreg.I_start       (integrator output)
//	PIreg.limPID.D.x  ->  PIreg.D_start       (derivative state)
//	bioreactor.V      ->  bioreactor.V_start
//	bioreactor.m[12]  ->  bioreactor.m_start[12]
//
// Subscripts wider than [MaxSubscriptDigits] digits are rejected with a
// [*NamingError]; nothing is truncated or guessed.
package naming

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// SeedMarker is the generic seed suffix, and the marker that identifies a seed name.
	SeedMarker = "_start"

	MaxSubscriptDigits = 3
)

var ErrUnrecognized = errors.New("naming: unrecognized state name")

// NamingError reports a stateful variable whose name no rule can translate, or
// two variables that would share a seed.
type NamingError struct {
	Name   string
	Reason string
}

func (e *NamingError) Error() string {
	return fmt.Sprintf("naming: %q: %s", e.Name, e.Reason)
}

func (e *NamingError) Unwrap() error { return ErrUnrecognized }

// Rule maps a matching current-value name to its seed name.
type Rule struct {
	Name  string
	Match func(name string) bool
	Seed  func(name string) (string, error)
}

// SuffixRule replaces a fixed tag at the end of the name. The whole tag is
// stripped and replacement appended.
func SuffixRule(name, tag, replacement string) Rule {
	return Rule{
		Name:  name,
		Match: func(s string) bool { return len(s) > len(tag) && strings.HasSuffix(s, tag) },
		Seed: func(s string) (string, error) {
			return s[:len(s)-len(tag)] + replacement, nil
		},
	}
}

var plainRule = Rule{
	Name:  "plain",
	Match: func(s string) bool { return !strings.HasSuffix(s, "]") },
	Seed:  func(s string) (string, error) { return s + SeedMarker, nil },
}

var subscriptRule = Rule{
	Name:  "subscript",
	Match: func(s string) bool { return strings.HasSuffix(s, "]") },
	Seed: func(s string) (string, error) {
		base, sub, err := splitSubscript(s)
		if err != nil {
			return "", err
		}
		return base + SeedMarker + sub, nil
	},
}

// DefaultRules is the rule table for models built on the standard PID blocks.
func DefaultRules() []Rule {
	return []Rule{
		SuffixRule("integrator", "limPID.I.y", "I_start"),
		SuffixRule("derivative", "limPID.D.x", "D_start"),
		plainRule,
		subscriptRule,
	}
}

// splitSubscript splits "a.b[123]" into "a.b" and "[123]".
func splitSubscript(s string) (string, string, error) {
	open := strings.LastIndexByte(s, '[')
	if open <= 0 {
		return "", "", &NamingError{Name: s, Reason: "unbalanced array subscript"}
	}
	digits := s[open+1 : len(s)-1]
	if len(digits) == 0 {
		return "", "", &NamingError{Name: s, Reason: "empty array subscript"}
	}
	if len(digits) > MaxSubscriptDigits {
		return "", "", &NamingError{
			Name:   s,
			Reason: fmt.Sprintf("array subscript wider than %d digits", MaxSubscriptDigits),
		}
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return "", "", &NamingError{Name: s, Reason: "non-numeric array subscript"}
		}
	}
	return s[:open], s[open:], nil
}

type Translator struct {
	rules []Rule
}

func NewTranslator(rules ...Rule) *Translator {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Translator{rules: rules}
}

// SeedName returns the seed name for a stateful variable.
func (t *Translator) SeedName(name string) (string, error) {
	if name == "" {
		return "", &NamingError{Name: name, Reason: "empty name"}
	}
	for _, r := range t.rules {
		if r.Match(name) {
			return r.Seed(name)
		}
	}
	return "", &NamingError{Name: name, Reason: "no rule matches"}
}

// IsSeedName reports whether name carries the seed marker.
func IsSeedName(name string) bool {
	return strings.Contains(name, SeedMarker)
}
