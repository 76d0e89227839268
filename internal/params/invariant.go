package params

import (
	"fmt"
	"strconv"
	"strings"
)

// Invariant is a named comparison of one parameter against a constant,
// e.g. "V_start > 0". The right side may also name another parameter.
type Invariant struct {
	Name  string
	Param string
	Op    string
	Bound string
}

var ops = map[string]func(a, b float64) bool{
	">":  func(a, b float64) bool { return a > b },
	">=": func(a, b float64) bool { return a >= b },
	"<":  func(a, b float64) bool { return a < b },
	"<=": func(a, b float64) bool { return a <= b },
	"==": func(a, b float64) bool { return a == b },
	"!=": func(a, b float64) bool { return a != b },
}

// ParseInvariant reads "lhs op rhs" with whitespace between the three parts.
func ParseInvariant(expr string) (Invariant, error) {
	f := strings.Fields(expr)
	if len(f) != 3 {
		return Invariant{}, fmt.Errorf("params: invariant %q: want \"name op value\"", expr)
	}
	if _, ok := ops[f[1]]; !ok {
		return Invariant{}, fmt.Errorf("params: invariant %q: unknown operator %s", expr, f[1])
	}
	return Invariant{Name: strings.Join(f, " "), Param: f[0], Op: f[1], Bound: f[2]}, nil
}

// Holds evaluates the invariant. Non-numeric or missing operands fail it.
func (inv Invariant) Holds(lookup func(string) (any, bool)) bool {
	lv, ok := lookup(inv.Param)
	if !ok {
		return false
	}
	a, ok := asFloat(lv)
	if !ok {
		return false
	}
	b, err := strconv.ParseFloat(inv.Bound, 64)
	if err != nil {
		rv, ok := lookup(inv.Bound)
		if !ok {
			return false
		}
		if b, ok = asFloat(rv); !ok {
			return false
		}
	}
	return ops[inv.Op](a, b)
}
