package engine

import (
	"fmt"
	"sort"
)

// TimeName is the name of the shared time axis.
const TimeName = "time"

// Table is the result of one engine invocation: a monotonically increasing time
// axis shared by every recorded series.
type Table struct {
	Time   []float64
	series map[string][]float64
}

func NewTable(names []string, capacity int) *Table {
	t := &Table{
		Time:   make([]float64, 0, capacity),
		series: make(map[string][]float64, len(names)),
	}
	for _, n := range names {
		if n == TimeName {
			continue
		}
		t.series[n] = make([]float64, 0, capacity)
	}
	return t
}

// Append records one sample. Every recorded series must be present in values.
func (t *Table) Append(time float64, values map[string]float64) error {
	if n := len(t.Time); n > 0 && time <= t.Time[n-1] {
		return fmt.Errorf("engine: time %g does not advance past %g", time, t.Time[n-1])
	}
	for name := range t.series {
		if _, ok := values[name]; !ok {
			return fmt.Errorf("engine: sample at t=%g lacks %s", time, name)
		}
	}
	t.Time = append(t.Time, time)
	for name, s := range t.series {
		t.series[name] = append(s, values[name])
	}
	return nil
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Time)
}

func (t *Table) Empty() bool { return t.Len() == 0 }

// Series returns the samples of name; "time" returns the time axis.
func (t *Table) Series(name string) ([]float64, bool) {
	if t == nil {
		return nil, false
	}
	if name == TimeName {
		return t.Time, true
	}
	s, ok := t.series[name]
	return s, ok
}

func (t *Table) Has(name string) bool {
	_, ok := t.Series(name)
	return ok
}

// Last returns the final sample of name.
func (t *Table) Last(name string) (float64, error) {
	s, ok := t.Series(name)
	if !ok {
		return 0, fmt.Errorf("engine: %s not in result table", name)
	}
	if len(s) == 0 {
		return 0, fmt.Errorf("engine: %s has no samples", name)
	}
	return s[len(s)-1], nil
}

// LastTime is the final timestamp, false for an empty table.
func (t *Table) LastTime() (float64, bool) {
	if t.Empty() {
		return 0, false
	}
	return t.Time[len(t.Time)-1], true
}

// Names lists the recorded series, sorted, without the time axis.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.series))
	for n := range t.series {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
