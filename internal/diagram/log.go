package diagram

import (
	"errors"
	"fmt"

	"github.com/san-kum/fmuexplore/internal/engine"
)

// DefaultStyles is the line style cycle: solid, dashed, dotted, dash-dot.
var DefaultStyles = []string{"-", "--", ":", "-."}

// Log is the ordered directive list of the selected layout plus the style cycle.
type Log struct {
	layout     *Layout
	directives []Directive
	styles     []string
	next       int
}

func NewLog(styles ...string) *Log {
	if len(styles) == 0 {
		styles = DefaultStyles
	}
	s := make([]string, len(styles))
	copy(s, styles)
	return &Log{styles: s}
}

// Reset clears the list and the style cycle and registers the layout's
// directives in order.
func (l *Log) Reset(layout Layout) error {
	if err := layout.Validate(); err != nil {
		return err
	}
	l.layout = &layout
	l.directives = make([]Directive, len(layout.Directives))
	copy(l.directives, layout.Directives)
	l.next = 0
	return nil
}

func (l *Log) Layout() (Layout, bool) {
	if l.layout == nil {
		return Layout{}, false
	}
	return *l.layout, true
}

func (l *Log) Directives() []Directive {
	out := make([]Directive, len(l.directives))
	copy(out, l.directives)
	return out
}

// Series lists the distinct series the directives read, in first-use order.
func (l *Log) Series() []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range l.directives {
		for _, n := range []string{d.xName(), d.Y} {
			if n == engine.TimeName || seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// Replay advances the style cycle and draws every directive against tab. An
// empty table renders nothing and leaves the cycle alone; any other table
// advances it, even with no directives. Directives whose series are absent
// are reported; the others still render.
func (l *Log) Replay(tab *engine.Table, r Renderer) (int, error) {
	if tab.Empty() {
		return 0, nil
	}

	token := l.styles[l.next%len(l.styles)]
	l.next++
	if len(l.directives) == 0 {
		return 0, nil
	}

	var errs []error
	drawn := 0
	for _, d := range l.directives {
		xs, okX := tab.Series(d.xName())
		ys, okY := tab.Series(d.Y)
		if !okX || !okY {
			errs = append(errs, fmt.Errorf("diagram: panel %s: %s vs %s not in result table", d.Panel, d.Y, d.xName()))
			continue
		}
		s := Stroke{
			Panel: d.Panel,
			X:     d.xName(),
			Y:     d.Y,
			Xs:    xs,
			Ys:    ys,
			Style: token,
			Color: d.Color,
			Kind:  d.Kind,
		}
		if d.Style != "" {
			s.Style = d.Style
		}
		if s.Kind == "" {
			s.Kind = KindLine
		}
		if err := r.Draw(s); err != nil {
			errs = append(errs, fmt.Errorf("diagram: panel %s: %w", d.Panel, err))
			continue
		}
		drawn++
	}
	return drawn, errors.Join(errs...)
}
