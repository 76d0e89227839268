// Package diagram keeps the rendering directives of the selected plot layout and
// replays them against each new result table.
//
// Directives are plain data. A fixed dispatcher turns each one into a [Stroke]
// for the [Renderer]; nothing stored here is executable.
package diagram

import (
	"fmt"

	"github.com/san-kum/fmuexplore/internal/engine"
)

type Kind string

const (
	KindLine Kind = "line"
	KindStep Kind = "step"
)

// Directive binds two series of the result table to a panel. An empty Style
// takes the current token of the style cycle.
type Directive struct {
	Panel string `yaml:"panel"`
	X     string `yaml:"x,omitempty"`
	Y     string `yaml:"y"`
	Color string `yaml:"color,omitempty"`
	Style string `yaml:"style,omitempty"`
	Kind  Kind   `yaml:"kind,omitempty"`
}

func (d Directive) xName() string {
	if d.X == "" {
		return engine.TimeName
	}
	return d.X
}

type Panel struct {
	ID    string    `yaml:"id"`
	Label string    `yaml:"label"`
	YLim  []float64 `yaml:"ylim,omitempty"`
}

// Layout is a fixed panel arrangement with its variable bindings.
type Layout struct {
	Name       string      `yaml:"name"`
	Title      string      `yaml:"title"`
	Rows       int         `yaml:"rows"`
	Cols       int         `yaml:"cols"`
	Panels     []Panel     `yaml:"panels"`
	Directives []Directive `yaml:"directives"`
}

func (l Layout) Panel(id string) (Panel, bool) {
	for _, p := range l.Panels {
		if p.ID == id {
			return p, true
		}
	}
	return Panel{}, false
}

// Validate checks that every directive targets a declared panel.
func (l Layout) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("diagram: layout without name")
	}
	seen := make(map[string]bool, len(l.Panels))
	for _, p := range l.Panels {
		if seen[p.ID] {
			return fmt.Errorf("diagram: layout %s: duplicate panel %s", l.Name, p.ID)
		}
		if len(p.YLim) != 0 && (len(p.YLim) != 2 || p.YLim[0] >= p.YLim[1]) {
			return fmt.Errorf("diagram: layout %s: panel %s: ylim must be [low, high]", l.Name, p.ID)
		}
		seen[p.ID] = true
	}
	for i, d := range l.Directives {
		if !seen[d.Panel] {
			return fmt.Errorf("diagram: layout %s: directive %d targets unknown panel %s", l.Name, i, d.Panel)
		}
		if d.Y == "" {
			return fmt.Errorf("diagram: layout %s: directive %d has no y series", l.Name, i)
		}
		switch d.Kind {
		case "", KindLine, KindStep:
		default:
			return fmt.Errorf("diagram: layout %s: directive %d: unknown kind %s", l.Name, i, d.Kind)
		}
	}
	return nil
}

// Stroke is one directive resolved against a result table.
type Stroke struct {
	Panel string
	X, Y  string
	Xs    []float64
	Ys    []float64
	Style string
	Color string
	Kind  Kind
}

// Renderer draws strokes. It is called once per directive per replay.
type Renderer interface {
	Draw(s Stroke) error
}

type RendererFunc func(s Stroke) error

func (f RendererFunc) Draw(s Stroke) error { return f(s) }

// Clearer is implemented by renderers that start a new figure when a layout
// is selected.
type Clearer interface {
	Clear(l Layout)
}
