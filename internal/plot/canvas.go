// Package plot renders diagram strokes as terminal line charts.
package plot

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/fmuexplore/internal/diagram"
)

var colors = map[string]asciigraph.AnsiColor{
	"b": asciigraph.Blue,
	"r": asciigraph.Red,
	"g": asciigraph.Green,
	"y": asciigraph.Yellow,
	"c": asciigraph.Cyan,
	"m": asciigraph.Magenta,
	"k": asciigraph.Default,
}

// Canvas collects strokes per panel. Strokes from consecutive replays overlay
// each other until Clear, the way successive runs share one figure.
type Canvas struct {
	mu      sync.Mutex
	layout  diagram.Layout
	strokes map[string][]diagram.Stroke
	width   int
	height  int
}

func NewCanvas(layout diagram.Layout, width, height int) *Canvas {
	if width < 10 {
		width = 10
	}
	if height < 3 {
		height = 3
	}
	return &Canvas{
		layout:  layout,
		strokes: make(map[string][]diagram.Stroke),
		width:   width,
		height:  height,
	}
}

// Draw implements diagram.Renderer.
func (c *Canvas) Draw(s diagram.Stroke) error {
	if _, ok := c.layout.Panel(s.Panel); !ok {
		return fmt.Errorf("plot: no panel %s in layout %s", s.Panel, c.layout.Name)
	}
	if len(s.Xs) != len(s.Ys) {
		return fmt.Errorf("plot: %s has %d x and %d y samples", s.Y, len(s.Xs), len(s.Ys))
	}
	c.mu.Lock()
	c.strokes[s.Panel] = append(c.strokes[s.Panel], s)
	c.mu.Unlock()
	return nil
}

// Clear drops every stroke and switches to layout.
func (c *Canvas) Clear(layout diagram.Layout) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layout = layout
	c.strokes = make(map[string][]diagram.Stroke)
}

func (c *Canvas) Strokes(panel string) []diagram.Stroke {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]diagram.Stroke, len(c.strokes[panel]))
	copy(out, c.strokes[panel])
	return out
}

// RenderPanel draws one panel as a chart. Empty panels render as their label.
func (c *Canvas) RenderPanel(id string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.layout.Panel(id)
	if !ok {
		return ""
	}
	strokes := c.strokes[id]
	if len(strokes) == 0 {
		return Subtle.Render(p.Label + " (no data)")
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	monotone := true
	for _, s := range strokes {
		if len(s.Xs) == 0 {
			continue
		}
		if !ascending(s.Xs) {
			monotone = false
		}
		lo = math.Min(lo, s.Xs[0])
		hi = math.Max(hi, s.Xs[len(s.Xs)-1])
	}

	var at []float64
	if monotone && hi > lo {
		at = grid(lo, hi, c.width)
	}

	data := make([][]float64, 0, len(strokes))
	legends := make([]string, 0, len(strokes))
	palette := make([]asciigraph.AnsiColor, 0, len(strokes))
	for _, s := range strokes {
		var ys []float64
		if at != nil {
			ys = resample(s, at)
		} else {
			ys = decimate(s.Ys, c.width)
		}
		if len(p.YLim) == 2 {
			clip(ys, p.YLim[0], p.YLim[1])
		}
		data = append(data, ys)
		legends = append(legends, fmt.Sprintf("%s %s", s.Y, s.Style))
		col, ok := colors[s.Color]
		if !ok {
			col = asciigraph.Default
		}
		palette = append(palette, col)
	}

	opts := []asciigraph.Option{
		asciigraph.Height(c.height),
		asciigraph.Caption(caption(p, strokes[0].X, lo, hi)),
		asciigraph.SeriesColors(palette...),
		asciigraph.SeriesLegends(legends...),
		asciigraph.Precision(2),
	}
	if len(p.YLim) == 2 {
		opts = append(opts, asciigraph.LowerBound(p.YLim[0]), asciigraph.UpperBound(p.YLim[1]))
	}
	return asciigraph.PlotMany(data, opts...)
}

func caption(p diagram.Panel, x string, lo, hi float64) string {
	if math.IsInf(lo, 0) {
		return p.Label
	}
	return fmt.Sprintf("%s vs %s [%.3g, %.3g]", p.Label, x, lo, hi)
}

// Render writes the title and every panel in layout order.
func (c *Canvas) Render(w io.Writer) error {
	c.mu.Lock()
	layout := c.layout
	c.mu.Unlock()

	var b strings.Builder
	if layout.Title != "" {
		b.WriteString(HeaderStyle.Render(TitleStyle.Render(layout.Title) + Subtle.Render("  "+layout.Name)))
		b.WriteString("\n\n")
	}
	for _, p := range layout.Panels {
		b.WriteString(c.RenderPanel(p.ID))
		b.WriteString("\n\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
