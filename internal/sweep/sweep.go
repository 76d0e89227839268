// Package sweep runs independent sessions over a parameter grid in parallel
// and ranks them by the final value of one variable.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/fmuexplore/internal/params"
	"github.com/san-kum/fmuexplore/internal/session"
)

// Axis is one swept parameter and its values.
type Axis struct {
	Param  string
	Values []float64
}

// Linspace returns n evenly spaced values over [lo, hi].
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

// Grid returns every combination of axis values, first axis slowest.
func Grid(axes []Axis) []map[string]float64 {
	points := []map[string]float64{{}}
	for _, ax := range axes {
		next := make([]map[string]float64, 0, len(points)*len(ax.Values))
		for _, p := range points {
			for _, v := range ax.Values {
				q := make(map[string]float64, len(p)+1)
				for k, x := range p {
					q[k] = x
				}
				q[ax.Param] = v
				next = append(next, q)
			}
		}
		points = next
	}
	return points
}

// Config describes a sweep. Rank names the variable whose final value orders
// the points; Descending puts the largest first.
type Config struct {
	Axes       []Axis
	Duration   float64
	Rank       string
	Workers    int
	Descending bool
}

type Point struct {
	Params map[string]float64
	Final  float64
	Clock  float64
	Err    error
}

// Factory builds a fresh session for one grid point.
type Factory func() (*session.Session, error)

// Run evaluates every grid point on its own session. A failing point is
// recorded and ranked last; only a factory error or cancellation aborts.
func Run(ctx context.Context, newSession Factory, cfg Config) ([]Point, error) {
	if cfg.Rank == "" {
		return nil, fmt.Errorf("sweep: no rank variable")
	}
	grid := Grid(cfg.Axes)
	points := make([]Point, len(grid))

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, point := range grid {
		i, point := i, point
		g.Go(func() error {
			s, err := newSession()
			if err != nil {
				return err
			}
			points[i] = evaluate(gctx, s, point, cfg)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	Rank(points, cfg.Descending)
	return points, nil
}

func evaluate(ctx context.Context, s *session.Session, point map[string]float64, cfg Config) Point {
	p := Point{Params: point, Final: math.NaN()}
	updates := make(map[string]any, len(point))
	for k, v := range point {
		updates[k] = v
	}
	// points outside the model's requirements are not run
	var (
		rej *params.RejectedKeyError
		val *params.ValidationError
	)
	if err := s.SetParameters(updates); errors.As(err, &rej) || errors.As(err, &val) {
		p.Err = err
		return p
	}
	if _, err := s.Fresh(ctx, cfg.Duration); err != nil {
		p.Err = err
		return p
	}
	p.Clock = s.Clock()
	v, err := s.Last().Last(cfg.Rank)
	if err != nil {
		p.Err = err
		return p
	}
	p.Final = v
	return p
}

// Rank sorts points by final value; failed points go last.
func Rank(points []Point, descending bool) {
	sort.SliceStable(points, func(i, j int) bool {
		a, b := points[i], points[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err == nil
		}
		if descending {
			return a.Final > b.Final
		}
		return a.Final < b.Final
	})
}
