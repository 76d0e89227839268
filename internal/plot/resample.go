package plot

import (
	"math"
	"sort"

	"github.com/san-kum/fmuexplore/internal/diagram"
)

// grid returns n evenly spaced points over [lo, hi].
func grid(lo, hi float64, n int) []float64 {
	g := make([]float64, n)
	if n == 1 {
		g[0] = lo
		return g
	}
	for i := range g {
		g[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return g
}

func ascending(xs []float64) bool {
	return sort.SliceIsSorted(xs, func(i, j int) bool { return xs[i] < xs[j] })
}

// resample evaluates a stroke on the grid. Points outside the stroke's x range
// are NaN, which asciigraph leaves blank. Step strokes hold the previous sample.
func resample(s diagram.Stroke, at []float64) []float64 {
	out := make([]float64, len(at))
	n := len(s.Xs)
	if n == 0 || n != len(s.Ys) {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	for i, x := range at {
		if x < s.Xs[0] || x > s.Xs[n-1] {
			out[i] = math.NaN()
			continue
		}
		k := sort.SearchFloat64s(s.Xs, x)
		switch {
		case k < n && s.Xs[k] == x:
			out[i] = s.Ys[k]
		case s.Kind == diagram.KindStep:
			out[i] = s.Ys[k-1]
		default:
			x0, x1 := s.Xs[k-1], s.Xs[k]
			f := (x - x0) / (x1 - x0)
			out[i] = s.Ys[k-1] + f*(s.Ys[k]-s.Ys[k-1])
		}
	}
	return out
}

// decimate picks n evenly spaced samples by index, for strokes whose x
// series is not monotone.
func decimate(ys []float64, n int) []float64 {
	if len(ys) <= n {
		out := make([]float64, len(ys))
		copy(out, ys)
		return out
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = ys[i*(len(ys)-1)/(n-1)]
	}
	return out
}

func clip(ys []float64, lo, hi float64) {
	for i, y := range ys {
		if math.IsNaN(y) {
			continue
		}
		ys[i] = math.Max(lo, math.Min(hi, y))
	}
}
