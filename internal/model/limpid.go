package model

// LimPI is a PI(D) block with output limits and conditional integration, the
// controller inside the fed-batch DO loop. Its integrator and derivative-filter
// outputs are model states, so the block itself only computes signals.
type LimPI struct {
	K    float64
	Ti   float64
	Td   float64
	Nd   float64
	YMin float64
	YMax float64
}

// Output returns the limited controller output plus the integrator and derivative
// filter rates for error e, integrator state i and derivative filter state d.
func (p LimPI) Output(e, i, d float64) (y, di, dd float64) {
	dOut := 0.0
	if p.Td > 0 {
		nd := p.Nd
		if nd <= 0 {
			nd = 10
		}
		tf := p.Td / nd
		dd = (e - d) / tf
		dOut = p.K * p.Td * dd
	}

	raw := p.YMin + p.K*(e+i) + dOut
	y = raw
	if y < p.YMin {
		y = p.YMin
	}
	if y > p.YMax {
		y = p.YMax
	}

	if p.Ti > 0 {
		di = e / p.Ti
	}
	// hold the integrator while saturated in the direction of the error
	if (raw > p.YMax && di > 0) || (raw < p.YMin && di < 0) {
		di = 0
	}
	return y, di, dd
}
