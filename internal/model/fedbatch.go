package model

import (
	"fmt"
	"math"

	"github.com/san-kum/fmuexplore/internal/dynamo"
)

// State vector order of the fed-batch model.
const (
	fbV = iota
	fbX
	fbG
	fbFeedV
	fbDO
	fbI
	fbD
	fbDim
)

var fedbatchStates = []string{
	"bioreactor.V",
	"bioreactor.m[1]",
	"bioreactor.m[2]",
	"feedtank.V",
	"DOsensor.x",
	"PIreg.limPID.I.y",
	"PIreg.limPID.D.x",
}

var fedbatchVariables = []Variable{
	{Name: "bioreactor.V_start", Description: "Initial broth volume", Unit: "L", Causality: CausalityParameter, Start: 4.5},
	{Name: "bioreactor.m_start[1]", Description: "Initial biomass mass", Unit: "g", Causality: CausalityParameter, Start: 4.5},
	{Name: "bioreactor.m_start[2]", Description: "Initial glucose mass", Unit: "g", Causality: CausalityParameter, Start: 22.5},
	{Name: "bioreactor.V_tot", Description: "Total reactor volume", Unit: "L", Causality: CausalityParameter, Start: 8.0},
	{Name: "bioreactor.culture.qGmax", Description: "Maximal specific glucose uptake rate", Unit: "g/(g*h)", Causality: CausalityParameter, Start: 1.0},
	{Name: "bioreactor.culture.Ks", Description: "Glucose saturation constant", Unit: "g/L", Causality: CausalityParameter, Start: 0.1},
	{Name: "bioreactor.culture.Y", Description: "Biomass yield on glucose", Unit: "g/g", Causality: CausalityParameter, Start: 0.5},
	{Name: "bioreactor.gas_liquid_transfer.alpha_O2", Description: "Oxygen transfer scale factor", Unit: "", Causality: CausalityParameter, Start: 1.0},
	{Name: "feedtank.V_start", Description: "Initial feed tank volume", Unit: "L", Causality: CausalityParameter, Start: 50},
	{Name: "feedtank.c_in[2]", Description: "Glucose concentration in feed", Unit: "g/L", Causality: CausalityParameter, Start: 500},
	{Name: "dosagescheme.F_start", Description: "Feed rate before exponential phase", Unit: "L/h", Causality: CausalityParameter, Start: 0},
	{Name: "dosagescheme.mu_feed", Description: "Exponential feed growth rate", Unit: "1/h", Causality: CausalityParameter, Start: 0.1},
	{Name: "dosagescheme.t_startExp", Description: "Start of exponential feeding", Unit: "h", Causality: CausalityParameter, Start: 3},
	{Name: "dosagescheme.F_startExp", Description: "Feed rate at start of exponential phase", Unit: "L/h", Causality: CausalityParameter, Start: 0.01},
	{Name: "dosagescheme.F_max", Description: "Maximal feed rate", Unit: "L/h", Causality: CausalityParameter, Start: 0.3},
	{Name: "DO_setpoint.value", Description: "Dissolved oxygen setpoint", Unit: "%", Causality: CausalityParameter, Start: 40},
	{Name: "DOsensor.x_start", Description: "Initial DO sensor reading", Unit: "%", Causality: CausalityParameter, Start: 87},
	{Name: "DOsensor.T", Description: "DO sensor time constant", Unit: "h", Causality: CausalityParameter, Start: 0.05},
	{Name: "PIreg.K", Description: "Controller gain", Unit: "rpm/%", Causality: CausalityParameter, Start: 10},
	{Name: "PIreg.Ti", Description: "Controller integral time", Unit: "h", Causality: CausalityParameter, Start: 0.5},
	{Name: "PIreg.Td", Description: "Controller derivative time", Unit: "h", Causality: CausalityParameter, Start: 0},
	{Name: "PIreg.I_start", Description: "Initial integrator output", Unit: "", Causality: CausalityParameter, Start: 0},
	{Name: "PIreg.D_start", Description: "Initial derivative filter state", Unit: "", Causality: CausalityParameter, Start: 0},
	{Name: "N_low.value", Description: "Lowest stirrer speed", Unit: "rpm", Causality: CausalityParameter, Start: 500},
	{Name: "N_high.value", Description: "Highest stirrer speed", Unit: "rpm", Causality: CausalityParameter, Start: 2000},

	{Name: "bioreactor.V", Description: "Broth volume", Unit: "L", Causality: CausalityState},
	{Name: "bioreactor.m[1]", Description: "Biomass mass", Unit: "g", Causality: CausalityState},
	{Name: "bioreactor.m[2]", Description: "Glucose mass", Unit: "g", Causality: CausalityState},
	{Name: "feedtank.V", Description: "Feed tank volume", Unit: "L", Causality: CausalityState},
	{Name: "DOsensor.x", Description: "DO sensor internal state", Unit: "%", Causality: CausalityState},
	{Name: "PIreg.limPID.I.y", Description: "Controller integrator output", Unit: "", Causality: CausalityState},
	{Name: "PIreg.limPID.D.x", Description: "Controller derivative filter state", Unit: "", Causality: CausalityState},

	{Name: "bioreactor.c[1]", Description: "Biomass concentration", Unit: "g/L", Causality: CausalityOutput},
	{Name: "bioreactor.c[2]", Description: "Glucose concentration", Unit: "g/L", Causality: CausalityOutput},
	{Name: "bioreactor.N", Description: "Stirrer speed", Unit: "rpm", Causality: CausalityOutput},
	{Name: "bioreactor.inlet[1].F", Description: "Feed rate", Unit: "L/h", Causality: CausalityOutput},
	{Name: "bioreactor.OUR", Description: "Oxygen uptake rate", Unit: "g/h", Causality: CausalityOutput},
	{Name: "bioreactor.culture.qG", Description: "Specific glucose uptake rate", Unit: "g/(g*h)", Causality: CausalityOutput},
	{Name: "bioreactor.culture.mu", Description: "Specific growth rate", Unit: "1/h", Causality: CausalityOutput},
	{Name: "bioreactor.culture.qO2", Description: "Specific oxygen uptake rate", Unit: "g/(g*h)", Causality: CausalityOutput},
	{Name: "bioreactor.gas_liquid_transfer.Kla_O2", Description: "Oxygen transfer coefficient", Unit: "1/h", Causality: CausalityOutput},
	{Name: "DOsensor.out", Description: "Measured dissolved oxygen", Unit: "%", Causality: CausalityOutput},
	{Name: "DO_setpoint.out", Description: "Dissolved oxygen setpoint signal", Unit: "%", Causality: CausalityOutput},
}

var fedbatchParameters = []Parameter{
	{Name: "V_start", Location: "bioreactor.V_start", Default: 4.5, Required: true},
	{Name: "VX_start", Location: "bioreactor.m_start[1]", Default: 4.5, Required: true},
	{Name: "VG_start", Location: "bioreactor.m_start[2]", Default: 22.5, Required: true},
	{Name: "V_tot", Location: "bioreactor.V_tot", Default: 8.0},
	{Name: "qGmax", Location: "bioreactor.culture.qGmax", Default: 1.0},
	{Name: "Ks", Location: "bioreactor.culture.Ks", Default: 0.1},
	{Name: "Y", Location: "bioreactor.culture.Y", Default: 0.5},
	{Name: "alpha_O2", Location: "bioreactor.gas_liquid_transfer.alpha_O2", Default: 1.0},
	{Name: "feedtank_V_start", Location: "feedtank.V_start", Default: 50.0},
	{Name: "G_in", Location: "feedtank.c_in[2]", Default: 500.0},
	{Name: "F_start", Location: "dosagescheme.F_start", Default: 0.0},
	{Name: "mu_feed", Location: "dosagescheme.mu_feed", Default: 0.1},
	{Name: "t_startExp", Location: "dosagescheme.t_startExp", Default: 3.0},
	{Name: "F_startExp", Location: "dosagescheme.F_startExp", Default: 0.01},
	{Name: "F_max", Location: "dosagescheme.F_max", Default: 0.3},
	{Name: "DO_setpoint", Location: "DO_setpoint.value", Default: 40.0},
	{Name: "DO_sensor_x_start", Location: "DOsensor.x_start", Default: 87.0},
	{Name: "K", Location: "PIreg.K", Default: 10.0},
	{Name: "Ti", Location: "PIreg.Ti", Default: 0.5},
	{Name: "Td", Location: "PIreg.Td", Default: 0.0},
	{Name: "I_start", Location: "PIreg.I_start", Default: 0.0},
	{Name: "D_start", Location: "PIreg.D_start", Default: 0.0},
	{Name: "N_low", Location: "N_low.value", Default: 500.0},
	{Name: "N_high", Location: "N_high.value", Default: 2000.0},
}

// Fedbatch is a yeast fed-batch culture with exponential glucose feeding and a
// PI loop that holds dissolved oxygen by adjusting stirrer speed.
type Fedbatch struct{}

func NewFedbatch() *Fedbatch {
	return &Fedbatch{}
}

func (f *Fedbatch) Name() string { return "fedbatch" }

func (f *Fedbatch) Variables() []Variable {
	out := make([]Variable, len(fedbatchVariables))
	copy(out, fedbatchVariables)
	return out
}

func (f *Fedbatch) StateNames() []string {
	out := make([]string, len(fedbatchStates))
	copy(out, fedbatchStates)
	return out
}

func (f *Fedbatch) Parameters() []Parameter {
	out := make([]Parameter, len(fedbatchParameters))
	copy(out, fedbatchParameters)
	return out
}

func (f *Fedbatch) Invariants() []string {
	return []string{
		"V_start > 0",
		"VX_start >= 0",
		"VG_start >= 0",
		"Ti > 0",
		"N_high > N_low",
	}
}

func (f *Fedbatch) KeyVariables() []string {
	return []string{
		"bioreactor.culture.mu",
		"bioreactor.culture.qO2",
		"bioreactor.gas_liquid_transfer.Kla_O2",
		"bioreactor.c[1]",
		"bioreactor.c[2]",
	}
}

// Instantiate binds start values (keyed by engine location) over the defaults.
// Unknown locations and non-numeric values are errors.
func (f *Fedbatch) Instantiate(start map[string]any) (Instance, error) {
	p := make(map[string]float64, len(fedbatchVariables))
	for _, v := range fedbatchVariables {
		if v.Causality == CausalityParameter {
			p[v.Name] = v.Start
		}
	}
	for loc, val := range start {
		if _, ok := p[loc]; !ok {
			return nil, fmt.Errorf("fedbatch: %s is not a settable start value", loc)
		}
		x, err := Float(val)
		if err != nil {
			return nil, fmt.Errorf("fedbatch: %s: %w", loc, err)
		}
		p[loc] = x
	}

	inst := &fedbatchInstance{
		vTot:      p["bioreactor.V_tot"],
		qGmax:     p["bioreactor.culture.qGmax"],
		ks:        p["bioreactor.culture.Ks"],
		yield:     p["bioreactor.culture.Y"],
		alpha:     p["bioreactor.gas_liquid_transfer.alpha_O2"],
		gIn:       p["feedtank.c_in[2]"],
		fStart:    p["dosagescheme.F_start"],
		muFeed:    p["dosagescheme.mu_feed"],
		tStartExp: p["dosagescheme.t_startExp"],
		fStartExp: p["dosagescheme.F_startExp"],
		fMax:      p["dosagescheme.F_max"],
		setpoint:  p["DO_setpoint.value"],
		sensorT:   p["DOsensor.T"],
		pi: LimPI{
			K:    p["PIreg.K"],
			Ti:   p["PIreg.Ti"],
			Td:   p["PIreg.Td"],
			Nd:   10,
			YMin: p["N_low.value"],
			YMax: p["N_high.value"],
		},
	}
	if inst.sensorT <= 0 {
		return nil, fmt.Errorf("fedbatch: DOsensor.T must be positive, got %g", inst.sensorT)
	}
	if p["bioreactor.V_start"] <= 0 {
		return nil, fmt.Errorf("fedbatch: bioreactor.V_start must be positive, got %g", p["bioreactor.V_start"])
	}

	inst.x0 = dynamo.State{
		fbV:     p["bioreactor.V_start"],
		fbX:     p["bioreactor.m_start[1]"],
		fbG:     p["bioreactor.m_start[2]"],
		fbFeedV: p["feedtank.V_start"],
		fbDO:    p["DOsensor.x_start"],
		fbI:     p["PIreg.I_start"],
		fbD:     p["PIreg.D_start"],
	}
	return inst, nil
}

type fedbatchInstance struct {
	x0 dynamo.State

	vTot, qGmax, ks, yield, alpha float64
	gIn, fStart, muFeed           float64
	tStartExp, fStartExp, fMax    float64
	setpoint, sensorT             float64
	pi                            LimPI
}

// oxygen demand per g/(L*h) of glucose uptake, in % DO units
const oxygenDemand = 40.0

type fedbatchSignals struct {
	F, qG, mu, N, kla, doTrue, our float64
	di, dd                         float64
}

func (m *fedbatchInstance) StateDim() int         { return fbDim }
func (m *fedbatchInstance) Initial() dynamo.State { return m.x0.Clone() }

func (m *fedbatchInstance) feed(x dynamo.State, t float64) float64 {
	if x[fbFeedV] <= 0 {
		return 0
	}
	if t < m.tStartExp {
		return m.fStart
	}
	return math.Min(m.fStartExp*math.Exp(m.muFeed*(t-m.tStartExp)), m.fMax)
}

func (m *fedbatchInstance) signals(x dynamo.State, t float64) fedbatchSignals {
	var s fedbatchSignals
	v := math.Max(x[fbV], 1e-9)
	cG := math.Max(x[fbG], 0) / v
	s.F = m.feed(x, t)
	s.qG = m.qGmax * cG / (m.ks + cG)
	s.mu = m.yield * s.qG

	e := m.setpoint - x[fbDO]
	s.N, s.di, s.dd = m.pi.Output(e, x[fbI], x[fbD])

	s.kla = m.alpha * s.N / 10
	demand := oxygenDemand * s.qG * math.Max(x[fbX], 0) / v
	s.doTrue = 100 * s.kla / (s.kla + demand)
	s.our = s.qG * x[fbX]
	return s
}

func (m *fedbatchInstance) Derive(x dynamo.State, t float64) dynamo.State {
	s := m.signals(x, t)
	dx := make(dynamo.State, fbDim)
	dx[fbV] = s.F
	dx[fbX] = s.mu * x[fbX]
	dx[fbG] = s.F*m.gIn - s.qG*x[fbX]
	dx[fbFeedV] = -s.F
	dx[fbDO] = (s.doTrue - x[fbDO]) / m.sensorT
	dx[fbI] = s.di
	dx[fbD] = s.dd
	return dx
}

func (m *fedbatchInstance) Observe(x dynamo.State, t float64) map[string]float64 {
	s := m.signals(x, t)
	v := math.Max(x[fbV], 1e-9)
	out := map[string]float64{
		"bioreactor.c[1]":                       x[fbX] / v,
		"bioreactor.c[2]":                       x[fbG] / v,
		"bioreactor.N":                          s.N,
		"bioreactor.inlet[1].F":                 s.F,
		"bioreactor.OUR":                        s.our,
		"bioreactor.culture.qG":                 s.qG,
		"bioreactor.culture.mu":                 s.mu,
		"bioreactor.gas_liquid_transfer.Kla_O2": s.kla,
		"DOsensor.out":                          x[fbDO],
		"DO_setpoint.out":                       m.setpoint,
		"bioreactor.V_tot":                      m.vTot,
	}
	if x[fbX] > 0 {
		out["bioreactor.culture.qO2"] = s.our / x[fbX]
	} else {
		out["bioreactor.culture.qO2"] = 0
	}
	for i, name := range fedbatchStates {
		out[name] = x[i]
	}
	return out
}
