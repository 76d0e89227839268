package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/fmuexplore/internal/diagram"
	"github.com/san-kum/fmuexplore/internal/engine"
	"github.com/san-kum/fmuexplore/internal/model"
	"github.com/san-kum/fmuexplore/internal/params"
)

// fakeEngine records requests and returns a table whose every series ends at
// the requested stop time.
type fakeEngine struct {
	reqs []engine.Request
	fail error
	drop string
}

func (f *fakeEngine) Simulate(ctx context.Context, req engine.Request) (*engine.Table, error) {
	f.reqs = append(f.reqs, req)
	if f.fail != nil {
		return nil, f.fail
	}
	names := make([]string, 0, len(req.Output))
	for _, n := range req.Output {
		if n != f.drop {
			names = append(names, n)
		}
	}
	tab := engine.NewTable(names, req.Intervals+1)
	for i := 0; i <= req.Intervals; i++ {
		t := req.Start + (req.Stop-req.Start)*float64(i)/float64(req.Intervals)
		row := make(map[string]float64, len(names))
		for _, n := range names {
			row[n] = t
		}
		if err := tab.Append(t, row); err != nil {
			return nil, err
		}
	}
	return tab, nil
}

func (f *fakeEngine) lastReq(t *testing.T) engine.Request {
	t.Helper()
	require.NotEmpty(t, f.reqs)
	return f.reqs[len(f.reqs)-1]
}

type recorder struct{ strokes []diagram.Stroke }

func (r *recorder) Draw(s diagram.Stroke) error {
	r.strokes = append(r.strokes, s)
	return nil
}

func newTestSession(t *testing.T, opts ...Option) (*Session, *fakeEngine) {
	t.Helper()
	eng := &fakeEngine{}
	s, err := New(model.NewFedbatch(), eng, append([]Option{WithIntervals(10)}, opts...)...)
	require.NoError(t, err)
	return s, eng
}

func TestNewPairsStates(t *testing.T) {
	s, _ := newTestSession(t)
	p := s.Pairing()
	assert.Equal(t, 7, p.Len())

	seed, ok := p.Seed("PIreg.limPID.I.y")
	require.True(t, ok)
	assert.Equal(t, "PIreg.I_start", seed)

	seed, _ = p.Seed("bioreactor.m[2]")
	assert.Equal(t, "bioreactor.m_start[2]", seed)

	for _, v := range s.CurrentState() {
		assert.True(t, params.IsMissing(v))
	}
	assert.False(t, s.HasRun())
	assert.Zero(t, s.Clock())
	assert.Nil(t, s.Last())
	assert.NotEmpty(t, s.ID())
}

func TestContinueBeforeRun(t *testing.T) {
	s, eng := newTestSession(t)

	_, err := s.Continue(context.Background(), 5)
	require.Error(t, err)
	var seqErr *SequenceError
	assert.ErrorAs(t, err, &seqErr)
	assert.ErrorIs(t, err, ErrSequence)

	assert.Empty(t, eng.reqs)
	assert.False(t, s.HasRun())
	assert.Zero(t, s.Clock())
}

func TestFreshThenContinue(t *testing.T) {
	s, eng := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.SetParameters(map[string]any{"K": 3.5}))

	res, err := s.Fresh(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, ModeFresh, res.Mode)
	assert.Equal(t, 0.0, res.Start)
	assert.Equal(t, 10.0, res.Stop)

	fresh := eng.lastReq(t)
	assert.Equal(t, 0.0, fresh.Start)
	assert.Equal(t, 10.0, fresh.Stop)
	assert.Equal(t, 10, fresh.Intervals)
	assert.Equal(t, 4.5, fresh.StartValues["bioreactor.V_start"])
	assert.Equal(t, 3.5, fresh.StartValues["PIreg.K"])
	assert.Equal(t, 0.0, fresh.StartValues["PIreg.I_start"])

	assert.True(t, s.HasRun())
	assert.Equal(t, 10.0, s.Clock())
	assert.Equal(t, 10.0, s.CurrentState()["bioreactor.V"])

	res, err = s.Continue(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, ModeContinue, res.Mode)

	cont := eng.lastReq(t)
	assert.Equal(t, 10.0, cont.Start)
	assert.Equal(t, 15.0, cont.Stop)
	// seeds of stateful variables come from the previous final state
	assert.Equal(t, 10.0, cont.StartValues["bioreactor.V_start"])
	assert.Equal(t, 10.0, cont.StartValues["PIreg.I_start"])
	assert.Equal(t, 10.0, cont.StartValues["bioreactor.m_start[1]"])
	// ordinary parameters and non-state seeds are passed unchanged
	assert.Equal(t, 3.5, cont.StartValues["PIreg.K"])
	assert.Equal(t, 0.0, cont.StartValues["dosagescheme.F_start"])

	assert.Equal(t, 15.0, s.Clock())
	assert.Equal(t, 15.0, s.CurrentState()["bioreactor.V"])
}

func TestFreshRestartsFromStoredSeeds(t *testing.T) {
	s, eng := newTestSession(t)
	ctx := context.Background()

	_, err := s.Fresh(ctx, 10)
	require.NoError(t, err)
	_, err = s.Fresh(ctx, 3)
	require.NoError(t, err)

	req := eng.lastReq(t)
	assert.Equal(t, 0.0, req.Start)
	assert.Equal(t, 3.0, req.Stop)
	assert.Equal(t, 4.5, req.StartValues["bioreactor.V_start"])
	assert.Equal(t, 3.0, s.Clock())
}

func TestEngineFailurePreservesSession(t *testing.T) {
	s, eng := newTestSession(t)
	ctx := context.Background()

	_, err := s.Fresh(ctx, 10)
	require.NoError(t, err)
	last := s.Last()
	state := s.CurrentState()

	boom := errors.New("solver diverged")
	eng.fail = boom
	_, err = s.Continue(ctx, 5)
	require.Error(t, err)

	var engErr *EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, ModeContinue, engErr.Mode)
	assert.Equal(t, 10.0, engErr.Start)
	assert.Equal(t, 15.0, engErr.Stop)
	assert.ErrorIs(t, err, ErrEngine)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 10.0, s.Clock())
	assert.True(t, s.HasRun())
	assert.Same(t, last, s.Last())
	assert.Equal(t, state, s.CurrentState())

	eng.fail = nil
	_, err = s.Continue(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 10.0, eng.lastReq(t).Start)
	assert.Equal(t, 15.0, s.Clock())
}

func TestFailedFirstRunLeavesNoRun(t *testing.T) {
	s, eng := newTestSession(t)
	eng.fail = errors.New("no license")

	_, err := s.Fresh(context.Background(), 10)
	assert.ErrorIs(t, err, ErrEngine)
	assert.False(t, s.HasRun())

	_, err = s.Continue(context.Background(), 5)
	assert.ErrorIs(t, err, ErrSequence)
}

func TestIncompleteTableIsEngineError(t *testing.T) {
	s, eng := newTestSession(t)
	ctx := context.Background()
	_, err := s.Fresh(ctx, 10)
	require.NoError(t, err)
	state := s.CurrentState()

	eng.drop = "feedtank.V"
	_, err = s.Continue(ctx, 5)
	assert.ErrorIs(t, err, ErrEngine)
	assert.Equal(t, 10.0, s.Clock())
	assert.Equal(t, state, s.CurrentState())
}

func TestInvalidDuration(t *testing.T) {
	s, eng := newTestSession(t)
	for _, d := range []float64{0, -1} {
		_, err := s.Fresh(context.Background(), d)
		assert.ErrorIs(t, err, engine.ErrBadSpan)
	}
	assert.Empty(t, eng.reqs)
}

func TestViolationDoesNotBlockRun(t *testing.T) {
	s, eng := newTestSession(t)
	ctx := context.Background()

	err := s.SetSeeds(map[string]any{"V_start": -1.0})
	var valErr *params.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, []string{"V_start > 0"}, valErr.Violated)

	res, err := s.Fresh(ctx, 10)
	require.NoError(t, err)
	require.Len(t, eng.reqs, 1)
	assert.Equal(t, -1.0, eng.lastReq(t).StartValues["bioreactor.V_start"])
	assert.Equal(t, []string{"V_start > 0"}, res.Violations)
	assert.True(t, s.HasRun())

	// the continuation replaces the bad seed with the final state
	res, err = s.Continue(ctx, 5)
	require.NoError(t, err)
	require.Len(t, eng.reqs, 2)
	assert.Equal(t, 10.0, eng.lastReq(t).StartValues["bioreactor.V_start"])
	assert.Equal(t, []string{"V_start > 0"}, res.Violations)
	assert.Equal(t, 15.0, s.Clock())

	require.NoError(t, s.SetSeeds(map[string]any{"V_start": 5.0}))
	res, err = s.Fresh(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, res.Violations)
}

func TestMissingRequiredAbortsRun(t *testing.T) {
	s, eng := newTestSession(t)
	_ = s.SetParameters(map[string]any{"VX_start": params.Missing})

	_, err := s.Fresh(context.Background(), 10)
	var missErr *params.MissingError
	require.ErrorAs(t, err, &missErr)
	assert.Equal(t, []string{"VX_start"}, missErr.Names)
	assert.Empty(t, eng.reqs)
}

func TestSetParametersRejectsUnknownKeys(t *testing.T) {
	s, _ := newTestSession(t)

	err := s.SetParameters(map[string]any{"bogus": 1, "K": 20})
	var rejErr *params.RejectedKeyError
	require.ErrorAs(t, err, &rejErr)
	assert.Equal(t, []string{"bogus"}, rejErr.Keys())

	d, err := s.Describe("K")
	require.NoError(t, err)
	assert.Equal(t, 20.0, d.Value)
}

func TestSetParametersPartialApply(t *testing.T) {
	s, _ := newTestSession(t)

	err := s.SetParameters(map[string]any{"N_low": 3000, "bogus": 1})
	var rejErr *params.RejectedKeyError
	var valErr *params.ValidationError
	assert.ErrorAs(t, err, &rejErr)
	assert.ErrorAs(t, err, &valErr)
	assert.Equal(t, []string{"N_high > N_low"}, s.Violations())

	d, _ := s.Describe("N_low")
	assert.Equal(t, 3000.0, d.Value)
}

func TestApplyKeepsBatchGoing(t *testing.T) {
	s, eng := newTestSession(t)
	err := s.Apply(map[string]any{"Kp": 1.0, "K": 4.0}, map[string]any{"V_start": 6.0})
	assert.ErrorIs(t, err, params.ErrRejectedKey)

	_, err = s.Fresh(context.Background(), 1)
	require.NoError(t, err)
	req := eng.lastReq(t)
	assert.Equal(t, 4.0, req.StartValues["PIreg.K"])
	assert.Equal(t, 6.0, req.StartValues["bioreactor.V_start"])
}

func TestSetSeeds(t *testing.T) {
	s, eng := newTestSession(t)

	require.NoError(t, s.SetSeeds(map[string]any{"V_start": 6.0, "bioreactor.m_start[2]": 30.0}))

	err := s.SetSeeds(map[string]any{"K": 1.0})
	assert.ErrorIs(t, err, params.ErrRejectedKey)

	_, err = s.Fresh(context.Background(), 1)
	require.NoError(t, err)
	req := eng.lastReq(t)
	assert.Equal(t, 6.0, req.StartValues["bioreactor.V_start"])
	assert.Equal(t, 30.0, req.StartValues["bioreactor.m_start[2]"])
	assert.Equal(t, 10.0, req.StartValues["PIreg.K"])
}

func TestOutputSelection(t *testing.T) {
	s, eng := newTestSession(t)
	require.NoError(t, s.SelectLayout("Focus DO-control"))

	_, err := s.Fresh(context.Background(), 1)
	require.NoError(t, err)

	out := eng.lastReq(t).Output
	assert.Equal(t, []string{"DOsensor.out", "DO_setpoint.out", "bioreactor.N", "bioreactor.OUR", "bioreactor.inlet[1].F"}, out[:5])
	for _, name := range append(model.NewFedbatch().StateNames(), model.NewFedbatch().KeyVariables()...) {
		assert.Contains(t, out, name)
	}
	seen := make(map[string]bool)
	for _, n := range out {
		assert.False(t, seen[n], "duplicate output %s", n)
		seen[n] = true
	}
}

func TestUnknownLayoutSeriesIsSkipped(t *testing.T) {
	extra := map[string]diagram.Layout{
		"odd": {
			Name:       "odd",
			Panels:     []diagram.Panel{{ID: "p"}},
			Directives: []diagram.Directive{{Panel: "p", Y: "nope"}, {Panel: "p", Y: "bioreactor.V"}},
		},
	}
	r := &recorder{}
	s, eng := newTestSession(t, WithLayouts(extra), WithRenderer(r))
	require.NoError(t, s.SelectLayout("odd"))

	res, err := s.Fresh(context.Background(), 1)
	require.NoError(t, err)
	assert.NotContains(t, eng.lastReq(t).Output, "nope")
	assert.Equal(t, 1, res.Rendered)
	assert.Error(t, res.RenderErr)
}

func TestReplayAfterEachRun(t *testing.T) {
	r := &recorder{}
	s, _ := newTestSession(t, WithRenderer(r))
	require.NoError(t, s.SelectLayout("Focus DO-control"))
	ctx := context.Background()

	n, err := s.Show()
	require.NoError(t, err)
	assert.Zero(t, n, "nothing to show before a run")

	res, err := s.Fresh(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Rendered)
	assert.NoError(t, res.RenderErr)
	assert.Equal(t, "-", r.strokes[0].Style)
	assert.Equal(t, "--", r.strokes[1].Style)

	r.strokes = nil
	_, err = s.Continue(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "--", r.strokes[0].Style)
	assert.Equal(t, []float64{2, 4}, []float64{r.strokes[0].Xs[0], r.strokes[0].Xs[len(r.strokes[0].Xs)-1]})

	r.strokes = nil
	n, err = s.Show()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, ":", r.strokes[0].Style)

	require.NoError(t, s.SelectLayout("Focus DO-control"))
	r.strokes = nil
	_, err = s.Show()
	require.NoError(t, err)
	assert.Equal(t, "-", r.strokes[0].Style)
}

func TestSelectUnknownLayout(t *testing.T) {
	s, _ := newTestSession(t)
	assert.Error(t, s.SelectLayout("Nope"))
	_, ok := s.Layout()
	assert.False(t, ok)
	assert.Contains(t, s.Layouts(), "Overview")
}

type clearingRecorder struct {
	recorder
	cleared []string
}

func (r *clearingRecorder) Clear(l diagram.Layout) {
	r.cleared = append(r.cleared, l.Name)
	r.strokes = nil
}

func TestSelectLayoutClearsRenderer(t *testing.T) {
	r := &clearingRecorder{}
	s, _ := newTestSession(t, WithRenderer(r))
	require.NoError(t, s.SelectLayout("Overview"))
	_, err := s.Fresh(context.Background(), 1)
	require.NoError(t, err)
	require.NotEmpty(t, r.strokes)

	require.NoError(t, s.SelectLayout("Focus DO-control"))
	assert.Equal(t, []string{"Overview", "Focus DO-control"}, r.cleared)
	assert.Empty(t, r.strokes)

	// a failed selection keeps the figure
	require.Error(t, s.SelectLayout("Nope"))
	assert.Len(t, r.cleared, 2)
}

func TestDescribe(t *testing.T) {
	s, _ := newTestSession(t)

	d, err := s.Describe("V_start")
	require.NoError(t, err)
	assert.Equal(t, "bioreactor.V_start", d.Location)
	assert.Equal(t, "L", d.Unit)
	assert.Equal(t, 4.5, d.Value)
	assert.Equal(t, "seed", d.Kind)

	d, err = s.Describe("PIreg.K")
	require.NoError(t, err)
	assert.Equal(t, "K", d.Name)
	assert.Equal(t, "parameter", d.Kind)

	d, err = s.Describe("bioreactor.c[1]")
	require.NoError(t, err)
	assert.True(t, params.IsMissing(d.Value))

	_, err = s.Fresh(context.Background(), 4)
	require.NoError(t, err)

	d, err = s.Describe("bioreactor.c[1]")
	require.NoError(t, err)
	assert.Equal(t, 4.0, d.Value)
	assert.Equal(t, "g/L", d.Unit)

	d, err = s.Describe("time")
	require.NoError(t, err)
	assert.Equal(t, 4.0, d.Value)
	assert.Contains(t, d.String(), "time : 4 [h]")

	_, err = s.Describe("nope")
	assert.ErrorIs(t, err, ErrUnknownName)
}

func TestDescribeKeyVariableShortNames(t *testing.T) {
	s, _ := newTestSession(t)
	_, err := s.Fresh(context.Background(), 4)
	require.NoError(t, err)

	for short, loc := range map[string]string{
		"mu":     "bioreactor.culture.mu",
		"qO2":    "bioreactor.culture.qO2",
		"Kla_O2": "bioreactor.gas_liquid_transfer.Kla_O2",
	} {
		d, err := s.Describe(short)
		require.NoError(t, err, short)
		assert.Equal(t, short, d.Name)
		assert.Equal(t, loc, d.Location)
		assert.Equal(t, 4.0, d.Value, short)
	}

	// a parameter short name wins over a variable segment
	d, err := s.Describe("V_tot")
	require.NoError(t, err)
	assert.Equal(t, "parameter", d.Kind)
}

func TestDispAndParts(t *testing.T) {
	s, _ := newTestSession(t)

	names := func(es []params.Entry) []string {
		out := make([]string, len(es))
		for i, e := range es {
			out[i] = e.Name
		}
		return out
	}
	assert.Equal(t, []string{"D_start", "I_start", "K", "Td", "Ti"}, names(s.Disp("PIreg")))
	assert.Equal(t, []string{"F_max", "F_start", "F_startExp", "mu_feed", "t_startExp"}, names(s.Disp("dosagescheme")))
	assert.Len(t, s.Disp(""), len(model.NewFedbatch().Parameters()))

	assert.Contains(t, s.Parts(), "bioreactor")
	assert.Contains(t, s.Parts(), "PIreg")
}

func TestNewRejectsBadIntervals(t *testing.T) {
	_, err := New(model.NewFedbatch(), &fakeEngine{}, WithIntervals(0))
	assert.Error(t, err)
}

func TestCancelledRun(t *testing.T) {
	s, err := New(model.NewFedbatch(), engine.NewODE(model.NewFedbatch()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Fresh(ctx, 1)
	assert.ErrorIs(t, err, ErrEngine)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, s.HasRun())
}

func TestContinuationMatchesSingleRun(t *testing.T) {
	ctx := context.Background()
	m := model.NewFedbatch()

	split, err := New(m, engine.NewODE(m))
	require.NoError(t, err)
	_, err = split.Fresh(ctx, 2)
	require.NoError(t, err)
	_, err = split.Continue(ctx, 2)
	require.NoError(t, err)

	whole, err := New(m, engine.NewODE(m))
	require.NoError(t, err)
	_, err = whole.Fresh(ctx, 4)
	require.NoError(t, err)

	assert.Equal(t, 4.0, split.Clock())
	a, b := split.CurrentState(), whole.CurrentState()
	assert.InDelta(t, b["feedtank.V"], a["feedtank.V"], 1e-4)
	assert.InDelta(t, b["bioreactor.V"], a["bioreactor.V"], 1e-4)
	assert.InEpsilon(t, b["bioreactor.m[1]"], a["bioreactor.m[1]"], 1e-3)
}
