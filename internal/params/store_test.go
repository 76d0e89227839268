package params

import (
	"errors"
	"fmt"
	"testing"

	"github.com/san-kum/fmuexplore/internal/naming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tail map[string]float64

func (t tail) Last(name string) (float64, error) {
	v, ok := t[name]
	if !ok {
		return 0, fmt.Errorf("no series %s", name)
	}
	return v, nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	p, err := naming.NewPairing(naming.NewTranslator(), []string{"bioreactor.V", "bioreactor.m[1]"})
	require.NoError(t, err)

	var invs []Invariant
	for _, expr := range []string{"V_start > 0", "VX_start >= 0", "N_high > N_low"} {
		inv, err := ParseInvariant(expr)
		require.NoError(t, err)
		invs = append(invs, inv)
	}

	s, err := New(p, []Entry{
		{Name: "V_start", Location: "bioreactor.V_start", Value: 4.5, Required: true},
		{Name: "VX_start", Location: "bioreactor.m_start[1]", Value: 4},
		{Name: "K", Location: "PIreg.K", Value: 10.0},
		{Name: "N_low", Location: "N_low.value", Value: 500.0},
		{Name: "N_high", Location: "N_high.value", Value: 2000.0},
		{Name: "label", Location: "culture.strain", Value: "H1022"},
	}, invs)
	require.NoError(t, err)
	return s
}

func value(t *testing.T, s *Store, key string) any {
	t.Helper()
	e, ok := s.Get(key)
	require.True(t, ok, key)
	return e.Value
}

func TestNewClassifiesKinds(t *testing.T) {
	s := newTestStore(t)
	e, _ := s.Get("V_start")
	assert.Equal(t, KindSeed, e.Kind)
	e, _ = s.Get("PIreg.K")
	assert.Equal(t, KindParameter, e.Kind)
	assert.Equal(t, 4.0, value(t, s, "VX_start"), "ints are normalized")
}

func TestNewRejectsDuplicates(t *testing.T) {
	p, err := naming.NewPairing(naming.NewTranslator(), nil)
	require.NoError(t, err)

	_, err = New(p, []Entry{{Name: "a"}, {Name: "a"}}, nil)
	assert.Error(t, err)
	_, err = New(p, []Entry{{Name: "a", Location: "x"}, {Name: "b", Location: "x"}}, nil)
	assert.Error(t, err)
	_, err = New(p, []Entry{{Name: "a", Value: []int{1}}}, nil)
	assert.Error(t, err)
}

func TestSetParametersUnknownKey(t *testing.T) {
	s := newTestStore(t)
	before := s.Entries()

	err := s.SetParameters(map[string]any{"unknownKey": 1})
	var rej *RejectedKeyError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, []string{"unknownKey"}, rej.Keys())
	assert.Equal(t, before, s.Entries())

	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
}

func TestSetParametersPartialBatch(t *testing.T) {
	s := newTestStore(t)
	err := s.SetParameters(map[string]any{"K": 20, "Kp": 3, "label": "H1023"})

	assert.ErrorIs(t, err, ErrRejectedKey)
	assert.Equal(t, 20.0, value(t, s, "K"))
	assert.Equal(t, "H1023", value(t, s, "label"))
}

func TestSetParametersAppliesDespiteViolation(t *testing.T) {
	s := newTestStore(t)
	err := s.SetParameters(map[string]any{"V_start": -1.0, "N_low": 3000.0})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"V_start > 0", "N_high > N_low"}, verr.Violated)
	assert.Equal(t, -1.0, value(t, s, "V_start"))
	assert.Equal(t, 3000.0, value(t, s, "N_low"))

	assert.False(t, errors.Is(err, ErrRejectedKey))
}

func TestSetParametersRejectsBadType(t *testing.T) {
	s := newTestStore(t)
	err := s.SetParameters(map[string]any{"K": struct{}{}})
	assert.ErrorIs(t, err, ErrRejectedKey)
	assert.Equal(t, 10.0, value(t, s, "K"))
}

func TestSetSeeds(t *testing.T) {
	s := newTestStore(t)
	err := s.SetSeeds(map[string]any{
		"V_start":               3.0,
		"bioreactor.m_start[1]": 2.0,
		"K":                     1.0,
		"Z_start":               1.0,
	})

	var rej *RejectedKeyError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, []string{"K", "Z_start"}, rej.Keys())
	assert.Equal(t, 3.0, value(t, s, "V_start"))
	assert.Equal(t, 2.0, value(t, s, "VX_start"))
	assert.Equal(t, 10.0, value(t, s, "K"))
}

func TestSetSeedsReportsViolation(t *testing.T) {
	s := newTestStore(t)
	err := s.SetSeeds(map[string]any{"VX_start": -2.0})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, -2.0, value(t, s, "VX_start"))
}

func TestUpdateAppliesBothBatches(t *testing.T) {
	s := newTestStore(t)
	err := s.Update(
		map[string]any{"nope": 1, "K": 12.0},
		map[string]any{"Z_start": 1.0, "V_start": 6.0, "VX_start": -1.0},
	)

	var rej *RejectedKeyError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, []string{"nope", "Z_start"}, rej.Keys())
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"VX_start >= 0"}, verr.Violated)

	assert.Equal(t, 12.0, value(t, s, "K"))
	assert.Equal(t, 6.0, value(t, s, "V_start"))
	assert.Equal(t, -1.0, value(t, s, "VX_start"))

	assert.NoError(t, s.Update(nil, nil))
}

func TestValidate(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Validate())

	assert.ErrorIs(t, s.SetParameters(map[string]any{"V_start": Missing}), ErrValidation)
	var merr *MissingError
	require.True(t, errors.As(s.Validate(), &merr))
	assert.Equal(t, []string{"V_start"}, merr.Names)

	require.NoError(t, s.SetParameters(map[string]any{"V_start": 1.0}))
	_ = s.SetParameters(map[string]any{"VX_start": -1.0})
	// violated invariants are diagnostics, not a reason to refuse a run
	assert.NoError(t, s.Validate())
	assert.Equal(t, []string{"VX_start >= 0"}, s.Violations())
}

func TestApplyFinalState(t *testing.T) {
	s := newTestStore(t)
	for _, v := range s.CurrentState() {
		assert.True(t, IsMissing(v))
	}

	require.NoError(t, s.ApplyFinalState(tail{"bioreactor.V": 5.1, "bioreactor.m[1]": 7.25, "other": 1}))
	assert.Equal(t, map[string]any{"bioreactor.V": 5.1, "bioreactor.m[1]": 7.25}, s.CurrentState())
}

func TestApplyFinalStateIsAllOrNothing(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ApplyFinalState(tail{"bioreactor.V": 5.1, "bioreactor.m[1]": 7.25}))

	err := s.ApplyFinalState(tail{"bioreactor.V": 9.9})
	assert.Error(t, err)
	assert.Equal(t, 5.1, s.CurrentState()["bioreactor.V"])
}

func TestParseInvariant(t *testing.T) {
	inv, err := ParseInvariant("  V_start   >=  0.5 ")
	require.NoError(t, err)
	assert.Equal(t, Invariant{Name: "V_start >= 0.5", Param: "V_start", Op: ">=", Bound: "0.5"}, inv)

	for _, bad := range []string{"V_start>0", "V_start => 0", "", "a > b > c"} {
		_, err := ParseInvariant(bad)
		assert.Error(t, err, bad)
	}
}

func TestInvariantOperands(t *testing.T) {
	vals := map[string]any{"a": 1.0, "b": 2.0, "s": "x", "on": true}
	lookup := func(k string) (any, bool) {
		v, ok := vals[k]
		return v, ok
	}

	check := func(expr string) bool {
		inv, err := ParseInvariant(expr)
		require.NoError(t, err)
		return inv.Holds(lookup)
	}
	assert.True(t, check("a < b"))
	assert.False(t, check("a == b"))
	assert.True(t, check("on == 1"))
	assert.False(t, check("s > 0"), "strings never satisfy numeric invariants")
	assert.False(t, check("missing > 0"))
	assert.False(t, check("a < nothere"))
}
