// Package session keeps the mutable state of an interactive simulation session
// and drives fresh and time-continued runs of a model through an engine.
//
// A [Session] owns the parameter store, the clock, the newest result table and the
// diagram log. Each run is a fresh engine call; Continue seeds it with the final
// state of the previous run so consecutive runs form one trajectory.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/fmuexplore/internal/diagram"
	"github.com/san-kum/fmuexplore/internal/engine"
	"github.com/san-kum/fmuexplore/internal/logging"
	"github.com/san-kum/fmuexplore/internal/model"
	"github.com/san-kum/fmuexplore/internal/naming"
	"github.com/san-kum/fmuexplore/internal/params"
	"github.com/san-kum/fmuexplore/internal/telemetry"
)

type Mode string

const (
	ModeFresh    Mode = "fresh"
	ModeContinue Mode = "continue"
)

// DefaultIntervals is the number of output intervals per run.
const DefaultIntervals = 500

// Result describes one successful run.
type Result struct {
	Mode      Mode
	Start     float64
	Stop      float64
	Table     *engine.Table
	Rendered  int
	RenderErr error
	Elapsed   time.Duration

	// Violations lists the requirements that did not hold when the run
	// started. They never stop a run.
	Violations []string
}

type Session struct {
	mu sync.Mutex

	id         string
	model      model.Model
	catalog    *model.Catalog
	store      *params.Store
	pairing    *naming.Pairing
	translator *naming.Translator
	engine     engine.Engine
	diagrams   *diagram.Log
	renderer   diagram.Renderer
	layouts    map[string]diagram.Layout
	aliases    map[string]string

	clock     float64
	hasRun    bool
	last      *engine.Table
	intervals int
	extra     []string

	log     *slog.Logger
	metrics *telemetry.Metrics
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.log = l } }

func WithMetrics(m *telemetry.Metrics) Option { return func(s *Session) { s.metrics = m } }

func WithRenderer(r diagram.Renderer) Option { return func(s *Session) { s.renderer = r } }

// WithIntervals sets the number of output intervals per run.
func WithIntervals(n int) Option { return func(s *Session) { s.intervals = n } }

// WithLayouts adds layouts next to the built-in table.
func WithLayouts(extra map[string]diagram.Layout) Option {
	return func(s *Session) { s.layouts = extra }
}

// WithOutputs records additional variables in every run.
func WithOutputs(names ...string) Option {
	return func(s *Session) { s.extra = append(s.extra, names...) }
}

// WithTranslator replaces the default seed naming rules.
func WithTranslator(t *naming.Translator) Option {
	return func(s *Session) { s.translator = t }
}

// New builds a session for m. The stateful variables are paired with their
// seed names and the parameter table is loaded with the model defaults.
func New(m model.Model, eng engine.Engine, opts ...Option) (*Session, error) {
	s := &Session{
		id:        uuid.NewString(),
		model:     m,
		catalog:   model.NewCatalog(m),
		engine:    eng,
		diagrams:  diagram.NewLog(),
		intervals: DefaultIntervals,
		log:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.intervals < 1 {
		return nil, fmt.Errorf("session: output intervals must be positive, got %d", s.intervals)
	}
	if s.translator == nil {
		s.translator = naming.NewTranslator()
	}

	pairing, err := naming.NewPairing(s.translator, m.StateNames())
	if err != nil {
		return nil, fmt.Errorf("session: %s: %w", m.Name(), err)
	}

	entries := make([]params.Entry, 0, len(m.Parameters()))
	for _, p := range m.Parameters() {
		v := p.Default
		if v == nil {
			v = params.Missing
		}
		entries = append(entries, params.Entry{
			Name:     p.Name,
			Location: p.Location,
			Value:    v,
			Required: p.Required,
		})
	}

	invariants := make([]params.Invariant, 0, len(m.Invariants()))
	for _, expr := range m.Invariants() {
		inv, err := params.ParseInvariant(expr)
		if err != nil {
			return nil, fmt.Errorf("session: %s: %w", m.Name(), err)
		}
		invariants = append(invariants, inv)
	}

	store, err := params.New(pairing, entries, invariants)
	if err != nil {
		return nil, fmt.Errorf("session: %s: %w", m.Name(), err)
	}
	s.store = store
	s.pairing = pairing
	s.aliases = keyAliases(m.KeyVariables(), store)
	s.log = s.log.With("session", s.id[:8], "model", m.Name())
	return s, nil
}

// keyAliases maps the last path segment of each key variable to its full
// name. Segments that clash with a store entry or with each other are left out.
func keyAliases(keys []string, store *params.Store) map[string]string {
	out := make(map[string]string, len(keys))
	clash := make(map[string]bool)
	for _, name := range keys {
		short := name[strings.LastIndex(name, ".")+1:]
		if short == name || clash[short] {
			continue
		}
		if _, ok := store.Get(short); ok {
			continue
		}
		if _, ok := out[short]; ok {
			delete(out, short)
			clash[short] = true
			continue
		}
		out[short] = name
	}
	return out
}

func (s *Session) ID() string { return s.id }

func (s *Session) Model() model.Model { return s.model }

func (s *Session) Pairing() *naming.Pairing { return s.pairing }

// Fresh runs from time zero with every stored start value.
func (s *Session) Fresh(ctx context.Context, duration float64) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, ModeFresh, duration)
}

// Continue runs from the current clock, seeding every stateful variable with
// its final value from the previous run.
func (s *Session) Continue(ctx context.Context, duration float64) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, ModeContinue, duration)
}

func (s *Session) run(ctx context.Context, mode Mode, duration float64) (*Result, error) {
	if mode == ModeContinue && !s.hasRun {
		s.metrics.ObserveRun(s.model.Name(), string(mode), telemetry.OutcomeSequence, 0)
		return nil, &SequenceError{Op: string(mode)}
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		s.metrics.ObserveRun(s.model.Name(), string(mode), telemetry.OutcomeInvalid, 0)
		return nil, fmt.Errorf("session: %w: duration %g", engine.ErrBadSpan, duration)
	}
	if err := s.store.Validate(); err != nil {
		s.metrics.ObserveRun(s.model.Name(), string(mode), telemetry.OutcomeInvalid, 0)
		s.log.Warn("run refused", "mode", mode, "err", err)
		return nil, err
	}
	violated := s.store.Violations()
	if len(violated) > 0 {
		s.metrics.ObserveUpdate(s.model.Name(), 0, len(violated))
		s.log.Warn("requirements violated", "mode", mode, "violated", violated)
	}

	start := 0.0
	if mode == ModeContinue {
		start = s.clock
	}
	req := engine.Request{
		StartValues: s.startValues(mode),
		Start:       start,
		Stop:        start + duration,
		Output:      s.outputs(),
		Intervals:   s.intervals,
	}

	s.log.Debug("run start", "mode", mode, "start", req.Start, "stop", req.Stop, "seeds", len(req.StartValues))
	began := time.Now()
	tab, err := s.engine.Simulate(ctx, req)
	if err == nil && tab.Empty() {
		err = errors.New("empty result table")
	}
	if err == nil {
		err = s.store.ApplyFinalState(tab)
	}
	elapsed := time.Since(began)
	if err != nil {
		outcome := telemetry.OutcomeEngine
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			outcome = telemetry.OutcomeCancelled
		}
		s.metrics.ObserveRun(s.model.Name(), string(mode), outcome, elapsed)
		s.log.Error("run failed", "mode", mode, "start", req.Start, "stop", req.Stop, "err", err)
		return nil, &EngineError{Mode: mode, Start: req.Start, Stop: req.Stop, Wrapped: err}
	}

	s.clock, _ = tab.LastTime()
	s.hasRun = true
	s.last = tab
	s.metrics.ObserveRun(s.model.Name(), string(mode), telemetry.OutcomeOK, elapsed)
	s.metrics.SetClock(s.model.Name(), s.clock)
	s.log.Info("run done", "mode", mode, "start", req.Start, "stop", s.clock, "samples", tab.Len(), "elapsed", elapsed)

	res := &Result{Mode: mode, Start: req.Start, Stop: s.clock, Table: tab, Elapsed: elapsed, Violations: violated}
	res.Rendered, res.RenderErr = s.replay()
	return res, nil
}

// startValues keys every known value by engine location. A continuation drops
// stored seeds of stateful variables in favour of their final values.
func (s *Session) startValues(mode Mode) map[string]any {
	out := make(map[string]any)
	for _, e := range s.store.Entries() {
		if params.IsMissing(e.Value) {
			continue
		}
		if mode == ModeContinue && s.pairing.IsSeed(e.Location) {
			continue
		}
		out[e.Location] = e.Value
	}
	if mode == ModeContinue {
		for st, v := range s.store.CurrentState() {
			seed, _ := s.pairing.Seed(st)
			out[seed] = v
		}
	}
	return out
}

// outputs is the series the layout draws, then the stateful, key and extra
// variables. Names the model does not know are left out.
func (s *Session) outputs() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	known := func(names []string) {
		for _, name := range names {
			if _, ok := s.catalog.Describe(name); !ok {
				s.log.Warn("output not in model", "series", name)
				continue
			}
			add(name)
		}
	}
	known(s.diagrams.Series())
	for _, name := range s.pairing.States() {
		add(name)
	}
	for _, name := range s.model.KeyVariables() {
		add(name)
	}
	known(s.extra)
	return out
}

func (s *Session) replay() (int, error) {
	if s.renderer == nil {
		return 0, nil
	}
	n, err := s.diagrams.Replay(s.last, s.renderer)
	if err != nil {
		s.log.Warn("diagram incomplete", "rendered", n, "err", err)
	}
	return n, err
}

// SetParameters merges parameter updates. Rejected keys and violated
// invariants are reported; accepted values stay applied.
func (s *Session) SetParameters(updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report("parameters", s.store.SetParameters(updates))
}

// SetSeeds merges initial values for the next fresh run.
func (s *Session) SetSeeds(updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report("seeds", s.store.SetSeeds(updates))
}

// Apply merges parameter and initial value updates in one batch. Every
// accepted key is applied even when others are rejected.
func (s *Session) Apply(pars, seeds map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report("batch", s.store.Update(pars, seeds))
}

func (s *Session) report(what string, err error) error {
	if err == nil {
		return nil
	}
	var (
		rej *params.RejectedKeyError
		val *params.ValidationError
		nr  int
		nv  int
	)
	if errors.As(err, &rej) {
		nr = len(rej.Rejected)
		s.log.Warn("keys rejected", "update", what, "keys", rej.Keys())
	}
	if errors.As(err, &val) {
		nv = len(val.Violated)
		s.log.Warn("requirements violated", "update", what, "violated", val.Violated)
	}
	s.metrics.ObserveUpdate(s.model.Name(), nr, nv)
	return err
}

// SelectLayout rebuilds the diagram log from a named layout and restarts the
// style cycle.
func (s *Session) SelectLayout(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := diagram.GetLayout(name, s.layouts)
	if err != nil {
		return err
	}
	if err := s.diagrams.Reset(l); err != nil {
		return err
	}
	if c, ok := s.renderer.(diagram.Clearer); ok {
		c.Clear(l)
	}
	s.log.Debug("layout selected", "layout", name, "directives", len(l.Directives))
	return nil
}

// Layout returns the selected layout, false if none.
func (s *Session) Layout() (diagram.Layout, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diagrams.Layout()
}

func (s *Session) Layouts() []string {
	return diagram.ListLayouts(s.layouts)
}

// Show replays the diagram log on the newest table without running.
func (s *Session) Show() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replay()
}

func (s *Session) Clock() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

func (s *Session) HasRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasRun
}

// Last is the newest result table, nil before the first run.
func (s *Session) Last() *engine.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Session) CurrentState() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.CurrentState()
}

func (s *Session) Entries() []params.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Entries()
}

// Violations lists the invariants that currently do not hold.
func (s *Session) Violations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Violations()
}
