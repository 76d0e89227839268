package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/fmuexplore/internal/automation"
	"github.com/san-kum/fmuexplore/internal/diagram"
	"github.com/san-kum/fmuexplore/internal/plot"
	"github.com/san-kum/fmuexplore/internal/session"
	"github.com/san-kum/fmuexplore/internal/storage"
	"github.com/san-kum/fmuexplore/internal/sweep"
	"github.com/san-kum/fmuexplore/internal/tui"
)

var (
	sweepAxes    []string
	sweepRank    string
	sweepWorkers int
	sweepDesc    bool
)

type stage struct {
	mode     session.Mode
	duration float64
}

// parseStages reads fresh:8 continue:2 style arguments. A stage without a
// length uses def; no arguments means one fresh stage.
func parseStages(args []string, def float64) ([]stage, error) {
	if len(args) == 0 {
		return []stage{{mode: session.ModeFresh, duration: def}}, nil
	}
	stages := make([]stage, 0, len(args))
	for _, a := range args {
		name, length, hasLength := strings.Cut(a, ":")
		st := stage{duration: def}
		switch strings.ToLower(name) {
		case "fresh", "f":
			st.mode = session.ModeFresh
		case "continue", "cont", "c":
			st.mode = session.ModeContinue
		default:
			return nil, fmt.Errorf("unknown stage %q (use fresh[:t] or continue[:t])", a)
		}
		if hasLength {
			d, err := strconv.ParseFloat(length, 64)
			if err != nil {
				return nil, fmt.Errorf("stage %q: %w", a, err)
			}
			st.duration = d
		}
		stages = append(stages, st)
	}
	return stages, nil
}

func runStages(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	stages, err := parseStages(args, cfg.Duration)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, newMetrics(cmd.Context()))
	if err != nil {
		return err
	}

	fmt.Println(plot.TitleStyle.Render(fmt.Sprintf("fmuexplore: %s", a.model.Name())))
	for i, st := range stages {
		var res *session.Result
		if st.mode == session.ModeContinue {
			res, err = a.session.Continue(cmd.Context(), st.duration)
		} else {
			res, err = a.session.Fresh(cmd.Context(), st.duration)
		}
		if err != nil {
			return fmt.Errorf("stage %d (%s): %w", i+1, st.mode, err)
		}
		if err := a.afterStage(res, ""); err != nil {
			return err
		}
	}

	return a.finish()
}

// afterStage prints a one-line summary of res and saves it when --save is set.
func (a *app) afterStage(res *session.Result, name string) error {
	fmt.Printf("%s  %s  %s  %s\n",
		plot.HeaderStyle.Render(string(res.Mode)),
		plot.Metric("span", fmt.Sprintf("[%g, %g] h", res.Start, res.Stop)),
		plot.Metric("samples", strconv.Itoa(res.Table.Len())),
		plot.Metric("elapsed", res.Elapsed.Round(time.Microsecond).String()),
	)
	if res.RenderErr != nil {
		fmt.Fprintln(os.Stderr, plot.Warning.Render("plot:"), res.RenderErr)
	}
	if !save {
		return nil
	}

	store := storage.New(a.cfg.DataDir)
	if err := store.Init(); err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}

	layout := ""
	if l, ok := a.session.Layout(); ok {
		layout = l.Name
	}
	final := make(map[string]float64)
	for k, v := range a.session.CurrentState() {
		if f, ok := v.(float64); ok {
			final[k] = f
		}
	}
	pars := make(map[string]any)
	for _, e := range a.session.Entries() {
		pars[e.Name] = e.Value
	}
	if name != "" {
		pars["stage"] = name
	}

	id, err := store.Save(storage.RunMetadata{
		Session:    a.session.ID(),
		Model:      a.model.Name(),
		Mode:       string(res.Mode),
		Start:      res.Start,
		Stop:       res.Stop,
		Integrator: a.cfg.Integrator,
		Intervals:  a.cfg.NCP,
		Layout:     layout,
		Parameters: pars,
		FinalState: final,
	}, res.Table)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	fmt.Printf("  saved: %s\n", id)
	return nil
}

// finish renders the plot and the final state.
func (a *app) finish() error {
	if !noPlot {
		if err := a.canvas.Render(os.Stdout); err != nil {
			return err
		}
	}

	state := a.session.CurrentState()
	names := make([]string, 0, len(state))
	for k := range state {
		names = append(names, k)
	}
	sort.Strings(names)

	fmt.Println(plot.HeaderStyle.Render("final state"))
	for _, k := range names {
		fmt.Printf("  %s\n", plot.Metric(k, fmt.Sprintf("%.6g", state[k])))
	}
	fmt.Printf("  %s\n", plot.Metric("time", fmt.Sprintf("%g h", a.session.Clock())))
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	if scenario.Model != "" && !cmd.Flags().Changed("model") {
		modelName = scenario.Model
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, newMetrics(cmd.Context()))
	if err != nil {
		return err
	}

	fmt.Println(plot.TitleStyle.Render(fmt.Sprintf("scenario: %s", scenario.Name)))
	if scenario.Description != "" {
		fmt.Println(plot.Subtle.Render(scenario.Description))
	}

	_, err = automation.RunScenario(cmd.Context(), scenario, a.session,
		func(i int, st automation.Stage, res *session.Result) error {
			return a.afterStage(res, st.SaveAs)
		})
	if err != nil {
		return err
	}
	return a.finish()
}

func runExplore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// the TUI owns the terminal, keep logs off it
	cfg.LogLevel = "error"
	a, err := newApp(cfg, newMetrics(cmd.Context()))
	if err != nil {
		return err
	}
	return tui.Run(cmd.Context(), a.session, a.canvas, cfg.Duration)
}

// parseAxis reads name=lo:hi:n or name=v1,v2,...
func parseAxis(s string) (sweep.Axis, error) {
	name, rng, ok := strings.Cut(s, "=")
	if !ok || name == "" || rng == "" {
		return sweep.Axis{}, fmt.Errorf("expected name=lo:hi:n or name=v1,v2, got %q", s)
	}
	if parts := strings.Split(rng, ":"); len(parts) == 3 {
		lo, err1 := strconv.ParseFloat(parts[0], 64)
		hi, err2 := strconv.ParseFloat(parts[1], 64)
		n, err3 := strconv.Atoi(parts[2])
		if err := errors.Join(err1, err2, err3); err != nil {
			return sweep.Axis{}, fmt.Errorf("axis %q: %w", s, err)
		}
		if n < 1 {
			return sweep.Axis{}, fmt.Errorf("axis %q: need at least one point", s)
		}
		return sweep.Axis{Param: name, Values: sweep.Linspace(lo, hi, n)}, nil
	}

	var values []float64
	for _, v := range strings.Split(rng, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return sweep.Axis{}, fmt.Errorf("axis %q: %w", s, err)
		}
		values = append(values, f)
	}
	return sweep.Axis{Param: name, Values: values}, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	if len(sweepAxes) == 0 {
		return fmt.Errorf("sweep needs at least one --axis")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	axes := make([]sweep.Axis, 0, len(sweepAxes))
	for _, s := range sweepAxes {
		ax, err := parseAxis(s)
		if err != nil {
			return err
		}
		axes = append(axes, ax)
	}

	metrics := newMetrics(cmd.Context())
	factory := func() (*session.Session, error) {
		a, err := newApp(cfg, metrics, session.WithOutputs(sweepRank))
		if err != nil {
			return nil, err
		}
		return a.session, nil
	}

	points, err := sweep.Run(cmd.Context(), factory, sweep.Config{
		Axes:       axes,
		Duration:   cfg.Duration,
		Rank:       sweepRank,
		Workers:    sweepWorkers,
		Descending: sweepDesc,
	})
	if err != nil {
		return err
	}

	fmt.Println(plot.TitleStyle.Render(fmt.Sprintf("sweep: %d points ranked by %s", len(points), sweepRank)))
	fmt.Printf("%-4s %-40s %s\n", "#", "parameters", sweepRank)
	for i, p := range points {
		if p.Err != nil {
			fmt.Printf("%-4d %-40s %s\n", i+1, formatPoint(p.Params), plot.Warning.Render(p.Err.Error()))
			continue
		}
		fmt.Printf("%-4d %-40s %.6g\n", i+1, formatPoint(p.Params), p.Final)
	}
	return nil
}

func formatPoint(p map[string]float64) string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%g", k, p[k])
	}
	return strings.Join(parts, " ")
}

// layoutFor resolves a layout name against the built-ins and an optional file.
func layoutFor(name, file string) (diagram.Layout, error) {
	var extra map[string]diagram.Layout
	if file != "" {
		var err error
		if extra, err = diagram.LoadLayouts(filepath.Clean(file)); err != nil {
			return diagram.Layout{}, err
		}
	}
	return diagram.GetLayout(name, extra)
}
