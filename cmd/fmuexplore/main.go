package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/san-kum/fmuexplore/internal/config"
	"github.com/san-kum/fmuexplore/internal/diagram"
	"github.com/san-kum/fmuexplore/internal/engine"
	"github.com/san-kum/fmuexplore/internal/integrators"
	"github.com/san-kum/fmuexplore/internal/logging"
	"github.com/san-kum/fmuexplore/internal/model"
	"github.com/san-kum/fmuexplore/internal/params"
	"github.com/san-kum/fmuexplore/internal/plot"
	"github.com/san-kum/fmuexplore/internal/session"
	"github.com/san-kum/fmuexplore/internal/telemetry"
)

var (
	dataDir     string
	configFile  string
	preset      string
	logLevel    string
	modelName   string
	integrator  string
	duration    float64
	ncp         int
	layoutName  string
	layoutFile  string
	parFlags    []string
	initFlags   []string
	save        bool
	noPlot      bool
	plotWidth   int
	plotHeight  int
	metricsAddr string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "fmuexplore",
		Short:         "interactive simulation sessions with continued runs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "trace, debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&modelName, "model", config.DefaultModel, "model name")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")

	runCmd := &cobra.Command{
		Use:   "run [stage...]",
		Short: "run stages such as fresh:8 continue:2 on one session",
		RunE:  runStages,
	}
	sessionFlags(runCmd)
	runCmd.Flags().BoolVar(&save, "save", false, "save every stage under the data directory")
	runCmd.Flags().BoolVar(&noPlot, "no-plot", false, "skip the terminal plot")

	exploreCmd := &cobra.Command{
		Use:   "explore",
		Short: "interactive session with live panels",
		RunE:  runExplore,
	}
	sessionFlags(exploreCmd)

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted multi-stage scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	sessionFlags(scenarioCmd)
	scenarioCmd.Flags().BoolVar(&save, "save", false, "save every stage under the data directory")
	scenarioCmd.Flags().BoolVar(&noPlot, "no-plot", false, "skip the terminal plot")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run fresh sessions over a parameter grid in parallel",
		RunE:  runSweep,
	}
	sessionFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepAxes, "axis", nil, "swept parameter as name=lo:hi:n or name=v1,v2,...")
	sweepCmd.Flags().StringVar(&sweepRank, "rank", "bioreactor.c[1]", "variable whose final value ranks the points")
	sweepCmd.Flags().IntVar(&sweepWorkers, "workers", 0, "parallel sessions (0 = number of CPUs)")
	sweepCmd.Flags().BoolVar(&sweepDesc, "desc", true, "largest final value first")

	describeCmd := &cobra.Command{
		Use:   "describe [name...]",
		Short: "description, unit and value of parameters or variables",
		Args:  cobra.MinimumNArgs(1),
		RunE:  describeNames,
	}
	sessionFlags(describeCmd)

	dispCmd := &cobra.Command{
		Use:   "disp [filter]",
		Short: "list parameters whose name or location contains filter",
		Args:  cobra.MaximumNArgs(1),
		RunE:  dispParams,
	}
	sessionFlags(dispCmd)

	partsCmd := &cobra.Command{
		Use:   "parts",
		Short: "list the model's components",
		RunE:  listParts,
	}

	layoutsCmd := &cobra.Command{
		Use:   "layouts",
		Short: "list plot layouts",
		RunE:  listLayouts,
	}
	layoutsCmd.Flags().StringVar(&layoutFile, "layout-file", "", "yaml file with extra layouts")

	infoCmd := &cobra.Command{
		Use:   "system-info",
		Short: "model, engine and state pairing",
		RunE:  systemInfo,
	}
	infoCmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets for the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(modelName)
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", modelName)
				return nil
			}
			fmt.Printf("presets for %s:\n", modelName)
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "plot a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
	showCmd.Flags().StringVar(&layoutName, "layout", "", "layout (default: the one the run used)")
	showCmd.Flags().StringVar(&layoutFile, "layout-file", "", "yaml file with extra layouts")
	showCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")
	showCmd.Flags().IntVar(&plotHeight, "height", 10, "plot height")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a saved run as csv or json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "csv or json")

	rootCmd.AddCommand(runCmd, exploreCmd, scenarioCmd, sweepCmd, describeCmd, dispCmd, partsCmd,
		layoutsCmd, infoCmd, presetsCmd, listCmd, showCmd, exportCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, plot.Warning.Render("error:"), err)
		stop()
		os.Exit(1)
	}
}

func sessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator (rk4, euler)")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration of a stage without explicit length")
	cmd.Flags().IntVar(&ncp, "ncp", config.DefaultNCP, "output intervals per run")
	cmd.Flags().StringVar(&layoutName, "layout", config.DefaultLayout, "plot layout")
	cmd.Flags().StringVar(&layoutFile, "layout-file", "", "yaml file with extra layouts")
	cmd.Flags().StringArrayVar(&parFlags, "par", nil, "parameter update name=value (repeatable)")
	cmd.Flags().StringArrayVar(&initFlags, "init", nil, "initial value name_start=value (repeatable)")
	cmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")
	cmd.Flags().IntVar(&plotHeight, "height", 10, "plot height")
}

// loadConfig layers preset, config file and explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(modelName, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(modelName))
		}
		*cfg = *p
		cfg.Parameters = nil
		cfg.Init = nil
		cfg.Merge(p)
	}

	if configFile != "" {
		fileCfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		pars, inits := cfg.Parameters, cfg.Init
		*cfg = *fileCfg
		cfg.Parameters, cfg.Init = pars, inits
		cfg.Merge(fileCfg)
	}

	flags := cmd.Flags()
	if flags.Changed("model") || (preset == "" && configFile == "") {
		cfg.Model = modelName
	}
	if flags.Changed("data") || (preset == "" && configFile == "") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("ncp") {
		cfg.NCP = ncp
	}
	if flags.Changed("layout") {
		cfg.Layout = layoutName
	}
	if flags.Changed("layout-file") {
		cfg.LayoutFile = layoutFile
	}

	pars, err := parseAssignments(parFlags)
	if err != nil {
		return nil, err
	}
	inits, err := parseAssignments(initFlags)
	if err != nil {
		return nil, err
	}
	cfg.Merge(&config.Config{Parameters: pars, Init: inits})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseAssignments reads name=value pairs. Values are numbers, booleans or
// strings, in that order of preference.
func parseAssignments(list []string) (map[string]any, error) {
	if len(list) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(list))
	for _, a := range list {
		name, raw, ok := strings.Cut(a, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("expected name=value, got %q", a)
		}
		out[name] = parseValue(strings.TrimSpace(raw))
	}
	return out, nil
}

func parseValue(raw string) any {
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

type app struct {
	cfg     *config.Config
	model   model.Model
	session *session.Session
	canvas  *plot.Canvas
}

// newApp builds the model, engine and session described by cfg and applies
// its parameter and initial value updates.
func newApp(cfg *config.Config, metrics *telemetry.Metrics, opts ...session.Option) (*app, error) {
	log := logging.NewLogger(cfg.LogLevel, os.Stderr)

	m, err := model.NewRegistry().Get(cfg.Model)
	if err != nil {
		return nil, err
	}
	integ, ok := integrators.ByName(cfg.Integrator)
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", cfg.Integrator)
	}

	var extra map[string]diagram.Layout
	if cfg.LayoutFile != "" {
		if extra, err = diagram.LoadLayouts(cfg.LayoutFile); err != nil {
			return nil, err
		}
	}

	// selecting the layout below switches the canvas to it
	canvas := plot.NewCanvas(diagram.Layout{}, plotWidth, plotHeight)

	eng := engine.NewODE(m, engine.WithIntegrator(integ), engine.WithLogger(log))
	opts = append([]session.Option{
		session.WithLogger(log),
		session.WithMetrics(metrics),
		session.WithRenderer(canvas),
		session.WithIntervals(cfg.NCP),
		session.WithLayouts(extra),
	}, opts...)
	s, err := session.New(m, eng, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Layout != "" {
		if err := s.SelectLayout(cfg.Layout); err != nil {
			return nil, err
		}
	}

	a := &app{cfg: cfg, model: m, session: s, canvas: canvas}
	if err := a.update(cfg.Parameters, cfg.Init); err != nil {
		return nil, err
	}
	return a, nil
}

// update applies parameter and seed updates as one batch. Rejected keys stop
// the command once both batches are applied; violated requirements are only
// reported and never stop a run.
func (a *app) update(pars, inits map[string]any) error {
	if len(pars) == 0 && len(inits) == 0 {
		return nil
	}
	err := a.session.Apply(pars, inits)
	var val *params.ValidationError
	if errors.As(err, &val) {
		fmt.Fprintln(os.Stderr, plot.Warning.Render("warning:"), val)
	}
	var rej *params.RejectedKeyError
	if errors.As(err, &rej) {
		return rej
	}
	return nil
}

// newMetrics registers the run metrics on a fresh registry and serves it
// when --metrics-addr is set.
func newMetrics(ctx context.Context) *telemetry.Metrics {
	reg := prometheus.NewRegistry()
	if metricsAddr != "" {
		serveMetrics(ctx, reg, metricsAddr)
	}
	return telemetry.New(reg)
}

func serveMetrics(ctx context.Context, reg *prometheus.Registry, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintln(os.Stderr, plot.Warning.Render("metrics:"), err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()
}
