package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/san-kum/fmuexplore/internal/diagram"
	"github.com/san-kum/fmuexplore/internal/model"
	"github.com/san-kum/fmuexplore/internal/naming"
	"github.com/san-kum/fmuexplore/internal/plot"
)

func describeNames(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, nil)
	if err != nil {
		return err
	}

	var errs []error
	for _, name := range args {
		d, err := a.session.Describe(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Println(d)
	}
	return errors.Join(errs...)
}

func dispParams(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, nil)
	if err != nil {
		return err
	}

	filter := ""
	if len(args) == 1 {
		filter = args[0]
	}
	entries := a.session.Disp(filter)
	if len(entries) == 0 {
		fmt.Println(plot.Subtle.Render("no parameters match " + filter))
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%-20s %-40s %v\n", e.Name, plot.Subtle.Render(e.Location), e.Value)
	}
	if v := a.session.Violations(); len(v) > 0 {
		fmt.Println(plot.Warning.Render("violated: " + strings.Join(v, ", ")))
	}
	return nil
}

func listParts(cmd *cobra.Command, args []string) error {
	m, err := model.NewRegistry().Get(modelName)
	if err != nil {
		return err
	}
	fmt.Println(plot.HeaderStyle.Render(fmt.Sprintf("components of %s", m.Name())))
	for _, p := range model.NewCatalog(m).Parts() {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

func listLayouts(cmd *cobra.Command, args []string) error {
	var extra map[string]diagram.Layout
	if layoutFile != "" {
		var err error
		if extra, err = diagram.LoadLayouts(layoutFile); err != nil {
			return err
		}
	}
	for _, name := range diagram.ListLayouts(extra) {
		l, err := diagram.GetLayout(name, extra)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s\n", plot.HeaderStyle.Render(name), plot.Subtle.Render(l.Title))
		for _, p := range l.Panels {
			fmt.Printf("  %-6s %s\n", p.ID, p.Label)
		}
	}
	return nil
}

func systemInfo(cmd *cobra.Command, args []string) error {
	m, err := model.NewRegistry().Get(modelName)
	if err != nil {
		return err
	}
	pairing, err := naming.NewPairing(naming.NewTranslator(), m.StateNames())
	if err != nil {
		return err
	}

	fmt.Println(plot.TitleStyle.Render("system info"))
	fmt.Printf("  %s\n", plot.Metric("model", m.Name()))
	fmt.Printf("  %s\n", plot.Metric("engine", "ode/"+integrator))
	fmt.Printf("  %s\n", plot.Metric("variables", fmt.Sprint(len(m.Variables()))))
	fmt.Printf("  %s\n", plot.Metric("parameters", fmt.Sprint(len(m.Parameters()))))

	fmt.Println(plot.HeaderStyle.Render("state pairing"))
	for _, st := range pairing.States() {
		seed, _ := pairing.Seed(st)
		fmt.Printf("  %-32s -> %s\n", st, seed)
	}
	if inv := m.Invariants(); len(inv) > 0 {
		fmt.Println(plot.HeaderStyle.Render("requirements"))
		for _, expr := range inv {
			fmt.Printf("  %s\n", expr)
		}
	}
	return nil
}
