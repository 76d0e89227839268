package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/san-kum/fmuexplore/internal/config"
	"github.com/san-kum/fmuexplore/internal/diagram"
	"github.com/san-kum/fmuexplore/internal/plot"
	"github.com/san-kum/fmuexplore/internal/storage"
)

var exportFormat string

func listRuns(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	runs, err := store.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	fmt.Printf("%-22s %-10s %-9s %-16s %-8s %s\n", "ID", "MODEL", "MODE", "SPAN", "SAMPLES", "TIMESTAMP")
	for _, r := range runs {
		fmt.Printf("%-22s %-10s %-9s %-16s %-8d %s\n",
			r.ID, r.Model, r.Mode, fmt.Sprintf("[%g, %g]", r.Start, r.Stop), r.Samples,
			r.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// showRun replays a layout against a saved table.
func showRun(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	meta, err := store.Load(args[0])
	if err != nil {
		return err
	}
	tab, err := store.LoadTable(args[0])
	if err != nil {
		return err
	}

	name := layoutName
	if name == "" {
		name = meta.Layout
	}
	if name == "" {
		name = config.DefaultLayout
	}
	layout, err := layoutFor(name, layoutFile)
	if err != nil {
		return err
	}

	log := diagram.NewLog()
	if err := log.Reset(layout); err != nil {
		return err
	}
	canvas := plot.NewCanvas(layout, plotWidth, plotHeight)
	if _, err := log.Replay(tab, canvas); err != nil {
		fmt.Fprintln(os.Stderr, plot.Warning.Render("plot:"), err)
	}

	fmt.Println(plot.TitleStyle.Render(fmt.Sprintf("%s  %s [%g, %g]", meta.ID, meta.Mode, meta.Start, meta.Stop)))
	return canvas.Render(os.Stdout)
}

func exportRun(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	switch exportFormat {
	case "csv":
		tab, err := store.LoadTable(args[0])
		if err != nil {
			return err
		}
		return storage.WriteCSV(os.Stdout, tab)
	case "json":
		meta, err := store.Load(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	default:
		return fmt.Errorf("unknown export format: %s (use csv or json)", exportFormat)
	}
}
