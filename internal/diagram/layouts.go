package diagram

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

func ylim(lo, hi float64) []float64 { return []float64{lo, hi} }

// Layouts is the built-in layout table for the fed-batch model.
var Layouts = map[string]Layout{
	"Overview": {
		Name: "Overview", Title: "Yeast fedbatch cultivation", Rows: 6, Cols: 2,
		Panels: []Panel{
			{ID: "G", Label: "G [g/L]"},
			{ID: "qG", Label: "qG [g/(g*h)]"},
			{ID: "X", Label: "X [g/L]"},
			{ID: "mu", Label: "mu [1/h]"},
			{ID: "DO", Label: "DO [%]"},
			{ID: "OUR", Label: "OUR [g/h]"},
			{ID: "N", Label: "N [rpm]", YLim: ylim(0, 2500)},
			{ID: "Kla", Label: "Kla [1/h]"},
			{ID: "F", Label: "F [L/h]"},
			{ID: "feed", Label: "Feed tank [L]"},
			{ID: "V", Label: "V [L]", YLim: ylim(0, 9)},
		},
		Directives: []Directive{
			{Panel: "G", Y: "bioreactor.c[2]", Color: "b"},
			{Panel: "qG", Y: "bioreactor.culture.qG", Color: "r"},
			{Panel: "X", Y: "bioreactor.c[1]", Color: "b"},
			{Panel: "mu", Y: "bioreactor.culture.mu", Color: "b"},
			{Panel: "DO", Y: "DOsensor.out", Color: "b"},
			{Panel: "DO", Y: "DO_setpoint.out", Color: "y", Style: "--"},
			{Panel: "OUR", Y: "bioreactor.OUR", Color: "b"},
			{Panel: "N", Y: "bioreactor.N", Color: "c", Kind: KindStep},
			{Panel: "Kla", Y: "bioreactor.gas_liquid_transfer.Kla_O2", Color: "b"},
			{Panel: "F", Y: "bioreactor.inlet[1].F", Color: "c"},
			{Panel: "feed", Y: "feedtank.V", Color: "b"},
			{Panel: "V", Y: "bioreactor.V", Color: "b"},
			{Panel: "V", Y: "bioreactor.V_tot", Color: "y", Style: "--"},
		},
	},
	"Focus DO-control": {
		Name: "Focus DO-control", Title: "Yeast fedbatch cultivation", Rows: 4, Cols: 1,
		Panels: []Panel{
			{ID: "DO", Label: "DO [%]"},
			{ID: "N", Label: "N [rpm]", YLim: ylim(0, 2500)},
			{ID: "OUR", Label: "OUR [g/h]"},
			{ID: "F", Label: "F [L/h]"},
		},
		Directives: []Directive{
			{Panel: "DO", Y: "DOsensor.out", Color: "b"},
			{Panel: "DO", Y: "DO_setpoint.out", Color: "r", Style: "--"},
			{Panel: "N", Y: "bioreactor.N", Color: "b", Kind: KindStep},
			{Panel: "OUR", Y: "bioreactor.OUR", Color: "b"},
			{Panel: "F", Y: "bioreactor.inlet[1].F", Color: "b"},
		},
	},
}

// GetLayout returns a built-in or extra layout by name.
func GetLayout(name string, extra map[string]Layout) (Layout, error) {
	if l, ok := extra[name]; ok {
		return l, nil
	}
	if l, ok := Layouts[name]; ok {
		return l, nil
	}
	return Layout{}, fmt.Errorf("diagram: unknown layout %q (available: %v)", name, ListLayouts(extra))
}

func ListLayouts(extra map[string]Layout) []string {
	seen := make(map[string]bool)
	names := make([]string, 0, len(Layouts)+len(extra))
	for _, m := range []map[string]Layout{Layouts, extra} {
		for n := range m {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	sort.Strings(names)
	return names
}

// LoadLayouts reads a YAML list of layouts and validates each.
func LoadLayouts(path string) (map[string]Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var list []Layout
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("diagram: %s: %w", path, err)
	}
	out := make(map[string]Layout, len(list))
	for _, l := range list {
		if err := l.Validate(); err != nil {
			return nil, err
		}
		out[l.Name] = l
	}
	return out, nil
}
