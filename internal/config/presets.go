package config

var Presets = map[string]map[string]*Config{
	"fedbatch": {
		"default": {
			Model: "fedbatch", Integrator: "rk4", Duration: 8.0, NCP: 500,
			Layout: "Overview", LogLevel: "info", DataDir: DefaultDataDir,
		},
		"do-control": {
			Model: "fedbatch", Integrator: "rk4", Duration: 6.0, NCP: 500,
			Layout: "Focus DO-control", LogLevel: "info", DataDir: DefaultDataDir,
			Parameters: map[string]any{"K": 20.0, "Ti": 0.2, "DO_setpoint": 30.0},
		},
		"batch": {
			Model: "fedbatch", Integrator: "rk4", Duration: 6.0, NCP: 300,
			Layout: "Overview", LogLevel: "info", DataDir: DefaultDataDir,
			Parameters: map[string]any{"F_startExp": 0.0, "F_max": 0.0},
		},
		"high-feed": {
			Model: "fedbatch", Integrator: "rk4", Duration: 10.0, NCP: 500,
			Layout: "Overview", LogLevel: "info", DataDir: DefaultDataDir,
			Parameters: map[string]any{"mu_feed": 0.2, "F_max": 0.5},
		},
	},
}

func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return cfg
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	return sortedNames(modelPresets)
}
