// Package automation runs scripted multi-stage sessions from YAML scenarios.
package automation

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/fmuexplore/internal/params"
	"github.com/san-kum/fmuexplore/internal/session"
)

var validate = validator.New()

// Scenario is an ordered list of stages run on one session.
type Scenario struct {
	Name        string  `yaml:"name" validate:"required"`
	Description string  `yaml:"description"`
	Model       string  `yaml:"model"`
	Layout      string  `yaml:"layout"`
	Stages      []Stage `yaml:"stages" validate:"required,min=1,dive"`
}

// Stage applies its updates, optionally switches layout, then runs.
type Stage struct {
	Mode     string         `yaml:"mode" validate:"oneof=fresh continue"`
	Duration float64        `yaml:"duration" validate:"gt=0"`
	Par      map[string]any `yaml:"par,omitempty"`
	Init     map[string]any `yaml:"init,omitempty"`
	Layout   string         `yaml:"layout,omitempty"`
	SaveAs   string         `yaml:"save_as,omitempty"`
}

func (s *Scenario) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return nil
}

// LoadScenario loads and validates a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}

// StageFunc is called after each successful stage.
type StageFunc func(i int, stage Stage, res *session.Result) error

// RunScenario executes every stage in order on s. Unknown keys in a stage
// stop the scenario; invariant violations are left to the run to refuse.
func RunScenario(ctx context.Context, scenario *Scenario, s *session.Session, after StageFunc) ([]*session.Result, error) {
	results := make([]*session.Result, 0, len(scenario.Stages))

	if scenario.Layout != "" {
		if err := s.SelectLayout(scenario.Layout); err != nil {
			return results, err
		}
	}

	for i, stage := range scenario.Stages {
		if err := applyStage(s, stage); err != nil {
			return results, fmt.Errorf("stage %d: %w", i+1, err)
		}

		var (
			res *session.Result
			err error
		)
		switch session.Mode(stage.Mode) {
		case session.ModeFresh:
			res, err = s.Fresh(ctx, stage.Duration)
		case session.ModeContinue:
			res, err = s.Continue(ctx, stage.Duration)
		default:
			err = fmt.Errorf("unknown mode %q", stage.Mode)
		}
		if err != nil {
			return results, fmt.Errorf("stage %d %s: %w", i+1, stage.Mode, err)
		}
		results = append(results, res)

		if after != nil {
			if err := after(i, stage, res); err != nil {
				return results, fmt.Errorf("stage %d: %w", i+1, err)
			}
		}
	}

	return results, nil
}

func applyStage(s *session.Session, stage Stage) error {
	if stage.Layout != "" {
		if err := s.SelectLayout(stage.Layout); err != nil {
			return err
		}
	}
	if len(stage.Par) == 0 && len(stage.Init) == 0 {
		return nil
	}
	return fatal(s.Apply(stage.Par, stage.Init))
}

// fatal keeps rejected keys and drops validation diagnostics.
func fatal(err error) error {
	var rej *params.RejectedKeyError
	if errors.As(err, &rej) {
		return rej
	}
	return nil
}
