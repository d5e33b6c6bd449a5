package runner

import (
	"fmt"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Scenario is one scripted episode: the task and the model replies to play
// back in order.
type Scenario struct {
	Name      string      `yaml:"name"`
	Task      string      `yaml:"task"`
	Responses []string    `yaml:"responses"`
	MaxSteps  int         `yaml:"max_steps,omitempty"` // overrides the runner policy
	Expect    Expectation `yaml:"expect"`
}

// Expectation is what a passing episode looks like. Unset fields are not
// checked, except Finished which defaults to true.
type Expectation struct {
	Finished    *bool  `yaml:"finished,omitempty"`
	Answer      string `yaml:"answer,omitempty"`
	FailedSteps []int  `yaml:"failed_steps,omitempty"`
}

type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

func (s Scenario) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.Task, validation.Required),
		validation.Field(&s.Responses, validation.Required),
		validation.Field(&s.MaxSteps, validation.Min(0)),
	)
}

// ParseScenarios decodes a scenario document and checks every entry. Names
// must be unique.
func ParseScenarios(data []byte) ([]Scenario, error) {
	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode scenarios: %w", err)
	}
	if len(file.Scenarios) == 0 {
		return nil, fmt.Errorf("decode scenarios: no scenarios defined")
	}

	seen := make(map[string]bool, len(file.Scenarios))
	for i, s := range file.Scenarios {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("scenario %d: %w", i, err)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("scenario %d: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
	}
	return file.Scenarios, nil
}

func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}
	return ParseScenarios(data)
}
