package application

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jasher4994/judgesync/internal/domain"
)

// judgeSuite is the on-disk shape of a judge configuration suite.
//
//	judges:
//	  - name: strict
//	    prompt: "You are a very strict evaluator."
//	    model: gpt-4o
//	    temperature: 0.0
//	  - name: lenient
//	    prompt: "Focus on the positive aspects of responses."
//	    temperature: 0.7
type judgeSuite struct {
	Judges []domain.JudgeConfig `yaml:"judges" validate:"required,min=1,dive"`
}

// LoadJudgeConfigs reads a YAML suite of judge configurations from path.
// Each configuration is validated (name and prompt required, temperature in
// range) and duplicates by value are rejected before any judge call is made.
func LoadJudgeConfigs(path string) ([]domain.JudgeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading judge suite %s: %w", path, err)
	}
	return ParseJudgeConfigs(data)
}

// ParseJudgeConfigs decodes and validates a YAML judge suite.
func ParseJudgeConfigs(data []byte) ([]domain.JudgeConfig, error) {
	var suite judgeSuite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("parsing judge suite: %w", err)
	}

	if err := validator.New().Struct(suite); err != nil {
		return nil, fmt.Errorf("invalid judge suite: %w", err)
	}

	seen := make(map[string]struct{}, len(suite.Judges))
	for _, cfg := range suite.Judges {
		fp := cfg.Fingerprint()
		if _, dup := seen[fp]; dup {
			return nil, fmt.Errorf("%w: %q", domain.ErrDuplicateConfig, cfg.Name)
		}
		seen[fp] = struct{}{}
	}
	return suite.Judges, nil
}
