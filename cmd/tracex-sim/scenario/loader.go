package scenario

import (
	"fmt"

	"github.com/arloliu/fuda"
)

// LoadFromFile loads and validates a scenario from a YAML or JSON file.
func LoadFromFile(path string) (*Scenario, error) {
	var s Scenario
	if err := fuda.LoadFile(path, &s); err != nil {
		return nil, fmt.Errorf("failed to load scenario file: %w", err)
	}

	return validated(&s)
}

// Parse loads and validates a scenario from YAML or JSON bytes.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := fuda.LoadBytes(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}

	return validated(&s)
}

func validated(s *Scenario) (*Scenario, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}
