package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tessellate-cad/topotrack/internal/topo"
)

// Scenario defines a conformance test scenario: one feature's
// regeneration history plus assertions on the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Feature is the feature id all regenerations apply to.
	Feature string `yaml:"feature"`

	// Threshold overrides the matching confidence threshold.
	// Zero means the tracker default.
	Threshold float64 `yaml:"threshold,omitempty"`

	// Regenerations is the ordered kernel output sequence.
	Regenerations []Regeneration `yaml:"regenerations"`

	// Assertions validate outcomes and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Regeneration is one kernel enumeration of the feature's topology.
type Regeneration struct {
	// Operation optionally names the modeling step; when set, the
	// regeneration runs inside a matching operation context.
	Operation string `yaml:"operation,omitempty"`

	Faces    []topo.EntityRecord `yaml:"faces,omitempty"`
	Edges    []topo.EntityRecord `yaml:"edges,omitempty"`
	Vertices []topo.VertexRecord `yaml:"vertices,omitempty"`

	// Expect optionally pins this regeneration's outcome inline.
	Expect *ExpectedOutcome `yaml:"expect,omitempty"`
}

// ExpectedOutcome pins matched/new/lost counts for one regeneration.
type ExpectedOutcome struct {
	Matched int `yaml:"matched"`
	New     int `yaml:"new"`
	Lost    int `yaml:"lost"`
}

// AnalysisResult converts the regeneration into kernel output form.
func (r Regeneration) AnalysisResult() topo.AnalysisResult {
	return topo.AnalysisResult{
		Faces:    r.Faces,
		Edges:    r.Edges,
		Vertices: r.Vertices,
	}
}

// Assertion validates outcomes or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "outcome": matched/new/lost counts of one regeneration
	// - "alive_count": alive nodes of a type after the final regeneration
	// - "dead_count": dead nodes of a type after the final regeneration
	// - "uuid_stable": uuid at (type, index) unchanged between regenerations
	// - "resolves": (type, index) resolves and round-trips through its uuid
	Type string `yaml:"type"`

	// Regen is the 1-based regeneration number (outcome; default last).
	Regen int `yaml:"regen,omitempty"`

	// Matched/New/Lost are expected counts (outcome).
	Matched int `yaml:"matched,omitempty"`
	New     int `yaml:"new,omitempty"`
	Lost    int `yaml:"lost,omitempty"`

	// EntityType selects face, edge, or vertex.
	EntityType string `yaml:"entity_type,omitempty"`

	// Count is the expected node count (alive_count, dead_count).
	Count int `yaml:"count,omitempty"`

	// Index is the display index under test (uuid_stable, resolves).
	Index int `yaml:"index,omitempty"`

	// FromRegen/ToRegen bound the stability window, 1-based
	// (uuid_stable; defaults: first and last regeneration).
	FromRegen int `yaml:"from_regen,omitempty"`
	ToRegen   int `yaml:"to_regen,omitempty"`
}

// Assertion type constants.
const (
	AssertOutcome    = "outcome"
	AssertAliveCount = "alive_count"
	AssertDeadCount  = "dead_count"
	AssertUUIDStable = "uuid_stable"
	AssertResolves   = "resolves"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Feature == "" {
		return fmt.Errorf("feature is required")
	}
	if len(s.Regenerations) == 0 {
		return fmt.Errorf("regenerations list is required and must be non-empty")
	}
	if s.Threshold < 0 || s.Threshold >= 1 {
		return fmt.Errorf("threshold must be in [0,1), got %v", s.Threshold)
	}

	for i, regen := range s.Regenerations {
		if err := regen.AnalysisResult().Validate(); err != nil {
			return fmt.Errorf("regenerations[%d]: %w", i, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, len(s.Regenerations)); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, regens int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	checkEntityType := func() error {
		if a.EntityType == "" {
			return fmt.Errorf("assertions[%d]: entity_type is required for %s", index, a.Type)
		}
		if _, err := topo.ParseEntityType(a.EntityType); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		return nil
	}

	switch a.Type {
	case AssertOutcome:
		if a.Regen < 0 || a.Regen > regens {
			return fmt.Errorf("assertions[%d]: regen %d out of range (1..%d)", index, a.Regen, regens)
		}
	case AssertAliveCount, AssertDeadCount:
		if err := checkEntityType(); err != nil {
			return err
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertUUIDStable:
		if err := checkEntityType(); err != nil {
			return err
		}
		if a.FromRegen < 0 || a.FromRegen > regens || a.ToRegen < 0 || a.ToRegen > regens {
			return fmt.Errorf("assertions[%d]: regeneration window out of range", index)
		}
	case AssertResolves:
		if err := checkEntityType(); err != nil {
			return err
		}
		if a.Index < 0 {
			return fmt.Errorf("assertions[%d]: index must be non-negative", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
