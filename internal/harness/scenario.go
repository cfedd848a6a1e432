package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines an analysis test scenario: a type graph written in the
// CUE description format and facts the engine must establish about it.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Graph is the path of a CUE graph description, relative to the
	// scenario file. Exactly one of Graph and Source must be set.
	Graph string `yaml:"graph,omitempty"`

	// Source is an inline CUE graph description.
	Source string `yaml:"source,omitempty"`

	// Assertions are the facts to check. Nodes are named "<unit>:<label>",
	// or by a bare label declared in exactly one unit.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion is one fact about the analysed graph.
type Assertion struct {
	// Type specifies the assertion type, see the Assert* constants.
	Type string `yaml:"type"`

	// A and B are the nodes compared by equal, unequal, same_code and
	// same_class.
	A string `yaml:"a,omitempty"`
	B string `yaml:"b,omitempty"`

	// Node is the subject of single-node assertions.
	Node string `yaml:"node,omitempty"`

	// Name is the expected abstract name (abstract_name).
	Name string `yaml:"name,omitempty"`

	// Size is the expected SCC size (scc_size); 0 means not on a cycle.
	Size int `yaml:"size,omitempty"`

	// Count is the expected number of classes (class_count) or matching
	// stored summaries (stored).
	Count int `yaml:"count,omitempty"`

	// Where holds query filter terms such as "kind=struct" (stored).
	Where []string `yaml:"where,omitempty"`
}

// Assertion type constants.
const (
	AssertEqual        = "equal"
	AssertUnequal      = "unequal"
	AssertComplete     = "complete"
	AssertIncomplete   = "incomplete"
	AssertSameCode     = "same_code"
	AssertAbstractName = "abstract_name"
	AssertSCCSize      = "scc_size"
	AssertSameClass    = "same_class"
	AssertClassCount   = "class_count"
	AssertStored       = "stored"
)

// LoadScenario reads and parses a scenario YAML file. A relative Graph
// path is resolved against the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Graph != "" && !filepath.IsAbs(scenario.Graph) {
		scenario.Graph = filepath.Join(filepath.Dir(path), scenario.Graph)
	}
	if scenario.Graph != "" {
		if _, err := os.Stat(scenario.Graph); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: graph file not found: %s", scenario.Graph)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML held in memory. Graph paths are left
// as written.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
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
	if (s.Graph == "") == (s.Source == "") {
		return fmt.Errorf("exactly one of graph and source is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEqual, AssertUnequal, AssertSameCode, AssertSameClass:
		if a.A == "" || a.B == "" {
			return fmt.Errorf("assertions[%d]: a and b are required for %s", index, a.Type)
		}
	case AssertComplete, AssertIncomplete:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for %s", index, a.Type)
		}
	case AssertAbstractName:
		if a.Node == "" || a.Name == "" {
			return fmt.Errorf("assertions[%d]: node and name are required for abstract_name", index)
		}
	case AssertSCCSize:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for scc_size", index)
		}
		if a.Size < 0 || a.Size == 1 {
			return fmt.Errorf("assertions[%d]: size must be 0 or at least 2 for scc_size", index)
		}
	case AssertClassCount:
		if a.Count < 1 {
			return fmt.Errorf("assertions[%d]: count must be positive for class_count", index)
		}
	case AssertStored:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for stored", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
