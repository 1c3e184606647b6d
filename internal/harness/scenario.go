package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yu-iskw/dbt-fusion/internal/node"
	"github.com/yu-iskw/dbt-fusion/internal/schema"
	"github.com/yu-iskw/dbt-fusion/internal/selector"
)

// Backends a case can run on.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Scenario defines a selection conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Graph enables parents/children expansion and indirect test selection.
	// Graph scenarios run on the in-memory backend only.
	Graph bool `yaml:"graph,omitempty"`

	// Nodes is the snapshot every case is evaluated against.
	Nodes []*node.Node `yaml:"nodes"`

	// Selectors are the named selector definitions, in selectors.yml form.
	Selectors []schema.Definition `yaml:"selectors,omitempty"`

	// Cases are evaluated in order.
	Cases []Case `yaml:"cases"`
}

// Case is one selection and its expected outcome.
type Case struct {
	Name string `yaml:"name"`

	// Selector names a definition from Scenario.Selectors.
	Selector string `yaml:"selector,omitempty"`

	// Default resolves the registry's default selector.
	Default bool `yaml:"default,omitempty"`

	// Select and Exclude are bare selection strings, as on the command line.
	Select  []string `yaml:"select,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`

	// IndirectSelection overrides the mode of every atom in the expression.
	IndirectSelection string `yaml:"indirect_selection,omitempty"`

	// Backends restricts where the case runs. Defaults to both backends,
	// or memory only for graph scenarios.
	Backends []string `yaml:"backends,omitempty"`

	// Expect is the exact set of selected unique ids.
	Expect []string `yaml:"expect,omitempty"`

	// ExpectError is a substring of the expected resolution error.
	ExpectError string `yaml:"expect_error,omitempty"`

	// ExpectWarnings are substrings of expected parser warnings, in order.
	ExpectWarnings []string `yaml:"expect_warnings,omitempty"`
}

// backends returns the case's backends with defaults applied.
func (c *Case) backends(s *Scenario) []string {
	if len(c.Backends) > 0 {
		return c.Backends
	}
	if s.Graph {
		return []string{BackendMemory}
	}
	return []string{BackendMemory, BackendSQLite}
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields (catches typos like "expected:" vs "expect:")
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

// LoadScenarios loads every *.yaml and *.yml scenario in dir, sorted by
// file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks required fields.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("cases must contain at least one case")
	}

	ids := make(map[string]bool, len(s.Nodes))
	for i, n := range s.Nodes {
		if n == nil || n.UniqueID == "" {
			return fmt.Errorf("nodes[%d]: unique_id is required", i)
		}
		if ids[n.UniqueID] {
			return fmt.Errorf("nodes[%d]: duplicate unique_id %q", i, n.UniqueID)
		}
		ids[n.UniqueID] = true
	}

	names := make(map[string]bool, len(s.Cases))
	for i := range s.Cases {
		c := &s.Cases[i]
		if err := validateCase(s, c); err != nil {
			return fmt.Errorf("cases[%d]: %w", i, err)
		}
		if names[c.Name] {
			return fmt.Errorf("cases[%d]: duplicate case name %q", i, c.Name)
		}
		names[c.Name] = true
	}
	return nil
}

func validateCase(s *Scenario, c *Case) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}

	sources := 0
	if c.Selector != "" {
		sources++
	}
	if c.Default {
		sources++
	}
	if len(c.Select) > 0 || len(c.Exclude) > 0 {
		sources++
	}
	if sources > 1 {
		return fmt.Errorf("only one of selector, default or select/exclude may be set")
	}

	if c.IndirectSelection != "" {
		if _, err := selector.ParseIndirectSelection(c.IndirectSelection); err != nil {
			return err
		}
	}

	for _, b := range c.backends(s) {
		switch b {
		case BackendMemory:
		case BackendSQLite:
			if s.Graph {
				return fmt.Errorf("backend %q cannot evaluate graph scenarios", b)
			}
		default:
			return fmt.Errorf("unknown backend %q (want %s)", b, strings.Join([]string{BackendMemory, BackendSQLite}, " or "))
		}
	}

	if c.ExpectError == "" && c.Expect == nil {
		return fmt.Errorf("expect or expect_error is required")
	}
	return nil
}
