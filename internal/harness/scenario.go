package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/qgraph/internal/request"
)

// Scenario is a recorded conversation with the engine: requests run in
// order against a fresh database, each with an optional expectation,
// followed by assertions on the statements issued and the final data.
//
//	name: nested-create
//	description: a user is created together with two posts
//	schema: ../schemas/blog.cue
//	steps:
//	  - request:
//	      operations:
//	        - op: createOneUser
//	          args: {data: {email: a@x, posts: {create: [{title: a}]}}}
//	    expect:
//	      result: {email: a@x}
//	assertions:
//	  - type: trace_count
//	    statement: Create Post
//	    count: 1
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Schema is a CUE file or directory, relative to the scenario file.
	Schema string `yaml:"schema,omitempty"`

	// SchemaSource is an inline CUE schema, used instead of Schema.
	SchemaSource string `yaml:"schema_source,omitempty"`

	// Setup holds request documents that must succeed before the steps.
	// Their statements are not part of the trace.
	Setup []yaml.Node `yaml:"setup,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`

	setup []*request.Document
}

// Step is one request document and what it must produce.
type Step struct {
	Name    string    `yaml:"name,omitempty"`
	Request yaml.Node `yaml:"request"`
	Expect  *Expect   `yaml:"expect,omitempty"`

	doc *request.Document
}

// Expect describes the outcome of a step. Without Error the step must
// succeed.
type Expect struct {
	// Error is the expected error code, e.g. P2002.
	Error string `yaml:"error,omitempty"`

	// Result is matched as a subset of the response: objects may carry
	// extra keys, lists must have the same length.
	Result any `yaml:"result,omitempty"`
}

// Assertion validates the trace or the final data.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count,
	// final_state.
	Type string `yaml:"type"`

	// Statement is a statement prefix, such as "Create Post" or "BEGIN"
	// (trace_contains, trace_count).
	Statement string `yaml:"statement,omitempty"`

	// Statements are prefixes that must appear in order (trace_order).
	Statements []string `yaml:"statements,omitempty"`

	// Count is the exact number of matching statements (trace_count).
	Count int `yaml:"count,omitempty"`

	// Model, Where and Expect select exactly one record and match it as a
	// subset (final_state). A nil Expect asserts that nothing matches.
	Model  string         `yaml:"model,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads a scenario file. Unknown keys are rejected, and the
// schema path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Schema != "" && !filepath.IsAbs(sc.Schema) {
		sc.Schema = filepath.Join(filepath.Dir(path), sc.Schema)
	}
	return sc, nil
}

// ParseScenario parses and validates a scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if (s.Schema == "") == (s.SchemaSource == "") {
		return fmt.Errorf("exactly one of schema and schema_source is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i := range s.Setup {
		doc, err := request.DocumentFromNode(&s.Setup[i])
		if err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		s.setup = append(s.setup, doc)
	}
	for i := range s.Steps {
		step := &s.Steps[i]
		if step.Request.Kind == 0 {
			return fmt.Errorf("steps[%d]: request is required", i)
		}
		doc, err := request.DocumentFromNode(&step.Request)
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		step.doc = doc
		if step.Expect != nil && step.Expect.Error != "" && step.Expect.Result != nil {
			return fmt.Errorf("steps[%d].expect: error and result are exclusive", i)
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Statement == "" {
			return fmt.Errorf("assertions[%d]: statement is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Statements) == 0 {
			return fmt.Errorf("assertions[%d]: statements list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Statement == "" {
			return fmt.Errorf("assertions[%d]: statement is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Model == "" {
			return fmt.Errorf("assertions[%d]: model is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
