package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the golden form of a scenario run: the outcome of every
// step. Statements are left out; scenarios pin those with trace
// assertions, which survive changes to statement rendering.
type Snapshot struct {
	Scenario string       `json:"scenario"`
	Outcomes []TraceEvent `json:"outcomes"`
}

// MarshalSnapshot renders the golden form of a result. Object keys are
// sorted, so the output is stable.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	out, err := json.MarshalIndent(Snapshot{Scenario: name, Outcomes: result.Outcomes()}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// RunWithGolden runs a scenario and compares its snapshot with
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sc *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), sc)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, sc.Name, result)
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
