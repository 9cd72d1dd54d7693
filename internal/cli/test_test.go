package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: create-user
description: A user is created and read back.
schema: ../schema.cue
steps:
  - request:
      operations:
        - op: createOneUser
          args: {data: {email: a@x}}
          select: [email]
    expect:
      result: {email: a@x}
assertions:
  - type: trace_contains
    statement: Create User
`

const failingScenario = `
name: wrong-expectation
description: The expected email does not match.
schema: ../schema.cue
steps:
  - request:
      operations:
        - op: createOneUser
          args: {data: {email: a@x}}
          select: [email]
    expect:
      result: {email: b@x}
`

func TestTestCommandPasses(t *testing.T) {
	w := newWorkspace(t)
	w.file(t, "scenarios/create_user.yaml", passingScenario)

	out, err := run(t, "", "test", filepath.Join(w.dir, "scenarios"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ create-user")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommandFailures(t *testing.T) {
	w := newWorkspace(t)
	w.file(t, "scenarios/a_create_user.yaml", passingScenario)
	w.file(t, "scenarios/b_wrong.yaml", failingScenario)
	w.file(t, "scenarios/c_broken.yaml", "name: broken\n")

	out, err := run(t, "", "test", filepath.Join(w.dir, "scenarios"), "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TestResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Scenarios, 3)
	assert.True(t, result.Scenarios[0].Pass)
	assert.Equal(t, "wrong-expectation", result.Scenarios[1].Name)
	assert.Contains(t, result.Scenarios[1].Errors[0], "mismatch at $.email")
	assert.Contains(t, result.Scenarios[2].Errors[0], ErrCodeScenario)
}

func TestTestCommandFilter(t *testing.T) {
	w := newWorkspace(t)
	w.file(t, "scenarios/create_user.yaml", passingScenario)
	w.file(t, "scenarios/wrong.yaml", failingScenario)

	out, err := run(t, "", "test", filepath.Join(w.dir, "scenarios"), "--filter", "create_*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")

	_, err = run(t, "", "test", filepath.Join(w.dir, "scenarios"), "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandGolden(t *testing.T) {
	w := newWorkspace(t)
	w.file(t, "scenarios/create_user.yaml", passingScenario)
	scenarios := filepath.Join(w.dir, "scenarios")
	golden := filepath.Join(w.dir, "golden")

	_, err := run(t, "", "test", scenarios, "--golden", golden)
	require.Error(t, err, "missing golden file fails the scenario")

	_, err = run(t, "", "test", scenarios, "--golden", golden, "--update")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(golden, "create-user.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario": "create-user"`)

	_, err = run(t, "", "test", scenarios, "--golden", golden)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(golden, "create-user.golden"), []byte("{}\n"), 0o644))
	out, err := run(t, "", "test", scenarios, "--golden", golden)
	require.Error(t, err)
	assert.Contains(t, out, "golden file mismatch")
}

func TestTestCommandErrors(t *testing.T) {
	w := newWorkspace(t)

	_, err := run(t, "", "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")

	_, err = run(t, "", "test", filepath.Join(w.dir, "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = run(t, "", "test", w.dir, "--update")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--update requires --golden")
}

func TestTestCommandEmpty(t *testing.T) {
	w := newWorkspace(t)
	empty := filepath.Join(w.dir, "empty")
	require.NoError(t, os.MkdirAll(empty, 0o755))

	out, err := run(t, "", "test", empty)
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")

	out, err = run(t, "", "test", empty, "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"scenarios": [], "passed": 0, "failed": 0, "total": 0}`, out)
}
