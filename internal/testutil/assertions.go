package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertActionReduced checks the log output for a reduction of actionType,
// for example "counter.Increment".
func AssertActionReduced(t *testing.T, result *HarnessResult, actionType string) {
	t.Helper()
	needle := "action=" + actionType
	for _, line := range strings.Split(result.LogOutput, "\n") {
		if strings.Contains(line, "Action reduced.") && strings.Contains(line, needle) {
			return
		}
	}
	t.Errorf("expected log output for reduced action '%s' was not found in logs", actionType)
}

// AssertModuleState checks the final snapshot entry of module against a
// JSON document.
func AssertModuleState(t *testing.T, result *HarnessResult, module, wantJSON string) {
	t.Helper()
	require.NotNil(t, result.Snapshot, "run produced no snapshot")
	got, ok := result.Snapshot.Get(module)
	require.True(t, ok, "module '%s' missing from snapshot", module)
	assert.JSONEq(t, wantJSON, got, "state of module '%s'", module)
}
