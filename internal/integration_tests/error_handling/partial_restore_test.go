package integration_tests

import (
	"testing"

	"github.com/specialistvlad/burststate/internal/registry"
	"github.com/specialistvlad/burststate/internal/testutil"
	"github.com/specialistvlad/burststate/modules/counter"
	"github.com/specialistvlad/burststate/modules/flag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRestore_DegradesPerModule restores a snapshot holding an unknown
// module and an undecodable one. The good module is restored, the bad one
// falls back to its initial state and the unknown id is dropped.
func TestRestore_DegradesPerModule(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	files := map[string]string{
		"main.hcl": `
			persistence {
				backend          = "file"
				path             = "snapshot.json"
				restore_on_start = true
			}
		`,
		"snapshot.json": `{"version":1,"modules":{"ghost":"1","counter":"7","flag":"\"maybe\""}}`,
	}

	// --- Act ---
	result := testutil.RunIntegrationTest(t, testutil.Scenario{
		Files:   files,
		Modules: []registry.Module{&counter.Module{}, &flag.Module{}},
	})

	// --- Assert ---
	require.NoError(t, result.Err)
	testutil.AssertModuleState(t, result, "counter", "7")
	testutil.AssertModuleState(t, result, "flag", "false")
	assert.Contains(t, result.LogOutput, "ghost")
}
