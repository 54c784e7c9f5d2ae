package integration_tests

import (
	"testing"

	"github.com/specialistvlad/burststate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_RejectsInvalidDocuments(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		hcl  string
		want string
	}{
		{name: "syntax error", hcl: "store {\n", want: "failed to parse HCL file"},
		{name: "unknown backend", hcl: `persistence { backend = "tape" }`, want: "unknown persistence backend 'tape'"},
		{name: "unknown module setting", hcl: `module "httpfetch" { colour = "red" }`, want: "has no setting 'colour'"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			result := testutil.RunIntegrationTest(t, testutil.Scenario{
				Files: map[string]string{"main.hcl": tc.hcl},
			})

			require.Error(t, result.Err)
			assert.ErrorContains(t, result.Err, tc.want)
			assert.Nil(t, result.Snapshot)
		})
	}
}
