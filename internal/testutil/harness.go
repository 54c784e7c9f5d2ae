package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/specialistvlad/burststate/internal/app"
	"github.com/specialistvlad/burststate/internal/config"
	"github.com/specialistvlad/burststate/internal/hcl_adapter"
	"github.com/specialistvlad/burststate/internal/persist"
	"github.com/specialistvlad/burststate/internal/registry"
	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	// Dir is the temporary root the files were written to.
	Dir       string
	LogOutput string
	// Snapshot is the final state printed by the run, if it got that far.
	Snapshot *persist.Snapshot
	Err      error
}

// Scenario describes one application run.
type Scenario struct {
	// Files maps paths relative to the temporary root to their contents.
	// Every .hcl file is loaded as configuration.
	Files   map[string]string
	Actions []string
	Modules []registry.Module
	// Dir reuses the root of an earlier run instead of a fresh one.
	Dir string
}

// RunIntegrationTest runs a scenario using a background context.
func RunIntegrationTest(t *testing.T, s Scenario) *HarnessResult {
	t.Helper()
	return RunIntegrationTestWithContext(context.Background(), t, s)
}

// RunIntegrationTestWithContext writes the scenario's files, loads them
// through the HCL loader, and runs the application with debug text logs.
// Relative persistence paths resolve against the temporary root.
func RunIntegrationTestWithContext(ctx context.Context, t *testing.T, s Scenario) *HarnessResult {
	t.Helper()

	dir := s.Dir
	if dir == "" {
		dir = t.TempDir()
	}
	for name, content := range s.Files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	result := &HarnessResult{Dir: dir}
	logBuffer := &SafeBuffer{}
	defer func() {
		result.LogOutput = logBuffer.String()
		if os.Getenv("BURSTSTATE_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), result.LogOutput)
		}
	}()

	cfg, err := hcl_adapter.NewLoader().Load(ctx, dir)
	if err != nil {
		result.Err = err
		return result
	}
	cfg.Logging = config.Logging{Level: "debug", Format: "text"}
	if p := cfg.Persistence.Path; p != "" && !filepath.IsAbs(p) {
		cfg.Persistence.Path = filepath.Join(dir, p)
	}

	a, err := app.NewApp(logBuffer, cfg, s.Modules...)
	if err != nil {
		result.Err = err
		return result
	}

	out := &bytes.Buffer{}
	result.Err = a.Run(ctx, app.RunOptions{Actions: s.Actions, Output: out})
	if text := strings.TrimSpace(out.String()); text != "" {
		snap, err := persist.Parse(text)
		if err != nil {
			result.Err = fmt.Errorf("harness: final snapshot unreadable: %w", err)
			return result
		}
		result.Snapshot = snap
	}
	return result
}
