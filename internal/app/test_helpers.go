package app

import (
	"os"
	"testing"

	"github.com/vk/accgraph/internal/definition"
	"github.com/vk/accgraph/internal/testutil"
)

// SetupAppTest creates an app logging at debug level into a buffer.
func SetupAppTest(t *testing.T, cfg *Config, loaders ...definition.Loader) (*App, *testutil.SafeBuffer) {
	t.Helper()

	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	testApp := NewApp(logBuffer, cfg, loaders...)

	t.Cleanup(func() {
		if os.Getenv("ACCGRAPH_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
