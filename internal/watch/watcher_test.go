package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reqtrace/internal/requirements"
	"reqtrace/internal/scan"
	"reqtrace/internal/trace"
)

const authSource = `# Authentication module
# @req FR:sample-feature/auth.login

# @req FR:sample-feature/auth.login
def login(email, password):
    return {"user_id": "123", "token": "abc"}
`

func testSetup(t *testing.T) (string, *scan.Scanner, *trace.Kernel) {
	t.Helper()
	root := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "sources"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sources", "auth.py"), []byte(authSource), 0644))

	scanner := scan.NewScanner(scan.Options{Root: root, IncludeTests: true}, nil)
	res, err := scanner.ScanWorkspace(context.Background())
	require.NoError(t, err)

	set, err := requirements.NewSet([]requirements.Requirement{
		{ID: "FR:sample-feature/auth.login", Title: "User login"},
		{ID: "FR:sample-feature/auth.logout", Title: "User logout"},
	})
	require.NoError(t, err)

	kernel := trace.NewKernel(trace.Config{})
	require.NoError(t, kernel.LoadScan(res, set))
	return root, scanner, kernel
}

func waitForMatrix(t *testing.T, updates <-chan *trace.Matrix) *trace.Matrix {
	t.Helper()
	select {
	case m := <-updates:
		return m
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for matrix update")
		return nil
	}
}

func TestWatcher_FileModified(t *testing.T) {
	root, scanner, kernel := testSetup(t)

	updates := make(chan *trace.Matrix, 4)
	w, err := NewWatcher(root, scanner, kernel, func(m *trace.Matrix) { updates <- m })
	require.NoError(t, err)
	w.debounceDur = 50 * time.Millisecond

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()
	require.True(t, w.IsWatching())

	// Adding a logout tag should flip the untraced requirement.
	updated := authSource + `
# @req FR:sample-feature/auth.logout
def logout(session):
    pass
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "sources", "auth.py"), []byte(updated), 0644))

	m := waitForMatrix(t, updates)
	require.Empty(t, m.Untraced)
	require.Equal(t, 1.0, m.Coverage)

	stats := w.GetStats()
	require.GreaterOrEqual(t, stats.Rescans, 1)
}

func TestWatcher_FileDeleted(t *testing.T) {
	root, scanner, kernel := testSetup(t)

	updates := make(chan *trace.Matrix, 4)
	w, err := NewWatcher(root, scanner, kernel, func(m *trace.Matrix) { updates <- m })
	require.NoError(t, err)
	w.debounceDur = 50 * time.Millisecond

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.Remove(filepath.Join(root, "sources", "auth.py")))

	m := waitForMatrix(t, updates)
	// Both requirements lost their trace.
	require.Len(t, m.Untraced, 2)
	require.Equal(t, 0.0, m.Coverage)
}

func TestWatcher_NewFileInNewDir(t *testing.T) {
	root, scanner, kernel := testSetup(t)

	updates := make(chan *trace.Matrix, 4)
	w, err := NewWatcher(root, scanner, kernel, func(m *trace.Matrix) { updates <- m })
	require.NoError(t, err)
	w.debounceDur = 50 * time.Millisecond

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "extra"), 0755))
	// Give the watcher a beat to register the new directory.
	time.Sleep(200 * time.Millisecond)

	content := "# @req FR:sample-feature/auth.logout\ndef logout(session):\n    pass\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "extra", "logout.py"), []byte(content), 0644))

	m := waitForMatrix(t, updates)
	require.Equal(t, 1.0, m.Coverage)
}

func TestWatcher_IgnoresUnparsedFiles(t *testing.T) {
	root, scanner, kernel := testSetup(t)

	w, err := NewWatcher(root, scanner, kernel, nil)
	require.NoError(t, err)
	w.debounceDur = 50 * time.Millisecond

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(root, "logo.png"), []byte("\x89PNG"), 0644))
	time.Sleep(300 * time.Millisecond)

	stats := w.GetStats()
	require.Zero(t, stats.FilesCreated+stats.FilesModified)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	root, scanner, kernel := testSetup(t)

	w, err := NewWatcher(root, scanner, kernel, nil)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
	require.False(t, w.IsWatching())
}
