package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const pyFixture = `# Authentication module
# @req FR:sample-feature/auth.login
# @req FR:sample-feature/auth.logout

import time

# @req FR:sample-feature/auth.login
def login(email: str, password: str) -> dict:
    """Log in a user."""
    return {"user_id": "123", "token": "abc"}
`

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func testWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "sources/auth.py", pyFixture)
	writeFile(t, root, "cmd/main.go", "// @req FR:cli/entry\npackage main\n\nfunc main() {}\n")
	writeFile(t, root, "scripts/deploy.sh", "# @req FR:ops/deploy.rollout\necho hi\n")
	writeFile(t, root, "tests/test_auth.py", "# @req FR:sample-feature/auth.login\ndef test_login():\n    pass\n")
	writeFile(t, root, ".git/HEAD", "ref: refs/heads/main\n")
	writeFile(t, root, "logo.png", "\x89PNG")
	return root
}

func TestScanWorkspace(t *testing.T) {
	root := testWorkspace(t)

	s := NewScanner(Options{Root: root, IncludeTests: true}, nil)
	res, err := s.ScanWorkspace(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, res.ID)
	require.Empty(t, res.Warnings)

	paths := make(map[string]FileInfo)
	for _, f := range res.Files {
		paths[f.Path] = f
	}
	require.Contains(t, paths, "sources/auth.py")
	require.Contains(t, paths, "cmd/main.go")
	require.Contains(t, paths, "logo.png")
	require.NotContains(t, paths, ".git/HEAD")

	require.Equal(t, "python", paths["sources/auth.py"].Language)
	require.True(t, paths["tests/test_auth.py"].IsTest)
	require.Equal(t, 1, res.TestFiles)
	require.Equal(t, 2, res.Languages["python"])

	// 3 from auth.py + 1 go + 1 shell + 1 test file
	require.Len(t, res.Tags, 6)

	// Deterministic ordering by (file, line).
	for i := 1; i < len(res.Tags); i++ {
		prev, cur := res.Tags[i-1], res.Tags[i]
		if prev.File == cur.File {
			require.LessOrEqual(t, prev.Line, cur.Line)
		} else {
			require.Less(t, prev.File, cur.File)
		}
	}
}

func TestScanWorkspace_ExcludesTests(t *testing.T) {
	root := testWorkspace(t)

	s := NewScanner(Options{Root: root, IncludeTests: false}, nil)
	res, err := s.ScanWorkspace(context.Background())
	require.NoError(t, err)

	for _, f := range res.Files {
		require.False(t, f.IsTest, "test file %s should be excluded", f.Path)
	}
	require.Len(t, res.Tags, 5)
}

func TestScanWorkspace_ExcludeDirs(t *testing.T) {
	root := testWorkspace(t)

	s := NewScanner(Options{Root: root, IncludeTests: true, ExcludeDirs: []string{"scripts"}}, nil)
	res, err := s.ScanWorkspace(context.Background())
	require.NoError(t, err)

	for _, f := range res.Files {
		require.NotContains(t, f.Path, "scripts/")
	}
}

func TestScanWorkspace_CachePersists(t *testing.T) {
	root := testWorkspace(t)

	s := NewScanner(Options{Root: root, IncludeTests: true}, nil)
	first, err := s.ScanWorkspace(context.Background())
	require.NoError(t, err)

	manifest := filepath.Join(root, ".reqtrace", "cache", "manifest.json")
	_, err = os.Stat(manifest)
	require.NoError(t, err, "cache manifest should be written")

	second, err := s.ScanWorkspace(context.Background())
	require.NoError(t, err)

	// Hashes must be identical whether cached or freshly computed.
	require.Equal(t, first.Files, second.Files)
}

func TestScanWorkspace_Cancellation(t *testing.T) {
	root := testWorkspace(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScanner(Options{Root: root, IncludeTests: true}, nil)
	_, err := s.ScanWorkspace(ctx)
	require.Error(t, err)
}

func TestScanFiles_Incremental(t *testing.T) {
	root := testWorkspace(t)

	s := NewScanner(Options{Root: root, IncludeTests: true}, nil)

	res, err := s.ScanFiles(context.Background(), []string{
		filepath.Join(root, "sources/auth.py"),
		filepath.Join(root, "sources/gone.py"),
	})
	require.NoError(t, err)

	require.Len(t, res["sources/auth.py"].Tags, 3)
	require.Nil(t, res["sources/gone.py"], "missing file should map to nil")
}
