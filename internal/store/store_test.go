package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reqtrace/internal/annotation"
	"reqtrace/internal/requirements"
	"reqtrace/internal/scan"
	"reqtrace/internal/trace"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), ".reqtrace", "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleScan(id string, finished time.Time) *scan.Result {
	return &scan.Result{
		ID:         id,
		Root:       "/ws",
		StartedAt:  finished.Add(-time.Second),
		FinishedAt: finished,
		Files: []scan.FileInfo{
			{Path: "sources/auth.py", Hash: "abc123", Language: "python", ModTime: 1700000000},
			{Path: "tests/test_auth.py", Hash: "def456", Language: "python", ModTime: 1700000001, IsTest: true},
		},
		Tags: []annotation.Tag{
			{ReqID: "FR:sample-feature/auth.login", File: "sources/auth.py", Line: 7, Symbol: "login", Placement: annotation.PlacementDefinition, Language: "python"},
			{ReqID: "FR:sample-feature/auth.logout", File: "sources/auth.py", Line: 13, Symbol: "logout", Placement: annotation.PlacementDefinition, Language: "python"},
		},
		Warnings: []annotation.Warning{
			{File: "sources/auth.py", Line: 30, Message: "malformed @req marker"},
		},
		Languages: map[string]int{"python": 2},
		TestFiles: 1,
	}
}

func TestSaveAndGetScan(t *testing.T) {
	s := testStore(t)

	res := sampleScan("scan-1", time.Now())
	require.NoError(t, s.SaveScan(res))

	got, err := s.GetScan("scan-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	require.Equal(t, "/ws", got.Root)
	require.Equal(t, res.Files, got.Files)
	require.Equal(t, res.Tags, got.Tags)
	require.Equal(t, res.Warnings, got.Warnings)
	require.Equal(t, map[string]int{"python": 2}, got.Languages)
	require.Equal(t, 1, got.TestFiles)
}

func TestGetScan_Missing(t *testing.T) {
	s := testStore(t)

	got, err := s.GetScan("nope")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestLatestScan(t *testing.T) {
	s := testStore(t)

	latest, err := s.LatestScan()
	require.NoError(t, err)
	require.Nil(t, latest, "empty store has no latest scan")

	base := time.Now()
	require.NoError(t, s.SaveScan(sampleScan("scan-old", base.Add(-time.Hour))))
	require.NoError(t, s.SaveScan(sampleScan("scan-new", base)))

	latest, err = s.LatestScan()
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, "scan-new", latest.ID)
}

func TestTagsForScan_Ordering(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.SaveScan(sampleScan("scan-1", time.Now())))

	tags, err := s.TagsForScan("scan-1")
	require.NoError(t, err)
	require.Len(t, tags, 2)
	require.Equal(t, 7, tags[0].Line)
	require.Equal(t, 13, tags[1].Line)
}

func TestSaveAndLatestMatrix(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.SaveScan(sampleScan("scan-1", time.Now())))

	scanID, m, err := s.LatestMatrix()
	require.NoError(t, err)
	require.Nil(t, m)
	require.Empty(t, scanID)

	matrix := &trace.Matrix{
		GeneratedAt: time.Now().UTC(),
		Requirements: []trace.RequirementCoverage{
			{
				Requirement: requirements.Requirement{ID: "FR:sample-feature/auth.login", Title: "User login", Status: requirements.StatusApproved},
				Covered:     true,
			},
		},
		Untraced: []string{"FR:sample-feature/auth.session.expiry"},
		Coverage: 0.5,
		TagCount: 2,
	}
	require.NoError(t, s.SaveMatrix("scan-1", matrix))

	scanID, got, err := s.LatestMatrix()
	require.NoError(t, err)
	require.Equal(t, "scan-1", scanID)
	require.NotNil(t, got)
	require.Equal(t, 0.5, got.Coverage)
	require.Equal(t, matrix.Requirements, got.Requirements)
	require.Equal(t, matrix.Untraced, got.Untraced)
}

func TestListScans(t *testing.T) {
	s := testStore(t)

	base := time.Now()
	require.NoError(t, s.SaveScan(sampleScan("scan-1", base.Add(-2*time.Hour))))
	require.NoError(t, s.SaveScan(sampleScan("scan-2", base.Add(-time.Hour))))
	require.NoError(t, s.SaveScan(sampleScan("scan-3", base)))

	summaries, err := s.ListScans(2)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, "scan-3", summaries[0].ID)
	require.Equal(t, "scan-2", summaries[1].ID)
	require.Equal(t, 2, summaries[0].TagCount)
	require.Equal(t, 1, summaries[0].WarningCount)
}
