package ratelimit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "rate_limits.json")
	fs, err := NewFileStore(path)
	require.NoError(t, err)

	want := Store{
		"alice:issue_fix": {1700000000.5, 1700000060.25},
		"bob:pr_review":   {1700000120},
	}
	require.NoError(t, fs.Save(want))

	got, err := fs.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileStorePermissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	path := filepath.Join(dir, "rate_limits.json")
	fs, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, fs.Save(Store{"k": {1}}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "store file must be owner-only")

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm(), "state directory must be owner-only")
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "never-written.json"))
	require.NoError(t, err)

	got, err := fs.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileStoreCorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rate_limits.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	fs, err := NewFileStore(path)
	require.NoError(t, err)

	got, err := fs.Load()
	require.NoError(t, err)
	assert.Empty(t, got, "a corrupt store is treated as empty, never a crash")
}

func TestFileStoreSaveReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rate_limits.json")
	fs, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, fs.Save(Store{"a:x": {1}}))
	require.NoError(t, fs.Save(Store{"a:x": {1, 2}}))

	// No temp files left behind after the rename.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"rate_limits.json", "rate_limits.json.lock"}, names)

	got, err := fs.Load()
	require.NoError(t, err)
	assert.Equal(t, Store{"a:x": {1, 2}}, got)
}

func TestFileStoreCrossInstanceVisibility(t *testing.T) {
	// Two FileStore instances on the same path model two OS processes.
	path := filepath.Join(t.TempDir(), "rate_limits.json")
	a, err := NewFileStore(path)
	require.NoError(t, err)
	b, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, a.Save(Store{"alice:issue_fix": {42}}))

	got, err := b.Load()
	require.NoError(t, err)
	assert.Equal(t, Store{"alice:issue_fix": {42}}, got)
}

func TestLimiterOnFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rate_limits.json")
	fs, err := NewFileStore(path)
	require.NoError(t, err)

	l := NewLimiter(fs, 60, 2)
	require.True(t, first(l.CheckAndRecord("alice", "issue_fix")))
	require.True(t, first(l.CheckAndRecord("alice", "issue_fix")))

	// A second limiter over the same file sees the recorded state.
	l2 := NewLimiter(fs, 60, 2)
	allowed, reason := l2.CheckAndRecord("alice", "issue_fix")
	assert.False(t, allowed)
	assert.Contains(t, reason, "exceeded")
}
