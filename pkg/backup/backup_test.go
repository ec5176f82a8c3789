package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestBackupSkipsMissingSource(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(filepath.Join(dir, "notes.lazarus"), filepath.Join(dir, "backups"), 3)
	path, err := m.Backup()
	require.NoError(t, err)
	require.Empty(t, path)
}

func TestBackupDedup(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "notes.lazarus")
	require.NoError(t, os.WriteFile(source, []byte("hello world"), 0o644))

	m := NewManager(source, filepath.Join(dir, "backups"), 3)
	m.now = fixedClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	first, err := m.Backup()
	require.NoError(t, err)
	require.NotEmpty(t, first)

	// Advance the clock but leave source content unchanged: a second
	// Backup call must be a no-op (P8).
	m.now = fixedClock(time.Date(2026, 1, 1, 12, 0, 5, 0, time.UTC))
	second, err := m.Backup()
	require.NoError(t, err)
	require.Empty(t, second)

	backups, err := m.ListBackups()
	require.NoError(t, err)
	require.Len(t, backups, 1)
}

func TestBackupChangedContentCreatesNewFile(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "notes.lazarus")
	require.NoError(t, os.WriteFile(source, []byte("v1"), 0o644))

	m := NewManager(source, filepath.Join(dir, "backups"), 3)
	m.now = fixedClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	_, err := m.Backup()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(source, []byte("v2"), 0o644))
	m.now = fixedClock(time.Date(2026, 1, 1, 12, 0, 1, 0, time.UTC))
	path, err := m.Backup()
	require.NoError(t, err)
	require.NotEmpty(t, path)

	backups, err := m.ListBackups()
	require.NoError(t, err)
	require.Len(t, backups, 2)
}

func TestRetentionPrunesOldestFirst(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "notes.lazarus")
	m := NewManager(source, filepath.Join(dir, "backups"), 3)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(source, []byte{byte(i)}, 0o644))
		m.now = fixedClock(base.Add(time.Duration(i) * time.Second))
		_, err := m.Backup()
		require.NoError(t, err)
	}

	backups, err := m.ListBackups()
	require.NoError(t, err)
	require.Len(t, backups, 3)

	// Newest-first: the three surviving backups must be the three
	// latest (i = 2, 3, 4), so the first in the list is i = 4's stamp.
	require.Contains(t, backups[0], "000004")
}

func TestRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "notes.lazarus")
	require.NoError(t, os.WriteFile(source, []byte("original"), 0o644))

	m := NewManager(source, filepath.Join(dir, "backups"), 3)
	m.now = fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	path, err := m.Backup()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(source, []byte("corrupted"), 0o644))
	require.NoError(t, m.Restore(path))

	data, err := os.ReadFile(source)
	require.NoError(t, err)
	require.Equal(t, "original", string(data))
}

func TestInfoReportsCountsAndLatest(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "notes.lazarus")
	require.NoError(t, os.WriteFile(source, []byte("a"), 0o644))

	m := NewManager(source, filepath.Join(dir, "backups"), 3)
	m.now = fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	path, err := m.Backup()
	require.NoError(t, err)

	info, err := m.Info()
	require.NoError(t, err)
	require.Equal(t, 1, info.Count)
	require.Equal(t, path, info.Latest)
	require.Positive(t, info.TotalBytes)
}

func TestCorruptExistingBackupIsTreatedAsChanged(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "notes.lazarus")
	backupDir := filepath.Join(dir, "backups")
	require.NoError(t, os.MkdirAll(backupDir, 0o755))
	require.NoError(t, os.WriteFile(source, []byte("hello"), 0o644))

	m := NewManager(source, backupDir, 3)
	m.now = fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	// Plant a bogus (non-gzip) "backup" that sorts as the latest.
	bogus := filepath.Join(backupDir, "notes.lazarus_20261231_235959.gz")
	require.NoError(t, os.WriteFile(bogus, []byte("not gzip"), 0o644))

	path, err := m.Backup()
	require.NoError(t, err)
	require.NotEmpty(t, path)
}
