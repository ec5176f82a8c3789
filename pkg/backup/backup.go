// Package backup implements rolling, content-deduplicated snapshots of
// a single source file: gzip-compressed, retained up to a bounded
// count, pruned oldest-first.
package backup

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ochichan/lazarus/pkg/lazerr"
	"github.com/ochichan/lazarus/pkg/log"
)

// DefaultRetention is the number of backups kept when a Manager is
// constructed with retention <= 0.
const DefaultRetention = 3

// Manager snapshots a single source file into a backup directory.
type Manager struct {
	sourcePath string
	backupDir  string
	retention  int

	// now is overridable in tests; production callers get time.Now.
	now func() time.Time
}

// Info summarizes a backup directory's contents.
type Info struct {
	Count      int
	TotalBytes int64
	Latest     string
	Backups    []string
}

// NewManager constructs a Manager for sourcePath, snapshotting into
// backupDir, retaining up to retention backups (DefaultRetention if
// retention <= 0).
func NewManager(sourcePath, backupDir string, retention int) *Manager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Manager{sourcePath: sourcePath, backupDir: backupDir, retention: retention, now: time.Now}
}

// Backup snapshots the source file if it exists and differs in
// content from the most recent backup. Returns the path of the backup
// written, or "" if nothing was written (source absent, or unchanged).
func (m *Manager) Backup() (string, error) {
	clog := log.WithComponent("backup")

	if _, err := os.Stat(m.sourcePath); err != nil {
		if os.IsNotExist(err) {
			clog.Debug().Str("source", m.sourcePath).Msg("backup skipped: source missing")
			return "", nil
		}
		return "", lazerr.Wrap(lazerr.Io, "statting backup source", err)
	}

	if err := os.MkdirAll(m.backupDir, 0o755); err != nil {
		return "", lazerr.Wrap(lazerr.Io, "creating backup directory", err)
	}

	sourceData, err := os.ReadFile(m.sourcePath)
	if err != nil {
		return "", lazerr.Wrap(lazerr.Io, "reading backup source", err)
	}

	if latest, ok, err := m.latestBackup(); err != nil {
		return "", err
	} else if ok {
		same, err := m.sameContent(latest, sourceData)
		if err != nil {
			// A corrupt existing backup is treated as "content differs"
			// so a fresh backup is still produced.
			clog.Warn().Err(err).Str("backup", latest).Msg("existing backup unreadable, treating as changed")
		} else if same {
			clog.Debug().Msg("backup skipped: no change")
			return "", nil
		}
	}

	name := m.filename()
	dest := filepath.Join(m.backupDir, name)
	if err := writeGzip(dest, sourceData); err != nil {
		return "", err
	}
	clog.Info().Str("path", dest).Msg("backup completed")

	if err := m.pruneOld(); err != nil {
		return "", err
	}
	return dest, nil
}

func (m *Manager) filename() string {
	stamp := m.now().UTC().Format("20060102_150405")
	base := filepath.Base(m.sourcePath)
	return base + "_" + stamp + ".gz"
}

func writeGzip(dest string, data []byte) error {
	f, err := os.Create(dest)
	if err != nil {
		return lazerr.Wrap(lazerr.Io, "creating backup file", err)
	}
	defer f.Close()

	w, err := gzip.NewWriterLevel(f, gzip.BestSpeed)
	if err != nil {
		return lazerr.Wrap(lazerr.Io, "constructing gzip encoder", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return lazerr.Wrap(lazerr.Io, "writing backup contents", err)
	}
	if err := w.Close(); err != nil {
		return lazerr.Wrap(lazerr.Io, "finishing backup gzip stream", err)
	}
	return nil
}

// sameContent reports whether a gzip backup decompresses to the same
// SHA-256 hash as sourceData.
func (m *Manager) sameContent(backupPath string, sourceData []byte) (bool, error) {
	data, err := readGzip(backupPath)
	if err != nil {
		return false, err
	}
	sourceHash := sha256.Sum256(sourceData)
	backupHash := sha256.Sum256(data)
	return sourceHash == backupHash, nil
}

func readGzip(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, lazerr.Wrap(lazerr.Io, "opening backup file", err)
	}
	defer f.Close()

	r, err := gzip.NewReader(f)
	if err != nil {
		return nil, lazerr.Wrap(lazerr.Deserialize, "decompressing backup", err)
	}
	defer r.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, lazerr.Wrap(lazerr.Deserialize, "reading decompressed backup", err)
	}
	return buf.Bytes(), nil
}

// ListBackups returns every ".gz" entry in the backup directory,
// newest-first by filename (the fixed-width timestamp sorts
// lexicographically).
func (m *Manager) ListBackups() ([]string, error) {
	if _, err := os.Stat(m.backupDir); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, lazerr.Wrap(lazerr.Io, "statting backup directory", err)
	}

	entries, err := os.ReadDir(m.backupDir)
	if err != nil {
		return nil, lazerr.Wrap(lazerr.Io, "reading backup directory", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".gz" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(m.backupDir, n)
	}
	return paths, nil
}

func (m *Manager) latestBackup() (string, bool, error) {
	backups, err := m.ListBackups()
	if err != nil {
		return "", false, err
	}
	if len(backups) == 0 {
		return "", false, nil
	}
	return backups[0], true, nil
}

func (m *Manager) pruneOld() error {
	backups, err := m.ListBackups()
	if err != nil {
		return err
	}
	if len(backups) <= m.retention {
		return nil
	}

	clog := log.WithComponent("backup")
	for _, old := range backups[m.retention:] {
		if err := os.Remove(old); err != nil {
			return lazerr.Wrap(lazerr.Io, "removing old backup", err)
		}
		clog.Debug().Str("path", old).Msg("pruned old backup")
	}
	return nil
}

// Restore decompresses a named backup over the source path.
func (m *Manager) Restore(backupPath string) error {
	data, err := readGzip(backupPath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(m.sourcePath, data, 0o644); err != nil {
		return lazerr.Wrap(lazerr.Io, "writing restored source", err)
	}
	log.WithComponent("backup").Info().Str("from", backupPath).Str("to", m.sourcePath).Msg("restore completed")
	return nil
}

// Info reports counts, total bytes, and the full backup list.
func (m *Manager) Info() (*Info, error) {
	backups, err := m.ListBackups()
	if err != nil {
		return nil, err
	}
	var total int64
	for _, p := range backups {
		if st, err := os.Stat(p); err == nil {
			total += st.Size()
		}
	}
	var latest string
	if len(backups) > 0 {
		latest = backups[0]
	}
	return &Info{Count: len(backups), TotalBytes: total, Latest: latest, Backups: backups}, nil
}
