package usb

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ochichan/lazarus/pkg/bulletin"
	"github.com/ochichan/lazarus/pkg/lazerr"
	"github.com/ochichan/lazarus/pkg/log"
	"github.com/ochichan/lazarus/pkg/qna"
	"github.com/ochichan/lazarus/pkg/types"
)

func notesDir(usbPath string) string {
	return filepath.Join(usbPath, "notes")
}

func notePath(usbPath string, id uint64) string {
	return filepath.Join(notesDir(usbPath), strconv.FormatUint(id, 10)+".json")
}

// ExportNotes writes every note in notes as notes/<id>.json, one-way,
// overwriting whatever was previously on the volume.
func ExportNotes(usbPath string, notes []types.Note) (int, error) {
	if err := os.MkdirAll(notesDir(usbPath), 0o755); err != nil {
		return 0, lazerr.Wrap(lazerr.Io, "creating usb notes directory", err)
	}
	for _, n := range notes {
		if err := writeNoteFile(usbPath, n); err != nil {
			return 0, err
		}
	}
	return len(notes), nil
}

func writeNoteFile(usbPath string, n types.Note) error {
	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return lazerr.Wrap(lazerr.Serialize, "marshaling note", err)
	}
	if err := os.WriteFile(notePath(usbPath, n.ID), data, 0o644); err != nil {
		return lazerr.Wrap(lazerr.Io, "writing note file", err)
	}
	return nil
}

// ImportNotes loads every notes/*.json file on the volume, one-way.
// Files that fail to decode are logged and skipped.
func ImportNotes(usbPath string) ([]types.Note, error) {
	entries, err := os.ReadDir(notesDir(usbPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, lazerr.Wrap(lazerr.Io, "reading usb notes directory", err)
	}

	clog := log.WithComponent("sync")
	var notes []types.Note
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(notesDir(usbPath), e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			clog.Warn().Err(err).Str("path", path).Msg("skipping unreadable note file")
			continue
		}
		var n types.Note
		if err := json.Unmarshal(data, &n); err != nil {
			clog.Warn().Err(err).Str("path", path).Msg("skipping undecodable note file")
			continue
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// SyncNotes reconciles localNotes against the volume's notes/ folder,
// last-writer-wins on UpdatedAt. USB-only notes are handed to save so
// the caller can insert them into local storage. It refreshes the
// manifest's summary, LastSync and history ring buffer, and persists
// both the manifest and sync_state.json before returning.
func SyncNotes(usbPath string, localNotes []types.Note, save func(types.Note) error) (*SyncResult, error) {
	if err := os.MkdirAll(notesDir(usbPath), 0o755); err != nil {
		return nil, lazerr.Wrap(lazerr.Io, "creating usb notes directory", err)
	}

	state, err := LoadSyncState(usbPath)
	if err != nil {
		return nil, err
	}

	localMap := make(map[uint64]types.Note, len(localNotes))
	for _, n := range localNotes {
		localMap[n.ID] = n
	}

	usbNotes, err := ImportNotes(usbPath)
	if err != nil {
		return nil, err
	}
	usbMap := make(map[uint64]types.Note, len(usbNotes))
	for _, n := range usbNotes {
		usbMap[n.ID] = n
	}

	allIDs := make(map[uint64]struct{}, len(localMap)+len(usbMap))
	for id := range localMap {
		allIDs[id] = struct{}{}
	}
	for id := range usbMap {
		allIDs[id] = struct{}{}
	}

	result := &SyncResult{}
	for id := range allIDs {
		local, hasLocal := localMap[id]
		usb, hasUSB := usbMap[id]
		_, previouslySynced := state.SyncedNotes[id]

		switch {
		case hasLocal && !hasUSB:
			if err := writeNoteFile(usbPath, local); err != nil {
				return nil, err
			}
			state.MarkSynced(id, local.UpdatedAt)
			result.Uploaded++
		case !hasLocal && hasUSB:
			if err := save(usb); err != nil {
				return nil, err
			}
			state.MarkSynced(id, usb.UpdatedAt)
			result.Downloaded++
		case local.UpdatedAt.After(usb.UpdatedAt):
			if err := writeNoteFile(usbPath, local); err != nil {
				return nil, err
			}
			state.MarkSynced(id, local.UpdatedAt)
			result.Uploaded++
			if previouslySynced {
				result.Conflicts++
			}
		case usb.UpdatedAt.After(local.UpdatedAt):
			if err := save(usb); err != nil {
				return nil, err
			}
			state.MarkSynced(id, usb.UpdatedAt)
			result.Downloaded++
			if previouslySynced {
				result.Conflicts++
			}
		default:
			result.Unchanged++
		}
	}

	manifest, err := LoadOrInitManifest(usbPath, state.DeviceID)
	if err != nil {
		return nil, err
	}
	UpdateSummary(usbPath, manifest)
	now := time.Now()
	manifest.LastSync = now
	manifest.AppendHistory(types.SyncRecord{
		Timestamp:  now,
		Uploaded:   result.Uploaded,
		Downloaded: result.Downloaded,
		Conflicts:  result.Conflicts,
	})
	if err := SaveManifest(usbPath, manifest); err != nil {
		return nil, err
	}
	if err := state.Save(usbPath); err != nil {
		return nil, err
	}

	return result, nil
}

// SyncPosts reconciles local against the volume's bulletin/posts.jsonl
// by set-union: posts absent on one side are copied to the other.
// Returns the counts uploaded (local → USB) and downloaded (USB →
// local).
func SyncPosts(usbPath string, local *bulletin.Store) (uploaded, downloaded int, err error) {
	usbStore, err := bulletin.Open(filepath.Join(usbPath, "bulletin", "posts.jsonl"))
	if err != nil {
		return 0, 0, err
	}

	var toDownload []types.Post
	for _, p := range usbStore.All() {
		if _, ok := local.Get(p.ID); !ok {
			toDownload = append(toDownload, *p)
		}
	}
	downloaded, err = local.Merge(toDownload)
	if err != nil {
		return 0, 0, err
	}

	var toUpload []types.Post
	for _, p := range local.All() {
		if _, ok := usbStore.Get(p.ID); !ok {
			toUpload = append(toUpload, *p)
		}
	}
	uploaded, err = usbStore.Merge(toUpload)
	if err != nil {
		return 0, 0, err
	}
	return uploaded, downloaded, nil
}

// SyncQna reconciles local against the volume's qna/questions.jsonl by
// set-union, mirroring SyncPosts.
func SyncQna(usbPath string, local *qna.Store) (uploaded, downloaded int, err error) {
	usbStore, err := qna.Open(filepath.Join(usbPath, "qna", "questions.jsonl"))
	if err != nil {
		return 0, 0, err
	}

	var toDownload []types.Question
	for _, q := range usbStore.All() {
		if _, ok := local.Get(q.ID); !ok {
			toDownload = append(toDownload, *q)
		}
	}
	downloaded, err = local.Merge(toDownload)
	if err != nil {
		return 0, 0, err
	}

	var toUpload []types.Question
	for _, q := range local.All() {
		if _, ok := usbStore.Get(q.ID); !ok {
			toUpload = append(toUpload, *q)
		}
	}
	uploaded, err = usbStore.Merge(toUpload)
	if err != nil {
		return 0, 0, err
	}
	return uploaded, downloaded, nil
}
