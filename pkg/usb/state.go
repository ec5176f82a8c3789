package usb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ochichan/lazarus/pkg/lazerr"
)

// SyncState is the per-device watermark persisted at sync_state.json:
// which notes this device has already reconciled with the volume, and
// when each was last seen as synced.
type SyncState struct {
	DeviceID    string           `json:"device_id"`
	LastSync    time.Time        `json:"last_sync"`
	SyncedNotes map[uint64]int64 `json:"synced_notes"`
}

func newSyncState() *SyncState {
	return &SyncState{
		DeviceID:    fmt.Sprintf("device_%x", time.Now().UnixNano()),
		SyncedNotes: make(map[uint64]int64),
	}
}

func syncStatePath(usbPath string) string {
	return filepath.Join(usbPath, "sync_state.json")
}

// LoadSyncState reads sync_state.json from usbPath, returning a fresh
// state (with a newly generated device id) if none exists yet.
func LoadSyncState(usbPath string) (*SyncState, error) {
	data, err := os.ReadFile(syncStatePath(usbPath))
	if err != nil {
		if os.IsNotExist(err) {
			return newSyncState(), nil
		}
		return nil, lazerr.Wrap(lazerr.Io, "reading sync_state.json", err)
	}
	var s SyncState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, lazerr.Wrap(lazerr.ConfigInvalid, "parsing sync_state.json", err)
	}
	if s.SyncedNotes == nil {
		s.SyncedNotes = make(map[uint64]int64)
	}
	return &s, nil
}

// Save persists s to sync_state.json at usbPath.
func (s *SyncState) Save(usbPath string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return lazerr.Wrap(lazerr.Serialize, "marshaling sync_state.json", err)
	}
	if err := os.WriteFile(syncStatePath(usbPath), data, 0o644); err != nil {
		return lazerr.Wrap(lazerr.Io, "writing sync_state.json", err)
	}
	return nil
}

// MarkSynced records that id was reconciled at updatedAt and bumps
// LastSync to the current time.
func (s *SyncState) MarkSynced(id uint64, updatedAt time.Time) {
	if s.SyncedNotes == nil {
		s.SyncedNotes = make(map[uint64]int64)
	}
	s.SyncedNotes[id] = updatedAt.Unix()
	s.LastSync = time.Now()
}

// SyncResult tallies the outcome of a SyncNotes call.
type SyncResult struct {
	Uploaded   int
	Downloaded int
	Conflicts  int
	Unchanged  int
}

// Total is the number of notes that changed on either side.
func (r SyncResult) Total() int {
	return r.Uploaded + r.Downloaded
}
