package usb

import (
	"encoding/json"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/ochichan/lazarus/pkg/lazerr"
	"github.com/ochichan/lazarus/pkg/types"
)

// manifestVersion is stamped into every manifest.json this package
// writes.
const manifestVersion = 1

func newManifest(deviceName string) *types.UsbManifest {
	if deviceName == "" {
		deviceName = hostName()
	}
	return &types.UsbManifest{
		Version:    manifestVersion,
		CreatedAt:  time.Now(),
		DeviceName: deviceName,
	}
}

func hostName() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "Unknown"
}

func manifestPath(usbPath string) string {
	return filepath.Join(usbPath, "manifest.json")
}

// LoadManifest reads manifest.json from usbPath. A missing manifest is
// reported as a ConfigLoad error since callers generally want to fall
// back to a freshly initialized one rather than treat it as fatal.
func LoadManifest(usbPath string) (*types.UsbManifest, error) {
	data, err := os.ReadFile(manifestPath(usbPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lazerr.New(lazerr.ConfigLoad, "manifest.json not found at "+usbPath)
		}
		return nil, lazerr.Wrap(lazerr.Io, "reading manifest.json", err)
	}
	var m types.UsbManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, lazerr.Wrap(lazerr.ConfigInvalid, "parsing manifest.json", err)
	}
	return &m, nil
}

// SaveManifest writes m to manifest.json at usbPath, pretty-printed.
func SaveManifest(usbPath string, m *types.UsbManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return lazerr.Wrap(lazerr.Serialize, "marshaling manifest.json", err)
	}
	if err := os.WriteFile(manifestPath(usbPath), data, 0o644); err != nil {
		return lazerr.Wrap(lazerr.Io, "writing manifest.json", err)
	}
	return nil
}

// LoadOrInitManifest loads usbPath's manifest, creating a fresh one
// (without persisting it) if none exists yet.
func LoadOrInitManifest(usbPath, deviceName string) (*types.UsbManifest, error) {
	m, err := LoadManifest(usbPath)
	if err != nil {
		if lazerr.OfKind(err, lazerr.ConfigLoad) {
			return newManifest(deviceName), nil
		}
		return nil, err
	}
	return m, nil
}

// UpdateSummary refreshes m's content summary from the volume's
// current on-disk counts.
func UpdateSummary(usbPath string, m *types.UsbManifest) {
	usb, ok := FromPath(usbPath)
	if !ok {
		return
	}
	m.Summary = types.CollectionCounts{
		Notes:     usb.NoteCount,
		Posts:     usb.PostCount,
		Questions: usb.QnaCount,
		Packages:  usb.PackageCount,
	}
}
