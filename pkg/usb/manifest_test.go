package usb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ochichan/lazarus/pkg/lazerr"
	"github.com/ochichan/lazarus/pkg/types"
)

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := newManifest("My Device")
	m.AppendHistory(types.SyncRecord{Uploaded: 3, Downloaded: 1})

	require.NoError(t, SaveManifest(dir, m))

	loaded, err := LoadManifest(dir)
	require.NoError(t, err)
	require.Equal(t, "My Device", loaded.DeviceName)
	require.Len(t, loaded.History, 1)
	require.Equal(t, 3, loaded.History[0].Uploaded)
}

func TestLoadManifestMissingIsConfigLoad(t *testing.T) {
	_, err := LoadManifest(t.TempDir())
	require.True(t, lazerr.OfKind(err, lazerr.ConfigLoad))
}

func TestLoadOrInitManifestFallsBackToFresh(t *testing.T) {
	m, err := LoadOrInitManifest(t.TempDir(), "fallback")
	require.NoError(t, err)
	require.Equal(t, "fallback", m.DeviceName)
}
