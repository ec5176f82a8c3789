package wal

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ochichan/lazarus/pkg/lazerr"
)

func TestWriterWritesMagicOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := OpenWriter(path, 0)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, HeaderLen)
	require.Equal(t, Magic[:], data)

	w2, err := OpenWriter(path, 0)
	require.NoError(t, err)
	require.NoError(t, w2.Close())
	data2, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data2, HeaderLen, "reopening an existing file must not rewrite the magic")
}

func TestAppendAndReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := OpenWriter(path, 4096)
	require.NoError(t, err)

	off1, err := w.Append([]byte("hello"))
	require.NoError(t, err)
	require.EqualValues(t, HeaderLen, off1)

	off2, err := w.Append([]byte("world!"))
	require.NoError(t, err)
	require.EqualValues(t, HeaderLen+FrameHeaderLen+5, off2)

	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())

	r, err := OpenReader(path)
	require.NoError(t, err)

	gotOff1, f1, err := r.ReadNext()
	require.NoError(t, err)
	require.Equal(t, off1, gotOff1)
	require.Equal(t, "hello", string(f1.Payload))

	gotOff2, f2, err := r.ReadNext()
	require.NoError(t, err)
	require.Equal(t, off2, gotOff2)
	require.Equal(t, "world!", string(f2.Payload))

	_, _, err = r.ReadNext()
	require.ErrorIs(t, err, io.EOF)
}

func TestTornTailToleratedAsEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := OpenWriter(path, 4096)
	require.NoError(t, err)
	_, err = w.Append([]byte("complete"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	_, err = w.Append([]byte("partial-that-gets-cut"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())

	// Truncate mid-payload to simulate a crash during the second frame.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-3))

	r, err := OpenReader(path)
	require.NoError(t, err)

	_, f1, err := r.ReadNext()
	require.NoError(t, err)
	require.Equal(t, "complete", string(f1.Payload))

	_, _, err = r.ReadNext()
	require.ErrorIs(t, err, io.EOF)
}

func TestCRCMismatchReportsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := OpenWriter(path, 4096)
	require.NoError(t, err)
	_, err = w.Append([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// Flip a bit in the payload, which starts right after magic + frame header.
	data[HeaderLen+FrameHeaderLen] ^= 0x01
	require.NoError(t, os.WriteFile(path, data, 0o600))

	r, err := OpenReader(path)
	require.NoError(t, err)
	_, _, err = r.ReadNext()
	require.True(t, lazerr.OfKind(err, lazerr.DbCorruption))
}

func TestOpenReaderRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	require.NoError(t, os.WriteFile(path, []byte("NOTLAZRS"), 0o600))
	_, err := OpenReader(path)
	require.True(t, lazerr.OfKind(err, lazerr.DbInit))
}

func TestFlushIsNoOpOnEmptyBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := OpenWriter(path, 4096)
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())
}
