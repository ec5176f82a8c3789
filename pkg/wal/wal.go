// Package wal implements the framed, CRC-protected append-only log
// format that backs the Lazarus storage engine: an 8-byte magic
// followed by a stream of length-prefixed, checksummed frames.
package wal

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"

	"github.com/ochichan/lazarus/pkg/lazerr"
	"github.com/ochichan/lazarus/pkg/log"
)

// Magic is written exactly once, as the first 8 bytes of a new WAL
// file.
var Magic = [8]byte{'L', 'A', 'Z', 'A', 'R', 'U', 'S', 0x01}

// HeaderLen is the length of Magic on disk.
const HeaderLen = 8

// FrameHeaderLen is the length of a frame's len+crc prefix.
const FrameHeaderLen = 8

// DefaultBufferSize is the writer's default in-memory buffering
// threshold before an implicit flush.
const DefaultBufferSize = 4096

// Frame is one decoded WAL record.
type Frame struct {
	Payload []byte
}

// Writer appends frames to a WAL file, buffering in memory up to a
// threshold and fsyncing on every explicit or implicit Flush. It is
// the single-writer half of the storage engine's file handle pair.
type Writer struct {
	f        *os.File
	buf      []byte
	bufSize  int
	fileSize int64 // on-disk length, not counting buf
}

// OpenWriter opens path for appending, creating it and writing the
// magic header if it is a new (zero-length) file. On an existing file, a
// torn tail after the last complete frame is truncated away, so the
// next append overwrites it. bufSize <= 0 uses DefaultBufferSize.
func OpenWriter(path string, bufSize int) (*Writer, error) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, lazerr.Wrap(lazerr.DbInit, "opening wal file", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, lazerr.Wrap(lazerr.DbInit, "stat wal file", err)
	}
	w := &Writer{f: f, bufSize: bufSize, fileSize: info.Size()}
	if info.Size() == 0 {
		if _, err := f.Write(Magic[:]); err != nil {
			f.Close()
			return nil, lazerr.Wrap(lazerr.DbInit, "writing wal magic", err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, lazerr.Wrap(lazerr.DbInit, "fsync wal magic", err)
		}
		w.fileSize = HeaderLen
	} else if r, rerr := newReader(f); rerr == nil {
		_, _, err := r.ReadNext()
		for err == nil || lazerr.OfKind(err, lazerr.DbCorruption) {
			_, _, err = r.ReadNext()
		}
		if err == io.EOF && r.cursor < info.Size() {
			if err := f.Truncate(r.cursor); err != nil {
				f.Close()
				return nil, lazerr.Wrap(lazerr.DbInit, "truncating torn wal tail", err)
			}
			w.fileSize = r.cursor
		}
	}
	return w, nil
}

// Offset returns the writer's current logical offset: on-disk length
// plus whatever is still buffered in memory.
func (w *Writer) Offset() int64 {
	return w.fileSize + int64(len(w.buf))
}

// Append frames payload and returns the absolute byte offset of the
// frame header (where the length field begins). The frame is only
// buffered; call Flush to guarantee durability.
func (w *Writer) Append(payload []byte) (int64, error) {
	offset := w.Offset()

	header := make([]byte, FrameHeaderLen)
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[4:8], crc32.ChecksumIEEE(payload))

	w.buf = append(w.buf, header...)
	w.buf = append(w.buf, payload...)

	if len(w.buf) >= w.bufSize {
		if err := w.Flush(); err != nil {
			return offset, err
		}
	}
	return offset, nil
}

// Flush writes any buffered bytes with a single write call and forces
// a data sync. It is a no-op on an empty buffer.
func (w *Writer) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	n, err := w.f.Write(w.buf)
	if err != nil {
		return lazerr.Wrap(lazerr.DbWrite, "writing wal buffer", err)
	}
	w.fileSize += int64(n)
	w.buf = w.buf[:0]
	if err := w.f.Sync(); err != nil {
		return lazerr.Wrap(lazerr.DbWrite, "fsync wal", err)
	}
	return nil
}

// Close flushes any buffered bytes and closes the underlying file. A
// flush failure is logged and the close proceeds best-effort, matching
// the "drop must flush, flush failure is dropped" contract for the
// non-panicking Go equivalent (an explicit Close, not a finalizer).
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		log.WithComponent("wal").Warn().Err(err).Msg("flush failed on close")
	}
	return w.f.Close()
}

// Reader iterates frames from a WAL file via positional IO, starting
// just after the magic header, and keeps its own cursor independent of
// any Writer on the same path.
type Reader struct {
	r      io.ReaderAt
	cursor int64
}

// OpenReader opens path read-only and validates the magic header.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, lazerr.Wrap(lazerr.DbInit, "opening wal file for read", err)
	}
	return newReader(f)
}

func newReader(r io.ReaderAt) (*Reader, error) {
	var hdr [HeaderLen]byte
	n, err := r.ReadAt(hdr[:], 0)
	if err != nil && err != io.EOF {
		return nil, lazerr.Wrap(lazerr.Io, "reading wal magic", err)
	}
	if n < HeaderLen || hdr != Magic {
		return nil, lazerr.New(lazerr.DbInit, "unrecognized wal magic")
	}
	return &Reader{r: r, cursor: HeaderLen}, nil
}

// NewReaderAt wraps an arbitrary io.ReaderAt (already positioned past
// any external framing) as a WAL reader, validating the magic at
// offset 0, so frames can be replayed from any source, such as an
// in-memory buffer.
func NewReaderAt(r io.ReaderAt) (*Reader, error) {
	return newReader(r)
}

// ReadNext returns the next frame and the absolute offset of its
// header. It returns io.EOF when the log ends exactly on a frame
// boundary or the tail is torn (a truncated header or short payload
// read) — both are treated as a clean end-of-log, not an error, so a
// writer resuming after a crash simply overwrites the partial bytes.
func (r *Reader) ReadNext() (int64, *Frame, error) {
	offset := r.cursor

	var hdr [FrameHeaderLen]byte
	n, err := r.r.ReadAt(hdr[:], offset)
	if err == io.EOF && n == 0 {
		return offset, nil, io.EOF
	}
	if err != nil && err != io.EOF {
		return offset, nil, lazerr.Wrap(lazerr.Io, "reading frame header", err)
	}
	if n < FrameHeaderLen {
		return offset, nil, io.EOF
	}

	length := binary.LittleEndian.Uint32(hdr[0:4])
	wantCRC := binary.LittleEndian.Uint32(hdr[4:8])

	payload := make([]byte, length)
	n, err = r.r.ReadAt(payload, offset+FrameHeaderLen)
	if uint32(n) < length {
		return offset, nil, io.EOF
	}
	if err != nil && err != io.EOF {
		return offset, nil, lazerr.Wrap(lazerr.Io, "reading frame payload", err)
	}

	r.cursor = offset + FrameHeaderLen + int64(length)

	gotCRC := crc32.ChecksumIEEE(payload)
	if gotCRC != wantCRC {
		return offset, &Frame{Payload: payload}, lazerr.Corruption(wantCRC, gotCRC)
	}
	return offset, &Frame{Payload: payload}, nil
}

// ReadAt reads exactly length bytes starting at offset; the storage
// engine's positional Get path uses it to read a record's payload just
// past its frame header, without a sequential scan.
func ReadAt(r io.ReaderAt, offset int64, length uint32) ([]byte, error) {
	buf := make([]byte, length)
	n, err := r.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, lazerr.Wrap(lazerr.Io, "positional read", err)
	}
	if uint32(n) < length {
		return nil, lazerr.New(lazerr.Io, "short positional read")
	}
	return buf, nil
}

// ReadFrameHeader reads the 8-byte len+crc prefix at offset, used by
// the storage engine's Get path before it knows the payload length.
func ReadFrameHeader(r io.ReaderAt, offset int64) (length uint32, crc uint32, err error) {
	var hdr [FrameHeaderLen]byte
	n, rerr := r.ReadAt(hdr[:], offset)
	if n < FrameHeaderLen {
		if rerr != nil {
			return 0, 0, lazerr.Wrap(lazerr.Io, "reading frame header", rerr)
		}
		return 0, 0, lazerr.New(lazerr.Io, "short frame header read")
	}
	return binary.LittleEndian.Uint32(hdr[0:4]), binary.LittleEndian.Uint32(hdr[4:8]), nil
}
