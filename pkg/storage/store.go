// Package storage implements the WAL-backed note store: durable
// append-only persistence, a random-access in-memory index, optional
// per-record AEAD encryption, and offline compaction.
package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"

	"github.com/ochichan/lazarus/pkg/crypto"
	"github.com/ochichan/lazarus/pkg/lazerr"
	"github.com/ochichan/lazarus/pkg/log"
	"github.com/ochichan/lazarus/pkg/types"
	"github.com/ochichan/lazarus/pkg/wal"
)

// writeBufferSize is the WAL writer's in-memory buffering threshold.
const writeBufferSize = 4096

// Store persists NoteRecords to a single WAL file and serves
// random-access reads against an in-memory id→offset index. Callers
// serialize writer access; reads are safe to interleave with appends.
type Store struct {
	path       string
	writer     *wal.Writer
	readHandle *os.File
	index      map[uint64]int64
	vectors    map[uint64][]int8
	nextID     atomic.Uint64
	zstdLevel  int

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// CompactResult reports the outcome of an offline compaction pass.
type CompactResult struct {
	BeforeSize  int64
	AfterSize   int64
	RecordCount int
}

// Open creates the parent directory if needed, opens (or creates) the
// WAL file, and rebuilds the in-memory index by replaying it.
func Open(path string, zstdLevel int) (*Store, error) {
	if zstdLevel <= 0 {
		zstdLevel = 3
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, lazerr.Wrap(lazerr.DbInit, "creating data directory", err)
		}
	}

	writer, err := wal.OpenWriter(path, writeBufferSize)
	if err != nil {
		return nil, err
	}
	readHandle, err := os.Open(path)
	if err != nil {
		writer.Close()
		return nil, lazerr.Wrap(lazerr.DbInit, "opening wal for read", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(zstdLevel)))
	if err != nil {
		writer.Close()
		readHandle.Close()
		return nil, lazerr.Wrap(lazerr.DbInit, "constructing zstd encoder", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		writer.Close()
		readHandle.Close()
		return nil, lazerr.Wrap(lazerr.DbInit, "constructing zstd decoder", err)
	}

	s := &Store{
		path:       path,
		writer:     writer,
		readHandle: readHandle,
		index:      make(map[uint64]int64),
		vectors:    make(map[uint64][]int8),
		zstdLevel:  zstdLevel,
		encoder:    encoder,
		decoder:    decoder,
	}
	if err := s.recover(); err != nil {
		writer.Close()
		readHandle.Close()
		return nil, err
	}
	return s, nil
}

// recover replays the WAL and rebuilds index, vectors and nextID.
// Corruption and deserialization failures on individual records are
// logged and skipped; they never abort recovery. A missing WAL file is
// treated as an empty store, not an error.
func (s *Store) recover() error {
	clog := log.WithComponent("storage")

	reader, err := wal.OpenReader(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.nextID.Store(1)
			return nil
		}
		return err
	}

	var maxID uint64
	recovered, corrupted := 0, 0

	for {
		offset, frame, err := reader.ReadNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if lazerr.OfKind(err, lazerr.DbCorruption) {
				corrupted++
				clog.Warn().Err(err).Msg("skipping corrupt wal record")
				continue
			}
			return err
		}

		rec, derr := DecodeRecord(frame.Payload)
		if derr != nil {
			corrupted++
			clog.Warn().Err(derr).Msg("skipping undecodable wal record")
			continue
		}

		if rec.Deleted {
			delete(s.index, rec.ID)
			delete(s.vectors, rec.ID)
		} else {
			s.index[rec.ID] = offset
			if rec.Vector != nil {
				s.vectors[rec.ID] = rec.Vector
			} else {
				delete(s.vectors, rec.ID)
			}
		}
		if rec.ID > maxID {
			maxID = rec.ID
		}
		recovered++
	}

	s.nextID.Store(maxID + 1)
	if corrupted > 0 {
		clog.Warn().Int("recovered", recovered).Int("corrupted", corrupted).Msg("recovery completed with corrupt records")
	} else {
		clog.Info().Int("recovered", recovered).Msg("recovery completed")
	}
	return nil
}

// Save allocates an id (auto if note.ID is 0), serializes note to
// frontmatter markdown, zstd-compresses it, optionally seals it under
// mgr when note.Encrypted is set, appends the resulting record to the
// WAL, updates the index, and flushes before returning. The call does
// not return until fsync completes.
func (s *Store) Save(note *types.Note, vector []int8, mgr *crypto.Manager) (uint64, error) {
	id := s.allocateID(note.ID)

	content, err := ToMarkdown(note)
	if err != nil {
		return 0, err
	}
	compressed := s.encoder.EncodeAll(content, nil)

	final := compressed
	encrypted := note.Encrypted
	if encrypted {
		if mgr == nil {
			return 0, lazerr.New(lazerr.Encryption, "note marked encrypted but no crypto manager available")
		}
		final, err = mgr.Encrypt(compressed)
		if err != nil {
			return 0, err
		}
	}

	rec := &types.NoteRecord{
		ID:        id,
		CreatedAt: note.CreatedAt.Unix(),
		UpdatedAt: note.UpdatedAt.Unix(),
		Content:   final,
		Vector:    vector,
		Encrypted: encrypted,
		Deleted:   false,
	}

	offset, err := s.writer.Append(EncodeRecord(rec))
	if err != nil {
		return 0, err
	}
	s.index[id] = offset
	if vector != nil {
		s.vectors[id] = vector
	}
	if err := s.writer.Flush(); err != nil {
		return 0, err
	}

	log.WithComponent("storage").Debug().Uint64("id", id).Int64("offset", offset).Msg("note saved")
	return id, nil
}

// allocateID implements the spec's id-clamping rule: a zero id asks
// for the next auto-assigned one; a caller-supplied nonzero id bumps
// nextID past it so future auto-assignments never collide.
func (s *Store) allocateID(requested uint64) uint64 {
	if requested == 0 {
		return s.nextID.Add(1) - 1
	}
	for {
		cur := s.nextID.Load()
		if requested < cur {
			return requested
		}
		if s.nextID.CompareAndSwap(cur, requested+1) {
			return requested
		}
	}
}

// Get reads the record at id's indexed offset and reconstructs a Note.
// A tombstoned or unindexed id returns (nil, nil). An encrypted record
// with no crypto manager returns a locked placeholder Note, never an
// error, so UIs can still list and navigate to it.
func (s *Store) Get(id uint64, mgr *crypto.Manager) (*types.Note, error) {
	offset, ok := s.index[id]
	if !ok {
		return nil, nil
	}

	length, _, err := wal.ReadFrameHeader(s.readHandle, offset)
	if err != nil {
		return nil, err
	}
	payload, err := wal.ReadAt(s.readHandle, offset+wal.FrameHeaderLen, length)
	if err != nil {
		return nil, err
	}

	rec, err := DecodeRecord(payload)
	if err != nil {
		return nil, err
	}
	if rec.Deleted {
		return nil, nil
	}

	var plain []byte
	if rec.Encrypted {
		if mgr == nil {
			return lockedPlaceholder(rec.ID, rec.CreatedAt, rec.UpdatedAt), nil
		}
		decrypted, err := mgr.Decrypt(rec.Content)
		if err != nil {
			return nil, err
		}
		plain, err = s.decoder.DecodeAll(decrypted, nil)
		if err != nil {
			return nil, lazerr.Wrap(lazerr.Deserialize, "decompressing note content", err)
		}
	} else {
		plain, err = s.decoder.DecodeAll(rec.Content, nil)
		if err != nil {
			return nil, lazerr.Wrap(lazerr.Deserialize, "decompressing note content", err)
		}
	}

	note, err := FromMarkdown(rec.ID, plain)
	if err != nil {
		return nil, err
	}
	note.Encrypted = rec.Encrypted
	return note, nil
}

// Delete appends a tombstone for id, removes it from the in-memory
// index and vector cache, and reports whether it had been present.
func (s *Store) Delete(id uint64) (bool, error) {
	if _, ok := s.index[id]; !ok {
		return false, nil
	}

	rec := &types.NoteRecord{ID: id, Deleted: true}
	if _, err := s.writer.Append(EncodeRecord(rec)); err != nil {
		return false, err
	}
	if err := s.writer.Flush(); err != nil {
		return false, err
	}

	delete(s.index, id)
	delete(s.vectors, id)
	return true, nil
}

// List returns every live note id.
func (s *Store) List() []uint64 {
	ids := make([]uint64, 0, len(s.index))
	for id := range s.index {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of live notes.
func (s *Store) Count() int {
	return len(s.index)
}

// Vector returns the cached embedding for id, if any.
func (s *Store) Vector(id uint64) ([]int8, bool) {
	v, ok := s.vectors[id]
	return v, ok
}

// Close flushes and closes the writer and read handles.
func (s *Store) Close() error {
	werr := s.writer.Close()
	rerr := s.readHandle.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// Compact rewrites the WAL with one non-deleted record per live id,
// vectors dropped and timestamps preserved, then atomically renames
// the rewritten file over the original. It is destructive only at that
// final rename: a failure earlier leaves the original file untouched.
// Compaction implicitly drops embeddings (see the storage engine's
// design notes); callers that need vectors must rebuild them after.
func (s *Store) Compact(mgr *crypto.Manager) (*CompactResult, error) {
	before, err := os.Stat(s.path)
	var beforeSize int64
	if err == nil {
		beforeSize = before.Size()
	}

	ids := s.List()
	notes := make([]*types.Note, 0, len(ids))
	for _, id := range ids {
		n, err := s.Get(id, mgr)
		if err != nil {
			return nil, err
		}
		if n != nil {
			notes = append(notes, n)
		}
	}

	tmpPath := s.path + ".tmp"
	tmpWriter, err := wal.OpenWriter(tmpPath, writeBufferSize)
	if err != nil {
		return nil, err
	}
	for _, n := range notes {
		content, err := ToMarkdown(n)
		if err != nil {
			tmpWriter.Close()
			os.Remove(tmpPath)
			return nil, err
		}
		compressed := s.encoder.EncodeAll(content, nil)

		final := compressed
		encrypted := n.Encrypted
		if encrypted {
			if mgr == nil {
				tmpWriter.Close()
				os.Remove(tmpPath)
				return nil, lazerr.New(lazerr.Encryption, "compacting encrypted note with no crypto manager")
			}
			final, err = mgr.Encrypt(compressed)
			if err != nil {
				tmpWriter.Close()
				os.Remove(tmpPath)
				return nil, err
			}
		}

		rec := &types.NoteRecord{
			ID:        n.ID,
			CreatedAt: n.CreatedAt.Unix(),
			UpdatedAt: n.UpdatedAt.Unix(),
			Content:   final,
			Vector:    nil,
			Encrypted: encrypted,
		}
		if _, err := tmpWriter.Append(EncodeRecord(rec)); err != nil {
			tmpWriter.Close()
			os.Remove(tmpPath)
			return nil, err
		}
	}
	if err := tmpWriter.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}

	if err := s.writer.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}
	s.readHandle.Close()

	if err := os.Rename(tmpPath, s.path); err != nil {
		return nil, lazerr.Wrap(lazerr.Io, "renaming compacted wal into place", err)
	}

	writer, err := wal.OpenWriter(s.path, writeBufferSize)
	if err != nil {
		return nil, err
	}
	readHandle, err := os.Open(s.path)
	if err != nil {
		writer.Close()
		return nil, lazerr.Wrap(lazerr.DbInit, "reopening wal for read after compaction", err)
	}
	s.writer = writer
	s.readHandle = readHandle
	s.index = make(map[uint64]int64)
	s.vectors = make(map[uint64][]int8)
	if err := s.recover(); err != nil {
		return nil, err
	}

	after, err := os.Stat(s.path)
	var afterSize int64
	if err == nil {
		afterSize = after.Size()
	}

	log.WithComponent("storage").Info().
		Int64("before_bytes", beforeSize).Int64("after_bytes", afterSize).
		Int("records", len(notes)).Msg("compaction completed")

	return &CompactResult{BeforeSize: beforeSize, AfterSize: afterSize, RecordCount: len(notes)}, nil
}
