/*
Package storage implements Lazarus's note store: an append-only,
CRC-protected write-ahead log with an in-memory random-access index,
optional per-record AEAD encryption, and offline compaction.

# Architecture

	┌──────────────────────── STORE ────────────────────────────┐
	│                                                             │
	│  ┌──────────────┐        ┌──────────────────────────┐     │
	│  │  wal.Writer   │──────▶│  notes.lazarus (file)     │     │
	│  │ (append-only) │        │  MAGIC || frame*           │     │
	│  └──────────────┘        └──────────────┬─────────────┘     │
	│                                          │                  │
	│  ┌──────────────┐        ┌───────────────▼────────────┐     │
	│  │ index map     │◀──────│  recover() on Open          │     │
	│  │ id → offset   │        │  (replay every frame once) │     │
	│  └──────┬───────┘        └────────────────────────────┘     │
	│         │                                                   │
	│         ▼ positional read via read handle                   │
	│  Get(id) → decode frame → [AEAD open] → zstd decompress     │
	│            → markdown parse → Note                          │
	└─────────────────────────────────────────────────────────────┘

A record is never mutated in place. Updates and deletes are new
appended frames carrying the same id; the index always points at the
most recent one, and a tombstone (Deleted=true) hides all prior
versions until compaction physically drops them.

# On-disk format

The WAL framing lives in pkg/wal. This package owns the payload those
frames carry: NoteRecord, encoded by record.go into a versioned binary
layout (record.go's leading byte), and the note body within Content,
encoded by markdown.go as YAML-frontmatter markdown before zstd
compression.

# Encryption

When a Note's Encrypted flag is set, Save wraps the zstd-compressed
body in an AEAD envelope from pkg/crypto before framing it; Get reverses
that in the opposite order. A Get against an encrypted record with no
unlocked crypto.Manager never fails — it returns a locked placeholder
Note so callers can still list and navigate to it.

# Compaction

Compact is offline and destructive only at its final step: it reads
every live note through Get, writes a fresh WAL to a temp path, and
only then renames it over the original. A failure before that rename
leaves the original file untouched. Compaction drops cached embeddings;
see the Compact section of SPEC_FULL.md for why that is preserved
rather than "fixed".
*/
package storage
