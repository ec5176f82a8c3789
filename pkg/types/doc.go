/*
Package types defines the domain objects shared across Lazarus's core
components: notes, flashcards, bulletin posts, Q&A threads, and the USB
sync manifest.

# Architecture

types is a leaf package — it has no dependencies on the rest of the
module, so every other core package (storage, srs, bulletin, qna, usb,
links) can import it without a cycle. Storage-format specifics (the WAL
frame layout, the ZIM binary layout, the security.json header shape)
live next to the reader/writer that owns them rather than here, since
those are encodings of these types rather than domain concepts in their
own right.

# Core Types

Notes:
  - Note: the in-memory note a caller reads and writes.
  - NoteRecord: the archived atom a WAL frame carries — compressed and
    optionally AEAD-wrapped content, plus the tombstone flag.

Flashcards:
  - Card: a hand-authored or extracted flashcard.
  - SrsData: the embedded SM-2 scheduling state (interval, ease,
    streak, next review).
  - SrsStats / StreakStats: deck-level and daily-streak summaries.

Bulletin and Q&A:
  - Post / Reply: an append-only bulletin thread.
  - Question / Answer: an append-only Q&A thread with an accepted
    answer marker.

USB sync:
  - UsbManifest: the JSON document at a USB volume's root, with a
    bounded history of past sync outcomes.
  - CollectionCounts: per-collection item counts used both in the
    manifest summary and in USB detection.

Link graph:
  - LinkGraph / LinkNode / LinkEdge: the projection the link index
    returns for graph visualization.

# Thread Safety

Values in this package carry no synchronization of their own. Callers
mutate a Note or Card in isolation and hand it to the owning component
(storage, srs) which is responsible for serializing concurrent access.
*/
package types
