// Package srs implements Lazarus's spaced-repetition engine: an SM-2
// scheduler over flashcards persisted as JSON lines, a sibling
// streak-accounting file, and advisory card extraction from note
// bodies. Unlike the append-only storage engine, every review rewrites
// the whole deck file; at the fleet sizes this system targets that is
// cheaper and simpler than a proper WAL.
package srs
