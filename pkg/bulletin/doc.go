// Package bulletin implements the append-only JSONL-backed bulletin
// board store (bulletin/posts.jsonl): posts with threaded replies,
// merged by set-union rather than last-writer-wins when the USB sync
// engine reconciles two copies.
package bulletin
