// Package usb implements the sneakernet sync engine: detecting marked
// USB volumes, watching for them to appear and disappear, and
// reconciling notes (last-writer-wins, keyed on updated_at) and
// bulletin/Q&A collections (set-union, since both are append-only) against
// the portable on-disk layout described in manifest.json and
// sync_state.json.
package usb
