/*
Package links implements Lazarus's bidirectional note-link index:
[[Title]] extraction and the four maps (outgoing, incoming,
id-to-title, title-to-id) that stay consistent across Register and
UpdateLinks calls.

The Index itself is pure in-memory and rebuilt from live notes at host
startup (Rebuild). Cache wraps an optional bbolt-backed snapshot of
that index so a large collection can skip the full rebuild on
subsequent opens; it is strictly a cache; a missing, empty, or stale
cache file never prevents Rebuild from producing a correct index.
*/
package links
