/*
Package backup implements Lazarus's rolling backup manager: gzip
snapshots of a single source file, deduplicated by SHA-256 content
hash, retained up to a bounded count and pruned oldest-first.

A backup is named "<source-basename>_<YYYYMMDD_HHMMSS>.gz" so that
lexicographic and chronological order coincide. Backup decompresses
the most recent existing snapshot only to compare its hash against the
source; a corrupt existing snapshot is treated as "content differs"
rather than failing the call, so a backup is always eventually made
even after an existing one is damaged.
*/
package backup
