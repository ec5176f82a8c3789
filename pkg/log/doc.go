/*
Package log provides structured logging for Lazarus using zerolog.

It wraps zerolog to give every core component leveled, component-tagged
logging with minimal ceremony: a single global Logger configured once
via Init, and per-component child loggers via WithComponent.

# Usage

Initializing the logger:

	import "github.com/ochichan/lazarus/pkg/log"

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

Component loggers:

	storageLog := log.WithComponent("storage")
	storageLog.Warn().Uint32("expected_crc", exp).Uint32("actual_crc", got).
		Msg("skipping corrupt record")

	zimLog := log.WithComponent("zim")
	zimLog.Debug().Str("url", url).Msg("resolved redirect chain")

# Log Levels

Debug is for byte-offset-level detail (WAL recovery stepping through
frames, ZIM directory binary search narrowing). Info covers lifecycle
events (store opened, compaction finished, USB volume detected). Warn
is for recoverable per-record failures — a CRC mismatch, a malformed
USB JSON file — that the surrounding component skips and continues
past. Error is reserved for failures that propagate to the caller as a
*lazerr.Error; this package never calls Fatal from inside a core
component, since a library has no business exiting the host process.

# Design Notes

The global Logger is a zero-value zerolog.Logger until Init runs, which
silently discards writes — fine for tests that don't care about log
output and don't call Init.
*/
package log
