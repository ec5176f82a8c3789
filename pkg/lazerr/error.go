// Package lazerr defines the unified error taxonomy shared by every
// Lazarus core component. Components wrap causes with Wrap rather than
// bare fmt.Errorf("...: %w", err), which centralizes the kinds so
// callers can errors.As into *Error and switch on Kind.
package lazerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch without parsing strings.
type Kind string

const (
	DbInit       Kind = "db_init"
	DbWrite      Kind = "db_write"
	DbRead       Kind = "db_read"
	DbCorruption Kind = "db_corruption"
	DbRecovery   Kind = "db_recovery"

	Serialize   Kind = "serialize"
	Deserialize Kind = "deserialize"

	Io           Kind = "io"
	PathNotFound Kind = "path_not_found"
	Permission   Kind = "permission"

	ZimOpen       Kind = "zim_open"
	ZimNotFound   Kind = "zim_not_found"
	ZimDecompress Kind = "zim_decompress"

	Encryption Kind = "encryption"
	Decryption Kind = "decryption"

	SyncFailed   Kind = "sync_failed"
	SyncConflict Kind = "sync_conflict"

	IndexCreate  Kind = "index_create"
	SearchFailed Kind = "search_failed"

	ConfigLoad    Kind = "config_load"
	ConfigInvalid Kind = "config_invalid"
)

// Error is the concrete type every core component returns. Structured
// fields (ID, ExpectedCRC, ActualCRC, LocalTS, RemoteTS) are populated
// only by the kinds that carry them; zero otherwise.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	ID          uint64
	ExpectedCRC uint32
	ActualCRC   uint32
	LocalTS     int64
	RemoteTS    int64
	Path        string
	Title       string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, lazerr.New(SomeKind, "")) match on Kind alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New builds a plain Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap builds an Error of the given kind around a cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Corruption builds a DbCorruption error carrying the CRC mismatch.
func Corruption(expected, actual uint32) *Error {
	return &Error{
		Kind:        DbCorruption,
		Message:     fmt.Sprintf("crc mismatch: expected %08x, actual %08x", expected, actual),
		ExpectedCRC: expected,
		ActualCRC:   actual,
	}
}

// Conflict builds a SyncConflict error carrying both timestamps.
func Conflict(localTS, remoteTS int64) *Error {
	return &Error{
		Kind:     SyncConflict,
		Message:  fmt.Sprintf("version conflict: local %d, remote %d", localTS, remoteTS),
		LocalTS:  localTS,
		RemoteTS: remoteTS,
	}
}

// NotFoundRead builds a DbRead error for a missing record id.
func NotFoundRead(id uint64) *Error {
	return &Error{Kind: DbRead, Message: fmt.Sprintf("no record for id %d", id), ID: id}
}

// ZimMissing builds a ZimNotFound error for a missing title.
func ZimMissing(title string) *Error {
	return &Error{Kind: ZimNotFound, Message: fmt.Sprintf("no entry for %q", title), Title: title}
}

// OfKind reports whether err is a *Error with the given Kind.
func OfKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
