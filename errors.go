package stratum

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// Sentinel errors, one per error kind: malformed input, an aborted
// operation, a write attempted against a non-primary, a unique-index
// violation, an unindexable document shape, an unknown collection, a
// disk-space failure, a corrupt journal footer, a stale routing
// table, an optimistic-concurrency conflict the caller should retry,
// a lock-acquisition timeout, and an aborted chunk migration.
var (
	ErrBadValue          = errors.New("stratum: malformed input")
	ErrInterrupted       = errors.New("stratum: operation interrupted")
	ErrNotMaster         = errors.New("stratum: write attempted against a non-primary")
	ErrDuplicateKey      = errors.New("stratum: duplicate key on unique index")
	ErrCannotIndex       = errors.New("stratum: document cannot be indexed")
	ErrNamespaceNotFound = errors.New("stratum: namespace not found")
	ErrOutOfDiskSpace    = errors.New("stratum: out of disk space")
	ErrJournalCorrupt    = errors.New("stratum: journal footer digest mismatch")
	ErrStaleShardVersion = errors.New("stratum: stale shard version, refresh routing table")
	ErrWriteConflict     = errors.New("stratum: write conflict, retry")
	ErrLockTimeout       = errors.New("stratum: lock acquisition timed out")
	ErrMigrationAborted  = errors.New("stratum: chunk migration aborted")
)

// Code maps a sentinel error to its external numeric code, for the
// {ok:0, errmsg, code} response shape every command and query-error
// response uses. Codes below are the ones given explicitly; the rest
// follow the same "stable small integer per kind" convention.
func Code(err error) int {
	switch {
	case errors.Is(err, ErrBadValue):
		return 2
	case errors.Is(err, ErrInterrupted):
		return 11601
	case errors.Is(err, ErrNotMaster):
		return 10107
	case errors.Is(err, ErrDuplicateKey):
		return 11000
	case errors.Is(err, ErrCannotIndex):
		return 17280
	case errors.Is(err, ErrNamespaceNotFound):
		return 26
	case errors.Is(err, ErrOutOfDiskSpace):
		return 14031
	case errors.Is(err, ErrJournalCorrupt):
		return 20001
	case errors.Is(err, ErrStaleShardVersion):
		return 13388
	case errors.Is(err, ErrWriteConflict):
		return 112
	case errors.Is(err, ErrLockTimeout):
		return 24
	case errors.Is(err, ErrMigrationAborted):
		return 13113
	default:
		return 1 // opaque InternalError
	}
}

// wrap annotates err with the operation that produced it, the way
// folio wraps every storage error with its own operation name.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// CommandResult is the {ok, errmsg, code} external shape every admin
// command and query-error response returns.
type CommandResult struct {
	OK     bool   `json:"ok"`
	ErrMsg string `json:"errmsg,omitempty"`
	Code   int    `json:"code,omitempty"`
}

// ResultFor builds the external response shape for err, nil meaning
// success.
func ResultFor(err error) CommandResult {
	if err == nil {
		return CommandResult{OK: true}
	}
	return CommandResult{ErrMsg: err.Error(), Code: Code(err)}
}

// Encode marshals r as the wire form a client-facing COMMAND response
// sends.
func (r CommandResult) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeCommandResult parses a CommandResult from its wire form, the
// client-side counterpart of Encode.
func DecodeCommandResult(data []byte) (CommandResult, error) {
	var r CommandResult
	if err := json.Unmarshal(data, &r); err != nil {
		return CommandResult{}, fmt.Errorf("stratum: decode command result: %w", err)
	}
	return r, nil
}
