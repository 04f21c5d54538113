// Package ledger persists the per-unit processing outcomes that make
// assembly idempotent across runs. One JSON document under the source root
// maps unit IDs to their last-known status; presence of a unit in the
// ledger means it is never reassembled, whatever the status was.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// FileName is the ledger document name under the source root.
const FileName = ".units_processed.json"

// Unit statuses. Error statuses carry the message after the prefix.
const (
	StatusAdjusted     = "adjusted_ok"
	StatusMissingFiles = "missing_files"
	errorPrefix        = "error: "
)

// ErrorStatus builds the ledger status for a failed assembly.
func ErrorStatus(err error) string {
	return errorPrefix + err.Error()
}

// IsRetryable reports whether a status marks a unit an operator may want
// to clear and retry (assembly failed or files were missing).
func IsRetryable(status string) bool {
	return status == StatusMissingFiles || strings.HasPrefix(status, errorPrefix)
}

// Entry is one recorded outcome.
type Entry struct {
	ProcessedAt time.Time `json:"processedAt"`
	Status      string    `json:"status"`
}

// Ledger is the idempotency gate consulted by the assembler. Injected so
// tests can supply an in-memory fake.
type Ledger interface {
	Has(unitID string) bool
	MarkProcessed(unitID, status string) error
}

// FileLedger is the production Ledger backed by one JSON document.
// Mutations are load-merge-write over the whole file; this is safe only
// under the single-writer model the pipeline guarantees in-process.
type FileLedger struct {
	path    string
	entries map[string]Entry
	now     func() time.Time
}

// Open loads the ledger document at path. A missing document is an empty
// ledger, not an error.
func Open(path string) (*FileLedger, error) {
	entries, err := readEntries(path)
	if err != nil {
		return nil, err
	}
	return &FileLedger{path: path, entries: entries, now: time.Now}, nil
}

func readEntries(path string) (map[string]Entry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return make(map[string]Entry), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", path, err)
	}
	entries := make(map[string]Entry)
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", path, err)
	}
	return entries, nil
}

// Has reports whether any prior run recorded an entry for unitID,
// regardless of status.
func (l *FileLedger) Has(unitID string) bool {
	_, ok := l.entries[unitID]
	return ok
}

// Entry returns the recorded entry for unitID, if any.
func (l *FileLedger) Entry(unitID string) (Entry, bool) {
	e, ok := l.entries[unitID]
	return e, ok
}

// Entries returns a copy of the current mapping.
func (l *FileLedger) Entries() map[string]Entry {
	out := make(map[string]Entry, len(l.entries))
	for k, v := range l.entries {
		out[k] = v
	}
	return out
}

// MarkProcessed records the outcome for unitID and rewrites the document.
// The on-disk mapping is reloaded first so entries written since Open are
// merged rather than clobbered.
func (l *FileLedger) MarkProcessed(unitID, status string) error {
	onDisk, err := readEntries(l.path)
	if err != nil {
		return err
	}
	for k, v := range onDisk {
		if _, ok := l.entries[k]; !ok {
			l.entries[k] = v
		}
	}
	l.entries[unitID] = Entry{ProcessedAt: l.now().UTC(), Status: status}
	return l.write()
}

// ClearRetryable removes missing_files and error entries so the affected
// units are reassembled on the next run. Returns the removed unit IDs.
func (l *FileLedger) ClearRetryable() ([]string, error) {
	var removed []string
	for id, e := range l.entries {
		if IsRetryable(e.Status) {
			removed = append(removed, id)
			delete(l.entries, id)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}
	return removed, l.write()
}

func (l *FileLedger) write() error {
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("write ledger %s: %w", l.path, err)
	}
	return nil
}
