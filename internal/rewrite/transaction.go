package rewrite

import (
	"fmt"
	"os"
	"path/filepath"
)

// Transaction owns one file for the duration of a verify-or-rollback
// cycle. The scratch directory keeps snapshots of both texts so the
// original is recoverable even if the process dies mid-run.
type Transaction struct {
	path      string
	mode      os.FileMode
	original  []byte
	candidate []byte
	scratch   string
	swapped   bool
	done      bool
}

// Begin allocates the scratch area and snapshots both texts. Nothing
// touches the target path until SwapIn.
func Begin(scratchRoot, path string, original, candidate []byte, runID string) (*Transaction, error) {
	if scratchRoot == "" {
		scratchRoot = os.TempDir()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat target file: %w", err)
	}

	scratch := filepath.Join(scratchRoot, fmt.Sprintf("%s%s-%s", scratchPrefix, sanitize(filepath.Base(path)), runID))
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}

	tx := &Transaction{
		path:      path,
		mode:      info.Mode().Perm(),
		original:  original,
		candidate: candidate,
		scratch:   scratch,
	}
	if err := os.WriteFile(filepath.Join(scratch, "original"), original, 0644); err != nil {
		tx.removeScratch()
		return nil, fmt.Errorf("snapshot original: %w", err)
	}
	if err := os.WriteFile(filepath.Join(scratch, "candidate"), candidate, 0644); err != nil {
		tx.removeScratch()
		return nil, fmt.Errorf("snapshot candidate: %w", err)
	}
	return tx, nil
}

// SwapIn writes the candidate to the target path. From here until Commit
// or Rollback the file on disk is unverified.
func (t *Transaction) SwapIn() error {
	if err := os.WriteFile(t.path, t.candidate, t.mode); err != nil {
		return fmt.Errorf("swap in candidate: %w", err)
	}
	t.swapped = true
	return nil
}

// Commit keeps the candidate on disk and releases the scratch area.
func (t *Transaction) Commit() error {
	t.done = true
	return t.removeScratch()
}

// Rollback restores the original bytes exactly and releases the scratch
// area. Safe to call whether or not SwapIn happened. If the restore write
// itself fails, the scratch area is kept: it still holds the only other
// copy of the original.
func (t *Transaction) Rollback() error {
	if t.swapped {
		if err := os.WriteFile(t.path, t.original, t.mode); err != nil {
			t.done = true
			return fmt.Errorf("restore original: %w", err)
		}
		t.swapped = false
	}
	t.done = true
	return t.removeScratch()
}

// Close releases the transaction. An open transaction rolls back; a
// committed or rolled-back one is a no-op, so Close can be deferred on
// every path.
func (t *Transaction) Close() error {
	if t.done {
		return nil
	}
	return t.Rollback()
}

// ScratchDir reports where the snapshots live, for logging.
func (t *Transaction) ScratchDir() string {
	return t.scratch
}

func (t *Transaction) removeScratch() error {
	if t.scratch == "" {
		return nil
	}
	dir := t.scratch
	t.scratch = ""
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove scratch directory: %w", err)
	}
	return nil
}

func sanitize(name string) string {
	out := []byte(name)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.' || c == '-' || c == '_':
		default:
			out[i] = '-'
		}
	}
	return string(out)
}
