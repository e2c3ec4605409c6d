package rewrite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// scratchPrefix marks directories this tool owns inside the scratch root.
const scratchPrefix = "factorytune-"

// ListStale returns scratch directories older than maxAge without
// removing them. Fresh directories are skipped because a live run may
// still own them.
func ListStale(scratchRoot string, maxAge time.Duration) ([]string, error) {
	if scratchRoot == "" {
		scratchRoot = os.TempDir()
	}
	entries, err := os.ReadDir(scratchRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read scratch root: %w", err)
	}

	var stale []string
	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), scratchPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		stale = append(stale, filepath.Join(scratchRoot, entry.Name()))
	}
	return stale, nil
}

// CleanupStale removes scratch directories older than maxAge left behind
// by crashed runs. Returns the number of directories removed; individual
// removal failures are skipped rather than aborting the sweep.
func CleanupStale(scratchRoot string, maxAge time.Duration, verbose func(path string)) (int, error) {
	stale, err := ListStale(scratchRoot, maxAge)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range stale {
		if err := os.RemoveAll(path); err != nil {
			continue
		}
		if verbose != nil {
			verbose(path)
		}
		removed++
	}
	return removed, nil
}
