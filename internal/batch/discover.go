package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SpecSuffix identifies test files eligible for optimization.
const SpecSuffix = "_spec.rb"

// skipDirs are never descended into during discovery.
var skipDirs = map[string]bool{
	".git":         true,
	".factorytune": true,
	"node_modules": true,
}

// Discover expands files and directories into the sorted, deduplicated
// list of spec files to optimize. Explicit file arguments are taken as-is
// even without the conventional suffix; directories are walked recursively.
func Discover(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if seen[p] {
			return
		}
		seen[p] = true
		files = append(files, p)
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if skipDirs[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(d.Name(), SpecSuffix) {
				add(p)
			}
			return nil
		})
		if walkErr != nil {
			return nil, fmt.Errorf("walk %s: %w", path, walkErr)
		}
	}

	sort.Strings(files)
	return files, nil
}
