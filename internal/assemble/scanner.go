package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Folder names and suffixes the scanner never treats as source units.
var (
	reservedNames    = map[string]bool{"porEnviar": true, "procesados": true, "rechazados": true}
	reservedSuffixes = []string{"_ajustada", "_procesada"}
)

// SourceUnit describes one candidate unit folder. JSONPath or XMLPath is
// empty when the corresponding document is missing.
type SourceUnit struct {
	ID       string
	Dir      string
	JSONPath string
	XMLPath  string
}

// Complete reports whether the unit has its full document pair.
func (u *SourceUnit) Complete() bool {
	return u.JSONPath != "" && u.XMLPath != ""
}

// Scanner yields source units from the immediate subdirectories of a
// source root, one at a time, skipping the reserved pipeline folders.
type Scanner struct {
	root    string
	entries []os.DirEntry
	i       int
}

// NewScanner lists the source root. Failure to read the root is a
// run-level error.
func NewScanner(root string) (*Scanner, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read source root %s: %w", root, err)
	}
	return &Scanner{root: root, entries: entries}, nil
}

// Next returns the next source unit, or false when the root is exhausted.
// File lookup inside the unit folder is best-effort: an unreadable folder
// is yielded with empty paths so the caller can record it.
func (s *Scanner) Next() (*SourceUnit, bool) {
	for s.i < len(s.entries) {
		entry := s.entries[s.i]
		s.i++

		if !entry.IsDir() || skip(entry.Name()) {
			continue
		}

		unit := &SourceUnit{ID: entry.Name(), Dir: filepath.Join(s.root, entry.Name())}
		files, err := os.ReadDir(unit.Dir)
		if err != nil {
			return unit, true
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(f.Name())) {
			case ".json":
				if unit.JSONPath == "" {
					unit.JSONPath = filepath.Join(unit.Dir, f.Name())
				}
			case ".xml":
				if unit.XMLPath == "" {
					unit.XMLPath = filepath.Join(unit.Dir, f.Name())
				}
			}
		}
		return unit, true
	}
	return nil, false
}

func skip(name string) bool {
	if reservedNames[name] {
		return true
	}
	for _, suffix := range reservedSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
