package dataset

import (
	"os"
	"path/filepath"
	"sort"
)

// Status is the pair of counters recomputed from disk on every pass. It is
// never cached or incremented in place: a caption written by hand between
// ticks is picked up on the next recount.
type Status struct {
	Total     int `json:"total"`
	Captioned int `json:"captioned"`
}

// ComputeStatus walks the dataset tree and counts media files and captioned
// media files. Unreadable entries are skipped, never fatal.
func ComputeStatus(dir string, mode MediaMode) Status {
	var st Status
	walk(dir, mode, func(path string) bool {
		st.Total++
		if IsCaptioned(path) {
			st.Captioned++
		}
		return true
	})
	return st
}

// FindNextUncaptioned returns the first media file in depth-first sorted
// traversal order that has no caption yet, or "" when every media file is
// captioned. The walk stops as soon as a candidate is found.
func FindNextUncaptioned(dir string, mode MediaMode) string {
	var found string
	walk(dir, mode, func(path string) bool {
		if IsCaptioned(path) {
			return true
		}
		found = path
		return false
	})
	return found
}

// FindAllMedia collects every recognized media file in traversal order.
// Used by manual-mode start to pre-create empty caption sidecars.
func FindAllMedia(dir string, mode MediaMode) []string {
	var paths []string
	walk(dir, mode, func(path string) bool {
		paths = append(paths, path)
		return true
	})
	return paths
}

// walk visits media files depth-first with directory entries in sorted
// order, skipping _controls and dot-prefixed entries as whole subtrees.
// The visitor returns false to stop the walk early.
func walk(dir string, mode MediaMode, visit func(path string) bool) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return true
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		name := entry.Name()
		if skipEntry(name) {
			continue
		}

		path := filepath.Join(dir, name)
		if entry.IsDir() {
			if !walk(path, mode, visit) {
				return false
			}
			continue
		}

		if !IsMedia(name, mode) {
			continue
		}
		if !visit(path) {
			return false
		}
	}

	return true
}

// ListDatasetDirs returns the sorted immediate subdirectory names of the
// datasets root. A missing root is an empty listing, not an error.
func ListDatasetDirs(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() || skipEntry(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}
