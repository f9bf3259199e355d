package dataset

import (
	"os"
	"path/filepath"
	"strings"
)

// MediaMode selects which file extensions count as media. The background
// captioning worker only handles images; the HTTP start/status/lock path
// also counts video files, so both sides must state which set produced
// their numbers.
type MediaMode int

const (
	ModeImages MediaMode = iota
	ModeAll
)

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".webp": {},
}

var videoExtensions = map[string]struct{}{
	".mp4": {},
	".avi": {},
	".mov": {},
	".mkv": {},
	".wmv": {},
	".m4v": {},
	".flv": {},
}

func IsMedia(path string, mode MediaMode) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := imageExtensions[ext]; ok {
		return true
	}
	if mode == ModeAll {
		if _, ok := videoExtensions[ext]; ok {
			return true
		}
	}
	return false
}

// CaptionPath returns the sidecar caption path for a media file: same
// directory, same base name, extension replaced with .txt.
func CaptionPath(mediaPath string) string {
	ext := filepath.Ext(mediaPath)
	return strings.TrimSuffix(mediaPath, ext) + ".txt"
}

// IsCaptioned reports whether the media file has a caption sidecar with
// non-whitespace content. A missing file and a whitespace-only file are
// equivalent; the worker and the status endpoints rely on this predicate
// staying identical in both places.
func IsCaptioned(mediaPath string) bool {
	data, err := os.ReadFile(CaptionPath(mediaPath))
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(data))) > 0
}

// skipEntry reports whether a directory entry is excluded from traversal.
// _controls holds generated artifacts (reports, previews) and dot-entries
// are tooling metadata; both are skipped as whole subtrees.
func skipEntry(name string) bool {
	return name == ControlsDirName || strings.HasPrefix(name, ".")
}

const ControlsDirName = "_controls"
