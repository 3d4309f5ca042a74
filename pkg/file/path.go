package file

import (
	"path/filepath"
	"regexp"
	"strings"
)

// ReplaceExt swaps the extension of path, e.g. "a/b.mp3" -> "a/b.wav".
func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	dir := filepath.Dir(path)
	filename := filepath.Base(path)
	if lastDot := strings.LastIndex(filename, "."); lastDot > 0 {
		filename = filename[:lastDot]
	}
	return filepath.Join(dir, filename+ext)
}

// Ext returns the lower-cased extension of name without the leading dot.
// Names without a dot, or dotfiles like ".wav", have no extension.
func Ext(name string) string {
	base := filepath.Base(name)
	lastDot := strings.LastIndex(base, ".")
	if lastDot <= 0 || lastDot == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[lastDot+1:])
}

// HasExt reports whether name carries one of exts (compared case-insensitively, without dots).
func HasExt(name string, exts []string) bool {
	ext := Ext(name)
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.EqualFold(strings.TrimPrefix(e, "."), ext) {
			return true
		}
	}
	return false
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeName strips directories and shell-hostile characters from an uploaded filename.
func SafeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.TrimLeft(base, ".")
	if base == "" {
		return "upload"
	}
	return base
}
