package transcript

import (
	"path/filepath"
	"regexp"
	"strings"
)

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// MeetingName derives a default meeting name from a transcript file name:
// the extension is dropped, every run of non-word characters becomes a
// single underscore and the result is lowercased. It returns "" when nothing
// word-like remains.
func MeetingName(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	name := nonWord.ReplaceAllString(base, "_")
	return strings.ToLower(strings.Trim(name, "_"))
}
