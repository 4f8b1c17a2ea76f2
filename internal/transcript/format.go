package transcript

import (
	"path/filepath"
	"strings"
)

// Format identifies the file format a transcript was supplied in.
type Format int

const (
	// FormatUnknown means the file extension was not recognised.
	FormatUnknown Format = iota

	// FormatText is plain text (.txt) or Markdown (.md). Kept as-is apart
	// from whitespace normalisation.
	FormatText

	// FormatVTT is a WebVTT caption file (.vtt).
	FormatVTT

	// FormatSRT is a SubRip caption file (.srt).
	FormatSRT
)

// String returns a human-readable label for the format.
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatVTT:
		return "vtt"
	case FormatSRT:
		return "srt"
	default:
		return "unknown"
	}
}

// DetectFormat returns the Format based on a filename's extension. A name
// without an extension is treated as plain text.
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", "":
		return FormatText
	case ".vtt":
		return FormatVTT
	case ".srt":
		return FormatSRT
	default:
		return FormatUnknown
	}
}

// Extensions lists the accepted transcript file extensions.
var Extensions = []string{".txt", ".md", ".vtt", ".srt"}
