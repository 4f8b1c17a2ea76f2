// Package transcript turns uploaded transcript files into the plain text the
// integrator works on and derives the content hash used to detect a
// transcript that was already processed.
//
// Caption formats (WebVTT, SubRip) are reduced to their spoken lines: the
// header, cue numbers, timing lines and NOTE blocks are dropped and WebVTT
// voice tags become "Speaker: text" prefixes. All formats get the same
// whitespace treatment so that re-saving a file with different line endings
// or trailing blanks yields the same hash.
package transcript

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxSize is the largest transcript accepted, in bytes.
const MaxSize = 4 << 20

var (
	// ErrEmpty is returned when a transcript has no spoken content.
	ErrEmpty = errors.New("transcript: empty")

	// ErrTooLarge is returned when a transcript exceeds [MaxSize].
	ErrTooLarge = errors.New("transcript: too large")

	// ErrUnsupportedFormat is returned for unrecognised file extensions.
	ErrUnsupportedFormat = errors.New("transcript: unsupported format")

	// ErrNotText is returned when the data is not valid UTF-8.
	ErrNotText = errors.New("transcript: not valid UTF-8 text")
)

var (
	timingLine = regexp.MustCompile(`^\s*(\d{1,2}:)?\d{1,2}:\d{2}[.,]\d{3}\s*-->\s*(\d{1,2}:)?\d{1,2}:\d{2}[.,]\d{3}`)
	voiceTag   = regexp.MustCompile(`^<v(?:\.[^ >]*)?\s+([^>]+)>(.*?)(?:</v>)?$`)
	anyTag     = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	cueNumber  = regexp.MustCompile(`^\d+$`)
)

// Load decodes data according to the format implied by filename and returns
// the normalised text.
func Load(filename string, data []byte) (string, error) {
	if len(data) > MaxSize {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(data), MaxSize)
	}
	f := DetectFormat(filename)
	if f == FormatUnknown {
		return "", fmt.Errorf("%w: %q (want one of %s)", ErrUnsupportedFormat, filename, strings.Join(Extensions, ", "))
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %q", ErrNotText, filename)
	}
	text := Normalize(f, string(data))
	if text == "" {
		return "", fmt.Errorf("%w: %q", ErrEmpty, filename)
	}
	return text, nil
}

// Normalize reduces text in format f to normalised plain text. Unknown
// formats are treated as plain text.
func Normalize(f Format, text string) string {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	switch f {
	case FormatVTT:
		lines = captionLines(lines, true)
	case FormatSRT:
		lines = captionLines(lines, false)
	}
	return tidy(lines)
}

// captionLines keeps only cue payload lines, one per line with no blank
// separators between cues.
func captionLines(lines []string, vtt bool) []string {
	out := make([]string, 0, len(lines))
	skipBlock := false
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		if line == "" {
			skipBlock = false
			continue
		}
		if skipBlock {
			continue
		}
		if vtt && (strings.HasPrefix(line, "WEBVTT") || line == "NOTE" || strings.HasPrefix(line, "NOTE ") ||
			line == "STYLE" || line == "REGION") {
			skipBlock = true
			continue
		}
		if timingLine.MatchString(line) {
			continue
		}
		// A cue identifier is the line directly before a timing line. SRT
		// identifiers are always numeric.
		if i+1 < len(lines) && timingLine.MatchString(strings.TrimSpace(lines[i+1])) {
			if vtt || cueNumber.MatchString(line) {
				continue
			}
		}

		if vtt {
			if m := voiceTag.FindStringSubmatch(line); m != nil {
				line = strings.TrimSpace(m[1]) + ": " + strings.TrimSpace(anyTag.ReplaceAllString(m[2], ""))
			}
		}
		line = strings.TrimSpace(anyTag.ReplaceAllString(line, ""))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// tidy trims trailing whitespace, collapses blank runs into a single blank
// line and trims the result.
func tidy(lines []string) string {
	var b strings.Builder
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if strings.TrimSpace(l) == "" {
			blank = true
			continue
		}
		if b.Len() > 0 {
			if blank {
				b.WriteString("\n\n")
			} else {
				b.WriteByte('\n')
			}
		}
		blank = false
		b.WriteString(l)
	}
	return b.String()
}

// ContentHash returns the hex SHA-256 of normalised transcript text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
