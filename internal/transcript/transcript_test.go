package transcript_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/scribe/internal/transcript"
)

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want transcript.Format
	}{
		{"meeting.txt", transcript.FormatText},
		{"notes.MD", transcript.FormatText},
		{"README", transcript.FormatText},
		{"call.vtt", transcript.FormatVTT},
		{"call.srt", transcript.FormatSRT},
		{"audio.mp3", transcript.FormatUnknown},
	}
	for _, tt := range tests {
		if got := transcript.DetectFormat(tt.name); got != tt.want {
			t.Errorf("DetectFormat(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		format transcript.Format
		in     string
		want   string
	}{
		{
			name:   "plain text whitespace",
			format: transcript.FormatText,
			in:     "\ufeffLine one  \r\n\r\n\r\nLine two\r\n\n",
			want:   "Line one\n\nLine two",
		},
		{
			name:   "webvtt",
			format: transcript.FormatVTT,
			in: strings.Join([]string{
				"WEBVTT",
				"Kind: captions",
				"",
				"NOTE recorded on zoom",
				"",
				"1",
				"00:00:01.000 --> 00:00:04.000",
				"<v Alice Smyth>Let's start with the gala.</v>",
				"",
				"intro-2",
				"00:05.000 --> 00:07.500 align:start",
				"<v Bob>Sounds <b>good</b>.",
			}, "\n"),
			want: "Alice Smyth: Let's start with the gala.\nBob: Sounds good.",
		},
		{
			name:   "subrip",
			format: transcript.FormatSRT,
			in: strings.Join([]string{
				"1",
				"00:00:01,000 --> 00:00:04,000",
				"Alice: Hello everyone.",
				"",
				"2",
				"00:00:05,000 --> 00:00:07,000",
				"Bob: <i>Hi</i> there.",
				"",
			}, "\r\n"),
			want: "Alice: Hello everyone.\nBob: Hi there.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := transcript.Normalize(tt.format, tt.in); got != tt.want {
				t.Errorf("Normalize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		data     []byte
		want     error
	}{
		{"unsupported", "audio.mp3", []byte("x"), transcript.ErrUnsupportedFormat},
		{"empty", "a.txt", []byte(" \n\n "), transcript.ErrEmpty},
		{"captions only", "a.srt", []byte("1\n00:00:01,000 --> 00:00:02,000\n"), transcript.ErrEmpty},
		{"binary", "a.txt", []byte{0xff, 0xfe, 0xfd}, transcript.ErrNotText},
		{"too large", "a.txt", make([]byte, transcript.MaxSize+1), transcript.ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := transcript.Load(tt.filename, tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestContentHash_StableAcrossLineEndings(t *testing.T) {
	t.Parallel()

	a, err := transcript.Load("a.txt", []byte("Alice: hi\nBob: hello\n"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := transcript.Load("b.md", []byte("Alice: hi  \r\nBob: hello\r\n\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if transcript.ContentHash(a) != transcript.ContentHash(b) {
		t.Error("hashes differ for equivalent transcripts")
	}
	if transcript.ContentHash(a) == transcript.ContentHash(a+"!") {
		t.Error("hashes equal for different transcripts")
	}
	if got := len(transcript.ContentHash(a)); got != 64 {
		t.Errorf("hash length = %d, want 64", got)
	}
}

func TestMeetingName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		file string
		want string
	}{
		{"Budget Review.txt", "budget_review"},
		{"exec--meeting__05-02-2026.vtt", "exec_meeting_05_02_2026"},
		{"/uploads/Sprint Planning (final).srt", "sprint_planning_final"},
		{"  Weekly Sync  .md", "weekly_sync"},
		{"Réunion d'équipe.txt", "réunion_d_équipe"},
		{"---.txt", ""},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			t.Parallel()
			if got := transcript.MeetingName(tt.file); got != tt.want {
				t.Errorf("MeetingName(%q) = %q, want %q", tt.file, got, tt.want)
			}
		})
	}
}
