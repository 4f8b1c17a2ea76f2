package main

import (
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/scribe/internal/record"
)

func TestMetaInput_Parse(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 5, 21, 0, 0, 0, time.FixedZone("CET", 3600))

	tests := []struct {
		name     string
		in       metaInput
		wantType record.MeetingType
		wantDate time.Time
		wantErr  string
	}{
		{
			name:     "all fields",
			in:       metaInput{Name: " Gala sync ", Type: "Events Subcommittee", Date: "01-02-2024"},
			wantType: record.MeetingEventsSubcommittee,
			wantDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "date defaults to now in UTC",
			in:       metaInput{Name: "weekly", Type: "executive"},
			wantType: record.MeetingExecutive,
			wantDate: now.UTC(),
		},
		{
			name:    "missing name",
			in:      metaInput{Type: "full"},
			wantErr: "meeting name is required",
		},
		{
			name:    "missing type",
			in:      metaInput{Name: "weekly"},
			wantErr: "meeting type is required",
		},
		{
			name:    "unknown type lists choices",
			in:      metaInput{Name: "weekly", Type: "board"},
			wantErr: "hr_subcommittee",
		},
		{
			name:    "bad date",
			in:      metaInput{Name: "weekly", Type: "full", Date: "2024/13/45"},
			wantErr: "invalid meeting date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			meta, err := tt.in.parse(now)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("parse() error = %v, want substring %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse() error = %v", err)
			}
			if meta.Name != strings.TrimSpace(tt.in.Name) {
				t.Errorf("Name = %q", meta.Name)
			}
			if meta.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", meta.Type, tt.wantType)
			}
			if !meta.Date.Equal(tt.wantDate) {
				t.Errorf("Date = %v, want %v", meta.Date, tt.wantDate)
			}
		})
	}
}

func TestMetaInput_Complete(t *testing.T) {
	t.Parallel()

	if (metaInput{Name: "x"}).complete() {
		t.Error("input without a type reported complete")
	}
	if (metaInput{Name: " ", Type: "full"}).complete() {
		t.Error("input with a blank name reported complete")
	}
	if !(metaInput{Name: "x", Type: "full"}).complete() {
		t.Error("input with name and type reported incomplete")
	}
}
