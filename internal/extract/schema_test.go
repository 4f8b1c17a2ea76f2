package extract_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/scribe/internal/extract"
)

func TestDecode_RequiredKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		content  string
		wantErrs []string
	}{
		{
			name:     "only a summary",
			content:  `{"summary":"s"}`,
			wantErrs: []string{"participants is required", "projects is required", "topics is required", "tasks is required"},
		},
		{
			name:     "null arrays",
			content:  `{"participants":null,"projects":[],"topics":null,"tasks":[],"summary":"s"}`,
			wantErrs: []string{"participants is required", "topics is required"},
		},
		{
			name:     "task without deadline and assignees",
			content:  `{"participants":[],"projects":[],"topics":[],"tasks":[{"name":"x","description":"","project":""}],"summary":"s"}`,
			wantErrs: []string{"tasks[0].deadline is required", "tasks[0].assignees is required"},
		},
		{
			name:     "task with null assignees",
			content:  `{"participants":[],"projects":[],"topics":[],"tasks":[{"name":"x","description":"","deadline":"","assignees":null,"project":""}],"summary":"s"}`,
			wantErrs: []string{"tasks[0].assignees is required"},
		},
		{
			name:     "topic without summary",
			content:  `{"participants":[],"projects":[],"topics":[{"name":"Budget"}],"tasks":[],"summary":"s"}`,
			wantErrs: []string{"topics[0].summary is required"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ex, err := extract.Decode(tt.content)
			if err == nil {
				t.Fatalf("Decode() = %+v, want an error", ex)
			}
			for _, want := range tt.wantErrs {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}

func TestDecode_NullDeadlineMeansNone(t *testing.T) {
	t.Parallel()

	ex, err := extract.Decode(`{"participants":[],"projects":[],"topics":[],"tasks":[{"name":"x","description":"","deadline":null,"assignees":[],"project":""}],"summary":"s"}`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(ex.Tasks) != 1 || ex.Tasks[0].Deadline != nil {
		t.Errorf("Tasks = %+v, want one task without deadline", ex.Tasks)
	}
}

func TestDecode_EmptyArraysAreAccepted(t *testing.T) {
	t.Parallel()

	ex, err := extract.Decode(`{"participants":[],"projects":[],"topics":[],"tasks":[],"summary":"Nothing was decided."}`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ex.Summary != "Nothing was decided." || len(ex.Tasks) != 0 {
		t.Errorf("Decode() = %+v", ex)
	}
}
