package chat_test

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/scribe/internal/chat"
	"github.com/MrWong99/scribe/internal/record"
	"github.com/MrWong99/scribe/internal/store"
)

var fixedNow = time.Date(2024, 11, 15, 14, 30, 0, 0, time.UTC)

type fixture struct {
	tools   *chat.Toolbox
	meeting record.Meeting
}

// newFixture seeds a roster of three members, one project and one meeting
// with three tasks.
func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemStore()

	add := func(m record.Member) record.Member {
		m, err := s.AddMember(ctx, m)
		if err != nil {
			t.Fatal(err)
		}
		return m
	}
	alice := add(record.Member{Name: "Alice Smyth", DiscordID: "u-alice", Role: "President", Email: "alice@example.org"})
	aliceJ := add(record.Member{Name: "Alice Jones", Subcommittee: "Events"})
	bob := add(record.Member{Name: "Jonathan Lee", DiscordID: "u-jon"})
	gala, err := s.AddProject(record.Project{Name: "Winter Gala", Description: "End of year event"})
	if err != nil {
		t.Fatal(err)
	}
	budget, err := s.AddTopic(record.Topic{Name: "Budget Review"})
	if err != nil {
		t.Fatal(err)
	}

	early := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	m := record.Meeting{
		ID: record.NewID(), Name: "Executive Sync November", Type: record.MeetingExecutive,
		Date: time.Date(2024, 11, 10, 0, 0, 0, 0, time.UTC), Summary: "Venue was approved.", ContentHash: "h1",
	}
	cs := &store.ChangeSet{
		Meeting:    m,
		Attendees:  []uuid.UUID{alice.ID, bob.ID},
		ProjectIDs: []uuid.UUID{gala.ID},
		TopicIDs:   []uuid.UUID{budget.ID},
		Tasks: []record.Task{
			{ID: record.NewID(), Name: "Book venue", MeetingID: m.ID, Deadline: &early, ProjectID: &gala.ID, AssigneeIDs: []uuid.UUID{alice.ID}},
			{ID: record.NewID(), Name: "Send invites", MeetingID: m.ID, Deadline: &late, ProjectID: &gala.ID, AssigneeIDs: []uuid.UUID{alice.ID, bob.ID}},
			{ID: record.NewID(), Name: "Update budget sheet", MeetingID: m.ID, AssigneeIDs: []uuid.UUID{aliceJ.ID}},
		},
	}
	if _, err := s.Commit(ctx, cs); err != nil {
		t.Fatal(err)
	}

	tb, err := chat.NewToolbox(nil, chat.NewStoreTools(s, nil, func() time.Time { return fixedNow })...)
	if err != nil {
		t.Fatal(err)
	}
	return fixture{tools: tb, meeting: m}
}

type taskOut struct {
	Name      string   `json:"name"`
	Deadline  string   `json:"deadline"`
	Overdue   bool     `json:"overdue"`
	Project   string   `json:"project"`
	Assignees []string `json:"assignees"`
}

func decode[T any](t *testing.T, res chat.Result) T {
	t.Helper()
	if res.IsError {
		t.Fatalf("tool failed: %s", res.Content)
	}
	var v T
	if err := json.Unmarshal([]byte(res.Content), &v); err != nil {
		t.Fatalf("decode %s: %v", res.Content, err)
	}
	return v
}

func taskNames(tasks []taskOut) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Name)
	}
	return out
}

func TestStoreTools_ListTasks(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name   string
		caller string
		args   string
		want   []string
	}{
		{"all by deadline", "", `{}`, []string{"Book venue", "Send invites", "Update budget sheet"}},
		{"mine", "u-alice", `{"mine":true}`, []string{"Book venue", "Send invites"}},
		{"member by first name", "", `{"member":"Jonathan"}`, []string{"Send invites"}},
		{"member by short name", "", `{"member":"Jon Lee"}`, []string{"Send invites"}},
		{"exact name wins over similar names", "", `{"member":"alice jones"}`, []string{"Update budget sheet"}},
		{"project", "", `{"project":"winter gala"}`, []string{"Book venue", "Send invites"}},
		{"limit", "", `{"limit":1}`, []string{"Book venue"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := chat.WithCaller(context.Background(), tt.caller)
			got := decode[struct{ Tasks []taskOut }](t, f.tools.Execute(ctx, "list_tasks", tt.args))
			if names := taskNames(got.Tasks); !slices.Equal(names, tt.want) {
				t.Errorf("tasks = %v, want %v", names, tt.want)
			}
		})
	}
}

func TestStoreTools_ListTasksDetails(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	got := decode[struct{ Tasks []taskOut }](t, f.tools.Execute(context.Background(), "list_tasks", `{"project":"Winter Gala"}`))
	if len(got.Tasks) != 2 {
		t.Fatalf("tasks = %+v", got.Tasks)
	}
	venue, invites := got.Tasks[0], got.Tasks[1]
	if !venue.Overdue || venue.Deadline != "2024-11-01" || venue.Project != "Winter Gala" {
		t.Errorf("Book venue = %+v, want overdue on 2024-11-01 in Winter Gala", venue)
	}
	if invites.Overdue {
		t.Errorf("Send invites = %+v, want not overdue", invites)
	}
	if !slices.Equal(invites.Assignees, []string{"Alice Smyth", "Jonathan Lee"}) {
		t.Errorf("assignees = %v", invites.Assignees)
	}
}

func TestStoreTools_Errors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name    string
		caller  string
		tool    string
		args    string
		wantErr string
	}{
		{"ambiguous member", "", "list_tasks", `{"member":"Alice"}`, `member "Alice" is ambiguous: Alice Jones, Alice Smyth`},
		{"unknown member", "", "list_tasks", `{"member":"Zed"}`, `no member matches "Zed"`},
		{"mine without account", "u-nobody", "list_tasks", `{"mine":true}`, "no committee member is linked"},
		{"whoami without caller", "", "whoami", `{}`, "unknown"},
		{"bad meeting id", "", "meeting_details", `{"meeting_id":"nope"}`, "not a valid id"},
		{"meeting without selector", "", "meeting_details", `{}`, "meeting_id or name is required"},
		{"malformed arguments", "", "find_member", `{"name":`, "invalid arguments"},
		{"unknown tool", "", "delete_member", `{}`, `unknown tool "delete_member"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := chat.WithCaller(context.Background(), tt.caller)
			res := f.tools.Execute(ctx, tt.tool, tt.args)
			if !res.IsError {
				t.Fatalf("Execute() = %s, want an error", res.Content)
			}
			var body struct{ Error string }
			if err := json.Unmarshal([]byte(res.Content), &body); err != nil {
				t.Fatalf("decode %s: %v", res.Content, err)
			}
			if !strings.Contains(body.Error, tt.wantErr) {
				t.Errorf("error %q does not mention %q", body.Error, tt.wantErr)
			}
		})
	}
}

func TestStoreTools_Lookups(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := chat.WithCaller(context.Background(), "u-alice")

	me := decode[struct{ Name, Email string }](t, f.tools.Execute(ctx, "whoami", ""))
	if me.Name != "Alice Smyth" || me.Email != "alice@example.org" {
		t.Errorf("whoami = %+v", me)
	}

	found := decode[struct{ Members []struct{ Name string } }](t, f.tools.Execute(ctx, "find_member", `{"name":"alice"}`))
	if len(found.Members) != 2 {
		t.Errorf("find_member(alice) = %+v, want both Alices", found.Members)
	}

	now := decode[map[string]string](t, f.tools.Execute(ctx, "current_datetime", `{}`))
	if now["date"] != "2024-11-15" || now["weekday"] != "Friday" {
		t.Errorf("current_datetime = %v", now)
	}

	projects := decode[struct{ Projects []struct{ Name, Description string } }](t, f.tools.Execute(ctx, "list_projects", `{}`))
	if len(projects.Projects) != 1 || projects.Projects[0].Description != "End of year event" {
		t.Errorf("list_projects = %+v", projects)
	}
}

func TestStoreTools_MeetingDetails(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	recent := decode[struct{ Meetings []struct{ ID, Name, Summary string } }](t, f.tools.Execute(ctx, "recent_meetings", `{}`))
	if len(recent.Meetings) != 1 || recent.Meetings[0].ID != f.meeting.ID.String() || recent.Meetings[0].Summary != "" {
		t.Fatalf("recent_meetings = %+v", recent)
	}

	type detail struct {
		Name      string
		Summary   string
		Attendees []string
		Projects  []string
		Topics    []string
		Tasks     []taskOut
	}
	for _, args := range []string{
		`{"meeting_id":"` + f.meeting.ID.String() + `"}`,
		`{"name":"executive sync"}`,
	} {
		d := decode[detail](t, f.tools.Execute(ctx, "meeting_details", args))
		if d.Name != "Executive Sync November" || d.Summary != "Venue was approved." {
			t.Errorf("%s: meeting = %+v", args, d)
		}
		if !slices.Equal(d.Attendees, []string{"Alice Smyth", "Jonathan Lee"}) {
			t.Errorf("%s: attendees = %v", args, d.Attendees)
		}
		if !slices.Equal(d.Projects, []string{"Winter Gala"}) || !slices.Equal(d.Topics, []string{"Budget Review"}) {
			t.Errorf("%s: projects = %v, topics = %v", args, d.Projects, d.Topics)
		}
		if len(d.Tasks) != 3 {
			t.Errorf("%s: tasks = %v", args, taskNames(d.Tasks))
		}
	}
}

func TestStoreTools_Definitions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	defs := f.tools.Definitions()
	var names []string
	for _, d := range defs {
		names = append(names, d.Name)
		if d.Parameters["type"] != "object" {
			t.Errorf("%s: parameters = %v, want an object schema", d.Name, d.Parameters)
		}
	}
	want := []string{"current_datetime", "find_member", "list_projects", "list_tasks", "list_topics", "meeting_details", "recent_meetings", "whoami"}
	if !slices.Equal(names, want) {
		t.Errorf("tools = %v, want %v", names, want)
	}

	for _, d := range defs {
		if d.Name != "find_member" {
			continue
		}
		req, _ := d.Parameters["required"].([]any)
		if len(req) != 1 || req[0] != "name" {
			t.Errorf("find_member required = %v, want [name]", d.Parameters["required"])
		}
	}
}
