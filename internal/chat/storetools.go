package chat

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/scribe/internal/match"
	"github.com/MrWong99/scribe/internal/record"
	"github.com/MrWong99/scribe/internal/store"
	"github.com/MrWong99/scribe/pkg/provider/llm"
)

// Reader is the read side of the record store the tools query.
type Reader interface {
	Members(ctx context.Context) ([]record.Member, error)
	Projects(ctx context.Context) ([]record.Project, error)
	Topics(ctx context.Context) ([]record.Topic, error)
	RecentMeetings(ctx context.Context, limit int) ([]record.Meeting, error)
	Meeting(ctx context.Context, id uuid.UUID) (record.Meeting, store.MeetingLinks, error)
	Tasks(ctx context.Context, f store.TaskFilter) ([]record.Task, error)
}

const (
	// lookupCutoff is the minimum similarity for a fuzzy name lookup.
	lookupCutoff = 0.6

	maxCandidates     = 5
	defaultTaskLimit  = 20
	maxTaskLimit      = 50
	defaultMeetLimit  = 5
	maxMeetLimit      = 25
	meetingSearchPool = 50
)

type memberView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Role         string `json:"role,omitempty"`
	Subcommittee string `json:"subcommittee,omitempty"`
	Email        string `json:"email,omitempty"`
}

type namedView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type taskView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Deadline    string   `json:"deadline,omitempty"`
	Overdue     bool     `json:"overdue,omitempty"`
	Project     string   `json:"project,omitempty"`
	Assignees   []string `json:"assignees"`
	MeetingID   string   `json:"meeting_id"`
}

type meetingView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Date    string `json:"date"`
	Summary string `json:"summary,omitempty"`
}

type meetingDetail struct {
	meetingView
	Attendees []string   `json:"attendees"`
	Projects  []string   `json:"projects"`
	Topics    []string   `json:"topics"`
	Tasks     []taskView `json:"tasks"`
}

type findMemberArgs struct {
	Name string `json:"name" jsonschema:"description=Full or partial member name"`
}

type listTasksArgs struct {
	Mine      bool   `json:"mine,omitempty" jsonschema:"description=Only tasks assigned to the person asking"`
	Member    string `json:"member,omitempty" jsonschema:"description=Only tasks assigned to this member (full or partial name)"`
	Project   string `json:"project,omitempty" jsonschema:"description=Only tasks of this project"`
	MeetingID string `json:"meeting_id,omitempty" jsonschema:"description=Only tasks assigned in this meeting"`
	Limit     int    `json:"limit,omitempty" jsonschema:"description=Maximum number of tasks (default 20),minimum=1,maximum=50"`
}

type recentMeetingsArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"description=Maximum number of meetings (default 5),minimum=1,maximum=25"`
}

type meetingDetailsArgs struct {
	MeetingID string `json:"meeting_id,omitempty" jsonschema:"description=Meeting id as returned by recent_meetings"`
	Name      string `json:"name,omitempty" jsonschema:"description=Meeting name when the id is unknown"`
}

type noArgs struct{}

// storeTools implements the read-only record tools.
type storeTools struct {
	r       Reader
	matcher *match.Matcher
	now     func() time.Time
}

// NewStoreTools returns read-only tools over r. A nil matcher uses the
// default matcher; a nil now uses time.Now.
func NewStoreTools(r Reader, m *match.Matcher, now func() time.Time) []Tool {
	if m == nil {
		m = match.New()
	}
	if now == nil {
		now = time.Now
	}
	st := &storeTools{r: r, matcher: m, now: now}

	return []Tool{
		{
			Definition: llm.ToolDefinition{
				Name:        "current_datetime",
				Description: "Current date, time and weekday. Use it for questions about today, deadlines or how long ago something was.",
				Parameters:  paramsOf(&noArgs{}),
			},
			Handler: st.currentDatetime,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "whoami",
				Description: "The committee member record of the person asking, looked up by their Discord account.",
				Parameters:  paramsOf(&noArgs{}),
			},
			Handler: st.whoami,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "find_member",
				Description: "Look up committee members by full or partial name. Returns role, subcommittee and email. Several results mean the name is ambiguous.",
				Parameters:  paramsOf(&findMemberArgs{}),
			},
			Handler: st.findMember,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "list_tasks",
				Description: "List tasks ordered by deadline, optionally filtered by assignee, project or meeting. Each task has its assignees, project and an overdue flag.",
				Parameters:  paramsOf(&listTasksArgs{}),
			},
			Handler: st.listTasks,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "recent_meetings",
				Description: "List the most recently processed meetings, newest first.",
				Parameters:  paramsOf(&recentMeetingsArgs{}),
			},
			Handler: st.recentMeetings,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "meeting_details",
				Description: "Summary, attendees, projects, topics and tasks of one meeting, by id or by name.",
				Parameters:  paramsOf(&meetingDetailsArgs{}),
			},
			Handler: st.meetingDetails,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "list_projects",
				Description: "List every project with its description.",
				Parameters:  paramsOf(&noArgs{}),
			},
			Handler: st.listProjects,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "list_topics",
				Description: "List every tracked discussion topic with its description.",
				Parameters:  paramsOf(&noArgs{}),
			},
			Handler: st.listTopics,
		},
	}
}

func (st *storeTools) currentDatetime(_ context.Context, _ string) (string, error) {
	now := st.now()
	return encode("current_datetime", map[string]string{
		"datetime": now.Format(time.RFC3339),
		"date":     now.Format(time.DateOnly),
		"weekday":  now.Weekday().String(),
	})
}

func (st *storeTools) whoami(ctx context.Context, _ string) (string, error) {
	me, err := st.caller(ctx)
	if err != nil {
		return "", fmt.Errorf("whoami: %w", err)
	}
	return encode("whoami", viewMember(me))
}

func (st *storeTools) findMember(ctx context.Context, args string) (string, error) {
	var a findMemberArgs
	if err := decodeArgs("find_member", args, &a); err != nil {
		return "", err
	}
	if strings.TrimSpace(a.Name) == "" {
		return "", errors.New("find_member: name must not be empty")
	}
	members, err := st.r.Members(ctx)
	if err != nil {
		return "", fmt.Errorf("find_member: %w", err)
	}
	cands := rank(st.matcher, a.Name, members, func(m record.Member) string { return m.Name })
	out := make([]memberView, 0, len(cands))
	for _, c := range cands {
		out = append(out, viewMember(c.item))
	}
	return encode("find_member", map[string]any{"members": out})
}

func (st *storeTools) listTasks(ctx context.Context, args string) (string, error) {
	var a listTasksArgs
	if err := decodeArgs("list_tasks", args, &a); err != nil {
		return "", err
	}

	members, err := st.r.Members(ctx)
	if err != nil {
		return "", fmt.Errorf("list_tasks: %w", err)
	}
	projects, err := st.r.Projects(ctx)
	if err != nil {
		return "", fmt.Errorf("list_tasks: %w", err)
	}

	f := store.TaskFilter{Limit: clamp(a.Limit, defaultTaskLimit, maxTaskLimit)}
	switch {
	case a.Mine:
		me, err := st.caller(ctx)
		if err != nil {
			return "", fmt.Errorf("list_tasks: %w", err)
		}
		f.AssigneeID = &me.ID
	case a.Member != "":
		m, err := pick("member", a.Member, rank(st.matcher, a.Member, members, func(m record.Member) string { return m.Name }))
		if err != nil {
			return "", fmt.Errorf("list_tasks: %w", err)
		}
		f.AssigneeID = &m.ID
	}
	if a.Project != "" {
		p, err := pick("project", a.Project, rank(st.matcher, a.Project, projects, func(p record.Project) string { return p.Name }))
		if err != nil {
			return "", fmt.Errorf("list_tasks: %w", err)
		}
		f.ProjectID = &p.ID
	}
	if a.MeetingID != "" {
		id, err := uuid.Parse(a.MeetingID)
		if err != nil {
			return "", fmt.Errorf("list_tasks: meeting_id %q is not a valid id", a.MeetingID)
		}
		f.MeetingID = &id
	}

	tasks, err := st.r.Tasks(ctx, f)
	if err != nil {
		return "", fmt.Errorf("list_tasks: %w", err)
	}
	names := nameIndex(members, projects)
	out := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, st.viewTask(t, names))
	}
	return encode("list_tasks", map[string]any{"tasks": out})
}

func (st *storeTools) recentMeetings(ctx context.Context, args string) (string, error) {
	var a recentMeetingsArgs
	if err := decodeArgs("recent_meetings", args, &a); err != nil {
		return "", err
	}
	meetings, err := st.r.RecentMeetings(ctx, clamp(a.Limit, defaultMeetLimit, maxMeetLimit))
	if err != nil {
		return "", fmt.Errorf("recent_meetings: %w", err)
	}
	out := make([]meetingView, 0, len(meetings))
	for _, m := range meetings {
		v := viewMeeting(m)
		v.Summary = ""
		out = append(out, v)
	}
	return encode("recent_meetings", map[string]any{"meetings": out})
}

func (st *storeTools) meetingDetails(ctx context.Context, args string) (string, error) {
	var a meetingDetailsArgs
	if err := decodeArgs("meeting_details", args, &a); err != nil {
		return "", err
	}

	var id uuid.UUID
	switch {
	case a.MeetingID != "":
		parsed, err := uuid.Parse(a.MeetingID)
		if err != nil {
			return "", fmt.Errorf("meeting_details: meeting_id %q is not a valid id", a.MeetingID)
		}
		id = parsed
	case a.Name != "":
		recent, err := st.r.RecentMeetings(ctx, meetingSearchPool)
		if err != nil {
			return "", fmt.Errorf("meeting_details: %w", err)
		}
		m, err := pick("meeting", a.Name, rank(st.matcher, a.Name, recent, func(m record.Meeting) string { return m.Name }))
		if err != nil {
			return "", fmt.Errorf("meeting_details: %w", err)
		}
		id = m.ID
	default:
		return "", errors.New("meeting_details: meeting_id or name is required")
	}

	m, links, err := st.r.Meeting(ctx, id)
	if err != nil {
		return "", fmt.Errorf("meeting_details: %w", err)
	}
	members, err := st.r.Members(ctx)
	if err != nil {
		return "", fmt.Errorf("meeting_details: %w", err)
	}
	projects, err := st.r.Projects(ctx)
	if err != nil {
		return "", fmt.Errorf("meeting_details: %w", err)
	}
	topics, err := st.r.Topics(ctx)
	if err != nil {
		return "", fmt.Errorf("meeting_details: %w", err)
	}
	tasks, err := st.r.Tasks(ctx, store.TaskFilter{MeetingID: &id})
	if err != nil {
		return "", fmt.Errorf("meeting_details: %w", err)
	}

	names := nameIndex(members, projects)
	for _, t := range topics {
		names[t.ID] = t.Name
	}
	d := meetingDetail{
		meetingView: viewMeeting(m),
		Attendees:   lookup(names, links.Attendees),
		Projects:    lookup(names, links.Projects),
		Topics:      lookup(names, links.Topics),
		Tasks:       make([]taskView, 0, len(tasks)),
	}
	for _, t := range tasks {
		d.Tasks = append(d.Tasks, st.viewTask(t, names))
	}
	return encode("meeting_details", d)
}

func (st *storeTools) listProjects(ctx context.Context, _ string) (string, error) {
	projects, err := st.r.Projects(ctx)
	if err != nil {
		return "", fmt.Errorf("list_projects: %w", err)
	}
	out := make([]namedView, 0, len(projects))
	for _, p := range projects {
		out = append(out, namedView{ID: p.ID.String(), Name: p.Name, Description: p.Description})
	}
	return encode("list_projects", map[string]any{"projects": out})
}

func (st *storeTools) listTopics(ctx context.Context, _ string) (string, error) {
	topics, err := st.r.Topics(ctx)
	if err != nil {
		return "", fmt.Errorf("list_topics: %w", err)
	}
	out := make([]namedView, 0, len(topics))
	for _, t := range topics {
		out = append(out, namedView{ID: t.ID.String(), Name: t.Name, Description: t.Description})
	}
	return encode("list_topics", map[string]any{"topics": out})
}

// caller returns the member linked to the Discord account in ctx.
func (st *storeTools) caller(ctx context.Context) (record.Member, error) {
	id := CallerFrom(ctx)
	if id == "" {
		return record.Member{}, errors.New("the person asking is unknown")
	}
	members, err := st.r.Members(ctx)
	if err != nil {
		return record.Member{}, err
	}
	for _, m := range members {
		if m.DiscordID == id {
			return m, nil
		}
	}
	return record.Member{}, errors.New("no committee member is linked to the Discord account of the person asking")
}

func (st *storeTools) viewTask(t record.Task, names map[uuid.UUID]string) taskView {
	v := taskView{
		ID:          t.ID.String(),
		Name:        t.Name,
		Description: t.Description,
		Assignees:   lookup(names, t.AssigneeIDs),
		MeetingID:   t.MeetingID.String(),
	}
	if t.Deadline != nil {
		v.Deadline = t.Deadline.Format(time.DateOnly)
		y, m, d := st.now().Date()
		v.Overdue = t.Deadline.Before(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
	}
	if t.ProjectID != nil {
		v.Project = names[*t.ProjectID]
	}
	return v
}

func viewMember(m record.Member) memberView {
	return memberView{
		ID:           m.ID.String(),
		Name:         m.Name,
		Role:         m.Role,
		Subcommittee: m.Subcommittee,
		Email:        m.Email,
	}
}

func viewMeeting(m record.Meeting) meetingView {
	return meetingView{
		ID:      m.ID.String(),
		Name:    m.Name,
		Type:    string(m.Type),
		Date:    m.Date.Format(time.DateOnly),
		Summary: m.Summary,
	}
}

type candidate[T any] struct {
	item  T
	name  string
	score float64
	exact bool
}

// rank returns the items whose name contains query or scores at least
// lookupCutoff against it, best first and at most maxCandidates.
func rank[T any](m *match.Matcher, query string, items []T, name func(T) string) []candidate[T] {
	q := store.NameKey(query)
	var out []candidate[T]
	for _, it := range items {
		n := name(it)
		key := store.NameKey(n)
		score := m.Score(query, n)
		if key != q && !strings.Contains(key, q) && score < lookupCutoff {
			continue
		}
		out = append(out, candidate[T]{item: it, name: n, score: score, exact: key == q})
	}
	slices.SortStableFunc(out, func(a, b candidate[T]) int {
		if a.exact != b.exact {
			if a.exact {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})
	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out
}

// pick returns the single intended candidate: an exact name, or the only
// one. Anything else is reported so the model can ask which was meant.
func pick[T any](kind, query string, cands []candidate[T]) (T, error) {
	var zero T
	switch {
	case len(cands) == 0:
		return zero, fmt.Errorf("no %s matches %q", kind, query)
	case cands[0].exact, len(cands) == 1:
		return cands[0].item, nil
	}
	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = c.name
	}
	return zero, fmt.Errorf("%s %q is ambiguous: %s", kind, query, strings.Join(names, ", "))
}

func nameIndex(members []record.Member, projects []record.Project) map[uuid.UUID]string {
	names := make(map[uuid.UUID]string, len(members)+len(projects))
	for _, m := range members {
		names[m.ID] = m.Name
	}
	for _, p := range projects {
		names[p.ID] = p.Name
	}
	return names
}

func lookup(names map[uuid.UUID]string, ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := names[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

func clamp(n, def, limit int) int {
	if n <= 0 {
		return def
	}
	return min(n, limit)
}
