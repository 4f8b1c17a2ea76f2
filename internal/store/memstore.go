package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/scribe/internal/record"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store]. It enforces
// the same uniqueness rules as the Postgres store and is used in tests and
// dry runs. The zero value is ready to use.
type MemStore struct {
	// FailCommit, if set, is called after a change set has been checked and
	// before anything is written. A non-nil error aborts the commit.
	FailCommit func(cs *ChangeSet) error

	mu sync.RWMutex

	members     map[uuid.UUID]record.Member
	memberKeys  map[string]uuid.UUID
	projects    map[uuid.UUID]record.Project
	projectKeys map[string]uuid.UUID
	topics      map[uuid.UUID]record.Topic
	topicKeys   map[string]uuid.UUID

	meetings map[uuid.UUID]record.Meeting
	hashes   map[string]uuid.UUID
	tasks    map[uuid.UUID]record.Task
	links    map[uuid.UUID]MeetingLinks

	projectMembers map[uuid.UUID][]uuid.UUID
	projectTasks   map[uuid.UUID][]uuid.UUID
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	s := &MemStore{}
	s.init()
	return s
}

func (s *MemStore) init() {
	if s.members != nil {
		return
	}
	s.members = make(map[uuid.UUID]record.Member)
	s.memberKeys = make(map[string]uuid.UUID)
	s.projects = make(map[uuid.UUID]record.Project)
	s.projectKeys = make(map[string]uuid.UUID)
	s.topics = make(map[uuid.UUID]record.Topic)
	s.topicKeys = make(map[string]uuid.UUID)
	s.meetings = make(map[uuid.UUID]record.Meeting)
	s.hashes = make(map[string]uuid.UUID)
	s.tasks = make(map[uuid.UUID]record.Task)
	s.links = make(map[uuid.UUID]MeetingLinks)
	s.projectMembers = make(map[uuid.UUID][]uuid.UUID)
	s.projectTasks = make(map[uuid.UUID][]uuid.UUID)
}

// Members implements [Store.Members].
func (s *MemStore) Members(ctx context.Context) ([]record.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByName(s.members, func(m record.Member) string { return m.Name }), nil
}

// Projects implements [Store.Projects].
func (s *MemStore) Projects(ctx context.Context) ([]record.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByName(s.projects, func(p record.Project) string { return p.Name }), nil
}

// Topics implements [Store.Topics].
func (s *MemStore) Topics(ctx context.Context) ([]record.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByName(s.topics, func(t record.Topic) string { return t.Name }), nil
}

// MeetingByHash implements [Store.MeetingByHash].
func (s *MemStore) MeetingByHash(ctx context.Context, hash string) (record.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.hashes[hash]
	if !ok {
		return record.Meeting{}, ErrNotFound
	}
	return s.meetings[id], nil
}

// AddMember implements [Store.AddMember].
func (s *MemStore) AddMember(ctx context.Context, m record.Member) (record.Member, error) {
	if err := record.ValidateMember(m); err != nil {
		return record.Member{}, fmt.Errorf("store: add member: %w", err)
	}
	if m.ID == uuid.Nil {
		m.ID = record.NewID()
	}
	if m.IngestedAt.IsZero() {
		m.IngestedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	key := NameKey(m.Name)
	if _, exists := s.memberKeys[key]; exists {
		return record.Member{}, fmt.Errorf("store: add member %q: %w", m.Name, ErrDuplicateName)
	}
	if _, exists := s.members[m.ID]; exists {
		return record.Member{}, fmt.Errorf("store: add member %q: id %s already exists", m.Name, m.ID)
	}
	s.members[m.ID] = m
	s.memberKeys[key] = m.ID
	return m, nil
}

// AddProject seeds a project outside of a commit. Returns
// [ErrDuplicateName] if the name key is taken.
func (s *MemStore) AddProject(p record.Project) (record.Project, error) {
	if p.ID == uuid.Nil {
		p.ID = record.NewID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	key := NameKey(p.Name)
	if _, exists := s.projectKeys[key]; exists {
		return record.Project{}, fmt.Errorf("store: add project %q: %w", p.Name, ErrDuplicateName)
	}
	s.projects[p.ID] = p
	s.projectKeys[key] = p.ID
	return p, nil
}

// AddTopic seeds a topic outside of a commit. Returns [ErrDuplicateName] if
// the name key is taken.
func (s *MemStore) AddTopic(t record.Topic) (record.Topic, error) {
	if t.ID == uuid.Nil {
		t.ID = record.NewID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	key := NameKey(t.Name)
	if _, exists := s.topicKeys[key]; exists {
		return record.Topic{}, fmt.Errorf("store: add topic %q: %w", t.Name, ErrDuplicateName)
	}
	s.topics[t.ID] = t
	s.topicKeys[key] = t.ID
	return t, nil
}

// Commit implements [Store.Commit]. Nothing is written unless every check
// passes.
func (s *MemStore) Commit(ctx context.Context, cs *ChangeSet) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	if cs == nil {
		return nil, errors.New("store: commit: nil change set")
	}
	if err := cs.Validate(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	if _, exists := s.hashes[cs.Meeting.ContentHash]; exists {
		return nil, fmt.Errorf("store: commit meeting %q: %w", cs.Meeting.Name, ErrDuplicateHash)
	}
	if _, exists := s.meetings[cs.Meeting.ID]; exists {
		return nil, fmt.Errorf("store: commit meeting %q: id %s already exists", cs.Meeting.Name, cs.Meeting.ID)
	}

	remapped := make(map[uuid.UUID]uuid.UUID)
	newProjects := make(map[uuid.UUID]record.Project)
	stagedProjectKeys := make(map[string]uuid.UUID)
	for _, p := range cs.NewProjects {
		key := NameKey(p.Name)
		if id, ok := s.projectKeys[key]; ok {
			remapped[p.ID] = id
			continue
		}
		if id, ok := stagedProjectKeys[key]; ok {
			remapped[p.ID] = id
			continue
		}
		if _, exists := s.projects[p.ID]; exists {
			return nil, fmt.Errorf("store: commit: project id %s already exists", p.ID)
		}
		stagedProjectKeys[key] = p.ID
		newProjects[p.ID] = p
	}
	newTopics := make(map[uuid.UUID]record.Topic)
	stagedTopicKeys := make(map[string]uuid.UUID)
	for _, t := range cs.NewTopics {
		key := NameKey(t.Name)
		if id, ok := s.topicKeys[key]; ok {
			remapped[t.ID] = id
			continue
		}
		if id, ok := stagedTopicKeys[key]; ok {
			remapped[t.ID] = id
			continue
		}
		if _, exists := s.topics[t.ID]; exists {
			return nil, fmt.Errorf("store: commit: topic id %s already exists", t.ID)
		}
		stagedTopicKeys[key] = t.ID
		newTopics[t.ID] = t
	}
	remap := func(id uuid.UUID) uuid.UUID {
		if to, ok := remapped[id]; ok {
			return to
		}
		return id
	}

	hasMember := func(id uuid.UUID) bool {
		_, ok := s.members[id]
		return ok
	}
	hasProject := func(id uuid.UUID) bool {
		_, ok := s.projects[id]
		_, staged := newProjects[id]
		return ok || staged
	}
	hasTopic := func(id uuid.UUID) bool {
		_, ok := s.topics[id]
		_, staged := newTopics[id]
		return ok || staged
	}

	links := MeetingLinks{
		Attendees: UniqueIDs(cs.Attendees, remap),
		Projects:  UniqueIDs(cs.ProjectIDs, remap),
		Topics:    UniqueIDs(cs.TopicIDs, remap),
	}
	var errs []error
	for _, id := range links.Attendees {
		if !hasMember(id) {
			errs = append(errs, fmt.Errorf("attendee %s: %w", id, ErrNotFound))
		}
	}
	for _, id := range links.Projects {
		if !hasProject(id) {
			errs = append(errs, fmt.Errorf("project %s: %w", id, ErrNotFound))
		}
	}
	for _, id := range links.Topics {
		if !hasTopic(id) {
			errs = append(errs, fmt.Errorf("topic %s: %w", id, ErrNotFound))
		}
	}
	tasks := make([]record.Task, 0, len(cs.Tasks))
	for _, t := range cs.Tasks {
		if _, exists := s.tasks[t.ID]; exists {
			errs = append(errs, fmt.Errorf("task id %s already exists", t.ID))
		}
		if t.ProjectID != nil {
			pid := remap(*t.ProjectID)
			if !hasProject(pid) {
				errs = append(errs, fmt.Errorf("task %q project %s: %w", t.Name, pid, ErrNotFound))
			}
			t.ProjectID = &pid
		}
		t.AssigneeIDs = UniqueIDs(t.AssigneeIDs, func(id uuid.UUID) uuid.UUID { return id })
		for _, id := range t.AssigneeIDs {
			if !hasMember(id) {
				errs = append(errs, fmt.Errorf("task %q assignee %s: %w", t.Name, id, ErrNotFound))
			}
		}
		tasks = append(tasks, t)
		links.Tasks = append(links.Tasks, t.ID)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("store: commit meeting %q: %w", cs.Meeting.Name, err)
	}

	if s.FailCommit != nil {
		if err := s.FailCommit(cs); err != nil {
			return nil, fmt.Errorf("store: commit meeting %q: %w", cs.Meeting.Name, err)
		}
	}

	meeting := cs.Meeting
	if meeting.IngestedAt.IsZero() {
		meeting.IngestedAt = time.Now().UTC()
	}
	s.meetings[meeting.ID] = meeting
	s.hashes[meeting.ContentHash] = meeting.ID
	for id, p := range newProjects {
		s.projects[id] = p
		s.projectKeys[NameKey(p.Name)] = id
	}
	for id, t := range newTopics {
		s.topics[id] = t
		s.topicKeys[NameKey(t.Name)] = id
	}
	for _, t := range tasks {
		s.tasks[t.ID] = t
		if t.ProjectID != nil {
			s.projectTasks[*t.ProjectID] = append(s.projectTasks[*t.ProjectID], t.ID)
		}
	}
	for _, pair := range ProjectMembers(&ChangeSet{Tasks: tasks}, remap) {
		if !slices.Contains(s.projectMembers[pair[0]], pair[1]) {
			s.projectMembers[pair[0]] = append(s.projectMembers[pair[0]], pair[1])
		}
	}
	s.links[meeting.ID] = links

	return &Receipt{MeetingID: meeting.ID, Remapped: remapped}, nil
}

// RecentMeetings implements [Store.RecentMeetings].
func (s *MemStore) RecentMeetings(ctx context.Context, limit int) ([]record.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]record.Meeting, 0, len(s.meetings))
	for _, m := range s.meetings {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b record.Meeting) int {
		if c := b.IngestedAt.Compare(a.IngestedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Meeting implements [Store.Meeting].
func (s *MemStore) Meeting(ctx context.Context, id uuid.UUID) (record.Meeting, MeetingLinks, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[id]
	if !ok {
		return record.Meeting{}, MeetingLinks{}, fmt.Errorf("meeting %s: %w", id, ErrNotFound)
	}
	l := s.links[id]
	return m, MeetingLinks{
		Attendees: slices.Clone(l.Attendees),
		Projects:  slices.Clone(l.Projects),
		Topics:    slices.Clone(l.Topics),
		Tasks:     slices.Clone(l.Tasks),
	}, nil
}

// Tasks implements [Store.Tasks].
func (s *MemStore) Tasks(ctx context.Context, f TaskFilter) ([]record.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []record.Task
	for _, t := range s.tasks {
		if f.Match(t) {
			t.AssigneeIDs = slices.Clone(t.AssigneeIDs)
			out = append(out, t)
		}
	}
	slices.SortFunc(out, CompareTasks)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Stats implements [Store.Stats].
func (s *MemStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Meetings: len(s.meetings),
		Members:  len(s.members),
		Projects: len(s.projects),
		Topics:   len(s.topics),
		Tasks:    len(s.tasks),
	}, nil
}

// Ping implements [Store.Ping]. It always succeeds.
func (s *MemStore) Ping(ctx context.Context) error { return nil }

// Close implements [Store.Close]. It is a no-op.
func (s *MemStore) Close() {}

// Links returns the rows linked to the meeting with the given id.
func (s *MemStore) Links(meetingID uuid.UUID) (MeetingLinks, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.links[meetingID]
	return l, ok
}

// Task returns the task with the given id.
func (s *MemStore) Task(id uuid.UUID) (record.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok
}

// ProjectLinks returns the member and task IDs linked to a project.
func (s *MemStore) ProjectLinks(projectID uuid.UUID) (members, tasks []uuid.UUID) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.projectMembers[projectID]), slices.Clone(s.projectTasks[projectID])
}

func sortedByName[T any](m map[uuid.UUID]T, name func(T) string) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b T) int {
		return cmp.Compare(NameKey(name(a)), NameKey(name(b)))
	})
	return out
}
