// Package store defines the persistence boundary for scribe records.
//
// A [Store] reads the canonical entity pools (members, projects, topics) and
// commits everything derived from one transcript as a single [ChangeSet].
// Commit is all-or-nothing: either every row in the change set becomes
// visible or none does.
package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/MrWong99/scribe/internal/record"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicateHash is returned by Commit when a meeting with the same content
// hash already exists.
var ErrDuplicateHash = errors.New("store: meeting content hash already exists")

// ErrDuplicateName is returned by AddMember when a member with the same
// canonical name already exists.
var ErrDuplicateName = errors.New("store: name already exists")

// Store is the storage collaborator of the integrator.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// Members returns the committee roster ordered by name.
	Members(ctx context.Context) ([]record.Member, error)

	// Projects returns every project ordered by name.
	Projects(ctx context.Context) ([]record.Project, error)

	// Topics returns every topic ordered by name.
	Topics(ctx context.Context) ([]record.Topic, error)

	// MeetingByHash returns the meeting ingested from the transcript with the
	// given content hash, or [ErrNotFound].
	MeetingByHash(ctx context.Context, hash string) (record.Meeting, error)

	// Commit atomically persists cs. Staged projects or topics whose name
	// key already exists are linked to the existing row instead; the
	// replacements are reported in the returned [Receipt].
	// Returns an error wrapping [ErrDuplicateHash] when the meeting's content
	// hash is already taken.
	Commit(ctx context.Context, cs *ChangeSet) (*Receipt, error)

	// AddMember adds m to the roster. A nil ID is replaced by a fresh one.
	// Returns [ErrDuplicateName] if a member with the same name key exists.
	AddMember(ctx context.Context, m record.Member) (record.Member, error)

	// RecentMeetings returns up to limit meetings, newest first.
	RecentMeetings(ctx context.Context, limit int) ([]record.Meeting, error)

	// Meeting returns the meeting with the given id and its links, or
	// [ErrNotFound].
	Meeting(ctx context.Context, id uuid.UUID) (record.Meeting, MeetingLinks, error)

	// Tasks returns the tasks matching f ordered by deadline, undated tasks
	// last, then by name.
	Tasks(ctx context.Context, f TaskFilter) ([]record.Task, error)

	// Stats returns row counts.
	Stats(ctx context.Context) (Stats, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close()
}

// MeetingLinks are the rows linked to one meeting.
type MeetingLinks struct {
	Attendees []uuid.UUID
	Projects  []uuid.UUID
	Topics    []uuid.UUID
	Tasks     []uuid.UUID
}

// TaskFilter narrows [Store.Tasks]. Nil fields match every task; a zero
// Limit means no limit.
type TaskFilter struct {
	AssigneeID *uuid.UUID
	ProjectID  *uuid.UUID
	MeetingID  *uuid.UUID
	Limit      int
}

// Match reports whether t passes f.
func (f TaskFilter) Match(t record.Task) bool {
	if f.AssigneeID != nil && !slices.Contains(t.AssigneeIDs, *f.AssigneeID) {
		return false
	}
	if f.ProjectID != nil && (t.ProjectID == nil || *t.ProjectID != *f.ProjectID) {
		return false
	}
	if f.MeetingID != nil && t.MeetingID != *f.MeetingID {
		return false
	}
	return true
}

// CompareTasks orders tasks by deadline, undated tasks last, then by name.
func CompareTasks(a, b record.Task) int {
	switch {
	case a.Deadline != nil && b.Deadline != nil:
		if c := a.Deadline.Compare(*b.Deadline); c != 0 {
			return c
		}
	case a.Deadline != nil:
		return -1
	case b.Deadline != nil:
		return 1
	}
	return cmp.Compare(NameKey(a.Name), NameKey(b.Name))
}

// Stats holds per-table row counts.
type Stats struct {
	Meetings int `json:"meetings"`
	Members  int `json:"members"`
	Projects int `json:"projects"`
	Topics   int `json:"topics"`
	Tasks    int `json:"tasks"`
}

// ChangeSet is everything derived from one transcript.
type ChangeSet struct {
	Meeting record.Meeting

	// NewProjects and NewTopics are staged entities. Their IDs are final
	// unless the store remaps them onto an existing row with the same name
	// key.
	NewProjects []record.Project
	NewTopics   []record.Topic

	// Attendees, ProjectIDs and TopicIDs are the meeting's link targets.
	// They may reference staged entities.
	Attendees  []uuid.UUID
	ProjectIDs []uuid.UUID
	TopicIDs   []uuid.UUID

	// Tasks belong to Meeting. A task with a ProjectID is linked to the
	// project and its assignees become project members.
	Tasks []record.Task
}

// Validate checks the structural consistency of cs.
func (cs *ChangeSet) Validate() error {
	var errs []error
	if cs.Meeting.ID == uuid.Nil {
		errs = append(errs, errors.New("meeting id is required"))
	}
	if strings.TrimSpace(cs.Meeting.Name) == "" {
		errs = append(errs, errors.New("meeting name is required"))
	}
	if cs.Meeting.ContentHash == "" {
		errs = append(errs, errors.New("meeting content hash is required"))
	}
	for i, p := range cs.NewProjects {
		if p.ID == uuid.Nil || NameKey(p.Name) == "" {
			errs = append(errs, fmt.Errorf("new_projects[%d]: id and name are required", i))
		}
	}
	for i, t := range cs.NewTopics {
		if t.ID == uuid.Nil || NameKey(t.Name) == "" {
			errs = append(errs, fmt.Errorf("new_topics[%d]: id and name are required", i))
		}
	}
	for i, t := range cs.Tasks {
		if t.ID == uuid.Nil || strings.TrimSpace(t.Name) == "" {
			errs = append(errs, fmt.Errorf("tasks[%d]: id and name are required", i))
		}
		if t.MeetingID != cs.Meeting.ID {
			errs = append(errs, fmt.Errorf("tasks[%d]: meeting id %s does not match meeting %s", i, t.MeetingID, cs.Meeting.ID))
		}
	}
	return errors.Join(errs...)
}

// Receipt describes a committed change set.
type Receipt struct {
	MeetingID uuid.UUID

	// Remapped maps staged project or topic IDs to the IDs of existing rows
	// they were merged into.
	Remapped map[uuid.UUID]uuid.UUID
}

// Resolve returns the committed ID for a possibly staged id.
func (r *Receipt) Resolve(id uuid.UUID) uuid.UUID {
	if r == nil {
		return id
	}
	if to, ok := r.Remapped[id]; ok {
		return to
	}
	return id
}

// NameKey is the canonical uniqueness key of an entity name: trimmed,
// lowercased, inner whitespace collapsed.
func NameKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// ProjectMembers derives the project_members links of cs: every assignee of
// a task tied to a project. remap resolves staged IDs. Pairs are unique and
// in task order.
func ProjectMembers(cs *ChangeSet, remap func(uuid.UUID) uuid.UUID) [][2]uuid.UUID {
	seen := make(map[[2]uuid.UUID]bool)
	var out [][2]uuid.UUID
	for _, t := range cs.Tasks {
		if t.ProjectID == nil {
			continue
		}
		pid := remap(*t.ProjectID)
		for _, mid := range t.AssigneeIDs {
			pair := [2]uuid.UUID{pid, mid}
			if seen[pair] {
				continue
			}
			seen[pair] = true
			out = append(out, pair)
		}
	}
	return out
}

// UniqueIDs returns ids resolved through remap, in order with repeats
// removed.
func UniqueIDs(ids []uuid.UUID, remap func(uuid.UUID) uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		id = remap(id)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
