// Package record defines the structured records that scribe derives from a
// meeting transcript: meetings, committee members, projects, topics and tasks.
//
// Members are reference data that must exist before a transcript is processed.
// Projects and topics are reference data as well but may be created on demand
// when a transcript mentions one that does not exist yet. Meetings and tasks
// are created once per processed transcript and are not mutated afterwards.
package record

import (
	"time"

	"github.com/google/uuid"
)

// Category names a class of canonical entity that extracted names are
// resolved against.
type Category string

const (
	// CategoryMembers is the committee roster. Never auto-created.
	CategoryMembers Category = "members"

	// CategoryProjects holds projects. Auto-created when no match is found.
	CategoryProjects Category = "projects"

	// CategoryTopics holds discussion topics. Auto-created when no match is found.
	CategoryTopics Category = "topics"
)

// IsValid reports whether c is a recognised category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryMembers, CategoryProjects, CategoryTopics:
		return true
	}
	return false
}

// Entity is the category-agnostic view of a canonical record used by the
// matcher and resolver.
type Entity struct {
	ID          uuid.UUID
	Name        string
	Description string
}

// Member is a committee member. DiscordID, Role, Subcommittee and Email are
// optional.
type Member struct {
	ID           uuid.UUID `yaml:"-" json:"id"`
	Name         string    `yaml:"name" json:"name"`
	DiscordID    string    `yaml:"discord_id,omitempty" json:"discord_id,omitempty"`
	Role         string    `yaml:"role,omitempty" json:"role,omitempty"`
	Subcommittee string    `yaml:"subcommittee,omitempty" json:"subcommittee,omitempty"`
	Email        string    `yaml:"email,omitempty" json:"email,omitempty"`
	IngestedAt   time.Time `yaml:"-" json:"ingested_at"`
}

// Entity returns the matcher view of m.
func (m Member) Entity() Entity { return Entity{ID: m.ID, Name: m.Name} }

// Project is a committee project.
type Project struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
}

// Entity returns the matcher view of p.
func (p Project) Entity() Entity { return Entity{ID: p.ID, Name: p.Name, Description: p.Description} }

// Topic is a recurring discussion topic.
type Topic struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
}

// Entity returns the matcher view of t.
func (t Topic) Entity() Entity { return Entity{ID: t.ID, Name: t.Name, Description: t.Description} }

// Meeting is the root record created for every processed transcript.
type Meeting struct {
	ID   uuid.UUID   `json:"id"`
	Name string      `json:"name"`
	Type MeetingType `json:"type"`
	Date time.Time   `json:"date"`

	// Summary is the oracle-generated prose summary.
	Summary string `json:"summary"`

	// ContentHash is the hex SHA-256 of the normalised transcript. It is the
	// idempotency key: at most one meeting exists per hash.
	ContentHash string `json:"content_hash"`

	IngestedAt time.Time `json:"ingested_at"`
}

// Task is an action item extracted from a meeting.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Deadline    *time.Time `json:"deadline,omitempty"`

	// MeetingID is the originating meeting. Always set.
	MeetingID uuid.UUID `json:"meeting_id"`

	// ProjectID is the project the task belongs to, if any.
	ProjectID *uuid.UUID `json:"project_id,omitempty"`

	// AssigneeIDs lists assigned members. May be empty.
	AssigneeIDs []uuid.UUID `json:"assignee_ids,omitempty"`
}

// MeetingMeta is the caller-supplied metadata for a transcript.
type MeetingMeta struct {
	Name string      `validate:"required,max=255"`
	Type MeetingType `validate:"required,meeting_type"`

	// Date defaults to the processing time when zero.
	Date time.Time
}

// NewID returns a fresh random record identifier.
func NewID() uuid.UUID { return uuid.New() }
