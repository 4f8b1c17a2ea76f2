// Package postgres provides the PostgreSQL-backed [store.Store].
//
// Every table is created by [Migrate]. Projects, topics and committee
// members carry a name_key column (lowercased, whitespace-collapsed name)
// with a unique constraint so that concurrent transcripts cannot create two
// rows for the same canonical name.
//
// Usage:
//
//	s, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer s.Close()
//
//	rcpt, err := s.Commit(ctx, cs)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlReference = `
CREATE TABLE IF NOT EXISTS committee (
    member_id           UUID        PRIMARY KEY,
    member_name         TEXT        NOT NULL,
    name_key            TEXT        NOT NULL UNIQUE,
    discord_id          TEXT        NOT NULL DEFAULT '',
    role                TEXT        NOT NULL DEFAULT '',
    subcommittee        TEXT        NOT NULL DEFAULT '',
    email               TEXT        NOT NULL DEFAULT '',
    ingestion_timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS projects (
    project_id          UUID        PRIMARY KEY,
    project_name        TEXT        NOT NULL,
    name_key            TEXT        NOT NULL UNIQUE,
    project_description TEXT        NOT NULL DEFAULT '',
    ingestion_timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS topic (
    topic_id            UUID        PRIMARY KEY,
    topic_name          TEXT        NOT NULL,
    name_key            TEXT        NOT NULL UNIQUE,
    topic_description   TEXT        NOT NULL DEFAULT '',
    ingestion_timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const ddlMeetings = `
CREATE TABLE IF NOT EXISTS meeting (
    meeting_id          UUID        PRIMARY KEY,
    meeting_name        TEXT        NOT NULL,
    meeting_type        TEXT        NOT NULL,
    meeting_date        DATE        NOT NULL,
    meeting_summary     TEXT        NOT NULL DEFAULT '',
    content_hash        TEXT        NOT NULL UNIQUE,
    ingestion_timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_meeting_ingested ON meeting (ingestion_timestamp DESC);

CREATE TABLE IF NOT EXISTS task (
    task_id             UUID        PRIMARY KEY,
    task_name           TEXT        NOT NULL,
    task_description    TEXT        NOT NULL DEFAULT '',
    deadline            DATE,
    meeting_id          UUID        NOT NULL REFERENCES meeting (meeting_id) ON DELETE CASCADE,
    project_id          UUID        REFERENCES projects (project_id),
    ingestion_timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const ddlLinks = `
CREATE TABLE IF NOT EXISTS meeting_members (
    meeting_id          UUID        NOT NULL REFERENCES meeting (meeting_id) ON DELETE CASCADE,
    member_id           UUID        NOT NULL REFERENCES committee (member_id),
    ingestion_timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (meeting_id, member_id)
);

CREATE TABLE IF NOT EXISTS meeting_projects (
    meeting_id          UUID        NOT NULL REFERENCES meeting (meeting_id) ON DELETE CASCADE,
    project_id          UUID        NOT NULL REFERENCES projects (project_id),
    ingestion_timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (meeting_id, project_id)
);

CREATE TABLE IF NOT EXISTS meeting_topics (
    meeting_id          UUID        NOT NULL REFERENCES meeting (meeting_id) ON DELETE CASCADE,
    topic_id            UUID        NOT NULL REFERENCES topic (topic_id),
    ingestion_timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (meeting_id, topic_id)
);

CREATE TABLE IF NOT EXISTS meeting_tasks (
    meeting_id          UUID        NOT NULL REFERENCES meeting (meeting_id) ON DELETE CASCADE,
    task_id             UUID        NOT NULL REFERENCES task (task_id) ON DELETE CASCADE,
    ingestion_timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (meeting_id, task_id)
);

CREATE TABLE IF NOT EXISTS task_members (
    task_id             UUID        NOT NULL REFERENCES task (task_id) ON DELETE CASCADE,
    member_id           UUID        NOT NULL REFERENCES committee (member_id),
    ingestion_timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (task_id, member_id)
);

CREATE TABLE IF NOT EXISTS project_members (
    project_id          UUID        NOT NULL REFERENCES projects (project_id),
    member_id           UUID        NOT NULL REFERENCES committee (member_id),
    ingestion_timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (project_id, member_id)
);

CREATE TABLE IF NOT EXISTS project_tasks (
    project_id          UUID        NOT NULL REFERENCES projects (project_id),
    task_id             UUID        NOT NULL REFERENCES task (task_id) ON DELETE CASCADE,
    ingestion_timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (project_id, task_id)
);
`

// Tables lists every table created by [Migrate] in dependency order.
var Tables = []string{
	"committee", "projects", "topic", "meeting", "task",
	"meeting_members", "meeting_projects", "meeting_topics", "meeting_tasks",
	"task_members", "project_members", "project_tasks",
}

// Migrate creates all tables and indexes if they do not exist yet. It is
// idempotent and safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlReference, ddlMeetings, ddlLinks} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
