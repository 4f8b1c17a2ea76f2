package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/scribe/internal/store"
)

// Commit implements [store.Store.Commit]. The whole change set is written in
// one read-committed transaction. A staged project or topic whose name key
// was inserted by a concurrent transaction is linked to that row instead.
func (s *Store) Commit(ctx context.Context, cs *store.ChangeSet) (*store.Receipt, error) {
	if cs == nil {
		return nil, errors.New("postgres store: commit: nil change set")
	}
	if err := cs.Validate(); err != nil {
		return nil, fmt.Errorf("postgres store: commit: %w", err)
	}

	var rcpt *store.Receipt
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		var err error
		rcpt, err = commitTx(ctx, tx, cs)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateHash) {
			return nil, err
		}
		return nil, fmt.Errorf("postgres store: commit meeting %q: %w", cs.Meeting.Name, err)
	}
	return rcpt, nil
}

func commitTx(ctx context.Context, tx pgx.Tx, cs *store.ChangeSet) (*store.Receipt, error) {
	m := cs.Meeting
	date := m.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	const insertMeeting = `
		INSERT INTO meeting (meeting_id, meeting_name, meeting_type, meeting_date, meeting_summary, content_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (content_hash) DO NOTHING
		RETURNING meeting_id`

	var meetingID uuid.UUID
	err := tx.QueryRow(ctx, insertMeeting,
		m.ID, m.Name, string(m.Type), date, m.Summary, m.ContentHash,
	).Scan(&meetingID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres store: commit meeting %q: %w", m.Name, store.ErrDuplicateHash)
	}
	if err != nil {
		return nil, fmt.Errorf("insert meeting: %w", err)
	}

	remapped := make(map[uuid.UUID]uuid.UUID)
	for _, p := range cs.NewProjects {
		id, err := upsertNamed(ctx, tx, "projects", "project_id", "project_name", "project_description",
			p.ID, p.Name, p.Description)
		if err != nil {
			return nil, fmt.Errorf("insert project %q: %w", p.Name, err)
		}
		if id != p.ID {
			remapped[p.ID] = id
		}
	}
	for _, t := range cs.NewTopics {
		id, err := upsertNamed(ctx, tx, "topic", "topic_id", "topic_name", "topic_description",
			t.ID, t.Name, t.Description)
		if err != nil {
			return nil, fmt.Errorf("insert topic %q: %w", t.Name, err)
		}
		if id != t.ID {
			remapped[t.ID] = id
		}
	}
	remap := func(id uuid.UUID) uuid.UUID {
		if to, ok := remapped[id]; ok {
			return to
		}
		return id
	}

	links := []struct {
		query string
		ids   []uuid.UUID
	}{
		{`INSERT INTO meeting_members (meeting_id, member_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, cs.Attendees},
		{`INSERT INTO meeting_projects (meeting_id, project_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, cs.ProjectIDs},
		{`INSERT INTO meeting_topics (meeting_id, topic_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, cs.TopicIDs},
	}
	for _, l := range links {
		for _, id := range store.UniqueIDs(l.ids, remap) {
			if _, err := tx.Exec(ctx, l.query, meetingID, id); err != nil {
				return nil, fmt.Errorf("link meeting: %w", err)
			}
		}
	}

	const insertTask = `
		INSERT INTO task (task_id, task_name, task_description, deadline, meeting_id, project_id)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for _, t := range cs.Tasks {
		var projectID *uuid.UUID
		if t.ProjectID != nil {
			pid := remap(*t.ProjectID)
			projectID = &pid
		}
		if _, err := tx.Exec(ctx, insertTask, t.ID, t.Name, t.Description, t.Deadline, meetingID, projectID); err != nil {
			return nil, fmt.Errorf("insert task %q: %w", t.Name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO meeting_tasks (meeting_id, task_id) VALUES ($1, $2)`, meetingID, t.ID); err != nil {
			return nil, fmt.Errorf("link task %q: %w", t.Name, err)
		}
		for _, mid := range store.UniqueIDs(t.AssigneeIDs, func(id uuid.UUID) uuid.UUID { return id }) {
			if _, err := tx.Exec(ctx,
				`INSERT INTO task_members (task_id, member_id) VALUES ($1, $2)`, t.ID, mid); err != nil {
				return nil, fmt.Errorf("assign task %q: %w", t.Name, err)
			}
		}
		if projectID != nil {
			if _, err := tx.Exec(ctx,
				`INSERT INTO project_tasks (project_id, task_id) VALUES ($1, $2)`, *projectID, t.ID); err != nil {
				return nil, fmt.Errorf("link task %q to project: %w", t.Name, err)
			}
		}
	}

	for _, pair := range store.ProjectMembers(cs, remap) {
		if _, err := tx.Exec(ctx,
			`INSERT INTO project_members (project_id, member_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			pair[0], pair[1]); err != nil {
			return nil, fmt.Errorf("link project member: %w", err)
		}
	}

	return &store.Receipt{MeetingID: meetingID, Remapped: remapped}, nil
}

// upsertNamed inserts a named row unless its name key exists and returns the
// id of the row that owns the key. Table and column names are constants of
// this package.
func upsertNamed(ctx context.Context, tx pgx.Tx, table, idCol, nameCol, descCol string, id uuid.UUID, name, desc string) (uuid.UUID, error) {
	key := store.NameKey(name)
	insert := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, name_key, %s)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name_key) DO NOTHING
		RETURNING %s`, table, idCol, nameCol, descCol, idCol)

	var got uuid.UUID
	err := tx.QueryRow(ctx, insert, id, name, key, desc).Scan(&got)
	if err == nil {
		return got, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, err
	}

	sel := fmt.Sprintf(`SELECT %s FROM %s WHERE name_key = $1`, idCol, table)
	if err := tx.QueryRow(ctx, sel, key).Scan(&got); err != nil {
		return uuid.Nil, fmt.Errorf("select existing: %w", err)
	}
	return got, nil
}
