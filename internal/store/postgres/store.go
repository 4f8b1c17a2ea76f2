package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/scribe/internal/record"
	"github.com/MrWong99/scribe/internal/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a [store.Store] backed by a PostgreSQL connection pool. All
// operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, pings it and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping implements [store.Store.Ping].
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres store: ping: %w", err)
	}
	return nil
}

// Members implements [store.Store.Members].
func (s *Store) Members(ctx context.Context) ([]record.Member, error) {
	const query = `
		SELECT member_id, member_name, discord_id, role, subcommittee, email, ingestion_timestamp
		FROM committee
		ORDER BY name_key`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres store: members: %w", err)
	}
	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (record.Member, error) {
		var m record.Member
		err := row.Scan(&m.ID, &m.Name, &m.DiscordID, &m.Role, &m.Subcommittee, &m.Email, &m.IngestedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: members: %w", err)
	}
	return members, nil
}

// Projects implements [store.Store.Projects].
func (s *Store) Projects(ctx context.Context) ([]record.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT project_id, project_name, project_description FROM projects ORDER BY name_key`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: projects: %w", err)
	}
	projects, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (record.Project, error) {
		var p record.Project
		err := row.Scan(&p.ID, &p.Name, &p.Description)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: projects: %w", err)
	}
	return projects, nil
}

// Topics implements [store.Store.Topics].
func (s *Store) Topics(ctx context.Context) ([]record.Topic, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT topic_id, topic_name, topic_description FROM topic ORDER BY name_key`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: topics: %w", err)
	}
	topics, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (record.Topic, error) {
		var t record.Topic
		err := row.Scan(&t.ID, &t.Name, &t.Description)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: topics: %w", err)
	}
	return topics, nil
}

const meetingColumns = `meeting_id, meeting_name, meeting_type, meeting_date, meeting_summary, content_hash, ingestion_timestamp`

func scanMeeting(row pgx.Row) (record.Meeting, error) {
	var m record.Meeting
	var typ string
	err := row.Scan(&m.ID, &m.Name, &typ, &m.Date, &m.Summary, &m.ContentHash, &m.IngestedAt)
	m.Type = record.MeetingType(typ)
	return m, err
}

// MeetingByHash implements [store.Store.MeetingByHash].
func (s *Store) MeetingByHash(ctx context.Context, hash string) (record.Meeting, error) {
	m, err := scanMeeting(s.pool.QueryRow(ctx,
		`SELECT `+meetingColumns+` FROM meeting WHERE content_hash = $1`, hash))
	if errors.Is(err, pgx.ErrNoRows) {
		return record.Meeting{}, store.ErrNotFound
	}
	if err != nil {
		return record.Meeting{}, fmt.Errorf("postgres store: meeting by hash: %w", err)
	}
	return m, nil
}

// RecentMeetings implements [store.Store.RecentMeetings].
func (s *Store) RecentMeetings(ctx context.Context, limit int) ([]record.Meeting, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+meetingColumns+` FROM meeting ORDER BY ingestion_timestamp DESC, meeting_name LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres store: recent meetings: %w", err)
	}
	meetings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (record.Meeting, error) {
		return scanMeeting(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: recent meetings: %w", err)
	}
	return meetings, nil
}

// Meeting implements [store.Store.Meeting].
func (s *Store) Meeting(ctx context.Context, id uuid.UUID) (record.Meeting, store.MeetingLinks, error) {
	m, err := scanMeeting(s.pool.QueryRow(ctx,
		`SELECT `+meetingColumns+` FROM meeting WHERE meeting_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return record.Meeting{}, store.MeetingLinks{}, fmt.Errorf("postgres store: meeting %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return record.Meeting{}, store.MeetingLinks{}, fmt.Errorf("postgres store: meeting: %w", err)
	}

	var links store.MeetingLinks
	for _, q := range []struct {
		query string
		dst   *[]uuid.UUID
	}{
		{`SELECT member_id FROM meeting_members WHERE meeting_id = $1 ORDER BY ingestion_timestamp, member_id`, &links.Attendees},
		{`SELECT project_id FROM meeting_projects WHERE meeting_id = $1 ORDER BY ingestion_timestamp, project_id`, &links.Projects},
		{`SELECT topic_id FROM meeting_topics WHERE meeting_id = $1 ORDER BY ingestion_timestamp, topic_id`, &links.Topics},
		{`SELECT task_id FROM meeting_tasks WHERE meeting_id = $1 ORDER BY ingestion_timestamp, task_id`, &links.Tasks},
	} {
		rows, err := s.pool.Query(ctx, q.query, id)
		if err != nil {
			return record.Meeting{}, store.MeetingLinks{}, fmt.Errorf("postgres store: meeting links: %w", err)
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
		if err != nil {
			return record.Meeting{}, store.MeetingLinks{}, fmt.Errorf("postgres store: meeting links: %w", err)
		}
		*q.dst = ids
	}
	return m, links, nil
}

// Tasks implements [store.Store.Tasks]. Assignees are aggregated in the same
// query.
func (s *Store) Tasks(ctx context.Context, f store.TaskFilter) ([]record.Task, error) {
	const query = `
		SELECT t.task_id, t.task_name, t.task_description, t.deadline, t.meeting_id, t.project_id,
		       coalesce(array_agg(tm.member_id ORDER BY tm.member_id) FILTER (WHERE tm.member_id IS NOT NULL), '{}')
		FROM task t
		LEFT JOIN task_members tm ON tm.task_id = t.task_id
		WHERE ($1::uuid IS NULL OR EXISTS (SELECT 1 FROM task_members a WHERE a.task_id = t.task_id AND a.member_id = $1))
		  AND ($2::uuid IS NULL OR t.project_id = $2)
		  AND ($3::uuid IS NULL OR t.meeting_id = $3)
		GROUP BY t.task_id
		ORDER BY t.deadline ASC NULLS LAST, lower(t.task_name)
		LIMIT nullif($4, 0)`

	rows, err := s.pool.Query(ctx, query, f.AssigneeID, f.ProjectID, f.MeetingID, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("postgres store: tasks: %w", err)
	}
	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (record.Task, error) {
		var t record.Task
		err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Deadline, &t.MeetingID, &t.ProjectID, &t.AssigneeIDs)
		if len(t.AssigneeIDs) == 0 {
			t.AssigneeIDs = nil
		}
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: tasks: %w", err)
	}
	return tasks, nil
}

// Stats implements [store.Store.Stats].
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	const query = `
		SELECT
			(SELECT count(*) FROM meeting),
			(SELECT count(*) FROM committee),
			(SELECT count(*) FROM projects),
			(SELECT count(*) FROM topic),
			(SELECT count(*) FROM task)`

	var st store.Stats
	err := s.pool.QueryRow(ctx, query).Scan(&st.Meetings, &st.Members, &st.Projects, &st.Topics, &st.Tasks)
	if err != nil {
		return store.Stats{}, fmt.Errorf("postgres store: stats: %w", err)
	}
	return st, nil
}

// AddMember implements [store.Store.AddMember].
func (s *Store) AddMember(ctx context.Context, m record.Member) (record.Member, error) {
	if err := record.ValidateMember(m); err != nil {
		return record.Member{}, fmt.Errorf("postgres store: add member: %w", err)
	}
	if m.ID == uuid.Nil {
		m.ID = record.NewID()
	}

	const query = `
		INSERT INTO committee (member_id, member_name, name_key, discord_id, role, subcommittee, email)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ingestion_timestamp`

	err := s.pool.QueryRow(ctx, query,
		m.ID, m.Name, store.NameKey(m.Name), m.DiscordID, m.Role, m.Subcommittee, m.Email,
	).Scan(&m.IngestedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return record.Member{}, fmt.Errorf("postgres store: add member %q: %w", m.Name, store.ErrDuplicateName)
		}
		return record.Member{}, fmt.Errorf("postgres store: add member: %w", err)
	}
	return m, nil
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
