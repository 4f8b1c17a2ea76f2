// Package integrate turns one meeting transcript into committed records.
//
// [Integrator.Process] normalises and fingerprints the transcript, asks the
// extraction oracle for its structured content, resolves every extracted
// name against the canonical member, project and topic pools, and commits the
// meeting with all of its links in a single store transaction. Members are
// never created; projects and topics are created when nothing close enough
// exists. Names that resolve to nothing are reported as warnings.
package integrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/scribe/internal/extract"
	"github.com/MrWong99/scribe/internal/match"
	"github.com/MrWong99/scribe/internal/observe"
	"github.com/MrWong99/scribe/internal/record"
	"github.com/MrWong99/scribe/internal/resolve"
	"github.com/MrWong99/scribe/internal/store"
	"github.com/MrWong99/scribe/internal/transcript"
)

// Extractor produces the structured content of a transcript.
// [*extract.Oracle] is the production implementation.
type Extractor interface {
	Extract(ctx context.Context, text string, meta record.MeetingMeta, known extract.KnownNames) (*extract.Extraction, error)
}

var _ Extractor = (*extract.Oracle)(nil)

// Result describes what one Process call committed.
type Result struct {
	MeetingID   uuid.UUID `json:"meeting_id"`
	ContentHash string    `json:"content_hash"`

	MatchedMembers   []record.Member `json:"matched_members"`
	UnmatchedMembers []string        `json:"unmatched_members"`

	// LinkedProjects existed before this call; CreatedProjects did not.
	LinkedProjects  []record.Project `json:"linked_projects"`
	CreatedProjects []record.Project `json:"created_projects"`

	LinkedTopics  []record.Topic `json:"linked_topics"`
	CreatedTopics []record.Topic `json:"created_topics"`

	CreatedTasks []record.Task `json:"created_tasks"`

	Summary  string                   `json:"summary"`
	Warnings []UnmatchedEntityWarning `json:"warnings"`
}

// Option is a functional option for [New].
type Option func(*Integrator)

// WithCutoffs sets the initial similarity cutoffs. Zero fields take the
// defaults.
func WithCutoffs(c resolve.Cutoffs) Option {
	return func(in *Integrator) {
		c = c.WithDefaults()
		in.cutoffs.Store(&c)
	}
}

// WithMatcher sets the matcher used for every category.
func WithMatcher(m *match.Matcher) Option {
	return func(in *Integrator) {
		in.resolver = resolve.New(m)
	}
}

// WithMetrics records metrics on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(in *Integrator) {
		in.metrics = m
	}
}

// WithClock replaces time.Now for meeting dates.
func WithClock(now func() time.Time) Option {
	return func(in *Integrator) {
		in.now = now
	}
}

// Integrator processes transcripts. It is safe for concurrent use; Process
// calls share no state besides the store.
type Integrator struct {
	store    store.Store
	oracle   Extractor
	resolver *resolve.Resolver
	cutoffs  atomic.Pointer[resolve.Cutoffs]
	metrics  *observe.Metrics
	now      func() time.Time
}

// New returns an Integrator that reads and commits through st and extracts
// with oracle.
func New(st store.Store, oracle Extractor, opts ...Option) *Integrator {
	in := &Integrator{
		store:    st,
		oracle:   oracle,
		resolver: resolve.New(nil),
		now:      time.Now,
	}
	c := resolve.DefaultCutoffs()
	in.cutoffs.Store(&c)
	for _, opt := range opts {
		opt(in)
	}
	if in.metrics == nil {
		in.metrics = observe.DefaultMetrics()
	}
	return in
}

// Cutoffs returns the similarity cutoffs currently in effect.
func (in *Integrator) Cutoffs() resolve.Cutoffs {
	return *in.cutoffs.Load()
}

// SetCutoffs replaces the similarity cutoffs for subsequent Process calls.
// Calls already running keep the cutoffs they started with.
func (in *Integrator) SetCutoffs(c resolve.Cutoffs) error {
	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("integrate: set cutoffs: %w", err)
	}
	in.cutoffs.Store(&c)
	return nil
}

// pools are the canonical entities read at the start of a Process call.
type pools struct {
	members  []record.Member
	projects []record.Project
	topics   []record.Topic
}

func (p pools) known() extract.KnownNames {
	var k extract.KnownNames
	for _, m := range p.members {
		k.Members = append(k.Members, m.Name)
	}
	for _, pr := range p.projects {
		k.Projects = append(k.Projects, pr.Name)
	}
	for _, t := range p.topics {
		k.Topics = append(k.Topics, t.Name)
	}
	return k
}

// Process integrates one transcript. text may be raw plain text or the output
// of [transcript.Load].
//
// Errors:
//   - [ErrInvalidMeta] for bad metadata or an empty transcript.
//   - [*DuplicateError] when the same content was processed before. The
//     oracle is not called.
//   - [*extract.OracleError] when extraction fails.
//   - [*PersistenceError] when the store fails. Nothing is committed.
func (in *Integrator) Process(ctx context.Context, text string, meta record.MeetingMeta) (res *Result, err error) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "integrate.Process")
	defer func() {
		in.metrics.RecordProcessed(ctx, outcome(err), time.Since(start).Seconds())
		observe.EndSpan(span, err)
	}()
	log := observe.Logger(ctx)

	meta.Name = strings.TrimSpace(meta.Name)
	if err := record.ValidateMeta(meta); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMeta, err)
	}
	text = transcript.Normalize(transcript.FormatText, text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty transcript", ErrInvalidMeta)
	}
	if meta.Date.IsZero() {
		meta.Date = in.now()
	}
	y, mo, d := meta.Date.Date()
	meta.Date = time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)

	hash := transcript.ContentHash(text)
	span.SetAttributes(
		attribute.String("meeting.name", meta.Name),
		attribute.String("meeting.type", string(meta.Type)),
		attribute.String("transcript.hash", hash),
	)

	existing, err := in.store.MeetingByHash(ctx, hash)
	switch {
	case err == nil:
		return nil, &DuplicateError{MeetingID: existing.ID, ContentHash: hash}
	case !errors.Is(err, store.ErrNotFound):
		return nil, &PersistenceError{Op: "lookup", Err: err}
	}

	meeting := record.Meeting{
		ID:          record.NewID(),
		Name:        meta.Name,
		Type:        meta.Type,
		Date:        meta.Date,
		ContentHash: hash,
	}

	p, err := in.loadPools(ctx)
	if err != nil {
		return nil, err
	}

	var ex *extract.Extraction
	oracleStart := time.Now()
	err = observe.InSpan(ctx, "integrate.extract", func(ctx context.Context) error {
		var err error
		ex, err = in.oracle.Extract(ctx, text, meta, p.known())
		return err
	})
	in.metrics.RecordOracle(ctx, oracleStatus(err), time.Since(oracleStart).Seconds())
	if err != nil {
		return nil, fmt.Errorf("integrate: extract: %w", err)
	}
	meeting.Summary = ex.Summary

	cs, res := in.stage(ctx, meeting, ex, p)

	var rcpt *store.Receipt
	err = observe.InSpan(ctx, "integrate.commit", func(ctx context.Context) error {
		var err error
		rcpt, err = in.store.Commit(ctx, cs)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateHash) {
			dup := &DuplicateError{ContentHash: hash}
			if m, lerr := in.store.MeetingByHash(ctx, hash); lerr == nil {
				dup.MeetingID = m.ID
			}
			return nil, dup
		}
		return nil, &PersistenceError{Op: "commit", Err: err}
	}
	applyReceipt(res, rcpt)

	in.metrics.RecordCreated(ctx, string(record.CategoryProjects), len(res.CreatedProjects))
	in.metrics.RecordCreated(ctx, string(record.CategoryTopics), len(res.CreatedTopics))
	log.Info("transcript integrated",
		"meeting_id", res.MeetingID,
		"meeting", meeting.Name,
		"members", len(res.MatchedMembers),
		"projects_linked", len(res.LinkedProjects),
		"projects_created", len(res.CreatedProjects),
		"topics_linked", len(res.LinkedTopics),
		"topics_created", len(res.CreatedTopics),
		"tasks", len(res.CreatedTasks),
		"warnings", len(res.Warnings))
	return res, nil
}

func (in *Integrator) loadPools(ctx context.Context) (pools, error) {
	ctx, span := observe.StartSpan(ctx, "integrate.load_pools")
	defer span.End()

	var p pools
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		p.members, err = in.store.Members(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		p.projects, err = in.store.Projects(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		p.topics, err = in.store.Topics(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return pools{}, &PersistenceError{Op: "load", Err: err}
	}
	return p, nil
}

// stage resolves every extracted name and builds the change set together
// with the matching pre-commit result.
func (in *Integrator) stage(ctx context.Context, meeting record.Meeting, ex *extract.Extraction, p pools) (*store.ChangeSet, *Result) {
	cut := in.Cutoffs()
	log := observe.Logger(ctx)

	res := &Result{
		MeetingID:   meeting.ID,
		ContentHash: meeting.ContentHash,
		Summary:     ex.Summary,
	}
	cs := &store.ChangeSet{Meeting: meeting}

	memberPool := make([]record.Entity, len(p.members))
	membersByID := make(map[uuid.UUID]record.Member, len(p.members))
	for i, m := range p.members {
		memberPool[i] = m.Entity()
		membersByID[m.ID] = m
	}

	// Participants.
	attendees := in.resolver.Resolve(record.CategoryMembers, ex.Participants, memberPool, cut.Members, false)
	for _, e := range attendees.Matched {
		res.MatchedMembers = append(res.MatchedMembers, membersByID[e.ID])
		cs.Attendees = append(cs.Attendees, e.ID)
	}
	res.UnmatchedMembers = attendees.Unmatched
	for _, name := range attendees.Unmatched {
		res.Warnings = append(res.Warnings, UnmatchedEntityWarning{Category: record.CategoryMembers, Name: name})
	}
	in.metrics.RecordUnmatched(ctx, string(record.CategoryMembers), len(attendees.Unmatched))

	// Projects, including those only referenced by tasks.
	projectNames := append([]string(nil), ex.Projects...)
	for _, t := range ex.Tasks {
		if t.Project != "" {
			projectNames = append(projectNames, t.Project)
		}
	}
	projectPool := make([]record.Entity, len(p.projects))
	projectsByID := make(map[uuid.UUID]record.Project, len(p.projects))
	for i, pr := range p.projects {
		projectPool[i] = pr.Entity()
		projectsByID[pr.ID] = pr
	}
	projects := in.resolver.Resolve(record.CategoryProjects, projectNames, projectPool, cut.Projects, true)
	for _, e := range projects.Matched {
		res.LinkedProjects = append(res.LinkedProjects, projectsByID[e.ID])
		cs.ProjectIDs = append(cs.ProjectIDs, e.ID)
	}
	for _, e := range projects.Created {
		pr := record.Project{ID: e.ID, Name: e.Name}
		res.CreatedProjects = append(res.CreatedProjects, pr)
		cs.NewProjects = append(cs.NewProjects, pr)
		cs.ProjectIDs = append(cs.ProjectIDs, e.ID)
	}

	// Topics. A created topic is described by the summary of the first
	// extracted topic that produced it.
	topicNames := make([]string, len(ex.Topics))
	summaries := make(map[string]string, len(ex.Topics))
	for i, t := range ex.Topics {
		topicNames[i] = t.Name
		if _, ok := summaries[t.Name]; !ok {
			summaries[t.Name] = t.Summary
		}
	}
	topicPool := make([]record.Entity, len(p.topics))
	topicsByID := make(map[uuid.UUID]record.Topic, len(p.topics))
	for i, t := range p.topics {
		topicPool[i] = t.Entity()
		topicsByID[t.ID] = t
	}
	topics := in.resolver.Resolve(record.CategoryTopics, topicNames, topicPool, cut.Topics, true)
	for _, e := range topics.Matched {
		res.LinkedTopics = append(res.LinkedTopics, topicsByID[e.ID])
		cs.TopicIDs = append(cs.TopicIDs, e.ID)
	}
	for _, e := range topics.Created {
		t := record.Topic{ID: e.ID, Name: e.Name, Description: summaries[e.Name]}
		res.CreatedTopics = append(res.CreatedTopics, t)
		cs.NewTopics = append(cs.NewTopics, t)
		cs.TopicIDs = append(cs.TopicIDs, e.ID)
	}

	// Tasks. Assignees are matched against the roster only.
	var unmatchedAssignees int
	for _, et := range ex.Tasks {
		task := record.Task{
			ID:          record.NewID(),
			Name:        et.Name,
			Description: et.Description,
			Deadline:    et.Deadline,
			MeetingID:   meeting.ID,
		}
		if et.Project != "" {
			if id, ok := projects.Lookup(et.Project); ok {
				task.ProjectID = &id
			}
		}
		assignees := in.resolver.Resolve(record.CategoryMembers, et.Assignees, memberPool, cut.Assignees, false)
		for _, e := range assignees.Matched {
			task.AssigneeIDs = append(task.AssigneeIDs, e.ID)
		}
		for _, name := range assignees.Unmatched {
			res.Warnings = append(res.Warnings, UnmatchedEntityWarning{
				Category: record.CategoryMembers, Name: name, Task: et.Name,
			})
			log.Debug("task assignee unmatched", "task", et.Name, "assignee", name)
		}
		unmatchedAssignees += len(assignees.Unmatched)
		res.CreatedTasks = append(res.CreatedTasks, task)
		cs.Tasks = append(cs.Tasks, task)
	}
	in.metrics.RecordUnmatched(ctx, "assignees", unmatchedAssignees)

	return cs, res
}

// applyReceipt moves staged entities the store merged into existing rows
// from the created lists to the linked lists and rewrites task references.
func applyReceipt(res *Result, rcpt *store.Receipt) {
	res.MeetingID = rcpt.MeetingID
	if len(rcpt.Remapped) == 0 {
		return
	}

	linked := make(map[uuid.UUID]bool)
	for _, p := range res.LinkedProjects {
		linked[p.ID] = true
	}
	var created []record.Project
	for _, p := range res.CreatedProjects {
		to, ok := rcpt.Remapped[p.ID]
		if !ok {
			created = append(created, p)
			continue
		}
		if !linked[to] {
			linked[to] = true
			p.ID = to
			res.LinkedProjects = append(res.LinkedProjects, p)
		}
	}
	res.CreatedProjects = created

	for _, t := range res.LinkedTopics {
		linked[t.ID] = true
	}
	var createdTopics []record.Topic
	for _, t := range res.CreatedTopics {
		to, ok := rcpt.Remapped[t.ID]
		if !ok {
			createdTopics = append(createdTopics, t)
			continue
		}
		if !linked[to] {
			linked[to] = true
			t.ID = to
			res.LinkedTopics = append(res.LinkedTopics, t)
		}
	}
	res.CreatedTopics = createdTopics

	for i := range res.CreatedTasks {
		if pid := res.CreatedTasks[i].ProjectID; pid != nil {
			to := rcpt.Resolve(*pid)
			res.CreatedTasks[i].ProjectID = &to
		}
	}
}

func outcome(err error) string {
	var oe *extract.OracleError
	switch {
	case err == nil:
		return observe.OutcomeSuccess
	case errors.Is(err, ErrDuplicateTranscript):
		return observe.OutcomeDuplicate
	case errors.Is(err, ErrInvalidMeta):
		return observe.OutcomeInvalid
	case errors.As(err, &oe):
		return observe.OutcomeOracle
	default:
		return observe.OutcomePersistence
	}
}

func oracleStatus(err error) string {
	if err == nil {
		return "ok"
	}
	var oe *extract.OracleError
	if errors.As(err, &oe) {
		return oe.Op
	}
	return "error"
}
