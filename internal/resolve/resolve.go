// Package resolve links names extracted from a transcript to canonical
// entities, staging new entities for categories that allow creation.
package resolve

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/MrWong99/scribe/internal/match"
	"github.com/MrWong99/scribe/internal/record"
)

// Cutoffs holds the minimum similarity score per category. Assignees are
// matched against the member pool but may use a different cutoff.
type Cutoffs struct {
	Members   float64 `yaml:"members"`
	Projects  float64 `yaml:"projects"`
	Topics    float64 `yaml:"topics"`
	Assignees float64 `yaml:"assignees"`
}

// DefaultCutoffs returns the cutoffs used when none are configured.
func DefaultCutoffs() Cutoffs {
	return Cutoffs{
		Members:   0.70,
		Projects:  0.60,
		Topics:    0.70,
		Assignees: 0.70,
	}
}

// For returns the cutoff configured for cat. Unknown categories get 1, which
// only matches identical names.
func (c Cutoffs) For(cat record.Category) float64 {
	switch cat {
	case record.CategoryMembers:
		return c.Members
	case record.CategoryProjects:
		return c.Projects
	case record.CategoryTopics:
		return c.Topics
	}
	return 1
}

// WithDefaults returns c with every zero field replaced by its default.
func (c Cutoffs) WithDefaults() Cutoffs {
	d := DefaultCutoffs()
	if c.Members == 0 {
		c.Members = d.Members
	}
	if c.Projects == 0 {
		c.Projects = d.Projects
	}
	if c.Topics == 0 {
		c.Topics = d.Topics
	}
	if c.Assignees == 0 {
		c.Assignees = d.Assignees
	}
	return c
}

// Validate reports every cutoff outside [0, 1].
func (c Cutoffs) Validate() error {
	var errs []error
	check := func(name string, v float64) {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("resolve: %s cutoff %v must be in [0, 1]", name, v))
		}
	}
	check("members", c.Members)
	check("projects", c.Projects)
	check("topics", c.Topics)
	check("assignees", c.Assignees)
	return errors.Join(errs...)
}

// Resolution is the outcome of resolving one batch of names.
type Resolution struct {
	// Resolved maps each resolved name (trimmed, as extracted) to an entity ID.
	Resolved map[string]uuid.UUID

	// Matched lists pre-existing entities that at least one name resolved to,
	// in order of first match and without duplicates.
	Matched []record.Entity

	// Created lists staged new entities in creation order. They do not exist
	// in any store until committed.
	Created []record.Entity

	// Unmatched lists names that neither matched nor were created, without
	// duplicates.
	Unmatched []string
}

// Lookup returns the entity ID name resolved to.
func (r Resolution) Lookup(name string) (uuid.UUID, bool) {
	id, ok := r.Resolved[strings.TrimSpace(name)]
	return id, ok
}

// Resolver resolves extracted names with a [match.Matcher].
type Resolver struct {
	matcher *match.Matcher
}

// New returns a Resolver. A nil matcher uses [match.New] defaults.
func New(m *match.Matcher) *Resolver {
	if m == nil {
		m = match.New()
	}
	return &Resolver{matcher: m}
}

// Resolve maps names onto pool.
//
// Each name is matched against the pool as it stands at that point: when
// allowCreate is true an unmatched name becomes a staged entity that is
// appended to the working pool, so near-duplicates later in the same batch
// resolve to it instead of creating a second one. When allowCreate is false
// unmatched names are reported and nothing is created. The caller's pool
// slice is never modified. Blank names are skipped.
//
// Members are never created regardless of allowCreate.
func (r *Resolver) Resolve(category record.Category, names []string, pool []record.Entity, cutoff float64, allowCreate bool) Resolution {
	res := Resolution{Resolved: make(map[string]uuid.UUID)}
	if category == record.CategoryMembers {
		allowCreate = false
	}

	work := slices.Clone(pool)
	poolNames := make([]string, len(work))
	for i, e := range work {
		poolNames[i] = e.Name
	}

	matched := make(map[uuid.UUID]bool)
	created := make(map[uuid.UUID]bool)
	unmatched := make(map[string]bool)

	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, done := res.Resolved[name]; done {
			continue
		}
		if unmatched[name] {
			continue
		}

		if m, ok := r.matcher.Match(name, poolNames, cutoff); ok {
			e := work[m.Index]
			res.Resolved[name] = e.ID
			if !created[e.ID] && !matched[e.ID] {
				matched[e.ID] = true
				res.Matched = append(res.Matched, e)
			}
			continue
		}

		if !allowCreate {
			unmatched[name] = true
			res.Unmatched = append(res.Unmatched, name)
			continue
		}

		e := record.Entity{ID: record.NewID(), Name: name}
		work = append(work, e)
		poolNames = append(poolNames, name)
		created[e.ID] = true
		res.Created = append(res.Created, e)
		res.Resolved[name] = e.ID
	}

	return res
}
