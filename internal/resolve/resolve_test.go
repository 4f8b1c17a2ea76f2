package resolve_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/scribe/internal/record"
	"github.com/MrWong99/scribe/internal/resolve"
)

func entity(name string) record.Entity {
	return record.Entity{ID: record.NewID(), Name: name}
}

func TestResolve_NearDuplicatesCollapse(t *testing.T) {
	t.Parallel()

	r := resolve.New(nil)
	res := r.Resolve(record.CategoryProjects, []string{"Projct X", "Project X"}, nil, 0.60, true)

	if len(res.Created) != 1 {
		t.Fatalf("Created = %d entities, want 1: %+v", len(res.Created), res.Created)
	}
	a, _ := res.Lookup("Projct X")
	b, _ := res.Lookup("Project X")
	if a != b || a != res.Created[0].ID {
		t.Errorf("names resolved to %v and %v, want both %v", a, b, res.Created[0].ID)
	}
	if res.Created[0].Name != "Projct X" {
		t.Errorf("created name = %q, want first spelling %q", res.Created[0].Name, "Projct X")
	}
	if len(res.Matched) != 0 {
		t.Errorf("Matched = %+v, want none (created entities are not matches)", res.Matched)
	}
}

func TestResolve_MatchesExisting(t *testing.T) {
	t.Parallel()

	alice := entity("Alice Smyth")
	pool := []record.Entity{entity("Carol Danvers"), alice}

	res := resolve.New(nil).Resolve(record.CategoryMembers, []string{"Alice Smith", "alice smyth"}, pool, 0.70, false)

	if len(res.Matched) != 1 || res.Matched[0].ID != alice.ID {
		t.Fatalf("Matched = %+v, want only Alice Smyth", res.Matched)
	}
	for _, n := range []string{"Alice Smith", "alice smyth"} {
		if id, ok := res.Lookup(n); !ok || id != alice.ID {
			t.Errorf("Lookup(%q) = %v, %v; want %v", n, id, ok, alice.ID)
		}
	}
	if len(res.Created) != 0 || len(res.Unmatched) != 0 {
		t.Errorf("Created = %v, Unmatched = %v; want both empty", res.Created, res.Unmatched)
	}
}

func TestResolve_UnmatchedLeavesPoolUnchanged(t *testing.T) {
	t.Parallel()

	pool := []record.Entity{entity("Alice Smyth")}
	before := slices.Clone(pool)

	res := resolve.New(nil).Resolve(record.CategoryMembers, []string{"Bob", "Bob", "  "}, pool, 0.70, false)

	if !slices.Equal(res.Unmatched, []string{"Bob"}) {
		t.Errorf("Unmatched = %v, want [Bob]", res.Unmatched)
	}
	if len(res.Created) != 0 {
		t.Errorf("Created = %v, want none", res.Created)
	}
	if _, ok := res.Lookup("Bob"); ok {
		t.Error("Lookup(Bob) ok = true, want false")
	}
	if !slices.Equal(pool, before) {
		t.Errorf("pool modified: %v, want %v", pool, before)
	}
}

func TestResolve_MembersNeverCreated(t *testing.T) {
	t.Parallel()

	res := resolve.New(nil).Resolve(record.CategoryMembers, []string{"Bob"}, nil, 0.70, true)
	if len(res.Created) != 0 {
		t.Errorf("Created = %v, want none for members", res.Created)
	}
	if !slices.Equal(res.Unmatched, []string{"Bob"}) {
		t.Errorf("Unmatched = %v, want [Bob]", res.Unmatched)
	}
}

func TestResolve_MoreSpecificExistingProject(t *testing.T) {
	t.Parallel()

	gala := entity("Winter Gala 2024")
	pool := []record.Entity{gala}

	res := resolve.New(nil).Resolve(record.CategoryProjects, []string{"Winter Gala"}, pool, 0.60, true)

	if len(res.Created) != 1 || res.Created[0].Name != "Winter Gala" {
		t.Fatalf("Created = %+v, want one new Winter Gala", res.Created)
	}
	if len(pool) != 1 {
		t.Errorf("caller pool grew to %d entries", len(pool))
	}
}

func TestResolve_CreatedNotReportedAsMatched(t *testing.T) {
	t.Parallel()

	pool := []record.Entity{entity("Budget")}
	res := resolve.New(nil).Resolve(record.CategoryTopics,
		[]string{"Sponsorship Outreach", "budget", "Sponsorship outreach"}, pool, 0.70, true)

	if len(res.Created) != 1 {
		t.Fatalf("Created = %+v, want 1", res.Created)
	}
	if len(res.Matched) != 1 || res.Matched[0].Name != "Budget" {
		t.Errorf("Matched = %+v, want only Budget", res.Matched)
	}
	if len(res.Resolved) != 3 {
		t.Errorf("Resolved has %d names, want 3", len(res.Resolved))
	}
}

func TestCutoffs(t *testing.T) {
	t.Parallel()

	d := resolve.DefaultCutoffs()
	tests := []struct {
		cat  record.Category
		want float64
	}{
		{record.CategoryMembers, 0.70},
		{record.CategoryProjects, 0.60},
		{record.CategoryTopics, 0.70},
		{record.Category("other"), 1},
	}
	for _, tt := range tests {
		if got := d.For(tt.cat); got != tt.want {
			t.Errorf("For(%q) = %v, want %v", tt.cat, got, tt.want)
		}
	}

	partial := resolve.Cutoffs{Projects: 0.5}.WithDefaults()
	if partial.Projects != 0.5 || partial.Members != 0.70 || partial.Assignees != 0.70 {
		t.Errorf("WithDefaults = %+v", partial)
	}

	if err := d.Validate(); err != nil {
		t.Errorf("Validate(defaults) = %v", err)
	}
	if err := (resolve.Cutoffs{Members: 1.2, Topics: -0.1}).Validate(); err == nil {
		t.Error("Validate: want error for out-of-range cutoffs")
	}
}
