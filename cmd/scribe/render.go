package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/MrWong99/scribe/internal/integrate"
	"github.com/MrWong99/scribe/internal/record"
	"github.com/MrWong99/scribe/internal/store"
)

const dateLayout = "2006-01-02"

// printResult renders what one Process call committed.
func printResult(w io.Writer, meta record.MeetingMeta, res *integrate.Result) {
	writeSection(w, "Meeting", renderTable(
		[]string{"Field", "Value"},
		[][]string{
			{"ID", res.MeetingID.String()},
			{"Name", meta.Name},
			{"Type", meta.Type.Label()},
			{"Date", meta.Date.Format(dateLayout)},
			{"Content hash", shortHash(res.ContentHash)},
		},
		nil,
	))

	var links [][]string
	for _, m := range res.MatchedMembers {
		links = append(links, []string{"member", m.Name, "matched"})
	}
	for _, name := range res.UnmatchedMembers {
		links = append(links, []string{"member", name, "unmatched"})
	}
	for _, p := range res.LinkedProjects {
		links = append(links, []string{"project", p.Name, "linked"})
	}
	for _, p := range res.CreatedProjects {
		links = append(links, []string{"project", p.Name, "created"})
	}
	for _, t := range res.LinkedTopics {
		links = append(links, []string{"topic", t.Name, "linked"})
	}
	for _, t := range res.CreatedTopics {
		links = append(links, []string{"topic", t.Name, "created"})
	}
	if len(links) > 0 {
		writeSection(w, "Links", renderTable([]string{"Kind", "Name", "Status"}, links, nil))
	}

	if len(res.CreatedTasks) > 0 {
		projects := projectNames(res)
		rows := make([][]string, len(res.CreatedTasks))
		for i, t := range res.CreatedTasks {
			deadline := "-"
			if t.Deadline != nil {
				deadline = t.Deadline.Format(dateLayout)
			}
			project := "-"
			if t.ProjectID != nil {
				project = projects[*t.ProjectID]
			}
			rows[i] = []string{t.Name, deadline, project, strconv.Itoa(len(t.AssigneeIDs))}
		}
		writeSection(w, "Tasks", renderTable(
			[]string{"Task", "Deadline", "Project", "Assignees"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
		))
	}

	if len(res.Warnings) > 0 {
		lines := make([]string, len(res.Warnings))
		for i, warn := range res.Warnings {
			lines[i] = "  - " + warn.String()
		}
		writeSection(w, "Warnings", strings.Join(lines, "\n"))
	}

	fmt.Fprintf(w, "Summary\n%s\n", res.Summary)
}

func projectNames(res *integrate.Result) map[uuid.UUID]string {
	names := make(map[uuid.UUID]string, len(res.LinkedProjects)+len(res.CreatedProjects))
	for _, p := range res.LinkedProjects {
		names[p.ID] = p.Name
	}
	for _, p := range res.CreatedProjects {
		names[p.ID] = p.Name
	}
	return names
}

// printStats renders store counts and the most recent meetings.
func printStats(w io.Writer, st store.Stats, recent []record.Meeting) {
	writeSection(w, "Records", renderTable(
		[]string{"Kind", "Count"},
		[][]string{
			{"Meetings", strconv.Itoa(st.Meetings)},
			{"Tasks", strconv.Itoa(st.Tasks)},
			{"Members", strconv.Itoa(st.Members)},
			{"Projects", strconv.Itoa(st.Projects)},
			{"Topics", strconv.Itoa(st.Topics)},
		},
		[]columnAlignment{alignLeft, alignRight},
	))

	if len(recent) == 0 {
		fmt.Fprintln(w, "No meetings have been processed yet.")
		return
	}
	rows := make([][]string, len(recent))
	for i, m := range recent {
		rows[i] = []string{m.Date.Format(dateLayout), m.Name, m.Type.Label(), shortHash(m.ContentHash)}
	}
	fmt.Fprintf(w, "Recent meetings\n%s\n", renderTable([]string{"Date", "Name", "Type", "Hash"}, rows, nil))
}

// printMembers renders the roster.
func printMembers(w io.Writer, members []record.Member) {
	if len(members) == 0 {
		fmt.Fprintln(w, "The roster is empty.")
		return
	}
	rows := make([][]string, len(members))
	for i, m := range members {
		rows[i] = []string{m.Name, m.Role, m.Subcommittee, m.DiscordID, m.Email}
	}
	fmt.Fprintln(w, renderTable([]string{"Name", "Role", "Subcommittee", "Discord ID", "Email"}, rows, nil))
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
