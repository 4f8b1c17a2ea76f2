package commands

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/scribe/internal/discord"
	"github.com/MrWong99/scribe/internal/integrate"
	"github.com/MrWong99/scribe/internal/record"
	"github.com/MrWong99/scribe/internal/store"
)

const (
	colorSuccess = 0x2ECC71
	colorWarning = 0xF1C40F
	colorInfo    = 0x3498DB

	// Discord embed limits.
	maxFieldValueLen  = 1024
	maxDescriptionLen = 4096
	maxFields         = 25
)

// meetingTypeChoices are the /transcript process meeting_type choices.
var meetingTypeChoices = func() []*discordgo.ApplicationCommandOptionChoice {
	labels := map[record.MeetingType]string{
		record.MeetingExecutive:   "Executive Committee",
		record.MeetingFull:        "Full Committee",
		record.MeetingUnscheduled: "Unscheduled / Ad-hoc",
	}
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(record.MeetingTypes))
	for _, t := range record.MeetingTypes {
		name, ok := labels[t]
		if !ok {
			name = t.Label()
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: name, Value: string(t)})
	}
	return choices
}()

// ResultEmbed summarises a committed transcript.
func ResultEmbed(meta record.MeetingMeta, res *integrate.Result) *discordgo.MessageEmbed {
	color := colorSuccess
	if len(res.Warnings) > 0 {
		color = colorWarning
	}

	members := make([]string, len(res.MatchedMembers))
	for i, m := range res.MatchedMembers {
		members[i] = m.Name
	}
	projects := make([]string, 0, len(res.LinkedProjects)+len(res.CreatedProjects))
	for _, p := range res.LinkedProjects {
		projects = append(projects, p.Name)
	}
	for _, p := range res.CreatedProjects {
		projects = append(projects, p.Name+" (new)")
	}
	topics := make([]string, 0, len(res.LinkedTopics)+len(res.CreatedTopics))
	for _, t := range res.LinkedTopics {
		topics = append(topics, t.Name)
	}
	for _, t := range res.CreatedTopics {
		topics = append(topics, t.Name+" (new)")
	}
	tasks := make([]string, len(res.CreatedTasks))
	for i, t := range res.CreatedTasks {
		tasks[i] = taskLine(t)
	}
	warnings := make([]string, len(res.Warnings))
	for i, w := range res.Warnings {
		warnings[i] = w.String()
	}

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Processed: %s", meta.Name),
		Description: truncate(res.Summary, maxDescriptionLen),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Type", Value: meta.Type.Label(), Inline: true},
			{Name: "Date", Value: meta.Date.Format("2006-01-02"), Inline: true},
			{Name: fmt.Sprintf("Members (%d)", len(members)), Value: bulletList(members)},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Meeting " + res.MeetingID.String()},
	}
	if len(res.UnmatchedMembers) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("Unmatched members (%d)", len(res.UnmatchedMembers)),
			Value: bulletList(res.UnmatchedMembers),
		})
	}
	embed.Fields = append(embed.Fields,
		&discordgo.MessageEmbedField{Name: fmt.Sprintf("Projects (%d)", len(projects)), Value: bulletList(projects)},
		&discordgo.MessageEmbedField{Name: fmt.Sprintf("Topics (%d)", len(topics)), Value: bulletList(topics)},
		&discordgo.MessageEmbedField{Name: fmt.Sprintf("Tasks (%d)", len(tasks)), Value: bulletList(tasks)},
	)
	if len(warnings) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("Warnings (%d)", len(warnings)),
			Value: bulletList(warnings),
		})
	}
	return embed
}

func taskLine(t record.Task) string {
	line := t.Name
	if line == "" {
		line = t.Description
	}
	if t.Deadline != nil {
		line += " (due " + t.Deadline.Format("2006-01-02") + ")"
	}
	if n := len(t.AssigneeIDs); n > 0 {
		line += fmt.Sprintf(" [%d assignee", n)
		if n > 1 {
			line += "s"
		}
		line += "]"
	}
	return line
}

// StatsEmbed renders store counts and the most recent meetings.
func StatsEmbed(st store.Stats, recent []record.Meeting) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Meeting Statistics",
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Meetings", Value: fmt.Sprint(st.Meetings), Inline: true},
			{Name: "Tasks", Value: fmt.Sprint(st.Tasks), Inline: true},
			{Name: "Members", Value: fmt.Sprint(st.Members), Inline: true},
			{Name: "Projects", Value: fmt.Sprint(st.Projects), Inline: true},
			{Name: "Topics", Value: fmt.Sprint(st.Topics), Inline: true},
		},
	}
	lines := make([]string, len(recent))
	for i, m := range recent {
		lines[i] = meetingLine(m)
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:  "Recent meetings",
		Value: bulletList(lines),
	})
	return embed
}

// ProcessingField renders in-process transcript counters and latencies.
func ProcessingField(snap discord.Snapshot) *discordgo.MessageEmbedField {
	value := "No transcripts processed since start."
	if snap.Total() > 0 {
		value = fmt.Sprintf("%d processed, %d duplicate, %d failed", snap.Processed, snap.Duplicates, snap.Failed)
		if snap.Processed > 0 {
			value += fmt.Sprintf("\nLatency p50 %s, p95 %s",
				snap.Latency.P50.Round(time.Millisecond), snap.Latency.P95.Round(time.Millisecond))
		}
	}
	return &discordgo.MessageEmbedField{Name: "Since start", Value: value}
}

// MeetingsEmbed lists meetings, one field each.
func MeetingsEmbed(meetings []record.Meeting) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Recent Meetings",
		Color: colorInfo,
	}
	for idx, m := range meetings {
		if idx >= maxFields {
			break
		}
		summary := m.Summary
		if summary == "" {
			summary = "(no summary)"
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  truncate(meetingLine(m), 256),
			Value: truncate(summary, 300),
		})
	}
	embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%d shown", len(embed.Fields))}
	return embed
}

// MembersEmbed renders the committee roster.
func MembersEmbed(members []record.Member) *discordgo.MessageEmbed {
	lines := make([]string, len(members))
	for i, m := range members {
		line := m.Name
		var extra []string
		if m.Role != "" {
			extra = append(extra, m.Role)
		}
		if m.Subcommittee != "" {
			extra = append(extra, m.Subcommittee)
		}
		if len(extra) > 0 {
			line += " (" + strings.Join(extra, ", ") + ")"
		}
		if m.DiscordID != "" {
			line += " <@" + m.DiscordID + ">"
		}
		lines[i] = line
	}
	return &discordgo.MessageEmbed{
		Title:       "Committee Members",
		Color:       colorInfo,
		Description: truncate(bulletList(lines), maxDescriptionLen),
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%d total", len(members))},
	}
}

func meetingLine(m record.Meeting) string {
	return fmt.Sprintf("%s · %s · %s", m.Date.Format("2006-01-02"), m.Name, m.Type.Label())
}

// bulletList renders items one per line, cut to fit an embed field. An
// empty list renders as "None".
func bulletList(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	var b strings.Builder
	for i, it := range items {
		line := "• " + it + "\n"
		more := fmt.Sprintf("… and %d more", len(items)-i)
		if b.Len()+len(line)+len(more) > maxFieldValueLen {
			b.WriteString(more)
			return b.String()
		}
		b.WriteString(line)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
