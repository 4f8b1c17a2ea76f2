package extract

import (
	"fmt"
	"strings"

	"github.com/MrWong99/scribe/internal/record"
)

// maxHints caps each known-name list in the prompt.
const maxHints = 200

// KnownNames lists canonical names the oracle should prefer when a
// transcript mentions something close to them. The zero value adds no hints.
type KnownNames struct {
	Members  []string
	Projects []string
	Topics   []string
}

const systemPromptTemplate = `You are an expert at analyzing committee meeting transcripts and extracting structured information.

This is a %s meeting named %q held on %s.

Extract:
- participants: committee members who took part. Be inclusive: if someone seems to have participated, include them.
- projects: projects discussed directly or by context.
- topics: the 3-8 main topics with meaningful discussion, each with a brief summary of how it was discussed. Group related discussions under broader topics and do not be overly granular.
- tasks: ONLY explicitly assigned tasks. A task is explicitly assigned when someone says "X will do Y", "X, can you handle Y?" and X agrees, or a clear action item is given to a specific person. Do not include general discussion points, ideas without an owner or vague mentions of work. Give each task a short name, a description, the deadline as YYYY-MM-DD if one was mentioned (otherwise an empty string), the assignees, and the project it belongs to (otherwise an empty string).
- summary: a clear, structured summary in 2-4 paragraphs covering the main topics, key decisions, action items and next steps, related projects, and important deadlines or milestones.

When a name matches or is very close to one of the known names below, use the known name EXACTLY as written.
%s`

// buildSystemPrompt formats the system prompt for one transcript.
func buildSystemPrompt(meta record.MeetingMeta, known KnownNames) string {
	date := "an unspecified date"
	if !meta.Date.IsZero() {
		date = meta.Date.Format(DeadlineLayout)
	}

	var sb strings.Builder
	writeHints(&sb, "Known committee members", known.Members)
	writeHints(&sb, "Known projects", known.Projects)
	writeHints(&sb, "Known topics", known.Topics)
	if sb.Len() == 0 {
		sb.WriteString("\nThere are no known names yet.\n")
	}

	return fmt.Sprintf(systemPromptTemplate, meta.Type.Label(), meta.Name, date, sb.String())
}

func writeHints(sb *strings.Builder, title string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s:\n", title)
	for i, n := range names {
		if i == maxHints {
			fmt.Fprintf(sb, "- ... and %d more\n", len(names)-maxHints)
			break
		}
		sb.WriteString("- ")
		sb.WriteString(n)
		sb.WriteByte('\n')
	}
}

// buildUserMessage wraps the transcript text.
func buildUserMessage(transcript string) string {
	return "Transcript:\n" + transcript
}
