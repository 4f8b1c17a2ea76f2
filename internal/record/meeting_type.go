package record

import (
	"fmt"
	"strings"
	"time"
)

// MeetingType classifies a meeting by the body that held it.
type MeetingType string

const (
	MeetingExecutive                MeetingType = "executive"
	MeetingProjectsSubcommittee     MeetingType = "projects_subcommittee"
	MeetingEventsSubcommittee       MeetingType = "events_subcommittee"
	MeetingSponsorshipsSubcommittee MeetingType = "sponsorships_subcommittee"
	MeetingMarketingSubcommittee    MeetingType = "marketing_subcommittee"
	MeetingContentSubcommittee      MeetingType = "content-creation_subcommittee"
	MeetingHRSubcommittee           MeetingType = "hr_subcommittee"
	MeetingFull                     MeetingType = "full"
	MeetingUnscheduled              MeetingType = "unscheduled"
)

// MeetingTypes lists every valid meeting type in display order.
var MeetingTypes = []MeetingType{
	MeetingExecutive,
	MeetingProjectsSubcommittee,
	MeetingEventsSubcommittee,
	MeetingSponsorshipsSubcommittee,
	MeetingMarketingSubcommittee,
	MeetingContentSubcommittee,
	MeetingHRSubcommittee,
	MeetingFull,
	MeetingUnscheduled,
}

// IsValid reports whether t is a recognised meeting type.
func (t MeetingType) IsValid() bool {
	for _, v := range MeetingTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Label returns a human-readable label, e.g. "Events Subcommittee".
func (t MeetingType) Label() string {
	s := strings.NewReplacer("_", " ", "-", " ").Replace(string(t))
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ParseMeetingType parses s case-insensitively. Spaces are accepted in place
// of underscores so that "events subcommittee" parses.
func ParseMeetingType(s string) (MeetingType, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, " ", "_")
	t := MeetingType(norm)
	if !t.IsValid() {
		return "", fmt.Errorf("record: unknown meeting type %q", s)
	}
	return t, nil
}

// dateLayouts are the accepted meeting date layouts. DD-MM-YYYY is the
// format used in transcript file names.
var dateLayouts = []string{"2006-01-02", "02-01-2006", "02/01/2006"}

// ParseMeetingDate parses a meeting date in YYYY-MM-DD or DD-MM-YYYY form.
func ParseMeetingDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("record: invalid meeting date %q; want YYYY-MM-DD or DD-MM-YYYY", s)
}
