package record

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Roster is the YAML document used to seed the committee member list.
//
// Example:
//
//	committee: "Student Society 2025"
//	members:
//	  - name: "Alice Smyth"
//	    role: "President"
//	    subcommittee: "executive"
//	    discord_id: "123456789012345678"
type Roster struct {
	Committee string   `yaml:"committee"`
	Members   []Member `yaml:"members"`
}

// LoadRosterFile reads and parses a roster YAML file from disk.
func LoadRosterFile(path string) (*Roster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("record: open roster %q: %w", path, err)
	}
	defer f.Close()

	r, err := LoadRoster(f)
	if err != nil {
		return nil, fmt.Errorf("record: parse roster %q: %w", path, err)
	}
	return r, nil
}

// LoadRoster parses roster YAML from r and validates every member.
func LoadRoster(r io.Reader) (*Roster, error) {
	var roster Roster
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&roster); err != nil {
		return nil, fmt.Errorf("record: decode roster yaml: %w", err)
	}
	for i, m := range roster.Members {
		if err := ValidateMember(m); err != nil {
			return nil, fmt.Errorf("record: members[%d]: %w", i, err)
		}
	}
	return &roster, nil
}
