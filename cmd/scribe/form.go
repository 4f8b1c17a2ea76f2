package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/MrWong99/scribe/internal/record"
)

// errAborted is returned when the user cancels the meeting form.
var errAborted = errors.New("aborted")

// metaInput holds meeting metadata as typed by the user, before parsing.
type metaInput struct {
	Name string
	Type string
	Date string
}

// complete reports whether every required field has a value.
func (in metaInput) complete() bool {
	return strings.TrimSpace(in.Name) != "" && strings.TrimSpace(in.Type) != ""
}

// parse converts the raw input into meeting metadata. An empty date means
// today.
func (in metaInput) parse(now time.Time) (record.MeetingMeta, error) {
	var meta record.MeetingMeta

	meta.Name = strings.TrimSpace(in.Name)
	if meta.Name == "" {
		return meta, errors.New("meeting name is required (--name)")
	}
	if strings.TrimSpace(in.Type) == "" {
		return meta, fmt.Errorf("meeting type is required (--type); one of %s", meetingTypeList())
	}
	t, err := record.ParseMeetingType(in.Type)
	if err != nil {
		return meta, fmt.Errorf("%w; one of %s", err, meetingTypeList())
	}
	meta.Type = t

	meta.Date = now.UTC()
	if strings.TrimSpace(in.Date) != "" {
		d, err := record.ParseMeetingDate(in.Date)
		if err != nil {
			return meta, err
		}
		meta.Date = d
	}
	return meta, nil
}

func meetingTypeList() string {
	names := make([]string, len(record.MeetingTypes))
	for i, t := range record.MeetingTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// interactive reports whether stdin is a terminal a form can run on.
func interactive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// promptMeta asks for the meeting metadata, prefilled with in.
func promptMeta(in metaInput) (metaInput, error) {
	options := make([]huh.Option[string], len(record.MeetingTypes))
	for i, t := range record.MeetingTypes {
		options[i] = huh.NewOption(t.Label(), string(t))
	}
	if t, err := record.ParseMeetingType(in.Type); err == nil {
		in.Type = string(t)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Meeting name").
				Description("Defaults to the file name").
				Value(&in.Name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("name is required")
					}
					if len(s) > 255 {
						return errors.New("name must be 255 characters or less")
					}
					return nil
				}),

			huh.NewSelect[string]().
				Title("Meeting type").
				Description("Which body held the meeting").
				Options(options...).
				Value(&in.Type),

			huh.NewInput().
				Title("Meeting date").
				Description("YYYY-MM-DD or DD-MM-YYYY, empty for today").
				Value(&in.Date).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return nil
					}
					_, err := record.ParseMeetingDate(s)
					return err
				}),
		),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return in, errAborted
		}
		return in, fmt.Errorf("meeting form: %w", err)
	}
	return in, nil
}
