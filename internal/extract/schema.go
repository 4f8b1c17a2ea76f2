package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

// SchemaName identifies the extraction document to the completion backend.
const SchemaName = "meeting_extraction"

// DeadlineLayout is the only accepted deadline format.
const DeadlineLayout = "2006-01-02"

// Extraction is the validated structured content of one transcript.
type Extraction struct {
	// Participants are the names of people who took part, as spoken.
	Participants []string

	// Projects are the projects discussed, including those referenced only
	// by tasks.
	Projects []string

	Topics []ExtractedTopic
	Tasks  []ExtractedTask

	// Summary is a prose summary of the meeting. Never empty.
	Summary string
}

// ExtractedTopic is a discussion topic with a short summary of how it was
// discussed.
type ExtractedTopic struct {
	Name    string
	Summary string
}

// ExtractedTask is an explicitly assigned action item.
type ExtractedTask struct {
	Name        string
	Description string

	// Deadline is nil when the transcript names none.
	Deadline *time.Time

	// Assignees are member names as spoken. May be empty.
	Assignees []string

	// Project is the project the task belongs to, or "".
	Project string
}

// wireExtraction is the JSON document the oracle must return. Every field is
// required so that strict structured output can enforce it; absent values are
// empty strings or arrays. Backends without strict output are held to the
// same contract by [Decode]: arrays must not be null and every object key
// must be present.
type wireExtraction struct {
	Participants []string    `json:"participants" jsonschema:"description=Names of committee members who took part in the meeting" validate:"required"`
	Projects     []string    `json:"projects" jsonschema:"description=Names of projects that were discussed" validate:"required"`
	Topics       []wireTopic `json:"topics" jsonschema:"description=Main discussion topics (3-8)" validate:"required,dive"`
	Tasks        []wireTask  `json:"tasks" jsonschema:"description=Explicitly assigned tasks only" validate:"required,dive"`
	Summary      string      `json:"summary" jsonschema:"description=Structured summary of the meeting in 2-4 paragraphs" validate:"required"`
}

type wireTopic struct {
	Name    string `json:"name" jsonschema:"description=Concise topic name; reuse the exact known name when one fits" validate:"required"`
	Summary string `json:"summary" jsonschema:"description=Brief summary of how the topic was discussed"`
}

type wireTask struct {
	Name        string   `json:"name" jsonschema:"description=Short task name" validate:"required"`
	Description string   `json:"description" jsonschema:"description=What needs to be done"`
	Deadline    string   `json:"deadline" jsonschema:"description=Deadline as YYYY-MM-DD or an empty string when none was mentioned"`
	Assignees   []string `json:"assignees" jsonschema:"description=Names of the members the task was assigned to" validate:"required"`
	Project     string   `json:"project" jsonschema:"description=Project the task belongs to or an empty string"`
}

var (
	schemaOnce sync.Once
	schemaDoc  *jsonschema.Schema

	validateOnce sync.Once
	validate     *validator.Validate
)

// Schema returns the JSON Schema of the extraction document.
func Schema() *jsonschema.Schema {
	schemaOnce.Do(func() {
		r := jsonschema.Reflector{
			AllowAdditionalProperties: false,
			DoNotReference:            true,
		}
		schemaDoc = r.Reflect(&wireExtraction{})
		// Strict structured output rejects the meta keywords.
		schemaDoc.Version = ""
		schemaDoc.ID = ""
	})
	return schemaDoc
}

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			return jsonName(f.Tag.Get("json"))
		})
	})
	return validate
}

// Decode parses and validates an oracle reply. Markdown code fences around
// the document are tolerated. Every failure is a schema failure.
func Decode(content string) (*Extraction, error) {
	body := stripFences(content)
	if body == "" {
		return nil, &schemaError{op: OpDecode, err: errors.New("empty reply")}
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	var w wireExtraction
	if err := dec.Decode(&w); err != nil {
		return nil, &schemaError{op: OpDecode, err: fmt.Errorf("decode reply: %w", err)}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &schemaError{op: OpDecode, err: errors.New("decode reply: trailing data after JSON document")}
	}
	if err := checkKeys(body); err != nil {
		return nil, &schemaError{op: OpValidate, err: err}
	}

	w.Summary = strings.TrimSpace(w.Summary)
	for i := range w.Topics {
		w.Topics[i].Name = strings.TrimSpace(w.Topics[i].Name)
	}
	for i := range w.Tasks {
		w.Tasks[i].Name = strings.TrimSpace(w.Tasks[i].Name)
	}
	if err := validatorInstance().Struct(&w); err != nil {
		return nil, &schemaError{op: OpValidate, err: describe(err)}
	}

	ex := &Extraction{
		Participants: cleanNames(w.Participants),
		Projects:     cleanNames(w.Projects),
		Summary:      w.Summary,
	}
	for _, t := range w.Topics {
		ex.Topics = append(ex.Topics, ExtractedTopic{Name: t.Name, Summary: strings.TrimSpace(t.Summary)})
	}
	for i, t := range w.Tasks {
		deadline, err := parseDeadline(t.Deadline)
		if err != nil {
			return nil, &schemaError{op: OpValidate, err: fmt.Errorf("tasks[%d].deadline: %w", i, err)}
		}
		ex.Tasks = append(ex.Tasks, ExtractedTask{
			Name:        t.Name,
			Description: strings.TrimSpace(t.Description),
			Deadline:    deadline,
			Assignees:   cleanNames(t.Assignees),
			Project:     strings.TrimSpace(t.Project),
		})
	}
	return ex, nil
}

// parseDeadline accepts YYYY-MM-DD; empty, "null" and "none" mean no deadline.
func parseDeadline(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "null", "none":
		return nil, nil
	}
	d, err := time.Parse(DeadlineLayout, s)
	if err != nil {
		return nil, fmt.Errorf("%q is not a YYYY-MM-DD date", s)
	}
	return &d, nil
}

// stripFences removes a surrounding ``` or ```json fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// cleanNames trims names and drops blanks. Order and duplicates are kept;
// the resolver collapses repeats.
func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var errs []error
	for _, fe := range verrs {
		path := fe.Namespace()
		if i := strings.IndexByte(path, '.'); i >= 0 {
			path = path[i+1:]
		}
		errs = append(errs, fmt.Errorf("%s is required", path))
	}
	return errors.Join(errs...)
}

var (
	topicKeys = jsonKeys(reflect.TypeFor[wireTopic]())
	taskKeys  = jsonKeys(reflect.TypeFor[wireTask]())
)

// checkKeys reports every topic or task key missing from body. A key given
// as null counts as present; the struct validation decides about its value.
func checkKeys(body string) error {
	var objs struct {
		Topics []map[string]json.RawMessage `json:"topics"`
		Tasks  []map[string]json.RawMessage `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(body), &objs); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	var errs []error
	missing := func(kind string, i int, obj map[string]json.RawMessage, keys []string) {
		for _, k := range keys {
			if _, ok := obj[k]; !ok {
				errs = append(errs, fmt.Errorf("%s[%d].%s is required", kind, i, k))
			}
		}
	}
	for i, obj := range objs.Topics {
		missing("topics", i, obj, topicKeys)
	}
	for i, obj := range objs.Tasks {
		missing("tasks", i, obj, taskKeys)
	}
	return errors.Join(errs...)
}

// jsonKeys lists the JSON names of t's fields in declaration order.
func jsonKeys(t reflect.Type) []string {
	keys := make([]string, 0, t.NumField())
	for i := range t.NumField() {
		if name := jsonName(t.Field(i).Tag.Get("json")); name != "" {
			keys = append(keys, name)
		}
	}
	return keys
}

func jsonName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	if name == "-" {
		return ""
	}
	return name
}
