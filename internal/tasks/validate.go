package tasks

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000

	DefaultListLimit = 10
	MaxListLimit     = 100
)

var ErrValidation = errors.New("validation failed")

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every offending field of a payload or query.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Draft is a create payload that passed validation, with defaults applied.
type Draft struct {
	Title       string
	Description *string
	Status      TaskStatus
	Priority    TaskPriority
	DueDate     *time.Time
}

// Changes is a patch that passed validation. Only Set fields are applied.
type Changes struct {
	Title       Optional[string]
	Description Optional[string]
	Status      Optional[TaskStatus]
	Priority    Optional[TaskPriority]
	DueDate     Optional[time.Time]
}

func (c Changes) apply(t *Task) {
	if c.Title.Present() {
		t.Title = c.Title.Value
	}
	if c.Description.Set {
		if c.Description.Null {
			t.Description = nil
		} else {
			d := c.Description.Value
			t.Description = &d
		}
	}
	if c.Status.Present() {
		t.Status = c.Status.Value
	}
	if c.Priority.Present() {
		t.Priority = c.Priority.Value
	}
	if c.DueDate.Set {
		if c.DueDate.Null {
			t.DueDate = nil
		} else {
			due := c.DueDate.Value
			t.DueDate = &due
		}
	}
}

func ValidateCreate(req CreateRequest) (Draft, error) {
	verr := &ValidationError{}
	draft := Draft{
		Status:   TaskStatusPending,
		Priority: TaskPriorityMedium,
	}

	if !req.Title.Present() {
		verr.add("title", "field required")
	} else if checkTitle(verr, req.Title.Value) {
		draft.Title = req.Title.Value
	}
	if req.Description.Present() && checkDescription(verr, req.Description.Value) {
		d := req.Description.Value
		draft.Description = &d
	}
	if req.Status.Set {
		if req.Status.Null {
			verr.add("status", "must not be null")
		} else if checkStatus(verr, "status", req.Status.Value) {
			draft.Status = req.Status.Value
		}
	}
	if req.Priority.Set {
		if req.Priority.Null {
			verr.add("priority", "must not be null")
		} else if checkPriority(verr, "priority", req.Priority.Value) {
			draft.Priority = req.Priority.Value
		}
	}
	if req.DueDate.Present() {
		if due, ok := checkDueDate(verr, req.DueDate.Value); ok {
			draft.DueDate = &due
		}
	}

	if err := verr.orNil(); err != nil {
		return Draft{}, err
	}
	return draft, nil
}

func ValidatePatch(p Patch) (Changes, error) {
	verr := &ValidationError{}
	var out Changes

	if p.Title.Set {
		if p.Title.Null {
			verr.add("title", "must not be null")
		} else if checkTitle(verr, p.Title.Value) {
			out.Title = p.Title
		}
	}
	if p.Description.Set {
		if p.Description.Null || checkDescription(verr, p.Description.Value) {
			out.Description = p.Description
		}
	}
	if p.Status.Set {
		if p.Status.Null {
			verr.add("status", "must not be null")
		} else if checkStatus(verr, "status", p.Status.Value) {
			out.Status = p.Status
		}
	}
	if p.Priority.Set {
		if p.Priority.Null {
			verr.add("priority", "must not be null")
		} else if checkPriority(verr, "priority", p.Priority.Value) {
			out.Priority = p.Priority
		}
	}
	if p.DueDate.Set {
		if p.DueDate.Null {
			out.DueDate = Null[time.Time]()
		} else if due, ok := checkDueDate(verr, p.DueDate.Value); ok {
			out.DueDate = Some(due)
		}
	}

	if err := verr.orNil(); err != nil {
		return Changes{}, err
	}
	return out, nil
}

// ValidateListQuery rejects unknown filter values and out-of-range windows.
// Limits are never clamped; callers fill in DefaultListLimit themselves.
func ValidateListQuery(q ListQuery) (ListQuery, error) {
	verr := &ValidationError{}
	if q.Status != "" {
		checkStatus(verr, "status", q.Status)
	}
	if q.Priority != "" {
		checkPriority(verr, "priority", q.Priority)
	}
	if q.Limit < 1 || q.Limit > MaxListLimit {
		verr.add("limit", "must be between 1 and %d", MaxListLimit)
	}
	if q.Offset < 0 {
		verr.add("offset", "must be greater than or equal to 0")
	}
	if err := verr.orNil(); err != nil {
		return ListQuery{}, err
	}
	return q, nil
}

func checkTitle(verr *ValidationError, title string) bool {
	n := utf8.RuneCountInString(title)
	if n < 1 {
		verr.add("title", "must be at least 1 character")
		return false
	}
	if n > MaxTitleLength {
		verr.add("title", "must be at most %d characters", MaxTitleLength)
		return false
	}
	return true
}

func checkDescription(verr *ValidationError, description string) bool {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		verr.add("description", "must be at most %d characters", MaxDescriptionLength)
		return false
	}
	return true
}

func checkStatus(verr *ValidationError, field string, s TaskStatus) bool {
	if !s.Valid() {
		verr.add(field, "must be one of %s", joinStatuses())
		return false
	}
	return true
}

func checkPriority(verr *ValidationError, field string, p TaskPriority) bool {
	if !p.Valid() {
		verr.add(field, "must be one of %s", joinPriorities())
		return false
	}
	return true
}

func checkDueDate(verr *ValidationError, raw string) (time.Time, bool) {
	due, err := ParseTimestamp(raw)
	if err != nil {
		verr.add("due_date", "must be a valid ISO-8601 timestamp")
		return time.Time{}, false
	}
	return due, true
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 and zone-less ISO-8601 forms. Zone-less
// values are taken as UTC. The result is always in UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func joinStatuses() string {
	out := make([]string, 0, len(TaskStatuses))
	for _, s := range TaskStatuses {
		out = append(out, string(s))
	}
	return strings.Join(out, ", ")
}

func joinPriorities() string {
	out := make([]string, 0, len(TaskPriorities))
	for _, p := range TaskPriorities {
		out = append(out, string(p))
	}
	return strings.Join(out, ", ")
}
