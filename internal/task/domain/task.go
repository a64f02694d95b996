package domain

import (
	"strings"
	"time"
)

// Category is the Daily/Personal grouping of a task
type Category string

const (
	CategoryDaily    Category = "daily"
	CategoryPersonal Category = "personal"
)

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

const (
	TaskStatusActive    TaskStatus = "active"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusSkipped   TaskStatus = "skipped"
)

// Recurrence is stored with a task detail but never acted upon
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// DefaultPoints is the reward of a task created without explicit points
const DefaultPoints = 5

// DefaultIcon is what clients render when a task has no icon reference
const DefaultIcon = "default"

// Task is a habit the user completes to earn points for their plant
type Task struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"owner_id"`
	Category   Category   `json:"category_type"`
	Title      string     `json:"title"`
	IconRef    *string    `json:"icon_ref"`
	IsFavorite bool       `json:"is_favorite"`
	Status     TaskStatus `json:"status"`
	Points     int        `json:"points"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Icon returns the icon reference, or DefaultIcon when none is set
func (t Task) Icon() string {
	if t.IconRef == nil || strings.TrimSpace(*t.IconRef) == "" {
		return DefaultIcon
	}
	return *t.IconRef
}

// IsTerminal reports whether the task left the active state
func (t Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusSkipped
}

// TaskDetail holds scheduling metadata for a task (0 or 1 per task)
type TaskDetail struct {
	TaskID     string     `json:"task_id"`
	Date       *time.Time `json:"date,omitempty"`
	AllDay     bool       `json:"all_day"`
	Recurrence Recurrence `json:"recurrence"`
}

// Suggestion is a read-only template the user can turn into a task
type Suggestion struct {
	ID       string   `json:"id" yaml:"id"`
	Title    string   `json:"title" yaml:"title"`
	Category Category `json:"category_type" yaml:"category"`
	IconRef  string   `json:"icon_ref" yaml:"icon"`
	Points   int      `json:"points" yaml:"points"`
}

// Draft is an unsaved task built by the caller
type Draft struct {
	Title    string      `json:"title"`
	Category Category    `json:"category_type"`
	IconRef  string      `json:"icon_ref"`
	Points   *int        `json:"points,omitempty"`
	Detail   *TaskDetail `json:"detail,omitempty"`
}

// DraftFromSuggestion starts a draft carrying the suggestion's title
func DraftFromSuggestion(s Suggestion) Draft {
	return Draft{Title: s.Title}
}

// Validate checks the draft locally before it is sent anywhere
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return Errorf(KindValidation, "title is required")
	}
	if _, ok := ParseCategory(string(d.Category)); !ok {
		return Errorf(KindValidation, "category %q must be daily or personal", d.Category)
	}
	if strings.TrimSpace(d.IconRef) == "" {
		return Errorf(KindValidation, "icon is required")
	}
	if d.Points != nil && *d.Points < 0 {
		return Errorf(KindValidation, "points must not be negative")
	}
	return nil
}

// Fields is a partial update; nil means "no change"
type Fields struct {
	Title      *string     `json:"title,omitempty"`
	Category   *Category   `json:"category_type,omitempty"`
	IconRef    *string     `json:"icon_ref,omitempty"`
	IsFavorite *bool       `json:"is_favorite,omitempty"`
	Status     *TaskStatus `json:"status,omitempty"`
	Points     *int        `json:"points,omitempty"`
	Detail     *TaskDetail `json:"detail,omitempty"`
}

// IsEmpty reports whether no field is set
func (f Fields) IsEmpty() bool {
	return f.Title == nil && f.Category == nil && f.IconRef == nil &&
		f.IsFavorite == nil && f.Status == nil && f.Points == nil && f.Detail == nil
}

// Apply merges the set fields into t. Detail is not part of Task and is ignored.
func (f Fields) Apply(t *Task) {
	if f.Title != nil {
		t.Title = *f.Title
	}
	if f.Category != nil {
		t.Category = NormalizeCategory(string(*f.Category))
	}
	if f.IconRef != nil {
		icon := *f.IconRef
		t.IconRef = &icon
	}
	if f.IsFavorite != nil {
		t.IsFavorite = *f.IsFavorite
	}
	if f.Status != nil {
		t.Status = *f.Status
	}
	if f.Points != nil {
		t.Points = *f.Points
	}
}
