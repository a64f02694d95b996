package domain

import "strings"

// ParseCategory resolves a raw category string, ignoring case and surrounding space
func ParseCategory(raw string) (Category, bool) {
	switch c := NormalizeCategory(raw); c {
	case CategoryDaily, CategoryPersonal:
		return c, true
	default:
		return c, false
	}
}

// NormalizeCategory lowercases and trims a raw category. Unknown values are
// kept; the task store drops records whose category does not parse.
func NormalizeCategory(raw string) Category {
	return Category(strings.ToLower(strings.TrimSpace(raw)))
}

// ParseStatus resolves a raw status; anything unrecognised is active
func ParseStatus(raw string) TaskStatus {
	switch s := TaskStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case TaskStatusCompleted, TaskStatusSkipped:
		return s
	default:
		return TaskStatusActive
	}
}

// ValidStatus reports whether s is one of the three known statuses
func ValidStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusActive, TaskStatusCompleted, TaskStatusSkipped:
		return true
	}
	return false
}

// NormalizeTask is applied to every record coming out of a repository
func NormalizeTask(t Task) Task {
	t.Category = NormalizeCategory(string(t.Category))
	t.Status = ParseStatus(string(t.Status))
	if t.Points <= 0 {
		t.Points = DefaultPoints
	}
	if t.IconRef != nil {
		icon := strings.TrimSpace(*t.IconRef)
		if icon == "" {
			t.IconRef = nil
		} else {
			t.IconRef = &icon
		}
	}
	return t
}

// NormalizeRecurrence maps unknown recurrence values to none
func NormalizeRecurrence(raw string) Recurrence {
	switch r := Recurrence(strings.ToLower(strings.TrimSpace(raw))); r {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return r
	default:
		return RecurrenceNone
	}
}
