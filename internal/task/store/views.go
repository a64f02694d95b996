package store

import (
	"strings"

	"plantpal-backend/internal/task/domain"
)

// Tab is a user-facing task grouping
type Tab string

const (
	TabFavorite  Tab = "favorite"
	TabActive    Tab = "active"
	TabCompleted Tab = "completed"
)

// DefaultQuickLimit is the size of the dashboard quick view
const DefaultQuickLimit = 3

// ParseTab resolves a raw tab name; empty means active
func ParseTab(raw string) (Tab, bool) {
	switch t := Tab(strings.ToLower(strings.TrimSpace(raw))); t {
	case "":
		return TabActive, true
	case TabFavorite, TabActive, TabCompleted:
		return t, true
	default:
		return t, false
	}
}

// Sections is the Daily/Personal split of a task list
type Sections struct {
	Daily    []domain.Task `json:"daily"`
	Personal []domain.Task `json:"personal"`
}

// Summary counts tasks by status and totals the points of completed ones
type Summary struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	Completed    int `json:"completed"`
	Skipped      int `json:"skipped"`
	Favorites    int `json:"favorites"`
	PointsEarned int `json:"points_earned"`
}

// FilterByTab returns the tasks belonging to tab, keeping input order.
// Favorite cuts across statuses.
func FilterByTab(tasks []domain.Task, tab Tab) []domain.Task {
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if inTab(t, tab) {
			out = append(out, t)
		}
	}
	return out
}

func inTab(t domain.Task, tab Tab) bool {
	switch tab {
	case TabFavorite:
		return t.IsFavorite
	case TabActive:
		return !t.IsTerminal()
	case TabCompleted:
		return t.Status == domain.TaskStatusCompleted
	default:
		return false
	}
}

// SectionByCategory partitions tasks into daily and personal. Tasks with any
// other category appear in neither.
func SectionByCategory(tasks []domain.Task) Sections {
	sections := Sections{
		Daily:    []domain.Task{},
		Personal: []domain.Task{},
	}
	for _, t := range tasks {
		switch c, _ := domain.ParseCategory(string(t.Category)); c {
		case domain.CategoryDaily:
			sections.Daily = append(sections.Daily, t)
		case domain.CategoryPersonal:
			sections.Personal = append(sections.Personal, t)
		}
	}
	return sections
}

// QuickView returns at most limit active tasks of the given category
func QuickView(tasks []domain.Task, category domain.Category, limit int) []domain.Task {
	if limit <= 0 {
		limit = DefaultQuickLimit
	}
	want := domain.NormalizeCategory(string(category))
	out := make([]domain.Task, 0, limit)
	for _, t := range tasks {
		if len(out) == limit {
			break
		}
		if t.IsTerminal() || domain.NormalizeCategory(string(t.Category)) != want {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Summarize counts tasks for the dashboard
func Summarize(tasks []domain.Task) Summary {
	var s Summary
	for _, t := range tasks {
		s.Total++
		if t.IsFavorite {
			s.Favorites++
		}
		switch t.Status {
		case domain.TaskStatusCompleted:
			s.Completed++
			s.PointsEarned += t.Points
		case domain.TaskStatusSkipped:
			s.Skipped++
		default:
			s.Active++
		}
	}
	return s
}
