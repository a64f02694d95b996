package usecase

import (
	"context"

	"plantpal-backend/internal/task/domain"
	"plantpal-backend/internal/task/store"
)

// TaskUsecase is the task surface of one signed-in user. Every method is
// keyed by the authenticated userID; the first call of a session loads the
// user's tasks.
type TaskUsecase interface {
	// Refresh re-fetches the user's tasks from the repository
	Refresh(ctx context.Context, userID string) (*TaskView, error)

	// State returns one tab of the current task list
	State(ctx context.Context, userID string, tab store.Tab) (*TaskView, error)

	// QuickTasks returns the first limit active tasks of a category
	QuickTasks(ctx context.Context, userID string, category domain.Category, limit int) ([]domain.Task, error)

	// Summary counts the user's tasks and earned points
	Summary(ctx context.Context, userID string) (store.Summary, error)

	CreateTask(ctx context.Context, userID string, draft domain.Draft) (domain.Task, error)

	// CreateFromSuggestion creates a task titled after a suggestion template
	CreateFromSuggestion(ctx context.Context, userID, suggestionID string, req AdoptRequest) (domain.Task, error)

	UpdateTask(ctx context.Context, userID, taskID string, fields domain.Fields) (domain.Task, error)
	DeleteTask(ctx context.Context, userID, taskID string) error

	// ToggleFavorite returns nil when the task is not in the user's list
	ToggleFavorite(ctx context.Context, userID, taskID string) (*domain.Task, error)
	MarkCompleted(ctx context.Context, userID, taskID string) (domain.Task, error)
	SkipTask(ctx context.Context, userID, taskID string) (domain.Task, error)

	// Suggestions lists templates, ranked by fuzzy title match when query is set
	Suggestions(ctx context.Context, userID, query string) ([]domain.Suggestion, error)

	// EndSession discards the user's store
	EndSession(userID string) bool
}

// TaskView is a tab of the task list plus the store status
type TaskView struct {
	Tab       store.Tab                    `json:"tab"`
	Tasks     []domain.Task                `json:"tasks"`
	Sections  *store.Sections              `json:"sections,omitempty"`
	Details   map[string]domain.TaskDetail `json:"details"`
	Loading   bool                         `json:"loading"`
	LastError *domain.Error                `json:"last_error,omitempty"`
}

// AdoptRequest carries what a suggestion does not: the draft only takes the
// suggestion's title
type AdoptRequest struct {
	Category domain.Category
	IconRef  string
	Points   *int
	Detail   *domain.TaskDetail
}

// EventSink receives per-user state pushes
type EventSink interface {
	SendToUser(userID string, eventType string, payload interface{})
}
