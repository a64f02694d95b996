package repository

import (
	"context"

	"plantpal-backend/internal/task/domain"
)

// TaskRepository defines the interface for remote task persistence.
// Implementations return *domain.Error values: KindNotFound for unknown ids
// and for tasks owned by someone else, KindValidation for a status change out
// of completed or skipped, KindNetwork for anything that kept the call from
// completing.
type TaskRepository interface {
	// FetchTasksWithDetails returns every task owned by userID and their detail records
	FetchTasksWithDetails(ctx context.Context, userID string) ([]domain.Task, []domain.TaskDetail, error)

	// CreateTask stores a new task for ownerID. Defaults: active, not favorite, 5 points.
	CreateTask(ctx context.Context, ownerID string, draft domain.Draft) (domain.Task, error)

	// UpdateTask applies the set fields to ownerID's task and returns the stored task
	UpdateTask(ctx context.Context, ownerID, taskID string, fields domain.Fields) (domain.Task, error)

	// DeleteTaskDetails removes every detail record of ownerID's task. Called before DeleteTask.
	DeleteTaskDetails(ctx context.Context, ownerID, taskID string) error

	// DeleteTask removes ownerID's task itself
	DeleteTask(ctx context.Context, ownerID, taskID string) error

	// FetchSuggestions returns the task templates offered to userID
	FetchSuggestions(ctx context.Context, userID string) ([]domain.Suggestion, error)
}
