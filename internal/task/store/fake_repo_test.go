package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"plantpal-backend/internal/task/domain"
)

// fakeRepo implements repository.TaskRepository. Nil funcs fall back to an
// in-memory default so tests only override what they exercise.
type fakeRepo struct {
	mu    sync.Mutex
	calls map[string]int
	tasks []domain.Task
	next  int

	FetchFunc         func(ctx context.Context, userID string) ([]domain.Task, []domain.TaskDetail, error)
	CreateFunc        func(ctx context.Context, ownerID string, draft domain.Draft) (domain.Task, error)
	UpdateFunc        func(ctx context.Context, ownerID, taskID string, fields domain.Fields) (domain.Task, error)
	DeleteDetailsFunc func(ctx context.Context, ownerID, taskID string) error
	DeleteFunc        func(ctx context.Context, ownerID, taskID string) error
	SuggestionsFunc   func(ctx context.Context, userID string) ([]domain.Suggestion, error)
}

func newFakeRepo(tasks ...domain.Task) *fakeRepo {
	return &fakeRepo{calls: map[string]int{}, tasks: tasks}
}

func (f *fakeRepo) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeRepo) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeRepo) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeRepo) FetchTasksWithDetails(ctx context.Context, userID string) ([]domain.Task, []domain.TaskDetail, error) {
	f.record("fetch")
	if f.FetchFunc != nil {
		return f.FetchFunc(ctx, userID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Task, len(f.tasks))
	copy(out, f.tasks)
	return out, nil, nil
}

func (f *fakeRepo) CreateTask(ctx context.Context, ownerID string, draft domain.Draft) (domain.Task, error) {
	f.record("create")
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, ownerID, draft)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	points := domain.DefaultPoints
	if draft.Points != nil && *draft.Points > 0 {
		points = *draft.Points
	}
	icon := draft.IconRef
	t := domain.Task{
		ID:        fmt.Sprintf("new-%d", f.next),
		OwnerID:   ownerID,
		Category:  draft.Category,
		Title:     draft.Title,
		IconRef:   &icon,
		Status:    domain.TaskStatusActive,
		Points:    points,
		CreatedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}
	f.tasks = append(f.tasks, t)
	return t, nil
}

func (f *fakeRepo) UpdateTask(ctx context.Context, ownerID, taskID string, fields domain.Fields) (domain.Task, error) {
	f.record("update")
	if f.UpdateFunc != nil {
		return f.UpdateFunc(ctx, ownerID, taskID, fields)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == taskID && f.tasks[i].OwnerID == ownerID {
			fields.Apply(&f.tasks[i])
			return f.tasks[i], nil
		}
	}
	return domain.Task{}, domain.Errorf(domain.KindNotFound, "task %s not found", taskID)
}

func (f *fakeRepo) DeleteTaskDetails(ctx context.Context, ownerID, taskID string) error {
	f.record("deleteDetails")
	if f.DeleteDetailsFunc != nil {
		return f.DeleteDetailsFunc(ctx, ownerID, taskID)
	}
	return nil
}

func (f *fakeRepo) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	f.record("delete")
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, ownerID, taskID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == taskID && f.tasks[i].OwnerID == ownerID {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return domain.Errorf(domain.KindNotFound, "task %s not found", taskID)
}

func (f *fakeRepo) FetchSuggestions(ctx context.Context, userID string) ([]domain.Suggestion, error) {
	f.record("suggestions")
	if f.SuggestionsFunc != nil {
		return f.SuggestionsFunc(ctx, userID)
	}
	return []domain.Suggestion{{ID: "s1", Title: "Drink water", Category: "Daily", IconRef: "glass"}}, nil
}

func task(id, category string, status domain.TaskStatus, fav bool) domain.Task {
	return domain.Task{
		ID:         id,
		OwnerID:    "u1",
		Category:   domain.Category(category),
		Title:      "task " + id,
		Status:     status,
		IsFavorite: fav,
		Points:     5,
	}
}
