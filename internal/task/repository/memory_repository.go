package repository

import (
	"context"
	"sync"
	"time"

	"plantpal-backend/internal/task/domain"

	"github.com/google/uuid"
)

// memoryRepository keeps tasks in process memory, in insertion order.
// Used for local development and tests.
type memoryRepository struct {
	mu          sync.RWMutex
	order       []string
	tasks       map[string]domain.Task
	details     map[string]domain.TaskDetail
	suggestions []domain.Suggestion
	now         func() time.Time
}

// NewMemoryRepository creates an empty in-memory TaskRepository
func NewMemoryRepository(suggestions []domain.Suggestion) TaskRepository {
	return &memoryRepository{
		tasks:       make(map[string]domain.Task),
		details:     make(map[string]domain.TaskDetail),
		suggestions: suggestions,
		now:         time.Now,
	}
}

func (r *memoryRepository) FetchTasksWithDetails(ctx context.Context, userID string) ([]domain.Task, []domain.TaskDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, domain.Wrap(domain.KindNetwork, err, "fetch cancelled")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tasks []domain.Task
	var details []domain.TaskDetail
	for _, id := range r.order {
		t := r.tasks[id]
		if t.OwnerID != userID {
			continue
		}
		tasks = append(tasks, t)
		if d, ok := r.details[id]; ok {
			details = append(details, d)
		}
	}
	return tasks, details, nil
}

func (r *memoryRepository) CreateTask(ctx context.Context, ownerID string, draft domain.Draft) (domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return domain.Task{}, domain.Wrap(domain.KindNetwork, err, "create cancelled")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	task := newTaskFromDraft(ownerID, draft)
	task.ID = uuid.New().String()
	task.CreatedAt = r.now()
	r.tasks[task.ID] = task
	r.order = append(r.order, task.ID)
	if draft.Detail != nil {
		d := *draft.Detail
		d.TaskID = task.ID
		r.details[task.ID] = d
	}
	return task, nil
}

func (r *memoryRepository) UpdateTask(ctx context.Context, ownerID, taskID string, fields domain.Fields) (domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return domain.Task{}, domain.Wrap(domain.KindNetwork, err, "update cancelled")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[taskID]
	if !ok || task.OwnerID != ownerID {
		return domain.Task{}, domain.Errorf(domain.KindNotFound, "task %s not found", taskID)
	}
	if err := checkTransition(task.Status, fields.Status); err != nil {
		return domain.Task{}, err
	}
	fields.Apply(&task)
	r.tasks[taskID] = task
	if fields.Detail != nil {
		d := *fields.Detail
		d.TaskID = taskID
		r.details[taskID] = d
	}
	return task, nil
}

func (r *memoryRepository) DeleteTaskDetails(ctx context.Context, ownerID, taskID string) error {
	if err := ctx.Err(); err != nil {
		return domain.Wrap(domain.KindNetwork, err, "delete cancelled")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if task, ok := r.tasks[taskID]; ok && task.OwnerID != ownerID {
		return domain.Errorf(domain.KindNotFound, "task %s not found", taskID)
	}
	delete(r.details, taskID)
	return nil
}

func (r *memoryRepository) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	if err := ctx.Err(); err != nil {
		return domain.Wrap(domain.KindNetwork, err, "delete cancelled")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if task, ok := r.tasks[taskID]; !ok || task.OwnerID != ownerID {
		return domain.Errorf(domain.KindNotFound, "task %s not found", taskID)
	}
	delete(r.tasks, taskID)
	delete(r.details, taskID)
	for i, id := range r.order {
		if id == taskID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memoryRepository) FetchSuggestions(ctx context.Context, userID string) ([]domain.Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Wrap(domain.KindNetwork, err, "fetch cancelled")
	}
	out := make([]domain.Suggestion, len(r.suggestions))
	copy(out, r.suggestions)
	return out, nil
}

// checkTransition rejects a status change out of completed or skipped
func checkTransition(current domain.TaskStatus, next *domain.TaskStatus) error {
	if next == nil {
		return nil
	}
	current = domain.ParseStatus(string(current))
	if current == *next || current == domain.TaskStatusActive && *next != domain.TaskStatusActive {
		return nil
	}
	return domain.Errorf(domain.KindValidation, "task cannot move from %s to %s", current, *next)
}

// newTaskFromDraft applies the creation defaults shared by every backend
func newTaskFromDraft(ownerID string, draft domain.Draft) domain.Task {
	points := domain.DefaultPoints
	if draft.Points != nil && *draft.Points > 0 {
		points = *draft.Points
	}
	var icon *string
	if draft.IconRef != "" {
		ref := draft.IconRef
		icon = &ref
	}
	return domain.Task{
		OwnerID:    ownerID,
		Category:   domain.NormalizeCategory(string(draft.Category)),
		Title:      draft.Title,
		IconRef:    icon,
		IsFavorite: false,
		Status:     domain.TaskStatusActive,
		Points:     points,
	}
}
