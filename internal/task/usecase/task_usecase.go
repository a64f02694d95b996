package usecase

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"

	"plantpal-backend/internal/notification"
	"plantpal-backend/internal/task/domain"
	"plantpal-backend/internal/task/store"
	"plantpal-backend/pkg/fuzzy"
	"plantpal-backend/pkg/metrics"
)

// StateEvent is the SSE event type carrying a store snapshot
const StateEvent = "tasks"

type taskUsecase struct {
	registry  *store.Registry
	publisher notification.Publisher
	metrics   *metrics.Metrics
}

// NewTaskUsecase wires the registry to the event publisher and, when sink is
// set, streams every state change of a user to sink.
func NewTaskUsecase(registry *store.Registry, publisher notification.Publisher, sink EventSink, m *metrics.Metrics) TaskUsecase {
	if publisher == nil {
		publisher = notification.NewNopPublisher()
	}
	if sink != nil {
		registry.SetObserver(func(userID string, state store.State) {
			sink.SendToUser(userID, StateEvent, state)
		})
	}
	return &taskUsecase{registry: registry, publisher: publisher, metrics: m}
}

func (u *taskUsecase) Refresh(ctx context.Context, userID string) (*TaskView, error) {
	s, err := u.open(userID)
	if err != nil {
		return nil, err
	}
	if err := s.FetchTasks(ctx, userID); err != nil {
		return nil, err
	}
	return view(s.Snapshot(), store.TabActive), nil
}

func (u *taskUsecase) State(ctx context.Context, userID string, tab store.Tab) (*TaskView, error) {
	s, err := u.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	return view(s.Snapshot(), tab), nil
}

func (u *taskUsecase) QuickTasks(ctx context.Context, userID string, category domain.Category, limit int) ([]domain.Task, error) {
	c, ok := domain.ParseCategory(string(category))
	if !ok {
		return nil, domain.Errorf(domain.KindValidation, "unknown category %q", category)
	}
	s, err := u.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Quick(c, limit), nil
}

func (u *taskUsecase) Summary(ctx context.Context, userID string) (store.Summary, error) {
	s, err := u.session(ctx, userID)
	if err != nil {
		return store.Summary{}, err
	}
	return s.Summary(), nil
}

func (u *taskUsecase) CreateTask(ctx context.Context, userID string, draft domain.Draft) (domain.Task, error) {
	s, err := u.session(ctx, userID)
	if err != nil {
		return domain.Task{}, err
	}
	task, err := s.CreateTask(ctx, draft)
	if err != nil {
		return domain.Task{}, err
	}
	u.publish(ctx, notification.NewEvent(notification.EventTaskCreated, userID, task.ID, &task))
	return task, nil
}

func (u *taskUsecase) CreateFromSuggestion(ctx context.Context, userID, suggestionID string, req AdoptRequest) (domain.Task, error) {
	s, err := u.session(ctx, userID)
	if err != nil {
		return domain.Task{}, err
	}
	suggestions, err := s.FetchSuggestions(ctx, userID)
	if err != nil {
		return domain.Task{}, err
	}

	var found *domain.Suggestion
	for i := range suggestions {
		if suggestions[i].ID == suggestionID {
			found = &suggestions[i]
			break
		}
	}
	if found == nil {
		return domain.Task{}, domain.Errorf(domain.KindNotFound, "suggestion %s not found", suggestionID)
	}

	draft := domain.DraftFromSuggestion(*found)
	draft.Category = req.Category
	draft.IconRef = req.IconRef
	draft.Points = req.Points
	draft.Detail = req.Detail
	return u.CreateTask(ctx, userID, draft)
}

func (u *taskUsecase) UpdateTask(ctx context.Context, userID, taskID string, fields domain.Fields) (domain.Task, error) {
	s, err := u.session(ctx, userID)
	if err != nil {
		return domain.Task{}, err
	}
	task, err := s.UpdateTask(ctx, taskID, fields)
	if err != nil {
		return domain.Task{}, err
	}
	return u.confirmed(ctx, userID, task), nil
}

func (u *taskUsecase) DeleteTask(ctx context.Context, userID, taskID string) error {
	s, err := u.session(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	u.publish(ctx, notification.NewEvent(notification.EventTaskDeleted, userID, taskID, nil))
	return nil
}

func (u *taskUsecase) ToggleFavorite(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	s, err := u.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, ok := s.Task(taskID); !ok {
		return nil, nil
	}
	if err := s.ToggleFavorite(ctx, taskID); err != nil {
		return nil, err
	}
	task, ok := s.Task(taskID)
	if !ok {
		// dropped by a concurrent refresh or delete
		return nil, nil
	}
	task = u.confirmed(ctx, userID, task)
	return &task, nil
}

func (u *taskUsecase) MarkCompleted(ctx context.Context, userID, taskID string) (domain.Task, error) {
	return u.setStatus(ctx, userID, taskID, domain.TaskStatusCompleted)
}

func (u *taskUsecase) SkipTask(ctx context.Context, userID, taskID string) (domain.Task, error) {
	return u.setStatus(ctx, userID, taskID, domain.TaskStatusSkipped)
}

func (u *taskUsecase) setStatus(ctx context.Context, userID, taskID string, status domain.TaskStatus) (domain.Task, error) {
	s, err := u.session(ctx, userID)
	if err != nil {
		return domain.Task{}, err
	}
	task, err := s.UpdateTask(ctx, taskID, domain.Fields{Status: &status})
	if err != nil {
		return domain.Task{}, err
	}
	return u.confirmed(ctx, userID, task), nil
}

func (u *taskUsecase) Suggestions(ctx context.Context, userID, query string) ([]domain.Suggestion, error) {
	s, err := u.open(userID)
	if err != nil {
		return nil, err
	}
	suggestions, err := s.FetchSuggestions(ctx, userID)
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return suggestions, nil
	}

	type scored struct {
		suggestion domain.Suggestion
		score      float64
	}
	threshold := fuzzy.Threshold(query)
	var matches []scored
	for _, sg := range suggestions {
		if !fuzzy.Match(query, sg.Title, threshold) {
			continue
		}
		matches = append(matches, scored{suggestion: sg, score: fuzzy.Score(query, sg.Title)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	out := make([]domain.Suggestion, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.suggestion)
	}
	return out, nil
}

func (u *taskUsecase) EndSession(userID string) bool {
	closed := u.registry.Close(userID)
	u.trackSessions()
	return closed
}

func (u *taskUsecase) open(userID string) (*store.TaskStore, error) {
	s, err := u.registry.Open(userID)
	if err != nil {
		return nil, err
	}
	u.trackSessions()
	return s, nil
}

func (u *taskUsecase) trackSessions() {
	if u.metrics != nil {
		u.metrics.OpenSessions.Set(float64(len(u.registry.Users())))
	}
}

// session opens the user's store and loads it on first use. A failed first
// load is kept in the store's lastError rather than failing the request.
func (u *taskUsecase) session(ctx context.Context, userID string) (*store.TaskStore, error) {
	s, err := u.open(userID)
	if err != nil {
		return nil, err
	}
	if s.Loaded() {
		return s, nil
	}
	if err := s.FetchTasks(ctx, userID); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if domain.KindOf(err) == domain.KindUnauthenticated {
			return nil, err
		}
	}
	return s, nil
}

// confirmed publishes the event matching an update the repository accepted
func (u *taskUsecase) confirmed(ctx context.Context, userID string, task domain.Task) domain.Task {
	u.publish(ctx, notification.NewEvent(notification.EventForUpdate(task), userID, task.ID, &task))
	return task
}

func (u *taskUsecase) publish(ctx context.Context, event notification.Event) {
	if err := u.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		log.Printf("[TaskUsecase] Failed to publish %s for task %s: %v", event.Type, event.TaskID, err)
		return
	}
	if u.metrics != nil {
		u.metrics.TaskEvents.WithLabelValues(string(event.Type)).Inc()
	}
}

func view(state store.State, tab store.Tab) *TaskView {
	v := &TaskView{
		Tab:       tab,
		Tasks:     store.FilterByTab(state.Tasks, tab),
		Details:   state.Details,
		Loading:   state.Loading,
		LastError: state.LastError,
	}
	if tab == store.TabActive {
		sections := store.SectionByCategory(v.Tasks)
		v.Sections = &sections
	}
	return v
}
