// Package store holds the in-memory task state of a signed-in user and the
// rules that move it: fetches replace it, confirmed mutations patch it, and
// the derived views (tabs, sections, quick view) are computed from it.
package store

import (
	"context"
	"log"
	"strings"
	"sync"

	"plantpal-backend/internal/task/domain"
	"plantpal-backend/internal/task/repository"
)

// State is the observable state of a store
type State struct {
	Tasks     []domain.Task                `json:"tasks"`
	Details   map[string]domain.TaskDetail `json:"details"`
	Loading   bool                         `json:"loading"`
	LastError *domain.Error                `json:"last_error"`
}

// TaskStore owns the task list of one user. Repository calls run outside the
// lock, so a slow call never blocks readers or other commands.
type TaskStore struct {
	ownerID string
	repo    repository.TaskRepository

	mu        sync.Mutex
	tasks     []domain.Task
	details   map[string]domain.TaskDetail
	lastError *domain.Error
	loaded    bool
	closed    bool

	// fetch sequencing: only the newest issued fetch may apply its result
	fetchIssued uint64
	loading     bool

	// update sequencing: per task, per field, the newest applied update
	updateIssued uint64
	fieldSeq     map[string]map[string]uint64

	observer func(State)
}

// New creates an empty store for ownerID
func New(ownerID string, repo repository.TaskRepository) *TaskStore {
	return &TaskStore{
		ownerID:  ownerID,
		repo:     repo,
		details:  make(map[string]domain.TaskDetail),
		fieldSeq: make(map[string]map[string]uint64),
	}
}

// OwnerID returns the user this store belongs to
func (s *TaskStore) OwnerID() string {
	return s.ownerID
}

// SetObserver registers fn to receive the state after every change.
// fn runs outside the store lock.
func (s *TaskStore) SetObserver(fn func(State)) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// Snapshot returns a copy of the current state
func (s *TaskStore) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Loaded reports whether a fetch has succeeded since the store was created
func (s *TaskStore) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// ClearError drops the recorded error
func (s *TaskStore) ClearError() {
	s.mu.Lock()
	s.lastError = nil
	s.mu.Unlock()
	s.notify()
}

// Close ends the session: state is dropped and every later command fails
// as unauthenticated.
func (s *TaskStore) Close() {
	s.mu.Lock()
	s.closed = true
	s.tasks = nil
	s.details = make(map[string]domain.TaskDetail)
	s.fieldSeq = make(map[string]map[string]uint64)
	s.lastError = nil
	s.loading = false
	s.loaded = false
	s.mu.Unlock()
}

// FetchTasks replaces the task list with the repository's view of userID.
// On failure the previous list stays visible.
func (s *TaskStore) FetchTasks(ctx context.Context, userID string) error {
	if err := s.checkSession(userID); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	s.fetchIssued++
	seq := s.fetchIssued
	s.loading = true
	s.mu.Unlock()
	s.notify()

	tasks, details, err := s.repo.FetchTasksWithDetails(ctx, userID)

	s.mu.Lock()
	newest := seq == s.fetchIssued
	if newest {
		s.loading = false
	}
	switch {
	case s.closed:
		s.mu.Unlock()
		return domain.Errorf(domain.KindUnauthenticated, "session closed")
	case ctx.Err() != nil:
		s.mu.Unlock()
		s.notify()
		return ctx.Err()
	case !newest:
		// a newer fetch owns the state now
		s.mu.Unlock()
		if err != nil {
			return domain.AsError(err)
		}
		return nil
	case err != nil:
		e := domain.AsError(err)
		s.lastError = e
		s.mu.Unlock()
		log.Printf("[TaskStore] fetch for user %s failed: %v", userID, err)
		s.notify()
		return e
	}

	s.replaceLocked(tasks, details)
	s.lastError = nil
	s.loaded = true
	count := len(s.tasks)
	s.mu.Unlock()

	log.Printf("[TaskStore] fetched %d tasks for user %s", count, userID)
	s.notify()
	return nil
}

// CreateTask validates the draft and appends the stored task once the
// repository confirms it.
func (s *TaskStore) CreateTask(ctx context.Context, draft domain.Draft) (domain.Task, error) {
	if err := s.checkSession(s.ownerID); err != nil {
		return domain.Task{}, s.fail(err)
	}
	if err := draft.Validate(); err != nil {
		return domain.Task{}, s.fail(err)
	}
	draft.Title = strings.TrimSpace(draft.Title)
	draft.Category, _ = domain.ParseCategory(string(draft.Category))
	draft.IconRef = strings.TrimSpace(draft.IconRef)

	created, err := s.repo.CreateTask(ctx, s.ownerID, draft)
	if ctx.Err() != nil {
		return domain.Task{}, ctx.Err()
	}
	if err != nil {
		return domain.Task{}, s.fail(err)
	}
	created = domain.NormalizeTask(created)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.Task{}, domain.Errorf(domain.KindUnauthenticated, "session closed")
	}
	s.tasks = append(s.tasks, created)
	if draft.Detail != nil {
		d := *draft.Detail
		d.TaskID = created.ID
		d.Recurrence = domain.NormalizeRecurrence(string(d.Recurrence))
		s.details[created.ID] = d
	}
	s.mu.Unlock()

	log.Printf("[TaskStore] created task %s for user %s", created.ID, s.ownerID)
	s.notify()
	return created, nil
}

// UpdateTask sends fields to the repository and merges them into the local
// task after the repository confirms. It returns the local task, or the
// repository's copy when the task is not held locally.
func (s *TaskStore) UpdateTask(ctx context.Context, taskID string, fields domain.Fields) (domain.Task, error) {
	if err := s.checkSession(s.ownerID); err != nil {
		return domain.Task{}, s.fail(err)
	}
	if err := s.validateUpdate(taskID, fields); err != nil {
		return domain.Task{}, s.fail(err)
	}

	s.mu.Lock()
	s.updateIssued++
	seq := s.updateIssued
	s.mu.Unlock()

	stored, err := s.repo.UpdateTask(ctx, s.ownerID, taskID, fields)
	if ctx.Err() != nil {
		return domain.Task{}, ctx.Err()
	}
	if err != nil {
		return domain.Task{}, s.fail(err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.Task{}, domain.Errorf(domain.KindUnauthenticated, "session closed")
	}
	merged, held := s.mergeLocked(taskID, fields, seq)
	s.mu.Unlock()

	s.notify()
	if held {
		if merged.IconRef != nil {
			icon := *merged.IconRef
			merged.IconRef = &icon
		}
		return merged, nil
	}
	if stored.ID == "" {
		stored.ID = taskID
	}
	if stored.OwnerID == "" {
		stored.OwnerID = s.ownerID
	}
	return domain.NormalizeTask(stored), nil
}

// DeleteTask removes the task's details, then the task. The local copy is
// dropped only when both succeed.
func (s *TaskStore) DeleteTask(ctx context.Context, taskID string) error {
	if err := s.checkSession(s.ownerID); err != nil {
		return s.fail(err)
	}
	if strings.TrimSpace(taskID) == "" {
		return s.fail(domain.Errorf(domain.KindValidation, "task id is required"))
	}

	if err := s.repo.DeleteTaskDetails(ctx, s.ownerID, taskID); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return s.fail(err)
	}
	err := s.repo.DeleteTask(ctx, s.ownerID, taskID)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	for i := range s.tasks {
		if s.tasks[i].ID == taskID {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			break
		}
	}
	delete(s.details, taskID)
	delete(s.fieldSeq, taskID)
	s.mu.Unlock()

	log.Printf("[TaskStore] deleted task %s for user %s", taskID, s.ownerID)
	s.notify()
	return nil
}

// ToggleFavorite flips the favorite flag. Unknown ids are ignored without
// contacting the repository.
func (s *TaskStore) ToggleFavorite(ctx context.Context, taskID string) error {
	task, ok := s.Task(taskID)
	if !ok {
		return nil
	}
	fav := !task.IsFavorite
	_, err := s.UpdateTask(ctx, taskID, domain.Fields{IsFavorite: &fav})
	return err
}

// MarkCompleted moves the task to completed
func (s *TaskStore) MarkCompleted(ctx context.Context, taskID string) error {
	status := domain.TaskStatusCompleted
	_, err := s.UpdateTask(ctx, taskID, domain.Fields{Status: &status})
	return err
}

// Skip moves the task to skipped
func (s *TaskStore) Skip(ctx context.Context, taskID string) error {
	status := domain.TaskStatusSkipped
	_, err := s.UpdateTask(ctx, taskID, domain.Fields{Status: &status})
	return err
}

// FetchSuggestions returns the templates offered to userID. It does not
// touch the task list.
func (s *TaskStore) FetchSuggestions(ctx context.Context, userID string) ([]domain.Suggestion, error) {
	if err := s.checkSession(userID); err != nil {
		return nil, s.fail(err)
	}
	suggestions, err := s.repo.FetchSuggestions(ctx, userID)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, s.fail(err)
	}
	kept := suggestions[:0]
	for _, sg := range suggestions {
		category, ok := domain.ParseCategory(string(sg.Category))
		if !ok {
			log.Printf("[TaskStore] dropping suggestion %s with unknown category %q", sg.ID, sg.Category)
			continue
		}
		sg.Category = category
		if sg.Points <= 0 {
			sg.Points = domain.DefaultPoints
		}
		kept = append(kept, sg)
	}
	return kept, nil
}

// Task looks a task up by id in the local state
func (s *TaskStore) Task(taskID string) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == taskID {
			return t, true
		}
	}
	return domain.Task{}, false
}

// Tab returns the tasks of one tab in stable order
func (s *TaskStore) Tab(tab Tab) []domain.Task {
	return FilterByTab(s.Snapshot().Tasks, tab)
}

// Sections splits the active tab into daily and personal
func (s *TaskStore) Sections() Sections {
	return SectionByCategory(FilterByTab(s.Snapshot().Tasks, TabActive))
}

// Quick returns the dashboard slice for a category
func (s *TaskStore) Quick(category domain.Category, limit int) []domain.Task {
	return QuickView(s.Snapshot().Tasks, category, limit)
}

// Summary counts the current tasks
func (s *TaskStore) Summary() Summary {
	return Summarize(s.Snapshot().Tasks)
}

func (s *TaskStore) checkSession(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.Errorf(domain.KindUnauthenticated, "no user session")
	}
	if userID != s.ownerID {
		return domain.Errorf(domain.KindUnauthenticated, "session belongs to another user")
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return domain.Errorf(domain.KindUnauthenticated, "session closed")
	}
	return nil
}

func (s *TaskStore) validateUpdate(taskID string, fields domain.Fields) error {
	if strings.TrimSpace(taskID) == "" {
		return domain.Errorf(domain.KindValidation, "task id is required")
	}
	if fields.IsEmpty() {
		return domain.Errorf(domain.KindValidation, "no fields to update")
	}
	if fields.Title != nil && strings.TrimSpace(*fields.Title) == "" {
		return domain.Errorf(domain.KindValidation, "title must not be empty")
	}
	if fields.Category != nil {
		if _, ok := domain.ParseCategory(string(*fields.Category)); !ok {
			return domain.Errorf(domain.KindValidation, "category %q must be daily or personal", *fields.Category)
		}
	}
	if fields.Points != nil && *fields.Points < 0 {
		return domain.Errorf(domain.KindValidation, "points must not be negative")
	}
	if fields.Status == nil {
		return nil
	}
	if !domain.ValidStatus(*fields.Status) {
		return domain.Errorf(domain.KindValidation, "unknown status %q", *fields.Status)
	}
	current, ok := s.Task(taskID)
	if !ok {
		// nothing reopens a task; other transitions of tasks we do not
		// hold are checked by the repository
		if *fields.Status == domain.TaskStatusActive {
			return domain.Errorf(domain.KindValidation, "task %s cannot move back to active", taskID)
		}
		return nil
	}
	if current.Status == *fields.Status {
		return nil
	}
	if current.IsTerminal() || *fields.Status == domain.TaskStatusActive {
		return domain.Errorf(domain.KindValidation, "task %s cannot move from %s to %s", taskID, current.Status, *fields.Status)
	}
	return nil
}

func (s *TaskStore) replaceLocked(tasks []domain.Task, details []domain.TaskDetail) {
	kept := make([]domain.Task, 0, len(tasks))
	ids := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		if t.OwnerID != s.ownerID {
			log.Printf("[TaskStore] dropping task %s owned by %q from user %s", t.ID, t.OwnerID, s.ownerID)
			continue
		}
		if _, ok := domain.ParseCategory(string(t.Category)); !ok {
			log.Printf("[TaskStore] dropping task %s with unknown category %q for user %s", t.ID, t.Category, s.ownerID)
			continue
		}
		kept = append(kept, domain.NormalizeTask(t))
		ids[t.ID] = struct{}{}
	}
	byTask := make(map[string]domain.TaskDetail, len(details))
	for _, d := range details {
		if _, ok := ids[d.TaskID]; !ok {
			continue
		}
		d.Recurrence = domain.NormalizeRecurrence(string(d.Recurrence))
		byTask[d.TaskID] = d
	}
	s.tasks = kept
	s.details = byTask
	s.fieldSeq = make(map[string]map[string]uint64)
}

func (s *TaskStore) mergeLocked(taskID string, fields domain.Fields, seq uint64) (domain.Task, bool) {
	idx := -1
	for i := range s.tasks {
		if s.tasks[i].ID == taskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Task{}, false
	}

	applied := s.fieldSeq[taskID]
	if applied == nil {
		applied = make(map[string]uint64)
		s.fieldSeq[taskID] = applied
	}
	// an older confirmation never overwrites a field set by a newer one
	take := func(name string) bool {
		if seq < applied[name] {
			return false
		}
		applied[name] = seq
		return true
	}

	var fresh domain.Fields
	if fields.Title != nil && take("title") {
		fresh.Title = fields.Title
	}
	if fields.Category != nil && take("category") {
		fresh.Category = fields.Category
	}
	if fields.IconRef != nil && take("icon") {
		fresh.IconRef = fields.IconRef
	}
	if fields.IsFavorite != nil && take("favorite") {
		fresh.IsFavorite = fields.IsFavorite
	}
	if fields.Status != nil && take("status") {
		fresh.Status = fields.Status
	}
	if fields.Points != nil && take("points") {
		fresh.Points = fields.Points
	}
	if fields.Detail != nil && take("detail") {
		d := *fields.Detail
		d.TaskID = taskID
		d.Recurrence = domain.NormalizeRecurrence(string(d.Recurrence))
		s.details[taskID] = d
	}

	fresh.Apply(&s.tasks[idx])
	s.tasks[idx] = domain.NormalizeTask(s.tasks[idx])
	return s.tasks[idx], true
}

func (s *TaskStore) fail(err error) error {
	e := domain.AsError(err)
	s.mu.Lock()
	s.lastError = e
	s.mu.Unlock()
	if e.Kind != domain.KindValidation {
		log.Printf("[TaskStore] user %s: %v", s.ownerID, e)
	}
	s.notify()
	return e
}

func (s *TaskStore) snapshotLocked() State {
	tasks := make([]domain.Task, len(s.tasks))
	for i, t := range s.tasks {
		if t.IconRef != nil {
			icon := *t.IconRef
			t.IconRef = &icon
		}
		tasks[i] = t
	}
	details := make(map[string]domain.TaskDetail, len(s.details))
	for id, d := range s.details {
		if d.Date != nil {
			date := *d.Date
			d.Date = &date
		}
		details[id] = d
	}
	var lastErr *domain.Error
	if s.lastError != nil {
		e := *s.lastError
		lastErr = &e
	}
	return State{
		Tasks:     tasks,
		Details:   details,
		Loading:   s.loading,
		LastError: lastErr,
	}
}

func (s *TaskStore) notify() {
	s.mu.Lock()
	fn := s.observer
	if fn == nil || s.closed {
		s.mu.Unlock()
		return
	}
	state := s.snapshotLocked()
	s.mu.Unlock()
	fn(state)
}
