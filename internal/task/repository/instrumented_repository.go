package repository

import (
	"context"
	"time"

	"plantpal-backend/internal/task/domain"
	"plantpal-backend/pkg/metrics"
)

// instrumentedRepository records latency and outcome of every call
type instrumentedRepository struct {
	next    TaskRepository
	metrics *metrics.Metrics
}

// Instrument wraps next so that each call is observed in m
func Instrument(next TaskRepository, m *metrics.Metrics) TaskRepository {
	if m == nil {
		return next
	}
	return &instrumentedRepository{next: next, metrics: m}
}

func (r *instrumentedRepository) observe(op string, start time.Time, err error) {
	r.metrics.RepositoryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = string(domain.KindOf(err))
	}
	r.metrics.RepositoryCalls.WithLabelValues(op, outcome).Inc()
}

func (r *instrumentedRepository) FetchTasksWithDetails(ctx context.Context, userID string) (tasks []domain.Task, details []domain.TaskDetail, err error) {
	defer func(start time.Time) { r.observe("fetch_tasks", start, err) }(time.Now())
	return r.next.FetchTasksWithDetails(ctx, userID)
}

func (r *instrumentedRepository) CreateTask(ctx context.Context, ownerID string, draft domain.Draft) (task domain.Task, err error) {
	defer func(start time.Time) { r.observe("create_task", start, err) }(time.Now())
	return r.next.CreateTask(ctx, ownerID, draft)
}

func (r *instrumentedRepository) UpdateTask(ctx context.Context, ownerID, taskID string, fields domain.Fields) (task domain.Task, err error) {
	defer func(start time.Time) { r.observe("update_task", start, err) }(time.Now())
	return r.next.UpdateTask(ctx, ownerID, taskID, fields)
}

func (r *instrumentedRepository) DeleteTaskDetails(ctx context.Context, ownerID, taskID string) (err error) {
	defer func(start time.Time) { r.observe("delete_task_details", start, err) }(time.Now())
	return r.next.DeleteTaskDetails(ctx, ownerID, taskID)
}

func (r *instrumentedRepository) DeleteTask(ctx context.Context, ownerID, taskID string) (err error) {
	defer func(start time.Time) { r.observe("delete_task", start, err) }(time.Now())
	return r.next.DeleteTask(ctx, ownerID, taskID)
}

func (r *instrumentedRepository) FetchSuggestions(ctx context.Context, userID string) (suggestions []domain.Suggestion, err error) {
	defer func(start time.Time) { r.observe("fetch_suggestions", start, err) }(time.Now())
	return r.next.FetchSuggestions(ctx, userID)
}
