package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"plantpal-backend/internal/task/domain"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	tasksCollection       = "tasks"
	detailsCollection     = "taskDetails"
	suggestionsCollection = "suggestions"
)

type taskDocument struct {
	OwnerID    string    `firestore:"ownerId"`
	Category   string    `firestore:"categoryType"`
	Title      string    `firestore:"title"`
	IconRef    *string   `firestore:"iconRef"`
	IsFavorite bool      `firestore:"isFavorite"`
	Status     string    `firestore:"status"`
	Points     int       `firestore:"points"`
	CreatedAt  time.Time `firestore:"createdAt,serverTimestamp"`
}

type detailDocument struct {
	TaskID     string     `firestore:"taskId"`
	OwnerID    string     `firestore:"ownerId"`
	Date       *time.Time `firestore:"date"`
	AllDay     bool       `firestore:"allDay"`
	Recurrence string     `firestore:"recurrenceType"`
}

type suggestionDocument struct {
	Title    string `firestore:"title"`
	Category string `firestore:"categoryType"`
	IconRef  string `firestore:"iconRef"`
	Points   int    `firestore:"points"`
}

// firestoreRepository implements TaskRepository on Cloud Firestore
type firestoreRepository struct {
	client   *firestore.Client
	fallback []domain.Suggestion
}

// NewFirestoreRepository creates a Firestore-backed TaskRepository. fallback is
// served when the suggestions collection is empty.
func NewFirestoreRepository(client *firestore.Client, fallback []domain.Suggestion) TaskRepository {
	return &firestoreRepository{client: client, fallback: fallback}
}

func (r *firestoreRepository) FetchTasksWithDetails(ctx context.Context, userID string) ([]domain.Task, []domain.TaskDetail, error) {
	snaps, err := r.client.Collection(tasksCollection).Where("ownerId", "==", userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, nil, mapFirestoreError(err, "fetch tasks")
	}
	tasks := make([]domain.Task, 0, len(snaps))
	for _, snap := range snaps {
		var doc taskDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, nil, domain.Wrap(domain.KindNetwork, err, "decode task "+snap.Ref.ID)
		}
		tasks = append(tasks, doc.toDomain(snap.Ref.ID))
	}
	// insertion order; ordering in the query would need a composite index
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})

	detailSnaps, err := r.client.Collection(detailsCollection).Where("ownerId", "==", userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, nil, mapFirestoreError(err, "fetch task details")
	}
	details := make([]domain.TaskDetail, 0, len(detailSnaps))
	for _, snap := range detailSnaps {
		var doc detailDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, nil, domain.Wrap(domain.KindNetwork, err, "decode task detail "+snap.Ref.ID)
		}
		details = append(details, doc.toDomain())
	}
	return tasks, details, nil
}

func (r *firestoreRepository) CreateTask(ctx context.Context, ownerID string, draft domain.Draft) (domain.Task, error) {
	task := newTaskFromDraft(ownerID, draft)
	ref := r.client.Collection(tasksCollection).NewDoc()

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(ref, toTaskDocument(task)); err != nil {
			return err
		}
		if draft.Detail == nil {
			return nil
		}
		return tx.Create(r.client.Collection(detailsCollection).Doc(ref.ID), toDetailDocument(ref.ID, ownerID, *draft.Detail))
	})
	if err != nil {
		return domain.Task{}, mapFirestoreError(err, "create task")
	}

	// read back for the server-assigned createdAt
	return r.get(ctx, ref)
}

func (r *firestoreRepository) UpdateTask(ctx context.Context, ownerID, taskID string, fields domain.Fields) (domain.Task, error) {
	ref := r.client.Collection(tasksCollection).Doc(taskID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := r.owned(tx, ref, ownerID)
		if err != nil {
			return err
		}
		if err := checkTransition(domain.TaskStatus(doc.Status), fields.Status); err != nil {
			return err
		}

		if updates := firestoreUpdates(fields); len(updates) > 0 {
			if err := tx.Update(ref, updates); err != nil {
				return err
			}
		}
		if fields.Detail != nil {
			return tx.Set(r.client.Collection(detailsCollection).Doc(taskID), toDetailDocument(taskID, doc.OwnerID, *fields.Detail))
		}
		return nil
	})
	if err != nil {
		return domain.Task{}, mapFirestoreError(err, "update task "+taskID)
	}
	return r.get(ctx, ref)
}

func (r *firestoreRepository) DeleteTaskDetails(ctx context.Context, ownerID, taskID string) error {
	snaps, err := r.client.Collection(detailsCollection).
		Where("taskId", "==", taskID).
		Where("ownerId", "==", ownerID).
		Documents(ctx).GetAll()
	if err != nil {
		return mapFirestoreError(err, "find task details "+taskID)
	}
	for _, snap := range snaps {
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return mapFirestoreError(err, "delete task detail "+snap.Ref.ID)
		}
	}
	return nil
}

func (r *firestoreRepository) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	ref := r.client.Collection(tasksCollection).Doc(taskID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := r.owned(tx, ref, ownerID); err != nil {
			return err
		}
		return tx.Delete(ref)
	})
	return mapFirestoreError(err, "delete task "+taskID)
}

// owned reads the task inside tx; a task of another owner reads as missing
func (r *firestoreRepository) owned(tx *firestore.Transaction, ref *firestore.DocumentRef, ownerID string) (taskDocument, error) {
	var doc taskDocument
	snap, err := tx.Get(ref)
	if err != nil {
		return doc, err
	}
	if err := snap.DataTo(&doc); err != nil {
		return doc, err
	}
	if doc.OwnerID != ownerID {
		return doc, domain.Errorf(domain.KindNotFound, "task %s not found", ref.ID)
	}
	return doc, nil
}

func (r *firestoreRepository) FetchSuggestions(ctx context.Context, userID string) ([]domain.Suggestion, error) {
	snaps, err := r.client.Collection(suggestionsCollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, mapFirestoreError(err, "fetch suggestions")
	}
	if len(snaps) == 0 {
		out := make([]domain.Suggestion, len(r.fallback))
		copy(out, r.fallback)
		return out, nil
	}
	out := make([]domain.Suggestion, 0, len(snaps))
	for _, snap := range snaps {
		var doc suggestionDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, domain.Wrap(domain.KindNetwork, err, "decode suggestion "+snap.Ref.ID)
		}
		out = append(out, domain.Suggestion{
			ID:       snap.Ref.ID,
			Title:    doc.Title,
			Category: domain.Category(doc.Category),
			IconRef:  doc.IconRef,
			Points:   doc.Points,
		})
	}
	return out, nil
}

func (r *firestoreRepository) get(ctx context.Context, ref *firestore.DocumentRef) (domain.Task, error) {
	snap, err := ref.Get(ctx)
	if err != nil {
		return domain.Task{}, mapFirestoreError(err, "read task "+ref.ID)
	}
	var doc taskDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Task{}, domain.Wrap(domain.KindNetwork, err, "decode task "+ref.ID)
	}
	return doc.toDomain(ref.ID), nil
}

func firestoreUpdates(f domain.Fields) []firestore.Update {
	var updates []firestore.Update
	if f.Title != nil {
		updates = append(updates, firestore.Update{Path: "title", Value: *f.Title})
	}
	if f.Category != nil {
		updates = append(updates, firestore.Update{Path: "categoryType", Value: string(domain.NormalizeCategory(string(*f.Category)))})
	}
	if f.IconRef != nil {
		updates = append(updates, firestore.Update{Path: "iconRef", Value: *f.IconRef})
	}
	if f.IsFavorite != nil {
		updates = append(updates, firestore.Update{Path: "isFavorite", Value: *f.IsFavorite})
	}
	if f.Status != nil {
		updates = append(updates, firestore.Update{Path: "status", Value: string(*f.Status)})
	}
	if f.Points != nil {
		updates = append(updates, firestore.Update{Path: "points", Value: *f.Points})
	}
	return updates
}

func toTaskDocument(t domain.Task) taskDocument {
	return taskDocument{
		OwnerID:    t.OwnerID,
		Category:   string(t.Category),
		Title:      t.Title,
		IconRef:    t.IconRef,
		IsFavorite: t.IsFavorite,
		Status:     string(t.Status),
		Points:     t.Points,
	}
}

func (d taskDocument) toDomain(id string) domain.Task {
	return domain.Task{
		ID:         id,
		OwnerID:    d.OwnerID,
		Category:   domain.Category(d.Category),
		Title:      d.Title,
		IconRef:    d.IconRef,
		IsFavorite: d.IsFavorite,
		Status:     domain.TaskStatus(d.Status),
		Points:     d.Points,
		CreatedAt:  d.CreatedAt,
	}
}

func toDetailDocument(taskID, ownerID string, d domain.TaskDetail) detailDocument {
	return detailDocument{
		TaskID:     taskID,
		OwnerID:    ownerID,
		Date:       d.Date,
		AllDay:     d.AllDay,
		Recurrence: string(domain.NormalizeRecurrence(string(d.Recurrence))),
	}
}

func (d detailDocument) toDomain() domain.TaskDetail {
	return domain.TaskDetail{
		TaskID:     d.TaskID,
		Date:       d.Date,
		AllDay:     d.AllDay,
		Recurrence: domain.Recurrence(d.Recurrence),
	}
}

func mapFirestoreError(err error, op string) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	if status.Code(err) == codes.NotFound {
		return domain.Wrap(domain.KindNotFound, err, op)
	}
	return domain.Wrap(domain.KindNetwork, err, op)
}
