package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plantpal-backend/internal/task/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type taskModel struct {
	ID         string  `gorm:"primaryKey"`
	OwnerID    string  `gorm:"index;not null"`
	Category   string  `gorm:"column:category_type;not null"`
	Title      string  `gorm:"not null"`
	IconRef    *string `gorm:"column:icon_ref"`
	IsFavorite bool    `gorm:"not null;default:false"`
	Status     string  `gorm:"not null;default:active"`
	Points     int     `gorm:"not null;default:5"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (taskModel) TableName() string { return "tasks" }

type taskDetailModel struct {
	TaskID     string `gorm:"primaryKey"`
	Date       *time.Time
	AllDay     bool   `gorm:"not null;default:false"`
	Recurrence string `gorm:"not null;default:none"`
	UpdatedAt  time.Time
}

func (taskDetailModel) TableName() string { return "task_details" }

type suggestionModel struct {
	ID       string `gorm:"primaryKey"`
	Title    string `gorm:"not null"`
	Category string `gorm:"column:category_type;not null"`
	IconRef  string `gorm:"column:icon_ref"`
	Points   int    `gorm:"not null;default:5"`
}

func (suggestionModel) TableName() string { return "suggestions" }

// gormTaskRepository implements TaskRepository on Postgres through GORM
type gormTaskRepository struct {
	db *gorm.DB
}

// NewGormTaskRepository migrates the task tables and seeds the suggestion
// table from seed when it is empty.
func NewGormTaskRepository(db *gorm.DB, seed []domain.Suggestion) (TaskRepository, error) {
	if err := db.AutoMigrate(&taskModel{}, &taskDetailModel{}, &suggestionModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate task tables: %w", err)
	}

	var count int64
	if err := db.Model(&suggestionModel{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to count suggestions: %w", err)
	}
	if count == 0 && len(seed) > 0 {
		rows := make([]suggestionModel, 0, len(seed))
		for _, s := range seed {
			rows = append(rows, suggestionModel{
				ID:       s.ID,
				Title:    s.Title,
				Category: string(s.Category),
				IconRef:  s.IconRef,
				Points:   s.Points,
			})
		}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to seed suggestions: %w", err)
		}
	}

	return &gormTaskRepository{db: db}, nil
}

func (r *gormTaskRepository) FetchTasksWithDetails(ctx context.Context, userID string) ([]domain.Task, []domain.TaskDetail, error) {
	var models []taskModel
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, nil, mapGormError(err, "fetch tasks")
	}
	if len(models) == 0 {
		return nil, nil, nil
	}

	ids := make([]string, 0, len(models))
	tasks := make([]domain.Task, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
		tasks = append(tasks, m.toDomain())
	}

	var detailModels []taskDetailModel
	if err := r.db.WithContext(ctx).Where("task_id IN ?", ids).Find(&detailModels).Error; err != nil {
		return nil, nil, mapGormError(err, "fetch task details")
	}
	details := make([]domain.TaskDetail, 0, len(detailModels))
	for _, d := range detailModels {
		details = append(details, d.toDomain())
	}
	return tasks, details, nil
}

func (r *gormTaskRepository) CreateTask(ctx context.Context, ownerID string, draft domain.Draft) (domain.Task, error) {
	task := newTaskFromDraft(ownerID, draft)
	task.ID = uuid.New().String()
	task.CreatedAt = time.Now()

	model := fromDomain(task)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		if draft.Detail == nil {
			return nil
		}
		detail := detailFromDomain(task.ID, *draft.Detail)
		return tx.Create(&detail).Error
	})
	if err != nil {
		return domain.Task{}, mapGormError(err, "create task")
	}
	return model.toDomain(), nil
}

func (r *gormTaskRepository) UpdateTask(ctx context.Context, ownerID, taskID string, fields domain.Fields) (domain.Task, error) {
	var model taskModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND owner_id = ?", taskID, ownerID).
			First(&model).Error; err != nil {
			return err
		}
		if err := checkTransition(domain.TaskStatus(model.Status), fields.Status); err != nil {
			return err
		}

		if updates := fieldUpdates(fields); len(updates) > 0 {
			updates["updated_at"] = time.Now()
			if err := tx.Model(&model).Updates(updates).Error; err != nil {
				return err
			}
		}

		if fields.Detail != nil {
			detail := detailFromDomain(taskID, *fields.Detail)
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "task_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"date", "all_day", "recurrence", "updated_at"}),
			}).Create(&detail).Error
		}
		return nil
	})
	if err != nil {
		return domain.Task{}, mapGormError(err, "update task "+taskID)
	}

	if err := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", taskID, ownerID).First(&model).Error; err != nil {
		return domain.Task{}, mapGormError(err, "reload task "+taskID)
	}
	return model.toDomain(), nil
}

func (r *gormTaskRepository) DeleteTaskDetails(ctx context.Context, ownerID, taskID string) error {
	owned := r.db.Model(&taskModel{}).Select("id").Where("id = ? AND owner_id = ?", taskID, ownerID)
	err := r.db.WithContext(ctx).Where("task_id IN (?)", owned).Delete(&taskDetailModel{}).Error
	return mapGormError(err, "delete task details "+taskID)
}

func (r *gormTaskRepository) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	res := r.db.WithContext(ctx).Delete(&taskModel{}, "id = ? AND owner_id = ?", taskID, ownerID)
	if res.Error != nil {
		return mapGormError(res.Error, "delete task "+taskID)
	}
	if res.RowsAffected == 0 {
		return domain.Errorf(domain.KindNotFound, "task %s not found", taskID)
	}
	return nil
}

func (r *gormTaskRepository) FetchSuggestions(ctx context.Context, userID string) ([]domain.Suggestion, error) {
	var models []suggestionModel
	if err := r.db.WithContext(ctx).Order("category_type ASC, id ASC").Find(&models).Error; err != nil {
		return nil, mapGormError(err, "fetch suggestions")
	}
	out := make([]domain.Suggestion, 0, len(models))
	for _, m := range models {
		out = append(out, domain.Suggestion{
			ID:       m.ID,
			Title:    m.Title,
			Category: domain.Category(m.Category),
			IconRef:  m.IconRef,
			Points:   m.Points,
		})
	}
	return out, nil
}

func fieldUpdates(f domain.Fields) map[string]interface{} {
	updates := map[string]interface{}{}
	if f.Title != nil {
		updates["title"] = *f.Title
	}
	if f.Category != nil {
		updates["category_type"] = string(domain.NormalizeCategory(string(*f.Category)))
	}
	if f.IconRef != nil {
		updates["icon_ref"] = *f.IconRef
	}
	if f.IsFavorite != nil {
		updates["is_favorite"] = *f.IsFavorite
	}
	if f.Status != nil {
		updates["status"] = string(*f.Status)
	}
	if f.Points != nil {
		updates["points"] = *f.Points
	}
	return updates
}

func fromDomain(t domain.Task) taskModel {
	return taskModel{
		ID:         t.ID,
		OwnerID:    t.OwnerID,
		Category:   string(t.Category),
		Title:      t.Title,
		IconRef:    t.IconRef,
		IsFavorite: t.IsFavorite,
		Status:     string(t.Status),
		Points:     t.Points,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.CreatedAt,
	}
}

func (m taskModel) toDomain() domain.Task {
	return domain.Task{
		ID:         m.ID,
		OwnerID:    m.OwnerID,
		Category:   domain.Category(m.Category),
		Title:      m.Title,
		IconRef:    m.IconRef,
		IsFavorite: m.IsFavorite,
		Status:     domain.TaskStatus(m.Status),
		Points:     m.Points,
		CreatedAt:  m.CreatedAt,
	}
}

func detailFromDomain(taskID string, d domain.TaskDetail) taskDetailModel {
	return taskDetailModel{
		TaskID:     taskID,
		Date:       d.Date,
		AllDay:     d.AllDay,
		Recurrence: string(domain.NormalizeRecurrence(string(d.Recurrence))),
		UpdatedAt:  time.Now(),
	}
}

func (m taskDetailModel) toDomain() domain.TaskDetail {
	return domain.TaskDetail{
		TaskID:     m.TaskID,
		Date:       m.Date,
		AllDay:     m.AllDay,
		Recurrence: domain.Recurrence(m.Recurrence),
	}
}

func mapGormError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Wrap(domain.KindNotFound, err, op)
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	return domain.Wrap(domain.KindNetwork, err, op)
}
