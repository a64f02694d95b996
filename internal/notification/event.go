package notification

import (
	"encoding/json"
	"fmt"
	"time"

	"plantpal-backend/internal/task/domain"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTaskCreated   EventType = "task.created"
	EventTaskUpdated   EventType = "task.updated"
	EventTaskCompleted EventType = "task.completed"
	EventTaskSkipped   EventType = "task.skipped"
	EventTaskDeleted   EventType = "task.deleted"
)

// Event is a confirmed task lifecycle change
type Event struct {
	ID         string       `json:"id"`
	Type       EventType    `json:"type"`
	UserID     string       `json:"user_id"`
	TaskID     string       `json:"task_id"`
	Task       *domain.Task `json:"task,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// NewEvent stamps a new event. task may be nil for deletions.
func NewEvent(eventType EventType, userID, taskID string, task *domain.Task) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		UserID:     userID,
		TaskID:     taskID,
		Task:       task,
		OccurredAt: time.Now().UTC(),
	}
}

// EventForUpdate picks the event type for a confirmed update
func EventForUpdate(task domain.Task) EventType {
	switch task.Status {
	case domain.TaskStatusCompleted:
		return EventTaskCompleted
	case domain.TaskStatusSkipped:
		return EventTaskSkipped
	default:
		return EventTaskUpdated
	}
}

func (e Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", e.Type, err)
	}
	return data, nil
}

func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return e, nil
}
