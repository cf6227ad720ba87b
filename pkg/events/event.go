package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "SYNC_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

const (
	TypeSyncCompleted    = "SYNC_COMPLETED"
	TypeDeadlineReminder = "DEADLINE_REMINDER"
	TypeNotification     = "NOTIFICATION_CREATED"
)

// NewSyncCompleted is emitted after a user's Classroom/Drive sync finishes.
func NewSyncCompleted(userID string, newMaterials int) Event {
	return BaseEvent{
		Type: TypeSyncCompleted,
		Data: map[string]interface{}{
			"user_id":       userID,
			"new_materials": newMaterials,
		},
		OccurredAt: time.Now(),
	}
}

// NewDeadlineReminder is emitted when an assignment due date falls inside the
// reminder window.
func NewDeadlineReminder(userID, materialID, title, dueDate string) Event {
	return BaseEvent{
		Type: TypeDeadlineReminder,
		Data: map[string]interface{}{
			"user_id":     userID,
			"material_id": materialID,
			"title":       title,
			"due_date":    dueDate,
		},
		OccurredAt: time.Now(),
	}
}

// NewNotification is emitted when a persisted notification should be pushed to
// connected websocket clients.
func NewNotification(userID, notificationID, title, body string) Event {
	return BaseEvent{
		Type: TypeNotification,
		Data: map[string]interface{}{
			"user_id":         userID,
			"notification_id": notificationID,
			"title":           title,
			"body":            body,
		},
		OccurredAt: time.Now(),
	}
}
