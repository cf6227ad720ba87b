package entity

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeSyncCompleted    NotificationType = "sync_completed"
	NotificationTypeDeadlineReminder NotificationType = "deadline_reminder"
)

type Notification struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId    uuid.UUID `gorm:"type:uuid;index"`
	Type      NotificationType
	Title     string
	Body      string
	IsRead    bool `gorm:"default:false"`
	CreatedAt time.Time
}
