package dto

import (
	"time"

	"github.com/google/uuid"
)

type NotificationResponse struct {
	Id        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type NotificationListResponse struct {
	Items       []NotificationResponse `json:"items"`
	Total       int64                  `json:"total"`
	UnreadCount int64                  `json:"unread_count"`
}

// UrgentItemResponse is the dashboard "needs attention" feed.
type UrgentItemResponse struct {
	Id        string `json:"id"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	Subtitle  string `json:"subtitle"`
	Priority  string `json:"priority"`
	Timestamp string `json:"timestamp"`
	Link      string `json:"link"`
}
