package contract

import (
	"context"

	"github.com/Voldemort0731/fiwb-mvp/internal/entity"

	"github.com/google/uuid"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	FindAllByUser(ctx context.Context, userId uuid.UUID, limit, offset int) ([]*entity.Notification, int64, error)
	UnreadCount(ctx context.Context, userId uuid.UUID) (int64, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userId uuid.UUID) error
}
