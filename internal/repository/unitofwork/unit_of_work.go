package unitofwork

import (
	"context"

	"github.com/Voldemort0731/fiwb-mvp/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() contract.UserRepository
	CourseRepository() contract.CourseRepository
	MaterialRepository() contract.MaterialRepository
	ChatThreadRepository() contract.ChatThreadRepository
	ChatMessageRepository() contract.ChatMessageRepository
	NotificationRepository() contract.NotificationRepository
}
