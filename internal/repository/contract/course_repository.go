package contract

import (
	"context"

	"github.com/Voldemort0731/fiwb-mvp/internal/entity"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/specification"

	"github.com/google/uuid"
)

type CourseRepository interface {
	Upsert(ctx context.Context, course *entity.Course) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Course, error)
	FindAllByUser(ctx context.Context, userId uuid.UUID) ([]*entity.Course, error)
	UpsertMembership(ctx context.Context, userId uuid.UUID, courseId string) error
}
