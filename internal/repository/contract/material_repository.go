package contract

import (
	"context"

	"github.com/Voldemort0731/fiwb-mvp/internal/entity"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/specification"
)

type MaterialRepository interface {
	Upsert(ctx context.Context, material *entity.Material) error
	Delete(ctx context.Context, id string) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Material, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Material, error)
	FindByIds(ctx context.Context, ids []string) ([]*entity.Material, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
