package implementation

import (
	"context"
	"errors"

	"github.com/Voldemort0731/fiwb-mvp/internal/entity"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/contract"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/specification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MaterialRepositoryImpl struct {
	db *gorm.DB
}

func NewMaterialRepository(db *gorm.DB) contract.MaterialRepository {
	return &MaterialRepositoryImpl{db: db}
}

func (r *MaterialRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *MaterialRepositoryImpl) Upsert(ctx context.Context, material *entity.Material) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "content", "type", "due_date", "attachments",
			"source_link", "parent_announcement_id", "updated_at",
		}),
	}).Create(material).Error
}

func (r *MaterialRepositoryImpl) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&entity.Material{}, "id = ?", id).Error
}

func (r *MaterialRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Material, error) {
	var material entity.Material
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&material).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &material, nil
}

func (r *MaterialRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Material, error) {
	var materials []*entity.Material
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&materials).Error; err != nil {
		return nil, err
	}
	return materials, nil
}

func (r *MaterialRepositoryImpl) FindByIds(ctx context.Context, ids []string) ([]*entity.Material, error) {
	if len(ids) == 0 {
		return []*entity.Material{}, nil
	}
	return r.FindAll(ctx, specification.ByKeys{IDs: ids})
}

func (r *MaterialRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&entity.Material{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
