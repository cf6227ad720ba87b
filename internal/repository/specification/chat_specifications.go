package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByThreadID struct {
	ThreadID uuid.UUID
}

func (s ByThreadID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("thread_id = ?", s.ThreadID)
}

type ByMaterialID struct {
	MaterialID string
}

func (s ByMaterialID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("material_id = ?", s.MaterialID)
}
