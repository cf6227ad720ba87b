package entity

import (
	"time"

	"github.com/google/uuid"
)

type ChatThread struct {
	Id     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId uuid.UUID `gorm:"type:uuid;index"`
	Title  string
	// MaterialId links analysis threads to their focused document.
	MaterialId *string `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
