package entity

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	Id       uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email    string    `gorm:"uniqueIndex"`
	FullName string
	GoogleId *string `gorm:"uniqueIndex"`
	// FIXED: *string to support database NULLs for users created pre-OAuth
	AvatarURL *string

	AccessToken  *string
	RefreshToken *string
	TokenExpiry  *time.Time

	WatchedDriveFolders string `gorm:"default:'[]'"` // JSON list of folder IDs
	RegistrationId      *string
	LastSynced          *time.Time

	// Cost & Usage Tracking
	LlmTokensUsed       int     `gorm:"default:0"`
	SlmTokensUsed       int     `gorm:"default:0"`
	MemoryDocsIndexed   int     `gorm:"default:0"`
	MemoryRequestsCount int     `gorm:"default:0"`
	LmsRequestsCount    int     `gorm:"default:0"`
	EstimatedCostUsd    float64 `gorm:"default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
