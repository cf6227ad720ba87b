package entity

import (
	"time"

	"github.com/google/uuid"
)

// Course ids come from the classroom platform, not from us.
type Course struct {
	Id         string `gorm:"primaryKey"`
	Name       string
	Professor  *string
	Platform   string `gorm:"default:'Google Classroom'"`
	LastSynced *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserCourse is the membership join row.
type UserCourse struct {
	UserId     uuid.UUID `gorm:"type:uuid;primaryKey"`
	CourseId   string    `gorm:"primaryKey"`
	LastSynced time.Time
}
