package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type MaterialType string

const (
	MaterialTypeAssignment   MaterialType = "assignment"
	MaterialTypeMaterial     MaterialType = "material"
	MaterialTypeAnnouncement MaterialType = "announcement"
	// Announcement drive-file attachments indexed as standalone rows carry
	// the ann_att_ id prefix and point back at their parent announcement.
	MaterialTypeAnnouncementAttachment MaterialType = "announcement_attachment"
	// Files ingested from watched Drive folders live under the virtual
	// GOOGLE_DRIVE course.
	MaterialTypeDriveFile MaterialType = "drive_file"
)

type Material struct {
	Id       string     `gorm:"primaryKey"` // platform id, possibly prefixed
	UserId   *uuid.UUID `gorm:"type:uuid;index"`
	CourseId string     `gorm:"index"`
	Title    string
	Content  string       // description or extracted text content
	Type     MaterialType `gorm:"index"`
	DueDate  *string      // ISO date string as the platform reports it
	// Attachments is the platform's attachment list, stored verbatim.
	Attachments          datatypes.JSON
	SourceLink           *string
	ParentAnnouncementId *string `gorm:"index"`
	PlatformCreatedAt    *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
