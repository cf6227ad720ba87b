package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ChatMessage struct {
	Id       uuid.UUID `gorm:"type:uuid;primaryKey"`
	ThreadId uuid.UUID `gorm:"type:uuid;index"`
	Role     string    // user, assistant, system
	Content  string
	// Attachment is a base64 data URL or an external URL.
	Attachment     *string
	AttachmentType *string
	FileName       *string
	// Sources is the citation card list shown alongside assistant messages.
	Sources   datatypes.JSON
	CreatedAt time.Time
}
