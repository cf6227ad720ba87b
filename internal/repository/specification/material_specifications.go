package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OwnedByOrShared scopes materials to one user, keeping course-level rows
// that have no owner yet.
type OwnedByOrShared struct {
	UserID uuid.UUID
}

func (s OwnedByOrShared) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ? OR user_id IS NULL", s.UserID)
}

// ByCourseID filters materials belonging to one course
type ByCourseID struct {
	CourseID string
}

func (s ByCourseID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("course_id = ?", s.CourseID)
}

// ByParentAnnouncementID finds attachment rows indexed under an announcement
type ByParentAnnouncementID struct {
	AnnouncementID string
}

func (s ByParentAnnouncementID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("parent_announcement_id = ?", s.AnnouncementID)
}

// IDContains matches ids containing a token (fuzzy id resolution)
type IDContains struct {
	Token string
}

func (s IDContains) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id LIKE ?", "%"+s.Token+"%")
}

// SourceLinkContains matches source links containing a token
type SourceLinkContains struct {
	Token string
}

func (s SourceLinkContains) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("source_link LIKE ?", "%"+s.Token+"%")
}

// TitleOrContentLike is the case-insensitive keyword match for material search
type TitleOrContentLike struct {
	Query string
}

func (s TitleOrContentLike) Apply(db *gorm.DB) *gorm.DB {
	pattern := "%" + s.Query + "%"
	return db.Where("title ILIKE ? OR content ILIKE ?", pattern, pattern)
}
