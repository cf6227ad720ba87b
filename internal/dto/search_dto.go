package dto

import "github.com/Voldemort0731/fiwb-mvp/pkg/lms"

type SearchResultResponse struct {
	Id          string                 `json:"id"`
	Title       string                 `json:"title"`
	Type        string                 `json:"type"`
	Date        string                 `json:"date"`
	Description string                 `json:"description"`
	Source      string                 `json:"source"`
	CourseId    string                 `json:"course_id,omitempty"`
	SourceLink  *string                `json:"source_link,omitempty"`
	Attachments []lms.AttachmentRecord `json:"attachments,omitempty"`
}
