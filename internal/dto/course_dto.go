package dto

import "github.com/Voldemort0731/fiwb-mvp/pkg/lms"

type CourseResponse struct {
	Id                    string  `json:"id"`
	Name                  string  `json:"name"`
	Professor             string  `json:"professor"`
	Platform              string  `json:"platform"`
	LastSynced            *string `json:"last_synced"`
	LatestUpdate          *string `json:"latest_update"`
	LatestAttachmentCount int     `json:"latest_attachment_count"`
}

type CourseDetailResponse struct {
	Id        string `json:"id"`
	Name      string `json:"name"`
	Professor string `json:"professor"`
	Platform  string `json:"platform"`
}

type MaterialResponse struct {
	Id          string                 `json:"id"`
	Title       string                 `json:"title"`
	Content     string                 `json:"content"`
	Type        string                 `json:"type"`
	DueDate     *string                `json:"due_date,omitempty"`
	CreatedAt   *string                `json:"created_at,omitempty"`
	SourceLink  *string                `json:"source_link,omitempty"`
	Attachments []lms.AttachmentRecord `json:"attachments"`
}

type SyncResponse struct {
	Status string `json:"status"`
}
