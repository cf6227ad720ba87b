package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/Voldemort0731/fiwb-mvp/pkg/rag/sources"
)

type ThreadResponse struct {
	Id        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ThreadMessageResponse struct {
	Role           string               `json:"role"`
	Content        string               `json:"content"`
	FileName       *string              `json:"file_name,omitempty"`
	AttachmentType *string              `json:"attachment_type,omitempty"`
	Attachment     *string              `json:"attachment,omitempty"`
	Sources        []sources.SourceCard `json:"sources,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

// ChatStreamRequest is parsed from the multipart form on the streaming
// endpoint. The file part, when present, is read separately.
type ChatStreamRequest struct {
	Message  string `form:"message" validate:"required"`
	ThreadId string `form:"thread_id"`
	// History is a JSON array of {role, content} turns kept client-side.
	History string `form:"history"`
	// MaterialId focuses retrieval on one document (notebook mode).
	MaterialId string `form:"material_id"`
}

type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
