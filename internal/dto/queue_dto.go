package dto

// PublishMemorySynthesisMessage is queued after a chat exchange completes so
// memory distillation never blocks the response stream.
type PublishMemorySynthesisMessage struct {
	UserEmail string        `json:"user_email"`
	ThreadId  string        `json:"thread_id"`
	Query     string        `json:"query"`
	Response  string        `json:"response"`
	History   []HistoryTurn `json:"history,omitempty"`
}

// PublishChatAssetMessage is queued when a user uploads a document mid-chat;
// the extracted text is indexed in the background.
type PublishChatAssetMessage struct {
	UserEmail string `json:"user_email"`
	ThreadId  string `json:"thread_id"`
	FileName  string `json:"file_name"`
	Content   string `json:"content"`
}
