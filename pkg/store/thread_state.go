package store

// ThreadState is the active chat-thread state kept in memory between turns.
// It is a cache over the relational rows, never the source of truth.
type ThreadState struct {
	ID         string `json:"id"` // ChatThreadID
	UserID     string `json:"user_id"`
	MaterialID string `json:"material_id"` // set for focused analysis threads

	// Last interaction snapshot
	LastQuery          string `json:"last_query"`
	LastRewrittenQuery string `json:"last_rewritten_query"`
	LastIntent         string `json:"last_intent"`

	// Citation cards from the most recent exchange, serialized for replay.
	LastSources []byte `json:"last_sources"`
}
