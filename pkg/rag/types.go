package rag

import (
	"github.com/Voldemort0731/fiwb-mvp/pkg/memorystore"
)

// Intent is the classified purpose of a query.
type Intent string

const (
	IntentAcademicQuestion Intent = "academic_question"
	IntentDeadlineLookup   Intent = "deadline_lookup"
	IntentGeneralChat      Intent = "general_chat"
	// IntentNotebookAnalysis is not produced by the classifier; it is set by
	// the caller when the query is scoped to a specific material.
	IntentNotebookAnalysis Intent = "notebook_analysis"
)

// Document type tags stored in the memory store. Each partition filter pins
// exactly one of these (or negates one), which is the sole mechanism keeping
// partitions disjoint.
const (
	TypeEnhancedMemory     = "enhanced_memory"
	TypeAssistantKnowledge = "assistant_knowledge"
	TypeChatAttachment     = "chat_attachment"
	TypeUserProfile        = "user_profile"
)

// Turn is one bounded-history conversation turn.
type Turn struct {
	Role    string
	Content string
}

// ChunkMeta is the typed view of a retrieved chunk's metadata. The memory
// store itself is schema-less; conversion happens at the boundary so key
// typos cannot silently produce empty fields inside the pipeline.
type ChunkMeta struct {
	Title                string
	FileName             string
	SourceID             string
	DocumentID           string
	CourseID             string
	CourseName           string
	Professor            string
	Type                 string
	Source               string
	SourceLink           string
	URL                  string
	WebViewLink          string
	Link                 string
	Subject              string
	Category             string
	ParentAnnouncementID string
	Attachments          string

	// Raw keeps the full map for keys the typed record does not model.
	Raw map[string]interface{}
}

// RetrievedChunk is one retrieved span plus its metadata.
type RetrievedChunk struct {
	Content string
	Meta    ChunkMeta
}

// MetaFromMap converts boundary metadata into the typed record.
func MetaFromMap(m map[string]interface{}) ChunkMeta {
	return ChunkMeta{
		Title:                metaString(m, "title"),
		FileName:             metaString(m, "file_name"),
		SourceID:             metaString(m, "source_id"),
		DocumentID:           metaString(m, "documentId"),
		CourseID:             metaString(m, "course_id"),
		CourseName:           metaString(m, "course_name"),
		Professor:            metaString(m, "professor"),
		Type:                 metaString(m, "type"),
		Source:               metaString(m, "source"),
		SourceLink:           metaString(m, "source_link"),
		URL:                  metaString(m, "url"),
		WebViewLink:          metaString(m, "webViewLink"),
		Link:                 metaString(m, "link"),
		Subject:              metaString(m, "subject"),
		Category:             metaString(m, "category"),
		ParentAnnouncementID: metaString(m, "parent_announcement_id"),
		Attachments:          metaString(m, "attachments"),
		Raw:                  m,
	}
}

// FromChunks converts normalized store chunks into typed retrieved chunks.
func FromChunks(chunks []memorystore.Chunk) []RetrievedChunk {
	out := make([]RetrievedChunk, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, RetrievedChunk{
			Content: c.Content,
			Meta:    MetaFromMap(c.Metadata),
		})
	}
	return out
}

// BestLink returns the first non-empty display link, in the fixed precedence
// order used by the citation layer.
func (m ChunkMeta) BestLink() string {
	for _, l := range []string{m.SourceLink, m.URL, m.WebViewLink, m.Link} {
		if l != "" {
			return l
		}
	}
	return ""
}

func metaString(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Result groups retrieved chunks by logical partition. Focused-material
// results are already merged into CourseContext by the retriever.
type Result struct {
	CourseContext      []RetrievedChunk
	Memory             []RetrievedChunk
	WorkspaceKnowledge []RetrievedChunk
	SessionAssets      []RetrievedChunk
	Profile            []RetrievedChunk

	RewrittenQuery string
}
