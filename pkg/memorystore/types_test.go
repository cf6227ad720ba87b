package memorystore

import (
	"encoding/json"
	"testing"
)

func TestFilterMarshalJSON(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   string
	}{
		{
			name:   "positive leaf",
			filter: Cond("user_id", "a@b.edu"),
			want:   `{"key":"user_id","value":"a@b.edu","negate":false}`,
		},
		{
			name:   "negated leaf",
			filter: Not("type", "enhanced_memory"),
			want:   `{"key":"type","value":"enhanced_memory","negate":true}`,
		},
		{
			name:   "and combinator",
			filter: All(Cond("user_id", "a@b.edu"), Cond("course_id", "c1")),
			want:   `{"AND":[{"key":"user_id","value":"a@b.edu","negate":false},{"key":"course_id","value":"c1","negate":false}]}`,
		},
		{
			name:   "or nested inside and",
			filter: All(Cond("user_id", "a@b.edu"), Any(Cond("source_id", "x"), Cond("source_id", "y"))),
			want:   `{"AND":[{"key":"user_id","value":"a@b.edu","negate":false},{"OR":[{"key":"source_id","value":"x","negate":false},{"key":"source_id","value":"y","negate":false}]}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.filter)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNormalizeFlatRecord(t *testing.T) {
	resp := &SearchResponse{Results: []SearchResult{
		{
			DocumentID: "doc1",
			Title:      "Lecture 3",
			Content:    "flat body",
			Metadata:   map[string]interface{}{"course_id": "c1"},
		},
	}}

	chunks := Normalize(resp)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	c := chunks[0]
	if c.Content != "flat body" {
		t.Errorf("content = %q", c.Content)
	}
	if c.Metadata["documentId"] != "doc1" {
		t.Errorf("documentId = %v", c.Metadata["documentId"])
	}
	if c.Metadata["title"] != "Lecture 3" {
		t.Errorf("title = %v", c.Metadata["title"])
	}
	if c.Metadata["course_id"] != "c1" {
		t.Errorf("course_id = %v", c.Metadata["course_id"])
	}
}

func TestNormalizeGroupedDocumentPrecedence(t *testing.T) {
	resp := &SearchResponse{Results: []SearchResult{
		{
			DocumentID: "doc2",
			Metadata: map[string]interface{}{
				"source_id": "doc-level",
				"title":     "Doc Title",
			},
			Chunks: []ResultChunk{
				{
					Content: "span one",
					Metadata: map[string]interface{}{
						"source_id": "chunk-level",
						"page":      "3",
					},
				},
				{Content: "span two"},
			},
		},
	}}

	chunks := Normalize(resp)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}

	// Document metadata wins for the authoritative keys, chunk metadata
	// survives everywhere else.
	if chunks[0].Metadata["source_id"] != "doc-level" {
		t.Errorf("source_id = %v, want doc-level", chunks[0].Metadata["source_id"])
	}
	if chunks[0].Metadata["page"] != "3" {
		t.Errorf("page = %v, want 3", chunks[0].Metadata["page"])
	}
	if chunks[1].Metadata["title"] != "Doc Title" {
		t.Errorf("title = %v", chunks[1].Metadata["title"])
	}
	if chunks[0].Metadata["documentId"] != "doc2" || chunks[1].Metadata["documentId"] != "doc2" {
		t.Error("documentId not injected into every chunk")
	}
}

func TestNormalizeNilResponse(t *testing.T) {
	chunks := Normalize(nil)
	if chunks == nil || len(chunks) != 0 {
		t.Errorf("got %v, want empty non-nil slice", chunks)
	}
}
