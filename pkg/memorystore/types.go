package memorystore

import (
	"encoding/json"
)

// Filter is one node of the predicate tree accepted by the search endpoint.
// A node is either a leaf condition (Key set) or a combinator (And/Or set).
type Filter struct {
	And []Filter
	Or  []Filter

	Key    string
	Value  string
	Negate bool
}

// Cond builds a positive leaf condition.
func Cond(key, value string) Filter {
	return Filter{Key: key, Value: value}
}

// Not builds a negated leaf condition.
func Not(key, value string) Filter {
	return Filter{Key: key, Value: value, Negate: true}
}

// All combines conditions with AND.
func All(conds ...Filter) Filter {
	return Filter{And: conds}
}

// Any combines conditions with OR.
func Any(conds ...Filter) Filter {
	return Filter{Or: conds}
}

func (f Filter) IsZero() bool {
	return f.Key == "" && len(f.And) == 0 && len(f.Or) == 0
}

// MarshalJSON renders leaves as {key, value, negate} and combinators as
// {"AND": [...]} / {"OR": [...]}, the wire shape the store expects.
func (f Filter) MarshalJSON() ([]byte, error) {
	if len(f.And) > 0 {
		return json.Marshal(map[string][]Filter{"AND": f.And})
	}
	if len(f.Or) > 0 {
		return json.Marshal(map[string][]Filter{"OR": f.Or})
	}
	return json.Marshal(struct {
		Key    string `json:"key"`
		Value  string `json:"value"`
		Negate bool   `json:"negate"`
	}{f.Key, f.Value, f.Negate})
}

// AddAck is the store's acknowledgement for a document write.
type AddAck struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ResultChunk is one retrieved span inside a grouped document result.
type ResultChunk struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// SearchResult is one entry of a search response. The store returns two
// shapes: grouped-by-document (Chunks populated, document metadata on the
// result) or a flat record (Content populated directly).
type SearchResult struct {
	DocumentID string                 `json:"documentId"`
	Title      string                 `json:"title"`
	Content    string                 `json:"content"`
	Metadata   map[string]interface{} `json:"metadata"`
	Chunks     []ResultChunk          `json:"chunks"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// Chunk is the uniform record both result shapes normalize into.
type Chunk struct {
	Content  string
	Metadata map[string]interface{}
}

// Document-level metadata wins over chunk-level metadata for these keys.
var authoritativeKeys = []string{"source_id", "title", "source_link", "course_id", "type"}

// Normalize flattens a search response into a uniform chunk list. Chunk
// metadata is the base; document metadata overrides the authoritative keys
// and the parent documentId is injected into every chunk.
func Normalize(resp *SearchResponse) []Chunk {
	if resp == nil {
		return []Chunk{}
	}

	chunks := make([]Chunk, 0, len(resp.Results))
	for _, doc := range resp.Results {
		if len(doc.Chunks) == 0 {
			// Flat record shape: the result itself is the chunk.
			meta := cloneMeta(doc.Metadata)
			if doc.DocumentID != "" {
				meta["documentId"] = doc.DocumentID
			}
			if doc.Title != "" {
				if _, ok := meta["title"]; !ok {
					meta["title"] = doc.Title
				}
			}
			chunks = append(chunks, Chunk{Content: doc.Content, Metadata: meta})
			continue
		}

		for _, c := range doc.Chunks {
			meta := cloneMeta(doc.Metadata)
			for k, v := range c.Metadata {
				meta[k] = v
			}
			for _, k := range authoritativeKeys {
				if v, ok := doc.Metadata[k]; ok && v != nil {
					meta[k] = v
				}
			}
			if doc.DocumentID != "" {
				meta["documentId"] = doc.DocumentID
			}
			chunks = append(chunks, Chunk{Content: c.Content, Metadata: meta})
		}
	}
	return chunks
}

func cloneMeta(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
