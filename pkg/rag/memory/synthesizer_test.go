package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/pkg/llm"
	"github.com/Voldemort0731/fiwb-mvp/pkg/memorystore"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag"
	"github.com/Voldemort0731/fiwb-mvp/pkg/usage"
)

type fakeProvider struct {
	response string
	err      error
}

func (f *fakeProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return f.response, f.err
}

func (f *fakeProvider) ChatStream(ctx context.Context, history []llm.Message, fn llm.StreamFunc, options ...llm.Option) (string, error) {
	return f.response, f.err
}

type storedDoc struct {
	content  string
	metadata map[string]interface{}
	title    string
}

type fakeStore struct {
	docs []storedDoc
	err  error
}

func (f *fakeStore) AddDocument(ctx context.Context, content string, metadata map[string]interface{}, title, description string) (*memorystore.AddAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.docs = append(f.docs, storedDoc{content: content, metadata: metadata, title: title})
	return &memorystore.AddAck{ID: "doc1", Status: "queued"}, nil
}

type fakeLedger struct{ entries int }

func (f *fakeLedger) LogUsage(ctx context.Context, userEmail string, tokens int, category usage.Category) {
	f.entries++
}

const synthesisJSON = `{
	"title": "Recursion deep dive",
	"summary": "Student worked through base cases",
	"learning_insights": {"understanding_level": "intermediate", "knowledge_gaps": ["tail recursion"], "strengths": ["base cases"]},
	"user_profile": {"learning_style": "visual"},
	"academic_context": {"topics": ["recursion"]},
	"metadata": {"interaction_type": "tutoring"}
}`

func newSynthesizer(p *fakeProvider, store *fakeStore) *Synthesizer {
	return NewSynthesizer(p, store, &fakeLedger{}, logger.NewNoopLogger())
}

func TestSynthesizeWritesMemoryAndProfile(t *testing.T) {
	store := &fakeStore{}
	s := newSynthesizer(&fakeProvider{response: synthesisJSON}, store)

	s.Synthesize(context.Background(), Input{
		UserEmail: "Jane.Doe@Uni.edu",
		Query:     "what is tail recursion?",
		Response:  "tail recursion reuses the stack frame",
		Extra:     map[string]interface{}{"thread_id": "t1"},
	})

	if len(store.docs) != 2 {
		t.Fatalf("got %d documents, want memory + profile", len(store.docs))
	}

	mem := store.docs[0]
	if mem.metadata["type"] != rag.TypeEnhancedMemory {
		t.Errorf("memory type tag = %v", mem.metadata["type"])
	}
	if mem.metadata["user_id"] != "jane.doe@uni.edu" {
		t.Errorf("memory user_id = %v, want normalized email", mem.metadata["user_id"])
	}
	if mem.metadata["thread_id"] != "t1" {
		t.Errorf("extra metadata not merged: %v", mem.metadata)
	}
	if !strings.Contains(mem.title, "Jane Doe") {
		t.Errorf("memory title = %q, want display name", mem.title)
	}
	if !strings.Contains(mem.content, "Recursion deep dive") {
		t.Errorf("memory content missing synthesis title: %q", mem.content)
	}

	profile := store.docs[1]
	if profile.metadata["type"] != rag.TypeUserProfile {
		t.Errorf("profile type tag = %v", profile.metadata["type"])
	}
}

func TestSynthesizeSkipsProfileWithoutInsights(t *testing.T) {
	store := &fakeStore{}
	s := newSynthesizer(&fakeProvider{response: `{"title":"Small talk","summary":"nothing new"}`}, store)

	s.Synthesize(context.Background(), Input{UserEmail: "a@b.edu", Query: "hi", Response: "hello"})

	if len(store.docs) != 1 {
		t.Fatalf("got %d documents, want memory only", len(store.docs))
	}
}

func TestSynthesizeDropsFailuresSilently(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		store    *fakeStore
	}{
		{name: "model error", provider: &fakeProvider{err: errors.New("down")}, store: &fakeStore{}},
		{name: "invalid json", provider: &fakeProvider{response: "not json at all"}, store: &fakeStore{}},
		{name: "store error", provider: &fakeProvider{response: synthesisJSON}, store: &fakeStore{err: errors.New("503")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSynthesizer(tt.provider, tt.store)
			// Must not panic and must not leave partial writes behind.
			s.Synthesize(context.Background(), Input{UserEmail: "a@b.edu", Query: "q", Response: "r"})
			if len(tt.store.docs) != 0 {
				t.Errorf("got %d documents, want 0", len(tt.store.docs))
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"jane.doe@uni.edu", "Jane Doe"},
		{"bob@x.com", "Bob"},
		{"plainlocal", "Plainlocal"},
	}
	for _, tt := range tests {
		if got := displayName(tt.email); got != tt.want {
			t.Errorf("displayName(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}
}

func TestClipBacksOffToRuneBoundary(t *testing.T) {
	// One ascii byte then two-byte runes, so a 300-byte cut lands on a
	// continuation byte.
	s := "x" + strings.Repeat("é", 200)

	got := clip(s, 300)
	if !utf8.ValidString(got) {
		t.Errorf("clip produced invalid UTF-8: %q", got)
	}
	if len(got) != 299 {
		t.Errorf("clip kept %d bytes, want 299", len(got))
	}
	if clip("short", 300) != "short" {
		t.Error("clip altered a string under the limit")
	}
}
