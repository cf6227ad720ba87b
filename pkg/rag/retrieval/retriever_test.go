package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Voldemort0731/fiwb-mvp/internal/constant"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/pkg/memorystore"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag"
)

// fakeSearcher answers by keyed canned responses, where the key is the
// "type" leaf pinned by the partition filter ("" for the course partition).
type fakeSearcher struct {
	mu        sync.Mutex
	queries   []string
	byType    map[string]*memorystore.SearchResponse
	failTypes map[string]bool
}

func typeLeaf(f memorystore.Filter) string {
	if f.Key == "type" && !f.Negate {
		return f.Value
	}
	for _, c := range f.And {
		if v := typeLeaf(c); v != "" {
			return v
		}
	}
	for _, c := range f.Or {
		if v := typeLeaf(c); v != "" {
			return v
		}
	}
	return ""
}

func (f *fakeSearcher) Search(ctx context.Context, query string, filters *memorystore.Filter, limit int) (*memorystore.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)

	key := ""
	if filters != nil {
		key = typeLeaf(*filters)
	}
	if f.failTypes[key] {
		return nil, errors.New("partition unavailable")
	}
	if resp, ok := f.byType[key]; ok {
		return resp, nil
	}
	return &memorystore.SearchResponse{}, nil
}

type fakeRewriter struct {
	out   string
	calls int
}

func (f *fakeRewriter) Rewrite(ctx context.Context, userEmail, query string, history []rag.Turn) string {
	f.calls++
	if f.out != "" {
		return f.out
	}
	return query
}

type fakeLedger struct {
	mu             sync.Mutex
	memoryRequests int
}

func (f *fakeLedger) LogMemoryRequest(ctx context.Context, userEmail string) {
	f.mu.Lock()
	f.memoryRequests++
	f.mu.Unlock()
}

func flatResult(content, docType string) *memorystore.SearchResponse {
	return &memorystore.SearchResponse{Results: []memorystore.SearchResult{
		{Content: content, Metadata: map[string]interface{}{"type": docType}},
	}}
}

func TestRetrieveFansOutAllPartitions(t *testing.T) {
	store := &fakeSearcher{byType: map[string]*memorystore.SearchResponse{
		"":                         flatResult("lecture notes", ""),
		rag.TypeEnhancedMemory:     flatResult("remembered fact", rag.TypeEnhancedMemory),
		rag.TypeAssistantKnowledge: flatResult("forwarded email", rag.TypeAssistantKnowledge),
		rag.TypeChatAttachment:     flatResult("uploaded pdf text", rag.TypeChatAttachment),
		rag.TypeUserProfile:        flatResult("prefers worked examples", rag.TypeUserProfile),
	}}
	ledger := &fakeLedger{}
	r := NewMultiSourceRetriever(store, &fakeRewriter{}, ledger, logger.NewNoopLogger())

	result := r.Retrieve(context.Background(), Query{
		UserEmail: "a@b.edu",
		Text:      "what is recursion?",
		Intent:    rag.IntentAcademicQuestion,
	})

	if len(result.CourseContext) != 1 || result.CourseContext[0].Content != "lecture notes" {
		t.Errorf("course context = %+v", result.CourseContext)
	}
	if len(result.Memory) != 1 || len(result.WorkspaceKnowledge) != 1 || len(result.SessionAssets) != 1 {
		t.Errorf("partition counts: memory=%d workspace=%d session=%d",
			len(result.Memory), len(result.WorkspaceKnowledge), len(result.SessionAssets))
	}
	if len(result.Profile) != 1 {
		t.Errorf("profile = %+v", result.Profile)
	}
	if result.RewrittenQuery != "what is recursion?" {
		t.Errorf("rewritten query = %q", result.RewrittenQuery)
	}
	if ledger.memoryRequests != 1 {
		t.Errorf("ledger recorded %d memory requests, want 1", ledger.memoryRequests)
	}
}

func TestRetrieveGeneralChatSkipsDocumentPartitions(t *testing.T) {
	store := &fakeSearcher{byType: map[string]*memorystore.SearchResponse{
		rag.TypeUserProfile: flatResult("night owl, CS major", rag.TypeUserProfile),
	}}
	r := NewMultiSourceRetriever(store, &fakeRewriter{}, &fakeLedger{}, logger.NewNoopLogger())

	result := r.Retrieve(context.Background(), Query{
		UserEmail:     "a@b.edu",
		Text:          "good morning!",
		Intent:        rag.IntentGeneralChat,
		MaterialScope: "mat1",
	})

	if len(store.queries) != 1 {
		t.Fatalf("store hit %d times, want only the profile search", len(store.queries))
	}
	if store.queries[0] != constant.ProfileSearchQuery {
		t.Errorf("profile partition searched with %q, want the fixed profile query", store.queries[0])
	}
	if len(result.CourseContext)+len(result.Memory)+len(result.WorkspaceKnowledge)+len(result.SessionAssets) != 0 {
		t.Error("document partitions must stay empty for general chat")
	}
	if len(result.Profile) != 1 {
		t.Errorf("profile = %+v", result.Profile)
	}
}

func TestRetrieveRewritesOnlyWithHistory(t *testing.T) {
	rw := &fakeRewriter{out: "standalone query"}
	store := &fakeSearcher{}
	r := NewMultiSourceRetriever(store, rw, &fakeLedger{}, logger.NewNoopLogger())

	r.Retrieve(context.Background(), Query{UserEmail: "a@b.edu", Text: "and then?", Intent: rag.IntentAcademicQuestion})
	if rw.calls != 0 {
		t.Errorf("rewriter called without history")
	}

	result := r.Retrieve(context.Background(), Query{
		UserEmail: "a@b.edu",
		Text:      "and then?",
		Intent:    rag.IntentAcademicQuestion,
		History:   []rag.Turn{{Role: "user", Content: "explain quicksort"}},
	})
	if rw.calls != 1 {
		t.Errorf("rewriter calls = %d, want 1", rw.calls)
	}
	if result.RewrittenQuery != "standalone query" {
		t.Errorf("rewritten query = %q", result.RewrittenQuery)
	}
}

func TestRetrievePartitionFailureIsIsolated(t *testing.T) {
	store := &fakeSearcher{
		byType: map[string]*memorystore.SearchResponse{
			"":                     flatResult("lecture notes", ""),
			rag.TypeEnhancedMemory: flatResult("remembered fact", rag.TypeEnhancedMemory),
		},
		failTypes: map[string]bool{rag.TypeAssistantKnowledge: true},
	}
	r := NewMultiSourceRetriever(store, &fakeRewriter{}, &fakeLedger{}, logger.NewNoopLogger())

	result := r.Retrieve(context.Background(), Query{
		UserEmail: "a@b.edu",
		Text:      "midterm topics",
		Intent:    rag.IntentAcademicQuestion,
	})

	if result.WorkspaceKnowledge == nil || len(result.WorkspaceKnowledge) != 0 {
		t.Errorf("failed partition = %+v, want empty non-nil slice", result.WorkspaceKnowledge)
	}
	if len(result.CourseContext) != 1 || len(result.Memory) != 1 {
		t.Error("healthy partitions must be unaffected by a failed sibling")
	}
}

func TestRetrieveFocusedHitsLeadCourseContext(t *testing.T) {
	// The focused partition has no type leaf of its own; distinguish it from
	// the course partition by the source_id branch in its filter.
	store := &keyedSearcher{}
	r := NewMultiSourceRetriever(store, &fakeRewriter{}, &fakeLedger{}, logger.NewNoopLogger())

	result := r.Retrieve(context.Background(), Query{
		UserEmail:     "a@b.edu",
		Text:          "summarize this",
		Intent:        rag.IntentNotebookAnalysis,
		MaterialScope: "cw_42",
	})

	if len(result.CourseContext) != 2 {
		t.Fatalf("course context = %+v", result.CourseContext)
	}
	if result.CourseContext[0].Content != "focused hit" {
		t.Errorf("scoped material must outrank generic course matches, got %q first", result.CourseContext[0].Content)
	}
	if result.CourseContext[1].Content != "generic course hit" {
		t.Errorf("second entry = %q", result.CourseContext[1].Content)
	}
}

type keyedSearcher struct{}

func (keyedSearcher) Search(ctx context.Context, query string, filters *memorystore.Filter, limit int) (*memorystore.SearchResponse, error) {
	if filters != nil && hasLeaf(*filters, "source_id", "cw_42", false) {
		return flatResult("focused hit", ""), nil
	}
	if filters != nil && hasLeaf(*filters, "type", rag.TypeEnhancedMemory, true) {
		return flatResult("generic course hit", ""), nil
	}
	return &memorystore.SearchResponse{}, nil
}
