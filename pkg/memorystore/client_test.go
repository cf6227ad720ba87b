package memorystore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", logger.NewNoopLogger()), srv
}

func TestAddDocumentPayload(t *testing.T) {
	var captured map[string]interface{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/documents" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(AddAck{ID: "doc1", Status: "queued"})
	})

	ack, err := client.AddDocument(context.Background(), "body text", map[string]interface{}{
		"user_id": "a@b.edu",
		"empty":   "",
		"nilval":  nil,
	}, "Doc Title", "short description")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if ack == nil || ack.ID != "doc1" {
		t.Fatalf("ack = %+v", ack)
	}

	meta := captured["metadata"].(map[string]interface{})
	if meta["user_id"] != "a@b.edu" {
		t.Errorf("user_id = %v", meta["user_id"])
	}
	if _, ok := meta["empty"]; ok {
		t.Error("empty metadata values must be dropped")
	}
	if _, ok := meta["nilval"]; ok {
		t.Error("nil metadata values must be dropped")
	}
	if meta["type"] != "document" {
		t.Errorf("type tag = %v, want the default tag", meta["type"])
	}
	if captured["title"] != "Doc Title" {
		t.Errorf("title = %v", captured["title"])
	}
}

func TestAddDocumentBadRequestIsSwallowed(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "schema violation", http.StatusBadRequest)
	})

	ack, err := client.AddDocument(context.Background(), "x", nil, "", "")
	if err != nil || ack != nil {
		t.Errorf("got (%+v, %v), want a silent drop", ack, err)
	}
}

func TestAddDocumentRateLimitHonorsContext(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.AddDocument(ctx, "x", nil, "", "")
	if err == nil {
		t.Fatal("want context error while backing off")
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("hits = %d, want 1 before the deadline cut the backoff", hits)
	}
}

func TestAddDocumentWithoutKeyIsNoop(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", logger.NewNoopLogger())
	ack, err := client.AddDocument(context.Background(), "x", nil, "", "")
	if err != nil || ack != nil {
		t.Errorf("got (%+v, %v)", ack, err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Error("no request may leave the process without an api key")
	}
}

func TestSearch(t *testing.T) {
	var captured map[string]interface{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(SearchResponse{Results: []SearchResult{
			{Content: "hit", Metadata: map[string]interface{}{"source_id": "m1"}},
		}})
	})

	f := All(Cond("user_id", "a@b.edu"))
	resp, err := client.Search(context.Background(), "recursion", &f, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Content != "hit" {
		t.Errorf("results = %+v", resp.Results)
	}

	if captured["q"] != "recursion" {
		t.Errorf("q = %v", captured["q"])
	}
	if captured["limit"] != float64(10) {
		t.Errorf("limit = %v", captured["limit"])
	}
	if _, ok := captured["filters"].(map[string]interface{})["AND"]; !ok {
		t.Errorf("filters = %v, want the AND wire shape", captured["filters"])
	}
}

func TestSearchBlankQueryBecomesWildcard(t *testing.T) {
	var captured map[string]interface{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(SearchResponse{})
	})

	if _, err := client.Search(context.Background(), "   ", nil, 5); err != nil {
		t.Fatalf("search: %v", err)
	}
	if captured["q"] != "*" {
		t.Errorf("q = %v, want *", captured["q"])
	}
}

func TestSearchDegradesToEmptyOnServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	resp, err := client.Search(context.Background(), "q", nil, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if resp == nil || len(resp.Results) != 0 {
		t.Errorf("results = %+v, want empty", resp)
	}
}

func TestDeleteDocument(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/v3/documents/doc1" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	})
	if err := client.DeleteDocument(context.Background(), "doc1"); err != nil {
		t.Errorf("delete: %v", err)
	}
}

func TestDeleteDocumentErrorStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	if err := client.DeleteDocument(context.Background(), "missing"); err == nil {
		t.Error("want error for non-2xx status")
	}
}
