package retrieval

import (
	"context"

	"github.com/Voldemort0731/fiwb-mvp/internal/constant"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/pkg/memorystore"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag"

	"golang.org/x/sync/errgroup"
)

// Per-partition result caps, matching the prompt budget downstream.
const (
	courseLimit    = 10
	focusedLimit   = 5
	memoryLimit    = 10
	workspaceLimit = 5
	sessionLimit   = 5
	profileLimit   = 3
)

// Searcher is the slice of the memory-store client the retriever needs.
type Searcher interface {
	Search(ctx context.Context, query string, filters *memorystore.Filter, limit int) (*memorystore.SearchResponse, error)
}

// Rewriter contextualizes the query before fan-out.
type Rewriter interface {
	Rewrite(ctx context.Context, userEmail, query string, history []rag.Turn) string
}

// UsageLedger records memory-store traffic.
type UsageLedger interface {
	LogMemoryRequest(ctx context.Context, userEmail string)
}

// Query is one retrieval request.
type Query struct {
	UserEmail     string
	Text          string
	Intent        rag.Intent
	History       []rag.Turn
	CourseScope   string
	MaterialScope string
}

// MultiSourceRetriever fans a rewritten query out across the logical
// partitions of the memory store and merges results into one uniform view.
type MultiSourceRetriever struct {
	store    Searcher
	rewriter Rewriter
	ledger   UsageLedger
	logger   logger.ILogger
}

func NewMultiSourceRetriever(store Searcher, rewriter Rewriter, ledger UsageLedger, log logger.ILogger) *MultiSourceRetriever {
	return &MultiSourceRetriever{
		store:    store,
		rewriter: rewriter,
		ledger:   ledger,
		logger:   log,
	}
}

// Retrieve rewrites the query (sequentially, since it is the shared search
// key), then runs every partition search concurrently. A failed partition
// yields an empty slice for that partition only. For general_chat every
// document partition is skipped outright; only the profile search runs.
func (r *MultiSourceRetriever) Retrieve(ctx context.Context, q Query) rag.Result {
	searchQuery := q.Text
	if len(q.History) > 0 {
		searchQuery = r.rewriter.Rewrite(ctx, q.UserEmail, q.Text, q.History)
	}

	r.ledger.LogMemoryRequest(ctx, q.UserEmail)

	skipDocuments := q.Intent == rag.IntentGeneralChat

	var (
		course    []rag.RetrievedChunk
		focused   []rag.RetrievedChunk
		memory    []rag.RetrievedChunk
		workspace []rag.RetrievedChunk
		session   []rag.RetrievedChunk
		profile   []rag.RetrievedChunk
	)

	g, gctx := errgroup.WithContext(ctx)

	if !skipDocuments {
		g.Go(func() error {
			course = r.searchPartition(gctx, "course_context", searchQuery, courseFilter(q.UserEmail, q.CourseScope), courseLimit)
			return nil
		})
		if q.MaterialScope != "" {
			g.Go(func() error {
				focused = r.searchPartition(gctx, "focused", searchQuery, focusedFilter(q.UserEmail, q.MaterialScope), focusedLimit)
				return nil
			})
		}
		g.Go(func() error {
			memory = r.searchPartition(gctx, "memory", searchQuery, memoryFilter(q.UserEmail), memoryLimit)
			return nil
		})
		g.Go(func() error {
			workspace = r.searchPartition(gctx, "workspace_knowledge", searchQuery, workspaceFilter(q.UserEmail), workspaceLimit)
			return nil
		})
		g.Go(func() error {
			session = r.searchPartition(gctx, "session_assets", searchQuery, sessionAssetFilter(q.UserEmail), sessionLimit)
			return nil
		})
	}

	// The profile search always runs so personalization survives casual
	// conversation, and it uses a fixed query rather than the user's text.
	g.Go(func() error {
		profile = r.searchPartition(gctx, "profile", constant.ProfileSearchQuery, profileFilter(q.UserEmail), profileLimit)
		return nil
	})

	g.Wait()

	// Focused hits are presentation-equivalent to course context; they only
	// arrived through a narrower filter. They go in front so a scoped
	// document outranks generic course matches.
	courseContext := append(focused, course...)

	return rag.Result{
		CourseContext:      courseContext,
		Memory:             memory,
		WorkspaceKnowledge: workspace,
		SessionAssets:      session,
		Profile:            profile,
		RewrittenQuery:     searchQuery,
	}
}

func (r *MultiSourceRetriever) searchPartition(ctx context.Context, partition, query string, filter *memorystore.Filter, limit int) []rag.RetrievedChunk {
	resp, err := r.store.Search(ctx, query, filter, limit)
	if err != nil {
		r.logger.Warn("retrieval", "partition search failed", map[string]interface{}{
			"partition": partition,
			"error":     err.Error(),
		})
		return []rag.RetrievedChunk{}
	}
	return rag.FromChunks(memorystore.Normalize(resp))
}
