package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Voldemort0731/fiwb-mvp/internal/entity"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/specification"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag"
)

const (
	maxCards           = 15
	maxSnippetsPerCard = 3
	snippetSeparator   = "\n--- [Next Section] ---\n"
)

// SourceCard is one deduplicated, display-ready citation.
type SourceCard struct {
	Title      string `json:"title"`
	Display    string `json:"display"`
	Link       string `json:"link,omitempty"`
	Snippet    string `json:"snippet"`
	SourceType string `json:"source_type"`
	MaterialID string `json:"material_id,omitempty"`
}

// MaterialFinder is used for the announcement deep-link fallback only.
type MaterialFinder interface {
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Material, error)
}

// Aggregator turns retrieved chunks into the citation list shown in the UI,
// independent of what is fed to the model.
type Aggregator struct {
	materials MaterialFinder
	logger    logger.ILogger
}

func NewAggregator(materials MaterialFinder, log logger.ILogger) *Aggregator {
	return &Aggregator{
		materials: materials,
		logger:    log,
	}
}

type category struct {
	prefix string
	chunks func(rag.Result) []rag.RetrievedChunk
}

// Iteration order is fixed; cards keep insertion order with no re-ranking,
// which makes the output deterministic for a given retrieval result.
var categories = []category{
	{"📚 ", func(r rag.Result) []rag.RetrievedChunk { return r.CourseContext }},
	{"📧 ", func(r rag.Result) []rag.RetrievedChunk { return r.WorkspaceKnowledge }},
	{"📎 ", func(r rag.Result) []rag.RetrievedChunk { return r.SessionAssets }},
	{"🧠 ", func(r rag.Result) []rag.RetrievedChunk { return r.Memory }},
}

type cardBuilder struct {
	card     SourceCard
	snippets []string
}

// Aggregate deduplicates chunks by "title [course]" identity. General chat
// never shows citations and returns an empty list.
func (a *Aggregator) Aggregate(ctx context.Context, result rag.Result, intent rag.Intent) []SourceCard {
	if intent == rag.IntentGeneralChat {
		return []SourceCard{}
	}

	var order []string
	builders := map[string]*cardBuilder{}

	for _, cat := range categories {
		for _, chunk := range cat.chunks(result) {
			meta := chunk.Meta

			courseName := meta.CourseName
			if courseName == "" {
				courseName = meta.CourseID
			}
			baseTitle := meta.Title
			if baseTitle == "" {
				baseTitle = meta.FileName
			}
			if baseTitle == "" {
				baseTitle = "Institutional Document"
			}
			fullTitle := baseTitle
			if courseName != "" {
				fullTitle = fmt.Sprintf("%s [%s]", baseTitle, courseName)
			}

			if b, ok := builders[fullTitle]; ok {
				if len(b.snippets) < maxSnippetsPerCard {
					b.snippets = append(b.snippets, chunk.Content)
				}
				continue
			}

			sourceType := meta.Type
			if sourceType == "" {
				sourceType = "document"
			}
			builders[fullTitle] = &cardBuilder{
				card: SourceCard{
					Title:      fullTitle,
					Display:    cat.prefix + fullTitle,
					Link:       meta.BestLink(),
					SourceType: sourceType,
					MaterialID: a.resolveMaterialID(ctx, chunk, result.CourseContext),
				},
				snippets: []string{chunk.Content},
			}
			order = append(order, fullTitle)
		}
	}

	cards := make([]SourceCard, 0, len(order))
	for _, key := range order {
		b := builders[key]
		var kept []string
		for _, s := range b.snippets {
			if s != "" {
				kept = append(kept, s)
			}
		}
		b.card.Snippet = strings.Join(kept, snippetSeparator)
		cards = append(cards, b.card)
		if len(cards) == maxCards {
			break
		}
	}
	return cards
}

// resolveMaterialID picks the id the UI should deep-link to. Announcements
// try to resolve a more specific attachment id; everything else uses its own
// source id. All lookups are best-effort.
func (a *Aggregator) resolveMaterialID(ctx context.Context, chunk rag.RetrievedChunk, siblings []rag.RetrievedChunk) string {
	meta := chunk.Meta
	ownID := meta.SourceID
	if ownID == "" {
		ownID = meta.DocumentID
	}
	if meta.Type != string(entity.MaterialTypeAnnouncement) {
		return ownID
	}
	if ownID == "" {
		return ""
	}

	// (1) a sibling chunk already retrieved for this announcement
	for _, s := range siblings {
		if s.Meta.ParentAnnouncementID == ownID && s.Meta.SourceID != "" {
			return s.Meta.SourceID
		}
	}

	// (2) a child attachment row in the database
	if child, err := a.materials.FindOne(ctx, specification.ByParentAnnouncementID{AnnouncementID: ownID}); err == nil && child != nil {
		return child.Id
	}

	// (3) the announcement's own stored attachment list
	if id := a.firstDriveAttachmentID(ctx, ownID); id != "" {
		return id
	}

	return ownID
}

func (a *Aggregator) firstDriveAttachmentID(ctx context.Context, announcementID string) string {
	row, err := a.materials.FindOne(ctx, specification.ByKey{ID: announcementID})
	if err != nil || row == nil || len(row.Attachments) == 0 {
		return ""
	}

	var attachments []struct {
		Type   string `json:"type"`
		FileID string `json:"file_id"`
	}
	if err := json.Unmarshal(row.Attachments, &attachments); err != nil {
		a.logger.Debug("sources", "announcement attachment parse failed", map[string]interface{}{
			"announcement_id": announcementID,
			"error":           err.Error(),
		})
		return ""
	}
	for _, att := range attachments {
		if att.Type == "drive" && att.FileID != "" {
			return att.FileID
		}
	}
	return ""
}
