package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Voldemort0731/fiwb-mvp/internal/dto"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/specification"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/unitofwork"
	"github.com/Voldemort0731/fiwb-mvp/pkg/lms"
	"github.com/Voldemort0731/fiwb-mvp/pkg/memorystore"
	"github.com/Voldemort0731/fiwb-mvp/pkg/usage"
)

const (
	localSearchLimit  = 50
	memorySearchLimit = 10
	searchResultCap   = 30
)

type ISearchService interface {
	// SearchMaterials runs a hybrid search: keyword match over the local rows
	// merged with a semantic search of the memory store, deduplicated by id.
	SearchMaterials(ctx context.Context, userId uuid.UUID, query string) ([]dto.SearchResultResponse, error)
}

type searchService struct {
	uowFactory   unitofwork.RepositoryFactory
	memoryStore  *memorystore.Client
	usageTracker *usage.Tracker
	logger       logger.ILogger
}

func NewSearchService(
	uowFactory unitofwork.RepositoryFactory,
	memoryStore *memorystore.Client,
	usageTracker *usage.Tracker,
	log logger.ILogger,
) ISearchService {
	return &searchService{
		uowFactory:   uowFactory,
		memoryStore:  memoryStore,
		usageTracker: usageTracker,
		logger:       log,
	}
}

func (s *searchService) SearchMaterials(ctx context.Context, userId uuid.UUID, query string) ([]dto.SearchResultResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return []dto.SearchResultResponse{}, nil
	}

	rows, err := uow.MaterialRepository().FindAll(ctx,
		specification.OwnedByOrShared{UserID: userId},
		specification.TitleOrContentLike{Query: query},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: localSearchLimit},
	)
	if err != nil {
		return nil, err
	}

	results := make([]dto.SearchResultResponse, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, m := range rows {
		results = append(results, dto.SearchResultResponse{
			Id:          m.Id,
			Title:       m.Title,
			Type:        string(m.Type),
			Date:        m.CreatedAt.UTC().Format(time.RFC3339),
			Description: truncateString(m.Content, 200),
			Source:      "Academic Engine",
			CourseId:    m.CourseId,
			SourceLink:  m.SourceLink,
			Attachments: decodeAttachments(m.Attachments),
		})
		seen[m.Id] = true
	}

	// The semantic leg degrades silently; keyword hits still come back.
	results = append(results, s.searchMemory(ctx, user.Email, query, seen)...)

	if len(results) > searchResultCap {
		results = results[:searchResultCap]
	}
	return results, nil
}

func (s *searchService) searchMemory(ctx context.Context, userEmail, query string, seen map[string]bool) []dto.SearchResultResponse {
	filter := memorystore.All(memorystore.Cond("user_id", userEmail))
	resp, err := s.memoryStore.Search(ctx, query, &filter, memorySearchLimit)
	if err != nil {
		s.logger.Warn("search", "memory search failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	s.usageTracker.LogMemoryRequest(ctx, userEmail)

	var extra []dto.SearchResultResponse
	for _, chunk := range memorystore.Normalize(resp) {
		meta := chunk.Metadata
		sourceID, _ := meta["source_id"].(string)
		if sourceID != "" && seen[sourceID] {
			continue
		}

		title, _ := meta["title"].(string)
		if title == "" {
			title = "Neural Insight"
		}
		itemType, _ := meta["type"].(string)
		if itemType == "" {
			itemType = "document"
		}
		date, _ := meta["created_at"].(string)
		if date == "" {
			date = "Digital Twin Insight"
		}
		courseID, _ := meta["course_id"].(string)

		id := sourceID
		if id == "" {
			id = fmt.Sprintf("sm_%s", uuid.NewSHA1(uuid.NameSpaceOID, []byte(title)))
		}

		item := dto.SearchResultResponse{
			Id:          id,
			Title:       "🧠 " + title,
			Type:        itemType,
			Date:        date,
			Description: truncateString(chunk.Content, 200),
			Source:      "Supermemory Memory",
			CourseId:    courseID,
			Attachments: []lms.AttachmentRecord{},
		}
		if link, ok := meta["source_link"].(string); ok && link != "" {
			item.SourceLink = &link
		}
		extra = append(extra, item)
		if sourceID != "" {
			seen[sourceID] = true
		}
	}
	return extra
}
