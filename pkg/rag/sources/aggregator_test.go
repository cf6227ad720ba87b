package sources

import (
	"context"
	"strings"
	"testing"

	"gorm.io/datatypes"

	"github.com/Voldemort0731/fiwb-mvp/internal/entity"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/specification"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag"
)

type fakeMaterials struct {
	byParent map[string]*entity.Material
	byKey    map[string]*entity.Material
}

func (f *fakeMaterials) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Material, error) {
	for _, s := range specs {
		switch sp := s.(type) {
		case specification.ByParentAnnouncementID:
			if m, ok := f.byParent[sp.AnnouncementID]; ok {
				return m, nil
			}
		case specification.ByKey:
			if m, ok := f.byKey[sp.ID]; ok {
				return m, nil
			}
		}
	}
	return nil, nil
}

func chunkWith(content, title, course, docType, sourceID string) rag.RetrievedChunk {
	return rag.RetrievedChunk{
		Content: content,
		Meta: rag.ChunkMeta{
			Title:      title,
			CourseName: course,
			Type:       docType,
			SourceID:   sourceID,
		},
	}
}

func newTestAggregator(materials MaterialFinder) *Aggregator {
	if materials == nil {
		materials = &fakeMaterials{}
	}
	return NewAggregator(materials, logger.NewNoopLogger())
}

func TestAggregateGeneralChatHasNoCitations(t *testing.T) {
	a := newTestAggregator(nil)
	result := rag.Result{CourseContext: []rag.RetrievedChunk{
		chunkWith("body", "Lecture 1", "CS101", "material", "m1"),
	}}

	cards := a.Aggregate(context.Background(), result, rag.IntentGeneralChat)
	if cards == nil || len(cards) != 0 {
		t.Errorf("got %v, want empty non-nil list", cards)
	}
}

func TestAggregateDedupByTitleAndCourse(t *testing.T) {
	a := newTestAggregator(nil)
	result := rag.Result{CourseContext: []rag.RetrievedChunk{
		chunkWith("chunk one", "Recursion Notes", "CS101", "material", "m1"),
		chunkWith("chunk two", "Recursion Notes", "CS101", "material", "m1"),
		chunkWith("chunk three", "Recursion Notes", "CS101", "material", "m1"),
		chunkWith("chunk four", "Recursion Notes", "CS101", "material", "m1"),
		chunkWith("other course", "Recursion Notes", "MATH202", "material", "m2"),
	}}

	cards := a.Aggregate(context.Background(), result, rag.IntentAcademicQuestion)
	if len(cards) != 2 {
		t.Fatalf("got %d cards, want 2", len(cards))
	}
	if cards[0].Title != "Recursion Notes [CS101]" {
		t.Errorf("title = %q", cards[0].Title)
	}
	// Only the first three snippets survive, joined by the section marker.
	if got := strings.Count(cards[0].Snippet, "--- [Next Section] ---"); got != 2 {
		t.Errorf("snippet has %d separators, want 2: %q", got, cards[0].Snippet)
	}
	if strings.Contains(cards[0].Snippet, "chunk four") {
		t.Error("fourth snippet must be dropped")
	}
	if cards[1].Title != "Recursion Notes [MATH202]" {
		t.Errorf("second card = %q", cards[1].Title)
	}
}

func TestAggregateIsIdempotentOnDuplicateInput(t *testing.T) {
	a := newTestAggregator(nil)
	dup := chunkWith("same", "Slides", "CS101", "material", "m1")
	once := rag.Result{CourseContext: []rag.RetrievedChunk{dup}}
	twice := rag.Result{CourseContext: []rag.RetrievedChunk{dup, dup}}

	c1 := a.Aggregate(context.Background(), once, rag.IntentAcademicQuestion)
	c2 := a.Aggregate(context.Background(), twice, rag.IntentAcademicQuestion)
	if len(c1) != 1 || len(c2) != 1 {
		t.Fatalf("card counts: %d and %d, want 1 and 1", len(c1), len(c2))
	}
	if c1[0].Title != c2[0].Title || c1[0].MaterialID != c2[0].MaterialID {
		t.Error("duplicate input must not change card identity")
	}
}

func TestAggregateCategoryOrderAndPrefixes(t *testing.T) {
	a := newTestAggregator(nil)
	result := rag.Result{
		Memory:             []rag.RetrievedChunk{chunkWith("m", "A Memory", "", rag.TypeEnhancedMemory, "x1")},
		SessionAssets:      []rag.RetrievedChunk{chunkWith("s", "upload.pdf", "", rag.TypeChatAttachment, "x2")},
		WorkspaceKnowledge: []rag.RetrievedChunk{chunkWith("w", "An Email", "", rag.TypeAssistantKnowledge, "x3")},
		CourseContext:      []rag.RetrievedChunk{chunkWith("c", "Lecture", "CS101", "material", "x4")},
	}

	cards := a.Aggregate(context.Background(), result, rag.IntentAcademicQuestion)
	if len(cards) != 4 {
		t.Fatalf("got %d cards", len(cards))
	}
	wantPrefixes := []string{"📚 ", "📧 ", "📎 ", "🧠 "}
	for i, p := range wantPrefixes {
		if !strings.HasPrefix(cards[i].Display, p) {
			t.Errorf("card %d display = %q, want prefix %q", i, cards[i].Display, p)
		}
	}
}

func TestAggregateFallbackTitles(t *testing.T) {
	a := newTestAggregator(nil)

	tests := []struct {
		name  string
		meta  rag.ChunkMeta
		title string
	}{
		{name: "file name fallback", meta: rag.ChunkMeta{FileName: "notes.pdf"}, title: "notes.pdf"},
		{name: "generic fallback", meta: rag.ChunkMeta{}, title: "Institutional Document"},
		{name: "course id as course name", meta: rag.ChunkMeta{Title: "T", CourseID: "c9"}, title: "T [c9]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := rag.Result{CourseContext: []rag.RetrievedChunk{{Content: "x", Meta: tt.meta}}}
			cards := a.Aggregate(context.Background(), result, rag.IntentAcademicQuestion)
			if len(cards) != 1 || cards[0].Title != tt.title {
				t.Errorf("got %+v, want title %q", cards, tt.title)
			}
		})
	}
}

func TestAggregateCapsAtFifteenCards(t *testing.T) {
	a := newTestAggregator(nil)
	var chunks []rag.RetrievedChunk
	for i := 0; i < 25; i++ {
		chunks = append(chunks, chunkWith("c", "Doc "+string(rune('A'+i)), "CS101", "material", "m"))
	}
	result := rag.Result{CourseContext: chunks}

	cards := a.Aggregate(context.Background(), result, rag.IntentAcademicQuestion)
	if len(cards) != 15 {
		t.Fatalf("got %d cards, want 15", len(cards))
	}
	if cards[0].Title != "Doc A [CS101]" || cards[14].Title != "Doc O [CS101]" {
		t.Errorf("cards not in insertion order: first=%q last=%q", cards[0].Title, cards[14].Title)
	}
}

func TestResolveMaterialIDAnnouncementCascade(t *testing.T) {
	annChunk := func(id string) rag.RetrievedChunk {
		return rag.RetrievedChunk{Content: "ann body", Meta: rag.ChunkMeta{
			Title:    "Announcement",
			Type:     string(entity.MaterialTypeAnnouncement),
			SourceID: id,
		}}
	}

	t.Run("sibling chunk wins", func(t *testing.T) {
		a := newTestAggregator(&fakeMaterials{})
		sibling := rag.RetrievedChunk{Meta: rag.ChunkMeta{
			SourceID:             "ann_att_file1",
			ParentAnnouncementID: "ann_1",
		}}
		result := rag.Result{CourseContext: []rag.RetrievedChunk{annChunk("ann_1"), sibling}}

		cards := a.Aggregate(context.Background(), result, rag.IntentAcademicQuestion)
		if cards[0].MaterialID != "ann_att_file1" {
			t.Errorf("material id = %q, want sibling attachment", cards[0].MaterialID)
		}
	})

	t.Run("database child row is second", func(t *testing.T) {
		a := newTestAggregator(&fakeMaterials{
			byParent: map[string]*entity.Material{"ann_1": {Id: "ann_att_db_child"}},
		})
		result := rag.Result{CourseContext: []rag.RetrievedChunk{annChunk("ann_1")}}

		cards := a.Aggregate(context.Background(), result, rag.IntentAcademicQuestion)
		if cards[0].MaterialID != "ann_att_db_child" {
			t.Errorf("material id = %q, want database child", cards[0].MaterialID)
		}
	})

	t.Run("stored drive attachment is third", func(t *testing.T) {
		a := newTestAggregator(&fakeMaterials{
			byKey: map[string]*entity.Material{"ann_1": {
				Id:          "ann_1",
				Attachments: datatypes.JSON(`[{"type":"link","file_id":""},{"type":"drive","file_id":"drive9"}]`),
			}},
		})
		result := rag.Result{CourseContext: []rag.RetrievedChunk{annChunk("ann_1")}}

		cards := a.Aggregate(context.Background(), result, rag.IntentAcademicQuestion)
		if cards[0].MaterialID != "drive9" {
			t.Errorf("material id = %q, want first drive attachment", cards[0].MaterialID)
		}
	})

	t.Run("own id is the last resort", func(t *testing.T) {
		a := newTestAggregator(&fakeMaterials{})
		result := rag.Result{CourseContext: []rag.RetrievedChunk{annChunk("ann_1")}}

		cards := a.Aggregate(context.Background(), result, rag.IntentAcademicQuestion)
		if cards[0].MaterialID != "ann_1" {
			t.Errorf("material id = %q, want announcement's own id", cards[0].MaterialID)
		}
	})

	t.Run("non-announcement keeps its own id", func(t *testing.T) {
		a := newTestAggregator(&fakeMaterials{
			byParent: map[string]*entity.Material{"m1": {Id: "should_not_be_used"}},
		})
		result := rag.Result{CourseContext: []rag.RetrievedChunk{
			chunkWith("body", "Worksheet", "CS101", "material", "m1"),
		}}

		cards := a.Aggregate(context.Background(), result, rag.IntentAcademicQuestion)
		if cards[0].MaterialID != "m1" {
			t.Errorf("material id = %q, want m1", cards[0].MaterialID)
		}
	})
}
