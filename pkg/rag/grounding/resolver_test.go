package grounding

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Voldemort0731/fiwb-mvp/internal/entity"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/specification"
)

type fakeMaterials struct {
	rows []*entity.Material
}

func (f *fakeMaterials) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Material, error) {
	for _, s := range specs {
		switch sp := s.(type) {
		case specification.ByKey:
			for _, m := range f.rows {
				if m.Id == sp.ID {
					return m, nil
				}
			}
			return nil, nil
		case specification.SourceLinkContains:
			for _, m := range f.rows {
				if m.SourceLink != nil && strings.Contains(*m.SourceLink, sp.Token) {
					return m, nil
				}
			}
			return nil, nil
		}
	}
	return nil, nil
}

func (f *fakeMaterials) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Material, error) {
	var out []*entity.Material
	for _, s := range specs {
		switch sp := s.(type) {
		case specification.IDContains:
			for _, m := range f.rows {
				if strings.Contains(m.Id, sp.Token) {
					out = append(out, m)
				}
			}
			return out, nil
		case specification.SourceLinkContains:
			for _, m := range f.rows {
				if m.SourceLink != nil && strings.Contains(*m.SourceLink, sp.Token) {
					out = append(out, m)
				}
			}
			return out, nil
		}
	}
	return out, nil
}

func (f *fakeMaterials) FindByIds(ctx context.Context, ids []string) ([]*entity.Material, error) {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []*entity.Material
	for _, m := range f.rows {
		if want[m.Id] {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeCourses struct {
	names map[string]string
}

func (f *fakeCourses) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Course, error) {
	for _, s := range specs {
		if sp, ok := s.(specification.ByKey); ok {
			if name, found := f.names[sp.ID]; found {
				return &entity.Course{Id: sp.ID, Name: name}, nil
			}
		}
	}
	return nil, nil
}

func strPtr(s string) *string { return &s }

func testUser() *entity.User {
	return &entity.User{Id: uuid.New()}
}

func newResolver(materials *fakeMaterials, courses *fakeCourses) *Resolver {
	if courses == nil {
		courses = &fakeCourses{}
	}
	return NewResolver(materials, courses, logger.NewNoopLogger())
}

const longToken = "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms"

func TestResolveExactIDWins(t *testing.T) {
	materials := &fakeMaterials{rows: []*entity.Material{
		{Id: "cw_1", CourseId: "c1", Title: "Homework 3", Content: "prove by induction"},
	}}
	r := newResolver(materials, &fakeCourses{names: map[string]string{"c1": "CS101"}})

	res := r.Resolve(context.Background(), "cw_1", testUser())
	if res.Primary == nil {
		t.Fatal("primary did not resolve")
	}
	if res.Primary.Meta.SourceID != "cw_1" || res.Primary.Meta.CourseName != "CS101" {
		t.Errorf("primary meta = %+v", res.Primary.Meta)
	}
	if res.Primary.Content != "prove by induction" {
		t.Errorf("content = %q", res.Primary.Content)
	}
}

func TestResolvePrefixStrippedFallback(t *testing.T) {
	materials := &fakeMaterials{rows: []*entity.Material{
		{Id: "12345", Title: "Announcement"},
	}}
	r := newResolver(materials, nil)

	res := r.Resolve(context.Background(), "ann_12345", testUser())
	if res.Primary == nil || res.Primary.Meta.SourceID != "12345" {
		t.Fatalf("got %+v, want the prefix-stripped row", res.Primary)
	}
}

func TestResolveFuzzyTokenPrefersAttachmentRows(t *testing.T) {
	materials := &fakeMaterials{rows: []*entity.Material{
		{Id: "parent_holding_" + longToken, Type: entity.MaterialTypeAnnouncement},
		{Id: "ann_att_" + longToken, Type: entity.MaterialTypeAnnouncementAttachment, Title: "Slides"},
	}}
	r := newResolver(materials, nil)

	// Scope carries the token embedded in an id shape no row matches
	// exactly, forcing the fuzzy leg.
	res := r.Resolve(context.Background(), "view."+longToken, testUser())
	if res.Primary == nil {
		t.Fatal("primary did not resolve")
	}
	if res.Primary.Meta.SourceID != "ann_att_"+longToken {
		t.Errorf("got %q, want the attachment row ranked first", res.Primary.Meta.SourceID)
	}
}

func TestResolveSourceLinkSubstringIsLastLeg(t *testing.T) {
	materials := &fakeMaterials{rows: []*entity.Material{
		{Id: "m9", Title: "Shared Doc", SourceLink: strPtr("https://docs.example.com/view/shared-doc-42")},
	}}
	r := newResolver(materials, nil)

	res := r.Resolve(context.Background(), "shared-doc-42", testUser())
	if res.Primary == nil || res.Primary.Meta.SourceID != "m9" {
		t.Fatalf("got %+v, want the link-matched row", res.Primary)
	}
}

func TestResolveMissIsSoft(t *testing.T) {
	r := newResolver(&fakeMaterials{}, nil)

	res := r.Resolve(context.Background(), "nothing_matches", testUser())
	if res.Primary != nil || len(res.Attachments) != 0 {
		t.Errorf("got %+v, want empty resolution", res)
	}
}

func TestResolveExpandsAttachments(t *testing.T) {
	materials := &fakeMaterials{rows: []*entity.Material{
		{
			Id:          "ann_7",
			CourseId:    "c1",
			Title:       "Week 4 Announcement",
			Attachments: datatypes.JSON(`[{"type":"drive","file_id":"fileA"},{"type":"link","file_id":""}]`),
		},
		{Id: "ann_att_fileA", CourseId: "c1", Title: "Week 4 Slides", Content: "slide text"},
	}}
	r := newResolver(materials, &fakeCourses{names: map[string]string{"c1": "CS101"}})

	res := r.Resolve(context.Background(), "ann_7", testUser())
	if res.Primary == nil {
		t.Fatal("primary did not resolve")
	}
	if len(res.Attachments) != 1 {
		t.Fatalf("got %d attachments, want 1", len(res.Attachments))
	}
	att := res.Attachments[0]
	if att.Meta.SourceID != "ann_att_fileA" || att.Content != "slide text" {
		t.Errorf("attachment = %+v", att)
	}
	// Attachment chunks are labeled with the parent's title for provenance.
	if att.Meta.CourseName != "Week 4 Announcement" {
		t.Errorf("attachment course label = %q", att.Meta.CourseName)
	}
}

func TestResolveMalformedAttachmentListKeepsPrimary(t *testing.T) {
	materials := &fakeMaterials{rows: []*entity.Material{
		{Id: "ann_8", Title: "Broken", Attachments: datatypes.JSON(`{not json`)},
	}}
	r := newResolver(materials, nil)

	res := r.Resolve(context.Background(), "ann_8", testUser())
	if res.Primary == nil {
		t.Fatal("primary must survive a failed attachment expansion")
	}
	if len(res.Attachments) != 0 {
		t.Errorf("attachments = %+v, want none", res.Attachments)
	}
}
