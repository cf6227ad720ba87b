package grounding

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/Voldemort0731/fiwb-mvp/internal/entity"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/specification"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag"
)

// MaterialFinder is the slice of the material repository the resolver uses.
type MaterialFinder interface {
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Material, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Material, error)
	FindByIds(ctx context.Context, ids []string) ([]*entity.Material, error)
}

// CourseFinder resolves course names for provenance labels.
type CourseFinder interface {
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Course, error)
}

// Resolution is the outcome of one grounding request. Primary is nil on a
// soft miss; Attachments may be non-empty only when Primary resolved.
type Resolution struct {
	Primary     *rag.RetrievedChunk
	Attachments []rag.RetrievedChunk
}

// Resolver locates the exact document a scoped query refers to, through a
// cascade of id-matching strategies. First match in cascade order wins; the
// cascade order itself is the tie-break contract.
type Resolver struct {
	materials MaterialFinder
	courses   CourseFinder
	logger    logger.ILogger
}

func NewResolver(materials MaterialFinder, courses CourseFinder, log logger.ILogger) *Resolver {
	return &Resolver{
		materials: materials,
		courses:   courses,
		logger:    log,
	}
}

// Resolve runs the cascade for materialScopeID on behalf of user. A miss
// returns an empty Resolution, never an error: grounding is best-effort and
// retrieval proceeds without it.
func (r *Resolver) Resolve(ctx context.Context, materialScopeID string, user *entity.User) Resolution {
	material := r.resolveMaterial(ctx, materialScopeID, user)
	if material == nil {
		r.logger.Debug("grounding", "material scope did not resolve", map[string]interface{}{
			"scope": materialScopeID,
		})
		return Resolution{}
	}

	courseName := r.courseName(ctx, material.CourseId)

	res := Resolution{
		Primary: r.materialChunk(material, courseName, courseName),
	}

	// Attachment expansion is strictly additive; its failures never undo
	// the primary injection.
	attachments, err := r.expandAttachments(ctx, material)
	if err != nil {
		r.logger.Warn("grounding", "attachment expansion failed", map[string]interface{}{
			"material_id": material.Id,
			"error":       err.Error(),
		})
		return res
	}
	res.Attachments = attachments
	return res
}

// resolveMaterial is the cascade: exact id, prefix-stripped id, fuzzy long
// token, source-link substring. Stops at the first hit.
func (r *Resolver) resolveMaterial(ctx context.Context, scopeID string, user *entity.User) *entity.Material {
	owned := specification.OwnedByOrShared{UserID: user.Id}

	// (a) exact id
	if m, err := r.materials.FindOne(ctx, specification.ByKey{ID: scopeID}, owned); err == nil && m != nil {
		return m
	}

	// (b) strip known prefixes and retry
	if stripped := rag.StripKnownPrefixes(scopeID); stripped != scopeID {
		if m, err := r.materials.FindOne(ctx, specification.ByKey{ID: stripped}, owned); err == nil && m != nil {
			return m
		}
	}

	// (c) fuzzy: longest platform-file token vs ids and source links
	if token := rag.ExtractLongToken(scopeID); token != "" {
		if m, err := r.materials.FindOne(ctx, specification.ByKey{ID: token}, owned); err == nil && m != nil {
			return m
		}
		if m := r.bestFuzzyMatch(ctx, token, owned); m != nil {
			return m
		}
	}

	// (d) raw scope id as a source-link substring
	if m, err := r.materials.FindOne(ctx, specification.SourceLinkContains{Token: scopeID}, owned); err == nil && m != nil {
		return m
	}

	return nil
}

// bestFuzzyMatch collects id-substring and link-substring candidates and
// ranks drive-file/attachment rows first.
func (r *Resolver) bestFuzzyMatch(ctx context.Context, token string, owned specification.Specification) *entity.Material {
	byId, err := r.materials.FindAll(ctx, specification.IDContains{Token: token}, owned)
	if err != nil {
		byId = nil
	}
	byLink, err := r.materials.FindAll(ctx, specification.SourceLinkContains{Token: token}, owned)
	if err != nil {
		byLink = nil
	}

	seen := map[string]bool{}
	var candidates []*entity.Material
	for _, m := range append(byId, byLink...) {
		if !seen[m.Id] {
			seen[m.Id] = true
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return fuzzyRank(candidates[i]) < fuzzyRank(candidates[j])
	})
	return candidates[0]
}

func fuzzyRank(m *entity.Material) int {
	switch {
	case strings.HasPrefix(m.Id, rag.PrefixDriveFile) || m.Type == "drive_file":
		return 0
	case strings.HasPrefix(m.Id, rag.PrefixAnnAtt) || m.Type == entity.MaterialTypeAnnouncementAttachment:
		return 0
	default:
		return 1
	}
}

// expandAttachments parses the primary document's stored attachment list and
// pulls in every attachment row the sync has indexed, labeled with the
// parent's title for provenance.
func (r *Resolver) expandAttachments(ctx context.Context, material *entity.Material) ([]rag.RetrievedChunk, error) {
	if len(material.Attachments) == 0 {
		return nil, nil
	}

	var attachments []struct {
		Type     string `json:"type"`
		FileType string `json:"file_type"`
		Title    string `json:"title"`
		URL      string `json:"url"`
		FileID   string `json:"file_id"`
	}
	if err := json.Unmarshal(material.Attachments, &attachments); err != nil {
		return nil, err
	}

	var candidateIds []string
	for _, att := range attachments {
		if att.FileID == "" {
			continue
		}
		candidateIds = append(candidateIds,
			att.FileID,
			rag.PrefixAnnAtt+att.FileID,
			rag.PrefixDriveFile+att.FileID,
		)
	}
	if len(candidateIds) == 0 {
		return nil, nil
	}

	found, err := r.materials.FindByIds(ctx, candidateIds)
	if err != nil {
		return nil, err
	}

	chunks := make([]rag.RetrievedChunk, 0, len(found))
	for _, att := range found {
		if att.Id == material.Id {
			continue
		}
		chunks = append(chunks, *r.materialChunk(att, material.Title, r.courseName(ctx, att.CourseId)))
	}
	return chunks, nil
}

// materialChunk renders a database row as a retrieval chunk so the composer
// treats grounded documents exactly like searched ones.
func (r *Resolver) materialChunk(material *entity.Material, courseName, fallbackCourse string) *rag.RetrievedChunk {
	if courseName == "" {
		courseName = fallbackCourse
	}
	link := ""
	if material.SourceLink != nil {
		link = *material.SourceLink
	}
	return &rag.RetrievedChunk{
		Content: material.Content,
		Meta: rag.ChunkMeta{
			Title:      material.Title,
			SourceID:   material.Id,
			CourseID:   material.CourseId,
			CourseName: courseName,
			Type:       string(material.Type),
			SourceLink: link,
		},
	}
}

func (r *Resolver) courseName(ctx context.Context, courseId string) string {
	if courseId == "" {
		return ""
	}
	course, err := r.courses.FindOne(ctx, specification.ByKey{ID: courseId})
	if err != nil || course == nil {
		return ""
	}
	return course.Name
}
