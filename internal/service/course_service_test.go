package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/Voldemort0731/fiwb-mvp/internal/entity"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/specification"
)

type enrolledCourseRepo struct {
	courses []*entity.Course
}

func (r *enrolledCourseRepo) Upsert(ctx context.Context, course *entity.Course) error { return nil }

func (r *enrolledCourseRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Course, error) {
	return nil, nil
}

func (r *enrolledCourseRepo) FindAllByUser(ctx context.Context, userId uuid.UUID) ([]*entity.Course, error) {
	return r.courses, nil
}

func (r *enrolledCourseRepo) UpsertMembership(ctx context.Context, userId uuid.UUID, courseId string) error {
	return nil
}

type courseMaterialRepo struct {
	mu       sync.Mutex
	byCourse map[string][]*entity.Material
	upserted []*entity.Material
}

func (r *courseMaterialRepo) Upsert(ctx context.Context, material *entity.Material) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserted = append(r.upserted, material)
	return nil
}

func (r *courseMaterialRepo) Delete(ctx context.Context, id string) error { return nil }

func (r *courseMaterialRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Material, error) {
	rows, _ := r.FindAll(ctx, specs...)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *courseMaterialRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range specs {
		if sp, ok := s.(specification.ByCourseID); ok {
			return r.byCourse[sp.CourseID], nil
		}
	}
	return nil, nil
}

func (r *courseMaterialRepo) FindByIds(ctx context.Context, ids []string) ([]*entity.Material, error) {
	return nil, nil
}

func (r *courseMaterialRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return 0, nil
}

func newCourseHarness(courses []*entity.Course, materials *courseMaterialRepo) (ICourseService, *courseMaterialRepo) {
	if materials == nil {
		materials = &courseMaterialRepo{}
	}
	uow := &memUow{
		users:     &memUserRepo{users: map[uuid.UUID]*entity.User{}},
		threads:   &memThreadRepo{threads: map[uuid.UUID]*entity.ChatThread{}},
		messages:  &memMessageRepo{},
		materials: materials,
		courses:   &enrolledCourseRepo{courses: courses},
	}
	return NewCourseService(&memFactory{uow: uow}, logger.NewNoopLogger()), materials
}

func TestListCoursesPreview(t *testing.T) {
	prof := "Dr. Chen"
	synced := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	courses := []*entity.Course{
		{Id: "c1", Name: "CS101", Professor: &prof, Platform: "Google Classroom", LastSynced: &synced},
		{Id: "c2", Name: "MATH202", Platform: "Google Classroom"},
	}
	materials := &courseMaterialRepo{byCourse: map[string][]*entity.Material{
		"c1": {{
			Id:          "m1",
			Type:        entity.MaterialTypeAnnouncement,
			Content:     "Midterm moved to Friday",
			Attachments: datatypes.JSON(`[{"type":"drive","title":"Study Guide"}]`),
		}},
	}}
	svc, _ := newCourseHarness(courses, materials)

	res, err := svc.ListCourses(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, "Dr. Chen", res[0].Professor)
	require.NotNil(t, res[0].LastSynced)
	assert.Equal(t, "2026-08-30T10:00:00Z", *res[0].LastSynced)
	require.NotNil(t, res[0].LatestUpdate)
	assert.Equal(t, "[Announcement] Midterm moved to Friday...", *res[0].LatestUpdate)
	assert.Equal(t, 1, res[0].LatestAttachmentCount)

	assert.Equal(t, "Unknown", res[1].Professor)
	assert.Nil(t, res[1].LatestUpdate)
}

func TestGetCourseGuardsEnrollment(t *testing.T) {
	svc, _ := newCourseHarness([]*entity.Course{{Id: "c1", Name: "CS101"}}, nil)

	got, err := svc.GetCourse(context.Background(), uuid.New(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "CS101", got.Name)

	_, err = svc.GetCourse(context.Background(), uuid.New(), "not_enrolled")
	var fe *fiber.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fiber.StatusNotFound, fe.Code)
}

func TestListMaterialsClaimsOrphans(t *testing.T) {
	userId := uuid.New()
	platformDate := "2026-08-20T09:00:00Z"
	materials := &courseMaterialRepo{byCourse: map[string][]*entity.Material{
		"c1": {
			{Id: "m1", Title: "Orphan", Type: entity.MaterialTypeMaterial},
			{Id: "m2", Title: "Owned", Type: entity.MaterialTypeAssignment, UserId: &userId, PlatformCreatedAt: &platformDate},
		},
	}}
	svc, repo := newCourseHarness([]*entity.Course{{Id: "c1", Name: "CS101"}}, materials)

	res, err := svc.ListMaterials(context.Background(), userId, "c1")
	require.NoError(t, err)
	require.Len(t, res, 2)

	// The unowned row is claimed and written back.
	require.Len(t, repo.upserted, 1)
	assert.Equal(t, "m1", repo.upserted[0].Id)
	require.NotNil(t, repo.upserted[0].UserId)
	assert.Equal(t, userId, *repo.upserted[0].UserId)

	// Platform timestamps win over row timestamps when present.
	require.NotNil(t, res[1].CreatedAt)
	assert.Equal(t, platformDate, *res[1].CreatedAt)
	assert.NotNil(t, res[0].Attachments, "attachments must serialize as an empty list, not null")
}
