package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Voldemort0731/fiwb-mvp/internal/dto"
	"github.com/Voldemort0731/fiwb-mvp/internal/entity"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/specification"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/unitofwork"
	"github.com/Voldemort0731/fiwb-mvp/pkg/lms"
)

type ICourseService interface {
	ListCourses(ctx context.Context, userId uuid.UUID) ([]dto.CourseResponse, error)
	GetCourse(ctx context.Context, userId uuid.UUID, courseId string) (*dto.CourseDetailResponse, error)
	ListMaterials(ctx context.Context, userId uuid.UUID, courseId string) ([]dto.MaterialResponse, error)
}

type courseService struct {
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
}

func NewCourseService(uowFactory unitofwork.RepositoryFactory, log logger.ILogger) ICourseService {
	return &courseService{uowFactory: uowFactory, logger: log}
}

func (s *courseService) ListCourses(ctx context.Context, userId uuid.UUID) ([]dto.CourseResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	courses, err := uow.CourseRepository().FindAllByUser(ctx, userId)
	if err != nil {
		return nil, err
	}

	res := make([]dto.CourseResponse, 0, len(courses))
	for _, c := range courses {
		item := dto.CourseResponse{
			Id:        c.Id,
			Name:      c.Name,
			Professor: professorOrUnknown(c.Professor),
			Platform:  c.Platform,
		}
		if c.LastSynced != nil {
			synced := c.LastSynced.UTC().Format(time.RFC3339)
			item.LastSynced = &synced
		}

		latest, err := uow.MaterialRepository().FindOne(ctx,
			specification.ByCourseID{CourseID: c.Id},
			specification.OwnedByOrShared{UserID: userId},
			specification.OrderBy{Field: "created_at", Desc: true},
		)
		if err == nil && latest != nil {
			preview, attCount := latestUpdatePreview(latest)
			item.LatestUpdate = &preview
			item.LatestAttachmentCount = attCount
		}

		res = append(res, item)
	}
	return res, nil
}

// latestUpdatePreview builds the one-line dashboard summary for a course's
// newest item.
func latestUpdatePreview(m *entity.Material) (string, int) {
	label := capitalize(string(m.Type))
	attachments := decodeAttachments(m.Attachments)

	if m.Content != "" {
		return fmt.Sprintf("[%s] %s...", label, truncateString(m.Content, 100)), len(attachments)
	}
	if len(attachments) > 0 {
		title := attachments[0].Title
		if title == "" {
			title = "Attachment"
		}
		return fmt.Sprintf("[%s] 📎 %s", label, title), len(attachments)
	}
	return fmt.Sprintf("[%s] %s", label, m.Title), 0
}

func (s *courseService) GetCourse(ctx context.Context, userId uuid.UUID, courseId string) (*dto.CourseDetailResponse, error) {
	course, err := s.findEnrolledCourse(ctx, userId, courseId)
	if err != nil {
		return nil, err
	}
	return &dto.CourseDetailResponse{
		Id:        course.Id,
		Name:      course.Name,
		Professor: professorOrUnknown(course.Professor),
		Platform:  course.Platform,
	}, nil
}

func (s *courseService) ListMaterials(ctx context.Context, userId uuid.UUID, courseId string) ([]dto.MaterialResponse, error) {
	if _, err := s.findEnrolledCourse(ctx, userId, courseId); err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	rows, err := uow.MaterialRepository().FindAll(ctx,
		specification.ByCourseID{CourseID: courseId},
		specification.OwnedByOrShared{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	// Rows synced before per-user ownership existed have no owner; claim
	// them for whoever reads them first.
	for _, row := range rows {
		if row.UserId == nil {
			owner := userId
			row.UserId = &owner
			if err := uow.MaterialRepository().Upsert(ctx, row); err != nil {
				s.logger.Warn("course", "orphan material reassignment failed", map[string]interface{}{
					"material": row.Id,
					"error":    err.Error(),
				})
			}
		}
	}

	res := make([]dto.MaterialResponse, 0, len(rows))
	for _, row := range rows {
		item := dto.MaterialResponse{
			Id:          row.Id,
			Title:       row.Title,
			Content:     row.Content,
			Type:        string(row.Type),
			DueDate:     row.DueDate,
			SourceLink:  row.SourceLink,
			Attachments: decodeAttachments(row.Attachments),
		}
		if row.PlatformCreatedAt != nil {
			item.CreatedAt = row.PlatformCreatedAt
		} else {
			created := row.CreatedAt.UTC().Format(time.RFC3339)
			item.CreatedAt = &created
		}
		res = append(res, item)
	}
	return res, nil
}

func (s *courseService) findEnrolledCourse(ctx context.Context, userId uuid.UUID, courseId string) (*entity.Course, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	courses, err := uow.CourseRepository().FindAllByUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	for _, c := range courses {
		if c.Id == courseId {
			return c, nil
		}
	}
	return nil, fiber.NewError(fiber.StatusNotFound, "Course not found or access denied")
}

func decodeAttachments(raw []byte) []lms.AttachmentRecord {
	if len(raw) == 0 {
		return []lms.AttachmentRecord{}
	}
	var records []lms.AttachmentRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return []lms.AttachmentRecord{}
	}
	return records
}

func professorOrUnknown(p *string) string {
	if p == nil || *p == "" {
		return "Unknown"
	}
	return *p
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
