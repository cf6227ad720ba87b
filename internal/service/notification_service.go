package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Voldemort0731/fiwb-mvp/internal/dto"
	"github.com/Voldemort0731/fiwb-mvp/internal/entity"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/mailer"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/specification"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/unitofwork"
	"github.com/Voldemort0731/fiwb-mvp/internal/websocket"
	"github.com/Voldemort0731/fiwb-mvp/pkg/events"
	"github.com/Voldemort0731/fiwb-mvp/pkg/nats"
)

const urgentFeedCap = 8

type INotificationService interface {
	// StartEventLoop subscribes to the event bus and turns sync and deadline
	// events into persisted notifications, websocket pushes, and emails.
	StartEventLoop() error
	// HandleWebhook processes a Classroom push notification delivered via
	// Pub/Sub and triggers a sync for the registered user.
	HandleWebhook(ctx context.Context, body []byte) error
	ListNotifications(ctx context.Context, userId uuid.UUID, limit, offset int) (*dto.NotificationListResponse, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userId uuid.UUID) error
	UrgentFeed(ctx context.Context, userId uuid.UUID) ([]dto.UrgentItemResponse, error)
}

// pubSubEnvelope is the Google Pub/Sub push wrapper.
type pubSubEnvelope struct {
	Message struct {
		Data string `json:"data"`
	} `json:"message"`
}

type notificationService struct {
	uowFactory   unitofwork.RepositoryFactory
	subscriber   *nats.Subscriber
	hub          *websocket.Hub
	emailService mailer.IEmailService
	syncService  ISyncService
	logger       logger.ILogger
}

func NewNotificationService(
	uowFactory unitofwork.RepositoryFactory,
	subscriber *nats.Subscriber,
	hub *websocket.Hub,
	emailService mailer.IEmailService,
	syncService ISyncService,
	log logger.ILogger,
) INotificationService {
	return &notificationService{
		uowFactory:   uowFactory,
		subscriber:   subscriber,
		hub:          hub,
		emailService: emailService,
		syncService:  syncService,
		logger:       log,
	}
}

func (s *notificationService) StartEventLoop() error {
	return s.subscriber.Subscribe("events.>", "notification-workers", s.handleEvent)
}

func (s *notificationService) handleEvent(ctx context.Context, event events.Event) error {
	payload := event.Payload()
	rawUserID, _ := payload["user_id"].(string)
	userId, err := uuid.Parse(rawUserID)
	if err != nil {
		// Malformed user ids never become valid; drop instead of redeliver.
		s.logger.Warn("notification", "event with unparseable user id dropped", map[string]interface{}{
			"type":    event.EventType(),
			"user_id": rawUserID,
		})
		return nil
	}

	switch event.EventType() {
	case events.TypeSyncCompleted:
		return s.onSyncCompleted(ctx, userId, payload)
	case events.TypeDeadlineReminder:
		return s.onDeadlineReminder(ctx, userId, payload)
	default:
		return nil
	}
}

func (s *notificationService) onSyncCompleted(ctx context.Context, userId uuid.UUID, payload map[string]interface{}) error {
	newMaterials := 0
	if v, ok := payload["new_materials"].(float64); ok {
		newMaterials = int(v)
	}

	body := "Your courses are up to date."
	if newMaterials > 0 {
		body = fmt.Sprintf("%d new materials were added to your vault.", newMaterials)
	}
	notification := &entity.Notification{
		Id:     uuid.New(),
		UserId: userId,
		Type:   entity.NotificationTypeSyncCompleted,
		Title:  "Classroom sync complete",
		Body:   body,
	}
	if err := s.persistAndPush(ctx, notification); err != nil {
		return err
	}

	if newMaterials > 0 {
		if user := s.findUser(ctx, userId); user != nil {
			if err := s.emailService.SendSyncDigest(user.Email, user.FullName, newMaterials); err != nil {
				s.logger.Warn("notification", "sync digest email failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
	return nil
}

func (s *notificationService) onDeadlineReminder(ctx context.Context, userId uuid.UUID, payload map[string]interface{}) error {
	title, _ := payload["title"].(string)
	dueDate, _ := payload["due_date"].(string)
	materialID, _ := payload["material_id"].(string)

	notification := &entity.Notification{
		Id:     uuid.New(),
		UserId: userId,
		Type:   entity.NotificationTypeDeadlineReminder,
		Title:  "Upcoming deadline",
		Body:   fmt.Sprintf("%s is due %s.", title, dueDate),
	}
	if err := s.persistAndPush(ctx, notification); err != nil {
		return err
	}

	user := s.findUser(ctx, userId)
	if user == nil {
		return nil
	}
	courseName := "your course"
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if material, err := uow.MaterialRepository().FindOne(ctx, specification.ByKey{ID: materialID}); err == nil && material != nil {
		if course, err := uow.CourseRepository().FindOne(ctx, specification.ByKey{ID: material.CourseId}); err == nil && course != nil {
			courseName = course.Name
		}
	}
	if err := s.emailService.SendDeadlineReminder(user.Email, courseName, title, dueDate); err != nil {
		s.logger.Warn("notification", "deadline email failed", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

func (s *notificationService) persistAndPush(ctx context.Context, notification *entity.Notification) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.NotificationRepository().Create(ctx, notification); err != nil {
		return err
	}
	s.hub.Send(notification.UserId, *notification)
	return nil
}

func (s *notificationService) findUser(ctx context.Context, userId uuid.UUID) *entity.User {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil || user == nil {
		s.logger.Warn("notification", "user lookup failed", map[string]interface{}{"user_id": userId.String()})
		return nil
	}
	return user
}

func (s *notificationService) HandleWebhook(ctx context.Context, body []byte) error {
	var envelope pubSubEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("invalid webhook payload: %w", err)
	}
	if envelope.Message.Data == "" {
		return nil
	}

	decoded, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		return fmt.Errorf("invalid webhook data encoding: %w", err)
	}
	var notification struct {
		RegistrationID string `json:"registrationId"`
	}
	if err := json.Unmarshal(decoded, &notification); err != nil {
		return fmt.Errorf("invalid webhook data: %w", err)
	}
	if notification.RegistrationID == "" {
		s.logger.Warn("notification", "webhook with no registration id", nil)
		return nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.Filter("registration_id", notification.RegistrationID))
	if err != nil {
		return err
	}
	if user == nil {
		s.logger.Warn("notification", "webhook for unknown registration", map[string]interface{}{
			"registration_id": notification.RegistrationID,
		})
		return nil
	}

	s.logger.Info("notification", "push notification triggering sync", map[string]interface{}{"user": user.Email})
	go func(userId uuid.UUID) {
		if err := s.syncService.SyncAllCourses(context.Background(), userId, false); err != nil {
			s.logger.Error("notification", "push-triggered sync failed", map[string]interface{}{"error": err.Error()})
		}
	}(user.Id)

	return nil
}

func (s *notificationService) ListNotifications(ctx context.Context, userId uuid.UUID, limit, offset int) (*dto.NotificationListResponse, error) {
	if limit <= 0 {
		limit = 20
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)

	rows, total, err := uow.NotificationRepository().FindAllByUser(ctx, userId, limit, offset)
	if err != nil {
		return nil, err
	}
	unread, err := uow.NotificationRepository().UnreadCount(ctx, userId)
	if err != nil {
		return nil, err
	}

	items := make([]dto.NotificationResponse, 0, len(rows))
	for _, n := range rows {
		items = append(items, dto.NotificationResponse{
			Id:        n.Id,
			Type:      string(n.Type),
			Title:     n.Title,
			Body:      n.Body,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}
	return &dto.NotificationListResponse{Items: items, Total: total, UnreadCount: unread}, nil
}

func (s *notificationService) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.NotificationRepository().MarkAsRead(ctx, id)
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.NotificationRepository().MarkAllAsRead(ctx, userId)
}

func (s *notificationService) UrgentFeed(ctx context.Context, userId uuid.UUID) ([]dto.UrgentItemResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	assignments, err := uow.MaterialRepository().FindAll(ctx,
		specification.ByUserID{UserID: userId},
		specification.Filter("type", string(entity.MaterialTypeAssignment)),
	)
	if err != nil {
		return nil, err
	}

	items := []dto.UrgentItemResponse{}
	for _, m := range assignments {
		if m.DueDate == nil {
			continue
		}
		items = append(items, dto.UrgentItemResponse{
			Id:        m.Id,
			Title:     m.Title,
			Type:      "assignment",
			Subtitle:  "Due: " + *m.DueDate,
			Priority:  "high",
			Timestamp: m.CreatedAt.UTC().Format(time.RFC3339),
			Link:      "/course/" + m.CourseId,
		})
	}

	announcements, err := uow.MaterialRepository().FindAll(ctx,
		specification.ByUserID{UserID: userId},
		specification.Filter("type", string(entity.MaterialTypeAnnouncement)),
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: 3},
	)
	if err != nil {
		return nil, err
	}
	for _, a := range announcements {
		items = append(items, dto.UrgentItemResponse{
			Id:        a.Id,
			Title:     a.Title,
			Type:      "announcement",
			Subtitle:  "New Course Announcement",
			Priority:  "medium",
			Timestamp: a.CreatedAt.UTC().Format(time.RFC3339),
			Link:      "/course/" + a.CourseId,
		})
	}

	if len(items) == 0 {
		items = append(items, dto.UrgentItemResponse{
			Id:        "progress_1",
			Title:     "Weekly Progress Report",
			Type:      "progress",
			Subtitle:  "You completed 85% of goals this week!",
			Priority:  "low",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Link:      "/dashboard",
		})
	}

	priorityRank := map[string]int{"high": 0, "medium": 1, "low": 2}
	sort.SliceStable(items, func(i, j int) bool {
		return priorityRank[items[i].Priority] < priorityRank[items[j].Priority]
	})
	if len(items) > urgentFeedCap {
		items = items[:urgentFeedCap]
	}
	return items, nil
}
