package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/Voldemort0731/fiwb-mvp/internal/entity"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/specification"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/unitofwork"
	"github.com/Voldemort0731/fiwb-mvp/pkg/events"
	"github.com/Voldemort0731/fiwb-mvp/pkg/lms"
	"github.com/Voldemort0731/fiwb-mvp/pkg/memorystore"
	"github.com/Voldemort0731/fiwb-mvp/pkg/nats"
	"github.com/Voldemort0731/fiwb-mvp/pkg/usage"
)

const (
	courseListTimeout   = 20 * time.Second
	teacherFetchTimeout = 5 * time.Second
	announcementTimeout = 15 * time.Second
	courseGap           = 500 * time.Millisecond
	indexWorkers        = 4

	// deadlineWindow is how far ahead due dates trigger a reminder.
	deadlineWindow = 48 * time.Hour

	unknownProfessor = "Unknown Professor"
	classroomSource  = "google_classroom"
)

// deepSyncSlots throttles concurrent per-user deep syncs across the process.
var deepSyncSlots = make(chan struct{}, 3)

type ISyncService interface {
	// SyncAllCourses runs the fast course-list phase synchronously and spawns
	// the deep content sync in the background.
	SyncAllCourses(ctx context.Context, userId uuid.UUID, forceReindex bool) error
}

type syncService struct {
	uowFactory     unitofwork.RepositoryFactory
	lmsFactory     lms.ClientFactory
	memoryStore    *memorystore.Client
	usageTracker   *usage.Tracker
	eventPublisher *nats.Publisher
	logger         logger.ILogger
}

func NewSyncService(
	uowFactory unitofwork.RepositoryFactory,
	lmsFactory lms.ClientFactory,
	memoryStore *memorystore.Client,
	usageTracker *usage.Tracker,
	eventPublisher *nats.Publisher,
	log logger.ILogger,
) ISyncService {
	return &syncService{
		uowFactory:     uowFactory,
		lmsFactory:     lmsFactory,
		memoryStore:    memoryStore,
		usageTracker:   usageTracker,
		eventPublisher: eventPublisher,
		logger:         log,
	}
}

func (s *syncService) SyncAllCourses(ctx context.Context, userId uuid.UUID, forceReindex bool) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user %s not found", userId)
	}
	if user.AccessToken == nil {
		return fmt.Errorf("user %s has no linked classroom account", user.Email)
	}

	refreshToken := ""
	if user.RefreshToken != nil {
		refreshToken = *user.RefreshToken
	}
	classroom := s.lmsFactory.Classroom(*user.AccessToken, refreshToken)

	listCtx, cancel := context.WithTimeout(ctx, courseListTimeout)
	defer cancel()
	courses, err := classroom.GetCourses(listCtx)
	if err != nil {
		s.logger.Error("sync", "course list fetch failed", map[string]interface{}{
			"user":  user.Email,
			"error": err.Error(),
		})
		return err
	}
	s.usageTracker.LogLmsRequest(ctx, user.Email)
	s.logger.Info("sync", "course list fetched", map[string]interface{}{
		"user":  user.Email,
		"count": len(courses),
	})

	now := time.Now()
	for _, c := range courses {
		course := &entity.Course{
			Id:         c.ID,
			Name:       c.Name,
			Platform:   "Google Classroom",
			LastSynced: &now,
		}
		if err := uow.CourseRepository().Upsert(ctx, course); err != nil {
			return err
		}
		if err := uow.CourseRepository().UpsertMembership(ctx, user.Id, c.ID); err != nil {
			return err
		}
	}

	user.LastSynced = &now
	if err := uow.UserRepository().Update(ctx, user); err != nil {
		return err
	}

	if len(courses) == 0 {
		// An empty answer can mean a transient API problem; never treat it as
		// "the user dropped every course".
		s.logger.Warn("sync", "zero courses returned, skipping deep sync", map[string]interface{}{"user": user.Email})
		return nil
	}

	go s.deepSync(user, classroom, courses, forceReindex)

	return nil
}

// deepSync walks every course and indexes its content. It runs detached from
// the request, so it uses a fresh context.
func (s *syncService) deepSync(user *entity.User, classroom lms.ClassroomClient, courses []lms.Course, forceReindex bool) {
	deepSyncSlots <- struct{}{}
	defer func() { <-deepSyncSlots }()

	ctx := context.Background()
	s.logger.Info("sync", "deep sync starting", map[string]interface{}{"user": user.Email})

	totalNew := 0
	for _, course := range courses {
		professor := s.resolveProfessor(ctx, classroom, course.ID)

		added, err := s.syncCourseContent(ctx, classroom, user, course.ID, course.Name, professor, forceReindex)
		if err != nil {
			s.logger.Error("sync", "course content sync failed", map[string]interface{}{
				"user":   user.Email,
				"course": course.Name,
				"error":  err.Error(),
			})
		}
		totalNew += added

		time.Sleep(courseGap)
	}

	s.logger.Info("sync", "deep sync complete", map[string]interface{}{
		"user":          user.Email,
		"new_materials": totalNew,
	})

	if s.eventPublisher != nil {
		if err := s.eventPublisher.Publish(ctx, events.NewSyncCompleted(user.Id.String(), totalNew)); err != nil {
			s.logger.Warn("sync", "sync event publish failed", map[string]interface{}{"error": err.Error()})
		}
	}

	s.checkDeadlines(ctx, user)
}

func (s *syncService) resolveProfessor(ctx context.Context, classroom lms.ClassroomClient, courseID string) string {
	teacherCtx, cancel := context.WithTimeout(ctx, teacherFetchTimeout)
	defer cancel()

	teachers, err := classroom.GetTeachers(teacherCtx, courseID)
	if err != nil || len(teachers) == 0 || teachers[0].FullName == "" {
		// 403 on the teachers endpoint is common for student accounts
		return unknownProfessor
	}
	professor := teachers[0].FullName

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if course, err := uow.CourseRepository().FindOne(ctx, specification.ByKey{ID: courseID}); err == nil && course != nil {
		course.Professor = &professor
		if err := uow.CourseRepository().Upsert(ctx, course); err != nil {
			s.logger.Warn("sync", "professor update failed", map[string]interface{}{"course": courseID, "error": err.Error()})
		}
	}
	return professor
}

// syncCourseContent fetches assignments, materials, and announcements for one
// course, persists new rows, heals stale ones, and indexes content into the
// memory store. Returns the number of newly created rows.
func (s *syncService) syncCourseContent(ctx context.Context, classroom lms.ClassroomClient, user *entity.User, courseID, courseName, professor string, forceReindex bool) (int, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	existingRows, err := uow.MaterialRepository().FindAll(ctx, specification.ByCourseID{CourseID: courseID})
	if err != nil {
		return 0, err
	}
	existing := make(map[string]*entity.Material, len(existingRows))
	for _, row := range existingRows {
		existing[row.Id] = row
	}

	// Content types are fetched sequentially; a failed leg degrades to empty
	// instead of aborting the course.
	var coursework []lms.CourseWork
	if coursework, err = classroom.GetCoursework(ctx, courseID); err != nil {
		s.logger.Warn("sync", "coursework fetch failed", map[string]interface{}{"course": courseID, "error": err.Error()})
	} else {
		s.usageTracker.LogLmsRequest(ctx, user.Email)
	}

	var materials []lms.CourseMaterial
	if materials, err = classroom.GetMaterials(ctx, courseID); err != nil {
		s.logger.Warn("sync", "materials fetch failed", map[string]interface{}{"course": courseID, "error": err.Error()})
	} else {
		s.usageTracker.LogLmsRequest(ctx, user.Email)
	}

	annCtx, cancel := context.WithTimeout(ctx, announcementTimeout)
	defer cancel()
	var announcements []lms.Announcement
	if announcements, err = classroom.GetAnnouncements(annCtx, courseID); err != nil {
		s.logger.Warn("sync", "announcements fetch failed", map[string]interface{}{"course": courseID, "error": err.Error()})
	} else {
		s.usageTracker.LogLmsRequest(ctx, user.Email)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(indexWorkers)
	newCount := 0

	for _, work := range coursework {
		if work.ID == "" {
			continue
		}
		title := defaultString(work.Title, "Assignment")
		due := lms.FormatDate(work.DueDate)
		content := work.Description
		_, attachments := lms.FormatMaterials(work.Materials)

		row := s.buildMaterial(user.Id, courseID, work.ID, title, content, entity.MaterialTypeAssignment, due, attachments, work.AlternateLink, work.CreationTime)
		isNew := existing[work.ID] == nil
		if added, err := s.persistMaterial(ctx, uow, existing[work.ID], row); err != nil {
			s.logger.Warn("sync", "assignment save failed", map[string]interface{}{"id": work.ID, "error": err.Error()})
		} else if added {
			newCount++
		}

		if forceReindex || isNew {
			s.spawnIndex(group, groupCtx, user.Email, content, title, truncateString(work.Description, 200), work.ID, courseID, courseName, professor, "assignment", work.AlternateLink)
		}
	}

	for _, mat := range materials {
		if mat.ID == "" {
			continue
		}
		title := defaultString(mat.Title, "Material")
		content := mat.Description
		_, attachments := lms.FormatMaterials(mat.Materials)

		row := s.buildMaterial(user.Id, courseID, mat.ID, title, content, entity.MaterialTypeMaterial, "", attachments, mat.AlternateLink, mat.CreationTime)
		isNew := existing[mat.ID] == nil
		if added, err := s.persistMaterial(ctx, uow, existing[mat.ID], row); err != nil {
			s.logger.Warn("sync", "material save failed", map[string]interface{}{"id": mat.ID, "error": err.Error()})
		} else if added {
			newCount++
		}

		if forceReindex || isNew {
			s.spawnIndex(group, groupCtx, user.Email, content, title, truncateString(mat.Description, 200), mat.ID, courseID, courseName, professor, "material", mat.AlternateLink)
		}
	}

	for _, ann := range announcements {
		if ann.ID == "" || (ann.Text == "" && len(ann.Materials) == 0) {
			continue
		}
		title := "Announcement"
		if professor != unknownProfessor {
			title = fmt.Sprintf("Announcement from %s", professor)
		}
		_, attachments := lms.FormatMaterials(ann.Materials)

		row := s.buildMaterial(user.Id, courseID, ann.ID, title, ann.Text, entity.MaterialTypeAnnouncement, "", attachments, ann.AlternateLink, ann.CreationTime)
		isNew := existing[ann.ID] == nil
		if added, err := s.persistMaterial(ctx, uow, existing[ann.ID], row); err != nil {
			s.logger.Warn("sync", "announcement save failed", map[string]interface{}{"id": ann.ID, "error": err.Error()})
		} else if added {
			newCount++
		}

		if forceReindex || isNew {
			indexTitle := fmt.Sprintf("%s: %s", courseName, title)
			s.spawnIndex(group, groupCtx, user.Email, ann.Text, indexTitle, truncateString(ann.Text, 200), ann.ID, courseID, courseName, professor, "announcement", ann.AlternateLink)

			ann := ann
			group.Go(func() error {
				s.indexAnnouncementDriveFiles(groupCtx, user, ann, courseID, courseName, professor)
				return nil
			})
		}
	}

	// indexing goroutines never return errors; failures are logged inside
	_ = group.Wait()

	return newCount, nil
}

func (s *syncService) buildMaterial(userId uuid.UUID, courseID, id, title, content string, matType entity.MaterialType, dueDate string, attachments []lms.AttachmentRecord, sourceLink, createdAt string) *entity.Material {
	row := &entity.Material{
		Id:       id,
		UserId:   &userId,
		CourseId: courseID,
		Title:    title,
		Content:  content,
		Type:     matType,
	}
	if dueDate != "" {
		row.DueDate = &dueDate
	}
	if sourceLink != "" {
		row.SourceLink = &sourceLink
	}
	if createdAt != "" {
		row.PlatformCreatedAt = &createdAt
	}
	if attJSON, err := json.Marshal(attachments); err == nil {
		row.Attachments = datatypes.JSON(attJSON)
	}
	return row
}

// persistMaterial inserts a new row or heals an existing one whose content or
// attachments drifted from the platform. Returns whether a row was created.
func (s *syncService) persistMaterial(ctx context.Context, uow unitofwork.UnitOfWork, current, incoming *entity.Material) (bool, error) {
	if current == nil {
		return true, uow.MaterialRepository().Upsert(ctx, incoming)
	}

	changed := current.Content != incoming.Content || current.Title != incoming.Title
	if len(incoming.Attachments) > 0 && (len(current.Attachments) == 0 || string(current.Attachments) == "[]") {
		changed = true
	}
	if !changed {
		return false, nil
	}

	current.Content = incoming.Content
	current.Title = incoming.Title
	if len(incoming.Attachments) > 0 {
		current.Attachments = incoming.Attachments
	}
	if incoming.DueDate != nil {
		current.DueDate = incoming.DueDate
	}
	return false, uow.MaterialRepository().Upsert(ctx, current)
}

func (s *syncService) spawnIndex(group *errgroup.Group, ctx context.Context, userEmail, content, title, desc, itemID, courseID, courseName, professor, itemType, sourceLink string) {
	group.Go(func() error {
		s.indexItem(ctx, userEmail, content, title, desc, itemID, courseID, courseName, professor, itemType, sourceLink)
		return nil
	})
}

// indexItem writes one piece of classroom content to the memory store.
// Failures are logged and dropped; indexing never blocks or fails a sync.
func (s *syncService) indexItem(ctx context.Context, userEmail, content, title, desc, itemID, courseID, courseName, professor, itemType, sourceLink string) {
	metadata := map[string]interface{}{
		"title":       title,
		"user_id":     userEmail,
		"course_id":   courseID,
		"course_name": courseName,
		"professor":   professor,
		"type":        itemType,
		"source_id":   itemID,
		"source":      classroomSource,
		"source_link": sourceLink,
	}
	if _, err := s.memoryStore.AddDocument(ctx, content, metadata, title, desc); err != nil {
		s.logger.Warn("sync", "memory index failed", map[string]interface{}{"item": itemID, "error": err.Error()})
		return
	}
	s.usageTracker.LogDocumentIndexed(ctx, userEmail)
}

// indexAnnouncementDriveFiles finds every Drive file an announcement
// references (pinned attachments, linked Drive URLs, and raw URLs pasted in
// the text), extracts it, and indexes it with full course context.
func (s *syncService) indexAnnouncementDriveFiles(ctx context.Context, user *entity.User, ann lms.Announcement, courseID, courseName, professor string) {
	refreshToken := ""
	if user.RefreshToken != nil {
		refreshToken = *user.RefreshToken
	}
	drive := s.lmsFactory.Drive(*user.AccessToken, refreshToken)

	type driveRef struct {
		title string
		link  string
		mime  string
	}
	files := map[string]driveRef{}

	for _, mat := range ann.Materials {
		switch {
		case mat.DriveFile != nil:
			df := mat.DriveFile
			if df.ID != "" {
				if _, ok := files[df.ID]; !ok {
					files[df.ID] = driveRef{
						title: defaultString(df.Title, "Drive File"),
						link:  df.AlternateLink,
						mime:  df.MimeType,
					}
				}
			}
		case mat.Link != nil:
			fid, mime := lms.ExtractDriveFileID(mat.Link.URL)
			if fid != "" {
				if _, ok := files[fid]; !ok {
					files[fid] = driveRef{
						title: defaultString(mat.Link.Title, "Drive File"),
						link:  mat.Link.URL,
						mime:  mime,
					}
				}
			}
		}
	}

	for _, rawURL := range lms.FindDriveURLs(ann.Text) {
		fid, mime := lms.ExtractDriveFileID(rawURL)
		if fid != "" {
			if _, ok := files[fid]; !ok {
				files[fid] = driveRef{title: "Drive File from Announcement", link: rawURL, mime: mime}
			}
		}
	}

	if len(files) == 0 {
		return
	}

	for fileID, ref := range files {
		if ref.mime == "" {
			meta, err := drive.GetFileMetadata(ctx, fileID)
			if err != nil {
				s.logger.Warn("sync", "drive metadata resolution failed", map[string]interface{}{"file": fileID, "error": err.Error()})
				continue
			}
			ref.mime = meta.MimeType
			if ref.title == "Drive File from Announcement" || ref.title == "Drive File" {
				ref.title = defaultString(meta.Name, ref.title)
			}
			if ref.link == "" {
				ref.link = meta.WebViewLink
			}
		}

		extracted, err := drive.GetFileContent(ctx, lms.DriveFileMeta{ID: fileID, Name: ref.title, MimeType: ref.mime})
		if err != nil {
			s.logger.Warn("sync", "drive extraction failed", map[string]interface{}{"file": fileID, "error": err.Error()})
		}

		var fullContent string
		if len(extracted) >= 50 {
			fullContent = fmt.Sprintf("Course Material (Drive File) shared by %s in %s\nFrom Announcement: %s\n\n--- File: %s ---\n%s",
				professor, courseName, truncateString(ann.Text, 400), ref.title, extracted)
		} else {
			// Unextractable (image, empty); index metadata so the model knows
			// the file exists.
			fullContent = fmt.Sprintf("Drive file '%s' shared by %s in %s.\nAnnouncement: %s",
				ref.title, professor, courseName, truncateString(ann.Text, 600))
		}

		attachmentID := "ann_att_" + fileID
		metadata := map[string]interface{}{
			"title":                  ref.title,
			"user_id":                user.Email,
			"course_id":              courseID,
			"course_name":            courseName,
			"professor":              professor,
			"type":                   "announcement_drive_attachment",
			"source_id":              attachmentID,
			"source":                 classroomSource,
			"source_link":            ref.link,
			"file_title":             ref.title,
			"mime_type":              ref.mime,
			"parent_announcement_id": ann.ID,
		}

		if _, err := s.memoryStore.AddDocument(ctx, fullContent, metadata, ref.title, truncateString(ann.Text, 200)); err != nil {
			s.logger.Warn("sync", "announcement attachment index failed", map[string]interface{}{"file": fileID, "error": err.Error()})
			continue
		}
		s.usageTracker.LogDocumentIndexed(ctx, user.Email)

		uow := s.uowFactory.NewUnitOfWork(ctx)
		existing, err := uow.MaterialRepository().FindOne(ctx, specification.ByKey{ID: attachmentID}, specification.ByCourseID{CourseID: courseID})
		if err != nil || existing != nil {
			continue
		}

		attJSON, _ := json.Marshal([]lms.AttachmentRecord{{
			Type:     "drive",
			FileType: lms.FileTypeFromMime(ref.mime),
			Title:    ref.title,
			URL:      ref.link,
			FileID:   fileID,
		}})
		annID := ann.ID
		link := ref.link
		createdAt := time.Now().UTC().Format(time.RFC3339)
		row := &entity.Material{
			Id:                   attachmentID,
			UserId:               &user.Id,
			CourseId:             courseID,
			Title:                ref.title,
			Content:              fullContent,
			Type:                 entity.MaterialTypeAnnouncementAttachment,
			Attachments:          datatypes.JSON(attJSON),
			SourceLink:           &link,
			ParentAnnouncementId: &annID,
			PlatformCreatedAt:    &createdAt,
		}
		if err := uow.MaterialRepository().Upsert(ctx, row); err != nil {
			s.logger.Warn("sync", "announcement attachment save failed", map[string]interface{}{"file": fileID, "error": err.Error()})
		}
	}
}

// checkDeadlines emits reminder events for assignments due inside the window.
func (s *syncService) checkDeadlines(ctx context.Context, user *entity.User) {
	if s.eventPublisher == nil {
		return
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	assignments, err := uow.MaterialRepository().FindAll(ctx,
		specification.ByUserID{UserID: user.Id},
		specification.Filter("type", string(entity.MaterialTypeAssignment)),
	)
	if err != nil {
		s.logger.Warn("sync", "deadline scan failed", map[string]interface{}{"error": err.Error()})
		return
	}

	now := time.Now()
	for _, a := range assignments {
		if a.DueDate == nil {
			continue
		}
		due, err := time.Parse("2006-01-02", *a.DueDate)
		if err != nil {
			continue
		}
		if due.Before(now) || due.Sub(now) > deadlineWindow {
			continue
		}
		evt := events.NewDeadlineReminder(user.Id.String(), a.Id, a.Title, *a.DueDate)
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("sync", "deadline event publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
