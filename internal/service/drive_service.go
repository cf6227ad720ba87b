package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Voldemort0731/fiwb-mvp/internal/dto"
	"github.com/Voldemort0731/fiwb-mvp/internal/entity"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/specification"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/unitofwork"
	"github.com/Voldemort0731/fiwb-mvp/pkg/lms"
	"github.com/Voldemort0731/fiwb-mvp/pkg/memorystore"
	"github.com/Voldemort0731/fiwb-mvp/pkg/usage"
)

const (
	driveCourseID = "GOOGLE_DRIVE"
	// Stored rows keep a preview of the content; the full text lives in the
	// memory store.
	drivePreviewChars = 5000
	fileGap           = 250 * time.Millisecond
)

type IDriveService interface {
	ListRootFolders(ctx context.Context, userId uuid.UUID) ([]dto.DriveFolderResponse, error)
	ListSyncedFolders(ctx context.Context, userId uuid.UUID) ([]dto.SyncedFolderResponse, error)
	// SyncFolders merges folder ids into the user's watched set and starts a
	// background ingestion of their contents.
	SyncFolders(ctx context.Context, userId uuid.UUID, folderIds []string) (*dto.DriveSyncResponse, error)
	// UnsyncFolders removes folders from the watched set and deletes the
	// materials that came from them.
	UnsyncFolders(ctx context.Context, userId uuid.UUID, folderIds []string) (*dto.DriveUnsyncResponse, error)
}

type driveService struct {
	uowFactory   unitofwork.RepositoryFactory
	lmsFactory   lms.ClientFactory
	memoryStore  *memorystore.Client
	usageTracker *usage.Tracker
	logger       logger.ILogger
}

func NewDriveService(
	uowFactory unitofwork.RepositoryFactory,
	lmsFactory lms.ClientFactory,
	memoryStore *memorystore.Client,
	usageTracker *usage.Tracker,
	log logger.ILogger,
) IDriveService {
	return &driveService{
		uowFactory:   uowFactory,
		lmsFactory:   lmsFactory,
		memoryStore:  memoryStore,
		usageTracker: usageTracker,
		logger:       log,
	}
}

func (s *driveService) ListRootFolders(ctx context.Context, userId uuid.UUID) ([]dto.DriveFolderResponse, error) {
	user, drive, err := s.driveForUser(ctx, userId)
	if err != nil {
		return nil, err
	}

	folders, err := drive.ListRootFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list drive folders: %w", err)
	}
	s.usageTracker.LogLmsRequest(ctx, user.Email)

	res := make([]dto.DriveFolderResponse, 0, len(folders))
	for _, f := range folders {
		res = append(res, dto.DriveFolderResponse{Id: f.ID, Name: f.Name, WebViewLink: f.WebViewLink})
	}
	return res, nil
}

func (s *driveService) ListSyncedFolders(ctx context.Context, userId uuid.UUID) ([]dto.SyncedFolderResponse, error) {
	user, drive, err := s.driveForUser(ctx, userId)
	if err != nil {
		return nil, err
	}

	folderIds := parseWatchedFolders(user.WatchedDriveFolders)
	res := make([]dto.SyncedFolderResponse, 0, len(folderIds))
	for _, fid := range folderIds {
		meta, err := drive.GetFileMetadata(ctx, fid)
		if err != nil {
			// folder may have been deleted or access revoked
			res = append(res, dto.SyncedFolderResponse{
				Id:   fid,
				Name: fmt.Sprintf("Item (%s...)", truncateString(fid, 8)),
				Type: "unknown",
			})
			continue
		}
		res = append(res, dto.SyncedFolderResponse{Id: meta.ID, Name: meta.Name, Type: meta.MimeType})
	}
	return res, nil
}

func (s *driveService) SyncFolders(ctx context.Context, userId uuid.UUID, folderIds []string) (*dto.DriveSyncResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, err
	}
	if user == nil || user.AccessToken == nil {
		return nil, fmt.Errorf("user has no linked drive account")
	}

	// Merge rather than replace; already-watched folders survive.
	watched := parseWatchedFolders(user.WatchedDriveFolders)
	seen := make(map[string]bool, len(watched))
	for _, fid := range watched {
		seen[fid] = true
	}
	for _, fid := range folderIds {
		if !seen[fid] {
			watched = append(watched, fid)
			seen[fid] = true
		}
	}
	merged, err := json.Marshal(watched)
	if err != nil {
		return nil, err
	}
	user.WatchedDriveFolders = string(merged)
	if err := uow.UserRepository().Update(ctx, user); err != nil {
		return nil, err
	}

	go s.ingestFolders(user, folderIds)

	return &dto.DriveSyncResponse{Status: "sync_started", FoldersQueued: len(folderIds)}, nil
}

func (s *driveService) UnsyncFolders(ctx context.Context, userId uuid.UUID, folderIds []string) (*dto.DriveUnsyncResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s not found", userId)
	}

	removed := make(map[string]bool, len(folderIds))
	for _, fid := range folderIds {
		removed[fid] = true
	}
	remaining := []string{}
	for _, fid := range parseWatchedFolders(user.WatchedDriveFolders) {
		if !removed[fid] {
			remaining = append(remaining, fid)
		}
	}
	updated, err := json.Marshal(remaining)
	if err != nil {
		return nil, err
	}
	user.WatchedDriveFolders = string(updated)
	if err := uow.UserRepository().Update(ctx, user); err != nil {
		return nil, err
	}

	deleted := 0
	if len(remaining) == 0 {
		// Nothing watched anymore; drop every drive material for the user.
		rows, err := uow.MaterialRepository().FindAll(ctx,
			specification.ByUserID{UserID: user.Id},
			specification.Filter("course_id", driveCourseID),
		)
		if err != nil {
			s.logger.Warn("drive", "drive material cleanup failed", map[string]interface{}{"error": err.Error()})
		}
		for _, row := range rows {
			if err := uow.MaterialRepository().Delete(ctx, row.Id); err == nil {
				deleted++
			}
		}
	} else if user.AccessToken != nil {
		// Resolve which materials belong to the removed folders by walking
		// them; material ids are the drive file ids.
		refreshToken := ""
		if user.RefreshToken != nil {
			refreshToken = *user.RefreshToken
		}
		drive := s.lmsFactory.Drive(*user.AccessToken, refreshToken)
		for _, fid := range folderIds {
			files, err := drive.ListFilesRecursive(ctx, fid)
			if err != nil {
				s.logger.Warn("drive", "failed to resolve files for removed folder", map[string]interface{}{
					"folder": fid,
					"error":  err.Error(),
				})
				continue
			}
			for _, f := range files {
				row, err := uow.MaterialRepository().FindOne(ctx, specification.ByKey{ID: f.ID}, specification.ByCourseID{CourseID: driveCourseID})
				if err != nil || row == nil {
					continue
				}
				if err := uow.MaterialRepository().Delete(ctx, row.Id); err == nil {
					deleted++
				}
			}
		}
	}

	s.logger.Info("drive", "folders unsynced", map[string]interface{}{
		"user":              user.Email,
		"folders_removed":   len(folderIds),
		"materials_removed": deleted,
	})

	return &dto.DriveUnsyncResponse{Status: "unsynced", MaterialsRemoved: deleted}, nil
}

// ingestFolders runs detached from the request and indexes every syncable
// file in the given folders.
func (s *driveService) ingestFolders(user *entity.User, folderIds []string) {
	ctx := context.Background()

	if err := s.ensureDriveCourse(ctx, user.Id); err != nil {
		s.logger.Error("drive", "virtual course setup failed", map[string]interface{}{"error": err.Error()})
		return
	}

	refreshToken := ""
	if user.RefreshToken != nil {
		refreshToken = *user.RefreshToken
	}
	drive := s.lmsFactory.Drive(*user.AccessToken, refreshToken)

	synced := 0
	for _, folderID := range folderIds {
		files, err := drive.ListFilesRecursive(ctx, folderID)
		if err != nil {
			s.logger.Error("drive", "folder listing failed", map[string]interface{}{
				"folder": folderID,
				"error":  err.Error(),
			})
			continue
		}
		s.usageTracker.LogLmsRequest(ctx, user.Email)
		s.logger.Info("drive", "folder listed", map[string]interface{}{
			"folder": folderID,
			"files":  len(files),
		})

		for _, file := range files {
			if s.ingestFile(ctx, user, drive, file) {
				synced++
			}
			time.Sleep(fileGap)
		}
	}

	s.logger.Info("drive", "drive sync complete", map[string]interface{}{
		"user":   user.Email,
		"synced": synced,
	})
}

// ingestFile extracts, persists, and indexes one drive file. Returns whether
// the file was newly ingested.
func (s *driveService) ingestFile(ctx context.Context, user *entity.User, drive lms.DriveClient, file lms.DriveFileMeta) bool {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	existing, err := uow.MaterialRepository().FindOne(ctx, specification.ByKey{ID: file.ID})
	if err != nil {
		s.logger.Warn("drive", "existence check failed", map[string]interface{}{"file": file.ID, "error": err.Error()})
		return false
	}
	if existing != nil {
		return false
	}

	content, err := drive.GetFileContent(ctx, file)
	if err != nil {
		s.logger.Warn("drive", "content extraction failed", map[string]interface{}{"file": file.Name, "error": err.Error()})
		return false
	}
	if content == "" {
		return false
	}

	attJSON, _ := json.Marshal([]lms.AttachmentRecord{{
		Type:     "drive",
		FileType: lms.FileTypeFromMime(file.MimeType),
		Title:    file.Name,
		URL:      file.WebViewLink,
		FileID:   file.ID,
	}})
	link := file.WebViewLink
	row := &entity.Material{
		Id:          file.ID,
		UserId:      &user.Id,
		CourseId:    driveCourseID,
		Title:       file.Name,
		Content:     truncateString(content, drivePreviewChars),
		Type:        entity.MaterialTypeDriveFile,
		Attachments: datatypes.JSON(attJSON),
		SourceLink:  &link,
	}
	if err := uow.MaterialRepository().Upsert(ctx, row); err != nil {
		s.logger.Warn("drive", "material save failed", map[string]interface{}{"file": file.ID, "error": err.Error()})
		return false
	}

	metadata := map[string]interface{}{
		"user_id": user.Email,
		"source":  "google_drive",
		"file_id": file.ID,
	}
	if _, err := s.memoryStore.AddDocument(ctx, content, metadata, file.Name, "File from Google Drive"); err != nil {
		s.logger.Warn("drive", "memory index failed", map[string]interface{}{"file": file.ID, "error": err.Error()})
		return true
	}
	s.usageTracker.LogDocumentIndexed(ctx, user.Email)
	return true
}

// ensureDriveCourse creates the virtual course grouping drive files and
// enrolls the user in it.
func (s *driveService) ensureDriveCourse(ctx context.Context, userId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	course, err := uow.CourseRepository().FindOne(ctx, specification.ByKey{ID: driveCourseID})
	if err != nil {
		return err
	}
	if course == nil {
		professor := "Self"
		course = &entity.Course{
			Id:        driveCourseID,
			Name:      "Personal Google Drive",
			Professor: &professor,
			Platform:  "Google Drive",
		}
		if err := uow.CourseRepository().Upsert(ctx, course); err != nil {
			return err
		}
	}
	return uow.CourseRepository().UpsertMembership(ctx, userId, driveCourseID)
}

func (s *driveService) driveForUser(ctx context.Context, userId uuid.UUID) (*entity.User, lms.DriveClient, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, nil, err
	}
	if user == nil || user.AccessToken == nil {
		return nil, nil, fmt.Errorf("user has no linked drive account")
	}
	refreshToken := ""
	if user.RefreshToken != nil {
		refreshToken = *user.RefreshToken
	}
	return user, s.lmsFactory.Drive(*user.AccessToken, refreshToken), nil
}

// parseWatchedFolders tolerates legacy empty or malformed values.
func parseWatchedFolders(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return []string{}
	}
	return ids
}
