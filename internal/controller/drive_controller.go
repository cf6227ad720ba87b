package controller

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Voldemort0731/fiwb-mvp/internal/dto"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/serverutils"
	"github.com/Voldemort0731/fiwb-mvp/internal/service"
)

type IDriveController interface {
	RegisterRoutes(r fiber.Router)
	Folders(ctx *fiber.Ctx) error
	SyncedFolders(ctx *fiber.Ctx) error
	Sync(ctx *fiber.Ctx) error
	Unsync(ctx *fiber.Ctx) error
}

type driveController struct {
	driveService service.IDriveService
}

func NewDriveController(driveService service.IDriveService) IDriveController {
	return &driveController{
		driveService: driveService,
	}
}

func (c *driveController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/drive/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Get("folders", c.Folders)
	h.Get("synced-folders", c.SyncedFolders)
	h.Post("sync", c.Sync)
	h.Post("unsync", c.Unsync)
}

func (c *driveController) Folders(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return err
	}

	res, err := c.driveService.ListRootFolders(ctx.Context(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list folders", res))
}

func (c *driveController) SyncedFolders(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return err
	}

	res, err := c.driveService.ListSyncedFolders(ctx.Context(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list synced folders", res))
}

func (c *driveController) Sync(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return err
	}

	var req dto.DriveSyncRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.driveService.SyncFolders(ctx.Context(), userId, req.FolderIds)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Drive sync started", res))
}

func (c *driveController) Unsync(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return err
	}

	var req dto.DriveUnsyncRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.driveService.UnsyncFolders(ctx.Context(), userId, req.FolderIds)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Folders unsynced", res))
}
