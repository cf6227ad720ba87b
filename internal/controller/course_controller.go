package controller

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Voldemort0731/fiwb-mvp/internal/dto"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/serverutils"
	"github.com/Voldemort0731/fiwb-mvp/internal/service"
)

type ICourseController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Materials(ctx *fiber.Ctx) error
	Sync(ctx *fiber.Ctx) error
}

type courseController struct {
	courseService service.ICourseService
	syncService   service.ISyncService
}

func NewCourseController(courseService service.ICourseService, syncService service.ISyncService) ICourseController {
	return &courseController{
		courseService: courseService,
		syncService:   syncService,
	}
}

func (c *courseController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/course/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Get("", c.List)
	h.Post("sync", c.Sync)
	h.Get(":id", c.Show)
	h.Get(":id/materials", c.Materials)
}

func (c *courseController) List(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return err
	}

	res, err := c.courseService.ListCourses(ctx.Context(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list courses", res))
}

func (c *courseController) Show(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return err
	}

	res, err := c.courseService.GetCourse(ctx.Context(), userId, ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get course", res))
}

func (c *courseController) Materials(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return err
	}

	res, err := c.courseService.ListMaterials(ctx.Context(), userId, ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list materials", res))
}

func (c *courseController) Sync(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return err
	}

	force := ctx.QueryBool("force", false)
	if err := c.syncService.SyncAllCourses(ctx.Context(), userId, force); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Sync started", dto.SyncResponse{Status: "sync_started"}))
}
