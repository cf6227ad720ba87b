package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/Voldemort0731/fiwb-mvp/internal/dto"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/serverutils"
	"github.com/Voldemort0731/fiwb-mvp/internal/service"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	ListThreads(ctx *fiber.Ctx) error
	GetThreadMessages(ctx *fiber.Ctx) error
	DeleteThread(ctx *fiber.Ctx) error
	Stream(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
	logger      logger.ILogger
}

func NewChatController(chatService service.IChatService, log logger.ILogger) IChatController {
	return &chatController{
		chatService: chatService,
		logger:      log,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Get("threads", c.ListThreads)
	h.Get("threads/:id/messages", c.GetThreadMessages)
	h.Delete("threads/:id", c.DeleteThread)
	h.Post("stream", c.Stream)
}

func (c *chatController) ListThreads(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return err
	}

	res, err := c.chatService.ListThreads(ctx.Context(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list threads", res))
}

func (c *chatController) GetThreadMessages(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return err
	}
	threadId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid thread id")
	}

	res, err := c.chatService.GetThreadMessages(ctx.Context(), userId, threadId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get messages", res))
}

func (c *chatController) DeleteThread(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return err
	}
	threadId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid thread id")
	}

	if err := c.chatService.DeleteThread(ctx.Context(), userId, threadId); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success delete thread", nil))
}

// Stream answers a chat message over SSE. The request is multipart so an
// optional file can ride along with the message.
func (c *chatController) Stream(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return err
	}

	var req dto.ChatStreamRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	in := &service.ChatStreamInput{
		UserId:     userId,
		Message:    req.Message,
		ThreadId:   req.ThreadId,
		MaterialId: req.MaterialId,
	}
	if req.History != "" {
		// History is advisory; a malformed payload degrades to none.
		_ = json.Unmarshal([]byte(req.History), &in.History)
	}

	if fileHeader, err := ctx.FormFile("file"); err == nil && fileHeader != nil {
		file, err := fileHeader.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Failed to read uploaded file")
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Failed to read uploaded file")
		}
		in.FileName = fileHeader.Filename
		in.FileType = fileHeader.Header.Get("Content-Type")
		in.FileData = data
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")

	// The fasthttp request context dies with the handler; the pipeline owns
	// its own lifetime.
	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		emit := func(data string) error {
			if _, err := w.WriteString("data: " + data + "\n\n"); err != nil {
				return err
			}
			return w.Flush()
		}

		if err := c.chatService.Stream(context.Background(), in, emit); err != nil {
			c.logger.Error("ChatController", "stream pipeline failed", map[string]interface{}{
				"error": err.Error(),
			})
			_ = emit(`{"error":"stream failed"}`)
		}
	}))

	return nil
}
