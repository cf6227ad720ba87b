package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Voldemort0731/fiwb-mvp/internal/constant"
	"github.com/Voldemort0731/fiwb-mvp/internal/dto"
	"github.com/Voldemort0731/fiwb-mvp/internal/entity"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/memory"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/specification"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/unitofwork"
	"github.com/Voldemort0731/fiwb-mvp/pkg/llm"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag/grounding"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag/prompt"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag/retrieval"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag/sources"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag/triage"
	"github.com/Voldemort0731/fiwb-mvp/pkg/store"
	"github.com/Voldemort0731/fiwb-mvp/pkg/textextract"
	"github.com/Voldemort0731/fiwb-mvp/pkg/usage"
)

const (
	threadTitleChars = 40
	answerTemp       = 0.7
)

// EmitFunc delivers one SSE data payload to the client. The transport layer
// adds the framing.
type EmitFunc func(data string) error

// ChatStreamInput is one streaming chat request after transport decoding.
type ChatStreamInput struct {
	UserId     uuid.UUID
	Message    string
	ThreadId   string
	MaterialId string
	History    []dto.HistoryTurn

	FileName string
	FileType string
	FileData []byte
}

type IChatService interface {
	ListThreads(ctx context.Context, userId uuid.UUID) ([]dto.ThreadResponse, error)
	GetThreadMessages(ctx context.Context, userId, threadId uuid.UUID) ([]dto.ThreadMessageResponse, error)
	DeleteThread(ctx context.Context, userId, threadId uuid.UUID) error
	// Stream runs the full answer pipeline, emitting SSE payloads through
	// emit. A client disconnect stops emission but the exchange is still
	// persisted and synthesized.
	Stream(ctx context.Context, in *ChatStreamInput, emit EmitFunc) error
}

type chatService struct {
	uowFactory         unitofwork.RepositoryFactory
	threadStates       *memory.ThreadStateRepository
	provider           llm.Provider
	classifier         *triage.Classifier
	retriever          *retrieval.MultiSourceRetriever
	resolver           *grounding.Resolver
	composer           *prompt.Composer
	aggregator         *sources.Aggregator
	extractor          *textextract.Extractor
	usageTracker       *usage.Tracker
	synthesisPublisher IPublisherService
	assetPublisher     IPublisherService
	budgets            prompt.Budgets
	logger             logger.ILogger
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	threadStates *memory.ThreadStateRepository,
	provider llm.Provider,
	classifier *triage.Classifier,
	retriever *retrieval.MultiSourceRetriever,
	resolver *grounding.Resolver,
	composer *prompt.Composer,
	aggregator *sources.Aggregator,
	extractor *textextract.Extractor,
	usageTracker *usage.Tracker,
	synthesisPublisher IPublisherService,
	assetPublisher IPublisherService,
	budgets prompt.Budgets,
	log logger.ILogger,
) IChatService {
	return &chatService{
		uowFactory:         uowFactory,
		threadStates:       threadStates,
		provider:           provider,
		classifier:         classifier,
		retriever:          retriever,
		resolver:           resolver,
		composer:           composer,
		aggregator:         aggregator,
		extractor:          extractor,
		usageTracker:       usageTracker,
		synthesisPublisher: synthesisPublisher,
		assetPublisher:     assetPublisher,
		budgets:            budgets,
		logger:             log,
	}
}

func (s *chatService) ListThreads(ctx context.Context, userId uuid.UUID) ([]dto.ThreadResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	threads, err := uow.ChatThreadRepository().FindAll(ctx,
		specification.ByUserID{UserID: userId},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	res := make([]dto.ThreadResponse, 0, len(threads))
	for _, t := range threads {
		res = append(res, dto.ThreadResponse{Id: t.Id, Title: t.Title, UpdatedAt: t.UpdatedAt})
	}
	return res, nil
}

func (s *chatService) GetThreadMessages(ctx context.Context, userId, threadId uuid.UUID) ([]dto.ThreadMessageResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	thread, err := uow.ChatThreadRepository().FindOne(ctx, specification.ByID{ID: threadId})
	if err != nil {
		return nil, err
	}
	if thread == nil || thread.UserId != userId {
		return nil, fiber.NewError(fiber.StatusForbidden, "Not authorized")
	}

	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByThreadID{ThreadID: threadId},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	res := make([]dto.ThreadMessageResponse, 0, len(messages))
	for _, m := range messages {
		item := dto.ThreadMessageResponse{
			Role:           m.Role,
			Content:        m.Content,
			FileName:       m.FileName,
			AttachmentType: m.AttachmentType,
			Attachment:     m.Attachment,
			CreatedAt:      m.CreatedAt,
		}
		if len(m.Sources) > 0 {
			var cards []sources.SourceCard
			if err := json.Unmarshal(m.Sources, &cards); err == nil {
				item.Sources = cards
			}
		}
		res = append(res, item)
	}
	return res, nil
}

func (s *chatService) DeleteThread(ctx context.Context, userId, threadId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	thread, err := uow.ChatThreadRepository().FindOne(ctx, specification.ByID{ID: threadId})
	if err != nil {
		return err
	}
	if thread == nil || thread.UserId != userId {
		return fiber.NewError(fiber.StatusForbidden, "Not authorized")
	}

	if err := uow.ChatMessageRepository().DeleteByThreadId(ctx, threadId); err != nil {
		return err
	}
	if err := uow.ChatThreadRepository().Delete(ctx, threadId); err != nil {
		return err
	}
	s.threadStates.Delete(threadId.String())
	return nil
}

func (s *chatService) Stream(ctx context.Context, in *ChatStreamInput, emit EmitFunc) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: in.UserId})
	if err != nil {
		return err
	}
	if user == nil {
		return fiber.NewError(fiber.StatusNotFound, "User registration required.")
	}

	thread, err := s.resolveThread(ctx, uow, in)
	if err != nil {
		return err
	}

	attachmentText, imageDataURL := s.handleAttachment(ctx, user.Email, thread.Id.String(), in)

	if err := s.persistUserMessage(ctx, uow, thread, in, imageDataURL); err != nil {
		return err
	}

	if err := emit("THREAD_ID:" + thread.Id.String()); err != nil {
		return err
	}

	history := make([]rag.Turn, 0, len(in.History))
	for _, h := range in.History {
		history = append(history, rag.Turn{Role: h.Role, Content: h.Content})
	}

	// The model call must outlive a client disconnect so the exchange can
	// still be persisted and synthesized.
	pipelineCtx := context.WithoutCancel(ctx)

	_ = emit("EVENT:THINKING:Classifying intent...")
	intent := s.classifier.Classify(pipelineCtx, in.Message, imageDataURL)
	if in.MaterialId != "" {
		intent = rag.IntentNotebookAnalysis
	}

	if intent == rag.IntentGeneralChat {
		_ = emit("EVENT:THINKING:Personalizing response...")
	} else {
		_ = emit("EVENT:THINKING:Searching your academic vault...")
	}

	result := s.retriever.Retrieve(pipelineCtx, retrieval.Query{
		UserEmail:     user.Email,
		Text:          in.Message,
		Intent:        intent,
		History:       history,
		MaterialScope: in.MaterialId,
	})

	if in.MaterialId != "" {
		resolution := s.resolver.Resolve(pipelineCtx, in.MaterialId, user)
		if resolution.Primary != nil {
			focused := append([]rag.RetrievedChunk{*resolution.Primary}, resolution.Attachments...)
			result.CourseContext = append(focused, result.CourseContext...)
		}
	}

	cards := s.aggregator.Aggregate(pipelineCtx, result, intent)
	if len(cards) > 0 && intent != rag.IntentGeneralChat {
		_ = emit("EVENT:THINKING:Broadcasting relevant sources...")
		if cardJSON, err := json.Marshal(cards); err == nil {
			_ = emit("EVENT:SOURCES:" + string(cardJSON))
		}
	}
	_ = emit("EVENT:THINKING:Synthesizing response...")

	messages := s.composer.Compose(prompt.ComposeInput{
		Query:          in.Message,
		Retrieval:      result,
		History:        history,
		AttachmentText: attachmentText,
		ImageDataURL:   imageDataURL,
		Intent:         intent,
		Budgets:        s.budgets,
	})

	promptJSON, _ := json.Marshal(messages)
	inputTokens := usage.CountTokens(string(promptJSON))

	// Once streaming starts, a broken client connection only mutes emission.
	disconnected := false
	response, err := s.provider.ChatStream(pipelineCtx, messages, func(token string) error {
		if disconnected {
			return nil
		}
		frame, err := json.Marshal(map[string]string{"token": token})
		if err != nil {
			return nil
		}
		if err := emit(string(frame)); err != nil {
			disconnected = true
			s.logger.Debug("chat", "client disconnected mid-stream", map[string]interface{}{
				"thread": thread.Id.String(),
			})
		}
		return nil
	}, llm.WithTemperature(answerTemp))
	if err != nil {
		s.logger.Error("chat", "answer stream failed", map[string]interface{}{
			"thread": thread.Id.String(),
			"error":  err.Error(),
		})
		if !disconnected {
			if frame, mErr := json.Marshal(map[string]string{"token": "\n\n" + constant.CriticalFallbackMessage}); mErr == nil {
				_ = emit(string(frame))
			}
		}
		return nil
	}

	go s.finalize(thread, user, in, intent, result, cards, response, inputTokens)

	return nil
}

func (s *chatService) resolveThread(ctx context.Context, uow unitofwork.UnitOfWork, in *ChatStreamInput) (*entity.ChatThread, error) {
	if in.ThreadId != "" && in.ThreadId != "new" {
		if threadId, err := uuid.Parse(in.ThreadId); err == nil {
			thread, err := uow.ChatThreadRepository().FindOne(ctx, specification.ByID{ID: threadId})
			if err != nil {
				return nil, err
			}
			if thread != nil && thread.UserId == in.UserId {
				return thread, nil
			}
		}
	}

	thread := &entity.ChatThread{
		Id:     uuid.New(),
		UserId: in.UserId,
		Title:  truncateString(in.Message, threadTitleChars),
	}
	if in.MaterialId != "" {
		materialId := in.MaterialId
		thread.MaterialId = &materialId
	}
	if err := uow.ChatThreadRepository().Create(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// handleAttachment turns an uploaded file into prompt inputs. Images become a
// data URL for the vision model; documents are extracted and queued for
// background indexing.
func (s *chatService) handleAttachment(ctx context.Context, userEmail, threadId string, in *ChatStreamInput) (attachmentText, imageDataURL string) {
	if len(in.FileData) == 0 {
		return "", ""
	}

	if strings.HasPrefix(in.FileType, "image/") {
		encoded := base64.StdEncoding.EncodeToString(in.FileData)
		return "", fmt.Sprintf("data:%s;base64,%s", in.FileType, encoded)
	}

	text, err := s.extractor.Extract(ctx, in.FileName, in.FileData)
	if err != nil {
		s.logger.Warn("chat", "attachment extraction failed", map[string]interface{}{
			"file":  in.FileName,
			"error": err.Error(),
		})
		return "", ""
	}
	if text == "" {
		return "", ""
	}

	job := dto.PublishChatAssetMessage{
		UserEmail: userEmail,
		ThreadId:  threadId,
		FileName:  in.FileName,
		Content:   text,
	}
	if payload, err := json.Marshal(job); err == nil {
		if err := s.assetPublisher.Publish(ctx, payload); err != nil {
			s.logger.Warn("chat", "asset indexing job publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return text, ""
}

func (s *chatService) persistUserMessage(ctx context.Context, uow unitofwork.UnitOfWork, thread *entity.ChatThread, in *ChatStreamInput, imageDataURL string) error {
	msg := &entity.ChatMessage{
		Id:       uuid.New(),
		ThreadId: thread.Id,
		Role:     "user",
		Content:  in.Message,
	}
	if in.FileName != "" {
		fileName := in.FileName
		fileType := in.FileType
		msg.FileName = &fileName
		msg.AttachmentType = &fileType
	}
	if imageDataURL != "" {
		attachment := imageDataURL
		msg.Attachment = &attachment
	}
	if err := uow.ChatMessageRepository().Create(ctx, msg); err != nil {
		return err
	}

	thread.UpdatedAt = time.Now()
	return uow.ChatThreadRepository().Update(ctx, thread)
}

// finalize persists the assistant turn and feeds the learning loop. It runs
// detached: the stream may already be closed.
func (s *chatService) finalize(thread *entity.ChatThread, user *entity.User, in *ChatStreamInput, intent rag.Intent, result rag.Result, cards []sources.SourceCard, response string, inputTokens int) {
	ctx := context.Background()
	uow := s.uowFactory.NewUnitOfWork(ctx)

	msg := &entity.ChatMessage{
		Id:       uuid.New(),
		ThreadId: thread.Id,
		Role:     "assistant",
		Content:  response,
	}
	var cardJSON []byte
	if len(cards) > 0 {
		if encoded, err := json.Marshal(cards); err == nil {
			cardJSON = encoded
			msg.Sources = datatypes.JSON(encoded)
		}
	}
	if err := uow.ChatMessageRepository().Create(ctx, msg); err != nil {
		s.logger.Error("chat", "assistant message persist failed", map[string]interface{}{
			"thread": thread.Id.String(),
			"error":  err.Error(),
		})
	}

	thread.UpdatedAt = time.Now()
	if err := uow.ChatThreadRepository().Update(ctx, thread); err != nil {
		s.logger.Warn("chat", "thread touch failed", map[string]interface{}{"error": err.Error()})
	}

	s.usageTracker.LogUsage(ctx, user.Email, inputTokens, usage.CategoryLLM)
	s.usageTracker.LogUsage(ctx, user.Email, usage.CountTokens(response), usage.CategoryLLM)

	s.threadStates.Save(&store.ThreadState{
		ID:                 thread.Id.String(),
		UserID:             user.Id.String(),
		MaterialID:         in.MaterialId,
		LastQuery:          in.Message,
		LastRewrittenQuery: result.RewrittenQuery,
		LastIntent:         string(intent),
		LastSources:        cardJSON,
	})

	job := dto.PublishMemorySynthesisMessage{
		UserEmail: user.Email,
		ThreadId:  thread.Id.String(),
		Query:     in.Message,
		Response:  response,
		History:   in.History,
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := s.synthesisPublisher.Publish(ctx, payload); err != nil {
		s.logger.Warn("chat", "synthesis job publish failed", map[string]interface{}{"error": err.Error()})
	}
}
