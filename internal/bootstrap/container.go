package bootstrap

import (
	"context"
	"log"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/Voldemort0731/fiwb-mvp/internal/config"
	"github.com/Voldemort0731/fiwb-mvp/internal/controller"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/mailer"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/implementation"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/memory"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/unitofwork"
	"github.com/Voldemort0731/fiwb-mvp/internal/service"
	"github.com/Voldemort0731/fiwb-mvp/internal/websocket"
	"github.com/Voldemort0731/fiwb-mvp/pkg/llm/factory"
	lmsgoogle "github.com/Voldemort0731/fiwb-mvp/pkg/lms/google"
	"github.com/Voldemort0731/fiwb-mvp/pkg/memorystore"
	pktNats "github.com/Voldemort0731/fiwb-mvp/pkg/nats"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag/grounding"
	ragmemory "github.com/Voldemort0731/fiwb-mvp/pkg/rag/memory"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag/prompt"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag/retrieval"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag/rewrite"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag/sources"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag/triage"
	"github.com/Voldemort0731/fiwb-mvp/pkg/textextract"
	"github.com/Voldemort0731/fiwb-mvp/pkg/usage"
)

const (
	memorySynthesisTopic = "memory_synthesis_jobs"
	chatAssetTopic       = "chat_asset_jobs"

	extractorConcurrency = 4
)

type Container struct {
	// Controllers
	AuthController         controller.IAuthController
	ChatController         controller.IChatController
	CourseController       controller.ICourseController
	DriveController        controller.IDriveController
	SearchController       controller.ISearchController
	NotificationController controller.INotificationController

	// Background Services (Exposed for main.go to run)
	ConsumerService     service.IConsumerService
	NotificationService service.INotificationService

	WebSocketHub *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
		cfg.App.ClientURL,
	)

	// 2. Event Bus (in-process jobs)
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Model providers: a strong model answers, a small one triages.
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		providerBaseURL(cfg),
		cfg.Ai.OpenAIAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	slmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.SLMModel,
		providerBaseURL(cfg),
		cfg.Ai.OpenAIAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize SLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s / %s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel, cfg.Ai.SLMModel)

	// 4. Memory store and usage accounting
	memoryStore := memorystore.NewClient(cfg.Memory.BaseURL, cfg.Memory.APIKey, sysLogger)
	usageTracker := usage.NewTracker(uowFactory, sysLogger)

	// 5. LMS clients
	extractor := textextract.NewExtractor(extractorConcurrency, sysLogger)
	lmsFactory := lmsgoogle.NewFactory(
		cfg.Auth.GoogleClientID,
		cfg.Auth.GoogleClientSecret,
		extractor,
		sysLogger,
	)

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.Auth.GoogleClientID,
		ClientSecret: cfg.Auth.GoogleClientSecret,
		RedirectURL:  cfg.Auth.GoogleRedirectURL,
		Endpoint:     googleoauth.Endpoint,
	}

	// 6. Infrastructure
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	wsLogger := logger.NewIsolatedLogger("logs/notification.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 7. Answer pipeline components
	materialRepo := implementation.NewMaterialRepository(db)
	courseRepo := implementation.NewCourseRepository(db)

	classifier := triage.NewClassifier(slmProvider, sysLogger)
	rewriter := rewrite.NewRewriter(slmProvider, usageTracker, sysLogger)
	retriever := retrieval.NewMultiSourceRetriever(memoryStore, rewriter, usageTracker, sysLogger)
	resolver := grounding.NewResolver(materialRepo, courseRepo, sysLogger)
	composer := prompt.NewComposer()
	aggregator := sources.NewAggregator(materialRepo, sysLogger)
	synthesizer := ragmemory.NewSynthesizer(slmProvider, memoryStore, usageTracker, sysLogger)
	threadStates := memory.NewThreadStateRepository()

	budgets := prompt.Budgets{
		KnowledgeBase: cfg.Prompt.KnowledgeBaseBudget,
		Workspace:     cfg.Prompt.WorkspaceBudget,
		Memory:        cfg.Prompt.MemoryBudget,
		Profile:       cfg.Prompt.ProfileBudget,
		Attachment:    cfg.Prompt.AttachmentBudget,
	}

	// 8. Job plumbing
	synthesisPublisher := service.NewPublisherService(memorySynthesisTopic, pubSub)
	assetPublisher := service.NewPublisherService(chatAssetTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		memorySynthesisTopic,
		chatAssetTopic,
		synthesizer,
		memoryStore,
		usageTracker,
	)

	// 9. Services
	syncService := service.NewSyncService(uowFactory, lmsFactory, memoryStore, usageTracker, natsPub, sysLogger)
	driveService := service.NewDriveService(uowFactory, lmsFactory, memoryStore, usageTracker, sysLogger)
	authService := service.NewAuthService(uowFactory, oauthConfig, cfg.Auth.JwtSecret, syncService, sysLogger)
	courseService := service.NewCourseService(uowFactory, sysLogger)
	searchService := service.NewSearchService(uowFactory, memoryStore, usageTracker, sysLogger)
	notificationService := service.NewNotificationService(uowFactory, natsSub, wsHub, emailService, syncService, sysLogger)
	chatService := service.NewChatService(
		uowFactory,
		threadStates,
		llmProvider,
		classifier,
		retriever,
		resolver,
		composer,
		aggregator,
		extractor,
		usageTracker,
		synthesisPublisher,
		assetPublisher,
		budgets,
		sysLogger,
	)

	// 10. Controllers
	return &Container{
		AuthController:         controller.NewAuthController(authService),
		ChatController:         controller.NewChatController(chatService, sysLogger),
		CourseController:       controller.NewCourseController(courseService, syncService),
		DriveController:        controller.NewDriveController(driveService),
		SearchController:       controller.NewSearchController(searchService),
		NotificationController: controller.NewNotificationController(notificationService, wsHub, sysLogger),

		ConsumerService:     consumerService,
		NotificationService: notificationService,

		WebSocketHub: wsHub,
	}
}

func providerBaseURL(cfg *config.Config) string {
	if cfg.Ai.LLMProvider == "ollama" {
		return cfg.Ai.OllamaBaseURL
	}
	return cfg.Ai.OpenAIBaseURL
}
