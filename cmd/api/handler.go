package api

import (
	"log"

	authUsecasePkg "mailboard-backend/internal/auth/usecase"
	emailDelivery "mailboard-backend/internal/email/delivery"
	emailRepo "mailboard-backend/internal/email/repository"
	emailUsecasePkg "mailboard-backend/internal/email/usecase"
	"mailboard-backend/pkg/ai"
	"mailboard-backend/pkg/chroma"
	"mailboard-backend/pkg/config"
	"mailboard-backend/pkg/sse"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase    authUsecasePkg.AuthUsecase
	emailService   emailUsecasePkg.EmailService
	sseManager     *sse.Manager
	config         *config.Config
	summaryWorker  *emailUsecasePkg.SummaryWorker
	summaryHandler *emailDelivery.SummaryHandler
}

// NewHandler wires the optional AI and vector backends into the engine and
// starts the summary worker. Missing credentials degrade features instead of
// failing startup: no Chroma means no semantic search, no Gemini means no
// summaries or query expansion.
func NewHandler(authUc authUsecasePkg.AuthUsecase, emailService *emailUsecasePkg.Service, sseManager *sse.Manager, cfg *config.Config, summaryRepo emailRepo.SummaryRepository) *Handler {
	var aiService ai.Service
	if cfg.GeminiAPIKey != "" {
		svc, err := ai.New(cfg.GeminiAPIKey)
		if err != nil {
			log.Printf("Warning: failed to initialize AI service: %v", err)
		} else {
			aiService = svc
			emailService.SetAIService(svc)
		}
	} else {
		log.Println("Warning: GEMINI_API_KEY not set, summaries and query expansion disabled")
	}

	if cfg.ChromaAPIKey != "" {
		chromaClient, err := chroma.NewClient(cfg)
		if err != nil {
			log.Printf("Warning: failed to initialize Chroma client: %v. Semantic search disabled.", err)
		} else {
			emailService.SetVectorStore(chromaClient)
			log.Println("Chroma client initialized")
		}
	} else {
		log.Println("Warning: CHROMA_API_KEY not set, semantic search disabled")
	}

	emailService.SetNotifier(sseManager)
	emailService.Start()

	summaryWorker := emailUsecasePkg.NewSummaryWorker(summaryRepo, sseManager, 3)
	if aiService != nil {
		summaryWorker.SetAIService(aiService)
	}
	summaryWorker.Start()

	return &Handler{
		authUsecase:    authUc,
		emailService:   emailService,
		sseManager:     sseManager,
		config:         cfg,
		summaryWorker:  summaryWorker,
		summaryHandler: emailDelivery.NewSummaryHandler(emailService, summaryWorker),
	}
}

func (h *Handler) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h.emailService, h.sseManager, h.summaryHandler)

	return r.Run(addr)
}
