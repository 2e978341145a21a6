package apiserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/modgate/modgate/pkg/apiserver/handlers"
	"github.com/modgate/modgate/pkg/apiserver/middleware"
	"github.com/modgate/modgate/pkg/auth"
	"github.com/modgate/modgate/pkg/comments"
	"github.com/modgate/modgate/pkg/config"
	"github.com/modgate/modgate/pkg/engine"
	"github.com/modgate/modgate/pkg/eventbus"
	"github.com/modgate/modgate/pkg/notify"
	"github.com/modgate/modgate/pkg/revisions"
	"github.com/modgate/modgate/pkg/store/postgres"
	redisclient "github.com/modgate/modgate/pkg/store/redis"
)

type Server struct {
	router *gin.Engine
	db     *postgres.Store
	redis  *redisclient.Client
	cfg    *config.Config
	logger *zap.Logger
	bus    *eventbus.Bus
	tokens *auth.TokenManager
}

func NewServer(db *postgres.Store, redis *redisclient.Client, cfg *config.Config, logger *zap.Logger, bus *eventbus.Bus) *Server {
	s := &Server{
		db:     db,
		redis:  redis,
		cfg:    cfg,
		logger: logger,
		bus:    bus,
		tokens: auth.NewTokenManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL),
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	workflowRepo := postgres.NewWorkflowRepository(s.db.DB())
	assignmentRepo := postgres.NewAssignmentRepository(s.db.DB())
	historyRepo := postgres.NewHistoryRepository(s.db.DB())
	postRepo := postgres.NewPostRepository(s.db.DB())
	membershipRepo := postgres.NewMembershipRepository(s.db.DB())
	commentRepo := postgres.NewCommentRepository(s.db.DB())
	revisionRepo := postgres.NewRevisionRepository(s.db.DB())
	outboxRepo := postgres.NewOutboxRepository(s.db.DB())

	dispatcher := notify.NewOutboxDispatcher(outboxRepo, s.logger)

	eng := engine.New(workflowRepo, assignmentRepo, historyRepo, postRepo, membershipRepo, dispatcher, s.logger)
	if s.db != nil {
		eng = eng.WithTransactor(s.db)
	}
	if s.bus != nil {
		eng = eng.WithBus(s.bus)
	}
	if s.redis != nil {
		eng = eng.WithCache(s.redis.Client())
	}

	commentManager := comments.NewManager(commentRepo, dispatcher, s.logger)
	revisionManager := revisions.NewManager(revisionRepo, postRepo, s.logger)

	api := r.Group("/api/v1")
	{
		api.Use(middleware.Auth(s.tokens))

		approvalHandler := handlers.NewApprovalHandler(eng, s.logger)
		api.POST("/posts/:id/submit", approvalHandler.Submit)
		api.POST("/posts/:id/decision", approvalHandler.Decision)
		api.POST("/assignments/bulk", approvalHandler.Bulk)
		api.GET("/approvals/pending", approvalHandler.Pending)
		api.GET("/approvals/stats", approvalHandler.Stats)
		api.GET("/approvals/dashboard", approvalHandler.Dashboard)
		api.GET("/history", approvalHandler.History)

		commentHandler := handlers.NewCommentHandler(commentManager, s.logger)
		api.POST("/posts/:id/comments", commentHandler.Create)
		api.GET("/posts/:id/comments", commentHandler.List)
		api.POST("/comments/:id/resolve", commentHandler.Resolve)

		revisionHandler := handlers.NewRevisionHandler(revisionManager, s.logger)
		api.POST("/posts/:id/revisions", revisionHandler.Create)
		api.GET("/posts/:id/revisions", revisionHandler.List)
		api.POST("/posts/:id/revisions/:revisionId/restore", revisionHandler.Restore)

		workflowHandler := handlers.NewWorkflowHandler(s.db, s.logger)
		api.POST("/workflows", workflowHandler.Create)
		api.GET("/workflows", workflowHandler.List)
		api.GET("/workflows/:id", workflowHandler.Get)
		api.DELETE("/workflows/:id", workflowHandler.Deactivate)
	}

	s.router = r
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) TokenManager() *auth.TokenManager {
	return s.tokens
}
