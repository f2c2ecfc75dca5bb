package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"daylight-matching-api/internal/client"
	"daylight-matching-api/internal/handler"
	"daylight-matching-api/internal/lock"
	"daylight-matching-api/internal/matching"
	"daylight-matching-api/internal/metrics"
	"daylight-matching-api/internal/middleware"
	"daylight-matching-api/internal/repository"
	"daylight-matching-api/internal/response"
	"daylight-matching-api/internal/service"
)

// Config holds router configuration
type Config struct {
	DB             *gorm.DB
	Logger         *zap.Logger
	JWTSecret      string
	InternalAPIKey string
	AllowedOrigins []string
	BasePath       string
	Metrics        *metrics.Metrics
	Locker         lock.Locker
	Publisher      client.AssignmentPublisher
	Archiver       client.AttemptArchiver
	Matching       service.Options
}

// Setup sets up the router with all routes. With a nil DB only the ops routes are served and
// every API route answers 503 until the caller swaps in a router built with a connection.
func Setup(cfg Config) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Locker == nil {
		cfg.Locker = lock.NewLocalLocker()
	}

	r := gin.New()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(cfg.Metrics))

	// Prometheus metrics endpoint, at the root and under the base path for the ingress
	metricsHandler := gin.WrapH(promhttp.Handler())
	r.GET("/metrics", metricsHandler)
	if cfg.BasePath != "" && cfg.BasePath != "/" {
		r.GET(cfg.BasePath+"/metrics", metricsHandler)
	}

	healthHandler := handler.NewHealthHandler(func() *gorm.DB { return cfg.DB })
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)

	api := r.Group(cfg.BasePath)
	api.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if cfg.DB == nil {
		r.NoRoute(func(c *gin.Context) {
			response.SendError(c, http.StatusServiceUnavailable, response.ErrCodeInternal, "Database is not ready")
		})
		return r
	}

	// Initialize repositories
	participantRepo := repository.NewParticipantRepository(cfg.DB)
	groupRepo := repository.NewGroupRepository(cfg.DB)
	attemptRepo := repository.NewAttemptRepository(cfg.DB)

	// Initialize services
	deps := service.Dependencies{
		DB:           cfg.DB,
		Participants: participantRepo,
		Groups:       groupRepo,
		Attempts:     attemptRepo,
		Locker:       cfg.Locker,
		Publisher:    cfg.Publisher,
		Archiver:     cfg.Archiver,
		Metrics:      cfg.Metrics,
		Logger:       cfg.Logger,
	}
	scorer, err := matching.NewScorer(cfg.Matching.Defaults.Scoring)
	if err != nil {
		// config.Validate rejects this at startup; fall back to uniform similarity
		cfg.Logger.Error("Invalid scoring defaults, using built-in scoring", zap.Error(err))
		scorer, _ = matching.NewScorer(matching.DefaultScoringConfig())
	}
	matchingService := service.NewMatchingService(deps, cfg.Matching)
	overrideService := service.NewOverrideService(deps, cfg.Matching, scorer)
	rosterService := service.NewRosterService(cfg.DB, participantRepo, attemptRepo, cfg.Logger)

	// Initialize handlers
	matchingHandler := handler.NewMatchingHandler(matchingService, cfg.Logger)
	overrideHandler := handler.NewOverrideHandler(overrideService, cfg.Logger)
	rosterHandler := handler.NewRosterHandler(rosterService, cfg.Logger)

	// ============================================================
	// Operator routes
	// ============================================================
	operator := api.Group("/events/:eventId/matching")
	operator.Use(middleware.Auth(cfg.JWTSecret), middleware.RequireRole(middleware.RoleAdmin, middleware.RoleOperator))
	{
		operator.POST("/preview", matchingHandler.PreviewGroups)
		operator.POST("/run", matchingHandler.RunMatching)
		operator.GET("/groups", matchingHandler.GetGroups)
		operator.GET("/unassigned", matchingHandler.GetUnassigned)
		operator.GET("/history", matchingHandler.GetHistory)

		operator.POST("/assign", overrideHandler.AssignUser)
		operator.POST("/move", overrideHandler.MoveUser)
		operator.POST("/remove", overrideHandler.RemoveUser)
		operator.POST("/groups", overrideHandler.CreateGroup)
		operator.POST("/bulk-assign", overrideHandler.BulkAssign)
		operator.POST("/groups/:groupId/confirm", overrideHandler.ConfirmGroup)
		operator.POST("/groups/:groupId/cancel", overrideHandler.CancelGroup)
	}

	// ============================================================
	// Participant routes
	// ============================================================
	participant := api.Group("/events/:eventId/matching")
	participant.Use(middleware.Auth(cfg.JWTSecret))
	{
		participant.GET("/my-group", matchingHandler.GetMyGroup)
		participant.POST("/my-group/confirm", overrideHandler.ConfirmMyGroup)
	}

	// ============================================================
	// Internal routes (payment and persona subsystems)
	// ============================================================
	internal := api.Group("/internal/events/:eventId/participants")
	internal.Use(middleware.InternalAPIKey(cfg.InternalAPIKey))
	{
		internal.PUT("", rosterHandler.UpsertParticipants)
		internal.PATCH("/:userId/status", rosterHandler.UpdatePaymentStatus)
	}

	return r
}
