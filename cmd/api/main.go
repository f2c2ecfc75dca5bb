// @title           Daylight Matching Service API
// @version         1.0
// @description     이벤트 참가자 성향 기반 그룹 매칭 API
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.email  support@daylight.example

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8000
// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	_ "daylight-matching-api/docs" // Swagger docs import

	"daylight-matching-api/internal/client"
	"daylight-matching-api/internal/config"
	"daylight-matching-api/internal/database"
	"daylight-matching-api/internal/job"
	"daylight-matching-api/internal/lock"
	"daylight-matching-api/internal/metrics"
	"daylight-matching-api/internal/router"
	"daylight-matching-api/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logger.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Set Gin mode
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("Starting Matching Service",
		zap.String("port", cfg.Server.Port),
		zap.String("mode", cfg.Server.Mode),
		zap.String("base_path", cfg.Server.BasePath),
		zap.Duration("run_timeout", cfg.Matching.RunTimeout),
	)

	// Initialize metrics
	m := metrics.New(logger)
	logger.Info("Metrics initialized")

	// Per-event lock: redis when configured so replicas exclude each other
	var locker lock.Locker = lock.NewLocalLocker()
	var publishers []client.AssignmentPublisher
	if cfg.Redis.Enabled() {
		rdb, err := database.NewRedis(cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis unavailable, falling back to in-process lock", zap.Error(err))
		} else {
			locker = lock.NewRedisLocker(rdb, logger)
			publishers = append(publishers, client.NewRedisPublisher(rdb, logger, m))
			defer rdb.Close()
		}
	} else {
		logger.Warn("Redis not configured, using in-process lock (single replica only)")
	}

	// Notification service receives confirmed seats
	if cfg.Notification.BaseURL != "" {
		publishers = append(publishers, client.NewNotificationClient(
			cfg.Notification.BaseURL,
			cfg.Internal.APIKey,
			cfg.Notification.Timeout,
			logger,
			m,
		))
		logger.Info("Notification client initialized", zap.String("base_url", cfg.Notification.BaseURL))
	}

	// Attempt archive
	var archiver client.AttemptArchiver = client.NoOpArchiver{}
	if cfg.S3.Enabled() {
		s3Archiver, err := client.NewS3Archiver(&cfg.S3)
		if err != nil {
			logger.Warn("Failed to initialize S3 archiver, attempts will not be archived", zap.Error(err))
		} else {
			archiver = s3Archiver
			logger.Info("S3 archiver initialized",
				zap.String("bucket", cfg.S3.Bucket),
				zap.String("region", cfg.S3.Region),
			)
		}
	} else {
		logger.Warn("S3 configuration incomplete, attempt archiving disabled")
	}

	routerCfg := router.Config{
		Logger:         logger,
		JWTSecret:      cfg.JWT.Secret,
		InternalAPIKey: cfg.Internal.APIKey,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		BasePath:       cfg.Server.BasePath,
		Metrics:        m,
		Locker:         locker,
		Publisher:      client.NewMultiPublisher(logger, publishers...),
		Archiver:       archiver,
		Matching: service.Options{
			Defaults:   cfg.Matching.Formation(),
			RunTimeout: cfg.Matching.RunTimeout,
			LockTTL:    cfg.Matching.LockTTL,
			LockWait:   cfg.Matching.LockWait,
		},
	}

	// Until the database is reachable only the ops routes are served
	handler := &swappableHandler{}
	handler.Store(router.Setup(routerCfg))

	scheduler := cron.New()
	var statsDone chan struct{}
	var readyOnce sync.Once
	onConnect := func(db *gorm.DB) {
		readyOnce.Do(func() {
			if cfg.Database.AutoMigrate {
				if err := database.AutoMigrateWithRetry(db, logger, 3); err != nil {
					logger.Warn("Failed to run database migrations", zap.Error(err))
				} else {
					logger.Info("Database migrations completed")
				}
			}
			if err := database.RegisterMetricsCallbacks(db, m); err != nil {
				logger.Warn("Failed to register database metrics callbacks", zap.Error(err))
			}
			statsDone = database.StartDBStatsCollector(db, m, 15*time.Second)

			collector := metrics.NewBusinessMetricsCollector(db, m, logger)
			if err := job.Schedule(scheduler, cfg.Jobs.MetricsSchedule, job.NewMetricsJob(collector, logger), logger); err != nil {
				logger.Warn("Failed to schedule metrics job", zap.Error(err))
			}

			withDB := routerCfg
			withDB.DB = db
			handler.Store(router.Setup(withDB))
			logger.Info("Matching routes enabled")
		})
	}

	// Initialize database (실패해도 앱은 시작됨 - EKS pod 생존 보장)
	dbConfig := database.Config{
		DSN:             cfg.Database.GetDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	db, err := database.New(dbConfig)
	if err != nil {
		logger.Warn("⚠️  Failed to connect to database on startup, will retry in background",
			zap.Error(err))
		database.NewAsync(dbConfig, 5*time.Second, logger, onConnect)
	} else {
		logger.Info("Database connected successfully")
		database.SetDB(db)
		onConnect(db)
	}

	scheduler.Start()

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Matching Service started successfully",
			zap.String("address", srv.Addr),
			zap.String("swagger", fmt.Sprintf("http://localhost:%s%s/swagger/index.html", cfg.Server.Port, cfg.Server.BasePath)),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	// waits for an in-flight onConnect and prevents a late one
	readyOnce.Do(func() {})
	<-scheduler.Stop().Done()
	if statsDone != nil {
		close(statsDone)
	}
	if db := database.GetDB(); db != nil {
		if err := database.Close(db); err != nil {
			logger.Warn("Failed to close database", zap.Error(err))
		}
	}

	logger.Info("Server exited gracefully")
}

// swappableHandler lets the async database connection replace the ops-only router
type swappableHandler struct {
	current atomic.Pointer[gin.Engine]
}

func (h *swappableHandler) Store(engine *gin.Engine) {
	h.current.Store(engine)
}

func (h *swappableHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.current.Load().ServeHTTP(w, r)
}

// initLogger initializes the zap logger with the specified level
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      zapLevel == zapcore.DebugLevel,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}
