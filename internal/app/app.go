package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"teacher_connect_backend/internal/cache"
	"teacher_connect_backend/internal/config"
	"teacher_connect_backend/internal/controller"
	"teacher_connect_backend/internal/repository"
	"teacher_connect_backend/internal/service"
	"teacher_connect_backend/internal/util"
	"teacher_connect_backend/pkg/configwatcher"
	"teacher_connect_backend/pkg/database"
	"teacher_connect_backend/pkg/logger"
	"teacher_connect_backend/pkg/monitoring"
	"teacher_connect_backend/pkg/security"
	"teacher_connect_backend/pkg/tracing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user       *repository.UserRepository
	assessment *repository.AssessmentRepository
	attempt    *repository.AttemptRepository
	credit     *repository.CreditRepository
}

type services struct {
	auth       *service.AuthService
	storage    *service.StorageService
	assessment *service.AssessmentService
	attempt    *service.AttemptService
	credit     *service.CreditService
}

type controllers struct {
	auth       *controller.AuthController
	assessment *controller.AssessmentController
	attempt    *controller.AttemptController
	credit     *controller.CreditController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) applyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:       repository.NewUserRepository(db),
		assessment: repository.NewAssessmentRepository(db),
		attempt:    repository.NewAttemptRepository(db),
		credit:     repository.NewCreditRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	var lb cache.LeaderboardCache
	if rdb != nil {
		lb = cache.NewLeaderboardCache(rdb)
	}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.credit = service.NewCreditService(repos.credit, repos.user, lb)
	s.assessment = service.NewAssessmentService(repos.assessment, repos.attempt, s.storage)
	s.attempt = service.NewAttemptService(repos.attempt, repos.assessment, s.credit, cfg)
	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		auth:       controller.NewAuthController(s.auth),
		assessment: controller.NewAssessmentController(s.assessment, s.attempt),
		attempt:    controller.NewAttemptController(s.attempt),
		credit:     controller.NewCreditController(s.credit),
		health:     controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimitFromConfig(cfg.RateLimit))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// New 组装路由与服务，db/rdb 由调用方创建，rdb 可为空
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *App {
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	app.services = app.initServices(repos, cfg, rdb)
	controllers := app.initControllers(app.services)

	app.RegisterConfigCallback(func(c *config.Config) { logger.SetMode(c.Server.Mode) })
	app.RegisterConfigCallback(app.services.attempt.ApplyConfig)

	// 监控初始化
	monitoring.Init()

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Server.Mode == gin.DebugMode {
		router.Use(gin.Logger())
	}
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}
	return app
}

// NewApp 连接 MySQL / Redis / Jaeger 并组装应用
func NewApp(cfg *config.Config) (*App, error) {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")
	gin.SetMode(cfg.Server.Mode)

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		return nil, errors.Wrap(err, "initialize database")
	}

	// release 模式下只有显式要求时才迁移
	if cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode {
		if err := database.Migrate(db); err != nil {
			return nil, errors.Wrap(err, "migrate database")
		}
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = database.InitRedis(&cfg.Redis)
		if err != nil {
			return nil, errors.Wrap(err, "initialize redis")
		}
	}

	app := New(cfg, db, rdb)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("teacher-connect", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			return nil, errors.Wrap(err, "initialize tracing")
		}
		app.tracer = tp
	}
	return app, nil
}

// startBackgroundTasks 超时作答扫描、配置热更新；Redis 启用时先从流水重建排行榜
func (a *App) startBackgroundTasks(ctx context.Context) {
	if a.Redis != nil {
		if _, err := a.services.credit.RebuildLeaderboard(ctx); err != nil {
			logger.Log.Warn("leaderboard rebuild failed", zap.Error(err))
		}
	}

	if secs := a.Config.Assessment.SweepIntervalSeconds; secs > 0 {
		go a.services.attempt.RunSweeper(ctx, time.Duration(secs)*time.Second)
	}

	if a.Config.ConfigFile != "" {
		go func() {
			if err := configwatcher.Watch(ctx, a.Config.ConfigFile, a.applyConfig); err != nil {
				logger.Log.Error("config watcher stopped", zap.Error(err))
			}
		}()
	}
}

func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundTasks(ctx)

	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-quit:
	}
	logger.Log.Info("Shutting down server...")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	logger.Log.Info("Server exiting")
	return nil
}
