package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"online_exam_backend/internal/config"
	"online_exam_backend/internal/controller"
	"online_exam_backend/internal/repository"
	"online_exam_backend/internal/service"
	"online_exam_backend/internal/settings"
	"online_exam_backend/pkg/configwatcher"
	"online_exam_backend/pkg/database"
	"online_exam_backend/pkg/logger"
	"online_exam_backend/pkg/monitoring"
	"online_exam_backend/pkg/security"
	"online_exam_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	Settings        *settings.Holder
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	exam        *repository.ExamRepository
	assignment  *repository.AssignmentRepository
	attempt     *repository.AttemptRepository
	violation   *repository.ViolationRepository
	feedback    *repository.FeedbackRepository
	certificate *repository.CertificateRepository
}

type services struct {
	storage     *service.StorageService
	monitorHub  *service.MonitorHub
	grading     *service.GradingService
	violation   *service.ViolationService
	attempt     *service.AttemptService
	assignment  *service.AssignmentService
	exam        *service.ExamService
	deadline    *service.DeadlineService
	certificate *service.CertificateService
	feedback    *service.FeedbackService
}

type controllers struct {
	attempt  *controller.AttemptController
	exam     *controller.ExamController
	monitor  *controller.MonitorController
	settings *controller.SettingsController
	health   *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		exam:        repository.NewExamRepository(db),
		assignment:  repository.NewAssignmentRepository(db),
		attempt:     repository.NewAttemptRepository(db),
		violation:   repository.NewViolationRepository(db),
		feedback:    repository.NewFeedbackRepository(db),
		certificate: repository.NewCertificateRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(&cfg.Storage)
	s.monitorHub = service.NewMonitorHub(rdb)

	s.grading = service.NewGradingService(db, repos.exam, repos.attempt, s.monitorHub)
	s.violation = service.NewViolationService(db, repos.exam, repos.attempt, repos.violation, s.monitorHub)
	s.attempt = service.NewAttemptService(db, repos.exam, repos.assignment, repos.attempt, repos.violation, s.grading, s.monitorHub)
	s.assignment = service.NewAssignmentService(db, repos.exam, repos.assignment, repos.attempt, s.monitorHub)
	s.exam = service.NewExamService(db, repos.exam)
	s.deadline = service.NewDeadlineService(repos.exam, repos.attempt, s.attempt, cfg.Exam.DeadlineGrace())
	s.certificate = service.NewCertificateService(repos.exam, repos.attempt, repos.certificate, s.storage)
	s.feedback = service.NewFeedbackService(repos.exam, repos.attempt, repos.feedback)

	return s
}

func (a *App) initControllers(s *services, repos *repositories) *controllers {
	return &controllers{
		attempt:  controller.NewAttemptController(s.assignment, s.attempt, s.violation, s.grading, s.certificate),
		exam:     controller.NewExamController(s.exam, s.assignment, s.feedback),
		monitor:  controller.NewMonitorController(s.monitorHub, repos.exam),
		settings: controller.NewSettingsController(a.Settings),
		health:   controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// assemble builds everything above the database and redis handles.
func assemble(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *App {
	app := &App{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Settings: settings.NewHolder(),
	}
	app.Settings.ReplaceIfAbsent(settings.FromConfig(cfg.Settings))

	repos := app.initRepositories(db)
	app.services = app.initServices(repos, cfg, db, rdb)
	controllers := app.initControllers(app.services, repos)

	monitoring.Init()

	if cfg.Server.Mode == gin.ReleaseMode || cfg.Server.Mode == gin.TestMode {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.RegisterConfigCallback(func(c *config.Config) {
		logger.SetMode(c.Server.Mode)
	})
	app.RegisterConfigCallback(func(c *config.Config) {
		app.Settings.Replace(settings.FromConfig(c.Settings))
	})

	return app
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	if cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := assemble(cfg, db, rdb)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	return app
}

// startBackgroundTasks runs the monitor relay, the deadline sweep and the
// config watcher until ctx is cancelled. The returned cron is nil when the
// sweep is disabled.
func (a *App) startBackgroundTasks(ctx context.Context) *cron.Cron {
	go a.services.monitorHub.Run(ctx)

	c, err := a.services.deadline.Start(a.Config.Exam.DeadlineSweepCron)
	if err != nil {
		logger.Log.Error("deadline sweep not scheduled", zap.String("spec", a.Config.Exam.DeadlineSweepCron), zap.Error(err))
	}

	if a.Config.ConfigFile != "" {
		go configwatcher.WatchConfig(ctx, a.Config.ConfigFile, func(newCfg *config.Config) {
			for _, cb := range a.configCallbacks {
				cb(newCfg)
			}
		})
	}
	return c
}

func (a *App) Run() {
	defer logger.Log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper := a.startBackgroundTasks(ctx)

	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	if sweeper != nil {
		<-sweeper.Stop().Done()
	}
	// 关闭监考 WebSocket 与配置监听
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("Server forced to shutdown:", err)
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	log.Println("Server exiting")
}
