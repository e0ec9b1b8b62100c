package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"quiz_master_backend/internal/config"
	"quiz_master_backend/internal/controller"
	"quiz_master_backend/internal/jobs"
	"quiz_master_backend/internal/repository"
	"quiz_master_backend/internal/service"
	"quiz_master_backend/internal/util"
	"quiz_master_backend/pkg/cache"
	"quiz_master_backend/pkg/configwatcher"
	"quiz_master_backend/pkg/database"
	"quiz_master_backend/pkg/logger"
	"quiz_master_backend/pkg/mailer"
	"quiz_master_backend/pkg/monitoring"
	"quiz_master_backend/pkg/security"
	"quiz_master_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ConfigFile 热更新监听的配置文件
const ConfigFile = "configs/config.yaml"

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	Cache           cache.Cache
	services        *services
	scheduler       *jobs.Scheduler
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user     *repository.UserRepository
	subject  *repository.SubjectRepository
	chapter  *repository.ChapterRepository
	quiz     *repository.QuizRepository
	question *repository.QuestionRepository
	attempt  *repository.AttemptRepository
}

type services struct {
	auth      *service.AuthService
	storage   *service.StorageService
	catalog   *service.CatalogService
	quiz      *service.QuizService
	question  *service.QuestionService
	attempt   *service.AttemptService
	dashboard *service.DashboardService
	export    *service.ExportService
	reminder  *service.ReminderService
	mailer    *mailer.Reloadable
}

type controllers struct {
	auth      *controller.AuthController
	catalog   *controller.CatalogController
	quiz      *controller.QuizController
	attempt   *controller.AttemptController
	dashboard *controller.DashboardController
	export    *controller.ExportController
	health    *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:     repository.NewUserRepository(db),
		subject:  repository.NewSubjectRepository(db),
		chapter:  repository.NewChapterRepository(db),
		quiz:     repository.NewQuizRepository(db),
		question: repository.NewQuestionRepository(db),
		attempt:  repository.NewAttemptRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB) *services {
	s := &services{}
	loc := cfg.App.Location()

	s.storage = service.NewStorageService(cfg)
	s.mailer = mailer.NewReloadable(cfg.Mail)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.catalog = service.NewCatalogService(repos.subject, repos.chapter, repos.quiz, a.Cache)
	s.quiz = service.NewQuizService(
		repos.quiz,
		repos.question,
		repos.chapter,
		repos.subject,
		a.Cache,
		loc,
		cfg.Cache.AvailableQuizTTL(),
	)
	s.question = service.NewQuestionService(repos.quiz, repos.question, a.Cache)
	s.attempt = service.NewAttemptService(
		db,
		repos.quiz,
		repos.question,
		repos.attempt,
		repos.chapter,
		repos.subject,
		cfg,
	)
	s.dashboard = service.NewDashboardService(
		s.attempt,
		s.quiz,
		repos.user,
		repos.subject,
		repos.chapter,
		repos.quiz,
		repos.question,
		repos.attempt,
	)
	s.export = service.NewExportService(
		s.attempt,
		repos.user,
		repos.quiz,
		repos.chapter,
		repos.subject,
		repos.attempt,
		s.storage,
		loc,
	)
	s.reminder = service.NewReminderService(
		repos.user,
		repos.quiz,
		repos.attempt,
		s.quiz,
		s.mailer,
		cfg.App.Name,
		cfg.App.URL,
		loc,
	)

	// 配置热更新：缓存 TTL 与邮件服务器
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		s.quiz.SetCacheTTL(newCfg.Cache.AvailableQuizTTL())
		s.mailer.Reload(newCfg.Mail)
	})

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:      controller.NewAuthController(s.auth),
		catalog:   controller.NewCatalogController(s.catalog),
		quiz:      controller.NewQuizController(s.quiz, s.question, s.attempt),
		attempt:   controller.NewAttemptController(s.attempt),
		dashboard: controller.NewDashboardController(s.dashboard),
		export:    controller.NewExportController(s.export),
		health:    controller.NewHealthController(db, a.Cache),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(
		cfg.RateLimit.MaxRequests,
		time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute,
		"/metrics", "/api/health",
	))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// initCache Redis 只作缓存，连接失败时退化为无缓存
func (a *App) initCache(cfg *config.Config) {
	a.Cache = cache.NoopCache{}
	if !cfg.Redis.Enabled {
		return
	}
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Redis unavailable, caching disabled", zap.Error(err))
		return
	}
	a.Redis = rdb
	a.Cache = cache.NewRedisCache(rdb, cfg.Cache.Prefix)
}

func (a *App) startBackgroundTasks(s *services) {
	if !a.Config.Scheduler.Enabled {
		logger.Log.Info("Scheduler disabled")
		return
	}

	a.scheduler = jobs.NewScheduler(a.Config.App.Location())
	err := jobs.RegisterAll(a.scheduler, a.Config.Scheduler, jobs.Deps{
		Reminders: s.reminder,
		Attempts:  s.attempt,
		Quizzes:   s.quiz,
		Storage:   s.storage,
	})
	if err != nil {
		logger.Log.Fatal("Failed to register scheduled jobs", zap.Error(err))
	}
	a.scheduler.Start()
	logger.Log.Info("Scheduler started", zap.Int("jobs", a.scheduler.Len()))
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	gin.SetMode(cfg.Server.Mode)
	debug := cfg.Server.Mode == gin.DebugMode

	db, err := database.InitDB(&cfg.Database, debug)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}

	repos := app.initRepositories(db)

	// release 模式下默认不迁移，需通过 -migrate 显式开启
	if debug || cfg.ForceMigrate {
		if err := database.AutoMigrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
		if err := service.NewAuthService(repos.user, cfg).EnsureAdmin(); err != nil {
			logger.Log.Fatal("Failed to seed admin account", zap.Error(err))
		}
	}
	if cfg.MigrateOnly {
		return app
	}

	app.initCache(cfg)
	services := app.initServices(repos, cfg, db)
	app.services = services
	controllers := app.initControllers(services, db)

	// 监控初始化
	monitoring.Init()
	if err := util.RegisterValidators(); err != nil {
		logger.Log.Fatal("Failed to register validators", zap.Error(err))
	}

	router := gin.Default()
	app.Router = router

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)
	app.startBackgroundTasks(services)

	return app
}

func (a *App) watchConfig(ctx context.Context) {
	err := configwatcher.WatchConfig(ctx, ConfigFile, func(newCfg *config.Config) {
		for _, cb := range a.configCallbacks {
			cb(newCfg)
		}
	})
	if err != nil {
		logger.Log.Warn("Config hot reload disabled", zap.String("path", filepath.Clean(ConfigFile)), zap.Error(err))
	}
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go a.watchConfig(watchCtx)

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.scheduler != nil {
		a.scheduler.Stop(ctx)
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
