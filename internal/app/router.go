package app

import (
	"quiz_master_backend/docs"
	"quiz_master_backend/internal/config"
	"quiz_master_backend/internal/middleware"
	"quiz_master_backend/internal/model"
	"quiz_master_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		a.registerUserRoutes(authGroup, c)
	}

	// 3. 管理员相关接口
	a.registerAdminRoutes(router, c, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/auth/register", c.auth.Register)
		public.POST("/auth/login", c.auth.Login)
		public.POST("/auth/admin/login", c.auth.AdminLogin)
	}
}

func (a *App) registerUserRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/auth/me", c.auth.Me)
	group.GET("/users/:id", c.auth.GetUser)
	group.GET("/dashboard", c.dashboard.GetUserDashboard)

	// 浏览
	group.GET("/subjects", c.catalog.ListSubjects)
	group.GET("/subjects/:id", c.catalog.GetSubject)
	group.GET("/subjects/:id/chapters", c.catalog.ListChapters)
	group.GET("/chapters/:id", c.catalog.GetChapter)
	group.GET("/chapters/:id/quizzes", c.quiz.ListByChapter)
	group.GET("/quizzes/available", c.quiz.ListAvailable)
	group.GET("/quizzes/:id", c.quiz.GetQuiz)
	group.GET("/quizzes/:id/availability", c.quiz.CheckAvailability)

	// 答题仅限普通用户
	attempts := group.Group("")
	attempts.Use(middleware.RoleMiddleware(model.RoleUser))
	{
		attempts.POST("/quizzes/:id/attempts", c.attempt.StartAttempt)
		attempts.GET("/attempts", c.attempt.ListMyAttempts)
		attempts.GET("/attempts/:id", c.attempt.GetAttempt)
		attempts.GET("/attempts/:id/questions", c.attempt.GetQuestions)
		attempts.POST("/attempts/:id/submit", c.attempt.SubmitAttempt)
		attempts.GET("/attempts/:id/results", c.attempt.GetResults)
		attempts.POST("/exports/my-attempts", c.export.ExportMyAttempts)
	}

	group.GET("/exports/:name", c.export.Download)
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg.JWT.Secret), middleware.RoleMiddleware(model.RoleAdmin))
	{
		admin.GET("/dashboard", c.dashboard.GetAdminDashboard)
		admin.GET("/users", c.auth.ListUsers)

		admin.POST("/subjects", c.catalog.CreateSubject)
		admin.PUT("/subjects/:id", c.catalog.UpdateSubject)
		admin.DELETE("/subjects/:id", c.catalog.DeleteSubject)
		admin.POST("/subjects/:id/chapters", c.catalog.CreateChapter)

		admin.PUT("/chapters/:id", c.catalog.UpdateChapter)
		admin.DELETE("/chapters/:id", c.catalog.DeleteChapter)
		admin.POST("/chapters/:id/quizzes", c.quiz.CreateQuiz)

		admin.PUT("/quizzes/:id", c.quiz.UpdateQuiz)
		admin.DELETE("/quizzes/:id", c.quiz.DeleteQuiz)
		admin.POST("/quizzes/:id/lock", c.quiz.LockQuiz)
		admin.POST("/quizzes/:id/unlock", c.quiz.UnlockQuiz)
		admin.GET("/quizzes/:id/questions", c.quiz.ListQuestions)
		admin.POST("/quizzes/:id/questions", c.quiz.CreateQuestion)

		admin.GET("/questions/:id", c.quiz.GetQuestion)
		admin.PUT("/questions/:id", c.quiz.UpdateQuestion)
		admin.DELETE("/questions/:id", c.quiz.DeleteQuestion)

		admin.POST("/exports/users", c.export.ExportUsers)
		admin.POST("/exports/quiz-statistics", c.export.ExportQuizStatistics)
	}
}
