package app

import (
	"time"

	"online_exam_backend/docs"
	"online_exam_backend/internal/config"
	"online_exam_backend/internal/middleware"
	"online_exam_backend/internal/model"
	"online_exam_backend/pkg/monitoring"
	"online_exam_backend/pkg/security"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.GET("/system-settings", c.settings.Get)
	}

	// 2. 需要授权的路由，按用户限流
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	authGroup := router.Group("/api")
	authGroup.Use(
		middleware.AuthMiddleware(cfg.JWT.Secret),
		security.RateLimiter(cfg.RateLimit.MaxRequests, window, middleware.RateKey),
	)
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(group *gin.RouterGroup, c *controllers) {
	exams := group.Group("/exams")
	{
		exams.GET("", c.exam.ListAvailable)
		exams.GET("/:id", c.exam.Get)
		exams.POST("/:id/feedback", c.exam.CreateFeedback)
	}

	attempts := group.Group("/attempts")
	{
		attempts.POST("/start", c.attempt.Start)
		attempts.GET("", c.attempt.ListMine)
		attempts.GET("/:id", c.attempt.Get)
		attempts.GET("/:id/paper", c.attempt.Paper)
		attempts.POST("/:id/answers", c.attempt.SaveAnswer)
		attempts.POST("/:id/violations", c.attempt.LogViolation)
		attempts.GET("/:id/violations", c.attempt.ListViolations)
		attempts.POST("/:id/submit", c.attempt.Submit)
		attempts.GET("/:id/certificate", c.attempt.Certificate)
	}
}

func (a *App) registerTeacherRoutes(group *gin.RouterGroup, c *controllers) {
	teacher := group.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.POST("/exams", c.exam.Create)
		teacher.POST("/exams/:id/questions/import", c.exam.ImportQuestions)
		teacher.POST("/exams/:id/submit-review", c.exam.SubmitReview)
		teacher.GET("/exams/:id/attempts", c.attempt.ListByExam)
		teacher.POST("/exams/:id/assignments", c.exam.Assign)
		teacher.GET("/exams/:id/assignments", c.exam.ListAssignments)
		teacher.GET("/exams/:id/feedback", c.exam.ListFeedback)
		teacher.GET("/exams/:id/monitor", c.monitor.Monitor)
		teacher.POST("/attempts/:id/answers/:answerId/grade", c.attempt.GradeAnswer)
		teacher.POST("/feedback/:id/respond", c.exam.RespondFeedback)
	}
}

func (a *App) registerAdminRoutes(group *gin.RouterGroup, c *controllers) {
	admin := group.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.PUT("/exams/:id/status", c.exam.SetStatus)
		admin.PUT("/system-settings", c.settings.Update)
	}
}
