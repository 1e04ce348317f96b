package app

import (
	"teacher_connect_backend/docs"
	"teacher_connect_backend/internal/config"
	"teacher_connect_backend/internal/middleware"
	"teacher_connect_backend/internal/model"
	"teacher_connect_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		// 学生/通用 授权接口
		a.registerStudentRoutes(authGroup, c)

		// 教师相关接口
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	student := middleware.RoleMiddleware(model.Student)

	// 测试
	rg.GET("/assessments", c.assessment.ListPublishedAssessments)
	rg.GET("/assessments/:id", c.assessment.GetStudentAssessment)
	rg.POST("/assessments/:id/attempts", student, c.attempt.StartAttempt)

	// 作答
	rg.GET("/attempts", student, c.attempt.ListMyAttempts)
	rg.GET("/attempts/:id", c.attempt.GetAttempt)
	rg.PUT("/attempts/:id/answers", student, c.attempt.SaveAnswers)
	rg.POST("/attempts/:id/submit", student, c.attempt.SubmitAttempt)
	rg.POST("/attempts/:id/abandon", student, c.attempt.AbandonAttempt)

	// 积分
	rg.GET("/credits/balance", student, c.credit.GetBalance)
	rg.GET("/credits/transactions", student, c.credit.ListTransactions)
	rg.GET("/credits/leaderboard", c.credit.GetLeaderboard)
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.POST("/assessments", c.assessment.CreateAssessment)
		teacher.GET("/assessments", c.assessment.ListTeacherAssessments)
		teacher.GET("/assessments/:id", c.assessment.GetTeacherAssessment)
		teacher.GET("/assessments/:id/attempts", c.assessment.ListAssessmentAttempts)
		teacher.POST("/assessments/:id/export", c.assessment.ExportResults)

		teacher.POST("/credits", c.credit.AwardCredits)
	}
}
