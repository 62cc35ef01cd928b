package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/eduprep/mocktest-backend/internal/config"
	"github.com/eduprep/mocktest-backend/internal/handler"
	"github.com/eduprep/mocktest-backend/internal/middleware"
	"github.com/eduprep/mocktest-backend/internal/response"
	"github.com/eduprep/mocktest-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth   *handler.AuthHandler
	Portal *handler.PortalHandler
	WS     *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Auth Group (Public) ────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/student/login", handlers.Auth.StudentLogin)
	}

	// ─── 2. Student Group (JWT) ────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(authService))
	{
		studentAPI.GET("/exams", handlers.Portal.ListExams)
		studentAPI.GET("/exams/:exam_id/paper", handlers.Portal.GetExamPaper)

		session := studentAPI.Group("/exams/:exam_id/session")
		{
			session.POST("", handlers.Portal.StartSession)
			session.GET("/state", handlers.Portal.GetSessionState)
			session.POST("/answer", handlers.Portal.SelectAnswer)
			session.POST("/mark", handlers.Portal.ToggleMark)
			session.POST("/goto", handlers.Portal.GoToQuestion)
			session.POST("/next", handlers.Portal.NextQuestion)
			session.POST("/previous", handlers.Portal.PreviousQuestion)
			session.POST("/submit", handlers.Portal.SubmitSession)
			session.GET("/result", handlers.Portal.GetResult)
		}
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/exams/:exam_id/stream", handlers.WS.SessionStream)
	}

	return router
}
