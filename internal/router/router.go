// Package router assembles the gin engine: ambient middleware, the public
// account and health routes, and the bearer-protected task API.
package router

import (
	"time"

	"task-tracker/internal/config"
	"task-tracker/internal/handlers"
	"task-tracker/internal/middleware"
	"task-tracker/internal/monitoring"
	"task-tracker/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Deps struct {
	Tasks  services.TaskService
	Users  services.UserService
	Tokens services.TokenService
	Chat   handlers.Responder

	// Optional.
	Warmer  handlers.TaskWarmer
	Metrics *monitoring.Metrics
	Health  *monitoring.HealthChecker
}

func New(cfg config.ServerConfig, deps Deps) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if deps.Metrics == nil {
		deps.Metrics = monitoring.NewMetrics()
	}
	if deps.Health == nil {
		deps.Health = monitoring.NewHealthChecker("")
	}

	r := gin.New()
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	r.Use(middleware.RecoveryWithLog())
	r.Use(middleware.RequestLogger())
	r.Use(deps.Metrics.Middleware())

	r.GET("/metrics", deps.Metrics.Handler())
	r.GET("/health", deps.Health.HealthHandler())
	r.GET("/healthz", deps.Health.LivenessHandler())
	r.GET("/readyz", deps.Health.ReadinessHandler())

	authHandler := handlers.NewAuthHandler(deps.Users, deps.Tokens)
	if deps.Warmer != nil {
		authHandler.WithWarmer(deps.Warmer)
	}
	taskHandler := handlers.NewTaskHandler(deps.Tasks, deps.Metrics)
	chatHandler := handlers.NewChatHandler(deps.Tasks, deps.Chat)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		auth.POST("/register", authHandler.Register)
		auth.POST("/token", authHandler.Token)
	}

	protected := api.Group("", middleware.Authenticate(deps.Tokens))
	{
		protected.GET("/me", authHandler.Me)

		tasks := protected.Group("/tasks")
		tasks.GET("", taskHandler.ListTasks)
		tasks.POST("", taskHandler.CreateTask)
		tasks.GET("/:id", taskHandler.GetTask)
		tasks.PUT("/:id", taskHandler.UpdateTask)
		tasks.PATCH("/:id/complete", taskHandler.ToggleComplete)
		tasks.DELETE("/:id", taskHandler.DeleteTask)

		protected.POST("/chat", chatHandler.Chat)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}

	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}

	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}

	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
