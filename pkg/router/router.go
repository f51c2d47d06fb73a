package router

import (
	"net/http"
	"time"

	"ai-persona-chat/internal/api"
	"ai-persona-chat/internal/sync"
	"ai-persona-chat/pkg/config"
	"ai-persona-chat/pkg/errors"
	"ai-persona-chat/pkg/health"
	"ai-persona-chat/pkg/jwt"
	"ai-persona-chat/pkg/logger"
	"ai-persona-chat/pkg/middleware"
	"ai-persona-chat/pkg/observability"
	"ai-persona-chat/pkg/validator"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Deps carries everything the router mounts
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	JWT        *jwt.Service
	Auth       *api.AuthHandler
	Characters *api.CharacterHandler
	Messages   *api.MessageHandler
	Chat       *api.ChatHandler
	Health     *health.Checker
	SyncHub    *sync.Hub
	Validator  *validator.OpenAPIValidator
}

// New assembles the engine: request logging, error handling, recovery,
// rate limiting, CORS, optional schema validation, then the routes.
func New(deps Deps) *gin.Engine {
	if deps.Config.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(logger.Middleware(deps.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())

	rateLimiter := middleware.NewRateLimiter(deps.Logger, middleware.RateLimiterOptions{
		Limit:          rate.Limit(deps.Config.Security.RateLimit),
		Burst:          deps.Config.Security.RateLimitBurst,
		ExpiryDuration: time.Hour,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	})
	engine.Use(rateLimiter.Middleware())

	engine.Use(corsMiddleware(deps.Config.Security.AllowedOrigins))

	if deps.Validator != nil {
		engine.Use(deps.Validator.Middleware())
	}

	jwtAuth := middleware.JWTAuthMiddleware(deps.JWT, deps.Logger)

	apiGroup := engine.Group("/api")
	{
		deps.Auth.RegisterRoutes(apiGroup.Group("/auth"), jwtAuth)

		characters := apiGroup.Group("/characters")
		characters.Use(jwtAuth)
		deps.Characters.RegisterRoutes(characters)

		messages := apiGroup.Group("/messages")
		messages.Use(jwtAuth)
		deps.Messages.RegisterRoutes(messages)

		chat := apiGroup.Group("/chat")
		chat.Use(jwtAuth)
		deps.Chat.RegisterRoutes(chat)

		apiGroup.GET("/health", deps.Health.Handler())
	}

	engine.GET("/ws/sync", sync.ServeWs(deps.SyncHub, deps.JWT, deps.Logger))

	engine.Static("/uploads", deps.Config.Uploads.Dir)

	engine.GET("/metrics", observability.MetricsHandler())

	return engine
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (allowed["*"] || allowed[origin]) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Authorization, Origin, Upgrade, Connection")
			c.Writer.Header().Set("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
