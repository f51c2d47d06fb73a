package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-persona-chat/ai"
	"ai-persona-chat/internal/api"
	historycache "ai-persona-chat/internal/cache"
	"ai-persona-chat/internal/models"
	"ai-persona-chat/internal/service"
	"ai-persona-chat/internal/sync"
	"ai-persona-chat/pkg/cache"
	"ai-persona-chat/pkg/config"
	"ai-persona-chat/pkg/health"
	"ai-persona-chat/pkg/jwt"
	"ai-persona-chat/pkg/logger"
	"ai-persona-chat/pkg/observability"
	"ai-persona-chat/pkg/redis"
	"ai-persona-chat/pkg/resilience"
	"ai-persona-chat/pkg/router"
	"ai-persona-chat/pkg/secrets"
	"ai-persona-chat/pkg/validator"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	godotenv.Load()

	cfg := config.New()

	log := logger.New(logger.Config{
		Level: cfg.Logging.Level,
		JSON:  cfg.Logging.Format == "json",
	})
	logger.SetGlobal(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Secrets come from Vault when enabled, the environment otherwise
	secretsManager, err := secrets.NewVaultManager(log)
	if err != nil {
		log.LogError(err, "Failed to initialize secrets manager")
		os.Exit(1)
	}
	jwtSecret := secretsManager.GetSecretWithDefault(ctx, "jwt_secret", cfg.JWT.Secret)
	llmAPIKey := secretsManager.GetSecretWithDefault(ctx, "anthropic_api_key", cfg.LLM.APIKey)

	shutdownTracing, err := observability.SetupTracing("persona-chat")
	if err != nil {
		log.LogError(err, "Failed to initialize tracing")
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	if _, err := observability.SetupMetrics(); err != nil {
		log.LogError(err, "Failed to initialize metrics")
		os.Exit(1)
	}
	chatMetrics, err := observability.NewChatMetrics()
	if err != nil {
		log.LogError(err, "Failed to register chat metrics")
		os.Exit(1)
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User,
		cfg.Database.Password, cfg.Database.Name, cfg.Database.SSLMode)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.LogError(err, "Failed to connect to database")
		os.Exit(1)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Character{}, &models.Message{}); err != nil {
		log.LogError(err, "Failed to run migrations")
		os.Exit(1)
	}

	// Redis is optional: without it the history cache misses and the
	// websocket hub still relays within this process
	var redisClient *redis.Client
	if client, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}); err != nil {
		log.Warn("Redis unavailable, history caching disabled", "error", err.Error())
	} else {
		redisClient = client
		defer redisClient.Close()
	}

	characterCache := cache.New(cfg.Cache.TTL, cfg.Cache.PurgeWindow, cfg.Cache.MaxSize)
	history := historycache.NewHistoryCache(redisClient, cfg.Redis.HistoryTTL, log)

	jwtService := jwt.NewService(jwtSecret, cfg.JWT.Expiry)

	userService := service.NewUserService(db, log)
	characterService := service.NewCharacterService(db, characterCache, log)
	messageService := service.NewMessageService(db, characterService, history, log)

	llmClient := ai.NewClient(ai.Config{
		BaseURL:   cfg.LLM.BaseURL,
		APIKey:    llmAPIKey,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   cfg.LLM.Timeout,
	}, log)
	breaker := resilience.New(resilience.DefaultConfig("llm"), log)
	chatService := service.NewChatService(db, characterService, llmClient, breaker, history, chatMetrics, log)

	if err := characterService.SeedDefaults(ctx); err != nil {
		log.LogError(err, "Failed to seed default characters")
		os.Exit(1)
	}

	checker := health.NewChecker(log, 30*time.Second)
	checker.RegisterDatabase(func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Ping()
	})
	if redisClient != nil {
		checker.RegisterRedis(func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Ping(pingCtx)
		})
	}
	checker.Register("llm", false, func() (health.Status, string, error) {
		if breaker.GetState() == resilience.StateOpen {
			return health.StatusDegraded, "LLM circuit open, chat sends failing fast", nil
		}
		return health.StatusUp, "LLM upstream accepting requests", nil
	})
	checker.Start()

	hub := sync.NewHub(log)
	go hub.Run()
	defer hub.Stop()

	var schemaValidator *validator.OpenAPIValidator
	if _, err := os.Stat(cfg.OpenAPISchema); err == nil {
		schemaValidator, err = validator.NewOpenAPIValidator(cfg.OpenAPISchema)
		if err != nil {
			log.LogError(err, "Failed to load OpenAPI schema")
			os.Exit(1)
		}
	} else {
		log.Warn("OpenAPI schema not found, request validation disabled", "path", cfg.OpenAPISchema)
	}

	engine := router.New(router.Deps{
		Config:     cfg,
		Logger:     log,
		JWT:        jwtService,
		Auth:       api.NewAuthHandler(userService, jwtService, log),
		Characters: api.NewCharacterHandler(characterService, cfg.Uploads.Dir, cfg.Uploads.MaxThumbSize, log),
		Messages:   api.NewMessageHandler(messageService, log),
		Chat:       api.NewChatHandler(chatService, log),
		Health:     checker,
		SyncHub:    hub,
		Validator:  schemaValidator,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	go func() {
		log.Info("Server listening", "port", cfg.Server.Port, "env", cfg.Server.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "Server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Graceful shutdown failed")
	}
}
