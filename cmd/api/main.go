package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"recipechat/internal/api"
	"recipechat/internal/config"
	"recipechat/internal/conversation"
	"recipechat/internal/imagestore"
	"recipechat/internal/platform/gemini"
	"recipechat/internal/platform/localllm"
	"recipechat/internal/recipe"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configPath := os.Getenv("RECIPECHAT_CONFIG")
	if configPath == "" {
		configPath = "config.json"
	}
	cfg, err := config.Load(configPath, ".env")
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log := newLogger(cfg)

	geminiClient, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.EmbeddingModel)
	if err != nil {
		log.WithError(err).Fatal("error creating gemini client")
	}
	defer geminiClient.Close()

	localLLMClient := localllm.NewClient(cfg.LocalLLMURL, cfg.LocalLLMModel, log)

	dbStore, err := recipe.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("error creating postgres store")
	}
	defer dbStore.Close()

	redisClient, err := newRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.WithError(err).Fatal("error connecting to redis")
	}
	defer redisClient.Close()

	images, staticDir, err := newImageStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("error creating image store")
	}

	handler := api.NewHandler(geminiClient, localLLMClient, dbStore, conversation.NewStore(redisClient), images, log)
	limiter := api.NewRateLimiter(redisClient, api.RateLimitConfig{
		Limit:  cfg.RateLimit,
		Window: cfg.Window(),
	}, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(handler, limiter.Middleware(), cfg.AllowedOrigins, staticDir, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

// newRouter wires the HTTP routes. staticDir, when set, is served under /images.
func newRouter(handler *api.Handler, limit gin.HandlerFunc, allowedOrigins []string, staticDir string, log logrus.FieldLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), api.RequestLogger(log))

	// Configure CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", handler.Health)
	r.POST("/chat", limit, handler.Chat)
	r.POST("/v2/chat", limit, handler.ChatLocal)
	r.GET("/chat/:conversation_id", handler.GetConversation)
	r.DELETE("/chat/:conversation_id", handler.DeleteConversation)
	r.GET("/recipes", handler.GetRecipes)
	r.GET("/recipes/:id", handler.GetRecipe)
	r.GET("/recipes/:id/similar", handler.GetSimilarRecipes)
	r.POST("/recipes/:id/edits", limit, handler.EditRecipe)
	r.DELETE("/recipes/:id", handler.DeleteRecipe)
	r.POST("/recipes/:id/image", handler.UploadImage)
	r.POST("/ingredients/format", handler.FormatIngredients)
	if staticDir != "" {
		r.Static("/images", staticDir)
	}
	return r
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	if cfg.IsProduction() {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("log_level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func newRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// newImageStore uploads to S3 when a bucket is configured and writes to disk
// otherwise. The returned directory is empty for S3.
func newImageStore(ctx context.Context, cfg *config.Config) (api.ImageStore, string, error) {
	if cfg.S3Bucket != "" {
		store, err := imagestore.NewS3Store(ctx, cfg.S3Bucket, cfg.AWSRegion)
		if err != nil {
			return nil, "", err
		}
		return store, "", nil
	}
	disk := imagestore.NewDiskStore(cfg.ImageDir)
	return disk, disk.Dir(), nil
}
