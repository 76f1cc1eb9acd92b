package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/darshild078/ytvideo-chatbot/internal/ai"
	"github.com/darshild078/ytvideo-chatbot/internal/config"
	"github.com/darshild078/ytvideo-chatbot/internal/logger"
	"github.com/darshild078/ytvideo-chatbot/internal/progress"
	"github.com/darshild078/ytvideo-chatbot/internal/rag"
	"github.com/darshild078/ytvideo-chatbot/internal/telemetry"
	"github.com/darshild078/ytvideo-chatbot/internal/vectorstore"
	"github.com/darshild078/ytvideo-chatbot/middleware"
	"github.com/darshild078/ytvideo-chatbot/models"
	"github.com/darshild078/ytvideo-chatbot/routes"
	"github.com/darshild078/ytvideo-chatbot/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	// Tracing and metrics
	shutdownTracer, err := telemetry.InitTracer("ytvideo-chatbot-api")
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	repo := models.NewRepository(mongoClient.Database(cfg.DBName))

	// Connect to Redis
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()
	publisher := progress.NewRedisPublisher(rdb)

	// Connect to Postgres and ensure the vector schema exists
	pool, err := config.ConnectPostgres(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Postgres:", err)
	}
	defer pool.Close()
	store := vectorstore.NewStore(pool, cfg.VectorTable, cfg.VectorDimensions)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := store.EnsureSchema(ctx); err != nil {
			cancel()
			log.Fatal("Failed to ensure vector schema:", err)
		}
		cancel()
	}

	// Gemini clients
	gemini, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiTier)
	if err != nil {
		log.Fatal("Failed to create Gemini client:", err)
	}
	defer gemini.Close()
	embedder, err := ai.NewEmbeddingClient(cfg.GeminiAPIKey, cfg.EmbeddingModel)
	if err != nil {
		log.Fatal("Failed to create embedding client:", err)
	}
	defer embedder.Close()

	orchestrator := rag.NewOrchestrator(
		ai.NewCachedQueryEmbedder(embedder, rdb),
		store,
		rag.NewStageOne(gemini, cfg.Stage1Model),
		rag.NewStageTwo(gemini, cfg.Stage2Model),
		metrics,
		rag.Options{
			Timeout:         time.Duration(cfg.QueryTimeout) * time.Second,
			SearchOverfetch: cfg.SearchOverfetch,
			RetrieveTopK:    cfg.RetrieveTopK,
			FilterTopK:      cfg.FilterTopK,
		},
	)

	// Job queue client for ingestion submissions
	asynqClient := asynq.NewClient(config.AsynqRedisOpt(cfg))
	defer asynqClient.Close()
	inspector := asynq.NewInspector(config.AsynqRedisOpt(cfg))
	defer inspector.Close()

	exporter := services.NewExportService(repo)

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("ytvideo-chatbot-api"))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	// Setup routes
	routes.SetupVideoRoutes(router, repo, asynqClient, inspector, publisher,
		time.Duration(cfg.IngestTimeout)*time.Second)
	routes.SetupChatRoutes(router, repo, orchestrator, exporter)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
