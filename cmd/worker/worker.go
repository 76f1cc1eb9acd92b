package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/darshild078/ytvideo-chatbot/internal/ai"
	"github.com/darshild078/ytvideo-chatbot/internal/config"
	"github.com/darshild078/ytvideo-chatbot/internal/indexer"
	"github.com/darshild078/ytvideo-chatbot/internal/logger"
	"github.com/darshild078/ytvideo-chatbot/internal/progress"
	"github.com/darshild078/ytvideo-chatbot/internal/queue"
	"github.com/darshild078/ytvideo-chatbot/internal/telemetry"
	"github.com/darshild078/ytvideo-chatbot/internal/transcript"
	"github.com/darshild078/ytvideo-chatbot/internal/vectorstore"
	"github.com/darshild078/ytvideo-chatbot/internal/youtube"
	"github.com/darshild078/ytvideo-chatbot/models"
	"github.com/darshild078/ytvideo-chatbot/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("ytvideo-chatbot-worker")
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

	// Connect to Redis for progress events
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

	// Gemini embedding client
	embedder, err := ai.NewEmbeddingClient(cfg.GeminiAPIKey, cfg.EmbeddingModel)
	if err != nil {
		log.Fatal("Failed to create embedding client:", err)
	}
	defer embedder.Close()

	// YouTube metadata client
	ytClient, err := youtube.NewClient(context.Background(), cfg.YouTubeAPIKey)
	if err != nil {
		log.Fatal("Failed to create YouTube client:", err)
	}

	transcriptClient := transcript.NewClient(cfg.TranscriptServiceURL,
		time.Duration(cfg.TranscriptTimeout)*time.Second)

	pipeline := indexer.NewPipeline(embedder, store, cfg.EmbedBatchSize)
	processor := queue.NewIngestProcessor(
		repo,
		transcriptClient,
		ytClient,
		pipeline,
		store,
		publisher,
		metrics,
		cfg.TargetChunkTokens,
		cfg.ChunkOverlap,
		cfg.MaxSegments,
	)

	// Background sweep for orphaned vector rows
	sweeper := services.NewSweeper(repo, store, time.Duration(cfg.SweepInterval)*time.Minute)
	if err := sweeper.Start(); err != nil {
		logger.Warn("Vector sweeper disabled", "error", err)
	}
	defer sweeper.Stop()

	// Create Asynq server
	server := asynq.NewServer(
		config.AsynqRedisOpt(cfg),
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				queue.QueueCritical: 6,
				"default":           3,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.Handle(queue.TypeVideoIngest, processor)

	logger.Info("Starting ingestion worker",
		"concurrency", cfg.WorkerConcurrency,
		"queues", "critical(6), default(3)")

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
