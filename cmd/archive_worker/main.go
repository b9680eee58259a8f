package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kingrain94/entitlement-api/internal/config"
	"github.com/kingrain94/entitlement-api/internal/repository/opensearch"
	"github.com/kingrain94/entitlement-api/internal/service/queue"
	"github.com/kingrain94/entitlement-api/internal/worker"
	"github.com/kingrain94/entitlement-api/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	appLogger := logger.NewLogger(os.Getenv("APP_ENV")).Named("archive-worker")
	ctx := context.Background()

	osConfig := config.DefaultOpenSearchConfig()
	osClient, err := osConfig.GetClient()
	if err != nil {
		appLogger.Fatal("Failed to connect to OpenSearch", err)
	}
	osRepo := opensearch.NewRepository(osClient, osConfig)

	s3Config := config.DefaultS3Config()
	s3Client, err := s3Config.GetClient(ctx)
	if err != nil {
		appLogger.Fatal("Failed to create S3 client", err)
	}

	sqsConfig := config.DefaultSQSConfig()
	sqsClient, err := sqsConfig.GetClient(ctx)
	if err != nil {
		appLogger.Fatal("Failed to connect to SQS", err)
	}
	sqsService := queue.NewSQSService(sqsClient, sqsConfig)

	appLogger.Info("Connections established for archive worker")

	workerConfig := config.DefaultArchiveWorkerConfig()
	archiveWorker := worker.NewArchiveWorker(
		sqsService,
		sqsService.ArchiveQueueURL(),
		osRepo,
		s3Client,
		s3Config,
		appLogger,
		workerConfig.Count,
		workerConfig.PollInterval,
	)

	archiveWorker.Start()
	appLogger.Info("Archive worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down worker...")
	archiveWorker.Stop()
	appLogger.Info("Worker stopped")
	appLogger.Sync()
}
