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

	appLogger := logger.NewLogger(os.Getenv("APP_ENV")).Named("history-worker")

	osConfig := config.DefaultOpenSearchConfig()
	osClient, err := osConfig.GetClient()
	if err != nil {
		appLogger.Fatal("Failed to connect to OpenSearch", err)
	}
	osRepo := opensearch.NewRepository(osClient, osConfig)

	appLogger.Info("OpenSearch connection established for history worker")

	sqsConfig := config.DefaultSQSConfig()
	sqsClient, err := sqsConfig.GetClient(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to connect to SQS", err)
	}
	sqsService := queue.NewSQSService(sqsClient, sqsConfig)

	appLogger.Info("SQS connection established for history worker")

	workerConfig := config.DefaultHistoryWorkerConfig()
	historyWorker := worker.NewHistoryWorker(
		sqsService,
		sqsService.HistoryQueueURL(),
		osRepo,
		appLogger,
		workerConfig.Count,
		workerConfig.PollInterval,
	)

	historyWorker.Start()
	appLogger.Info("History worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down worker...")
	historyWorker.Stop()
	appLogger.Info("Worker stopped")
	appLogger.Sync()
}
