package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/service/queue"
	"github.com/kingrain94/entitlement-api/pkg/logger"
)

var errMalformedMessage = errors.New("malformed history message")

// MessageQueue is the queue side the workers consume.
type MessageQueue interface {
	ReceiveMessages(ctx context.Context, queueURL string, maxMessages int32, waitTimeSeconds int32) ([]queue.ReceivedMessage, error)
	DeleteMessage(ctx context.Context, queueURL string, receiptHandle *string) error
}

// ChangeIndexer is the history index the history worker writes to.
type ChangeIndexer interface {
	Index(ctx context.Context, change *domain.FlagChange) error
	BulkIndex(ctx context.Context, changes []domain.FlagChange) error
}

// HistoryWorker moves queued flag changes into the history index.
type HistoryWorker struct {
	queue        MessageQueue
	queueURL     string
	indexer      ChangeIndexer
	logger       *logger.Logger
	workerCount  int
	pollInterval time.Duration
	maxMessages  int32
	waitTime     int32
	shutdownChan chan struct{}
	waitGroup    sync.WaitGroup
}

func NewHistoryWorker(
	queue MessageQueue,
	queueURL string,
	indexer ChangeIndexer,
	logger *logger.Logger,
	workerCount int,
	pollInterval time.Duration,
) *HistoryWorker {
	return &HistoryWorker{
		queue:        queue,
		queueURL:     queueURL,
		indexer:      indexer,
		logger:       logger,
		workerCount:  workerCount,
		pollInterval: pollInterval,
		maxMessages:  10, // Process up to 10 messages at a time
		waitTime:     20, // Long polling: wait up to 20 seconds for messages
		shutdownChan: make(chan struct{}),
	}
}

func (w *HistoryWorker) Start() {
	w.logger.Info("Starting history workers...")

	for i := 0; i < w.workerCount; i++ {
		w.waitGroup.Add(1)
		go w.runWorker(i)
	}
}

func (w *HistoryWorker) Stop() {
	w.logger.Info("Stopping history workers...")
	close(w.shutdownChan)
	w.waitGroup.Wait()
	w.logger.Info("All history workers stopped")
}

func (w *HistoryWorker) runWorker(workerID int) {
	defer w.waitGroup.Done()

	w.logger.Infof("History worker %d started", workerID)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-w.shutdownChan
		cancel()
	}()

	for {
		select {
		case <-w.shutdownChan:
			w.logger.Infof("History worker %d shutting down", workerID)
			return
		case <-ticker.C:
			if err := w.ProcessMessages(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("History worker failed to process messages", err, zap.Int("worker_id", workerID))
			}
		}
	}
}

// ProcessMessages handles one batch from the history queue.
func (w *HistoryWorker) ProcessMessages(ctx context.Context) error {
	messages, err := w.queue.ReceiveMessages(ctx, w.queueURL, w.maxMessages, w.waitTime)
	if err != nil {
		return fmt.Errorf("failed to receive messages: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessage(ctx, msg.Message); err != nil {
			w.logger.Error("Failed to process history message", err, zap.String("type", string(msg.Message.Type)))
			// Malformed messages are dropped, anything else is redelivered.
			if !errors.Is(err, errMalformedMessage) {
				continue
			}
		}

		// Only delete the message if processing was successful
		if err := w.queue.DeleteMessage(ctx, w.queueURL, msg.ReceiptHandle); err != nil {
			w.logger.Error("Failed to delete history message", err)
		}
	}

	return nil
}

func (w *HistoryWorker) processMessage(ctx context.Context, msg queue.Message) error {
	switch msg.Type {
	case queue.MessageTypeFlagChange:
		switch len(msg.Changes) {
		case 0:
			return fmt.Errorf("%w: empty changes array for FLAG_CHANGE message", errMalformedMessage)
		case 1:
			return w.indexer.Index(ctx, &msg.Changes[0])
		default:
			return w.indexer.BulkIndex(ctx, msg.Changes)
		}
	default:
		return fmt.Errorf("%w: unknown message type %q", errMalformedMessage, msg.Type)
	}
}
