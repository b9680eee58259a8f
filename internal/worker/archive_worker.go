package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/kingrain94/entitlement-api/internal/config"
	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/service/queue"
	"github.com/kingrain94/entitlement-api/pkg/logger"
)

const defaultArchiveBatchSize = 1000

var errTimestampCollision = errors.New("archive batch shares a single timestamp")

// ObjectStore is the subset of the S3 client used for archives.
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ChangeArchiveSource lists and removes indexed changes.
type ChangeArchiveSource interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.FlagChange, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ArchiveWorker copies old flag changes to S3 and removes them from the history index.
type ArchiveWorker struct {
	queue        MessageQueue
	queueURL     string
	source       ChangeArchiveSource
	store        ObjectStore
	s3Config     *config.S3Config
	logger       *logger.Logger
	workerCount  int
	pollInterval time.Duration
	batchSize    int
	maxMessages  int32
	waitTime     int32
	shutdownChan chan struct{}
	waitGroup    sync.WaitGroup
	now          func() time.Time
}

func NewArchiveWorker(
	queue MessageQueue,
	queueURL string,
	source ChangeArchiveSource,
	store ObjectStore,
	s3Config *config.S3Config,
	logger *logger.Logger,
	workerCount int,
	pollInterval time.Duration,
) *ArchiveWorker {
	return &ArchiveWorker{
		queue:        queue,
		queueURL:     queueURL,
		source:       source,
		store:        store,
		s3Config:     s3Config,
		logger:       logger,
		workerCount:  workerCount,
		pollInterval: pollInterval,
		batchSize:    defaultArchiveBatchSize,
		maxMessages:  10,
		waitTime:     20,
		shutdownChan: make(chan struct{}),
		now:          time.Now,
	}
}

func (w *ArchiveWorker) Start() {
	w.logger.Info("Starting archive workers...")

	for i := 0; i < w.workerCount; i++ {
		w.waitGroup.Add(1)
		go w.runWorker(i)
	}
}

func (w *ArchiveWorker) Stop() {
	w.logger.Info("Stopping archive workers...")
	close(w.shutdownChan)
	w.waitGroup.Wait()
	w.logger.Info("All archive workers stopped")
}

func (w *ArchiveWorker) runWorker(workerID int) {
	defer w.waitGroup.Done()

	w.logger.Infof("Archive worker %d started", workerID)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.shutdownChan:
			w.logger.Infof("Archive worker %d shutting down", workerID)
			return
		case <-ticker.C:
			if err := w.ProcessMessages(context.Background()); err != nil {
				w.logger.Error("Archive worker failed to process messages", err, zap.Int("worker_id", workerID))
			}
		}
	}
}

// ProcessMessages handles one batch from the archive queue.
func (w *ArchiveWorker) ProcessMessages(ctx context.Context) error {
	messages, err := w.queue.ReceiveMessages(ctx, w.queueURL, w.maxMessages, w.waitTime)
	if err != nil {
		return fmt.Errorf("failed to receive messages: %w", err)
	}

	for _, msg := range messages {
		if msg.Message.Type != queue.MessageTypeArchive {
			w.logger.Warn("Dropping unexpected archive queue message", zap.String("type", string(msg.Message.Type)))
		} else if _, err := w.Archive(ctx, msg.Message.BeforeDate); err != nil {
			w.logger.Error("Failed to process archive message", err)
			continue
		}

		// Only delete the message if processing was successful
		if err := w.queue.DeleteMessage(ctx, w.queueURL, msg.ReceiptHandle); err != nil {
			w.logger.Error("Failed to delete archive message", err)
		}
	}

	return nil
}

// Archive uploads every change recorded before the cutoff in batches and deletes each
// batch from the index once its upload succeeded. It returns the number archived.
func (w *ArchiveWorker) Archive(ctx context.Context, before time.Time) (int, error) {
	w.logger.Info("Archiving flag changes", zap.Time("before", before))

	archived := 0
	for part := 0; ; part++ {
		changes, err := w.source.ListBefore(ctx, before, w.batchSize)
		if err != nil {
			return archived, fmt.Errorf("failed to list changes before %s: %w", before.Format(time.RFC3339), err)
		}
		if len(changes) == 0 {
			break
		}

		// A full batch may have more changes sharing its last timestamp, so only
		// delete strictly before it and pick those up in the next round.
		cutoff := before
		if len(changes) == w.batchSize {
			cutoff = changes[len(changes)-1].Timestamp
			if !cutoff.After(changes[0].Timestamp) {
				return archived, errTimestampCollision
			}
			changes = trimAtOrAfter(changes, cutoff)
		}

		if err := w.upload(ctx, before, part, changes); err != nil {
			return archived, err
		}
		if _, err := w.source.DeleteBefore(ctx, cutoff); err != nil {
			return archived, fmt.Errorf("failed to delete archived changes: %w", err)
		}
		archived += len(changes)

		if cutoff.Equal(before) {
			break
		}
	}

	w.logger.Info("Archived flag changes", zap.Int("count", archived), zap.Time("before", before))
	return archived, nil
}

func trimAtOrAfter(changes []domain.FlagChange, cutoff time.Time) []domain.FlagChange {
	for i, change := range changes {
		if !change.Timestamp.Before(cutoff) {
			return changes[:i]
		}
	}
	return changes
}

func (w *ArchiveWorker) archiveKey(before time.Time, part int) string {
	return fmt.Sprintf("%s/before_%s/part_%04d.json",
		w.s3Config.KeyPrefix,
		before.UTC().Format("2006-01-02_15-04-05"),
		part)
}

func (w *ArchiveWorker) upload(ctx context.Context, before time.Time, part int, changes []domain.FlagChange) error {
	archivedAt := w.now().UTC()
	jsonData, err := json.MarshalIndent(map[string]any{
		"before_date":  before,
		"archived_at":  archivedAt,
		"change_count": len(changes),
		"changes":      changes,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal changes to JSON: %w", err)
	}

	key := w.archiveKey(before, part)
	_, err = w.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.s3Config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(jsonData),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"archived-at":  archivedAt.Format(time.RFC3339),
			"change-count": strconv.Itoa(len(changes)),
			"before-date":  before.Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive to S3: %w", err)
	}

	w.logger.Infof("Uploaded archive to S3: s3://%s/%s", w.s3Config.BucketName, key)
	return nil
}
