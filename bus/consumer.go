package bus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/molly-mint-choco/email-dedup/dedup"
	apperrors "github.com/molly-mint-choco/email-dedup/errors"
	"github.com/molly-mint-choco/email-dedup/utils"
)

// WorkerConfig wires one ingest worker to the bus and the read directory.
type WorkerConfig struct {
	Bootstrap      string
	Topic          string
	DeadLetter     string
	GroupID        string
	ClientID       string
	ReadDir        string
	PollInterval   time.Duration
	MinCommitCount int
	MaxRetryCount  int
}

// Worker consumes file events and drives the dedup engine. Offsets are
// committed in batches of MinCommitCount; a failed ingest is requeued with
// an incremented retry count, and past MaxRetryCount the payload is routed
// to the dead-letter topic instead.
type Worker struct {
	reader  *kafka.Reader
	retry   *kafka.Writer
	dlq     *kafka.Writer
	engine  *dedup.Engine
	cfg     WorkerConfig
	auditor Auditor
	logger  *zap.Logger
}

func NewWorker(cfg WorkerConfig, engine *dedup.Engine, auditor Auditor, logger *zap.Logger) *Worker {
	maxWait := cfg.PollInterval
	if maxWait <= 0 {
		maxWait = time.Second
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{cfg.Bootstrap},
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: kafka.FirstOffset,
		MaxWait:     maxWait,
	})
	transport := &kafka.Transport{ClientID: cfg.ClientID}
	retry := &kafka.Writer{
		Addr:      kafka.TCP(cfg.Bootstrap),
		Topic:     cfg.Topic,
		Balancer:  &kafka.LeastBytes{},
		Transport: transport,
	}
	dlq := &kafka.Writer{
		Addr:      kafka.TCP(cfg.Bootstrap),
		Topic:     cfg.DeadLetter,
		Balancer:  &kafka.LeastBytes{},
		Transport: transport,
	}
	return &Worker{
		reader:  reader,
		retry:   retry,
		dlq:     dlq,
		engine:  engine,
		cfg:     cfg,
		auditor: auditor,
		logger:  logger,
	}
}

// Run consumes until the context is cancelled. Pending offsets are
// committed before returning so a clean shutdown never replays work that
// already committed its unit of work.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Starting consumer loop",
		zap.String("topic", w.cfg.Topic),
		zap.String("group_id", w.cfg.GroupID))

	var pending []kafka.Message
	commit := func() error {
		if len(pending) == 0 {
			return nil
		}
		// Commit outside the cancelled request context so shutdown still
		// flushes acknowledged work.
		if err := w.reader.CommitMessages(context.Background(), pending...); err != nil {
			return apperrors.WrapError(err, "failed to commit offsets")
		}
		pending = pending[:0]
		return nil
	}

	for {
		msg, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if commitErr := commit(); commitErr != nil {
					w.logger.Error("Final offset commit failed", zap.Error(commitErr))
				}
				w.logger.Info("Consumer loop stopped")
				return nil
			}
			return apperrors.WrapError(err, "failed to fetch message")
		}

		acked := w.handleMessage(ctx, msg)
		if acked {
			pending = append(pending, msg)
		}
		if len(pending) >= w.cfg.MinCommitCount {
			if err := commit(); err != nil {
				return err
			}
		}
	}
}

// handleMessage processes one event and reports whether its offset may be
// acknowledged. Malformed payloads, duplicate deliveries, and messages
// requeued or dead-lettered are acknowledged; only a requeue failure keeps
// the offset uncommitted for bus-level redelivery.
func (w *Worker) handleMessage(ctx context.Context, msg kafka.Message) bool {
	payload, err := DecodePayload(msg.Value)
	if err != nil {
		// Poison pill: log and acknowledge so it is never redelivered.
		w.logger.Error("Dropping malformed payload",
			zap.ByteString("value", msg.Value),
			zap.Error(err))
		return true
	}

	w.logger.Debug("Received file event",
		zap.String("file_name", payload.FileName),
		zap.Int("retry_count", payload.RetryCount))
	if w.auditor != nil {
		w.auditor.Record(ctx, "kafka", "consume", payload)
	}

	err = w.ingest(ctx, payload)
	if err == nil {
		return true
	}

	if apperrors.IsDuplicateDocument(err) {
		// At-least-once delivery replayed a file that already committed.
		w.logger.Warn("Duplicate delivery acknowledged",
			zap.String("file_name", payload.FileName))
		return true
	}

	if apperrors.IsMalformedPayload(err) {
		w.logger.Error("Dropping payload with unsafe file name",
			zap.String("file_name", payload.FileName),
			zap.Error(err))
		return true
	}

	w.logger.Error("Ingest failed",
		zap.String("file_name", payload.FileName),
		zap.Int("retry_count", payload.RetryCount),
		zap.Error(err))
	return w.requeue(ctx, payload)
}

func (w *Worker) ingest(ctx context.Context, payload Payload) error {
	fileName := payload.FileName
	if utils.SanitizeFilename(fileName) != fileName {
		return apperrors.WrapErrorf(apperrors.ErrMalformedPayload, "unsafe file name %q", fileName)
	}

	raw, err := os.ReadFile(filepath.Join(w.cfg.ReadDir, fileName))
	if err != nil {
		return apperrors.WrapErrorf(apperrors.ErrFileRead, "%s: %v", fileName, err)
	}

	_, err = w.engine.Ingest(ctx, fileName, string(raw))
	return err
}

// requeue re-publishes a failed payload with an incremented retry count,
// or to the dead-letter topic once the retry bound is exhausted. Returns
// whether the original offset may be acknowledged.
func (w *Worker) requeue(ctx context.Context, payload Payload) bool {
	payload.RetryCount++
	value, err := payload.Marshal()
	if err != nil {
		w.logger.Error("Failed to marshal requeue payload", zap.Error(err))
		return false
	}

	if payload.RetryCount > w.cfg.MaxRetryCount {
		if err := w.dlq.WriteMessages(ctx, kafka.Message{Value: value}); err != nil {
			w.logger.Error("Dead-letter publish failed",
				zap.String("file_name", payload.FileName),
				zap.Error(err))
			return false
		}
		w.logger.Warn("Routed payload to dead letter",
			zap.String("file_name", payload.FileName),
			zap.Int("retry_count", payload.RetryCount))
		return true
	}

	if err := w.retry.WriteMessages(ctx, kafka.Message{Value: value}); err != nil {
		w.logger.Error("Requeue publish failed",
			zap.String("file_name", payload.FileName),
			zap.Error(err))
		return false
	}
	return true
}

func (w *Worker) Close() error {
	err := w.reader.Close()
	if retryErr := w.retry.Close(); err == nil {
		err = retryErr
	}
	if dlqErr := w.dlq.Close(); err == nil {
		err = dlqErr
	}
	return err
}
