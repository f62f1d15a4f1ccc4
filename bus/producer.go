package bus

import (
	"context"
	"os"
	"sort"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	apperrors "github.com/molly-mint-choco/email-dedup/errors"
)

// Auditor records bus traffic to the audit trail.
type Auditor interface {
	Record(ctx context.Context, resource, action string, content any)
}

// Producer enumerates the read directory and publishes one message per
// file for the ingest workers to pick up.
type Producer struct {
	writer  *kafka.Writer
	readDir string
	auditor Auditor
	logger  *zap.Logger
}

func NewProducer(bootstrap, topic, clientID, readDir string, auditor Auditor, logger *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:      kafka.TCP(bootstrap),
		Topic:     topic,
		Balancer:  &kafka.LeastBytes{},
		Transport: &kafka.Transport{ClientID: clientID},
	}
	return &Producer{
		writer:  writer,
		readDir: readDir,
		auditor: auditor,
		logger:  logger,
	}
}

// PublishAll scans the read directory, oldest files first, and publishes a
// payload per regular file. Returns the number of files published.
func (p *Producer) PublishAll(ctx context.Context) (int, error) {
	p.logger.Info("Starting ingestion", zap.String("read_dir", p.readDir))

	entries, err := os.ReadDir(p.readDir)
	if err != nil {
		return 0, apperrors.WrapErrorf(err, "failed to read directory %q", p.readDir)
	}

	type fileEntry struct {
		name    string
		modTime int64
	}
	var files []fileEntry
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			p.logger.Warn("Skipping unreadable directory entry",
				zap.String("name", entry.Name()),
				zap.Error(err))
			continue
		}
		files = append(files, fileEntry{name: entry.Name(), modTime: info.ModTime().UnixNano()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime < files[j].modTime })

	count := 0
	for _, file := range files {
		payload := NewPayload(file.name)
		value, err := payload.Marshal()
		if err != nil {
			return count, apperrors.WrapErrorf(err, "failed to marshal payload for %q", file.name)
		}

		if err := p.writer.WriteMessages(ctx, kafka.Message{Value: value}); err != nil {
			return count, apperrors.WrapErrorf(err, "failed to publish %q", file.name)
		}
		p.logger.Info("Sent file event",
			zap.String("file_name", payload.FileName),
			zap.String("source_node", payload.SourceNode))
		if p.auditor != nil {
			p.auditor.Record(ctx, "kafka", "produce", payload)
		}
		count++
	}

	p.logger.Info("Ingestion finished", zap.Int("files_sent", count))
	return count, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
