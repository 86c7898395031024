package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/gustavoairestiago/cadastro-retorno/pkg/metrics"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/tracing"
)

// Config holds Kafka configuration
type Config struct {
	Brokers  []string
	RunTopic string
}

// ParseConfig parses a comma-separated broker string
func ParseConfig(brokers string, runTopic string) Config {
	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}

	return Config{
		Brokers:  brokerList,
		RunTopic: runTopic,
	}
}

// Producer handles producing messages to Kafka
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg Config, logger *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.RunTopic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		// Allow Kafka to auto-create the topic in dev environments when it doesn't exist yet.
		// Without this, a first publish may fail with "Unknown Topic Or Partition".
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.RunTopic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	stats := p.Stats()
	p.logger.Info("Closing kafka producer",
		zap.String("topic", p.topic),
		zap.Int64("messages", stats.Messages),
		zap.Int64("errors", stats.Errors))
	return p.writer.Close()
}

// RunEventMessage is a lifecycle event for a reconciliation or sync-back run.
type RunEventMessage struct {
	Type      string          `json:"type"` // "pendency.run.completed" | "pendency.sync.completed"
	ProjectID string          `json:"project_id"`
	RunID     string          `json:"run_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`

	// Tracing
	TraceID string `json:"trace_id,omitempty"`
}

// PublishRunEvent publishes a run lifecycle event to the run topic.
func (p *Producer) PublishRunEvent(ctx context.Context, evt *RunEventMessage) error {
	ctx, span := tracing.StartSpan(ctx, "Kafka.PublishRunEvent")
	defer span.End()

	if evt == nil {
		return fmt.Errorf("run event is nil")
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.TraceID = tracing.GetTraceID(ctx)

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.topic),
		attribute.String("messaging.operation", "publish"),
		attribute.String("project_id", evt.ProjectID),
		attribute.String("type", evt.Type),
	)

	data, err := json.Marshal(evt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal run event")
		return fmt.Errorf("failed to marshal run event: %w", err)
	}

	// Key on project id so a project's events stay ordered within a partition.
	headers := []kafka.Header{
		{Key: "project_id", Value: []byte(evt.ProjectID)},
		{Key: "type", Value: []byte(evt.Type)},
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(evt.ProjectID),
		Value:   data,
		Headers: headers,
	}); err != nil {
		metrics.KafkaMessagesPublished.WithLabelValues(p.topic, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish run event")
		p.logger.Error("Failed to publish run event",
			zap.String("topic", p.topic),
			zap.String("type", evt.Type),
			zap.Error(err))
		return err
	}

	metrics.KafkaMessagesPublished.WithLabelValues(p.topic, "success").Inc()
	span.SetStatus(codes.Ok, "message published")
	return nil
}

// Stats returns producer statistics
func (p *Producer) Stats() kafka.WriterStats {
	return p.writer.Stats()
}
