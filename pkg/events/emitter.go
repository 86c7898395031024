// Package events handles event emission for run lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/gustavoairestiago/cadastro-retorno/pkg/kafka"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/models"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// RunPublisher is the producer surface the emitter needs.
type RunPublisher interface {
	PublishRunEvent(ctx context.Context, evt *kafka.RunEventMessage) error
}

// Emitter publishes run lifecycle events downstream.
type Emitter struct {
	producer RunPublisher
	logger   *zap.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer RunPublisher, logger *zap.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitRunCompleted emits a pendency.run.completed event with the run's stats.
func (e *Emitter) EmitRunCompleted(ctx context.Context, result *models.RunResult, runID string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunCompleted")
	defer span.End()

	payload := map[string]any{
		"schema_version": SchemaVersion,
		"stats":          result.Stats,
		"pending_count":  len(result.Pending),
		"warning_count":  len(result.Warnings),
		"duration_ms":    result.DurationMs,
	}
	payloadJSON, _ := json.Marshal(payload)

	event := &kafka.RunEventMessage{
		Type:      "pendency.run.completed",
		ProjectID: result.ProjectID.String(),
		RunID:     runID,
		Payload:   payloadJSON,
	}

	if err := e.producer.PublishRunEvent(ctx, event); err != nil {
		e.logger.Error("Failed to emit pendency.run.completed event", zap.Error(err))
		return err
	}

	return nil
}

// EmitSyncCompleted emits a pendency.sync.completed event with the publish report.
func (e *Emitter) EmitSyncCompleted(ctx context.Context, projectID string, report *models.PublishReport) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitSyncCompleted")
	defer span.End()

	payload := map[string]any{
		"schema_version": SchemaVersion,
		"total":          report.Total,
		"created":        report.Created,
		"updated":        report.Updated,
		"skipped":        report.Skipped,
		"failed":         report.Failed,
	}
	payloadJSON, _ := json.Marshal(payload)

	event := &kafka.RunEventMessage{
		Type:      "pendency.sync.completed",
		ProjectID: projectID,
		Payload:   payloadJSON,
	}

	if err := e.producer.PublishRunEvent(ctx, event); err != nil {
		e.logger.Error("Failed to emit pendency.sync.completed event", zap.Error(err))
		return err
	}

	return nil
}
