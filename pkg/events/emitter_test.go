package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gustavoairestiago/cadastro-retorno/pkg/kafka"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/models"
)

type capturingProducer struct {
	events []*kafka.RunEventMessage
	err    error
}

func (p *capturingProducer) PublishRunEvent(ctx context.Context, evt *kafka.RunEventMessage) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func TestEmitRunCompleted(t *testing.T) {
	producer := &capturingProducer{}
	emitter := NewEmitter(producer, zap.NewNop())

	projectID := uuid.New()
	result := &models.RunResult{
		ProjectID: projectID,
		Pending:   []models.PendencyRecord{{HouseholdID: "h1"}},
		Stats:     models.Stats{TotalHouseholds: 3, CompletionRate: 0.5},
		DurationMs: 1200,
	}

	err := emitter.EmitRunCompleted(context.Background(), result, "run-1")
	require.NoError(t, err)
	require.Len(t, producer.events, 1)

	evt := producer.events[0]
	assert.Equal(t, "pendency.run.completed", evt.Type)
	assert.Equal(t, projectID.String(), evt.ProjectID)
	assert.Equal(t, "run-1", evt.RunID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, SchemaVersion, payload["schema_version"])
	assert.Equal(t, 1.0, payload["pending_count"])
}

func TestEmitSyncCompleted(t *testing.T) {
	producer := &capturingProducer{}
	emitter := NewEmitter(producer, zap.NewNop())

	report := &models.PublishReport{Total: 4, Created: 1, Updated: 1, Skipped: 2}
	err := emitter.EmitSyncCompleted(context.Background(), "p1", report)
	require.NoError(t, err)
	require.Len(t, producer.events, 1)
	assert.Equal(t, "pendency.sync.completed", producer.events[0].Type)
}

func TestEmitPropagatesProducerError(t *testing.T) {
	producer := &capturingProducer{err: errors.New("broker down")}
	emitter := NewEmitter(producer, zap.NewNop())

	err := emitter.EmitSyncCompleted(context.Background(), "p1", &models.PublishReport{})
	assert.Error(t, err)
}
