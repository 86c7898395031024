package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gustavoairestiago/cadastro-retorno/pkg/database"
	apperrors "github.com/gustavoairestiago/cadastro-retorno/pkg/errors"
)

// RunResult is the full outcome of one reconciliation run. Records holds
// every classified household; Pending is the actionable subset exported and
// synced back.
type RunResult struct {
	ProjectID  uuid.UUID           `json:"project_id"`
	Records    []PendencyRecord    `json:"records"`
	Pending    []PendencyRecord    `json:"pending"`
	Stats      Stats               `json:"stats"`
	Warnings   []apperrors.Warning `json:"warnings"`
	StartedAt  time.Time           `json:"started_at"`
	DurationMs int64               `json:"duration_ms"`
}

// RunEntry is one persisted row of run history.
type RunEntry struct {
	ID           uuid.UUID            `db:"id" json:"id"`
	ProjectID    uuid.UUID            `db:"project_id" json:"project_id"`
	Stats        database.JSONB[Stats] `db:"stats" json:"stats"`
	WarningCount int                  `db:"warning_count" json:"warning_count"`
	DurationMs   int64                `db:"duration_ms" json:"duration_ms"`
	TriggeredBy  string               `db:"triggered_by" json:"triggered_by"`
	CreatedAt    time.Time            `db:"created_at" json:"created_at"`
}

// TableName returns the database table name
func (RunEntry) TableName() string {
	return "run_history"
}

// PublishAction is the outcome of one household's sync-back write.
type PublishAction string

const (
	PublishCreated PublishAction = "created"
	PublishUpdated PublishAction = "updated"
	PublishSkipped PublishAction = "skipped"
	PublishFailed  PublishAction = "failed"
)

// PublishItemResult reports one household's sync-back outcome.
type PublishItemResult struct {
	HouseholdID string        `json:"household_id"`
	Action      PublishAction `json:"action"`
	Error       string        `json:"error,omitempty"`
}

// PublishReport aggregates per-household sync-back outcomes. The caller sees
// it only once every item has settled.
type PublishReport struct {
	Total   int                 `json:"total"`
	Created int                 `json:"created"`
	Updated int                 `json:"updated"`
	Skipped int                 `json:"skipped"`
	Failed  int                 `json:"failed"`
	Items   []PublishItemResult `json:"items"`
}
