package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"go.uber.org/zap"

	"github.com/gustavoairestiago/cadastro-retorno/pkg/database"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/models"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/tracing"
)

const runHistoryTable = "run_history"

var runStruct = database.NewStruct(new(models.RunEntry))

// RunRepository persists run history, keeping only the most recent entries
// per project.
type RunRepository struct {
	*Repository
	historyLimit int
}

// NewRunRepository creates a new run history repository
func NewRunRepository(db database.DB, historyLimit int, logger *zap.Logger) *RunRepository {
	if historyLimit <= 0 {
		historyLimit = 100
	}
	return &RunRepository{
		Repository:   NewRepository(db, logger),
		historyLimit: historyLimit,
	}
}

// Record inserts a run entry and prunes history beyond the limit.
func (r *RunRepository) Record(ctx context.Context, entry *models.RunEntry) error {
	ctx, span := tracing.StartSpan(ctx, "RunRepository.Record")
	defer span.End()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(runHistoryTable).
		Cols("id", "project_id", "stats", "warning_count", "duration_ms", "triggered_by", "created_at").
		Values(entry.ID, entry.ProjectID, entry.Stats, entry.WarningCount,
			entry.DurationMs, entry.TriggeredBy, sqlbuilder.Raw("NOW()")).
		Returning("created_at")

	query, args := ib.Build()
	if err := r.DB().QueryRowContext(ctx, query, args...).Scan(&entry.CreatedAt); err != nil {
		r.logger.Error("failed to record run",
			zap.String("project_id", entry.ProjectID.String()), zap.Error(err))
		return Internal("failed to record run")
	}

	if err := r.prune(ctx, entry.ProjectID); err != nil {
		// History pruning must never fail the run itself.
		r.logger.Warn("failed to prune run history",
			zap.String("project_id", entry.ProjectID.String()), zap.Error(err))
	}

	return nil
}

// List returns the run history for a project, newest first.
func (r *RunRepository) List(ctx context.Context, projectID uuid.UUID, limit int) ([]models.RunEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "RunRepository.List")
	defer span.End()

	if limit <= 0 || limit > r.historyLimit {
		limit = r.historyLimit
	}

	sb := runStruct.SelectFrom(runHistoryTable)
	sb.Where(sb.Equal("project_id", projectID))
	sb.OrderBy("created_at").Desc()
	sb.Limit(limit)

	query, args := sb.Build()
	var entries []models.RunEntry
	if err := r.DB().SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.Error("failed to list run history",
			zap.String("project_id", projectID.String()), zap.Error(err))
		return nil, Internal("failed to list run history")
	}

	return entries, nil
}

// Latest returns the most recent run entry for a project, or nil when none
// exists.
func (r *RunRepository) Latest(ctx context.Context, projectID uuid.UUID) (*models.RunEntry, error) {
	entries, err := r.List(ctx, projectID, 1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// prune deletes entries beyond the per-project history limit.
func (r *RunRepository) prune(ctx context.Context, projectID uuid.UUID) error {
	db := database.NewDeleteBuilder()
	db.DeleteFrom(runHistoryTable)
	db.Where(
		db.Equal("project_id", projectID),
		db.NotIn("id", sqlbuilder.Buildf(
			"SELECT id FROM run_history WHERE project_id = %v ORDER BY created_at DESC LIMIT %v",
			projectID, r.historyLimit)),
	)

	query, args := db.Build()
	_, err := r.DB().ExecContext(ctx, query, args...)
	return err
}
