// Package services orchestrates reconciliation runs over the survey API,
// persistence, and messaging layers.
package services

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gustavoairestiago/cadastro-retorno/config"
	"github.com/gustavoairestiago/cadastro-retorno/internal/repositories"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/database"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/events"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/kobo"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/metrics"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/models"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/reconcile"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/redis"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/retry"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/tracing"
)

// RunService executes reconciliation runs. One run per project at a time is
// enforced through a distributed lock.
type RunService struct {
	projects   *repositories.ProjectRepository
	runs       *repositories.RunRepository
	locker     *redis.Locker
	statsCache *redis.StatsCache
	emitter    *events.Emitter
	cfg        *config.Config
	logger     *zap.Logger
}

// NewRunService creates a run service
func NewRunService(
	projects *repositories.ProjectRepository,
	runs *repositories.RunRepository,
	locker *redis.Locker,
	statsCache *redis.StatsCache,
	emitter *events.Emitter,
	cfg *config.Config,
	logger *zap.Logger,
) *RunService {
	return &RunService{
		projects:   projects,
		runs:       runs,
		locker:     locker,
		statsCache: statsCache,
		emitter:    emitter,
		cfg:        cfg,
		logger:     logger,
	}
}

// surveyStack builds the per-project survey client and fetcher.
func (s *RunService) surveyStack(project *models.Project) (*kobo.Client, *kobo.Fetcher) {
	client := kobo.NewClient(kobo.Config{
		BaseURL: project.SurveyBaseURL,
		Token:   project.SurveyToken,
		Timeout: s.cfg.SurveyRequestTimeout,
	}, s.logger)

	policy := retry.DefaultPolicy()
	if s.cfg.SurveyMaxAttempts > 0 {
		policy.MaxAttempts = s.cfg.SurveyMaxAttempts
	}
	fetcher := kobo.NewFetcher(client, policy, s.cfg.SurveyPageSize, s.logger)
	return client, fetcher
}

// Run executes one full reconciliation run for a project and records it in
// history. Concurrent runs on the same project are rejected with 409.
func (s *RunService) Run(ctx context.Context, projectID uuid.UUID, triggeredBy string) (*models.RunResult, error) {
	ctx, span := tracing.StartSpan(ctx, "services.RunService.Run")
	defer span.End()

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := project.Validate(); err != nil {
		return nil, err
	}

	lock, err := s.locker.Acquire(ctx, "run:"+projectID.String(), s.cfg.RunLockTTL)
	if err != nil {
		if err == redis.ErrLockNotAcquired {
			return nil, echo.NewHTTPError(http.StatusConflict, "a run is already in progress for this project")
		}
		return nil, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release run lock",
				zap.String("project_id", projectID.String()), zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.MaxRunTime)
	defer cancel()

	started := time.Now()
	result, err := s.reconcileProject(ctx, project)
	duration := time.Since(started)

	if err != nil {
		metrics.RecordRun(projectID.String(), "failed", duration.Seconds())
		return nil, err
	}
	metrics.RecordRun(projectID.String(), "success", duration.Seconds())
	for _, w := range result.Warnings {
		metrics.RunWarnings.WithLabelValues(projectID.String(), string(w.Kind)).Inc()
	}

	// Fetching can consume most of the lock TTL on large forms; renew it so
	// the bookkeeping below stays under the lock.
	if err := lock.Extend(ctx, s.cfg.RunLockTTL); err != nil {
		s.logger.Warn("Failed to extend run lock",
			zap.String("project_id", projectID.String()), zap.Error(err))
	}

	result.ProjectID = projectID
	result.StartedAt = started.UTC()
	result.DurationMs = duration.Milliseconds()

	entry := &models.RunEntry{
		ProjectID:    projectID,
		Stats:        database.JSONB[models.Stats]{Data: result.Stats},
		WarningCount: len(result.Warnings),
		DurationMs:   result.DurationMs,
		TriggeredBy:  triggeredBy,
	}
	if err := s.runs.Record(ctx, entry); err != nil {
		return nil, err
	}

	if err := s.statsCache.Put(ctx, projectID, result.Stats); err != nil {
		s.logger.Warn("Failed to cache run stats",
			zap.String("project_id", projectID.String()), zap.Error(err))
	}

	if err := s.emitter.EmitRunCompleted(ctx, result, entry.ID.String()); err != nil {
		// Downstream notification failures never fail a completed run.
		s.logger.Warn("Failed to emit run event",
			zap.String("project_id", projectID.String()), zap.Error(err))
	}

	return result, nil
}

// reconcileProject fetches both forms in parallel and runs reconciliation.
func (s *RunService) reconcileProject(ctx context.Context, project *models.Project) (*models.RunResult, error) {
	_, fetcher := s.surveyStack(project)

	var master, revisit []kobo.Submission
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		master, err = fetcher.FetchAll(gctx, project.MasterFormID)
		return err
	})
	g.Go(func() error {
		var err error
		revisit, err = fetcher.FetchAll(gctx, project.RevisitFormID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	engine := reconcile.NewEngine(project, s.logger)
	res, err := engine.Reconcile(ctx, master, revisit)
	if err != nil {
		return nil, err
	}

	return &models.RunResult{
		Records:  res.Records,
		Pending:  reconcile.Pending(res.Records),
		Stats:    reconcile.Aggregate(res.Records),
		Warnings: res.Warnings,
	}, nil
}

// Validate checks a project's configuration and its access to both forms
// without fetching any submissions.
func (s *RunService) Validate(ctx context.Context, projectID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "services.RunService.Validate")
	defer span.End()

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	if err := project.Validate(); err != nil {
		return err
	}

	client, _ := s.surveyStack(project)
	if err := client.ValidateAccess(ctx, project.MasterFormID); err != nil {
		return err
	}
	return client.ValidateAccess(ctx, project.RevisitFormID)
}

// Stats returns the latest stats for a project, preferring the cache and
// falling back to the most recent history entry.
func (s *RunService) Stats(ctx context.Context, projectID uuid.UUID) (*models.Stats, error) {
	ctx, span := tracing.StartSpan(ctx, "services.RunService.Stats")
	defer span.End()

	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}

	stats, ok, err := s.statsCache.Get(ctx, projectID)
	if err != nil {
		s.logger.Warn("Stats cache read failed",
			zap.String("project_id", projectID.String()), zap.Error(err))
	}
	if ok {
		return &stats, nil
	}

	latest, err := s.runs.Latest(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, repositories.NotFound("no runs recorded for project %s", projectID)
	}
	return &latest.Stats.Data, nil
}

// History returns recorded runs for a project, newest first.
func (s *RunService) History(ctx context.Context, projectID uuid.UUID, limit int) ([]models.RunEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "services.RunService.History")
	defer span.End()

	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.runs.List(ctx, projectID, limit)
}
