package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/gustavoairestiago/cadastro-retorno/config"
	"github.com/gustavoairestiago/cadastro-retorno/internal/repositories"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/events"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/export"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/kobo"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/metrics"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/models"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/publish"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/tracing"
)

// SyncMode selects how the pendency list is pushed back to the field.
type SyncMode string

const (
	// SyncModeSubmissions upserts one tracking submission per household.
	SyncModeSubmissions SyncMode = "submissions"
	// SyncModeMedia attaches the pendency list as a CSV media file, for forms
	// that reference it through a select_one_from_file question.
	SyncModeMedia SyncMode = "media"
)

// MediaFileName is the form-media attachment replaced on each media sync.
const MediaFileName = "pendencias.csv"

// SyncService pushes reconciliation results back into the revisit form.
type SyncService struct {
	runs     *RunService
	projects *repositories.ProjectRepository
	emitter  *events.Emitter
	cfg      *config.Config
	logger   *zap.Logger
}

// NewSyncService creates a sync service
func NewSyncService(runs *RunService, projects *repositories.ProjectRepository, emitter *events.Emitter, cfg *config.Config, logger *zap.Logger) *SyncService {
	return &SyncService{
		runs:     runs,
		projects: projects,
		emitter:  emitter,
		cfg:      cfg,
		logger:   logger,
	}
}

// Sync runs a fresh reconciliation and pushes the pending households to the
// revisit form using the requested mode.
func (s *SyncService) Sync(ctx context.Context, projectID uuid.UUID, mode SyncMode) (*models.PublishReport, error) {
	ctx, span := tracing.StartSpan(ctx, "services.SyncService.Sync")
	defer span.End()

	if mode == "" {
		mode = SyncModeSubmissions
	}

	result, err := s.runs.Run(ctx, projectID, "sync")
	if err != nil {
		return nil, err
	}

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var report *models.PublishReport
	switch mode {
	case SyncModeSubmissions:
		report, err = s.syncSubmissions(ctx, project, result.Pending)
	case SyncModeMedia:
		report, err = s.syncMedia(ctx, project, result.Pending)
	default:
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown sync mode %q", mode))
	}
	if err != nil {
		return nil, err
	}

	for _, item := range report.Items {
		metrics.RecordPublishItem(projectID.String(), string(item.Action))
	}

	if err := s.emitter.EmitSyncCompleted(ctx, projectID.String(), report); err != nil {
		s.logger.Warn("Failed to emit sync event",
			zap.String("project_id", projectID.String()), zap.Error(err))
	}

	return report, nil
}

func (s *SyncService) syncSubmissions(ctx context.Context, project *models.Project, pending []models.PendencyRecord) (*models.PublishReport, error) {
	client, fetcher := s.runs.surveyStack(project)

	remote := &surveyRemote{client: client, fetcher: fetcher}
	publisher := publish.NewPublisher(remote, s.cfg.PublishConcurrency, s.logger)
	return publisher.Publish(ctx, pending, project.RevisitFormID)
}

// syncMedia replaces the form's CSV attachment with the current pendency
// list. The whole list is one write, so the report collapses to a single
// updated entry.
func (s *SyncService) syncMedia(ctx context.Context, project *models.Project, pending []models.PendencyRecord) (*models.PublishReport, error) {
	client, _ := s.runs.surveyStack(project)

	content, err := export.CSV(pending)
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("pendency list %s", time.Now().UTC().Format("2006-01-02 15:04:05"))
	if err := client.UploadFormMedia(ctx, project.RevisitFormID, MediaFileName, content, description); err != nil {
		return nil, err
	}

	return &models.PublishReport{
		Total:   len(pending),
		Updated: len(pending),
	}, nil
}

// surveyRemote adapts the survey client and fetcher to the publisher's
// Remote interface.
type surveyRemote struct {
	client  *kobo.Client
	fetcher *kobo.Fetcher
}

func (r *surveyRemote) FetchAll(ctx context.Context, formID string) ([]kobo.Submission, error) {
	return r.fetcher.FetchAll(ctx, formID)
}

func (r *surveyRemote) CreateSubmission(ctx context.Context, formID string, payload map[string]any) error {
	return r.client.CreateSubmission(ctx, formID, payload)
}

func (r *surveyRemote) UpdateSubmission(ctx context.Context, formID, submissionID string, payload map[string]any) error {
	return r.client.UpdateSubmission(ctx, formID, submissionID, payload)
}
