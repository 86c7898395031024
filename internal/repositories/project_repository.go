package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"go.uber.org/zap"

	"github.com/gustavoairestiago/cadastro-retorno/pkg/database"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/models"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/tracing"
)

const projectsTable = "projects"

var projectStruct = database.NewStruct(new(models.Project))

// ProjectRepository handles database operations for projects
type ProjectRepository struct {
	*Repository
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db database.DB, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create creates a new project
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	ctx, span := tracing.StartSpan(ctx, "ProjectRepository.Create")
	defer span.End()

	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(projectsTable).
		Cols("id", "name", "survey_base_url", "survey_token", "master_form_id", "revisit_form_id",
			"master_fields", "revisit_fields", "master_vocabulary", "revisit_vocabulary",
			"created_at", "updated_at").
		Values(project.ID, project.Name, project.SurveyBaseURL, project.SurveyToken,
			project.MasterFormID, project.RevisitFormID,
			project.MasterFields, project.RevisitFields,
			project.MasterVocabulary, project.RevisitVocabulary,
			sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(&project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create project",
			zap.String("project_id", project.ID.String()), zap.Error(err))
		return Internal("failed to create project")
	}

	r.logger.Debug("Created project", zap.String("project_id", project.ID.String()))
	return nil
}

// GetByID retrieves a project by ID
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	ctx, span := tracing.StartSpan(ctx, "ProjectRepository.GetByID")
	defer span.End()

	sb := projectStruct.SelectFrom(projectsTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var project models.Project
	err := r.DB().GetContext(ctx, &project, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("project %s does not exist", id)
	}
	if err != nil {
		r.logger.Error("failed to get project by ID",
			zap.String("project_id", id.String()), zap.Error(err))
		return nil, Internal("failed to get project by ID")
	}

	return &project, nil
}

// List retrieves all projects ordered by name
func (r *ProjectRepository) List(ctx context.Context) ([]models.Project, error) {
	ctx, span := tracing.StartSpan(ctx, "ProjectRepository.List")
	defer span.End()

	sb := projectStruct.SelectFrom(projectsTable)
	sb.OrderBy("name")

	query, args := sb.Build()
	var projects []models.Project
	err := r.DB().SelectContext(ctx, &projects, query, args...)
	if err != nil {
		r.logger.Error("failed to list projects", zap.Error(err))
		return nil, Internal("failed to list projects")
	}

	r.logger.Debug("Listed projects", zap.Int("count", len(projects)))
	return projects, nil
}

// Update updates an existing project
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	ctx, span := tracing.StartSpan(ctx, "ProjectRepository.Update")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(projectsTable).
		Set(
			ub.Assign("name", project.Name),
			ub.Assign("survey_base_url", project.SurveyBaseURL),
			ub.Assign("survey_token", project.SurveyToken),
			ub.Assign("master_form_id", project.MasterFormID),
			ub.Assign("revisit_form_id", project.RevisitFormID),
			ub.Assign("master_fields", project.MasterFields),
			ub.Assign("revisit_fields", project.RevisitFields),
			ub.Assign("master_vocabulary", project.MasterVocabulary),
			ub.Assign("revisit_vocabulary", project.RevisitVocabulary),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("id", project.ID))
	ub.SQL("RETURNING updated_at")

	query, args := ub.Build()
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(&project.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound("project %s does not exist", project.ID)
	}
	if err != nil {
		r.logger.Error("failed to update project",
			zap.String("project_id", project.ID.String()), zap.Error(err))
		return Internal("failed to update project")
	}

	r.logger.Debug("Updated project", zap.String("project_id", project.ID.String()))
	return nil
}

// Delete deletes a project by ID
func (r *ProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "ProjectRepository.Delete")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(projectsTable).
		Where(db.Equal("id", id))

	query, args := db.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to delete project",
			zap.String("project_id", id.String()), zap.Error(err))
		return Internal("failed to delete project")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("failed to delete project",
			zap.String("project_id", id.String()), zap.Error(err))
		return Internal("failed to delete project")
	}
	if rows == 0 {
		return NotFound("project %s does not exist", id)
	}

	r.logger.Debug("Deleted project", zap.String("project_id", id.String()))
	return nil
}
