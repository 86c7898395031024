package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/gustavoairestiago/cadastro-retorno/internal/repositories"
	"github.com/gustavoairestiago/cadastro-retorno/internal/services"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/database"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/models"
)

// ProjectHandler handles project configuration API requests
type ProjectHandler struct {
	repo     *repositories.ProjectRepository
	runs     *services.RunService
	validate *validator.Validate
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(repo *repositories.ProjectRepository, runs *services.RunService) *ProjectHandler {
	return &ProjectHandler{
		repo:     repo,
		runs:     runs,
		validate: validator.New(),
	}
}

// CreateProjectRequest is the request body for creating a project
type CreateProjectRequest struct {
	Name          string `json:"name" validate:"required"`
	SurveyBaseURL string `json:"survey_base_url" validate:"required,url"`
	SurveyToken   string `json:"survey_token" validate:"required"`
	MasterFormID  string `json:"master_form_id" validate:"required"`
	RevisitFormID string `json:"revisit_form_id" validate:"required"`

	MasterFields      models.FieldMapping      `json:"master_fields,omitempty"`
	RevisitFields     models.FieldMapping      `json:"revisit_fields,omitempty"`
	MasterVocabulary  *models.StatusVocabulary `json:"master_vocabulary,omitempty"`
	RevisitVocabulary *models.StatusVocabulary `json:"revisit_vocabulary,omitempty"`
}

// UpdateProjectRequest is the request body for updating a project
type UpdateProjectRequest struct {
	Name          *string `json:"name,omitempty"`
	SurveyBaseURL *string `json:"survey_base_url,omitempty"`
	SurveyToken   *string `json:"survey_token,omitempty"`
	MasterFormID  *string `json:"master_form_id,omitempty"`
	RevisitFormID *string `json:"revisit_form_id,omitempty"`

	MasterFields      models.FieldMapping      `json:"master_fields,omitempty"`
	RevisitFields     models.FieldMapping      `json:"revisit_fields,omitempty"`
	MasterVocabulary  *models.StatusVocabulary `json:"master_vocabulary,omitempty"`
	RevisitVocabulary *models.StatusVocabulary `json:"revisit_vocabulary,omitempty"`
}

// RegisterRoutes registers the project routes
func (h *ProjectHandler) RegisterRoutes(g *echo.Group) {
	projects := g.Group("/projects")
	projects.POST("", h.Create)
	projects.GET("", h.List)
	projects.GET("/:id", h.Get)
	projects.PUT("/:id", h.Update)
	projects.DELETE("/:id", h.Delete)
	projects.POST("/:id/validate", h.Validate)
}

// Create handles POST /projects
func (h *ProjectHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateProjectRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return BadRequest(err.Error())
	}

	project := &models.Project{
		Name:          req.Name,
		SurveyBaseURL: req.SurveyBaseURL,
		SurveyToken:   req.SurveyToken,
		MasterFormID:  req.MasterFormID,
		RevisitFormID: req.RevisitFormID,
		MasterFields:  database.JSONB[models.FieldMapping]{Data: req.MasterFields},
		RevisitFields: database.JSONB[models.FieldMapping]{Data: req.RevisitFields},
	}

	// Vocabularies default to the legacy census coding when not configured.
	project.MasterVocabulary = database.JSONB[models.StatusVocabulary]{Data: models.DefaultMasterVocabulary()}
	if req.MasterVocabulary != nil {
		project.MasterVocabulary.Data = *req.MasterVocabulary
	}
	project.RevisitVocabulary = database.JSONB[models.StatusVocabulary]{Data: models.DefaultRevisitVocabulary()}
	if req.RevisitVocabulary != nil {
		project.RevisitVocabulary.Data = *req.RevisitVocabulary
	}

	if err := project.Validate(); err != nil {
		return err
	}

	if err := h.repo.Create(ctx, project); err != nil {
		return err
	}

	return CreatedResponse(c, project)
}

// List handles GET /projects
func (h *ProjectHandler) List(c echo.Context) error {
	projects, err := h.repo.List(c.Request().Context())
	if err != nil {
		return err
	}
	return SuccessResponse(c, projects)
}

// Get handles GET /projects/:id
func (h *ProjectHandler) Get(c echo.Context) error {
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	project, err := h.repo.GetByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return SuccessResponse(c, project)
}

// Update handles PUT /projects/:id
func (h *ProjectHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	existing, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var req UpdateProjectRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.SurveyBaseURL != nil {
		existing.SurveyBaseURL = *req.SurveyBaseURL
	}
	if req.SurveyToken != nil {
		existing.SurveyToken = *req.SurveyToken
	}
	if req.MasterFormID != nil {
		existing.MasterFormID = *req.MasterFormID
	}
	if req.RevisitFormID != nil {
		existing.RevisitFormID = *req.RevisitFormID
	}
	if req.MasterFields != nil {
		existing.MasterFields.Data = req.MasterFields
	}
	if req.RevisitFields != nil {
		existing.RevisitFields.Data = req.RevisitFields
	}
	if req.MasterVocabulary != nil {
		existing.MasterVocabulary.Data = *req.MasterVocabulary
	}
	if req.RevisitVocabulary != nil {
		existing.RevisitVocabulary.Data = *req.RevisitVocabulary
	}

	if err := existing.Validate(); err != nil {
		return err
	}

	if err := h.repo.Update(ctx, existing); err != nil {
		return err
	}

	return SuccessResponse(c, existing)
}

// Delete handles DELETE /projects/:id
func (h *ProjectHandler) Delete(c echo.Context) error {
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.repo.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return NoContentResponse(c)
}

// Validate handles POST /projects/:id/validate. It checks the stored
// configuration and the project's access to both survey forms.
func (h *ProjectHandler) Validate(c echo.Context) error {
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.runs.Validate(c.Request().Context(), id); err != nil {
		return err
	}

	return SuccessResponse(c, map[string]any{"valid": true})
}
