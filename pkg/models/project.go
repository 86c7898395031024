package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gustavoairestiago/cadastro-retorno/pkg/database"
	apperrors "github.com/gustavoairestiago/cadastro-retorno/pkg/errors"
)

// Logical field names resolvable through a FieldMapping.
const (
	FieldHouseholdID = "household_id"
	FieldStatus      = "status"
)

// AddressFields are the logical names combined into the display address, in
// label order.
var AddressFields = []string{"street", "number", "modifier", "complement"}

// FieldMapping maps logical field names to payload paths for one form. Survey
// payloads keep group prefixes as literal keys ("info_gerais/status"), so
// paths may contain '/' or '.' separators.
type FieldMapping map[string]string

// Path returns the configured payload path for a logical field name, or the
// logical name itself when no mapping exists.
func (m FieldMapping) Path(logical string) string {
	if m == nil {
		return logical
	}
	if p, ok := m[logical]; ok && p != "" {
		return p
	}
	return logical
}

// StatusVocabulary maps a form's raw status values onto the complete /
// incomplete outcome. Source forms use arbitrary vocabularies, so the set of
// "complete" values is project configuration, validated at load time.
type StatusVocabulary struct {
	CompleteValues []string `json:"complete_values" validate:"required,min=1"`
}

// Validate checks the vocabulary at configuration load time.
func (v StatusVocabulary) Validate(projectID, field string) error {
	if len(v.CompleteValues) == 0 {
		return apperrors.NewConfigErrorf(projectID, field, "complete_values must list at least one raw status value")
	}
	for _, raw := range v.CompleteValues {
		if normalizeStatus(raw) == "" {
			return apperrors.NewConfigErrorf(projectID, field, "complete_values contains a blank value")
		}
	}
	return nil
}

// IsComplete reports whether a raw status value counts as complete. The
// comparison is trimmed and case-insensitive.
func (v StatusVocabulary) IsComplete(raw string) bool {
	normalized := normalizeStatus(raw)
	if normalized == "" {
		return false
	}
	for _, c := range v.CompleteValues {
		if normalizeStatus(c) == normalized {
			return true
		}
	}
	return false
}

// DefaultMasterVocabulary returns the legacy census coding for the master
// form, where "01" marks a completed interview.
func DefaultMasterVocabulary() StatusVocabulary {
	return StatusVocabulary{CompleteValues: []string{"01"}}
}

// DefaultRevisitVocabulary returns the legacy census coding for the revisit
// form. Codes "04" and "05" are definitive non-interview outcomes and close
// the household alongside "01".
func DefaultRevisitVocabulary() StatusVocabulary {
	return StatusVocabulary{CompleteValues: []string{"01", "04", "05"}}
}

// Project is the per-project configuration consumed read-only by a run.
type Project struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Name          string    `db:"name" json:"name" validate:"required"`
	SurveyBaseURL string    `db:"survey_base_url" json:"survey_base_url" validate:"required,url"`
	SurveyToken   string    `db:"survey_token" json:"-" validate:"required"`
	MasterFormID  string    `db:"master_form_id" json:"master_form_id" validate:"required"`
	RevisitFormID string    `db:"revisit_form_id" json:"revisit_form_id" validate:"required"`

	// Master and Revisit have independent mappings and vocabularies.
	MasterFields      database.JSONB[FieldMapping]     `db:"master_fields" json:"master_fields"`
	RevisitFields     database.JSONB[FieldMapping]     `db:"revisit_fields" json:"revisit_fields"`
	MasterVocabulary  database.JSONB[StatusVocabulary] `db:"master_vocabulary" json:"master_vocabulary"`
	RevisitVocabulary database.JSONB[StatusVocabulary] `db:"revisit_vocabulary" json:"revisit_vocabulary"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Project) TableName() string {
	return "projects"
}

// Validate checks the fields a run depends on before any fetch happens.
func (p *Project) Validate() error {
	id := p.ID.String()
	if p.SurveyBaseURL == "" {
		return apperrors.NewConfigError(id, "survey_base_url", "is required")
	}
	if p.SurveyToken == "" {
		return apperrors.NewConfigError(id, "survey_token", "is required")
	}
	if p.MasterFormID == "" {
		return apperrors.NewConfigError(id, "master_form_id", "is required")
	}
	if p.RevisitFormID == "" {
		return apperrors.NewConfigError(id, "revisit_form_id", "is required")
	}
	if err := p.MasterVocabulary.Data.Validate(id, "master_vocabulary"); err != nil {
		return err
	}
	if err := p.RevisitVocabulary.Data.Validate(id, "revisit_vocabulary"); err != nil {
		return err
	}
	return nil
}
