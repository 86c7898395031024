package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gustavoairestiago/cadastro-retorno/pkg/database"
	apperrors "github.com/gustavoairestiago/cadastro-retorno/pkg/errors"
)

func TestStatusVocabularyIsComplete(t *testing.T) {
	vocab := DefaultRevisitVocabulary()

	assert.True(t, vocab.IsComplete("01"))
	assert.True(t, vocab.IsComplete(" 01 "))
	assert.True(t, vocab.IsComplete("04"))
	assert.True(t, vocab.IsComplete("05"))
	assert.False(t, vocab.IsComplete("02"))
	assert.False(t, vocab.IsComplete(""))
	assert.False(t, vocab.IsComplete("  "))
}

func TestStatusVocabularyCaseInsensitive(t *testing.T) {
	vocab := StatusVocabulary{CompleteValues: []string{"Done", "CLOSED"}}

	assert.True(t, vocab.IsComplete("done"))
	assert.True(t, vocab.IsComplete("closed "))
	assert.False(t, vocab.IsComplete("open"))
}

func TestStatusVocabularyValidate(t *testing.T) {
	var cerr *apperrors.ConfigError

	err := StatusVocabulary{}.Validate("p1", "master_vocabulary")
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "master_vocabulary", cerr.Field)

	err = StatusVocabulary{CompleteValues: []string{"01", "  "}}.Validate("p1", "master_vocabulary")
	require.ErrorAs(t, err, &cerr)

	assert.NoError(t, DefaultMasterVocabulary().Validate("p1", "master_vocabulary"))
}

func TestFieldMappingPathFallback(t *testing.T) {
	mapping := FieldMapping{"status": "grp/status", "empty": ""}

	assert.Equal(t, "grp/status", mapping.Path("status"))
	assert.Equal(t, "empty", mapping.Path("empty"))
	assert.Equal(t, "household_id", mapping.Path("household_id"))

	var nilMapping FieldMapping
	assert.Equal(t, "status", nilMapping.Path("status"))
}

func TestNormalizeHouseholdID(t *testing.T) {
	assert.Equal(t, "dom-1", NormalizeHouseholdID("  DOM-1  "))
	assert.Equal(t, "", NormalizeHouseholdID("   "))
}

func TestProjectValidate(t *testing.T) {
	project := &Project{
		Name:              "Census 2024",
		SurveyBaseURL:     "https://kobo.example.org",
		SurveyToken:       "secret",
		MasterFormID:      "form-m",
		RevisitFormID:     "form-r",
		MasterVocabulary:  database.JSONB[StatusVocabulary]{Data: DefaultMasterVocabulary()},
		RevisitVocabulary: database.JSONB[StatusVocabulary]{Data: DefaultRevisitVocabulary()},
	}
	require.NoError(t, project.Validate())

	var cerr *apperrors.ConfigError

	missing := *project
	missing.SurveyToken = ""
	err := missing.Validate()
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "survey_token", cerr.Field)

	badVocab := *project
	badVocab.RevisitVocabulary = database.JSONB[StatusVocabulary]{}
	err = badVocab.Validate()
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "revisit_vocabulary", cerr.Field)
}

func TestStatusPriorityOrder(t *testing.T) {
	assert.Less(t, StatusNoMaster.Priority(), StatusPendingFirstVisit.Priority())
	assert.Less(t, StatusPendingFirstVisit.Priority(), StatusPendingRevisit.Priority())
	assert.Less(t, StatusPendingRevisit.Priority(), StatusComplete.Priority())
}

func TestStatusActionable(t *testing.T) {
	assert.True(t, StatusNoMaster.Actionable())
	assert.True(t, StatusPendingFirstVisit.Actionable())
	assert.True(t, StatusPendingRevisit.Actionable())
	assert.False(t, StatusComplete.Actionable())
}
