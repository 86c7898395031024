package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/gustavoairestiago/cadastro-retorno/pkg/errors"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/database"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/kobo"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/models"
)

func testProject() *models.Project {
	return &models.Project{
		MasterVocabulary:  database.JSONB[models.StatusVocabulary]{Data: models.DefaultMasterVocabulary()},
		RevisitVocabulary: database.JSONB[models.StatusVocabulary]{Data: models.DefaultRevisitVocabulary()},
	}
}

func testEngine() *Engine {
	return NewEngine(testProject(), zap.NewNop())
}

func sub(id int, householdID, status, submittedAt string) kobo.Submission {
	s := kobo.Submission{
		"_id":              float64(id),
		"_submission_time": submittedAt,
	}
	if householdID != "" {
		s["household_id"] = householdID
	}
	if status != "" {
		s["status"] = status
	}
	return s
}

func TestReconcileNilInputsRejected(t *testing.T) {
	engine := testEngine()

	_, err := engine.Reconcile(context.Background(), nil, []kobo.Submission{})
	var rerr *apperrors.ReconciliationError
	require.ErrorAs(t, err, &rerr)

	_, err = engine.Reconcile(context.Background(), []kobo.Submission{}, nil)
	require.ErrorAs(t, err, &rerr)
}

func TestReconcileEmptyInputs(t *testing.T) {
	engine := testEngine()

	res, err := engine.Reconcile(context.Background(), []kobo.Submission{}, []kobo.Submission{})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Empty(t, res.Warnings)
}

func TestReconcileClassification(t *testing.T) {
	engine := testEngine()

	master := []kobo.Submission{
		sub(1, "H1", "01", "2024-03-01T10:00:00"), // complete interview
		sub(2, "H2", "02", "2024-03-01T11:00:00"), // refused
		sub(3, "H3", "01", "2024-03-01T12:00:00"), // complete, but revisit open
		sub(4, "H4", "01", "2024-03-01T13:00:00"), // complete, revisit closes it
	}
	revisit := []kobo.Submission{
		sub(10, "H3", "02", "2024-03-05T10:00:00"),
		sub(11, "H4", "04", "2024-03-05T11:00:00"),
		sub(12, "H5", "02", "2024-03-05T12:00:00"), // no master record at all
	}

	res, err := engine.Reconcile(context.Background(), master, revisit)
	require.NoError(t, err)
	require.Len(t, res.Records, 5)

	byID := make(map[string]models.PendencyRecord)
	for _, r := range res.Records {
		byID[r.HouseholdID] = r
	}

	assert.Equal(t, models.StatusPendingRevisit, byID["h1"].Status)
	assert.Equal(t, models.StatusPendingFirstVisit, byID["h2"].Status)
	assert.Equal(t, models.StatusPendingRevisit, byID["h3"].Status)
	assert.Equal(t, models.StatusComplete, byID["h4"].Status)
	assert.Equal(t, models.StatusNoMaster, byID["h5"].Status)

	// The orphan household is still classified, and flagged.
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, apperrors.WarningOrphanRevisit, res.Warnings[0].Kind)
	assert.Equal(t, "h5", res.Warnings[0].HouseholdID)
}

func TestReconcileHouseholdIDNormalization(t *testing.T) {
	engine := testEngine()

	master := []kobo.Submission{
		sub(1, "  DOM-9 ", "01", "2024-03-01T10:00:00"),
	}
	revisit := []kobo.Submission{
		sub(2, "dom-9", "01", "2024-03-02T10:00:00"),
	}

	res, err := engine.Reconcile(context.Background(), master, revisit)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "dom-9", res.Records[0].HouseholdID)
	assert.Equal(t, models.StatusComplete, res.Records[0].Status)
}

func TestReconcileLatestSubmissionWins(t *testing.T) {
	engine := testEngine()

	master := []kobo.Submission{
		sub(1, "H1", "01", "2024-03-01T10:00:00"),
		sub(2, "H1", "02", "2024-03-02T10:00:00"), // newer, incomplete
	}

	res, err := engine.Reconcile(context.Background(), master, []kobo.Submission{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, models.StatusPendingFirstVisit, res.Records[0].Status)
}

func TestReconcileTimestampTieBreaksOnSubmissionID(t *testing.T) {
	engine := testEngine()

	// Same timestamp, higher id treated as the later write.
	master := []kobo.Submission{
		sub(9, "H1", "02", "2024-03-01T10:00:00"),
		sub(10, "H1", "01", "2024-03-01T10:00:00"),
	}

	res, err := engine.Reconcile(context.Background(), master, []kobo.Submission{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, models.StatusPendingRevisit, res.Records[0].Status)
}

func TestReconcileIncompleteMasterWinsOverCompletedRevisit(t *testing.T) {
	engine := testEngine()

	// The master interview is still open, so a finished revisit cannot close
	// the household.
	master := []kobo.Submission{
		sub(1, "H1", "02", "2024-03-01T10:00:00"),
	}
	revisit := []kobo.Submission{
		sub(10, "H1", "01", "2024-03-05T10:00:00"),
	}

	res, err := engine.Reconcile(context.Background(), master, revisit)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, models.StatusPendingFirstVisit, res.Records[0].Status)
}

func TestReconcileNumericHouseholdID(t *testing.T) {
	engine := testEngine()

	// Integer question types arrive as JSON numbers.
	master := []kobo.Submission{{
		"_id":              float64(1),
		"_submission_time": "2024-03-01T10:00:00",
		"household_id":     float64(123),
		"status":           "01",
	}}
	revisit := []kobo.Submission{{
		"_id":              float64(10),
		"_submission_time": "2024-03-05T10:00:00",
		"household_id":     float64(123),
		"status":           "02",
	}}

	res, err := engine.Reconcile(context.Background(), master, revisit)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "123", res.Records[0].HouseholdID)
	assert.Equal(t, models.StatusPendingRevisit, res.Records[0].Status)
	assert.Equal(t, 1, res.Records[0].Attempts)
}

func TestReconcileTieBreakIgnoresLeadingZeros(t *testing.T) {
	engine := testEngine()

	// "010" is longer than "99" but numerically smaller, so 99 is the later
	// write.
	master := []kobo.Submission{
		{"_id": "010", "_submission_time": "2024-03-01T10:00:00", "household_id": "H1", "status": "02"},
		{"_id": "99", "_submission_time": "2024-03-01T10:00:00", "household_id": "H1", "status": "01"},
	}

	res, err := engine.Reconcile(context.Background(), master, []kobo.Submission{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, models.StatusPendingRevisit, res.Records[0].Status)
}

func TestReconcileAttemptsCountAllValidRevisits(t *testing.T) {
	engine := testEngine()

	master := []kobo.Submission{
		sub(1, "H1", "01", "2024-03-01T10:00:00"),
	}
	revisit := []kobo.Submission{
		sub(10, "H1", "02", "2024-03-02T10:00:00"),
		sub(11, "H1", "02", "2024-03-03T10:00:00"),
		sub(12, "H1", "02", "2024-03-04T10:00:00"),
	}

	res, err := engine.Reconcile(context.Background(), master, revisit)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, 3, res.Records[0].Attempts)

	latest := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	require.NotNil(t, res.Records[0].LastRevisitAt)
	assert.Equal(t, latest, *res.Records[0].LastRevisitAt)
}

func TestReconcileMalformedRecordsBecomeWarnings(t *testing.T) {
	engine := testEngine()

	master := []kobo.Submission{
		sub(1, "", "01", "2024-03-01T10:00:00"),      // no household id
		sub(2, "H2", "01", "not-a-timestamp"),        // bad timestamp
		sub(3, "H3", "01", "2024-03-01T10:00:00"),    // fine
	}

	res, err := engine.Reconcile(context.Background(), master, []kobo.Submission{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "h3", res.Records[0].HouseholdID)

	require.Len(t, res.Warnings, 2)
	kinds := []apperrors.WarningKind{res.Warnings[0].Kind, res.Warnings[1].Kind}
	assert.Contains(t, kinds, apperrors.WarningMissingHouseholdID)
	assert.Contains(t, kinds, apperrors.WarningBadTimestamp)
}

func TestReconcileDeterministicOutput(t *testing.T) {
	engine := testEngine()

	master := []kobo.Submission{
		sub(1, "H3", "01", "2024-03-01T10:00:00"),
		sub(2, "H1", "02", "2024-03-01T11:00:00"),
		sub(3, "H2", "01", "2024-03-01T12:00:00"),
	}
	revisit := []kobo.Submission{
		sub(10, "H9", "02", "2024-03-05T10:00:00"),
		sub(11, "H2", "04", "2024-03-05T11:00:00"),
	}

	first, err := engine.Reconcile(context.Background(), master, revisit)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := engine.Reconcile(context.Background(), master, revisit)
		require.NoError(t, err)
		assert.Equal(t, first.Records, again.Records)
		assert.Equal(t, first.Warnings, again.Warnings)
	}

	// Output order follows status priority, then household id.
	statuses := make([]models.Status, 0, len(first.Records))
	for _, r := range first.Records {
		statuses = append(statuses, r.Status)
	}
	assert.Equal(t, []models.Status{
		models.StatusNoMaster,
		models.StatusPendingFirstVisit,
		models.StatusPendingRevisit,
		models.StatusComplete,
	}, statuses)
}

func TestPendingExcludesComplete(t *testing.T) {
	records := []models.PendencyRecord{
		{HouseholdID: "a", Status: models.StatusComplete},
		{HouseholdID: "b", Status: models.StatusPendingRevisit},
		{HouseholdID: "c", Status: models.StatusNoMaster},
	}

	pending := Pending(records)
	require.Len(t, pending, 2)
	for _, r := range pending {
		assert.NotEqual(t, models.StatusComplete, r.Status)
	}
}
