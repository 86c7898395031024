package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/gustavoairestiago/cadastro-retorno/pkg/models"
)

func sampleRecords() []models.PendencyRecord {
	visited := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	revisited := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)
	return []models.PendencyRecord{
		{HouseholdID: "h2", Address: "Rua A, 10", Status: models.StatusComplete, LastMasterVisitAt: &visited, LastRevisitAt: &revisited, Attempts: 2},
		{HouseholdID: "h1", Address: "Rua B, 22", Status: models.StatusPendingRevisit, LastMasterVisitAt: &visited, Attempts: 1},
		{HouseholdID: "h3", Status: models.StatusNoMaster, LastRevisitAt: &revisited, Attempts: 1},
	}
}

func TestRowsOrderAndFormatting(t *testing.T) {
	rows := Rows(sampleRecords())
	require.Len(t, rows, 3)

	// Status priority first: NO_MASTER, PENDING_REVISIT, COMPLETE.
	assert.Equal(t, "h3", rows[0][0])
	assert.Equal(t, "h1", rows[1][0])
	assert.Equal(t, "h2", rows[2][0])

	assert.Equal(t, "No master record", rows[0][2])
	assert.Equal(t, "", rows[0][3])
	assert.Equal(t, "2024-03-05 14:00:00", rows[0][4])
	assert.Equal(t, "2024-03-01 10:30:00", rows[2][3])
	assert.Equal(t, "2", rows[2][5])
}

func TestRowsDoesNotMutateInput(t *testing.T) {
	records := sampleRecords()
	first := records[0].HouseholdID

	Rows(records)
	assert.Equal(t, first, records[0].HouseholdID)
}

func TestCSVRoundTrip(t *testing.T) {
	content, err := CSV(sampleRecords())
	require.NoError(t, err)

	parsed, err := csv.NewReader(bytes.NewReader(content)).ReadAll()
	require.NoError(t, err)
	require.Len(t, parsed, 4)
	assert.Equal(t, Columns, parsed[0])
	assert.Equal(t, "h3", parsed[1][0])
}

func TestCSVDeterministic(t *testing.T) {
	a, err := CSV(sampleRecords())
	require.NoError(t, err)
	b, err := CSV(sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestXLSXReadBack(t *testing.T) {
	content, err := XLSX(sampleRecords())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, "h3", rows[1][0])
	assert.Equal(t, "Pending revisit", rows[2][2])
}

func TestExportEmptySet(t *testing.T) {
	content, err := CSV(nil)
	require.NoError(t, err)

	parsed, err := csv.NewReader(bytes.NewReader(content)).ReadAll()
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, Columns, parsed[0])
}
