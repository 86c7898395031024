// Package export serializes a pendency set into tabular artifacts.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/gustavoairestiago/cadastro-retorno/pkg/models"
)

// SheetName is the single sheet holding the pendency list.
const SheetName = "Pendencias"

// timestampLayout is the cell format for visit timestamps.
const timestampLayout = "2006-01-02 15:04:05"

// Columns is the fixed export column order. Repeated exports of the same
// reconciliation must be byte-identical; the sync-back step depends on it.
var Columns = []string{
	"household_id",
	"address",
	"status",
	"last_master_visit_at",
	"last_revisit_at",
	"attempts",
}

// Rows converts records to export rows in deterministic order: status
// priority first, then household id ascending.
func Rows(records []models.PendencyRecord) [][]string {
	ordered := make([]models.PendencyRecord, len(records))
	copy(ordered, records)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Status.Priority() != ordered[j].Status.Priority() {
			return ordered[i].Status.Priority() < ordered[j].Status.Priority()
		}
		return ordered[i].HouseholdID < ordered[j].HouseholdID
	})

	rows := make([][]string, 0, len(ordered))
	for _, r := range ordered {
		rows = append(rows, []string{
			r.HouseholdID,
			r.Address,
			r.Status.Label(),
			formatTime(r.LastMasterVisitAt),
			formatTime(r.LastRevisitAt),
			strconv.Itoa(r.Attempts),
		})
	}
	return rows
}

// XLSX renders the pendency set as a one-sheet spreadsheet with a header
// row.
func XLSX(records []models.PendencyRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	writeRow := func(rowIdx int, values []string) error {
		for colIdx, value := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(SheetName, cell, value); err != nil {
				return err
			}
		}
		return nil
	}

	if err := writeRow(1, Columns); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range Rows(records) {
		if err := writeRow(i+2, row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// CSV renders the pendency set as UTF-8 CSV with a header row. This is the
// artifact uploaded back to the revisit form as media.
func CSV(records []models.PendencyRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Columns); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range Rows(records) {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}
