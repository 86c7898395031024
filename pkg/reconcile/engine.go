// Package reconcile joins Master and Revisit submissions by household
// identity and derives one pendency status per household.
package reconcile

import (
	"context"
	"sort"
	"strconv"

	"go.uber.org/zap"

	apperrors "github.com/gustavoairestiago/cadastro-retorno/pkg/errors"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/fields"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/kobo"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/models"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/tracing"
)

const (
	formMaster  = "master"
	formRevisit = "revisit"
)

// Engine classifies households from the two form datasets. It owns
// PendencyRecord creation; its inputs are read-only for the run and discarded
// afterwards.
type Engine struct {
	masterResolver  *fields.Resolver
	revisitResolver *fields.Resolver
	masterVocab     models.StatusVocabulary
	revisitVocab    models.StatusVocabulary
	logger          *zap.Logger
}

// NewEngine creates an engine for one project's configuration.
func NewEngine(project *models.Project, logger *zap.Logger) *Engine {
	return &Engine{
		masterResolver:  fields.NewResolver(project.MasterFields.Data),
		revisitResolver: fields.NewResolver(project.RevisitFields.Data),
		masterVocab:     project.MasterVocabulary.Data,
		revisitVocab:    project.RevisitVocabulary.Data,
		logger:          logger,
	}
}

// Result is the engine's output for one run.
type Result struct {
	Records  []models.PendencyRecord
	Warnings []apperrors.Warning
}

// household accumulates the per-household join state.
type household struct {
	master   *models.VisitRecord
	revisit  *models.VisitRecord
	attempts int
}

// Reconcile joins the two datasets and classifies every household. Running it
// twice on identical inputs yields identical output: records are sorted by
// status priority then household id, and grouping never depends on input or
// map iteration order.
func (e *Engine) Reconcile(ctx context.Context, master, revisit []kobo.Submission) (*Result, error) {
	_, span := tracing.StartSpan(ctx, "reconcile.Engine.Reconcile")
	defer span.End()

	if master == nil {
		return nil, apperrors.NewReconciliationError("master submission set is nil")
	}
	if revisit == nil {
		return nil, apperrors.NewReconciliationError("revisit submission set is nil")
	}

	warnings := make([]apperrors.Warning, 0)
	households := make(map[string]*household)

	for _, sub := range master {
		record, warn := parseRecord(sub, e.masterResolver, formMaster)
		if warn != nil {
			warnings = append(warnings, *warn)
			continue
		}
		key := models.NormalizeHouseholdID(record.HouseholdID)
		h := households[key]
		if h == nil {
			h = &household{}
			households[key] = h
		}
		if h.master == nil || newerRecord(record, h.master) {
			h.master = record
		}
	}

	for _, sub := range revisit {
		record, warn := parseRecord(sub, e.revisitResolver, formRevisit)
		if warn != nil {
			warnings = append(warnings, *warn)
			continue
		}
		key := models.NormalizeHouseholdID(record.HouseholdID)
		h := households[key]
		if h == nil {
			h = &household{}
			households[key] = h
		}
		h.attempts++
		if h.revisit == nil || newerRecord(record, h.revisit) {
			h.revisit = record
		}
	}

	records := make([]models.PendencyRecord, 0, len(households))
	for key, h := range households {
		if h.master == nil {
			warnings = append(warnings, apperrors.Warning{
				Kind:        apperrors.WarningOrphanRevisit,
				Form:        formRevisit,
				HouseholdID: key,
				Detail:      "revisit submissions exist but no master record was found",
			})
		}
		records = append(records, e.classify(key, h))
	}

	sortRecords(records)
	sortWarnings(warnings)

	e.logger.Info("Reconciled households",
		zap.Int("households", len(records)),
		zap.Int("master_records", len(master)),
		zap.Int("revisit_records", len(revisit)),
		zap.Int("warnings", len(warnings)))

	return &Result{Records: records, Warnings: warnings}, nil
}

// classify derives the household's status under the strict priority order:
// no master first, then master completeness, then revisit completeness.
func (e *Engine) classify(key string, h *household) models.PendencyRecord {
	record := models.PendencyRecord{
		HouseholdID: key,
		Attempts:    h.attempts,
	}

	if h.revisit != nil {
		t := h.revisit.SubmittedAt
		record.LastRevisitAt = &t
	}

	if h.master == nil {
		record.Status = models.StatusNoMaster
		if h.revisit != nil {
			record.Address = h.revisit.Address
		}
		return record
	}

	t := h.master.SubmittedAt
	record.LastMasterVisitAt = &t
	record.Address = h.master.Address

	switch {
	case !e.masterVocab.IsComplete(h.master.RawStatus):
		record.Status = models.StatusPendingFirstVisit
	case h.revisit == nil || !e.revisitVocab.IsComplete(h.revisit.RawStatus):
		record.Status = models.StatusPendingRevisit
	default:
		record.Status = models.StatusComplete
	}
	return record
}

// Pending filters the actionable subset: every status except COMPLETE.
func Pending(records []models.PendencyRecord) []models.PendencyRecord {
	pending := make([]models.PendencyRecord, 0, len(records))
	for _, r := range records {
		if r.Status.Actionable() {
			pending = append(pending, r)
		}
	}
	return pending
}

// newerRecord implements last-write-wins by submitted_at with the
// submission-id-descending tie-break.
func newerRecord(candidate, current *models.VisitRecord) bool {
	if !candidate.SubmittedAt.Equal(current.SubmittedAt) {
		return candidate.SubmittedAt.After(current.SubmittedAt)
	}
	return compareSubmissionIDs(candidate.SubmissionID, current.SubmissionID) > 0
}

// compareSubmissionIDs orders submission ids by integer value when both
// parse, falling back to lexicographic order.
func compareSubmissionIDs(a, b string) int {
	if av, errA := strconv.ParseInt(a, 10, 64); errA == nil {
		if bv, errB := strconv.ParseInt(b, 10, 64); errB == nil {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func sortRecords(records []models.PendencyRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Status.Priority() != records[j].Status.Priority() {
			return records[i].Status.Priority() < records[j].Status.Priority()
		}
		return records[i].HouseholdID < records[j].HouseholdID
	})
}

func sortWarnings(warnings []apperrors.Warning) {
	sort.Slice(warnings, func(i, j int) bool {
		if warnings[i].Kind != warnings[j].Kind {
			return warnings[i].Kind < warnings[j].Kind
		}
		if warnings[i].HouseholdID != warnings[j].HouseholdID {
			return warnings[i].HouseholdID < warnings[j].HouseholdID
		}
		return warnings[i].SubmissionID < warnings[j].SubmissionID
	})
}
