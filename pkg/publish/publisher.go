// Package publish pushes the current pendency list back into the revisit
// form as lightweight tracking submissions, idempotently.
package publish

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/gustavoairestiago/cadastro-retorno/pkg/errors"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/kobo"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/models"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/tracing"
	"golang.org/x/sync/errgroup"
)

// Tracking submission field names. The record_type marker separates tracking
// rows from real field submissions on the same form.
const (
	FieldRecordType  = "record_type"
	TrackingType     = "pendency_tracking"
	FieldHouseholdID = "household_id"
	FieldAddress     = "address"
	FieldStatus      = "status"
	FieldAttempts    = "attempts"
	FieldLastMaster  = "last_master_visit_at"
	FieldLastRevisit = "last_revisit_at"
)

// DefaultConcurrency bounds parallel remote writes per publish call.
const DefaultConcurrency = 8

// Remote is the survey-service surface the publisher writes through.
type Remote interface {
	FetchAll(ctx context.Context, formID string) ([]kobo.Submission, error)
	CreateSubmission(ctx context.Context, formID string, payload map[string]any) error
	UpdateSubmission(ctx context.Context, formID, submissionID string, payload map[string]any) error
}

// Publisher upserts tracking submissions keyed by household id.
type Publisher struct {
	remote      Remote
	concurrency int
	logger      *zap.Logger
}

// NewPublisher creates a publisher with a bounded write concurrency.
func NewPublisher(remote Remote, concurrency int, logger *zap.Logger) *Publisher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Publisher{remote: remote, concurrency: concurrency, logger: logger}
}

// Publish upserts one tracking submission per pendency record. Repeated
// calls with unchanged pendency data perform no remote writes: every item is
// reported as skipped. A failure on one household never blocks the rest; the
// caller sees one aggregate report once every item has settled.
func (p *Publisher) Publish(ctx context.Context, records []models.PendencyRecord, revisitFormID string) (*models.PublishReport, error) {
	ctx, span := tracing.StartSpan(ctx, "publish.Publisher.Publish")
	defer span.End()

	existing, err := p.remote.FetchAll(ctx, revisitFormID)
	if err != nil {
		return nil, err
	}
	tracked := indexTracking(existing)

	report := &models.PublishReport{
		Total: len(records),
		Items: make([]models.PublishItemResult, 0, len(records)),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, record := range records {
		// Cancellation stops issuing new writes; in-flight ones complete.
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			item := p.publishOne(gctx, record, tracked[record.HouseholdID], revisitFormID)
			mu.Lock()
			report.Items = append(report.Items, item)
			mu.Unlock()
			return nil
		})
	}

	// Worker errors are folded into per-item results, never returned.
	_ = g.Wait()

	sort.Slice(report.Items, func(i, j int) bool {
		return report.Items[i].HouseholdID < report.Items[j].HouseholdID
	})
	for _, item := range report.Items {
		switch item.Action {
		case models.PublishCreated:
			report.Created++
		case models.PublishUpdated:
			report.Updated++
		case models.PublishSkipped:
			report.Skipped++
		case models.PublishFailed:
			report.Failed++
		}
	}

	p.logger.Info("Published pendency list",
		zap.String("form_id", revisitFormID),
		zap.Int("total", report.Total),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))

	return report, nil
}

func (p *Publisher) publishOne(ctx context.Context, record models.PendencyRecord, current kobo.Submission, formID string) models.PublishItemResult {
	desired := TrackingPayload(record)

	if current != nil {
		if payloadEqual(current, desired) {
			return models.PublishItemResult{HouseholdID: record.HouseholdID, Action: models.PublishSkipped}
		}
		if err := p.remote.UpdateSubmission(ctx, formID, current.ID(), desired); err != nil {
			return p.failedItem(record, err)
		}
		return models.PublishItemResult{HouseholdID: record.HouseholdID, Action: models.PublishUpdated}
	}

	if err := p.remote.CreateSubmission(ctx, formID, desired); err != nil {
		return p.failedItem(record, err)
	}
	return models.PublishItemResult{HouseholdID: record.HouseholdID, Action: models.PublishCreated}
}

func (p *Publisher) failedItem(record models.PendencyRecord, err error) models.PublishItemResult {
	failure := &apperrors.PublishItemFailure{HouseholdID: record.HouseholdID, Err: err}
	p.logger.Warn("Sync-back write failed",
		zap.String("household_id", record.HouseholdID), zap.Error(failure))
	return models.PublishItemResult{
		HouseholdID: record.HouseholdID,
		Action:      models.PublishFailed,
		Error:       failure.Error(),
	}
}

// TrackingPayload builds the tracking submission for one pendency record.
// Every value is a string so remote round-trips compare cleanly.
func TrackingPayload(record models.PendencyRecord) map[string]any {
	return map[string]any{
		FieldRecordType:  TrackingType,
		FieldHouseholdID: record.HouseholdID,
		FieldAddress:     record.Address,
		FieldStatus:      string(record.Status),
		FieldAttempts:    strconv.Itoa(record.Attempts),
		FieldLastMaster:  formatTime(record.LastMasterVisitAt),
		FieldLastRevisit: formatTime(record.LastRevisitAt),
	}
}

// indexTracking maps existing tracking submissions by household id. Real
// field submissions on the form are ignored.
func indexTracking(submissions []kobo.Submission) map[string]kobo.Submission {
	index := make(map[string]kobo.Submission)
	for _, sub := range submissions {
		if marker, _ := sub[FieldRecordType].(string); marker != TrackingType {
			continue
		}
		id, _ := sub[FieldHouseholdID].(string)
		if id == "" {
			continue
		}
		// Keep the first by submission id so re-indexing is deterministic even
		// if duplicates were created out-of-band.
		if prev, ok := index[id]; ok && prev.ID() <= sub.ID() {
			continue
		}
		index[id] = sub
	}
	return index
}

// payloadEqual compares the desired tracking fields against the stored
// submission, ignoring server metadata keys.
func payloadEqual(current kobo.Submission, desired map[string]any) bool {
	for key, want := range desired {
		got, _ := current[key].(string)
		if got != want.(string) {
			return false
		}
	}
	return true
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
