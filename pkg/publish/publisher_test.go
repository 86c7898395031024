package publish

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gustavoairestiago/cadastro-retorno/pkg/kobo"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/models"
)

// fakeRemote is an in-memory survey form. Tracking submissions live in
// store keyed by submission id.
type fakeRemote struct {
	mu     sync.Mutex
	store  map[string]kobo.Submission
	nextID int

	failHouseholds map[string]bool
	creates        int
	updates        int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		store:          make(map[string]kobo.Submission),
		nextID:         1,
		failHouseholds: make(map[string]bool),
	}
}

func (f *fakeRemote) FetchAll(ctx context.Context, formID string) ([]kobo.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]kobo.Submission, 0, len(f.store))
	for _, sub := range f.store {
		out = append(out, sub)
	}
	return out, nil
}

func (f *fakeRemote) CreateSubmission(ctx context.Context, formID string, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := payload[FieldHouseholdID].(string)
	if f.failHouseholds[id] {
		return errors.New("remote rejected the write")
	}
	sub := kobo.Submission{"_id": float64(f.nextID)}
	f.nextID++
	for k, v := range payload {
		sub[k] = v
	}
	f.store[sub.ID()] = sub
	f.creates++
	return nil
}

func (f *fakeRemote) UpdateSubmission(ctx context.Context, formID, submissionID string, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := payload[FieldHouseholdID].(string)
	if f.failHouseholds[id] {
		return errors.New("remote rejected the write")
	}
	sub, ok := f.store[submissionID]
	if !ok {
		return errors.New("no such submission")
	}
	for k, v := range payload {
		sub[k] = v
	}
	f.updates++
	return nil
}

func pendingSet() []models.PendencyRecord {
	visited := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return []models.PendencyRecord{
		{HouseholdID: "h1", Address: "Rua A, 1", Status: models.StatusPendingRevisit, LastMasterVisitAt: &visited, Attempts: 1},
		{HouseholdID: "h2", Address: "Rua B, 2", Status: models.StatusPendingFirstVisit, LastMasterVisitAt: &visited},
		{HouseholdID: "h3", Status: models.StatusNoMaster, Attempts: 2},
	}
}

func TestPublishCreatesAllOnEmptyForm(t *testing.T) {
	remote := newFakeRemote()
	publisher := NewPublisher(remote, 4, zap.NewNop())

	report, err := publisher.Publish(context.Background(), pendingSet(), "form-r")
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 3, report.Created)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 0, report.Failed)

	// Items come back sorted by household id.
	require.Len(t, report.Items, 3)
	assert.Equal(t, "h1", report.Items[0].HouseholdID)
	assert.Equal(t, "h3", report.Items[2].HouseholdID)
}

func TestPublishSecondRunSkipsEverything(t *testing.T) {
	remote := newFakeRemote()
	publisher := NewPublisher(remote, 4, zap.NewNop())

	records := pendingSet()
	_, err := publisher.Publish(context.Background(), records, "form-r")
	require.NoError(t, err)

	report, err := publisher.Publish(context.Background(), records, "form-r")
	require.NoError(t, err)

	assert.Equal(t, 3, report.Skipped)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 3, remote.creates)
	assert.Equal(t, 0, remote.updates)
}

func TestPublishUpdatesChangedHouseholds(t *testing.T) {
	remote := newFakeRemote()
	publisher := NewPublisher(remote, 4, zap.NewNop())

	records := pendingSet()
	_, err := publisher.Publish(context.Background(), records, "form-r")
	require.NoError(t, err)

	records[0].Attempts = 5
	report, err := publisher.Publish(context.Background(), records, "form-r")
	require.NoError(t, err)

	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 2, report.Skipped)
}

func TestPublishIsolatesItemFailures(t *testing.T) {
	remote := newFakeRemote()
	remote.failHouseholds["h2"] = true
	publisher := NewPublisher(remote, 4, zap.NewNop())

	report, err := publisher.Publish(context.Background(), pendingSet(), "form-r")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 1, report.Failed)

	var failed *models.PublishItemResult
	for i := range report.Items {
		if report.Items[i].Action == models.PublishFailed {
			failed = &report.Items[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "h2", failed.HouseholdID)
	assert.Contains(t, failed.Error, "sync-back write failed for household h2")
	assert.Contains(t, failed.Error, "remote rejected the write")
}

func TestPublishIgnoresNonTrackingSubmissions(t *testing.T) {
	remote := newFakeRemote()
	// A real field submission on the same form, no record_type marker.
	remote.store["999"] = kobo.Submission{
		"_id":          float64(999),
		"household_id": "h1",
		"status":       "02",
	}
	publisher := NewPublisher(remote, 4, zap.NewNop())

	report, err := publisher.Publish(context.Background(), pendingSet(), "form-r")
	require.NoError(t, err)

	// h1 gets a fresh tracking submission instead of clobbering field data.
	assert.Equal(t, 3, report.Created)
}

func TestPublishEmptyPendingList(t *testing.T) {
	remote := newFakeRemote()
	publisher := NewPublisher(remote, 4, zap.NewNop())

	report, err := publisher.Publish(context.Background(), nil, "form-r")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total)
	assert.Empty(t, report.Items)
}

func TestTrackingPayloadStringValues(t *testing.T) {
	visited := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	payload := TrackingPayload(models.PendencyRecord{
		HouseholdID:       "h1",
		Status:            models.StatusPendingRevisit,
		LastMasterVisitAt: &visited,
		Attempts:          3,
	})

	assert.Equal(t, TrackingType, payload[FieldRecordType])
	assert.Equal(t, "PENDING_REVISIT", payload[FieldStatus])
	assert.Equal(t, "3", payload[FieldAttempts])
	assert.Equal(t, "2024-03-01 10:00:00", payload[FieldLastMaster])
	assert.Equal(t, "", payload[FieldLastRevisit])
}
