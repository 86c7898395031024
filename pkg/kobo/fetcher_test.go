package kobo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/gustavoairestiago/cadastro-retorno/pkg/errors"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/retry"
)

func testPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func newTestFetcher(t *testing.T, handler http.Handler) (*Fetcher, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(Config{BaseURL: server.URL, Token: "secret"}, zap.NewNop())
	return NewFetcher(client, testPolicy(), 2, zap.NewNop()), server
}

func page(next string, subs ...Submission) []byte {
	body, _ := json.Marshal(map[string]any{
		"count":   len(subs),
		"next":    nilable(next),
		"results": subs,
	})
	return body
}

func nilable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func TestFetchAllFollowsPagination(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/assets/form-m/data/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		switch r.URL.Query().Get("page") {
		case "2":
			w.Write(page("",
				Submission{"_id": 3.0, "household_id": "h3"}))
		default:
			w.Write(page(server.URL+"/api/v2/assets/form-m/data/?page=2",
				Submission{"_id": 1.0, "household_id": "h1"},
				Submission{"_id": 2.0, "household_id": "h2"}))
		}
	})

	fetcher, srv := newTestFetcher(t, mux)
	server = srv

	subs, err := fetcher.FetchAll(context.Background(), "form-m")
	require.NoError(t, err)
	require.Len(t, subs, 3)
	assert.Equal(t, "h3", subs[2]["household_id"])
}

func TestFetchAllDeduplicatesAcrossPages(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/assets/form-m/data/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "2":
			// The API repeats record 2 when data shifts between page reads.
			w.Write(page("",
				Submission{"_id": 2.0, "household_id": "h2"},
				Submission{"_id": 3.0, "household_id": "h3"}))
		default:
			w.Write(page(server.URL+"/api/v2/assets/form-m/data/?page=2",
				Submission{"_id": 1.0, "household_id": "h1"},
				Submission{"_id": 2.0, "household_id": "h2"}))
		}
	})

	fetcher, srv := newTestFetcher(t, mux)
	server = srv

	subs, err := fetcher.FetchAll(context.Background(), "form-m")
	require.NoError(t, err)
	assert.Len(t, subs, 3)
}

func TestFetchAllRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/assets/form-m/data/", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write(page("", Submission{"_id": 1.0, "household_id": "h1"}))
	})

	fetcher, _ := newTestFetcher(t, mux)

	subs, err := fetcher.FetchAll(context.Background(), "form-m")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchAllFailsAfterRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/assets/form-m/data/", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	fetcher, _ := newTestFetcher(t, mux)

	_, err := fetcher.FetchAll(context.Background(), "form-m")
	var ferr *apperrors.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "form-m", ferr.FormID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchAllPermanentErrorsDoNotRetry(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/assets/form-m/data/", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	fetcher, _ := newTestFetcher(t, mux)

	_, err := fetcher.FetchAll(context.Background(), "form-m")
	var ferr *apperrors.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchAllInvalidJSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/assets/form-m/data/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json")
	})

	fetcher, _ := newTestFetcher(t, mux)

	_, err := fetcher.FetchAll(context.Background(), "form-m")
	var ferr *apperrors.FetchError
	require.ErrorAs(t, err, &ferr)
}

func TestSubmissionIDPreference(t *testing.T) {
	assert.Equal(t, "42", Submission{"_id": 42.0, "_uuid": "u-1"}.ID())
	assert.Equal(t, "u-1", Submission{"_uuid": "u-1"}.ID())
	assert.Equal(t, "", Submission{}.ID())
}

func TestParseTimestampLayouts(t *testing.T) {
	for _, raw := range []string{
		"2024-03-01T10:00:00.123456Z",
		"2024-03-01T10:00:00Z",
		"2024-03-01T10:00:00",
		"2024-03-01 10:00:00",
	} {
		ts, err := ParseTimestamp(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, time.March, ts.Month())
	}

	_, err := ParseTimestamp("01/03/2024")
	assert.Error(t, err)
}
