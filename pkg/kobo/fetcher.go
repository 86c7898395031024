package kobo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	apperrors "github.com/gustavoairestiago/cadastro-retorno/pkg/errors"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/metrics"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/retry"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/tracing"
)

// DefaultPageSize matches the survey service's maximum listing page size.
const DefaultPageSize = 10000

// Fetcher retrieves all submissions for a form, across pagination, with
// retry on transient failure.
type Fetcher struct {
	client   *Client
	policy   retry.Policy
	pageSize int
	logger   *zap.Logger
}

// NewFetcher creates a fetcher on top of a project's API client.
func NewFetcher(client *Client, policy retry.Policy, pageSize int, logger *zap.Logger) *Fetcher {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Fetcher{client: client, policy: policy, pageSize: pageSize, logger: logger}
}

type listPage struct {
	Count   int          `json:"count"`
	Next    *string      `json:"next"`
	Results []Submission `json:"results"`
}

// FetchAll retrieves every submission for the form, following pagination
// until no next page exists. Results are deduplicated by submission id, which
// guards against API-side duplication when a page request is retried. A
// *errors.FetchError is returned once retries are exhausted.
func (f *Fetcher) FetchAll(ctx context.Context, formID string) ([]Submission, error) {
	ctx, span := tracing.StartSpan(ctx, "kobo.Fetcher.FetchAll")
	defer span.End()

	pageURL := fmt.Sprintf("/api/v2/assets/%s/data/?format=json&page_size=%d", url.PathEscape(formID), f.pageSize)

	results := make([]Submission, 0)
	seen := make(map[string]struct{})
	page := 0

	for pageURL != "" {
		page++
		body, err := f.fetchPage(ctx, formID, pageURL)
		if err != nil {
			return nil, apperrors.NewFetchError(formID, err)
		}

		var parsed listPage
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, apperrors.NewFetchError(formID, fmt.Errorf("invalid listing response: %w", err))
		}

		for _, sub := range parsed.Results {
			id := sub.ID()
			if id != "" {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
			}
			results = append(results, sub)
		}

		pageURL = ""
		if parsed.Next != nil {
			pageURL = *parsed.Next
		}
	}

	f.logger.Info("Fetched submissions",
		zap.String("form_id", formID), zap.Int("pages", page), zap.Int("count", len(results)))

	return results, nil
}

// fetchPage retrieves one listing page, retrying timeouts and 5xx responses
// under the bounded backoff policy.
func (f *Fetcher) fetchPage(ctx context.Context, formID, pageURL string) ([]byte, error) {
	var body []byte
	err := f.policy.Do(ctx, func() error {
		resp, err := f.client.Get(ctx, pageURL)
		if err != nil {
			metrics.RecordFetch(formID, "error", 0)
			// Network-level failures (timeouts, resets) are transient.
			return retry.Retryable(err)
		}
		metrics.RecordFetch(formID, strconv.Itoa(resp.StatusCode), resp.Duration.Seconds())
		if resp.IsTransient() {
			return retry.Retryable(fmt.Errorf("survey API returned status %d", resp.StatusCode))
		}
		if !resp.IsSuccess() {
			return fmt.Errorf("survey API returned status %d", resp.StatusCode)
		}
		body = resp.Body
		return nil
	})
	return body, err
}
