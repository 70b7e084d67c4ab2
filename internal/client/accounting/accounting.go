// Package accounting talks to the external space-accounting service. The
// gateway reports byte deltas best-effort and serves usage reports from it;
// computation of the numbers is the service's problem, not ours.
package accounting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/beanbocchi/cumulus/internal/model"
)

// ErrUnavailable is returned when the accounting service cannot be reached
// within the dependency timeout.
var ErrUnavailable = model.NewError(model.KindDependencyUnavailable, "accounting.unavailable", "space accounting service unavailable: %s")

// UsageReport is the accounting service's per-collection usage summary.
type UsageReport struct {
	CollectionID   int64 `json:"collection_id"`
	BytesAdded     int64 `json:"bytes_added"`
	BytesRetrieved int64 `json:"bytes_retrieved"`
	BytesDeleted   int64 `json:"bytes_deleted"`
}

type Client interface {
	// AddedBytes reports bytes written into a collection.
	AddedBytes(ctx context.Context, collectionID, n int64) error
	// RetrievedBytes reports bytes streamed out of a collection.
	RetrievedBytes(ctx context.Context, collectionID, n int64) error
	// Usage fetches the current usage report for a collection.
	Usage(ctx context.Context, collectionID int64) (UsageReport, error)
}

// HTTPClient is the production accounting client. Every call is bounded by
// the shared dependency timeout; the gateway never retries in-process.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type usageDelta struct {
	// EventID lets the accounting service deduplicate deltas that get
	// resent by a proxy or retried out-of-process.
	EventID      string `json:"event_id"`
	CollectionID int64  `json:"collection_id"`
	Event        string `json:"event"`
	Bytes        int64  `json:"bytes"`
	Timestamp    int64  `json:"timestamp"`
}

func (c *HTTPClient) postDelta(ctx context.Context, event string, collectionID, n int64) error {
	body, err := sonic.Marshal(usageDelta{
		EventID:      uuid.NewString(),
		CollectionID: collectionID,
		Event:        event,
		Bytes:        n,
		Timestamp:    time.Now().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("marshal delta: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/usage/events", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ErrUnavailable.Fmt(reachError(err))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return ErrUnavailable.Fmt(fmt.Sprintf("status %d", resp.StatusCode))
	}
	return nil
}

func (c *HTTPClient) AddedBytes(ctx context.Context, collectionID, n int64) error {
	return c.postDelta(ctx, "added", collectionID, n)
}

func (c *HTTPClient) RetrievedBytes(ctx context.Context, collectionID, n int64) error {
	return c.postDelta(ctx, "retrieved", collectionID, n)
}

func (c *HTTPClient) Usage(ctx context.Context, collectionID int64) (UsageReport, error) {
	url := fmt.Sprintf("%s/usage/%d", c.baseURL, collectionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return UsageReport{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return UsageReport{}, ErrUnavailable.Fmt(reachError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return UsageReport{}, ErrUnavailable.Fmt(fmt.Sprintf("status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return UsageReport{}, ErrUnavailable.Fmt(reachError(err))
	}

	var report UsageReport
	if err := sonic.Unmarshal(raw, &report); err != nil {
		return UsageReport{}, fmt.Errorf("decode usage report: %w", err)
	}
	return report, nil
}

func reachError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "dependency timeout exceeded"
	}
	return err.Error()
}
