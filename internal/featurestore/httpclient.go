package featurestore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/psilali/footy-probengine/internal/telemetry"
)

// HTTPClient reads a team's xG sample size from an external HTTP API; it
// fetches no weather or referee data. Requests are rate-limited so a slate
// of fixtures fanning out concurrently never bursts past the upstream
// provider's quota.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewHTTPClient(baseURL string, requestsPerSecond int) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("feature store rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	telemetry.Metrics.FeatureStoreWait.Record(time.Since(start))
	if err != nil {
		return fmt.Errorf("feature store request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read feature store response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feature store %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode feature store response: %w", err)
	}
	return nil
}

// xgProviderResponse is the wire shape of the external xG provider.
type xgProviderResponse struct {
	Samples int `json:"samples"`
}

// XGSampleSize fetches the provider's sample count for a team over HTTP,
// satisfying the XGReader interface for deployments that source xG
// confidence from a live provider instead of the local SQLite cache.
func (c *HTTPClient) XGSampleSize(ctx context.Context, teamID string) (int, error) {
	var resp xgProviderResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/teams/%s/xg-samples", teamID), &resp); err != nil {
		return 0, err
	}
	return resp.Samples, nil
}
