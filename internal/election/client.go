package election

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnavailable signals that the external source could not answer; the
// resolver moves down the fallback chain.
var ErrUnavailable = errors.New("election date source unavailable")

// Dates is one jurisdiction's primary and general election dates for a cycle.
type Dates struct {
	Primary time.Time
	General time.Time
}

// DatesClient fetches primary/general election dates from an external source.
type DatesClient interface {
	FetchElectionDates(ctx context.Context, jurisdiction string, year int) (Dates, error)
}

// HTTPDatesClient talks to an election-data API exposing
// GET {base}/elections/{year}/{jurisdiction}.
type HTTPDatesClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPDatesClient builds a client; a nil httpClient falls back to a default
// with a 10s timeout.
func NewHTTPDatesClient(baseURL string, httpClient *http.Client) *HTTPDatesClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPDatesClient{baseURL: baseURL, httpClient: httpClient}
}

type datesResponse struct {
	Primary string `json:"primary"`
	General string `json:"general"`
}

// FetchElectionDates implements DatesClient. Any transport or decode failure
// is reported as ErrUnavailable; the caller owns fallback policy.
func (c *HTTPDatesClient) FetchElectionDates(ctx context.Context, jurisdiction string, year int) (Dates, error) {
	if c.baseURL == "" {
		return Dates{}, fmt.Errorf("no base url configured: %w", ErrUnavailable)
	}
	url := fmt.Sprintf("%s/elections/%d/%s", c.baseURL, year, jurisdiction)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Dates{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Dates{}, fmt.Errorf("fetch election dates: %w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Dates{}, fmt.Errorf("election source returned %d: %w", resp.StatusCode, ErrUnavailable)
	}
	var payload datesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Dates{}, fmt.Errorf("decode election dates: %w: %w", ErrUnavailable, err)
	}
	primary, err := time.Parse("2006-01-02", payload.Primary)
	if err != nil {
		return Dates{}, fmt.Errorf("parse primary date %q: %w: %w", payload.Primary, ErrUnavailable, err)
	}
	general, err := time.Parse("2006-01-02", payload.General)
	if err != nil {
		return Dates{}, fmt.Errorf("parse general date %q: %w: %w", payload.General, ErrUnavailable, err)
	}
	return Dates{Primary: primary, General: general}, nil
}
