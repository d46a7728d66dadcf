// Package prospect wraps the person/organization search API used to discover
// candidates for mining jobs.
package prospect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/icp-miner/internal/resilience"
)

// Default base URL for the search API.
const defaultBaseURL = "https://api.prospector.dev/v1"

// Client defines the search API operations used by the pipeline.
type Client interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// SearchRequest is the body for POST /people/search. One request fetches
// exactly one page.
type SearchRequest struct {
	Titles        []string `json:"titles,omitempty"`
	Seniorities   []string `json:"seniorities,omitempty"`
	Locations     []string `json:"locations,omitempty"`
	Industries    []string `json:"industries,omitempty"`
	EmployeeRange string   `json:"employee_range,omitempty"`
	Keywords      string   `json:"keywords,omitempty"`
	Page          int      `json:"page"`
	PageSize      int      `json:"page_size"`
	SiteID        string   `json:"site_id,omitempty"`
	UserID        string   `json:"user_id,omitempty"`
}

// SearchResponse is one normalized page of search results. Total is only
// populated by the API on page 0.
type SearchResponse struct {
	Results []Result
	Total   *int
	HasMore bool
}

// Person is the person half of a search result.
type Person struct {
	ID          string   `json:"id"`
	FullName    string   `json:"full_name"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Emails      []string `json:"emails"`
	Location    string   `json:"location"`
	LinkedInURL string   `json:"linkedin_url"`
}

// Organization is the organization half of a search result.
type Organization struct {
	Name     string `json:"name"`
	Domain   string `json:"domain"`
	Website  string `json:"website"`
	Industry string `json:"industry"`
}

// Result is one person/organization/role entry from the search API.
type Result struct {
	Person       Person       `json:"person"`
	Organization Organization `json:"organization"`
	RoleID       string       `json:"role_id"`
	RoleTitle    string       `json:"role_title"`
	StartDate    string       `json:"start_date"`
	EndDate      string       `json:"end_date"`
	IsCurrent    bool         `json:"is_current"`

	raw json.RawMessage
}

// Raw returns the untouched payload for this entry, retained for audit and
// lead metadata.
func (r *Result) Raw() json.RawMessage {
	return r.raw
}

// UnmarshalJSON decodes the entry and keeps a copy of the original payload.
func (r *Result) UnmarshalJSON(data []byte) error {
	type alias Result
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = Result(a)
	r.raw = append(json.RawMessage(nil), data...)
	return nil
}

// APIError is returned when the search API responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("prospect: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate (5 req/s).
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new search API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(5, 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search fetches one page of results for the given criteria.
func (c *httpClient) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "prospect: rate limit")
		}
	}

	var env envelope
	if err := c.post(ctx, "/people/search", req, &env); err != nil {
		return nil, eris.Wrapf(err, "prospect: search page %d", req.Page)
	}
	return env.normalize(), nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(data)}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}
