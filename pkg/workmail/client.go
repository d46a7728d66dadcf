// Package workmail wraps the secondary work-email lookup API used as the
// final stage of the email waterfall.
package workmail

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

const defaultBaseURL = "https://api.workmaildb.com/v1"

// Client defines the lookup operations used by the waterfall.
type Client interface {
	Lookup(ctx context.Context, req LookupRequest) (*LookupResponse, error)
}

// LookupRequest identifies the person whose work email is being sought.
type LookupRequest struct {
	FullName      string `json:"full_name"`
	CompanyName   string `json:"company_name,omitempty"`
	CompanyDomain string `json:"company_domain,omitempty"`
	LinkedInURL   string `json:"linkedin_url,omitempty"`
}

// LookupResponse carries zero or more discovered addresses with confidence.
type LookupResponse struct {
	Emails []DiscoveredEmail `json:"emails"`
}

// DiscoveredEmail is one address returned by the lookup provider.
type DiscoveredEmail struct {
	Address    string  `json:"address"`
	Confidence float64 `json:"confidence"`
	Type       string  `json:"type,omitempty"` // "work" or "personal"
}

// Addresses returns the bare address strings in provider order.
func (r *LookupResponse) Addresses() []string {
	out := make([]string, 0, len(r.Emails))
	for _, e := range r.Emails {
		if e.Address != "" {
			out = append(out, e.Address)
		}
	}
	return out
}

// APIError is returned when the lookup API responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("workmail: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new lookup client. The provider meters requests
// aggressively, so calls are rate limited client-side as well.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		limiter: rate.NewLimiter(rate.Limit(2), 2),
		http: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup queries the provider for work addresses. An empty result set is a
// normal response, not an error.
func (c *httpClient) Lookup(ctx context.Context, req LookupRequest) (*LookupResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "workmail: rate limiter")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "workmail: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/lookup", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "workmail: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "workmail: lookup")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "workmail: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(data)}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return nil, apiErr
	}

	var out LookupResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "workmail: decode response")
	}
	return &out, nil
}
