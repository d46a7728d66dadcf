// Package verify wraps the email deliverability validation API.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/icp-miner/internal/resilience"
)

const defaultBaseURL = "https://api.mailsure.io/v1"

// Client defines the validation API operations used by the waterfall.
type Client interface {
	Validate(ctx context.Context, address string) (*Validation, error)
}

// Validation is the verdict for a single address.
type Validation struct {
	Address     string   `json:"address"`
	IsValid     bool     `json:"is_valid"`
	Deliverable bool     `json:"deliverable"`
	Result      string   `json:"result"` // e.g. "deliverable", "undeliverable", "risky", "unknown"
	Flags       []string `json:"flags,omitempty"`
}

// Usable reports whether the address passed both syntax validation and the
// SMTP deliverability probe. Only usable addresses win the waterfall.
func (v *Validation) Usable() bool {
	return v.IsValid && v.Deliverable
}

// APIError is returned when the validation API responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("verify: HTTP %d: %s", e.StatusCode, e.Body)
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

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new validation client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate checks one address. A negative verdict is a normal response, not
// an error; errors mean the probe itself could not run.
func (c *httpClient) Validate(ctx context.Context, address string) (*Validation, error) {
	endpoint := c.baseURL + "/validate?email=" + url.QueryEscape(address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "verify: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "verify: validate %s", address)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "verify: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(data)}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return nil, apiErr
	}

	var v Validation
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, eris.Wrap(err, "verify: decode response")
	}
	if v.Address == "" {
		v.Address = address
	}
	return &v, nil
}
