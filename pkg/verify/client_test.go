package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/icp-miner/internal/resilience"
)

func TestValidateDeliverable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "jane@acme.io", r.URL.Query().Get("email"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"address":"jane@acme.io","is_valid":true,"deliverable":true,"result":"deliverable"}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	v, err := c.Validate(context.Background(), "jane@acme.io")
	require.NoError(t, err)
	assert.True(t, v.Usable())
	assert.Equal(t, "deliverable", v.Result)
}

func TestValidateNegativeVerdictIsNotError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"is_valid":true,"deliverable":false,"result":"undeliverable","flags":["mailbox_full"]}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	v, err := c.Validate(context.Background(), "dead@acme.io")
	require.NoError(t, err)
	assert.False(t, v.Usable())
	assert.Equal(t, "dead@acme.io", v.Address, "address filled from request when API omits it")
	assert.Contains(t, v.Flags, "mailbox_full")
}

func TestValidateRateLimitedIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.Validate(context.Background(), "jane@acme.io")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestValidateUnauthorizedIsPermanent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("bad", WithBaseURL(srv.URL))
	_, err := c.Validate(context.Background(), "jane@acme.io")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}
