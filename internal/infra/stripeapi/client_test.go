package stripeapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v75"
)

func newFakeStripe(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewWithBackends("sk_test_123", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
}

func TestClient_GetCustomer(t *testing.T) {
	c := newFakeStripe(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/customers/cus_1"):
			_, _ = w.Write([]byte(`{"id":"cus_1","object":"customer","email":"a@b.co","metadata":{"user_id":"u1"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such customer"}}`))
		}
	})

	cus, err := c.GetCustomer(context.Background(), "cus_1")
	require.NoError(t, err)
	require.NotNil(t, cus)
	assert.Equal(t, "a@b.co", cus.Email)
	assert.Equal(t, "u1", cus.Metadata["user_id"])

	missing, err := c.GetCustomer(context.Background(), "cus_gone")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestClient_GetSubscriptionError(t *testing.T) {
	c := newFakeStripe(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"boom"}}`))
	})

	_, err := c.GetSubscription(context.Background(), "sub_1")
	assert.Error(t, err)
}
