package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusServer(t *testing.T, statuses ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/payment/status", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		n := int(calls.Add(1)) - 1
		if n >= len(statuses) {
			n = len(statuses) - 1
		}
		if statuses[n] == "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"order": map[string]any{"id": 5, "paymentStatus": "PENDING", "orderStatus": statuses[n]},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestPollUntilTerminal(t *testing.T) {
	srv, calls := statusServer(t, "PENDING", "", "COMPLETED")
	c := New(srv.URL, "tok", nil)

	var updates, failures int
	st, err := c.PollUntilTerminal(context.Background(), 5, time.Millisecond, func(_ OrderStatus, err error) {
		updates++
		if err != nil {
			failures++
		}
	})
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", st.OrderStatus)
	assert.True(t, st.Terminal())
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, updates)
	assert.Equal(t, 1, failures)
}

func TestPollUntilTerminal_StopsOnCancel(t *testing.T) {
	srv, _ := statusServer(t, "PENDING")
	c := New(srv.URL, "tok", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	st, err := c.PollUntilTerminal(ctx, 5, 5*time.Millisecond, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "PENDING", st.OrderStatus)
}

func TestPaymentStatus_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("refresh"))
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Forbidden"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", nil).PaymentStatus(context.Background(), 1, true)
	assert.ErrorIs(t, err, ErrStatus)
	assert.Contains(t, err.Error(), "403")
}

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders/guest", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewEncoder(w).Encode(map[string]any{"order": map[string]any{"id": 42}})
	}))
	defer srv.Close()

	id, err := New(srv.URL, "", nil).CreateOrder(context.Background(), map[string]any{"amount": 80}, true)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
}
