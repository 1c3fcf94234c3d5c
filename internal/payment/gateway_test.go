package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDanaGateway_CreateCheckout(t *testing.T) {
	var got danaCheckoutRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/payment/hosted-checkout", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, DanaRequestSignature("m-1", "MDZ-3-1700000000000", 73500, "secret"), r.Header.Get("X-Signature"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"paymentId":   "dana-pay-3",
			"checkoutUrl": "https://checkout.example/3",
		})
	}))
	defer srv.Close()

	g := NewDanaGateway(DanaConfig{MerchantID: "m-1", SecretKey: "secret", BaseURL: srv.URL + "/"})
	co, err := g.CreateCheckout(context.Background(), CheckoutRequest{
		Reference: "MDZ-3-1700000000000",
		OrderID:   3,
		Amount:    73500,
		Units:     400,
		Method:    "gopay",
	})
	require.NoError(t, err)
	assert.Equal(t, "dana-pay-3", co.PaymentID)
	assert.Equal(t, "https://checkout.example/3", co.CheckoutURL)

	assert.Equal(t, "MDZ-3-1700000000000", got.OrderID)
	assert.Equal(t, int64(73500), got.Amount)
	assert.Equal(t, "IDR", got.Currency)
	assert.Equal(t, "gopay", got.PaymentMethod)
	assert.Equal(t, "Guest", got.CustomerInfo.CustomerName)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "robux-400", got.Items[0].ID)
}

func TestDanaGateway_PaymentURLFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"paymentUrl":"https://pay.example/x"}`))
	}))
	defer srv.Close()

	co, err := NewDanaGateway(DanaConfig{BaseURL: srv.URL}).CreateCheckout(context.Background(), CheckoutRequest{Reference: "MDZ-1-1"})
	require.NoError(t, err)
	assert.Empty(t, co.PaymentID)
	assert.Equal(t, "https://pay.example/x", co.CheckoutURL)
}

func TestDanaGateway_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "merchant suspended", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewDanaGateway(DanaConfig{BaseURL: srv.URL}).CreateCheckout(context.Background(), CheckoutRequest{Reference: "MDZ-1-1"})
	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Code)
	assert.Equal(t, VendorDana, se.Vendor)
}

func TestMidtransGateway_CreateAndQuery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/snap/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "server-key", user)
		assert.Empty(t, pass)

		var req snapRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "MDZ-4-1700000000000", req.TransactionDetails.OrderID)
		assert.Equal(t, []string{"gopay"}, req.EnabledPayments)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"token":"snap-token","redirect_url":"https://app.midtrans/snap/v2/vtweb/snap-token"}`))
	})
	mux.HandleFunc("/v2/MDZ-4-1700000000000/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status_code":"200","transaction_status":"capture","fraud_status":"accept"}`))
	})
	mux.HandleFunc("/v2/MDZ-5-1700000000000/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status_code":"404","status_message":"Transaction doesn't exist."}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := NewMidtransGateway(MidtransConfig{ServerKey: "server-key", SnapURL: srv.URL, APIURL: srv.URL})
	co, err := g.CreateCheckout(context.Background(), CheckoutRequest{Reference: "MDZ-4-1700000000000", Amount: 73500, Units: 400, Method: "gopay"})
	require.NoError(t, err)
	assert.Equal(t, "snap-token", co.PaymentID)
	assert.Contains(t, co.CheckoutURL, "snap-token")

	st, err := g.QueryStatus(context.Background(), "MDZ-4-1700000000000")
	require.NoError(t, err)
	assert.Equal(t, VendorStatus{Status: "capture", FraudStatus: "accept"}, st)

	_, err = g.QueryStatus(context.Background(), "MDZ-5-1700000000000")
	assert.Error(t, err)
}
