package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zjoart/go-databundle-store/internal/catalog"
)

func TestDeliverSendsProviderPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data-purchase", r.URL.Path)
		assert.Equal(t, "ck_key", r.Header.Get("X-API-Key"))

		var body purchasePayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "AT_PREMIUM", body.NetworkKey)
		assert.Equal(t, "0271234567", body.Recipient)
		assert.Equal(t, "5", body.Capacity)

		fmt.Fprint(w, `{"success":true,"data":{"orderNumber":"CK-991"}}`)
	}))
	defer srv.Close()

	res := NewClient(srv.URL, "ck_key", time.Second).Deliver(context.Background(), Request{
		Network:   catalog.AirtelTigo,
		PlanID:    "5GB",
		Recipient: "0271234567",
	})
	assert.Equal(t, Delivered, res.Outcome)
	assert.Equal(t, "CK-991", res.ProviderRef)
}

func TestDeliverOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		outcome Outcome
		reason  string
	}{
		{"explicit rejection", http.StatusOK, `{"success":false,"error":"Invalid recipient"}`, Rejected, "Invalid recipient"},
		{"rejection on 4xx", http.StatusBadRequest, `{"success":false,"error":"Out of stock"}`, Rejected, "Out of stock"},
		{"server error", http.StatusBadGateway, `{"success":false}`, Indeterminate, ""},
		{"malformed body", http.StatusOK, `<html>oops</html>`, Indeterminate, "malformed provider response"},
		{"success without order number", http.StatusOK, `{"success":true,"data":{}}`, Indeterminate, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			res := NewClient(srv.URL, "k", time.Second).Deliver(context.Background(), Request{
				Network: catalog.MTN, PlanID: "1GB", Recipient: "0241234567",
			})
			assert.Equal(t, tt.outcome, res.Outcome)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, res.Reason)
			}
		})
	}
}

func TestDeliverTimeoutIsIndeterminate(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	res := NewClient(srv.URL, "k", 50*time.Millisecond).Deliver(context.Background(), Request{
		Network: catalog.Telecel, PlanID: "10GB", Recipient: "0201234567",
	})
	assert.Equal(t, Indeterminate, res.Outcome)
}

func TestNetworkKey(t *testing.T) {
	key, ok := NetworkKey(catalog.MTN)
	assert.True(t, ok)
	assert.Equal(t, "YELLO", key)

	_, ok = NetworkKey(catalog.Network("Glo"))
	assert.False(t, ok)
}
