package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zjoart/go-databundle-store/internal/account"
	"github.com/zjoart/go-databundle-store/internal/schema"
	"github.com/zjoart/go-databundle-store/pkg/config"
	"github.com/zjoart/go-databundle-store/pkg/database/dbtest"
	"github.com/zjoart/go-databundle-store/pkg/events"
)

type app struct {
	t       *testing.T
	handler http.Handler
	svc     *Services
}

func newApp(t *testing.T) *app {
	t.Helper()

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"orderNumber":"CK-1001"}}`))
	}))
	t.Cleanup(provider.Close)

	cfg := config.Config{
		JWTSecret:       "routes-secret",
		Env:             "production",
		AllowedOrigins:  []string{"*"},
		PaystackSecret:  "sk_test_routes",
		PaystackBaseURL: "http://127.0.0.1:1",
		ProviderAPIKey:  "provider-key",
		ProviderBaseURL: provider.URL,
		ProviderTimeout: 2 * time.Second,
		TopUpFeeRate:    decimal.RequireFromString("0.02"),
		TopUpTolerance:  decimal.RequireFromString("0.50"),
		MinTopUpAmount:  100,
		AgentUpgradeFee: 1500,
		MaxMarkup:       2000,
		SweepStaleAfter: 15 * time.Minute,
		APIRateLimit:    100,
		APIRateBurst:    100,
	}

	db := dbtest.New(t, schema.Models()...)
	svc, err := NewServices(db, cfg, events.NewLocalQueue(16))
	require.NoError(t, err)

	return &app{t: t, handler: RegisterRoutes(mux.NewRouter(), cfg, svc), svc: svc}
}

func (a *app) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *app) signup(handle string) (string, *account.Account) {
	a.t.Helper()
	rec := a.do("POST", "/api/auth/signup", `{"username":"`+handle+`","email":"`+handle+`@example.com","password":"secret1"}`, nil)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &body))
	acct, err := a.svc.Accounts.FindByHandle(context.Background(), handle)
	require.NoError(a.t, err)
	return body.Data.Token, acct
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestSessionRoutes(t *testing.T) {
	a := newApp(t)
	token, acct := a.signup("kofi")

	assert.Equal(t, http.StatusUnauthorized, a.do("GET", "/api/me", "", nil).Code)
	assert.Equal(t, http.StatusOK, a.do("GET", "/api/me", "", bearer(token)).Code)

	plans := a.do("GET", "/api/data-plans", "", nil)
	require.Equal(t, http.StatusOK, plans.Code)
	assert.Contains(t, plans.Body.String(), `"pricing":"retail"`)

	// standard accounts are kept out of reseller and operator surfaces
	assert.Equal(t, http.StatusForbidden, a.do("POST", "/api/keys", "", bearer(token)).Code)
	assert.Equal(t, http.StatusForbidden, a.do("GET", "/api/admin/metrics", "", bearer(token)).Code)
	assert.Equal(t, http.StatusForbidden, a.do("POST", "/api/shop", `{"handle":"kofi-data","name":"Kofi"}`, bearer(token)).Code)

	require.NoError(t, a.svc.Ledger.Credit(context.Background(), acct.ID, 5000))
	rec := a.do("POST", "/api/purchase", `{"network":"MTN","plan_id":"1GB","phone":"0241234567"}`, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	orders := a.do("GET", "/api/orders", "", bearer(token))
	require.Equal(t, http.StatusOK, orders.Code)
	assert.Contains(t, orders.Body.String(), `"reference":"CK-1001"`)
}

func TestExternalAPIRoutes(t *testing.T) {
	a := newApp(t)
	token, acct := a.signup("ama_reseller")
	require.NoError(t, a.svc.Accounts.SetTier(context.Background(), acct.ID, account.TierReseller))
	require.NoError(t, a.svc.Ledger.Credit(context.Background(), acct.ID, 10000))

	rec := a.do("POST", "/api/keys", "", bearer(token))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var issued struct {
		Data struct {
			APIKey string `json:"api_key"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	apiKey := map[string]string{"x-api-key": issued.Data.APIKey}

	assert.Equal(t, http.StatusUnauthorized, a.do("GET", "/api/v1/balance", "", nil).Code)
	balance := a.do("GET", "/api/v1/balance", "", apiKey)
	require.Equal(t, http.StatusOK, balance.Code)
	assert.Contains(t, balance.Body.String(), `"wallet_balance":10000`)

	body := `{"network":"MTN","plan_id":"5GB","phone":"0241234567","reference":"client-ref-1"}`
	rec = a.do("POST", "/api/v1/purchase", body, apiKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusConflict, a.do("POST", "/api/v1/purchase", body, apiKey).Code)

	balance = a.do("GET", "/api/v1/balance", "", apiKey)
	assert.Contains(t, balance.Body.String(), `"wallet_balance":7540`)
}

func TestWebhookRouteRejectsForgedPayload(t *testing.T) {
	a := newApp(t)
	rec := a.do("POST", "/api/wallet/paystack/webhook", `{"event":"charge.success"}`, map[string]string{"x-paystack-signature": "forged"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsAndUnknownRoutes(t *testing.T) {
	a := newApp(t)
	assert.Equal(t, http.StatusOK, a.do("GET", "/metrics", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do("GET", "/api/nothing-here", "", nil).Code)
}
