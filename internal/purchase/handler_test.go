package purchase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zjoart/go-databundle-store/internal/account"
	"github.com/zjoart/go-databundle-store/internal/order"
	"github.com/zjoart/go-databundle-store/internal/provider"
	"github.com/zjoart/go-databundle-store/internal/shop"
)

func newHandler(f *fixture) *Handler {
	shops := shop.NewService(f.db, shop.NewRepository(f.db), f.accounts, f.catalog, 2000)
	return NewHandler(f.orch, f.orders, f.catalog, shops)
}

func doJSON(t *testing.T, fn http.HandlerFunc, acct *account.Account, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/purchase", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if acct != nil {
		req = req.WithContext(account.NewContext(req.Context(), *acct))
	}
	rec := httptest.NewRecorder()
	fn(rec, req)
	return rec
}

func TestPurchaseHandler(t *testing.T) {
	f := newFixture(t)
	h := newHandler(f)
	acct := f.account(t, account.TierStandard, 10000)

	tests := []struct {
		name   string
		acct   *account.Account
		body   string
		status int
	}{
		{"unauthenticated", nil, `{}`, http.StatusUnauthorized},
		{"unknown network", acct, `{"network":"Glo","plan_id":"5GB","phone":"0541234567"}`, http.StatusBadRequest},
		{"short phone", acct, `{"network":"MTN","plan_id":"5GB","phone":"054"}`, http.StatusBadRequest},
		{"unknown plan", acct, `{"network":"MTN","plan_id":"77GB","phone":"0541234567"}`, http.StatusBadRequest},
		{"delivered", acct, `{"network":"mtn","plan_id":"5","phone":"0541234567"}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h.Purchase, tt.acct, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, int64(7000), f.balance(t, acct.ID).Wallet)
}

func TestPurchaseHandlerReportsRefund(t *testing.T) {
	f := newFixture(t)
	h := newHandler(f)
	acct := f.account(t, account.TierStandard, 3000)
	f.gateway.result = provider.Result{Outcome: provider.Rejected, Reason: "Invalid recipient"}

	rec := doJSON(t, h.Purchase, acct, `{"network":"MTN","plan_id":"5GB","phone":"0541234567"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var resp struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Failed: Invalid recipient. Wallet refunded.", resp.Message)

	rec = doJSON(t, h.Purchase, acct, `{"network":"MTN","plan_id":"10GB","phone":"0541234567"}`)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestPurchaseAPIHonoursReference(t *testing.T) {
	f := newFixture(t)
	h := newHandler(f)
	acct := f.account(t, account.TierReseller, 10000)
	f.gateway.result = provider.Result{Outcome: provider.Delivered}

	body := `{"network":"MTN","plan_id":"1GB","phone":"0541234567","reference":"ext-1"}`
	rec := doJSON(t, h.PurchaseAPI, acct, body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h.PurchaseAPI, acct, body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	o, err := f.orders.FindByReference(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.Equal(t, order.OriginExternalAPI, o.Origin)
}

func TestDataPlans(t *testing.T) {
	f := newFixture(t)
	h := newHandler(f)

	rec := httptest.NewRecorder()
	h.DataPlans(rec, httptest.NewRequest(http.MethodGet, "/api/data-plans", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pricing":"retail"`)

	reseller := f.account(t, account.TierReseller, 0)
	req := httptest.NewRequest(http.MethodGet, "/api/data-plans", nil)
	req = req.WithContext(account.NewContext(req.Context(), *reseller))
	rec = httptest.NewRecorder()
	h.DataPlans(rec, req)
	assert.Contains(t, rec.Body.String(), `"pricing":"wholesale"`)
}

type failingCount struct {
	order.Repository
}

func (failingCount) Count(ctx context.Context, f order.Filter) (int64, error) {
	return 0, errors.New("connection reset")
}

func TestListOrdersCountFailure(t *testing.T) {
	f := newFixture(t)
	acct := f.account(t, account.TierStandard, 10000)
	_, err := f.orch.Purchase(context.Background(), mtn5GB(acct))
	require.NoError(t, err)

	h := newHandler(f)
	h.Orders = failingCount{f.orders}

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req = req.WithContext(account.NewContext(req.Context(), *acct))
	rec := httptest.NewRecorder()
	h.ListOrders(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
