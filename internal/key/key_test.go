package key

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zjoart/go-databundle-store/internal/account"
	"github.com/zjoart/go-databundle-store/internal/catalog"
	"github.com/zjoart/go-databundle-store/pkg/database/dbtest"
)

type fixture struct {
	accounts account.Repository
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t, &account.Account{})
	cat, err := catalog.Load("")
	require.NoError(t, err)
	accounts := account.NewRepository(db)
	return &fixture{accounts: accounts, svc: NewService(accounts, cat)}
}

func (f *fixture) account(t *testing.T, tier account.Tier) *account.Account {
	t.Helper()
	handle := "acct_" + uuid.NewString()[:8]
	acct := &account.Account{Handle: handle, Email: handle + "@example.com", Tier: tier}
	require.NoError(t, f.accounts.Create(context.Background(), acct))
	return acct
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) account.Account {
	t.Helper()
	acct, err := f.accounts.FindByID(context.Background(), id)
	require.NoError(t, err)
	return *acct
}

func TestIssueRolloverRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.account(t, account.TierReseller)

	token, err := f.svc.Issue(ctx, *acct, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token.Plain, "sk_live_"))
	assert.Equal(t, token.Plain[:8]+"..."+token.Plain[len(token.Plain)-4:], token.Masked)
	assert.Equal(t, []string{"READ", "PURCHASE"}, token.Scopes)

	stored := f.reload(t, acct.ID)
	require.NotNil(t, stored.APITokenHash)
	assert.NotEqual(t, token.Plain, *stored.APITokenHash)
	assert.Equal(t, token.Masked, stored.APITokenMasked)

	_, err = f.svc.Issue(ctx, stored, nil)
	assert.ErrorIs(t, err, ErrTokenExists)

	resolved, err := f.svc.Resolve(ctx, token.Plain)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, resolved.ID)

	rolled, err := f.svc.Rollover(ctx, stored)
	require.NoError(t, err)
	assert.NotEqual(t, token.Plain, rolled.Plain)
	assert.Equal(t, []string{"READ", "PURCHASE"}, rolled.Scopes)

	_, err = f.svc.Resolve(ctx, token.Plain)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = f.svc.Resolve(ctx, rolled.Plain)
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(ctx, f.reload(t, acct.ID)))
	_, err = f.svc.Resolve(ctx, rolled.Plain)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, f.svc.Revoke(ctx, f.reload(t, acct.ID)), ErrNoToken)

	_, err = f.svc.Rollover(ctx, f.reload(t, acct.ID))
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestIssueRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, *f.account(t, account.TierStandard), nil)
	assert.ErrorIs(t, err, ErrNotAllowed)

	_, err = f.svc.Issue(ctx, *f.account(t, account.TierReseller), []string{"DEPOSIT"})
	assert.ErrorIs(t, err, ErrInvalidPermission)

	token, err := f.svc.Issue(ctx, *f.account(t, account.TierOperator), []string{" purchase "})
	require.NoError(t, err)
	assert.Equal(t, []string{"PURCHASE"}, token.Scopes)
}

func TestSetCustomPrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.account(t, account.TierReseller)

	tests := []struct {
		name   string
		prices map[string]int64
		ok     bool
	}{
		{"valid", map[string]int64{"MTN:5GB": 2300, "telecel:10": 4100}, true},
		{"missing separator", map[string]int64{"MTN5GB": 2300}, false},
		{"unknown network", map[string]int64{"Glo:5GB": 2300}, false},
		{"unknown plan", map[string]int64{"MTN:77GB": 2300}, false},
		{"non positive", map[string]int64{"MTN:5GB": 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.SetCustomPrices(ctx, acct.ID, tt.prices)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidPrices)
		})
	}

	overrides, err := f.reload(t, acct.ID).PriceOverrides()
	require.NoError(t, err)
	assert.Equal(t, int64(2300), overrides[catalog.PlanKey(catalog.MTN, "5GB")])
	assert.Equal(t, int64(4100), overrides[catalog.PlanKey(catalog.Telecel, "10GB")])
}

func withAccount(req *http.Request, acct account.Account) *http.Request {
	return req.WithContext(account.NewContext(req.Context(), acct))
}

func TestHandlers(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	reseller := f.account(t, account.TierReseller)
	standard := f.account(t, account.TierStandard)

	rec := httptest.NewRecorder()
	h.CreateAPIKey(rec, withAccount(httptest.NewRequest(http.MethodPost, "/api/keys", nil), *standard))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/keys", bytes.NewBufferString(`{"permissions":["READ","WIRE"]}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	h.CreateAPIKey(rec, withAccount(req, *reseller))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.CreateAPIKey(rec, withAccount(httptest.NewRequest(http.MethodPost, "/api/keys", nil), *reseller))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"api_key":"sk_live_`)

	rec = httptest.NewRecorder()
	h.CreateAPIKey(rec, withAccount(httptest.NewRequest(http.MethodPost, "/api/keys", nil), f.reload(t, reseller.ID)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	h.GetAPIKey(rec, withAccount(httptest.NewRequest(http.MethodGet, "/api/keys", nil), f.reload(t, reseller.ID)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "api_key")

	rec = httptest.NewRecorder()
	h.RolloverAPIKey(rec, withAccount(httptest.NewRequest(http.MethodPost, "/api/keys/rollover", nil), f.reload(t, reseller.ID)))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	h.RevokeAPIKey(rec, withAccount(httptest.NewRequest(http.MethodDelete, "/api/keys", nil), f.reload(t, reseller.ID)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.GetAPIKey(rec, withAccount(httptest.NewRequest(http.MethodGet, "/api/keys", nil), f.reload(t, reseller.ID)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetCustomPricesHandler(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	acct := f.account(t, account.TierReseller)

	send := func(id, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/api/admin/accounts/"+id+"/prices", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		req = mux.SetURLVars(req, map[string]string{"id": id})
		rec := httptest.NewRecorder()
		h.SetCustomPrices(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusBadRequest, send("nope", `{"prices":{}}`).Code)
	assert.Equal(t, http.StatusBadRequest, send(acct.ID.String(), `{"prices":{"MTN:77GB":"20.00"}}`).Code)
	assert.Equal(t, http.StatusNotFound, send(uuid.NewString(), `{"prices":{"MTN:5GB":"23.00"}}`).Code)
	require.Equal(t, http.StatusOK, send(acct.ID.String(), `{"prices":{"MTN:5GB":"23.00"}}`).Code)

	overrides, err := f.reload(t, acct.ID).PriceOverrides()
	require.NoError(t, err)
	assert.Equal(t, int64(2300), overrides[catalog.PlanKey(catalog.MTN, "5GB")])
}
