package wallet

import (
	"net/http"

	"github.com/zjoart/go-databundle-store/internal/account"
	"github.com/zjoart/go-databundle-store/internal/catalog"
	"github.com/zjoart/go-databundle-store/pkg/utils"
)

type Handler struct {
	Ledger Ledger
}

func NewHandler(ledger Ledger) *Handler {
	return &Handler{Ledger: ledger}
}

func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	acct, ok := r.Context().Value(utils.AccountKey).(account.Account)
	if !ok {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	balances, err := h.Ledger.Balances(r.Context(), acct.ID)
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusNotFound, "Wallet not found", nil)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Wallet Balance", map[string]interface{}{
		"wallet_balance":       balances.Wallet,
		"wallet_balance_major": catalog.FromMinor(balances.Wallet).StringFixed(2),
		"payout_balance":       balances.Payout,
		"payout_balance_major": catalog.FromMinor(balances.Payout).StringFixed(2),
		"tier":                 acct.Tier,
	})
}
