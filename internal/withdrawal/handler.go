package withdrawal

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/zjoart/go-databundle-store/internal/account"
	"github.com/zjoart/go-databundle-store/internal/catalog"
	"github.com/zjoart/go-databundle-store/pkg/id"
	"github.com/zjoart/go-databundle-store/pkg/logger"
	"github.com/zjoart/go-databundle-store/pkg/utils"
)

type Handler struct {
	Service *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Service: svc}
}

type CreateWithdrawalRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Payee
}

func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	acct, ok := account.FromContext(r.Context())
	if !ok {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req CreateWithdrawalRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	wd, err := h.Service.Request(r.Context(), acct, catalog.ToMinor(req.Amount), req.Payee)
	switch {
	case err == nil:
		utils.BuildSuccessResponse(w, http.StatusCreated, "Withdrawal requested", wd)
	case errors.Is(err, ErrNotAllowed):
		utils.BuildErrorResponse(w, http.StatusForbidden, "Only resellers can withdraw", nil)
	case errors.Is(err, ErrInsufficientFunds):
		utils.BuildErrorResponse(w, http.StatusBadRequest, "Insufficient payout balance", nil)
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidPayee):
		utils.BuildErrorResponse(w, http.StatusBadRequest, err.Error(), nil)
	default:
		logger.Error("Withdrawal request failed", logger.Merge(logger.WithError(err), logger.Fields{logger.AccountIDKey: acct.ID.String()}))
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Withdrawal failed", nil)
	}
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	acct, ok := account.FromContext(r.Context())
	if !ok {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}
	limit, offset, page := utils.GetPaginationDetails(r)
	list, err := h.Service.ListForAccount(r.Context(), acct.ID, limit, offset)
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to fetch withdrawals", nil)
		return
	}
	utils.BuildSuccessResponse(w, http.StatusOK, "Withdrawals", map[string]interface{}{
		"withdrawals": list,
		"page":        page,
	})
}

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit, offset, _ := utils.GetPaginationDetails(r)
	list, err := h.Service.Pending(r.Context(), limit, offset)
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to fetch withdrawals", nil)
		return
	}
	utils.BuildSuccessResponse(w, http.StatusOK, "Pending withdrawals", list)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	withdrawalID, err := id.IsValidUUID(mux.Vars(r)["id"])
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusBadRequest, "Invalid withdrawal id", nil)
		return
	}
	wd, err := h.Service.Approve(r.Context(), withdrawalID)
	h.writeSettled(w, wd, err, "Withdrawal marked as paid")
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	withdrawalID, err := id.IsValidUUID(mux.Vars(r)["id"])
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusBadRequest, "Invalid withdrawal id", nil)
		return
	}
	var req RejectRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}
	wd, err := h.Service.Reject(r.Context(), withdrawalID, req.Reason)
	h.writeSettled(w, wd, err, "Withdrawal rejected, payout balance restored")
}

func (h *Handler) writeSettled(w http.ResponseWriter, wd *Withdrawal, err error, message string) {
	switch {
	case err == nil:
		utils.BuildSuccessResponse(w, http.StatusOK, message, wd)
	case errors.Is(err, ErrNotFound):
		utils.BuildErrorResponse(w, http.StatusNotFound, "Withdrawal not found", nil)
	case errors.Is(err, ErrNotPending):
		utils.BuildErrorResponse(w, http.StatusConflict, err.Error(), nil)
	default:
		logger.Error("Failed to settle withdrawal", logger.WithError(err))
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to update withdrawal", nil)
	}
}
