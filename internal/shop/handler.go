package shop

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/zjoart/go-databundle-store/internal/account"
	"github.com/zjoart/go-databundle-store/internal/catalog"
	"github.com/zjoart/go-databundle-store/pkg/logger"
	"github.com/zjoart/go-databundle-store/pkg/utils"
)

type Handler struct {
	Service *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Service: svc}
}

type CreateShopRequest struct {
	Handle string `json:"handle"`
	Name   string `json:"name"`
}

func (h *Handler) CreateShop(w http.ResponseWriter, r *http.Request) {
	acct, ok := account.FromContext(r.Context())
	if !ok {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req CreateShopRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	shop, err := h.Service.Create(r.Context(), &acct, req.Handle, req.Name)
	switch {
	case err == nil:
		utils.BuildSuccessResponse(w, http.StatusCreated, "Shop created", shop)
	case errors.Is(err, ErrNotAllowed):
		utils.BuildErrorResponse(w, http.StatusForbidden, "Upgrade to reseller to open a shop", nil)
	case errors.Is(err, ErrInvalidHandle):
		utils.BuildErrorResponse(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ErrHandleTaken), errors.Is(err, ErrAlreadyOwned):
		utils.BuildErrorResponse(w, http.StatusConflict, err.Error(), nil)
	default:
		logger.Error("Failed to create shop", logger.Merge(logger.WithError(err), logger.Fields{logger.AccountIDKey: acct.ID.String()}))
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to create shop", nil)
	}
}

type SetMarkupsRequest struct {
	// Markups maps "NETWORK:PLAN" to a markup in major units.
	Markups map[string]decimal.Decimal `json:"markups"`
}

func (h *Handler) SetMarkups(w http.ResponseWriter, r *http.Request) {
	acct, ok := account.FromContext(r.Context())
	if !ok {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req SetMarkupsRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	minor := make(map[string]int64, len(req.Markups))
	for key, amount := range req.Markups {
		minor[key] = catalog.ToMinor(amount)
	}

	err := h.Service.SetMarkups(r.Context(), acct.ID, minor)
	switch {
	case err == nil:
		utils.BuildSuccessResponse(w, http.StatusOK, "Markups updated", nil)
	case errors.Is(err, ErrNotFound):
		utils.BuildErrorResponse(w, http.StatusNotFound, "Create a shop first", nil)
	case errors.Is(err, ErrInvalidMarkup), errors.Is(err, catalog.ErrUnknownNetwork):
		utils.BuildErrorResponse(w, http.StatusBadRequest, err.Error(), nil)
	default:
		logger.Error("Failed to update markups", logger.Merge(logger.WithError(err), logger.Fields{logger.AccountIDKey: acct.ID.String()}))
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to update markups", nil)
	}
}

func (h *Handler) GetStorefront(w http.ResponseWriter, r *http.Request) {
	listing, err := h.Service.Storefront(r.Context(), mux.Vars(r)["handle"])
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			utils.BuildErrorResponse(w, http.StatusNotFound, "Shop not found", nil)
			return
		}
		logger.Error("Failed to load storefront", logger.WithError(err))
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to load shop", nil)
		return
	}
	utils.BuildSuccessResponse(w, http.StatusOK, "Shop", listing)
}
