package key

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
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

type CreateKeyRequest struct {
	Permissions []string `json:"permissions"`
}

func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	acct, ok := account.FromContext(r.Context())
	if !ok {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req CreateKeyRequest
	if r.ContentLength > 0 {
		if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
			utils.BuildErrorResponse(w, status, "Invalid request body", map[string]string{"error": err.Error()})
			return
		}
	}

	token, err := h.Service.Issue(r.Context(), acct, req.Permissions)
	if err != nil {
		h.writeError(w, err, "Failed to create API key")
		return
	}

	logger.Info("api key issued", logger.Fields{logger.AccountIDKey: acct.ID.String()})
	utils.BuildSuccessResponse(w, http.StatusCreated, "API Key created, This key will only be shown once. Please save it securely.", token)
}

func (h *Handler) RolloverAPIKey(w http.ResponseWriter, r *http.Request) {
	acct, ok := account.FromContext(r.Context())
	if !ok {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	token, err := h.Service.Rollover(r.Context(), acct)
	if err != nil {
		h.writeError(w, err, "Failed to roll over API key")
		return
	}

	logger.Info("api key rolled over", logger.Fields{logger.AccountIDKey: acct.ID.String()})
	utils.BuildSuccessResponse(w, http.StatusCreated, "API Key rolled over, This key will only be shown once. Please save it securely.", token)
}

func (h *Handler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	acct, ok := account.FromContext(r.Context())
	if !ok {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	if err := h.Service.Revoke(r.Context(), acct); err != nil {
		h.writeError(w, err, "Failed to revoke key")
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "API Key revoked successfully", nil)
}

func (h *Handler) GetAPIKey(w http.ResponseWriter, r *http.Request) {
	acct, ok := account.FromContext(r.Context())
	if !ok {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}
	if acct.APITokenHash == nil {
		utils.BuildErrorResponse(w, http.StatusNotFound, "No API key issued", nil)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "API Key retrieved", map[string]interface{}{
		"masked_key":  acct.APITokenMasked,
		"permissions": acct.APITokenScopes,
	})
}

type CustomPricesRequest struct {
	Prices map[string]decimal.Decimal `json:"prices"`
}

// SetCustomPrices is operator-only; prices are in major units keyed "NETWORK:PLAN".
func (h *Handler) SetCustomPrices(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusBadRequest, "Invalid account id", nil)
		return
	}

	var req CustomPricesRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request body", map[string]string{"error": err.Error()})
		return
	}

	minor := make(map[string]int64, len(req.Prices))
	for k, v := range req.Prices {
		minor[k] = catalog.ToMinor(v)
	}

	if err := h.Service.SetCustomPrices(r.Context(), accountID, minor); err != nil {
		switch {
		case errors.Is(err, ErrInvalidPrices):
			utils.BuildErrorResponse(w, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, account.ErrNotFound):
			utils.BuildErrorResponse(w, http.StatusNotFound, "Account not found", nil)
		default:
			logger.Error("failed to set custom prices", logger.Merge(logger.WithError(err), logger.Fields{logger.AccountIDKey: accountID.String()}))
			utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to update prices", nil)
		}
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Custom prices updated", map[string]interface{}{"count": len(minor)})
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotAllowed):
		utils.BuildErrorResponse(w, http.StatusForbidden, "API access requires an agent account", nil)
	case errors.Is(err, ErrTokenExists):
		utils.BuildErrorResponse(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, ErrNoToken):
		utils.BuildErrorResponse(w, http.StatusNotFound, "Key not found", nil)
	case errors.Is(err, ErrInvalidPermission):
		utils.BuildErrorResponse(w, http.StatusBadRequest, err.Error(), nil)
	default:
		logger.Error(fallback, logger.WithError(err))
		utils.BuildErrorResponse(w, http.StatusInternalServerError, fallback, nil)
	}
}
