package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/zjoart/go-databundle-store/internal/account"
	"github.com/zjoart/go-databundle-store/internal/catalog"
	"github.com/zjoart/go-databundle-store/internal/order"
	"github.com/zjoart/go-databundle-store/internal/paystack"
	"github.com/zjoart/go-databundle-store/pkg/events"
	"github.com/zjoart/go-databundle-store/pkg/logger"
	"github.com/zjoart/go-databundle-store/pkg/utils"
)

const maxWebhookBody = 1 << 20

type Handler struct {
	Service *Service
	Orders  order.Repository
	Queue   events.Queue
	Secret  string
}

func NewHandler(svc *Service, orders order.Repository, queue events.Queue, secret string) *Handler {
	return &Handler{Service: svc, Orders: orders, Queue: queue, Secret: secret}
}

type TopUpRequest struct {
	Reference string `json:"reference"`
	// Amount is the credit wanted in the wallet, in major units, excluding the fee.
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) FundWallet(w http.ResponseWriter, r *http.Request) {
	acct, ok := account.FromContext(r.Context())
	if !ok {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req TopUpRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	balance, err := h.Service.FundWallet(r.Context(), acct.ID, req.Reference, catalog.ToMinor(req.Amount))
	if err != nil {
		h.writeVerificationError(w, err, acct)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Wallet funded!", map[string]interface{}{
		"new_balance":       balance,
		"new_balance_major": catalog.FromMinor(balance).StringFixed(2),
	})
}

type UpgradeRequest struct {
	Reference string `json:"reference"`
}

func (h *Handler) UpgradeTier(w http.ResponseWriter, r *http.Request) {
	acct, ok := account.FromContext(r.Context())
	if !ok {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req UpgradeRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	tier, err := h.Service.UpgradeTier(r.Context(), acct.ID, req.Reference)
	if err != nil {
		h.writeVerificationError(w, err, acct)
		return
	}
	utils.BuildSuccessResponse(w, http.StatusOK, "Upgraded to reseller successfully!", map[string]interface{}{
		"tier": tier,
	})
}

func (h *Handler) writeVerificationError(w http.ResponseWriter, err error, acct account.Account) {
	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		utils.BuildErrorResponse(w, http.StatusConflict, "Transaction already processed", nil)
	case errors.Is(err, ErrVerificationFailed):
		utils.BuildErrorResponse(w, http.StatusBadRequest, "Payment verification failed.", map[string]string{"reason": strings.TrimPrefix(err.Error(), ErrVerificationFailed.Error()+": ")})
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrMissingReference):
		utils.BuildErrorResponse(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ErrGatewayUnavailable):
		utils.BuildErrorResponse(w, http.StatusBadGateway, "Verification error", nil)
	default:
		logger.Error("Payment reconciliation failed", logger.Merge(logger.WithError(err), logger.Fields{logger.AccountIDKey: acct.ID.String()}))
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Server error", nil)
	}
}

// TopUpStatus reports whether a payment reference has been credited to the caller.
func (h *Handler) TopUpStatus(w http.ResponseWriter, r *http.Request) {
	acct, ok := account.FromContext(r.Context())
	if !ok {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	reference := mux.Vars(r)["reference"]
	o, err := h.Orders.FindByReference(r.Context(), reference)
	if errors.Is(err, order.ErrNotFound) {
		utils.BuildSuccessResponse(w, http.StatusOK, "Transaction status retrieved", map[string]interface{}{
			"reference": reference,
			"credited":  false,
		})
		return
	}
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to fetch transaction", nil)
		return
	}
	if o.AccountID != acct.ID || o.Kind != order.KindWalletTopUp {
		utils.BuildErrorResponse(w, http.StatusNotFound, "Transaction not found", nil)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Transaction status retrieved", map[string]interface{}{
		"reference": o.Reference,
		"credited":  true,
		"amount":    o.Amount().StringFixed(2),
		"origin":    o.Origin,
		"status":    o.Status,
	})
}

type paystackPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string          `json:"reference"`
		Status    string          `json:"status"`
		Amount    int64           `json:"amount"`
		Metadata  json.RawMessage `json:"metadata"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

// PaystackWebhook authenticates the payload and queues it. Authentic payloads
// are always acknowledged with 200; processing happens on the worker.
func (h *Handler) PaystackWebhook(w http.ResponseWriter, r *http.Request) {
	logger.Info("Webhook received", logger.Fields{"remote_addr": r.RemoteAddr})

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		logger.Error("Webhook: Failed to read body", logger.Fields{"error": err.Error()})
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !paystack.ValidSignature(h.Secret, body, r.Header.Get("x-paystack-signature")) {
		logger.Error("Webhook: Signature mismatch", logger.Fields{"remote_addr": r.RemoteAddr})
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.WriteHeader(http.StatusOK)

	var payload paystackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.Error("Webhook: malformed payload", logger.Fields{"error": err.Error()})
		return
	}

	event := events.WebhookEvent{
		Event:        payload.Event,
		Reference:    payload.Data.Reference,
		Status:       payload.Data.Status,
		AmountMinor:  payload.Data.Amount,
		PayerContact: strings.ToLower(strings.TrimSpace(payload.Data.Customer.Email)),
		Purpose:      purpose(payload.Data.Metadata),
		ReceivedAt:   time.Now().UTC(),
	}
	err = h.Queue.Publish(r.Context(), event)
	if err == nil {
		return
	}

	// the gateway will not resend an acknowledged event, so apply it here
	fields := logger.Fields{logger.ReferenceKey: event.Reference}
	logger.Warn("Webhook: queue unavailable, processing inline", logger.Merge(fields, logger.WithError(err)))
	if _, err := h.Service.ProcessWebhook(context.WithoutCancel(r.Context()), event); err != nil {
		logger.Error("CRITICAL: Webhook acknowledged but could not be applied", logger.Merge(fields, logger.WithError(err)))
	}
}

// purpose reads metadata.purpose; Paystack sends metadata as an object or a string.
func purpose(raw json.RawMessage) string {
	var meta struct {
		Purpose string `json:"purpose"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &meta) != nil {
		return ""
	}
	return meta.Purpose
}
