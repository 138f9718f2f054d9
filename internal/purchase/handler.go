package purchase

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/zjoart/go-databundle-store/internal/account"
	"github.com/zjoart/go-databundle-store/internal/catalog"
	"github.com/zjoart/go-databundle-store/internal/order"
	"github.com/zjoart/go-databundle-store/internal/shop"
	"github.com/zjoart/go-databundle-store/pkg/logger"
	"github.com/zjoart/go-databundle-store/pkg/utils"
)

const minPhoneLength = 10

type Handler struct {
	Orch    *Orchestrator
	Orders  order.Repository
	Catalog *catalog.Catalog
	Shops   *shop.Service
}

func NewHandler(orch *Orchestrator, orders order.Repository, cat *catalog.Catalog, shops *shop.Service) *Handler {
	return &Handler{Orch: orch, Orders: orders, Catalog: cat, Shops: shops}
}

type PurchaseRequest struct {
	Network string `json:"network"`
	PlanID  string `json:"plan_id"`
	Phone   string `json:"phone"`
	// Reference is honoured on the external API only.
	Reference string `json:"reference,omitempty"`
}

func (req PurchaseRequest) validate() (catalog.Network, map[string]string) {
	errs := map[string]string{}
	network, err := catalog.ParseNetwork(req.Network)
	if err != nil {
		errs["network"] = "must be one of MTN, AirtelTigo, Telecel"
	}
	if strings.TrimSpace(req.PlanID) == "" {
		errs["plan_id"] = "is required"
	}
	if len(strings.TrimSpace(req.Phone)) < minPhoneLength {
		errs["phone"] = "must be at least 10 characters"
	}
	return network, errs
}

// Purchase buys a bundle from the caller's wallet.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	h.purchase(w, r, order.OriginWebWallet)
}

// PurchaseAPI is the external-API variant; it accepts a caller reference and
// applies the account's custom price overrides.
func (h *Handler) PurchaseAPI(w http.ResponseWriter, r *http.Request) {
	h.purchase(w, r, order.OriginExternalAPI)
}

func (h *Handler) purchase(w http.ResponseWriter, r *http.Request, origin order.Origin) {
	acct, ok := account.FromContext(r.Context())
	if !ok {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req PurchaseRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}
	network, errs := req.validate()
	if len(errs) > 0 {
		utils.BuildErrorResponse(w, http.StatusBadRequest, "Invalid request", errs)
		return
	}

	in := Request{
		AccountID: acct.ID,
		Network:   network,
		PlanID:    req.PlanID,
		Phone:     strings.TrimSpace(req.Phone),
		Origin:    origin,
	}
	if origin == order.OriginExternalAPI {
		in.Reference = strings.TrimSpace(req.Reference)
	}

	h.run(w, r, in)
}

// PurchaseFromShop buys a bundle at a storefront's price.
func (h *Handler) PurchaseFromShop(w http.ResponseWriter, r *http.Request) {
	acct, ok := account.FromContext(r.Context())
	if !ok {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req PurchaseRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}
	network, errs := req.validate()
	if len(errs) > 0 {
		utils.BuildErrorResponse(w, http.StatusBadRequest, "Invalid request", errs)
		return
	}

	quote, err := h.Shops.Quote(r.Context(), mux.Vars(r)["handle"], network, req.PlanID)
	if err != nil {
		switch {
		case errors.Is(err, shop.ErrNotFound):
			utils.BuildErrorResponse(w, http.StatusNotFound, "Shop not found", nil)
		case errors.Is(err, catalog.ErrPlanNotFound):
			utils.BuildErrorResponse(w, http.StatusBadRequest, "Invalid plan selected", nil)
		default:
			logger.Error("Failed to quote storefront price", logger.WithError(err))
			utils.BuildErrorResponse(w, http.StatusInternalServerError, "System error. Contact support.", nil)
		}
		return
	}

	h.run(w, r, Request{
		AccountID:  acct.ID,
		Network:    network,
		PlanID:     req.PlanID,
		Phone:      strings.TrimSpace(req.Phone),
		Origin:     order.OriginStorefront,
		Storefront: quote,
	})
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, in Request) {
	receipt, err := h.Orch.Purchase(r.Context(), in)
	switch {
	case err == nil:
		utils.BuildSuccessResponse(w, http.StatusOK, "Data sent successfully!", receipt)
	case errors.Is(err, ErrFulfillmentFailed):
		utils.BuildErrorResponse(w, http.StatusBadGateway, "Failed: "+receipt.Reason+". Wallet refunded.", receipt)
	case errors.Is(err, ErrInsufficientFunds):
		utils.BuildErrorResponse(w, http.StatusPaymentRequired, "Insufficient wallet balance", nil)
	case errors.Is(err, catalog.ErrPlanNotFound):
		utils.BuildErrorResponse(w, http.StatusBadRequest, "Invalid plan selected", nil)
	case errors.Is(err, ErrDuplicateReference):
		utils.BuildErrorResponse(w, http.StatusConflict, "duplicate reference", nil)
	case errors.Is(err, account.ErrNotFound):
		utils.BuildErrorResponse(w, http.StatusNotFound, "Account not found", nil)
	default:
		logger.Error("Purchase error", logger.Merge(logger.WithError(err), logger.Fields{logger.AccountIDKey: in.AccountID.String()}))
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "System error. Contact support.", nil)
	}
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	acct, ok := account.FromContext(r.Context())
	if !ok {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	limit, offset, page := utils.GetPaginationDetails(r)
	filter := order.Filter{AccountID: acct.ID}

	orders, err := h.Orders.List(r.Context(), filter, limit, offset)
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to fetch orders", nil)
		return
	}
	count, err := h.Orders.Count(r.Context(), filter)
	if err != nil {
		logger.Error("Failed to count orders", logger.Merge(logger.WithError(err), logger.Fields{logger.AccountIDKey: acct.ID.String()}))
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to fetch orders", nil)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Order History", map[string]interface{}{
		"orders": orders,
		"meta":   utils.PageMeta(count, limit, page),
	})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	acct, ok := account.FromContext(r.Context())
	if !ok {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	o, err := h.Orders.FindByReference(r.Context(), mux.Vars(r)["reference"])
	if err != nil || (o.AccountID != acct.ID && !acct.Tier.Can(account.CapOperate)) {
		utils.BuildErrorResponse(w, http.StatusNotFound, "Order not found", nil)
		return
	}
	utils.BuildSuccessResponse(w, http.StatusOK, "Order", o)
}

// DataPlans lists the price table for the caller's tier, retail when anonymous.
func (h *Handler) DataPlans(w http.ResponseWriter, r *http.Request) {
	class := catalog.Retail
	if acct, ok := account.FromContext(r.Context()); ok {
		class = acct.Tier.PricingClass()
	}
	utils.BuildSuccessResponse(w, http.StatusOK, "Data plans", map[string]interface{}{
		"pricing": class,
		"plans":   h.Catalog.Plans(class),
	})
}
