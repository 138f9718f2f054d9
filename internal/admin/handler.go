package admin

import (
	"net/http"

	"github.com/zjoart/go-databundle-store/internal/catalog"
	"github.com/zjoart/go-databundle-store/internal/order"
	"github.com/zjoart/go-databundle-store/pkg/logger"
	"github.com/zjoart/go-databundle-store/pkg/utils"
)

type Handler struct {
	Service *Service
	Orders  order.Repository
}

func NewHandler(svc *Service, orders order.Repository) *Handler {
	return &Handler{Service: svc, Orders: orders}
}

// ListOrders returns every account's orders, optionally filtered by ?status= and ?kind=.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset, page := utils.GetPaginationDetails(r)
	filter := order.Filter{
		Kind:   order.Kind(r.URL.Query().Get("kind")),
		Status: order.Status(r.URL.Query().Get("status")),
	}

	orders, err := h.Orders.List(r.Context(), filter, limit, offset)
	if err != nil {
		logger.Error("failed to list orders", logger.WithError(err))
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to fetch orders", nil)
		return
	}
	count, err := h.Orders.Count(r.Context(), filter)
	if err != nil {
		logger.Error("failed to count orders", logger.WithError(err))
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to fetch orders", nil)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Orders", map[string]interface{}{
		"orders": orders,
		"meta":   utils.PageMeta(count, limit, page),
	})
}

func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := h.Service.Metrics(r.Context())
	if err != nil {
		logger.Error("failed to compute metrics", logger.WithError(err))
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to compute metrics", nil)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Metrics", map[string]interface{}{
		"revenue":          catalog.FromMinor(m.RevenueMinor).StringFixed(2),
		"net_profit":       catalog.FromMinor(m.NetProfitMinor).StringFixed(2),
		"total_orders":     m.TotalOrders,
		"delivered_orders": m.DeliveredOrders,
		"refunded_orders":  m.RefundedOrders,
		"total_users":      m.TotalAccounts,
	})
}
