package routes

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/zjoart/go-databundle-store/internal/account"
	adminpkg "github.com/zjoart/go-databundle-store/internal/admin"
	"github.com/zjoart/go-databundle-store/internal/auth"
	"github.com/zjoart/go-databundle-store/internal/key"
	"github.com/zjoart/go-databundle-store/internal/middleware"
	"github.com/zjoart/go-databundle-store/internal/purchase"
	"github.com/zjoart/go-databundle-store/internal/reconcile"
	"github.com/zjoart/go-databundle-store/internal/shop"
	"github.com/zjoart/go-databundle-store/internal/wallet"
	"github.com/zjoart/go-databundle-store/internal/withdrawal"
	"github.com/zjoart/go-databundle-store/pkg/config"
	"github.com/zjoart/go-databundle-store/pkg/logger"
	"github.com/zjoart/go-databundle-store/pkg/metrics"
	"golang.org/x/time/rate"
)

func RegisterRoutes(r *mux.Router, cfg config.Config, svc *Services) http.Handler {
	authHandler := auth.NewHandler(cfg, svc.Accounts, svc.Ledger)
	walletHandler := wallet.NewHandler(svc.Ledger)
	purchaseHandler := purchase.NewHandler(svc.Orchestrator, svc.Orders, svc.Catalog, svc.Shops)
	reconcileHandler := reconcile.NewHandler(svc.Reconciler, svc.Orders, svc.Queue, cfg.PaystackSecret)
	shopHandler := shop.NewHandler(svc.Shops)
	withdrawalHandler := withdrawal.NewHandler(svc.Withdrawals)
	keyHandler := key.NewHandler(svc.Keys)
	adminHandler := adminpkg.NewHandler(svc.Admin, svc.Orders)

	session := auth.JWTMiddleware(cfg.JWTSecret, svc.Accounts)

	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.HTTPMetrics)

	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	authR := r.PathPrefix("/api/auth").Subrouter()
	authR.HandleFunc("/signup", authHandler.Signup).Methods("POST")
	authR.HandleFunc("/login", authHandler.Login).Methods("POST")
	authR.HandleFunc("/google", authHandler.GoogleLogin).Methods("GET")
	authR.HandleFunc("/google/callback", authHandler.GoogleCallback).Methods("GET")

	publicR := r.PathPrefix("/api").Subrouter()
	publicR.Use(auth.OptionalAuth(cfg.JWTSecret, svc.Accounts))
	publicR.HandleFunc("/data-plans", purchaseHandler.DataPlans).Methods("GET")
	publicR.HandleFunc("/shops/{handle}", shopHandler.GetStorefront).Methods("GET")

	r.HandleFunc("/api/wallet/paystack/webhook", reconcileHandler.PaystackWebhook).Methods("POST")

	userR := r.PathPrefix("/api").Subrouter()
	userR.Use(session)
	userR.HandleFunc("/me", authHandler.Me).Methods("GET")
	userR.HandleFunc("/wallet/balance", walletHandler.GetBalances).Methods("GET")
	userR.HandleFunc("/wallet/fund", reconcileHandler.FundWallet).Methods("POST")
	userR.HandleFunc("/wallet/topup/{reference}/status", reconcileHandler.TopUpStatus).Methods("GET")
	userR.HandleFunc("/upgrade", reconcileHandler.UpgradeTier).Methods("POST")
	userR.HandleFunc("/purchase", purchaseHandler.Purchase).Methods("POST")
	userR.HandleFunc("/orders", purchaseHandler.ListOrders).Methods("GET")
	userR.HandleFunc("/orders/{reference}", purchaseHandler.GetOrder).Methods("GET")
	userR.HandleFunc("/shops/{handle}/purchase", purchaseHandler.PurchaseFromShop).Methods("POST")

	shopR := r.PathPrefix("/api/shop").Subrouter()
	shopR.Use(session, auth.RequireCapability(account.CapStorefront))
	shopR.HandleFunc("", shopHandler.CreateShop).Methods("POST")
	shopR.HandleFunc("/markups", shopHandler.SetMarkups).Methods("PUT")

	keysR := r.PathPrefix("/api/keys").Subrouter()
	keysR.Use(session, auth.RequireCapability(account.CapAPIToken))
	keysR.HandleFunc("", keyHandler.GetAPIKey).Methods("GET")
	keysR.HandleFunc("", keyHandler.CreateAPIKey).Methods("POST")
	keysR.HandleFunc("", keyHandler.RevokeAPIKey).Methods("DELETE")
	keysR.HandleFunc("/rollover", keyHandler.RolloverAPIKey).Methods("POST")

	withdrawR := r.PathPrefix("/api/withdrawals").Subrouter()
	withdrawR.Use(session, auth.RequireCapability(account.CapWithdraw))
	withdrawR.HandleFunc("", withdrawalHandler.RequestWithdrawal).Methods("POST")
	withdrawR.HandleFunc("", withdrawalHandler.ListMine).Methods("GET")

	adminR := r.PathPrefix("/api/admin").Subrouter()
	adminR.Use(session, auth.RequireCapability(account.CapOperate))
	adminR.HandleFunc("/orders", adminHandler.ListOrders).Methods("GET")
	adminR.HandleFunc("/metrics", adminHandler.GetMetrics).Methods("GET")
	adminR.HandleFunc("/withdrawals", withdrawalHandler.ListPending).Methods("GET")
	adminR.HandleFunc("/withdrawals/{id}/approve", withdrawalHandler.Approve).Methods("POST")
	adminR.HandleFunc("/withdrawals/{id}/reject", withdrawalHandler.Reject).Methods("POST")
	adminR.HandleFunc("/accounts/{id}/prices", keyHandler.SetCustomPrices).Methods("PUT")

	limiter := middleware.NewRateLimiter(rate.Limit(cfg.APIRateLimit), cfg.APIRateBurst)
	apiR := r.PathPrefix("/api/v1").Subrouter()
	apiR.Use(limiter.Limit, auth.APIKeyMiddleware(svc.Keys))
	apiR.Handle("/purchase", auth.RequirePermission(string(key.PermissionPurchase))(http.HandlerFunc(purchaseHandler.PurchaseAPI))).Methods("POST")
	apiR.Handle("/balance", auth.RequirePermission(string(key.PermissionRead))(http.HandlerFunc(walletHandler.GetBalances))).Methods("GET")
	apiR.Handle("/data-plans", auth.RequirePermission(string(key.PermissionRead))(http.HandlerFunc(purchaseHandler.DataPlans))).Methods("GET")
	apiR.Handle("/orders/{reference}", auth.RequirePermission(string(key.PermissionRead))(http.HandlerFunc(purchaseHandler.GetOrder))).Methods("GET")

	if cfg.Env != "production" {

		r.HandleFunc("/swagger.yaml", func(w http.ResponseWriter, r *http.Request) {
			content, err := os.ReadFile("docs/swagger.yaml")
			if err != nil {
				logger.Error("Failed to read swagger.yaml", logger.Fields{"error": err.Error()})
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			modifiedContent := strings.Replace(string(content), "{{BASE_URL}}", "/", -1)
			modifiedContent = strings.Replace(modifiedContent, "{{MIN_TOPUP_AMOUNT}}", fmt.Sprintf("%d", cfg.MinTopUpAmount), -1)

			w.Header().Set("Content-Type", "application/yaml")
			w.Write([]byte(modifiedContent))
		})

		r.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
			httpSwagger.URL("/swagger.yaml"),
		))
		logger.Info("Swagger documentation enabled at /swagger/index.html")
	}

	corsObj := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "x-api-key"}),
	)

	return corsObj(r)
}
