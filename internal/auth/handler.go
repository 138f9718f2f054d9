package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/zjoart/go-databundle-store/internal/account"
	"github.com/zjoart/go-databundle-store/internal/catalog"
	"github.com/zjoart/go-databundle-store/internal/wallet"
	"github.com/zjoart/go-databundle-store/pkg/config"
	"github.com/zjoart/go-databundle-store/pkg/logger"
	"github.com/zjoart/go-databundle-store/pkg/utils"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

const sessionTTL = 72 * time.Hour

var handlePattern = regexp.MustCompile(`^[a-z0-9_]{3,32}$`)

type Handler struct {
	Config       config.Config
	Accounts     account.Repository
	Ledger       wallet.Ledger
	OAuth2Config *oauth2.Config
}

func NewHandler(cfg config.Config, accounts account.Repository, ledger wallet.Ledger) *Handler {
	redirectURL := fmt.Sprintf("%s/auth/google/callback", cfg.Host)
	oauth2Config := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}
	return &Handler{Config: cfg, Accounts: accounts, Ledger: ledger, OAuth2Config: oauth2Config}
}

type SignupRequest struct {
	Handle   string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request body", map[string]string{"error": err.Error()})
		return
	}

	handle := strings.ToLower(strings.TrimSpace(req.Handle))
	if !handlePattern.MatchString(handle) {
		utils.BuildErrorResponse(w, http.StatusBadRequest, "Username must be 3-32 letters, digits or underscores", nil)
		return
	}
	if !strings.Contains(req.Email, "@") {
		utils.BuildErrorResponse(w, http.StatusBadRequest, "A valid email is required", nil)
		return
	}
	if len(req.Password) < 6 {
		utils.BuildErrorResponse(w, http.StatusBadRequest, "Password must be at least 6 characters", nil)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to create account", nil)
		return
	}

	acct := &account.Account{
		Handle:       handle,
		Email:        req.Email,
		PasswordHash: string(hash),
		Tier:         account.TierStandard,
	}
	if err := h.Accounts.Create(r.Context(), acct); err != nil {
		if errors.Is(err, account.ErrDuplicate) {
			utils.BuildErrorResponse(w, http.StatusConflict, "Username or email already registered", nil)
			return
		}
		logger.Error("failed to create account", logger.WithError(err))
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to create account", nil)
		return
	}

	logger.Info("account created", logger.Fields{logger.AccountIDKey: acct.ID.String()})
	h.writeSession(w, http.StatusCreated, "Account created", acct)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login accepts either the handle or the email as username.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request body", map[string]string{"error": err.Error()})
		return
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	var (
		acct *account.Account
		err  error
	)
	if strings.Contains(username, "@") {
		acct, err = h.Accounts.FindByEmail(r.Context(), username)
	} else {
		acct, err = h.Accounts.FindByHandle(r.Context(), username)
	}
	if err != nil || acct.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)) != nil {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	h.writeSession(w, http.StatusOK, "Login successful", acct)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	acct, ok := account.FromContext(r.Context())
	if !ok {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	balances, err := h.Ledger.Balances(r.Context(), acct.ID)
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusNotFound, "Account not found", nil)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Account", map[string]interface{}{
		"id":             acct.ID,
		"username":       acct.Handle,
		"email":          acct.Email,
		"tier":           acct.Tier,
		"shop_handle":    acct.ShopHandle,
		"wallet_balance": catalog.FromMinor(balances.Wallet).StringFixed(2),
		"payout_balance": catalog.FromMinor(balances.Payout).StringFixed(2),
	})
}

func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	url := h.OAuth2Config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		utils.BuildErrorResponse(w, http.StatusBadRequest, "Code not found", nil)
		return
	}

	token, err := h.OAuth2Config.Exchange(r.Context(), code)
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to exchange token", nil)
		return
	}

	idToken, ok := token.Extra("id_token").(string)
	if !ok {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "No id_token field in oauth2 token", nil)
		return
	}

	payload, err := idtoken.Validate(r.Context(), idToken, h.Config.GoogleClientID)
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to validate ID token", nil)
		return
	}

	email, _ := payload.Claims["email"].(string)
	acct, err := h.googleAccount(r.Context(), payload.Subject, email)
	if err != nil {
		logger.Error("google sign-in failed", logger.WithError(err))
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to create account", nil)
		return
	}

	h.writeSession(w, http.StatusOK, "Login successful", acct)
}

// googleAccount returns the account linked to the google subject, creating a
// Standard account on first sign-in.
func (h *Handler) googleAccount(ctx context.Context, googleID, email string) (*account.Account, error) {
	acct, err := h.Accounts.FindByGoogleID(ctx, googleID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, account.ErrNotFound) {
		return nil, err
	}

	acct = &account.Account{
		Handle:   handleFromEmail(email),
		Email:    email,
		GoogleID: &googleID,
		Tier:     account.TierStandard,
	}
	if err := h.Accounts.Create(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

func handleFromEmail(email string) string {
	local := strings.ToLower(strings.SplitN(email, "@", 2)[0])
	var b strings.Builder
	for _, c := range local {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		}
	}
	base := b.String()
	if len(base) > 20 {
		base = base[:20]
	}
	return base + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

func (h *Handler) writeSession(w http.ResponseWriter, code int, message string, acct *account.Account) {
	tokenString, expiresAt, err := IssueToken(h.Config.JWTSecret, acct.ID)
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to generate token", nil)
		return
	}

	utils.BuildSuccessResponse(w, code, message, map[string]interface{}{
		"token":      tokenString,
		"expires_at": expiresAt,
		"account":    acct,
	})
}

// IssueToken signs a session JWT for the account.
func IssueToken(secret string, accountID uuid.UUID) (string, time.Time, error) {
	expirationTime := time.Now().Add(sessionTTL)
	jwtToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		utils.AccountIDKey: accountID.String(),
		utils.ExpKey:       expirationTime.Unix(),
	})

	tokenString, err := jwtToken.SignedString([]byte(secret))
	return tokenString, expirationTime, err
}
