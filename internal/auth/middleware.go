package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/zjoart/go-databundle-store/internal/account"
	"github.com/zjoart/go-databundle-store/internal/key"
	"github.com/zjoart/go-databundle-store/pkg/utils"
)

var errInvalidSession = errors.New("invalid token")

func JWTMiddleware(secret string, accounts account.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.BuildErrorResponse(w, http.StatusUnauthorized, "Authorization required", nil)
				return
			}

			acct, err := resolveSession(r.Context(), secret, accounts, authHeader)
			if err != nil {
				utils.BuildErrorResponse(w, http.StatusUnauthorized, "Invalid token", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(sessionContext(r.Context(), *acct)))
		})
	}
}

// OptionalAuth attaches the session account when a valid bearer token is
// present and lets anonymous requests through untouched.
func OptionalAuth(secret string, accounts account.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			acct, err := resolveSession(r.Context(), secret, accounts, authHeader)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(sessionContext(r.Context(), *acct)))
		})
	}
}

func resolveSession(ctx context.Context, secret string, accounts account.Repository, authHeader string) (*account.Account, error) {
	tokenString := strings.Replace(authHeader, "Bearer ", "", 1)
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errInvalidSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errInvalidSession
	}

	rawID, ok := claims[utils.AccountIDKey].(string)
	if !ok {
		return nil, errInvalidSession
	}
	accountID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, errInvalidSession
	}

	return accounts.FindByID(ctx, accountID)
}

func sessionContext(ctx context.Context, acct account.Account) context.Context {
	ctx = account.NewContext(ctx, acct)
	ctx = context.WithValue(ctx, utils.PermissionsKey, []string{"*"})
	return context.WithValue(ctx, utils.AuthMethodKey, utils.AuthSession)
}

func APIKeyMiddleware(keys *key.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKeyHeader := r.Header.Get("x-api-key")
			if apiKeyHeader == "" {
				utils.BuildErrorResponse(w, http.StatusUnauthorized, "API Key required", nil)
				return
			}

			acct, err := keys.Resolve(r.Context(), apiKeyHeader)
			if err != nil {
				if errors.Is(err, key.ErrNotAllowed) {
					utils.BuildErrorResponse(w, http.StatusForbidden, "API access requires an agent account", nil)
					return
				}
				utils.BuildErrorResponse(w, http.StatusUnauthorized, "Invalid API Key", nil)
				return
			}

			ctx := account.NewContext(r.Context(), *acct)
			ctx = context.WithValue(ctx, utils.PermissionsKey, []string(acct.APITokenScopes))
			ctx = context.WithValue(ctx, utils.AuthMethodKey, utils.AuthAPIToken)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			perms, ok := r.Context().Value(utils.PermissionsKey).([]string)
			if !ok {
				utils.BuildErrorResponse(w, http.StatusForbidden, "Permissions not found", nil)
				return
			}

			hasPerm := false
			for _, p := range perms {
				if p == "*" || p == perm {
					hasPerm = true
					break
				}
			}

			if !hasPerm {
				utils.BuildErrorResponse(w, http.StatusForbidden, "Insufficient permissions", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireCapability gates a route on the caller's tier.
func RequireCapability(c account.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acct, ok := account.FromContext(r.Context())
			if !ok {
				utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
				return
			}
			if !acct.Tier.Can(c) {
				utils.BuildErrorResponse(w, http.StatusForbidden, "Your account tier does not allow this action", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
