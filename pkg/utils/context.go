package utils

type ContextKey string

const (
	AccountKey     ContextKey = "account"
	PermissionsKey ContextKey = "permissions"
	AuthMethodKey  ContextKey = "auth_method"
	AccountIDKey   string     = "account_id"
	ExpKey         string     = "exp"
)

// AuthMethod records how the caller was resolved.
type AuthMethod string

const (
	AuthSession  AuthMethod = "session"
	AuthAPIToken AuthMethod = "api_token"
)
