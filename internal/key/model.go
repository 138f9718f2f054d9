package key

type Permission string

const (
	PermissionRead     Permission = "READ"
	PermissionPurchase Permission = "PURCHASE"
)

var AllowedPermissions = []Permission{
	PermissionRead,
	PermissionPurchase,
}

// Token is a freshly issued API token; Plain is only ever shown once.
type Token struct {
	Plain  string   `json:"api_key"`
	Masked string   `json:"masked_key"`
	Scopes []string `json:"permissions"`
}
