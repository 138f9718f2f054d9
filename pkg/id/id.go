package id

import (
	"strings"

	"github.com/google/uuid"
)

func Generate() string {
	return uuid.New().String()
}

func IsValidUUID(id string) (uuid.UUID, error) {
	return uuid.Parse(id)
}

// Reference builds a system reference such as "pur-3f2a9c...".
func Reference(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.New().String(), "-", "")
}
