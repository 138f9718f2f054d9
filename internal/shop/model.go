package shop

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Shop is a reseller's public storefront. Markups are keyed by catalog.PlanKey
// and held in minor units on top of the wholesale price.
type Shop struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID   uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null" json:"owner_id"`
	Handle    string         `gorm:"uniqueIndex;not null" json:"handle"`
	Name      string         `gorm:"not null" json:"name"`
	Markups   datatypes.JSON `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (s *Shop) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s Shop) MarkupTable() (map[string]int64, error) {
	markups := map[string]int64{}
	if len(s.Markups) == 0 {
		return markups, nil
	}
	if err := json.Unmarshal(s.Markups, &markups); err != nil {
		return nil, err
	}
	return markups, nil
}
