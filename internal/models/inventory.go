package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MovementSale       = "sale"
	MovementReturn     = "return"
	MovementAdjustment = "adjustment"
)

type StockMovement struct {
	ID        uuid.UUID `json:"id" db:"movement_id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Type      string    `json:"type" db:"type"` // "sale", "return", "adjustment"
	Quantity  int       `json:"quantity" db:"quantity"`
	PrevStock int       `json:"prev_stock" db:"prev_stock"`
	NewStock  int       `json:"new_stock" db:"new_stock"`
	Reason    string    `json:"reason" db:"reason"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
