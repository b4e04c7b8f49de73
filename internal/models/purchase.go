package models

import (
	"time"

	"github.com/google/uuid"
)

type Purchase struct {
	ID          uuid.UUID `json:"id" db:"purchase_id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	ProductID   uuid.UUID `json:"product_id" db:"product_id"`
	Quantity    int       `json:"quantity" db:"quantity"`
	PurchasedAt time.Time `json:"purchased_at" db:"purchased_at"`
}

// PurchaseView enrichit un achat pour l'historique utilisateur
type PurchaseView struct {
	Purchase
	ProductName     string `json:"product_name"`
	Price           int64  `json:"price"`
	Returnable      bool   `json:"returnable"`
	ReturnRequested bool   `json:"return_requested"`
}
