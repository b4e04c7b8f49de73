package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductReturn est une demande de retour en attente sur un achat.
// Elle disparaît dès qu'un membre du staff la traite.
type ProductReturn struct {
	ID          uuid.UUID `json:"id" db:"return_id"`
	PurchaseID  uuid.UUID `json:"purchase_id" db:"purchase_id"`
	RequestedBy uuid.UUID `json:"requested_by" db:"requested_by"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ReturnDetail est la vue staff d'une demande de retour
type ReturnDetail struct {
	Return       ProductReturn `json:"return"`
	Purchase     Purchase      `json:"purchase"`
	ProductName  string        `json:"product_name"`
	Username     string        `json:"username"`
	RefundAmount int64         `json:"refund_amount"`
}
