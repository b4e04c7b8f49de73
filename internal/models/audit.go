package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog trace une action staff
type AuditLog struct {
	ID         uuid.UUID `json:"id" db:"audit_id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Username   string    `json:"username" db:"username"`
	Action     string    `json:"action" db:"action"`
	Resource   string    `json:"resource" db:"resource"`
	ResourceID string    `json:"resource_id,omitempty" db:"resource_id"`
	IPAddress  string    `json:"ip_address" db:"ip_address"`
	UserAgent  string    `json:"user_agent" db:"user_agent"`
	Success    bool      `json:"success" db:"success"`
	ErrorMsg   string    `json:"error_msg,omitempty" db:"error_msg"`
	Timestamp  time.Time `json:"timestamp" db:"created_at"`
}

// Actions d'audit
const (
	ACTION_PRODUCT_CREATE = "product.create"
	ACTION_PRODUCT_UPDATE = "product.update"
	ACTION_PRODUCT_IMAGE  = "product.image"
	ACTION_RETURN_APPROVE = "return.approve"
	ACTION_RETURN_REJECT  = "return.reject"
)

// Resources d'audit
const (
	RESOURCE_PRODUCT = "product"
	RESOURCE_RETURN  = "return"
)
