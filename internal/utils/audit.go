package utils

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"wallet_shop/internal/models"
)

// AuditRecorder persiste les entrées du journal d'audit
type AuditRecorder interface {
	RecordAudit(ctx context.Context, entry models.AuditLog) error
}

// NewAuditEntry prépare une entrée à partir de la requête en cours.
// À appeler avant de quitter le handler : gin.Context est recyclé ensuite.
func NewAuditEntry(c *gin.Context, actor *models.User, action, resource, resourceID string, err error) models.AuditLog {
	entry := models.AuditLog{
		ID:         uuid.New(),
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.GetHeader("User-Agent"),
		Success:    err == nil,
		Timestamp:  time.Now().UTC(),
	}
	if actor != nil {
		entry.UserID = actor.ID.String()
		entry.Username = actor.Username
	}
	if err != nil {
		entry.ErrorMsg = err.Error()
	}
	return entry
}

// LogAction enregistre l'action de façon asynchrone
func LogAction(c *gin.Context, rec AuditRecorder, actor *models.User, action, resource, resourceID string, err error) {
	entry := NewAuditEntry(c, actor, action, resource, resourceID, err)
	ctx := context.WithoutCancel(c.Request.Context())
	go func() {
		if err := rec.RecordAudit(ctx, entry); err != nil {
			Log.Errorf("❌ Erreur enregistrement log audit: %v", err)
		}
	}()
}
