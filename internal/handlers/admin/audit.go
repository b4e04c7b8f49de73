package admin

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wallet_shop/internal/models"
	"wallet_shop/internal/utils"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 500
)

// AuditReader lit le journal d'audit, le plus récent en premier
type AuditReader interface {
	ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error)
}

type AuditHandler struct {
	logs AuditReader
}

func NewAuditHandler(logs AuditReader) *AuditHandler {
	return &AuditHandler{logs: logs}
}

// GetAuditLogs récupère les logs d'audit avec filtres
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	userID := c.Query("user_id")
	action := c.Query("action")
	resource := c.Query("resource")
	success := c.Query("success")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultAuditLimit)))
	if err != nil || limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	var wantSuccess *bool
	if success != "" {
		b, err := strconv.ParseBool(success)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Paramètre success invalide"})
			return
		}
		wantSuccess = &b
	}

	// les filtres s'appliquent après lecture : on lit la fenêtre maximale
	entries, err := h.logs.ListAuditLogs(c.Request.Context(), maxAuditLimit)
	if err != nil {
		utils.Log.Errorf("❌ Erreur récupération logs audit: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	logs := make([]models.AuditLog, 0, limit)
	for _, e := range entries {
		if userID != "" && e.UserID != userID {
			continue
		}
		if action != "" && e.Action != action {
			continue
		}
		if resource != "" && e.Resource != resource {
			continue
		}
		if wantSuccess != nil && e.Success != *wantSuccess {
			continue
		}
		logs = append(logs, e)
		if len(logs) == limit {
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"total": len(logs),
		"filters": gin.H{
			"user_id":  userID,
			"action":   action,
			"resource": resource,
			"success":  success,
			"limit":    limit,
		},
	})
}
