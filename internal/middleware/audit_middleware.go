package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"wallet_shop/internal/utils"
)

const auditErrorKey = "audit_error"

// SetAuditError signale à AuditCriticalActions que l'action a échoué, pour
// les handlers qui redirigent même en cas d'échec
func SetAuditError(c *gin.Context, err error) {
	if err != nil {
		c.Set(auditErrorKey, err)
	}
}

// AuditCriticalActions enregistre chaque action staff après traitement
func AuditCriticalActions(rec utils.AuditRecorder, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		var err error
		if v, ok := c.Get(auditErrorKey); ok {
			err, _ = v.(error)
		} else if status := c.Writer.Status(); status >= http.StatusBadRequest {
			err = errors.New(http.StatusText(status))
		}

		resourceID := c.Param("id")
		if resourceID == "" {
			resourceID = c.GetString("audit_resource_id")
		}
		utils.LogAction(c, rec, CurrentUser(c), action, resource, resourceID, err)
	}
}
