package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wallet_shop/internal/handlers"
	"wallet_shop/internal/middleware"
	"wallet_shop/internal/session"
	"wallet_shop/internal/shop"
	"wallet_shop/internal/utils"
)

type PurchaseHandler struct {
	engine   *shop.Engine
	sessions *session.Manager
}

func NewPurchaseHandler(engine *shop.Engine, sessions *session.Manager) *PurchaseHandler {
	return &PurchaseHandler{engine: engine, sessions: sessions}
}

// Purchases liste les achats de l'utilisateur connecté uniquement
func (h *PurchaseHandler) Purchases(c *gin.Context) {
	user := middleware.CurrentUser(c)

	purchases, err := h.engine.ListPurchases(c.Request.Context(), user.ID)
	if err != nil {
		utils.Log.Errorf("❌ Erreur récupération achats de %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur récupération achats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"purchases":             purchases,
		"total":                 len(purchases),
		"refund_window_seconds": int64(h.engine.Policy().Window.Seconds()),
		"notices":               h.sessions.Notices(c),
	})
}

// RequestReturn demande le retour d'un achat. Succès : /purchases, échec : /
func (h *PurchaseHandler) RequestReturn(c *gin.Context) {
	user := middleware.CurrentUser(c)

	purchaseID, err := handlers.ParamUUID(c, "id")
	if err == nil {
		_, err = h.engine.RequestReturn(c.Request.Context(), user, purchaseID)
	}
	if err != nil {
		handlers.Redirect(c, h.sessions, "/", handlers.NoticesFor(err)...)
		return
	}

	handlers.Redirect(c, h.sessions, "/purchases", handlers.Success("Demande de retour envoyée"))
}
