package admin

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"wallet_shop/internal/cache"
	"wallet_shop/internal/handlers"
	"wallet_shop/internal/middleware"
	"wallet_shop/internal/models"
	"wallet_shop/internal/session"
	"wallet_shop/internal/shop"
	"wallet_shop/internal/utils"
)

const returnsPage = "/admin/returns"

// Notifier prévient l'acheteur de la décision du staff
type Notifier func(to string, notice utils.ReturnNotice, approved bool) error

type ReturnHandler struct {
	engine   *shop.Engine
	sessions *session.Manager
	notify   Notifier
}

func NewReturnHandler(engine *shop.Engine, sessions *session.Manager, notify Notifier) *ReturnHandler {
	if notify == nil {
		notify = utils.SendReturnDecisionEmail
	}
	return &ReturnHandler{engine: engine, sessions: sessions, notify: notify}
}

// ListReturns liste les demandes de retour en attente
func (h *ReturnHandler) ListReturns(c *gin.Context) {
	returns, err := h.engine.ListPendingReturns(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		c.JSON(handlers.StatusFor(err), gin.H{"error": shop.Message(err)})
		return
	}
	if returns == nil {
		returns = []models.ReturnDetail{}
	}

	c.JSON(http.StatusOK, gin.H{
		"returns": returns,
		"total":   len(returns),
		"notices": h.sessions.Notices(c),
	})
}

// Approve rembourse l'acheteur et remet le stock
func (h *ReturnHandler) Approve(c *gin.Context) {
	h.decide(c, true)
}

// Reject supprime la demande sans toucher à l'achat
func (h *ReturnHandler) Reject(c *gin.Context) {
	h.decide(c, false)
}

func (h *ReturnHandler) decide(c *gin.Context, approve bool) {
	actor := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	returnID, err := handlers.ParamUUID(c, "id")
	var decision *shop.ReturnDecision
	if err == nil {
		if approve {
			decision, err = h.engine.ApproveReturn(ctx, actor, returnID)
		} else {
			decision, err = h.engine.RejectReturn(ctx, actor, returnID)
		}
	}
	if err != nil {
		middleware.SetAuditError(c, err)
		if errors.Is(err, shop.ErrPermissionDenied) {
			c.JSON(http.StatusForbidden, gin.H{"error": shop.Message(err)})
			return
		}
		handlers.Redirect(c, h.sessions, returnsPage, handlers.NoticesFor(err)...)
		return
	}

	notice := utils.ReturnNotice{
		Username:    decision.User.Username,
		ProductName: decision.Product.Name,
		Quantity:    decision.Purchase.Quantity,
		Amount:      decision.Refund,
		Balance:     decision.User.Money,
	}
	// un rejet ne verrouille pas le produit : son nom est relu hors transaction
	if notice.ProductName == "" {
		if p, err := h.engine.GetProduct(ctx, decision.Purchase.ProductID); err == nil {
			notice.ProductName = p.Name
		}
	}
	h.sendNotice(decision.User.Email, notice, approve)

	message := fmt.Sprintf("Retour refusé pour %s", decision.User.Username)
	if approve {
		cache.InvalidateProducts(ctx)
		message = fmt.Sprintf("Retour accepté : +%d unités pour %s", decision.Refund, decision.User.Username)
	}
	handlers.Redirect(c, h.sessions, returnsPage, handlers.Success(message))
}

func (h *ReturnHandler) sendNotice(to string, notice utils.ReturnNotice, approved bool) {
	if to == "" {
		return
	}
	go func() {
		if err := h.notify(to, notice, approved); err != nil {
			utils.Log.Warnf("⚠️ Email de décision non envoyé à %s: %v", to, err)
		}
	}()
}
