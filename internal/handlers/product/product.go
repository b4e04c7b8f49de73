package product

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wallet_shop/internal/cache"
	"wallet_shop/internal/handlers"
	"wallet_shop/internal/middleware"
	"wallet_shop/internal/models"
	"wallet_shop/internal/session"
	"wallet_shop/internal/shop"
	"wallet_shop/internal/utils"
)

// purchaseForm décrit le formulaire d'achat affiché sous chaque produit
var purchaseForm = gin.H{
	"method": "POST",
	"action": "/products/:id/purchase",
	"fields": []gin.H{
		{"name": "quantity", "type": "integer", "min": 1, "required": true},
	},
}

type ProductHandler struct {
	engine   *shop.Engine
	sessions *session.Manager
}

func NewProductHandler(engine *shop.Engine, sessions *session.Manager) *ProductHandler {
	return &ProductHandler{engine: engine, sessions: sessions}
}

// Home liste le catalogue avec le formulaire d'achat et les notices en attente
func (h *ProductHandler) Home(c *gin.Context) {
	ctx := c.Request.Context()

	products, ok := cache.GetProducts(ctx)
	if !ok {
		var err error
		products, err = h.engine.ListProducts(ctx)
		if err != nil {
			utils.Log.Errorf("❌ Erreur récupération produits: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur récupération produits"})
			return
		}
		cache.SetProducts(ctx, products)
	}
	if products == nil {
		products = []models.Product{}
	}

	c.JSON(http.StatusOK, gin.H{
		"user":          middleware.CurrentUser(c),
		"products":      products,
		"purchase_form": purchaseForm,
		"notices":       h.sessions.Notices(c),
	})
}

// Purchase achète quantity unités puis redirige vers l'accueil, avec une
// notice de succès ou les raisons du refus
func (h *ProductHandler) Purchase(c *gin.Context) {
	user := middleware.CurrentUser(c)

	productID, err := handlers.ParamUUID(c, "id")
	if err != nil {
		handlers.Redirect(c, h.sessions, "/", handlers.NoticesFor(err)...)
		return
	}

	// une saisie non numérique vaut 0 et sera refusée comme quantité invalide
	quantity, _ := strconv.Atoi(c.PostForm("quantity"))

	_, err = h.engine.Purchase(c.Request.Context(), user.ID, productID, quantity)
	if err != nil {
		handlers.Redirect(c, h.sessions, "/", handlers.NoticesFor(err)...)
		return
	}

	cache.InvalidateProducts(c.Request.Context())
	handlers.Redirect(c, h.sessions, "/", handlers.Success("Achat effectué !"))
}
