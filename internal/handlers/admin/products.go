package admin

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"wallet_shop/internal/cache"
	"wallet_shop/internal/handlers"
	"wallet_shop/internal/middleware"
	"wallet_shop/internal/models"
	"wallet_shop/internal/services"
	"wallet_shop/internal/session"
	"wallet_shop/internal/shop"
	"wallet_shop/internal/utils"
)

const movementsLimit = 50

var productForm = gin.H{
	"method": "POST",
	"fields": []gin.H{
		{"name": "name", "type": "string", "required": true},
		{"name": "description", "type": "string"},
		{"name": "price", "type": "integer", "min": 0, "required": true},
		{"name": "stock", "type": "integer", "min": 0, "required": true},
	},
}

type ProductHandler struct {
	engine   *shop.Engine
	sessions *session.Manager
	images   *services.ImageStore
}

func NewProductHandler(engine *shop.Engine, sessions *session.Manager, images *services.ImageStore) *ProductHandler {
	return &ProductHandler{engine: engine, sessions: sessions, images: images}
}

// ListProducts affiche le formulaire d'ajout avec tout le catalogue
func (h *ProductHandler) ListProducts(c *gin.Context) {
	products, err := h.engine.ListProducts(c.Request.Context())
	if err != nil {
		utils.Log.Errorf("❌ Erreur récupération produits: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur récupération produits"})
		return
	}
	if products == nil {
		products = []models.Product{}
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"form":     productForm,
		"notices":  h.sessions.Notices(c),
	})
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	in, notices := bindProductForm(c)
	if len(notices) > 0 {
		middleware.SetAuditError(c, shop.ErrInvalidProduct)
		handlers.Redirect(c, h.sessions, "/admin/products", notices...)
		return
	}

	p, err := h.engine.CreateProduct(c.Request.Context(), middleware.CurrentUser(c), in)
	if err != nil {
		h.fail(c, err, "/admin/products")
		return
	}

	cache.InvalidateProducts(c.Request.Context())
	c.Set("audit_resource_id", p.ID.String())
	handlers.Redirect(c, h.sessions, "/admin/products", handlers.Success("Produit \""+p.Name+"\" ajouté"))
}

// GetProduct retourne un produit avec son historique de stock
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, err := handlers.ParamUUID(c, "id")
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Produit introuvable"})
		return
	}

	ctx := c.Request.Context()
	p, err := h.engine.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, shop.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Produit introuvable"})
			return
		}
		utils.Log.Errorf("❌ Erreur récupération produit %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	movements, err := h.engine.StockMovements(ctx, middleware.CurrentUser(c), id, movementsLimit)
	if err != nil {
		c.JSON(handlers.StatusFor(err), gin.H{"error": shop.Message(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product":   p,
		"movements": movements,
		"form":      productForm,
		"notices":   h.sessions.Notices(c),
	})
}

// UpdateProduct remplace les champs du produit. Succès : retour à la liste.
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	id, err := handlers.ParamUUID(c, "id")
	if err != nil {
		h.fail(c, err, "/admin/products")
		return
	}
	back := "/admin/products/" + id.String()

	in, notices := bindProductForm(c)
	if len(notices) > 0 {
		middleware.SetAuditError(c, shop.ErrInvalidProduct)
		handlers.Redirect(c, h.sessions, back, notices...)
		return
	}

	p, err := h.engine.UpdateProduct(c.Request.Context(), middleware.CurrentUser(c), id, in)
	if err != nil {
		if errors.Is(err, shop.ErrNotFound) {
			back = "/admin/products"
		}
		h.fail(c, err, back)
		return
	}

	cache.InvalidateProducts(c.Request.Context())
	handlers.Redirect(c, h.sessions, "/admin/products", handlers.Success("Produit \""+p.Name+"\" mis à jour"))
}

// UploadImage envoie l'image du produit sur MinIO et enregistre son URL
func (h *ProductHandler) UploadImage(c *gin.Context) {
	if h.images == nil || !h.images.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Stockage d'images non configuré"})
		return
	}

	id, err := handlers.ParamUUID(c, "id")
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Produit introuvable"})
		return
	}
	ctx := c.Request.Context()
	if _, err := h.engine.GetProduct(ctx, id); err != nil {
		c.JSON(handlers.StatusFor(err), gin.H{"error": shop.Message(err)})
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Aucun fichier reçu"})
		return
	}

	url, err := h.images.UploadProductImage(ctx, id, file)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrImageTooLarge), errors.Is(err, services.ErrImageType):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			utils.Log.Errorf("❌ Erreur upload MinIO: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur upload image"})
		}
		return
	}

	if err := h.engine.SetProductImage(ctx, middleware.CurrentUser(c), id, url); err != nil {
		c.JSON(handlers.StatusFor(err), gin.H{"error": shop.Message(err)})
		return
	}

	cache.InvalidateProducts(ctx)
	c.JSON(http.StatusOK, gin.H{
		"message":   "Image mise à jour",
		"image_url": url,
	})
}

// fail redirige avec les raisons du refus. PermissionDenied répond 403.
func (h *ProductHandler) fail(c *gin.Context, err error, location string) {
	middleware.SetAuditError(c, err)
	if errors.Is(err, shop.ErrPermissionDenied) {
		c.JSON(http.StatusForbidden, gin.H{"error": shop.Message(err)})
		return
	}
	handlers.Redirect(c, h.sessions, location, handlers.NoticesFor(err)...)
}

// bindProductForm lit le formulaire produit. Les champs numériques
// illisibles donnent une notice, le reste est validé par le moteur.
func bindProductForm(c *gin.Context) (shop.ProductInput, []session.Notice) {
	var notices []session.Notice
	in := shop.ProductInput{
		Name:        strings.TrimSpace(c.PostForm("name")),
		Description: strings.TrimSpace(c.PostForm("description")),
	}

	price, err := strconv.ParseInt(c.PostForm("price"), 10, 64)
	if err != nil {
		notices = append(notices, session.Notice{Level: session.LevelError, Field: "price", Message: "Prix invalide"})
	}
	in.Price = price

	stock, err := strconv.Atoi(c.PostForm("stock"))
	if err != nil {
		notices = append(notices, session.Notice{Level: session.LevelError, Field: "stock", Message: "Stock invalide"})
	}
	in.Stock = stock

	return in, notices
}
