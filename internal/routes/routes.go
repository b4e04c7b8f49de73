package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wallet_shop/internal/handlers/admin"
	"wallet_shop/internal/handlers/product"
	"wallet_shop/internal/handlers/user"
	"wallet_shop/internal/middleware"
	"wallet_shop/internal/models"
	"wallet_shop/internal/services"
	"wallet_shop/internal/session"
	"wallet_shop/internal/shop"
	"wallet_shop/internal/store"
)

// Deps regroupe ce dont les handlers ont besoin
type Deps struct {
	Engine      *shop.Engine
	Store       store.Store
	Sessions    *session.Manager
	Images      *services.ImageStore
	JWTSecret   string
	CORSOrigins []string
	// Notifier nil : envoi des emails par SMTP
	Notifier admin.Notifier
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Remaining"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	products := product.NewProductHandler(d.Engine, d.Sessions)
	users := user.NewUserHandler(d.Engine, d.Sessions, d.JWTSecret)
	purchases := user.NewPurchaseHandler(d.Engine, d.Sessions)
	adminProducts := admin.NewProductHandler(d.Engine, d.Sessions, d.Images)
	adminReturns := admin.NewReturnHandler(d.Engine, d.Sessions, d.Notifier)
	audit := admin.NewAuditHandler(d.Store)

	app := r.Group("/")
	app.Use(middleware.Authenticate(d.Store, d.Sessions, d.JWTSecret))

	// Catalogue et achats
	app.GET("/", products.Home)
	app.POST("/products/:id/purchase", middleware.LoginRequired(), middleware.PurchaseRateLimit(), products.Purchase)
	app.GET("/purchases", middleware.LoginRequired(), purchases.Purchases)
	app.POST("/purchases/:id/return", middleware.LoginRequired(), purchases.RequestReturn)

	// Comptes
	app.POST("/register", middleware.RegisterRateLimit(), users.Register)
	app.POST("/login", middleware.LoginRateLimit(), users.Login)
	app.POST("/logout", users.Logout)
	app.POST("/api/token", users.Token)

	// Staff
	staff := app.Group("/admin")
	staff.Use(middleware.RequireStaff())
	{
		staff.GET("/products", adminProducts.ListProducts)
		staff.POST("/products",
			middleware.AuditCriticalActions(d.Store, models.ACTION_PRODUCT_CREATE, models.RESOURCE_PRODUCT),
			adminProducts.CreateProduct)
		staff.GET("/products/:id", adminProducts.GetProduct)
		staff.POST("/products/:id",
			middleware.AuditCriticalActions(d.Store, models.ACTION_PRODUCT_UPDATE, models.RESOURCE_PRODUCT),
			adminProducts.UpdateProduct)
		staff.POST("/products/:id/image",
			middleware.AuditCriticalActions(d.Store, models.ACTION_PRODUCT_IMAGE, models.RESOURCE_PRODUCT),
			adminProducts.UploadImage)

		staff.GET("/returns", adminReturns.ListReturns)
		staff.POST("/returns/:id/approve",
			middleware.AuditCriticalActions(d.Store, models.ACTION_RETURN_APPROVE, models.RESOURCE_RETURN),
			adminReturns.Approve)
		staff.POST("/returns/:id/reject",
			middleware.AuditCriticalActions(d.Store, models.ACTION_RETURN_REJECT, models.RESOURCE_RETURN),
			adminReturns.Reject)

		staff.GET("/audit", audit.GetAuditLogs)
	}
}
