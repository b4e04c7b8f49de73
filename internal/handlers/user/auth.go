package user

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"wallet_shop/internal/cache"
	"wallet_shop/internal/handlers"
	"wallet_shop/internal/middleware"
	"wallet_shop/internal/session"
	"wallet_shop/internal/shop"
	"wallet_shop/internal/utils"
)

type UserHandler struct {
	engine    *shop.Engine
	sessions  *session.Manager
	jwtSecret string
}

func NewUserHandler(engine *shop.Engine, sessions *session.Manager, jwtSecret string) *UserHandler {
	return &UserHandler{engine: engine, sessions: sessions, jwtSecret: jwtSecret}
}

// Register crée un compte avec le solde de départ et ouvre la session
func (h *UserHandler) Register(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	email := strings.TrimSpace(c.PostForm("email"))
	password1 := c.PostForm("password1")
	password2 := c.PostForm("password2")

	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Le nom d'utilisateur est obligatoire", "field": "username"})
		return
	}
	if err := utils.CheckNewPassword(password1, password2); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": "password2"})
		return
	}

	hash, err := utils.HashPassword(password1)
	if err != nil {
		utils.Log.Errorf("❌ Erreur hash mot de passe: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	user, err := h.engine.Register(c.Request.Context(), username, email, hash)
	if err != nil {
		if errors.Is(err, shop.ErrUsernameTaken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": shop.Message(err), "field": "username"})
			return
		}
		utils.Log.Errorf("❌ Erreur création compte %s: %v", username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	if err := h.sessions.Login(c, user.ID); err != nil {
		utils.Log.Errorf("❌ Erreur ouverture session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}
	handlers.Redirect(c, h.sessions, "/", handlers.Success("Bienvenue "+user.Username+" !"))
}

// Login ouvre une session. Un échec répond 401, compté par LoginRateLimit.
func (h *UserHandler) Login(c *gin.Context) {
	user, err := h.engine.Authenticate(c.Request.Context(), c.PostForm("username"), c.PostForm("password"))
	if err != nil {
		c.JSON(handlers.StatusFor(err), gin.H{"error": shop.Message(err)})
		return
	}

	if err := h.sessions.Login(c, user.ID); err != nil {
		utils.Log.Errorf("❌ Erreur ouverture session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}
	utils.Log.Infof("🔑 Connexion de %s", user.Username)
	c.Redirect(http.StatusSeeOther, "/")
}

// Logout ferme la session et révoque le JWT éventuellement présenté
func (h *UserHandler) Logout(c *gin.Context) {
	if claims := middleware.CurrentClaims(c); claims != nil && claims.ExpiresAt != nil {
		ttl := time.Until(claims.ExpiresAt.Time)
		if ttl > 0 {
			if err := cache.BlacklistToken(c.Request.Context(), claims.ID, ttl); err != nil {
				utils.Log.Warnf("⚠️ Révocation du token impossible: %v", err)
			}
		}
	}

	if err := h.sessions.Logout(c); err != nil {
		utils.Log.Warnf("⚠️ Erreur fermeture session: %v", err)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// Token délivre un JWT aux clients API
func (h *UserHandler) Token(c *gin.Context) {
	var input struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	user, err := h.engine.Authenticate(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		c.JSON(handlers.StatusFor(err), gin.H{"error": shop.Message(err)})
		return
	}

	token, err := utils.GenerateJWT(*user, h.jwtSecret)
	if err != nil {
		utils.Log.Errorf("❌ Erreur génération token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Impossible de générer le token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_in": int(utils.TokenTTL.Seconds()),
	})
}
