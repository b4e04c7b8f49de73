package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"wallet_shop/internal/cache"
	"wallet_shop/internal/models"
	"wallet_shop/internal/session"
	"wallet_shop/internal/store"
	"wallet_shop/internal/utils"
)

const (
	userKey   = "user"
	claimsKey = "jwt_claims"
)

// UserLoader charge un utilisateur à jour (solde, statut staff)
type UserLoader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Authenticate identifie l'utilisateur par Bearer JWT ou par cookie de
// session. Les requêtes anonymes continuent ; un token invalide est refusé.
func Authenticate(users UserLoader, sessions *session.Manager, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID uuid.UUID

		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Format Authorization invalide"})
				return
			}

			claims, err := utils.ParseJWT(parts[1], jwtSecret)
			if err != nil {
				utils.Log.Debugf("❌ Erreur parsing JWT: %v", err)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token invalide"})
				return
			}
			if cache.IsTokenBlacklisted(c.Request.Context(), claims.ID) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token révoqué"})
				return
			}
			if userID, err = uuid.Parse(claims.UserID); err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id manquant"})
				return
			}
			c.Set(claimsKey, claims)
		} else if id, ok := sessions.UserID(c); ok {
			userID = id
		}

		if userID != uuid.Nil {
			user, err := users.GetUser(c.Request.Context(), userID)
			switch {
			case err == nil:
				c.Set(userKey, user)
			case errors.Is(err, store.ErrNotFound):
				// compte supprimé : la requête continue en anonyme
			default:
				utils.Log.Errorf("❌ Chargement utilisateur %s: %v", userID, err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
				return
			}
		}
		c.Next()
	}
}

// CurrentUser retourne l'utilisateur authentifié ou nil
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// CurrentClaims retourne les claims du JWT de la requête ou nil
func CurrentClaims(c *gin.Context) *utils.Claims {
	if v, ok := c.Get(claimsKey); ok {
		if claims, ok := v.(*utils.Claims); ok {
			return claims
		}
	}
	return nil
}

func LoginRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentification requise"})
			return
		}
		c.Next()
	}
}

// RequireStaff réserve la route aux membres du staff
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentification requise"})
			return
		}
		if !user.IsStaff {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Accès réservé au staff"})
			return
		}
		c.Next()
	}
}
