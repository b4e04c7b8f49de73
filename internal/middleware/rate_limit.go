package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"wallet_shop/internal/cache"
	"wallet_shop/internal/utils"
)

const (
	LoginMaxAttempts    = 5
	RegisterMaxAttempts = 3
	PurchaseMaxRequests = 30

	LoginCooldown    = 15 * time.Minute
	RegisterCooldown = 30 * time.Minute
	PurchaseWindow   = 1 * time.Minute
)

func tooManyRequests(c *gin.Context, key, message string) {
	ttl := cache.RateLimitTTL(c.Request.Context(), key)
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":       fmt.Sprintf("%s. Réessayez dans %d minutes", message, int(ttl.Minutes())+1),
		"retry_after": int(ttl.Seconds()),
	})
}

// LoginRateLimit bloque un nom d'utilisateur après trop d'échecs de connexion
func LoginRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := "login_attempts:" + c.PostForm("username")

		attempts, err := cache.GetRateLimit(ctx, key)
		if err != nil {
			utils.Log.Warnf("⚠️ Rate limit login: %v", err)
		}
		if attempts >= LoginMaxAttempts {
			tooManyRequests(c, key, "Trop de tentatives échouées")
			return
		}

		c.Next()

		switch c.Writer.Status() {
		case http.StatusUnauthorized:
			if _, err := cache.IncrementRateLimit(ctx, key, LoginCooldown); err != nil {
				utils.Log.Warnf("⚠️ Rate limit login: %v", err)
			}
			if remaining := LoginMaxAttempts - attempts - 1; remaining > 0 {
				c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			}
		case http.StatusSeeOther, http.StatusOK:
			_ = cache.DeleteCache(ctx, key)
		}
	}
}

// RegisterRateLimit limite les inscriptions réussies par IP
func RegisterRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := "register_attempts:" + c.ClientIP()

		attempts, _ := cache.GetRateLimit(ctx, key)
		if attempts >= RegisterMaxAttempts {
			tooManyRequests(c, key, "Trop d'inscriptions")
			return
		}

		c.Next()

		if c.Writer.Status() == http.StatusSeeOther {
			_, _ = cache.IncrementRateLimit(ctx, key, RegisterCooldown)
		}
	}
}

// PurchaseRateLimit limite le nombre d'achats par utilisateur et par minute
func PurchaseRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := "purchase_requests:" + user.ID.String()

		count, err := cache.IncrementRateLimit(ctx, key, PurchaseWindow)
		if err != nil {
			utils.Log.Warnf("⚠️ Rate limit achat: %v", err)
		}
		if count > PurchaseMaxRequests {
			tooManyRequests(c, key, "Trop d'achats")
			return
		}
		c.Next()
	}
}
