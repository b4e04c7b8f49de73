// Package handlers regroupe les aides partagées par les handlers HTTP :
// redirections avec notices et lecture des paramètres d'URL.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"wallet_shop/internal/session"
	"wallet_shop/internal/shop"
	"wallet_shop/internal/utils"
)

// Redirect enregistre les notices dans la session puis redirige en 303
func Redirect(c *gin.Context, sessions *session.Manager, location string, notices ...session.Notice) {
	if len(notices) > 0 {
		if err := sessions.AddNotices(c, notices...); err != nil {
			utils.Log.Warnf("⚠️ Impossible d'enregistrer les notices: %v", err)
		}
	}
	c.Redirect(http.StatusSeeOther, location)
}

func Success(message string) session.Notice {
	return session.Notice{Level: session.LevelSuccess, Message: message}
}

// NoticesFor traduit une erreur métier en notices. Les erreurs internes
// sont journalisées et remplacées par un message générique.
func NoticesFor(err error) []session.Notice {
	if err == nil {
		return nil
	}
	if IsInternal(err) {
		utils.Log.Errorf("❌ Erreur interne: %v", err)
	}

	reasons := shop.Reasons(err)
	notices := make([]session.Notice, 0, len(reasons))
	for _, r := range reasons {
		level := session.LevelError
		if errors.Is(r.Err, shop.ErrExpiredWindow) {
			level = session.LevelInfo
		}
		notices = append(notices, session.Notice{Level: level, Field: r.Field, Message: r.Message})
	}
	return notices
}

// IsInternal indique une erreur qui n'est pas un refus métier
func IsInternal(err error) bool {
	var verr *shop.ValidationError
	if errors.As(err, &verr) {
		return false
	}
	for _, known := range []error{
		shop.ErrNotFound,
		shop.ErrInsufficientStock,
		shop.ErrInsufficientFunds,
		shop.ErrExpiredWindow,
		shop.ErrPermissionDenied,
		shop.ErrInvalidQuantity,
		shop.ErrAlreadyRequested,
		shop.ErrUsernameTaken,
		shop.ErrInvalidCredentials,
		shop.ErrInvalidProduct,
	} {
		if errors.Is(err, known) {
			return false
		}
	}
	return true
}

// StatusFor donne le code HTTP d'une erreur pour les réponses JSON
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shop.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shop.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, shop.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, shop.ErrUsernameTaken), errors.Is(err, shop.ErrAlreadyRequested):
		return http.StatusConflict
	case IsInternal(err):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// ParamUUID lit le paramètre d'URL name. Un identifiant mal formé est
// traité comme un élément introuvable.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, shop.ErrNotFound
	}
	return id, nil
}
