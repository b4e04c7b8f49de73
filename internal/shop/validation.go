package shop

import (
	"math"
	"strings"
	"time"

	"wallet_shop/internal/models"
)

// Bornes de la saisie staff. Leur produit tient dans un int64, un
// remboursement ne peut donc pas déborder.
const (
	MaxProductPrice int64 = 1_000_000_000
	MaxProductStock       = 1_000_000
)

// ReturnPolicy regroupe les règles d'éligibilité d'un retour
type ReturnPolicy struct {
	Window time.Duration
	// RequireOwnership refuse un retour demandé par quelqu'un d'autre que
	// l'acheteur.
	RequireOwnership bool
}

// ValidatePurchase vérifie qu'un achat de quantity unités est possible.
// product ou user à nil signifie introuvable. Le stock et le solde sont
// vérifiés indépendamment : les deux refus peuvent être rapportés ensemble.
func ValidatePurchase(quantity int, product *models.Product, user *models.User) Result {
	var res Result

	if product == nil {
		res.add("", ErrNotFound, "Le produit n'existe pas")
		return res
	}
	if user == nil {
		res.add("", ErrNotFound, "Utilisateur introuvable")
		return res
	}
	if quantity < 1 {
		res.add("quantity", ErrInvalidQuantity, Message(ErrInvalidQuantity))
		return res
	}

	if product.Stock < quantity {
		res.add("quantity", ErrInsufficientStock, "Pas assez de produits en stock")
	}
	if overflows(quantity, product.Price) || product.Total(quantity) > user.Money {
		res.add("", ErrInsufficientFunds, "Vous n'avez pas assez d'argent")
	}
	return res
}

// ValidateProduct vérifie la saisie staff d'un produit
func ValidateProduct(in ProductInput) Result {
	var res Result
	if strings.TrimSpace(in.Name) == "" {
		res.add("name", ErrInvalidProduct, "Le nom est obligatoire")
	}
	switch {
	case in.Price <= 0:
		res.add("price", ErrInvalidProduct, "Le prix doit être positif")
	case in.Price > MaxProductPrice:
		res.add("price", ErrInvalidProduct, "Le prix est trop élevé")
	}
	switch {
	case in.Stock < 0:
		res.add("stock", ErrInvalidProduct, "Le stock ne peut pas être négatif")
	case in.Stock > MaxProductStock:
		res.add("stock", ErrInvalidProduct, "Le stock est trop élevé")
	}
	return res
}

// overflows indique si quantity * price dépasse un int64
func overflows(quantity int, price int64) bool {
	return price > 0 && int64(quantity) > math.MaxInt64/price
}

// ValidateReturnRequest vérifie qu'un retour peut être demandé sur purchase
// à l'instant now. Un achat pile à la limite de la fenêtre est encore
// remboursable.
func ValidateReturnRequest(purchase *models.Purchase, user *models.User, now time.Time, policy ReturnPolicy) Result {
	var res Result

	if purchase == nil {
		res.add("", ErrNotFound, "L'achat n'existe pas")
		return res
	}
	if policy.RequireOwnership && (user == nil || purchase.UserID != user.ID) {
		res.add("", ErrPermissionDenied, "Cet achat ne vous appartient pas")
		return res
	}
	if now.Sub(purchase.PurchasedAt) > policy.Window {
		res.add("", ErrExpiredWindow, "Le délai de retour a expiré")
	}
	return res
}

// Returnable indique si la fenêtre de retour est encore ouverte
func (p ReturnPolicy) Returnable(purchase models.Purchase, now time.Time) bool {
	return now.Sub(purchase.PurchasedAt) <= p.Window
}
