package shop

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"wallet_shop/internal/models"
)

func TestValidatePurchase(t *testing.T) {
	product := &models.Product{ID: uuid.New(), Price: 100, Stock: 5}
	user := &models.User{ID: uuid.New(), Money: 300}

	tests := []struct {
		name     string
		quantity int
		product  *models.Product
		user     *models.User
		want     []error
		field    string
	}{
		{name: "ok", quantity: 3, product: product, user: user},
		{name: "exact stock and funds", quantity: 3, product: &models.Product{Price: 100, Stock: 3}, user: user},
		{name: "missing product", quantity: 1, product: nil, user: user, want: []error{ErrNotFound}},
		{name: "missing user", quantity: 1, product: product, user: nil, want: []error{ErrNotFound}},
		{name: "zero quantity", quantity: 0, product: product, user: user, want: []error{ErrInvalidQuantity}, field: "quantity"},
		{name: "negative quantity", quantity: -2, product: product, user: user, want: []error{ErrInvalidQuantity}, field: "quantity"},
		{name: "not enough stock", quantity: 6, product: &models.Product{Price: 1, Stock: 5}, user: user, want: []error{ErrInsufficientStock}, field: "quantity"},
		{name: "not enough money", quantity: 4, product: product, user: user, want: []error{ErrInsufficientFunds}},
		{name: "total wraps around int64", quantity: 4, product: &models.Product{Price: 1 << 62, Stock: 8}, user: user, want: []error{ErrInsufficientFunds}},
		{name: "both", quantity: 10, product: product, user: user, want: []error{ErrInsufficientStock, ErrInsufficientFunds}, field: "quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidatePurchase(tt.quantity, tt.product, tt.user)
			if len(tt.want) == 0 {
				assert.True(t, res.OK())
				assert.NoError(t, res.Err())
				return
			}

			assert.False(t, res.OK())
			assert.Len(t, res.Reasons, len(tt.want))
			err := res.Err()
			for _, want := range tt.want {
				assert.ErrorIs(t, err, want)
			}
			assert.Equal(t, tt.field, res.Reasons[0].Field)
		})
	}
}

func TestValidateProduct(t *testing.T) {
	tests := []struct {
		name   string
		in     ProductInput
		fields []string
	}{
		{name: "ok", in: ProductInput{Name: "lampe", Price: 1, Stock: 0}},
		{name: "upper bounds", in: ProductInput{Name: "lampe", Price: MaxProductPrice, Stock: MaxProductStock}},
		{name: "blank name", in: ProductInput{Name: "  ", Price: 10}, fields: []string{"name"}},
		{name: "zero price", in: ProductInput{Name: "lampe", Price: 0}, fields: []string{"price"}},
		{name: "negative price", in: ProductInput{Name: "lampe", Price: -5}, fields: []string{"price"}},
		{name: "price too high", in: ProductInput{Name: "lampe", Price: MaxProductPrice + 1}, fields: []string{"price"}},
		{name: "negative stock", in: ProductInput{Name: "lampe", Price: 10, Stock: -1}, fields: []string{"stock"}},
		{name: "stock too high", in: ProductInput{Name: "lampe", Price: 10, Stock: MaxProductStock + 1}, fields: []string{"stock"}},
		{name: "all wrong", in: ProductInput{Price: 1 << 62, Stock: -1}, fields: []string{"name", "price", "stock"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateProduct(tt.in)
			if len(tt.fields) == 0 {
				assert.NoError(t, res.Err())
				return
			}
			assert.ErrorIs(t, res.Err(), ErrInvalidProduct)
			fields := make([]string, 0, len(res.Reasons))
			for _, r := range res.Reasons {
				fields = append(fields, r.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestValidateReturnRequest(t *testing.T) {
	buyer := &models.User{ID: uuid.New()}
	other := &models.User{ID: uuid.New()}
	purchasedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	purchase := &models.Purchase{ID: uuid.New(), UserID: buyer.ID, PurchasedAt: purchasedAt}
	strict := ReturnPolicy{Window: 24 * time.Hour, RequireOwnership: true}
	lax := ReturnPolicy{Window: 24 * time.Hour}

	tests := []struct {
		name     string
		purchase *models.Purchase
		user     *models.User
		now      time.Time
		policy   ReturnPolicy
		want     error
	}{
		{name: "fresh", purchase: purchase, user: buyer, now: purchasedAt.Add(time.Hour), policy: strict},
		{name: "exactly at the limit", purchase: purchase, user: buyer, now: purchasedAt.Add(24 * time.Hour), policy: strict},
		{name: "one second late", purchase: purchase, user: buyer, now: purchasedAt.Add(24*time.Hour + time.Second), policy: strict, want: ErrExpiredWindow},
		{name: "missing purchase", purchase: nil, user: buyer, now: purchasedAt, policy: strict, want: ErrNotFound},
		{name: "not the buyer", purchase: purchase, user: other, now: purchasedAt, policy: strict, want: ErrPermissionDenied},
		{name: "not the buyer without ownership rule", purchase: purchase, user: other, now: purchasedAt, policy: lax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateReturnRequest(tt.purchase, tt.user, tt.now, tt.policy).Err()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReasonsAndMessage(t *testing.T) {
	res := ValidatePurchase(10, &models.Product{Price: 100, Stock: 5}, &models.User{Money: 300})
	reasons := Reasons(res.Err())
	assert.Len(t, reasons, 2)
	assert.Equal(t, "Pas assez de produits en stock", reasons[0].Message)
	assert.Equal(t, "Vous n'avez pas assez d'argent", reasons[1].Message)

	assert.Nil(t, Reasons(nil))

	plain := Reasons(ErrAlreadyRequested)
	assert.Len(t, plain, 1)
	assert.Equal(t, "Un retour a déjà été demandé pour cet achat", plain[0].Message)

	assert.Equal(t, "Erreur interne, veuillez réessayer", Message(errors.New("boom")))
}

func TestReturnPolicyReturnable(t *testing.T) {
	policy := ReturnPolicy{Window: 24 * time.Hour}
	p := models.Purchase{PurchasedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}

	assert.True(t, policy.Returnable(p, p.PurchasedAt.Add(24*time.Hour)))
	assert.False(t, policy.Returnable(p, p.PurchasedAt.Add(25*time.Hour)))
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "ok", resultLabel(nil))
	assert.Equal(t, "rejected", resultLabel(ValidatePurchase(0, &models.Product{}, &models.User{}).Err()))
	assert.Equal(t, "rejected", resultLabel(ErrPermissionDenied))
	assert.Equal(t, "error", resultLabel(errors.New("db down")))
}
