package cache

import (
	"context"
	"encoding/json"
	"time"

	"wallet_shop/internal/models"
	"wallet_shop/internal/utils"
)

const (
	ProductCacheTTL  = 30 * time.Second
	productsCacheKey = "products:list"
)

// GetProducts retourne le catalogue en cache, ok=false si absent ou illisible
func GetProducts(ctx context.Context) ([]models.Product, bool) {
	data, err := GetCache(ctx, productsCacheKey)
	if err != nil {
		return nil, false
	}
	var products []models.Product
	if err := json.Unmarshal([]byte(data), &products); err != nil {
		utils.Log.Warnf("⚠️ Cache catalogue illisible: %v", err)
		return nil, false
	}
	return products, true
}

// SetProducts met le catalogue en cache
func SetProducts(ctx context.Context, products []models.Product) {
	data, err := json.Marshal(products)
	if err != nil {
		return
	}
	if err := SetCache(ctx, productsCacheKey, data, ProductCacheTTL); err != nil {
		utils.Log.Warnf("⚠️ Mise en cache catalogue: %v", err)
	}
}

// InvalidateProducts doit être appelé après toute modification de stock,
// de prix ou d'un produit
func InvalidateProducts(ctx context.Context) {
	if err := DeleteCache(ctx, productsCacheKey); err != nil {
		utils.Log.Warnf("⚠️ Invalidation cache catalogue: %v", err)
	}
}
