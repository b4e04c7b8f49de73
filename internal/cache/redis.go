package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"wallet_shop/internal/utils"
)

// RedisClient vaut nil quand Redis n'est pas configuré : toutes les
// fonctions du package deviennent alors des no-op (cache manqué, compteur à 0).
var RedisClient *redis.Client

// Init branche le client Redis partagé
func Init(client *redis.Client) {
	RedisClient = client
}

func enabled() bool {
	return RedisClient != nil
}

// --- Blacklist JWT (révocation avant expiration) ---

// BlacklistToken ajoute un token JWT à la blacklist
func BlacklistToken(ctx context.Context, tokenID string, duration time.Duration) error {
	if !enabled() {
		return nil
	}
	key := fmt.Sprintf("blacklist:%s", tokenID)
	return RedisClient.Set(ctx, key, "revoked", duration).Err()
}

// IsTokenBlacklisted vérifie si un token est blacklisté
func IsTokenBlacklisted(ctx context.Context, tokenID string) bool {
	if !enabled() {
		return false
	}
	key := fmt.Sprintf("blacklist:%s", tokenID)
	exists, err := RedisClient.Exists(ctx, key).Result()
	if err != nil {
		utils.Log.Warnf("⚠️ Erreur vérification blacklist: %v", err)
		return false
	}
	return exists > 0
}

// --- Cache générique ---

// SetCache stocke une valeur dans le cache
func SetCache(ctx context.Context, key string, value interface{}, duration time.Duration) error {
	if !enabled() {
		return nil
	}
	return RedisClient.Set(ctx, key, value, duration).Err()
}

// GetCache récupère une valeur du cache. redis.Nil si absente.
func GetCache(ctx context.Context, key string) (string, error) {
	if !enabled() {
		return "", redis.Nil
	}
	return RedisClient.Get(ctx, key).Result()
}

// DeleteCache supprime une clé du cache
func DeleteCache(ctx context.Context, keys ...string) error {
	if !enabled() {
		return nil
	}
	return RedisClient.Del(ctx, keys...).Err()
}

// --- Rate Limiting ---

// IncrementRateLimit incrémente le compteur de rate limit
func IncrementRateLimit(ctx context.Context, key string, window time.Duration) (int64, error) {
	if !enabled() {
		return 0, nil
	}
	pipe := RedisClient.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// GetRateLimit récupère le compteur de rate limit
func GetRateLimit(ctx context.Context, key string) (int64, error) {
	if !enabled() {
		return 0, nil
	}
	val, err := RedisClient.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

// RateLimitTTL retourne le temps restant avant la remise à zéro du compteur
func RateLimitTTL(ctx context.Context, key string) time.Duration {
	if !enabled() {
		return 0
	}
	ttl, err := RedisClient.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}
