package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockTimeout = errors.New("cache: verrou non obtenu à temps")
	ErrNoRedis     = errors.New("cache: redis non configuré")
)

// suppression uniquement si le verrou nous appartient encore
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock est un verrou exclusif posé par SET NX PX
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// AcquireLock attend le verrou key jusqu'à l'annulation de ctx ou le délai
// wait. ttl borne la durée de vie du verrou si le détenteur disparaît.
func AcquireLock(ctx context.Context, client *redis.Client, key string, ttl, wait time.Duration) (*Lock, error) {
	if client == nil {
		return nil, ErrNoRedis
	}
	token := uuid.NewString()
	deadline := time.Now().Add(wait)
	backoff := 5 * time.Millisecond

	for {
		ok, err := client.SetNX(ctx, "lock:"+key, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return &Lock{client: client, key: "lock:" + key, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 100*time.Millisecond {
			backoff *= 2
		}
	}
}

// Release libère le verrou. Un verrou expiré puis repris par un autre
// détenteur n'est pas supprimé.
func (l *Lock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}
