package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes a reservation only while the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RefRegistry implements usecase.RefRegistry with SET NX reservations.
type RefRegistry struct {
	client *redis.Client
	prefix string
}

// NewRefRegistry creates a new RefRegistry.
func NewRefRegistry(client *redis.Client) *RefRegistry {
	return &RefRegistry{
		client: client,
		prefix: "refno:",
	}
}

// Reserve claims refNo for owner until ttl elapses.
func (r *RefRegistry) Reserve(ctx context.Context, refNo, owner string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.prefix+refNo, owner, ttl).Result()
}

// Release drops the reservation if owner still holds it.
func (r *RefRegistry) Release(ctx context.Context, refNo, owner string) error {
	return releaseScript.Run(ctx, r.client, []string{r.prefix + refNo}, owner).Err()
}
