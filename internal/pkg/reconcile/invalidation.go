package reconcile

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

// InvalidationChannel is the pub/sub channel dependent view servers listen
// on for cache refresh signals.
const InvalidationChannel = "billing:invalidations"

// viewKeyPrefix namespaces the cached read-view keys the signaler drops.
const viewKeyPrefix = "view:"

// Signaler emits best-effort invalidation signals after a successful
// reconciliation write. Signals must never block or fail the write; every
// implementation swallows its own errors.
type Signaler interface {
	Signal(ctx context.Context, scopes ...string)
}

// Scope helpers keep signal naming consistent between the engine and the
// read views.
func ScopeGlobal(entity string) string { return entity + ":global" }

func ScopeCustomer(entity, customerID string) string {
	return fmt.Sprintf("%s:%s", entity, customerID)
}

func ScopeParent(entity, parent, parentID string) string {
	return fmt.Sprintf("%s:%s:%s", entity, parent, parentID)
}

type redisSignaler struct {
	client *redis.Client
}

// NewRedisSignaler creates a signaler that drops cached view keys and
// publishes each scope on the invalidation channel.
func NewRedisSignaler(client *redis.Client) Signaler {
	return &redisSignaler{client: client}
}

func (s *redisSignaler) Signal(ctx context.Context, scopes ...string) {
	for _, scope := range scopes {
		if scope == "" {
			continue
		}
		if err := s.client.Del(ctx, viewKeyPrefix+scope).Err(); err != nil {
			log.Warnf("[Reconcile] invalidation del failed scope=%s: %v", scope, err)
		}
		if err := s.client.Publish(ctx, InvalidationChannel, scope).Err(); err != nil {
			log.Warnf("[Reconcile] invalidation publish failed scope=%s: %v", scope, err)
		}
	}
}

// NoopSignaler discards all signals. Used in tests and when no cache is
// configured.
type NoopSignaler struct{}

func (NoopSignaler) Signal(ctx context.Context, scopes ...string) {}
