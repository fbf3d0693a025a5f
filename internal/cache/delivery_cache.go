package cache

import (
	"strings"
	"sync"
	"time"

	clientfeaturesdomain "github.com/smallbiznis/flagship/internal/clientfeatures/domain"
	"go.uber.org/fx"
)

// DeliveryCache stores built client payloads per environment. It is strictly
// invalidated on every milestone activation or deactivation event, so a
// served payload is never older than the last plan transition plus the TTL.
type DeliveryCache interface {
	GetPayload(env, project string, consumer clientfeaturesdomain.ConsumerKind) ([]clientfeaturesdomain.ProjectedFeature, bool)
	SetPayload(env, project string, consumer clientfeaturesdomain.ConsumerKind, payload []clientfeaturesdomain.ProjectedFeature, ttl time.Duration)
	InvalidateEnvironment(env string)
}

type deliveryCache struct {
	mu       sync.Mutex
	payloads Cache[string, []clientfeaturesdomain.ProjectedFeature]
	byEnv    map[string][]string // environment -> keys stored for it
}

func NewDeliveryCache() DeliveryCache {
	return &deliveryCache{
		payloads: NewTTLCache[string, []clientfeaturesdomain.ProjectedFeature](),
		byEnv:    make(map[string][]string),
	}
}

func (c *deliveryCache) GetPayload(env, project string, consumer clientfeaturesdomain.ConsumerKind) ([]clientfeaturesdomain.ProjectedFeature, bool) {
	return c.payloads.Get(payloadKey(env, project, consumer))
}

func (c *deliveryCache) SetPayload(env, project string, consumer clientfeaturesdomain.ConsumerKind, payload []clientfeaturesdomain.ProjectedFeature, ttl time.Duration) {
	key := payloadKey(env, project, consumer)
	c.payloads.Set(key, payload, ttl)

	c.mu.Lock()
	c.byEnv[env] = appendUnique(c.byEnv[env], key)
	c.mu.Unlock()
}

func (c *deliveryCache) InvalidateEnvironment(env string) {
	c.mu.Lock()
	keys := c.byEnv[env]
	delete(c.byEnv, env)
	c.mu.Unlock()

	for _, key := range keys {
		c.payloads.Delete(key)
	}
}

func payloadKey(env, project string, consumer clientfeaturesdomain.ConsumerKind) string {
	return strings.Join([]string{env, project, string(consumer)}, "|")
}

func appendUnique(keys []string, key string) []string {
	for _, existing := range keys {
		if existing == key {
			return keys
		}
	}
	return append(keys, key)
}

var Module = fx.Module("cache",
	fx.Provide(NewDeliveryCache),
)
