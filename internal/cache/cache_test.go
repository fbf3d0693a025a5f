package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clientfeaturesdomain "github.com/smallbiznis/flagship/internal/clientfeatures/domain"
)

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("k", 42, 20*time.Millisecond)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	time.Sleep(30 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestTTLCacheDelete(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("k", 1, time.Minute)
	c.Delete("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestDeliveryCacheInvalidateEnvironment(t *testing.T) {
	c := NewDeliveryCache()
	payload := []clientfeaturesdomain.ProjectedFeature{{Name: "checkout"}}

	c.SetPayload("production", "default", clientfeaturesdomain.ConsumerClient, payload, time.Minute)
	c.SetPayload("production", "default", clientfeaturesdomain.ConsumerFrontend, payload, time.Minute)
	c.SetPayload("staging", "default", clientfeaturesdomain.ConsumerClient, payload, time.Minute)

	c.InvalidateEnvironment("production")

	_, ok := c.GetPayload("production", "default", clientfeaturesdomain.ConsumerClient)
	assert.False(t, ok)
	_, ok = c.GetPayload("production", "default", clientfeaturesdomain.ConsumerFrontend)
	assert.False(t, ok)

	got, ok := c.GetPayload("staging", "default", clientfeaturesdomain.ConsumerClient)
	require.True(t, ok)
	assert.Equal(t, payload, got)
}

func TestDeliveryCacheKeySeparation(t *testing.T) {
	c := NewDeliveryCache()

	c.SetPayload("production", "default", clientfeaturesdomain.ConsumerClient,
		[]clientfeaturesdomain.ProjectedFeature{{Name: "a"}}, time.Minute)

	_, ok := c.GetPayload("production", "other", clientfeaturesdomain.ConsumerClient)
	assert.False(t, ok)
	_, ok = c.GetPayload("production", "default", clientfeaturesdomain.ConsumerAdmin)
	assert.False(t, ok)
}
