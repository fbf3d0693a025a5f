package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// DeliveryConfig tunes the feature-delivery read path.
type DeliveryConfig struct {
	// ClientCacheTTL bounds how long a built client payload may be served
	// from cache before the store is consulted again.
	ClientCacheTTL time.Duration `mapstructure:"clientCacheTtl"`
	// InlineSegmentConstraints controls whether segment constraints are
	// copied into strategies or referenced by id in client payloads.
	InlineSegmentConstraints bool `mapstructure:"inlineSegmentConstraints"`
	// ActivationLockTTL bounds the per-plan lock held while a milestone
	// transition copies strategies.
	ActivationLockTTL time.Duration `mapstructure:"activationLockTtl"`
}

func DefaultDeliveryConfig() DeliveryConfig {
	return DeliveryConfig{
		ClientCacheTTL:           30 * time.Second,
		InlineSegmentConstraints: false,
		ActivationLockTTL:        15 * time.Second,
	}
}

// DeliveryConfigHolder serves the current delivery config and hot-reloads it
// when the config file changes on disk.
type DeliveryConfigHolder struct {
	current atomic.Value // holds DeliveryConfig
}

func NewDeliveryConfigHolder() (*DeliveryConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("delivery")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/flagship/config")
	v.AddConfigPath("/etc/flagship")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FLAGSHIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultDeliveryConfig()
		v.SetDefault("delivery.clientCacheTtl", defaults.ClientCacheTTL)
		v.SetDefault("delivery.inlineSegmentConstraints", defaults.InlineSegmentConstraints)
		v.SetDefault("delivery.activationLockTtl", defaults.ActivationLockTTL)
	}

	var cfg DeliveryConfig
	if err := v.UnmarshalKey("delivery", &cfg); err != nil {
		return nil, err
	}
	if err := validateDeliveryConfig(cfg); err != nil {
		return nil, err
	}

	holder := &DeliveryConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated DeliveryConfig
		if err := v.UnmarshalKey("delivery", &updated); err != nil {
			log.Printf("[delivery-config] reload failed: %v", err)
			return
		}
		if err := validateDeliveryConfig(updated); err != nil {
			log.Printf("[delivery-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[delivery-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticDeliveryConfigHolder wraps a fixed config with no file watching.
func NewStaticDeliveryConfigHolder(cfg DeliveryConfig) *DeliveryConfigHolder {
	holder := &DeliveryConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *DeliveryConfigHolder) Get() DeliveryConfig {
	return h.current.Load().(DeliveryConfig)
}

func validateDeliveryConfig(cfg DeliveryConfig) error {
	if cfg.ClientCacheTTL < 0 {
		return errors.New("delivery.clientCacheTtl cannot be negative")
	}
	if cfg.ActivationLockTTL <= 0 {
		return errors.New("delivery.activationLockTtl must be positive")
	}
	return nil
}
