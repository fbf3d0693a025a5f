package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/smallbiznis/flagship/internal/cache"
	"github.com/smallbiznis/flagship/internal/clientfeatures/domain"
	"github.com/smallbiznis/flagship/internal/clientfeatures/repository"
	"github.com/smallbiznis/flagship/internal/config"
	"github.com/smallbiznis/flagship/internal/migration"
)

func setupFeatureService(t *testing.T, delivery config.DeliveryConfig) (domain.Service, *gorm.DB, cache.DeliveryCache) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	require.NoError(t, migration.AutoMigrate(db))

	deliveryCache := cache.NewDeliveryCache()
	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Repo:     repository.Provide(),
		Cache:    deliveryCache,
		Delivery: config.NewStaticDeliveryConfigHolder(delivery),
	})
	return svc, db, deliveryCache
}

func seedFeature(t *testing.T, db *gorm.DB) {
	t.Helper()

	require.NoError(t, db.Create(&domain.FeatureRecord{
		Name:    "checkout",
		Project: "default",
		Type:    "release",
	}).Error)
	require.NoError(t, db.Create(&domain.FeatureEnvironmentRecord{
		FeatureName: "checkout",
		Environment: "production",
		Enabled:     true,
	}).Error)
	require.NoError(t, db.Create(&domain.SegmentRecord{
		ID:          "seg-1",
		Name:        "beta users",
		Constraints: datatypes.JSON(`[{"contextName":"userId","operator":"IN","values":["7"]}]`),
	}).Error)
	require.NoError(t, db.Create(&domain.LiveStrategyRecord{
		ID:           "strat-1",
		FeatureName:  "checkout",
		Project:      "default",
		Environment:  "production",
		StrategyName: "flexibleRollout",
		Title:        "ramp",
		SortOrder:    1,
		Parameters:   datatypes.JSONMap{"rollout": "25"},
	}).Error)
	require.NoError(t, db.Create(&domain.LiveStrategySegmentRecord{
		FeatureStrategyID: "strat-1",
		SegmentID:         "seg-1",
	}).Error)
	require.NoError(t, db.Create(&domain.FeatureTagRecord{
		FeatureName: "checkout",
		TagType:     "team",
		TagValue:    "ops",
	}).Error)
	require.NoError(t, db.Create(&domain.FeatureRecord{
		Name:    "payments",
		Project: "default",
		Type:    "release",
	}).Error)
	require.NoError(t, db.Create(&domain.FeatureEnvironmentRecord{
		FeatureName: "payments",
		Environment: "production",
		Enabled:     true,
	}).Error)
	require.NoError(t, db.Create(&domain.FeatureDependencyRecord{
		FeatureName: "checkout",
		Parent:      "payments",
		Enabled:     true,
	}).Error)
	require.NoError(t, db.Create(&domain.FeatureFavoriteRecord{
		UserID:      "user-1",
		FeatureName: "checkout",
	}).Error)
}

func TestGetFeaturesClientPayload(t *testing.T) {
	svc, db, _ := setupFeatureService(t, config.DefaultDeliveryConfig())
	seedFeature(t, db)

	features, err := svc.GetFeatures(context.Background(), domain.Query{
		Environment: "production",
		Consumer:    domain.ConsumerClient,
	})
	require.NoError(t, err)
	require.Len(t, features, 2)

	checkout := features[0]
	assert.Equal(t, "checkout", checkout.Name)
	assert.True(t, checkout.Enabled)
	require.Len(t, checkout.Strategies, 1)
	assert.Empty(t, checkout.Strategies[0].ID)
	assert.Empty(t, checkout.Strategies[0].Title)
	assert.Equal(t, "25", checkout.Strategies[0].Parameters["rollout"])
	assert.Equal(t, []string{"seg-1"}, checkout.Strategies[0].Segments)
	assert.Empty(t, checkout.Tags)
	assert.Nil(t, checkout.Favorite)
	require.Len(t, checkout.Dependencies, 1)
	assert.Equal(t, "payments", checkout.Dependencies[0].Feature)
}

func TestGetFeaturesAdminExposesIdentityAndFavorite(t *testing.T) {
	svc, db, _ := setupFeatureService(t, config.DefaultDeliveryConfig())
	seedFeature(t, db)

	features, err := svc.GetFeatures(context.Background(), domain.Query{
		Environment: "production",
		UserID:      "user-1",
		Consumer:    domain.ConsumerAdmin,
	})
	require.NoError(t, err)
	require.Len(t, features, 2)

	checkout := features[0]
	require.Len(t, checkout.Strategies, 1)
	assert.Equal(t, "strat-1", checkout.Strategies[0].ID)
	assert.Equal(t, "ramp", checkout.Strategies[0].Title)
	assert.Len(t, checkout.Tags, 1)
	require.NotNil(t, checkout.Favorite)
	assert.True(t, *checkout.Favorite)
	assert.Empty(t, checkout.Dependencies)

	payments := features[1]
	require.NotNil(t, payments.Favorite)
	assert.False(t, *payments.Favorite)
}

func TestGetFeaturesInlineSegmentConstraints(t *testing.T) {
	delivery := config.DefaultDeliveryConfig()
	delivery.InlineSegmentConstraints = true
	svc, db, _ := setupFeatureService(t, delivery)
	seedFeature(t, db)

	features, err := svc.GetFeatures(context.Background(), domain.Query{
		Environment: "production",
		Consumer:    domain.ConsumerClient,
	})
	require.NoError(t, err)
	require.Len(t, features, 2)
	require.Len(t, features[0].Strategies, 1)
	assert.Empty(t, features[0].Strategies[0].Segments)
	require.Len(t, features[0].Strategies[0].Constraints, 1)
	assert.Equal(t, "userId", features[0].Strategies[0].Constraints[0].ContextName)
}

func TestGetFeaturesValidatesQuery(t *testing.T) {
	svc, _, _ := setupFeatureService(t, config.DefaultDeliveryConfig())

	_, err := svc.GetFeatures(context.Background(), domain.Query{Consumer: domain.ConsumerClient})
	assert.ErrorIs(t, err, domain.ErrInvalidEnvironment)

	_, err = svc.GetFeatures(context.Background(), domain.Query{Environment: "production"})
	assert.ErrorIs(t, err, domain.ErrInvalidConsumer)
}

func TestGetFeatureNotFound(t *testing.T) {
	svc, db, _ := setupFeatureService(t, config.DefaultDeliveryConfig())
	seedFeature(t, db)

	_, err := svc.GetFeature(context.Background(), domain.Query{
		Environment: "production",
		FeatureName: "missing",
		Consumer:    domain.ConsumerClient,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetFeature(context.Background(), domain.Query{
		Environment: "production",
		Consumer:    domain.ConsumerClient,
	})
	assert.ErrorIs(t, err, domain.ErrMissingFeatureName)
}

func TestGetFeaturesServesClientReadsFromCache(t *testing.T) {
	svc, db, deliveryCache := setupFeatureService(t, config.DefaultDeliveryConfig())
	seedFeature(t, db)

	query := domain.Query{Environment: "production", Consumer: domain.ConsumerClient}

	first, err := svc.GetFeatures(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// A fresh row added after the payload was cached stays invisible until
	// the cache entry expires or is invalidated.
	require.NoError(t, db.Create(&domain.FeatureRecord{
		Name:    "search",
		Project: "default",
		Type:    "release",
	}).Error)
	require.NoError(t, db.Create(&domain.FeatureEnvironmentRecord{
		FeatureName: "search",
		Environment: "production",
		Enabled:     true,
	}).Error)

	cached, err := svc.GetFeatures(context.Background(), query)
	require.NoError(t, err)
	assert.Len(t, cached, 2)

	deliveryCache.InvalidateEnvironment("production")

	refreshed, err := svc.GetFeatures(context.Background(), query)
	require.NoError(t, err)
	assert.Len(t, refreshed, 3)
}

func TestGetFeaturesAdminBypassesCache(t *testing.T) {
	svc, db, deliveryCache := setupFeatureService(t, config.DefaultDeliveryConfig())
	seedFeature(t, db)

	deliveryCache.SetPayload("production", "", domain.ConsumerAdmin,
		[]domain.ProjectedFeature{{Name: "stale"}}, time.Minute)

	features, err := svc.GetFeatures(context.Background(), domain.Query{
		Environment: "production",
		Consumer:    domain.ConsumerAdmin,
	})
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, "checkout", features[0].Name)
}
