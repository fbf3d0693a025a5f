package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/flagship/internal/clientfeatures/domain"
)

func sampleFeature() domain.Feature {
	return domain.Feature{
		Name:     "checkout",
		Type:     "release",
		Project:  "default",
		Enabled:  true,
		Favorite: true,
		Strategies: []domain.Strategy{
			{ID: "b", Name: "flexibleRollout", Title: "second", SortOrder: 2, MilestoneID: "m-1"},
			{ID: "a", Name: "flexibleRollout", Title: "third", SortOrder: 2},
			{ID: "c", Name: "default", Title: "first", SortOrder: 1},
		},
		Tags:         []domain.Tag{{Type: "team", Value: "ops"}},
		Dependencies: []domain.Dependency{{Feature: "payments", Enabled: true}},
	}
}

func TestProjectFeatureSortsStrategiesDeterministically(t *testing.T) {
	projected := ProjectFeature(sampleFeature(), domain.ConsumerAdmin)

	require.Len(t, projected.Strategies, 3)
	// Sort order ascending; equal sort orders keep their arrival order.
	assert.Equal(t, "c", projected.Strategies[0].ID)
	assert.Equal(t, "b", projected.Strategies[1].ID)
	assert.Equal(t, "a", projected.Strategies[2].ID)
}

func TestProjectFeatureClientRedaction(t *testing.T) {
	projected := ProjectFeature(sampleFeature(), domain.ConsumerClient)

	require.Len(t, projected.Strategies, 3)
	for _, strategy := range projected.Strategies {
		assert.Empty(t, strategy.ID)
		assert.Empty(t, strategy.Title)
		assert.Empty(t, strategy.MilestoneID)
		assert.Nil(t, strategy.SortOrder)
	}
	assert.Empty(t, projected.Tags)
	assert.Nil(t, projected.Favorite)
	require.Len(t, projected.Dependencies, 1)
	assert.Equal(t, "payments", projected.Dependencies[0].Feature)
}

func TestProjectFeatureAdminExposure(t *testing.T) {
	projected := ProjectFeature(sampleFeature(), domain.ConsumerAdmin)

	assert.Equal(t, "c", projected.Strategies[0].ID)
	assert.Equal(t, "first", projected.Strategies[0].Title)
	require.NotNil(t, projected.Strategies[0].SortOrder)
	assert.Equal(t, 1, *projected.Strategies[0].SortOrder)
	assert.Equal(t, "m-1", projected.Strategies[1].MilestoneID)
	assert.Len(t, projected.Tags, 1)
	require.NotNil(t, projected.Favorite)
	assert.True(t, *projected.Favorite)
	assert.Empty(t, projected.Dependencies)
}

func TestProjectFeaturePlaygroundExposure(t *testing.T) {
	projected := ProjectFeature(sampleFeature(), domain.ConsumerPlayground)

	assert.Equal(t, "c", projected.Strategies[0].ID)
	assert.Equal(t, "first", projected.Strategies[0].Title)
	assert.Empty(t, projected.Tags)
	assert.Nil(t, projected.Favorite)
	assert.Len(t, projected.Dependencies, 1)
}

func TestProjectFeatureDoesNotMutateInput(t *testing.T) {
	feature := sampleFeature()
	_ = ProjectFeature(feature, domain.ConsumerAdmin)

	assert.Equal(t, "b", feature.Strategies[0].ID)
	assert.Equal(t, "a", feature.Strategies[1].ID)
	assert.Equal(t, "c", feature.Strategies[2].ID)
}

func TestRulesForPanicsOnUnknownConsumer(t *testing.T) {
	assert.Panics(t, func() {
		rulesFor(domain.ConsumerKind("edge"))
	})
}

func TestCoerceParameters(t *testing.T) {
	out := coerceParameters(map[string]any{
		"rollout":    float64(42),
		"percentage": 33.5,
		"stickiness": "default",
		"enabled":    true,
		"empty":      nil,
		"structured": map[string]any{"k": "v"},
	})

	assert.Equal(t, "42", out["rollout"])
	assert.Equal(t, "33.5", out["percentage"])
	assert.Equal(t, "default", out["stickiness"])
	assert.Equal(t, "true", out["enabled"])
	assert.Equal(t, "", out["empty"])
	assert.JSONEq(t, `{"k":"v"}`, out["structured"])
}
