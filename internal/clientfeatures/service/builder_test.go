package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/smallbiznis/flagship/internal/clientfeatures/domain"
)

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }

func baseRow(feature string) domain.FeatureRow {
	return domain.FeatureRow{
		Name:        feature,
		Project:     "default",
		Type:        "release",
		Enabled:     true,
		Environment: "production",
	}
}

func strategyRow(feature, strategyID string) domain.FeatureRow {
	row := baseRow(feature)
	row.StrategyID = strPtr(strategyID)
	row.StrategyName = strPtr("flexibleRollout")
	row.SortOrder = intPtr(0)
	return row
}

func TestBuildFeaturesEmptyInput(t *testing.T) {
	features := BuildFeatures(nil, domain.BuildOptions{Consumer: domain.ConsumerClient}, zap.NewNop())
	assert.Empty(t, features)
}

func TestBuildFeaturesDeduplicatesStrategyFanOut(t *testing.T) {
	// One strategy joined against two segments and two tags fans out into
	// four rows; the strategy must still appear exactly once.
	rows := []domain.FeatureRow{}
	for _, seg := range []string{"seg-1", "seg-2"} {
		for _, tag := range []string{"ops", "beta"} {
			row := strategyRow("checkout", "strat-1")
			row.SegmentID = strPtr(seg)
			row.TagType = strPtr("team")
			row.TagValue = strPtr(tag)
			rows = append(rows, row)
		}
	}

	features := BuildFeatures(rows, domain.BuildOptions{Consumer: domain.ConsumerClient}, zap.NewNop())
	require.Len(t, features, 1)
	require.Len(t, features[0].Strategies, 1)
	assert.ElementsMatch(t, []string{"seg-1", "seg-2"}, features[0].Strategies[0].Segments)
	assert.Len(t, features[0].Tags, 2)
}

func TestBuildFeaturesExcludesDisabledStrategies(t *testing.T) {
	disabled := strategyRow("checkout", "strat-off")
	disabled.StrategyDisabled = boolPtr(true)

	// Segment fan-out of the disabled strategy must not resurrect it.
	disabledSegment := strategyRow("checkout", "strat-off")
	disabledSegment.StrategyDisabled = boolPtr(true)
	disabledSegment.SegmentID = strPtr("seg-1")

	enabled := strategyRow("checkout", "strat-on")

	features := BuildFeatures(
		[]domain.FeatureRow{disabled, disabledSegment, enabled},
		domain.BuildOptions{Consumer: domain.ConsumerClient},
		zap.NewNop(),
	)
	require.Len(t, features, 1)
	require.Len(t, features[0].Strategies, 1)
	assert.Equal(t, "strat-on", features[0].Strategies[0].ID)
}

func TestBuildFeaturesScalarOverwriteIsIdempotent(t *testing.T) {
	first := strategyRow("checkout", "strat-1")
	second := strategyRow("checkout", "strat-2")

	features := BuildFeatures(
		[]domain.FeatureRow{first, second},
		domain.BuildOptions{Consumer: domain.ConsumerClient},
		zap.NewNop(),
	)
	require.Len(t, features, 1)
	assert.Equal(t, "checkout", features[0].Name)
	assert.True(t, features[0].Enabled)
	assert.Len(t, features[0].Strategies, 2)
}

func TestBuildFeaturesInlineSegmentConstraints(t *testing.T) {
	row := strategyRow("checkout", "strat-1")
	row.SegmentID = strPtr("seg-1")
	row.SegmentConstraints = datatypes.JSON(`[{"contextName":"userId","operator":"IN","values":["7"]}]`)

	inline := BuildFeatures(
		[]domain.FeatureRow{row},
		domain.BuildOptions{Consumer: domain.ConsumerClient, InlineSegmentConstraints: true},
		zap.NewNop(),
	)
	require.Len(t, inline, 1)
	require.Len(t, inline[0].Strategies, 1)
	assert.Empty(t, inline[0].Strategies[0].Segments)
	require.Len(t, inline[0].Strategies[0].Constraints, 1)
	assert.Equal(t, "userId", inline[0].Strategies[0].Constraints[0].ContextName)

	referenced := BuildFeatures(
		[]domain.FeatureRow{row},
		domain.BuildOptions{Consumer: domain.ConsumerClient},
		zap.NewNop(),
	)
	require.Len(t, referenced, 1)
	assert.Equal(t, []string{"seg-1"}, referenced[0].Strategies[0].Segments)
	assert.Empty(t, referenced[0].Strategies[0].Constraints)
}

func TestBuildFeaturesInlineSegmentFanOutAppendsOnce(t *testing.T) {
	// Two dependency rows fan the same (strategy, segment) pair out twice;
	// the segment's constraints must be inlined exactly once.
	rows := []domain.FeatureRow{}
	for _, parent := range []string{"payments", "search"} {
		row := strategyRow("checkout", "strat-1")
		row.SegmentID = strPtr("seg-1")
		row.SegmentConstraints = datatypes.JSON(`[{"contextName":"userId","operator":"IN","values":["7"]}]`)
		row.DependencyParent = strPtr(parent)
		row.DependencyEnabled = boolPtr(true)
		rows = append(rows, row)
	}

	inline := BuildFeatures(
		rows,
		domain.BuildOptions{Consumer: domain.ConsumerClient, InlineSegmentConstraints: true},
		zap.NewNop(),
	)
	require.Len(t, inline, 1)
	require.Len(t, inline[0].Strategies, 1)
	assert.Len(t, inline[0].Strategies[0].Constraints, 1)
	assert.Len(t, inline[0].Dependencies, 2)

	// Same rows in reference mode list the segment once as well.
	referenced := BuildFeatures(
		rows,
		domain.BuildOptions{Consumer: domain.ConsumerClient},
		zap.NewNop(),
	)
	require.Len(t, referenced, 1)
	assert.Equal(t, []string{"seg-1"}, referenced[0].Strategies[0].Segments)
}

func TestBuildFeaturesSkipsMalformedConstraints(t *testing.T) {
	row := strategyRow("checkout", "strat-1")
	row.Constraints = datatypes.JSON(`{"not":"an array"}`)

	features := BuildFeatures(
		[]domain.FeatureRow{row},
		domain.BuildOptions{Consumer: domain.ConsumerClient},
		zap.NewNop(),
	)
	require.Len(t, features, 1)
	require.Len(t, features[0].Strategies, 1)
	assert.Empty(t, features[0].Strategies[0].Constraints)
}

func TestBuildFeaturesDependencies(t *testing.T) {
	withDep := strategyRow("checkout", "strat-1")
	withDep.DependencyParent = strPtr("payments")
	withDep.DependencyEnabled = boolPtr(true)
	withDep.DependencyVariants = datatypes.JSON(`["blue"]`)

	duplicate := withDep

	features := BuildFeatures(
		[]domain.FeatureRow{withDep, duplicate},
		domain.BuildOptions{Consumer: domain.ConsumerClient},
		zap.NewNop(),
	)
	require.Len(t, features, 1)
	require.Len(t, features[0].Dependencies, 1)
	assert.Equal(t, "payments", features[0].Dependencies[0].Feature)
	assert.Equal(t, []string{"blue"}, features[0].Dependencies[0].Variants)

	// Admin reads skip dependency folding entirely.
	adminFeatures := BuildFeatures(
		[]domain.FeatureRow{withDep},
		domain.BuildOptions{Consumer: domain.ConsumerAdmin},
		zap.NewNop(),
	)
	require.Len(t, adminFeatures, 1)
	assert.Empty(t, adminFeatures[0].Dependencies)
}

func TestBuildFeaturesPreservesRowArrivalOrder(t *testing.T) {
	rows := []domain.FeatureRow{
		baseRow("beta"),
		baseRow("alpha"),
		baseRow("beta"),
	}

	features := BuildFeatures(rows, domain.BuildOptions{Consumer: domain.ConsumerClient}, zap.NewNop())
	require.Len(t, features, 2)
	assert.Equal(t, "beta", features[0].Name)
	assert.Equal(t, "alpha", features[1].Name)
}
