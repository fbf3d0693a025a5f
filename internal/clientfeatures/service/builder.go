package service

import (
	"encoding/json"

	"github.com/smallbiznis/flagship/internal/clientfeatures/domain"
	"go.uber.org/zap"
)

// featureAcc is a partially-built aggregate plus the identity indexes used to
// deduplicate join fan-out.
type featureAcc struct {
	feature    domain.Feature
	strategies map[string]int      // strategy id -> index into feature.Strategies
	segments   map[string]struct{} // strategy id + "\x00" + segment id
	tags       map[domain.Tag]struct{}
	deps       map[string]struct{} // parent feature name
}

// BuildFeatures folds flat join rows into feature aggregates in row arrival
// order. A strategy id appears at most once per feature no matter how many
// segment/tag/dependency rows fan out from it; disabled strategies are
// excluded entirely.
func BuildFeatures(rows []domain.FeatureRow, opts domain.BuildOptions, log *zap.Logger) []domain.Feature {
	order := make([]string, 0, len(rows))
	byName := make(map[string]*featureAcc, len(rows))

	for i := range rows {
		row := &rows[i]

		acc, ok := byName[row.Name]
		if !ok {
			acc = &featureAcc{
				feature: domain.Feature{
					Strategies:   []domain.Strategy{},
					Tags:         []domain.Tag{},
					Dependencies: []domain.Dependency{},
				},
				strategies: make(map[string]int),
				segments:   make(map[string]struct{}),
				tags:       make(map[domain.Tag]struct{}),
				deps:       make(map[string]struct{}),
			}
			byName[row.Name] = acc
			order = append(order, row.Name)
		}

		// Scalar columns are constant across a feature's rows, so
		// overwriting on every row is idempotent.
		acc.feature.Name = row.Name
		acc.feature.Description = row.Description
		acc.feature.Type = row.Type
		acc.feature.Project = row.Project
		acc.feature.Stale = row.Stale
		acc.feature.ImpressionData = row.ImpressionData
		acc.feature.Enabled = row.Enabled
		acc.feature.Environment = row.Environment
		acc.feature.CreatedAt = row.CreatedAt
		acc.feature.LastSeenAt = row.LastSeenAt
		acc.feature.Favorite = row.Favorite
		if len(row.Variants) > 0 {
			acc.feature.Variants = json.RawMessage(row.Variants)
		}

		foldStrategy(acc, row, log)
		foldSegment(acc, row, opts, log)
		foldTag(acc, row)
		foldDependency(acc, row, opts)
	}

	out := make([]domain.Feature, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name].feature)
	}
	return out
}

func foldStrategy(acc *featureAcc, row *domain.FeatureRow, log *zap.Logger) {
	if row.StrategyID == nil {
		return
	}
	id := *row.StrategyID
	if _, seen := acc.strategies[id]; seen {
		return
	}
	if row.StrategyDisabled != nil && *row.StrategyDisabled {
		return
	}

	strategy := domain.Strategy{
		ID:          id,
		Parameters:  map[string]any{},
		Constraints: []domain.Constraint{},
		Segments:    []string{},
	}
	if row.StrategyName != nil {
		strategy.Name = *row.StrategyName
	}
	if row.StrategyTitle != nil {
		strategy.Title = *row.StrategyTitle
	}
	if row.SortOrder != nil {
		strategy.SortOrder = *row.SortOrder
	}
	if row.MilestoneID != nil {
		strategy.MilestoneID = *row.MilestoneID
	}
	if row.Parameters != nil {
		strategy.Parameters = map[string]any(row.Parameters)
	}
	if len(row.Constraints) > 0 {
		if err := json.Unmarshal(row.Constraints, &strategy.Constraints); err != nil {
			log.Error("malformed strategy constraints",
				zap.String("feature", row.Name),
				zap.String("strategy_id", id),
				zap.Error(err),
			)
			strategy.Constraints = []domain.Constraint{}
		}
	}
	if len(row.StrategyVariants) > 0 {
		strategy.Variants = json.RawMessage(row.StrategyVariants)
	}

	acc.strategies[id] = len(acc.feature.Strategies)
	acc.feature.Strategies = append(acc.feature.Strategies, strategy)
}

func foldSegment(acc *featureAcc, row *domain.FeatureRow, opts domain.BuildOptions, log *zap.Logger) {
	if row.SegmentID == nil {
		return
	}
	if row.StrategyID == nil {
		// Segments are joined off the strategy; a segment without a
		// strategy id violates the row shape.
		log.Error("segment row without strategy id",
			zap.String("feature", row.Name),
			zap.String("segment_id", *row.SegmentID),
		)
		return
	}

	idx, ok := acc.strategies[*row.StrategyID]
	if !ok {
		// Fan-out row of a disabled (excluded) strategy.
		return
	}
	strategy := &acc.feature.Strategies[idx]

	// Tag/dependency fan-out repeats the same (strategy, segment) pair
	// across rows; fold each pair once.
	pair := *row.StrategyID + "\x00" + *row.SegmentID
	if _, seen := acc.segments[pair]; seen {
		return
	}
	acc.segments[pair] = struct{}{}

	if opts.InlineSegmentConstraints {
		var constraints []domain.Constraint
		if len(row.SegmentConstraints) > 0 {
			if err := json.Unmarshal(row.SegmentConstraints, &constraints); err != nil {
				log.Error("malformed segment constraints",
					zap.String("feature", row.Name),
					zap.String("segment_id", *row.SegmentID),
					zap.Error(err),
				)
				return
			}
		}
		strategy.Constraints = append(strategy.Constraints, constraints...)
		return
	}

	strategy.Segments = append(strategy.Segments, *row.SegmentID)
}

func foldTag(acc *featureAcc, row *domain.FeatureRow) {
	if row.TagType == nil || row.TagValue == nil {
		return
	}
	tag := domain.Tag{Type: *row.TagType, Value: *row.TagValue}
	if _, seen := acc.tags[tag]; seen {
		return
	}
	acc.tags[tag] = struct{}{}
	acc.feature.Tags = append(acc.feature.Tags, tag)
}

func foldDependency(acc *featureAcc, row *domain.FeatureRow, opts domain.BuildOptions) {
	if opts.Consumer == domain.ConsumerAdmin {
		return
	}
	if row.DependencyParent == nil {
		return
	}
	parent := *row.DependencyParent
	if _, seen := acc.deps[parent]; seen {
		return
	}

	dep := domain.Dependency{Feature: parent}
	if row.DependencyEnabled != nil {
		dep.Enabled = *row.DependencyEnabled
	}
	if dep.Enabled && len(row.DependencyVariants) > 0 {
		_ = json.Unmarshal(row.DependencyVariants, &dep.Variants)
	}

	acc.deps[parent] = struct{}{}
	acc.feature.Dependencies = append(acc.feature.Dependencies, dep)
}
