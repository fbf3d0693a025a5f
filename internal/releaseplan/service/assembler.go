package service

import (
	"encoding/json"

	"github.com/smallbiznis/flagship/internal/releaseplan/domain"
)

// planAcc tracks find-or-create indexes while folding plan rows. Row
// ordering (milestone sort order, then strategy sort order) is a precondition
// supplied by the row source.
type planAcc struct {
	plan       domain.ReleasePlan
	milestones map[string]int            // milestone id -> index
	strategies map[string]map[string]int // milestone id -> strategy id -> index
}

// AssemblePlans folds flat plan join rows into release plan aggregates in
// plan arrival order. A row with a null milestone id contributes only the
// plan; a null strategy id contributes only the milestone.
func AssemblePlans(rows []domain.PlanRow) []domain.ReleasePlan {
	order := make([]string, 0, len(rows))
	byID := make(map[string]*planAcc, len(rows))

	for i := range rows {
		row := &rows[i]

		acc, ok := byID[row.PlanID]
		if !ok {
			acc = &planAcc{
				plan: domain.ReleasePlan{
					ID:                row.PlanID,
					Discriminator:     row.Discriminator,
					Name:              row.PlanName,
					Description:       row.PlanDescription,
					FeatureName:       row.FeatureName,
					Environment:       row.Environment,
					CreatedBy:         row.CreatedBy,
					CreatedAt:         row.CreatedAt,
					ActiveMilestoneID: row.ActiveMilestoneID,
					TemplateID:        row.TemplateID,
					Milestones:        []domain.Milestone{},
				},
				milestones: make(map[string]int),
				strategies: make(map[string]map[string]int),
			}
			byID[row.PlanID] = acc
			order = append(order, row.PlanID)
		}

		if row.MilestoneID == nil {
			continue
		}
		milestone := findOrCreateMilestone(acc, row)

		if row.StrategyID == nil {
			continue
		}
		strategy := findOrCreateStrategy(acc, *row.MilestoneID, milestone, row)

		if row.SegmentID == nil {
			continue
		}
		appendSegment(strategy, *row.SegmentID)
	}

	out := make([]domain.ReleasePlan, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id].plan)
	}
	return out
}

// AssemblePlan folds rows from a single-plan query; nil when the query
// returned no rows.
func AssemblePlan(rows []domain.PlanRow) *domain.ReleasePlan {
	plans := AssemblePlans(rows)
	if len(plans) == 0 {
		return nil
	}
	return &plans[0]
}

func findOrCreateMilestone(acc *planAcc, row *domain.PlanRow) *domain.Milestone {
	id := *row.MilestoneID
	if idx, ok := acc.milestones[id]; ok {
		return &acc.plan.Milestones[idx]
	}

	milestone := domain.Milestone{
		ID:         id,
		Strategies: []domain.MilestoneStrategy{},
	}
	if row.MilestoneName != nil {
		milestone.Name = *row.MilestoneName
	}
	if row.MilestoneSortOrder != nil {
		milestone.SortOrder = *row.MilestoneSortOrder
	}

	acc.milestones[id] = len(acc.plan.Milestones)
	acc.plan.Milestones = append(acc.plan.Milestones, milestone)
	return &acc.plan.Milestones[len(acc.plan.Milestones)-1]
}

func findOrCreateStrategy(acc *planAcc, milestoneID string, milestone *domain.Milestone, row *domain.PlanRow) *domain.MilestoneStrategy {
	byStrategy, ok := acc.strategies[milestoneID]
	if !ok {
		byStrategy = make(map[string]int)
		acc.strategies[milestoneID] = byStrategy
	}

	id := *row.StrategyID
	if idx, ok := byStrategy[id]; ok {
		return &milestone.Strategies[idx]
	}

	strategy := domain.MilestoneStrategy{
		ID:         id,
		Parameters: map[string]any{},
		Segments:   []string{},
	}
	if row.StrategySortOrder != nil {
		strategy.SortOrder = *row.StrategySortOrder
	}
	if row.StrategyTitle != nil {
		strategy.Title = *row.StrategyTitle
	}
	if row.StrategyName != nil {
		strategy.StrategyName = *row.StrategyName
	}
	if row.Parameters != nil {
		strategy.Parameters = map[string]any(row.Parameters)
	}
	if len(row.Constraints) > 0 {
		strategy.Constraints = json.RawMessage(row.Constraints)
	}
	if len(row.StrategyVariants) > 0 {
		strategy.Variants = json.RawMessage(row.StrategyVariants)
	}

	byStrategy[id] = len(milestone.Strategies)
	milestone.Strategies = append(milestone.Strategies, strategy)
	return &milestone.Strategies[len(milestone.Strategies)-1]
}

func appendSegment(strategy *domain.MilestoneStrategy, segmentID string) {
	for _, existing := range strategy.Segments {
		if existing == segmentID {
			return
		}
	}
	strategy.Segments = append(strategy.Segments, segmentID)
}
