package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/flagship/internal/releaseplan/domain"
)

func planRow(planID string) domain.PlanRow {
	return domain.PlanRow{
		PlanID:        planID,
		Discriminator: domain.DiscriminatorPlan,
		PlanName:      "gradual rollout",
		FeatureName:   "checkout",
		Environment:   "production",
	}
}

func milestoneRow(planID, milestoneID string, sortOrder int) domain.PlanRow {
	row := planRow(planID)
	row.MilestoneID = &milestoneID
	name := "stage " + milestoneID
	row.MilestoneName = &name
	row.MilestoneSortOrder = &sortOrder
	return row
}

func strategyPlanRow(planID, milestoneID, strategyID string) domain.PlanRow {
	row := milestoneRow(planID, milestoneID, 0)
	row.StrategyID = &strategyID
	name := "flexibleRollout"
	row.StrategyName = &name
	return row
}

func TestAssemblePlansEmptyInput(t *testing.T) {
	assert.Empty(t, AssemblePlans(nil))
	assert.Nil(t, AssemblePlan(nil))
}

func TestAssemblePlanWithoutMilestones(t *testing.T) {
	plan := AssemblePlan([]domain.PlanRow{planRow("plan-1")})

	require.NotNil(t, plan)
	assert.Equal(t, "plan-1", plan.ID)
	assert.Equal(t, domain.DiscriminatorPlan, plan.Discriminator)
	assert.Empty(t, plan.Milestones)
}

func TestAssemblePlanMilestoneWithoutStrategies(t *testing.T) {
	plan := AssemblePlan([]domain.PlanRow{milestoneRow("plan-1", "m-1", 0)})

	require.NotNil(t, plan)
	require.Len(t, plan.Milestones, 1)
	assert.Equal(t, "m-1", plan.Milestones[0].ID)
	assert.Empty(t, plan.Milestones[0].Strategies)
}

func TestAssemblePlansFoldsSegmentFanOut(t *testing.T) {
	seg1, seg2 := "seg-1", "seg-2"

	first := strategyPlanRow("plan-1", "m-1", "strat-1")
	first.SegmentID = &seg1
	second := strategyPlanRow("plan-1", "m-1", "strat-1")
	second.SegmentID = &seg2
	duplicate := strategyPlanRow("plan-1", "m-1", "strat-1")
	duplicate.SegmentID = &seg1

	plans := AssemblePlans([]domain.PlanRow{first, second, duplicate})

	require.Len(t, plans, 1)
	require.Len(t, plans[0].Milestones, 1)
	require.Len(t, plans[0].Milestones[0].Strategies, 1)
	assert.Equal(t, []string{"seg-1", "seg-2"}, plans[0].Milestones[0].Strategies[0].Segments)
}

func TestAssemblePlansSeparatesMilestones(t *testing.T) {
	rows := []domain.PlanRow{
		strategyPlanRow("plan-1", "m-1", "strat-1"),
		strategyPlanRow("plan-1", "m-1", "strat-2"),
		strategyPlanRow("plan-1", "m-2", "strat-3"),
	}

	plan := AssemblePlan(rows)

	require.NotNil(t, plan)
	require.Len(t, plan.Milestones, 2)
	assert.Len(t, plan.Milestones[0].Strategies, 2)
	assert.Len(t, plan.Milestones[1].Strategies, 1)
	assert.Equal(t, "strat-3", plan.Milestones[1].Strategies[0].ID)
}

func TestAssemblePlansMultiplePlansKeepArrivalOrder(t *testing.T) {
	rows := []domain.PlanRow{
		strategyPlanRow("plan-b", "m-1", "strat-1"),
		strategyPlanRow("plan-a", "m-2", "strat-2"),
		strategyPlanRow("plan-b", "m-1", "strat-3"),
	}

	plans := AssemblePlans(rows)

	require.Len(t, plans, 2)
	assert.Equal(t, "plan-b", plans[0].ID)
	assert.Equal(t, "plan-a", plans[1].ID)
	assert.Len(t, plans[0].Milestones[0].Strategies, 2)
}
