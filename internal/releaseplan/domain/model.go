package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

const (
	DiscriminatorPlan     = "plan"
	DiscriminatorTemplate = "template"
)

// PlanRow is one flat row of the plan join. Milestone, strategy and segment
// columns come from outer joins; a null milestone id means the plan has no
// milestones yet, a null strategy id means the milestone has no strategies.
type PlanRow struct {
	PlanID            string    `gorm:"column:plan_id"`
	Discriminator     string    `gorm:"column:discriminator"`
	PlanName          string    `gorm:"column:plan_name"`
	PlanDescription   string    `gorm:"column:plan_description"`
	FeatureName       string    `gorm:"column:feature_name"`
	Environment       string    `gorm:"column:environment"`
	CreatedBy         string    `gorm:"column:created_by"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	ActiveMilestoneID *string   `gorm:"column:active_milestone_id"`
	TemplateID        *string   `gorm:"column:template_id"`

	MilestoneID        *string `gorm:"column:milestone_id"`
	MilestoneName      *string `gorm:"column:milestone_name"`
	MilestoneSortOrder *int    `gorm:"column:milestone_sort_order"`

	StrategyID        *string           `gorm:"column:strategy_id"`
	StrategySortOrder *int              `gorm:"column:strategy_sort_order"`
	StrategyTitle     *string           `gorm:"column:strategy_title"`
	StrategyName      *string           `gorm:"column:strategy_name"`
	Parameters        datatypes.JSONMap `gorm:"column:parameters"`
	Constraints       datatypes.JSON    `gorm:"column:constraints"`
	StrategyVariants  datatypes.JSON    `gorm:"column:strategy_variants"`

	SegmentID *string `gorm:"column:segment_id"`
}

// MilestoneStrategy is a strategy template scoped to a milestone. It is not
// evaluated until copied into the live store during activation.
type MilestoneStrategy struct {
	ID           string          `json:"id"`
	SortOrder    int             `json:"sortOrder"`
	Title        string          `json:"title,omitempty"`
	StrategyName string          `json:"strategyName"`
	Parameters   map[string]any  `json:"parameters"`
	Constraints  json.RawMessage `json:"constraints,omitempty"`
	Variants     json.RawMessage `json:"variants,omitempty"`
	Segments     []string        `json:"segments,omitempty"`
}

// Milestone is one stage of a release plan.
type Milestone struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	SortOrder  int                 `json:"sortOrder"`
	Strategies []MilestoneStrategy `json:"strategies"`
}

// ReleasePlan is the hierarchical aggregate assembled from plan join rows.
type ReleasePlan struct {
	ID                string      `json:"id"`
	Discriminator     string      `json:"discriminator"`
	Name              string      `json:"name"`
	Description       string      `json:"description,omitempty"`
	FeatureName       string      `json:"featureName"`
	Environment       string      `json:"environment"`
	CreatedBy         string      `json:"createdByUserId"`
	CreatedAt         time.Time   `json:"createdAt"`
	ActiveMilestoneID *string     `json:"activeMilestoneId,omitempty"`
	TemplateID        *string     `json:"releasePlanTemplateId,omitempty"`
	Milestones        []Milestone `json:"milestones"`
}

// MilestoneTransition reports the outcome of switching a plan's active
// milestone.
type MilestoneTransition struct {
	PlanID           string
	FromMilestoneID  *string
	ToMilestoneID    string
	DeactivatedCount int
	ActivatedCount   int
	SegmentsAttached int
}
