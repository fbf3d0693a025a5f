package domain

import (
	"time"

	"gorm.io/datatypes"
)

// ReleasePlanRecord is the persisted plan. Templates share the table and are
// told apart by the discriminator.
type ReleasePlanRecord struct {
	ID            string `gorm:"primaryKey;type:text"`
	Discriminator string `gorm:"type:text;not null;default:plan"`
	Name          string `gorm:"type:text;not null"`
	Description   string `gorm:"type:text"`
	FeatureName   string `gorm:"column:feature_name;type:text;index:ix_release_plans_feature_env,priority:1"`
	Environment   string `gorm:"type:text;index:ix_release_plans_feature_env,priority:2"`

	ActiveMilestoneID *string `gorm:"column:active_milestone_id;type:text"`
	TemplateID        *string `gorm:"column:template_id;type:text"`

	CreatedBy string    `gorm:"column:created_by;type:text"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ReleasePlanRecord) TableName() string { return "release_plans" }

// MilestoneRecord is one persisted stage of a plan.
type MilestoneRecord struct {
	ID            string `gorm:"primaryKey;type:text"`
	ReleasePlanID string `gorm:"column:release_plan_id;type:text;not null;index"`
	Name          string `gorm:"type:text;not null"`
	SortOrder     int    `gorm:"column:sort_order;not null;default:0"`
}

func (MilestoneRecord) TableName() string { return "milestones" }

// MilestoneStrategyRecord is a strategy template owned by a milestone.
type MilestoneStrategyRecord struct {
	ID           string `gorm:"primaryKey;type:text"`
	MilestoneID  string `gorm:"column:milestone_id;type:text;not null;index"`
	SortOrder    int    `gorm:"column:sort_order;not null;default:0"`
	Title        string `gorm:"type:text"`
	StrategyName string `gorm:"column:strategy_name;type:text;not null"`

	Parameters  datatypes.JSONMap `gorm:"type:jsonb"`
	Constraints datatypes.JSON    `gorm:"type:jsonb"`
	Variants    datatypes.JSON    `gorm:"type:jsonb"`
}

func (MilestoneStrategyRecord) TableName() string { return "milestone_strategies" }

// MilestoneStrategySegmentRecord attaches a segment to a strategy template.
type MilestoneStrategySegmentRecord struct {
	MilestoneStrategyID string `gorm:"column:milestone_strategy_id;primaryKey;type:text"`
	SegmentID           string `gorm:"column:segment_id;primaryKey;type:text"`
}

func (MilestoneStrategySegmentRecord) TableName() string { return "milestone_strategy_segments" }
