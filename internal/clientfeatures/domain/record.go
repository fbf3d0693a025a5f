package domain

import (
	"time"

	"gorm.io/datatypes"
)

// FeatureRecord is the persisted feature definition.
type FeatureRecord struct {
	Name           string `gorm:"primaryKey;type:text"`
	Project        string `gorm:"type:text;not null;index"`
	Description    string `gorm:"type:text"`
	Type           string `gorm:"type:text;not null;default:release"`
	Stale          bool   `gorm:"not null;default:false"`
	ImpressionData bool   `gorm:"column:impression_data;not null;default:false"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (FeatureRecord) TableName() string { return "features" }

// FeatureEnvironmentRecord carries the per-environment toggle state.
type FeatureEnvironmentRecord struct {
	FeatureName string         `gorm:"column:feature_name;primaryKey;type:text"`
	Environment string         `gorm:"primaryKey;type:text"`
	Enabled     bool           `gorm:"not null;default:false"`
	Variants    datatypes.JSON `gorm:"type:jsonb"`
	LastSeenAt  *time.Time     `gorm:"column:last_seen_at"`
}

func (FeatureEnvironmentRecord) TableName() string { return "feature_environments" }

// LiveStrategyRecord is a strategy row actually evaluated by clients. Rows
// activated from a milestone carry the template's id as provenance; that
// column is the idempotency key for the activation copy.
type LiveStrategyRecord struct {
	ID           string `gorm:"primaryKey;type:text"`
	FeatureName  string `gorm:"column:feature_name;type:text;not null;index"`
	Project      string `gorm:"type:text;not null"`
	Environment  string `gorm:"type:text;not null;index"`
	StrategyName string `gorm:"column:strategy_name;type:text;not null"`
	Title        string `gorm:"type:text"`
	Disabled     bool   `gorm:"not null;default:false"`
	SortOrder    int    `gorm:"column:sort_order;not null;default:0"`

	Parameters  datatypes.JSONMap `gorm:"type:jsonb"`
	Constraints datatypes.JSON    `gorm:"type:jsonb"`
	Variants    datatypes.JSON    `gorm:"type:jsonb"`

	MilestoneID         *string `gorm:"column:milestone_id;type:text;index"`
	MilestoneStrategyID *string `gorm:"column:milestone_strategy_id;type:text;uniqueIndex"`

	CreatedBy string    `gorm:"column:created_by;type:text"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (LiveStrategyRecord) TableName() string { return "feature_strategies" }

// LiveStrategySegmentRecord attaches a segment to a live strategy.
type LiveStrategySegmentRecord struct {
	FeatureStrategyID string    `gorm:"column:feature_strategy_id;primaryKey;type:text"`
	SegmentID         string    `gorm:"column:segment_id;primaryKey;type:text"`
	CreatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (LiveStrategySegmentRecord) TableName() string { return "feature_strategy_segments" }

// SegmentRecord is a reusable constraint bundle.
type SegmentRecord struct {
	ID          string         `gorm:"primaryKey;type:text"`
	Name        string         `gorm:"type:text;not null"`
	Constraints datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (SegmentRecord) TableName() string { return "segments" }

// FeatureTagRecord links a (type, value) tag pair to a feature.
type FeatureTagRecord struct {
	FeatureName string `gorm:"column:feature_name;primaryKey;type:text"`
	TagType     string `gorm:"column:tag_type;primaryKey;type:text"`
	TagValue    string `gorm:"column:tag_value;primaryKey;type:text"`
}

func (FeatureTagRecord) TableName() string { return "feature_tags" }

// FeatureDependencyRecord is an edge to a parent feature.
type FeatureDependencyRecord struct {
	FeatureName string         `gorm:"column:feature_name;primaryKey;type:text"`
	Parent      string         `gorm:"primaryKey;type:text"`
	Enabled     bool           `gorm:"not null;default:true"`
	Variants    datatypes.JSON `gorm:"type:jsonb"`
}

func (FeatureDependencyRecord) TableName() string { return "feature_dependencies" }

// FeatureFavoriteRecord marks a feature as favorite for an admin user.
type FeatureFavoriteRecord struct {
	UserID      string `gorm:"column:user_id;primaryKey;type:text"`
	FeatureName string `gorm:"column:feature_name;primaryKey;type:text"`
}

func (FeatureFavoriteRecord) TableName() string { return "feature_favorites" }
