package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ConsumerKind identifies the caller a feature payload is projected for.
// Each kind carries its own field-visibility rules.
type ConsumerKind string

const (
	ConsumerClient     ConsumerKind = "client"
	ConsumerAdmin      ConsumerKind = "admin"
	ConsumerPlayground ConsumerKind = "playground"
	ConsumerFrontend   ConsumerKind = "frontend"
)

func (k ConsumerKind) Valid() bool {
	switch k {
	case ConsumerClient, ConsumerAdmin, ConsumerPlayground, ConsumerFrontend:
		return true
	default:
		return false
	}
}

// Constraint is a single rule handed to the strategy evaluator. The shape is
// the contract boundary with the evaluation library and is passed through
// untouched.
type Constraint struct {
	ContextName     string   `json:"contextName"`
	Operator        string   `json:"operator"`
	Values          []string `json:"values,omitempty"`
	Value           string   `json:"value,omitempty"`
	CaseInsensitive bool     `json:"caseInsensitive,omitempty"`
	Inverted        bool     `json:"inverted,omitempty"`
}

// FeatureRow is one flat row of the delivery join. Strategy, segment, tag and
// dependency columns come from outer joins and may all be absent on a row.
type FeatureRow struct {
	Name           string         `gorm:"column:name"`
	Description    string         `gorm:"column:description"`
	Type           string         `gorm:"column:type"`
	Project        string         `gorm:"column:project"`
	Stale          bool           `gorm:"column:stale"`
	ImpressionData bool           `gorm:"column:impression_data"`
	Enabled        bool           `gorm:"column:enabled"`
	Environment    string         `gorm:"column:environment"`
	Variants       datatypes.JSON `gorm:"column:variants"`
	CreatedAt      *time.Time     `gorm:"column:created_at"`
	LastSeenAt     *time.Time     `gorm:"column:last_seen_at"`
	Favorite       bool           `gorm:"column:favorite"`

	StrategyID       *string           `gorm:"column:strategy_id"`
	StrategyName     *string           `gorm:"column:strategy_name"`
	StrategyTitle    *string           `gorm:"column:strategy_title"`
	StrategyDisabled *bool             `gorm:"column:strategy_disabled"`
	SortOrder        *int              `gorm:"column:sort_order"`
	MilestoneID      *string           `gorm:"column:milestone_id"`
	Parameters       datatypes.JSONMap `gorm:"column:parameters"`
	Constraints      datatypes.JSON    `gorm:"column:constraints"`
	StrategyVariants datatypes.JSON    `gorm:"column:strategy_variants"`

	SegmentID          *string        `gorm:"column:segment_id"`
	SegmentConstraints datatypes.JSON `gorm:"column:segment_constraints"`

	TagType  *string `gorm:"column:tag_type"`
	TagValue *string `gorm:"column:tag_value"`

	DependencyParent   *string        `gorm:"column:dependency_parent"`
	DependencyEnabled  *bool          `gorm:"column:dependency_enabled"`
	DependencyVariants datatypes.JSON `gorm:"column:dependency_variants"`
}

// Strategy is a live rollout rule accumulated from join rows. Identity is the
// strategy id; within one feature read an id appears exactly once.
type Strategy struct {
	ID          string
	Name        string
	Title       string
	Disabled    bool
	SortOrder   int
	MilestoneID string
	Parameters  map[string]any
	Constraints []Constraint
	Variants    json.RawMessage
	Segments    []string
}

// Tag is a (type, value) pair deduplicated per feature.
type Tag struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Dependency is an edge to a parent feature this feature depends on.
type Dependency struct {
	Feature  string   `json:"feature"`
	Enabled  bool     `json:"enabled"`
	Variants []string `json:"variants,omitempty"`
}

// Feature is the hierarchical aggregate built from flat join rows.
type Feature struct {
	Name           string
	Description    string
	Type           string
	Project        string
	Stale          bool
	ImpressionData bool
	Enabled        bool
	Environment    string
	Variants       json.RawMessage
	CreatedAt      *time.Time
	LastSeenAt     *time.Time
	Favorite       bool

	Strategies   []Strategy
	Tags         []Tag
	Dependencies []Dependency
}

// BuildOptions control how join rows are folded and projected.
type BuildOptions struct {
	Consumer                 ConsumerKind
	InlineSegmentConstraints bool
}

// ProjectedStrategy is the consumer-facing strategy shape. Identity fields
// are populated only for consumers whose redaction rules expose them.
type ProjectedStrategy struct {
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name"`
	Title       string            `json:"title,omitempty"`
	SortOrder   *int              `json:"sortOrder,omitempty"`
	MilestoneID string            `json:"milestoneId,omitempty"`
	Parameters  map[string]string `json:"parameters"`
	Constraints []Constraint      `json:"constraints"`
	Variants    json.RawMessage   `json:"variants,omitempty"`
	Segments    []string          `json:"segments,omitempty"`
}

// ProjectedFeature is the consumer-facing feature shape.
type ProjectedFeature struct {
	Name           string              `json:"name"`
	Description    string              `json:"description,omitempty"`
	Type           string              `json:"type"`
	Project        string              `json:"project"`
	Stale          bool                `json:"stale"`
	ImpressionData bool                `json:"impressionData"`
	Enabled        bool                `json:"enabled"`
	Variants       json.RawMessage     `json:"variants,omitempty"`
	CreatedAt      *time.Time          `json:"createdAt,omitempty"`
	LastSeenAt     *time.Time          `json:"lastSeenAt,omitempty"`
	Favorite       *bool               `json:"favorite,omitempty"`
	Strategies     []ProjectedStrategy `json:"strategies"`
	Tags           []Tag               `json:"tags,omitempty"`
	Dependencies   []Dependency        `json:"dependencies,omitempty"`
}
