package domain

import (
	"context"

	"gorm.io/gorm"
)

// RowQuery filters the delivery join. Environment is required; Project and
// FeatureName narrow the result when set.
type RowQuery struct {
	Environment string
	Project     string
	FeatureName string
	UserID      string // favorites are resolved per admin user
	IncludeTags bool
}

// Repository executes the delivery join and returns flat rows in arrival
// order. Segment rows are joined off the strategy, so a strategy's row always
// precedes its segment fan-out rows within a feature.
type Repository interface {
	FeatureRows(ctx context.Context, db *gorm.DB, q RowQuery) ([]FeatureRow, error)
}
