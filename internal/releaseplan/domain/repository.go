package domain

import (
	"context"

	clientfeaturesdomain "github.com/smallbiznis/flagship/internal/clientfeatures/domain"
	"gorm.io/gorm"
)

// Repository reads plan join rows and mutates the live strategy store. All
// methods take the gorm handle so the service can pass a transaction.
type Repository interface {
	// PlanRows returns the join rows for one plan ordered by milestone sort
	// order then strategy sort order.
	PlanRows(ctx context.Context, db *gorm.DB, planID string) ([]PlanRow, error)
	// PlanRowsForFeature returns join rows for every plan governing the
	// feature in the environment, same ordering per plan.
	PlanRowsForFeature(ctx context.Context, db *gorm.DB, featureName, environment string) ([]PlanRow, error)

	GetPlan(ctx context.Context, db *gorm.DB, planID string) (*ReleasePlanRecord, error)
	GetMilestone(ctx context.Context, db *gorm.DB, milestoneID string) (*MilestoneRecord, error)
	// FeatureProject resolves the owning project of a feature; empty when
	// the feature is unknown.
	FeatureProject(ctx context.Context, db *gorm.DB, featureName string) (string, error)

	// SetActiveMilestone performs a compare-and-swap on the plan's active
	// milestone pointer. It reports whether the swap won; a lost swap means
	// a concurrent transition already moved the pointer.
	SetActiveMilestone(ctx context.Context, db *gorm.DB, planID string, expected, next *string) (bool, error)

	MilestoneStrategies(ctx context.Context, db *gorm.DB, milestoneID string) ([]MilestoneStrategyRecord, error)
	MilestoneStrategySegments(ctx context.Context, db *gorm.DB, milestoneID string) ([]MilestoneStrategySegmentRecord, error)

	// InsertLiveStrategies copies strategy rows into the live store,
	// silently skipping rows whose template is already live. It returns
	// only the rows actually inserted.
	InsertLiveStrategies(ctx context.Context, db *gorm.DB, records []clientfeaturesdomain.LiveStrategyRecord) ([]clientfeaturesdomain.LiveStrategyRecord, error)
	// InsertLiveSegments mirrors the conflict-skip copy for segment
	// attachments and returns the number of attachments actually inserted.
	InsertLiveSegments(ctx context.Context, db *gorm.DB, records []clientfeaturesdomain.LiveStrategySegmentRecord) (int, error)

	LiveStrategiesByMilestone(ctx context.Context, db *gorm.DB, milestoneID string) ([]clientfeaturesdomain.LiveStrategyRecord, error)
	DeleteLiveStrategies(ctx context.Context, db *gorm.DB, ids []string) error
	DeleteLiveSegmentsByStrategy(ctx context.Context, db *gorm.DB, strategyIDs []string) error
}
