package domain

import (
	"context"
	"errors"

	clientfeaturesdomain "github.com/smallbiznis/flagship/internal/clientfeatures/domain"
)

type Service interface {
	// GetReleasePlan returns one assembled plan or ErrNotFound.
	GetReleasePlan(ctx context.Context, planID string) (*ReleasePlan, error)
	// GetReleasePlans returns every plan governing the feature in the
	// environment; no plans yields an empty slice.
	GetReleasePlans(ctx context.Context, featureName, environment string) ([]ReleasePlan, error)

	// Activate copies the configured active milestone's strategy templates
	// (and their segment attachments) into the live store. Idempotent:
	// already-live templates are skipped and only newly activated
	// strategies are returned. A plan with no active milestone is a no-op.
	Activate(ctx context.Context, planID, actingUser string) ([]clientfeaturesdomain.LiveStrategyRecord, error)
	// Deactivate removes the live strategies of the plan's active milestone
	// and returns the deleted rows for audit emission.
	Deactivate(ctx context.Context, planID string) ([]clientfeaturesdomain.LiveStrategyRecord, error)

	// ActivateSegments copies the milestone's segment attachments onto its
	// live strategy copies, skipping attachments already present.
	ActivateSegments(ctx context.Context, milestoneID string) (int, error)
	// InsertAllMilestoneSegmentsForPlan runs ActivateSegments for the
	// plan's active milestone.
	InsertAllMilestoneSegmentsForPlan(ctx context.Context, planID string) (int, error)

	// GetActiveStrategiesForPlan returns the currently-live strategies of
	// the plan's active milestone.
	GetActiveStrategiesForPlan(ctx context.Context, planID string) ([]clientfeaturesdomain.LiveStrategyRecord, error)

	// StartMilestone transitions the plan to the given milestone: CAS on
	// the active pointer, removal of the previous milestone's live rows and
	// activation of the new milestone's templates, all within one
	// transaction and one per-plan lock.
	StartMilestone(ctx context.Context, planID, milestoneID, actingUser string) (*MilestoneTransition, error)
}

var (
	ErrNotFound             = errors.New("not_found")
	ErrInvalidID            = errors.New("invalid_id")
	ErrMilestoneNotInPlan   = errors.New("milestone_not_in_plan")
	ErrConcurrentTransition = errors.New("concurrent_transition")
	ErrPlanLocked           = errors.New("plan_locked")
)
