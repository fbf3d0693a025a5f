package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/flagship/internal/cache"
	clientfeaturesdomain "github.com/smallbiznis/flagship/internal/clientfeatures/domain"
	"github.com/smallbiznis/flagship/internal/clock"
	"github.com/smallbiznis/flagship/internal/config"
	"github.com/smallbiznis/flagship/internal/locker"
	"github.com/smallbiznis/flagship/internal/observability/metrics"
	"github.com/smallbiznis/flagship/internal/releaseplan/domain"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Locker   *locker.Locker `optional:"true"`
	Cache    cache.DeliveryCache
	Delivery *config.DeliveryConfigHolder
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	locker   *locker.Locker
	cache    cache.DeliveryCache
	delivery *config.DeliveryConfigHolder
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("releaseplan.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		locker:   p.Locker,
		cache:    p.Cache,
		delivery: p.Delivery,
		metrics:  p.Metrics,
	}
}

func (s *Service) GetReleasePlan(ctx context.Context, planID string) (*domain.ReleasePlan, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return nil, domain.ErrInvalidID
	}

	rows, err := s.repo.PlanRows(ctx, s.db, planID)
	if err != nil {
		return nil, err
	}

	plan := AssemblePlan(rows)
	if plan == nil {
		return nil, domain.ErrNotFound
	}
	return plan, nil
}

func (s *Service) GetReleasePlans(ctx context.Context, featureName, environment string) ([]domain.ReleasePlan, error) {
	featureName = strings.TrimSpace(featureName)
	environment = strings.TrimSpace(environment)
	if featureName == "" || environment == "" {
		return nil, domain.ErrInvalidID
	}

	rows, err := s.repo.PlanRowsForFeature(ctx, s.db, featureName, environment)
	if err != nil {
		return nil, err
	}

	plans := AssemblePlans(rows)
	if plans == nil {
		plans = []domain.ReleasePlan{}
	}
	return plans, nil
}

func (s *Service) Activate(ctx context.Context, planID, actingUser string) ([]clientfeaturesdomain.LiveStrategyRecord, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return nil, domain.ErrInvalidID
	}

	plan, err := s.repo.GetPlan(ctx, s.db, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil || plan.ActiveMilestoneID == nil {
		return nil, nil
	}

	release, err := s.acquirePlanLock(ctx, planID)
	if err != nil {
		return nil, err
	}
	defer release()

	var inserted []clientfeaturesdomain.LiveStrategyRecord
	var attached int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		inserted, attached, txErr = s.activateMilestone(ctx, tx, plan, *plan.ActiveMilestoneID, actingUser)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateEnvironment(plan.Environment)
	s.metrics.RecordMilestoneActivation(ctx, plan.Environment)

	s.log.Info("milestone activated",
		zap.String("plan_id", planID),
		zap.String("milestone_id", *plan.ActiveMilestoneID),
		zap.Int("strategies_activated", len(inserted)),
		zap.Int("segments_attached", attached),
	)
	return inserted, nil
}

func (s *Service) Deactivate(ctx context.Context, planID string) ([]clientfeaturesdomain.LiveStrategyRecord, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return nil, domain.ErrInvalidID
	}

	plan, err := s.repo.GetPlan(ctx, s.db, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil || plan.ActiveMilestoneID == nil {
		return nil, nil
	}

	release, err := s.acquirePlanLock(ctx, planID)
	if err != nil {
		return nil, err
	}
	defer release()

	var removed []clientfeaturesdomain.LiveStrategyRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		removed, txErr = s.removeLiveMilestone(ctx, tx, *plan.ActiveMilestoneID)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	if len(removed) > 0 {
		s.cache.InvalidateEnvironment(plan.Environment)
		s.metrics.RecordMilestoneDeactivation(ctx, plan.Environment)
	}

	s.log.Info("milestone deactivated",
		zap.String("plan_id", planID),
		zap.String("milestone_id", *plan.ActiveMilestoneID),
		zap.Int("strategies_removed", len(removed)),
	)
	return removed, nil
}

func (s *Service) ActivateSegments(ctx context.Context, milestoneID string) (int, error) {
	milestoneID = strings.TrimSpace(milestoneID)
	if milestoneID == "" {
		return 0, domain.ErrInvalidID
	}

	milestone, err := s.repo.GetMilestone(ctx, s.db, milestoneID)
	if err != nil {
		return 0, err
	}
	if milestone == nil {
		return 0, domain.ErrNotFound
	}

	attached, err := s.attachSegments(ctx, s.db, milestoneID)
	if err != nil {
		return 0, err
	}

	if attached > 0 {
		if plan, planErr := s.repo.GetPlan(ctx, s.db, milestone.ReleasePlanID); planErr == nil && plan != nil {
			s.cache.InvalidateEnvironment(plan.Environment)
		}
	}
	return attached, nil
}

func (s *Service) InsertAllMilestoneSegmentsForPlan(ctx context.Context, planID string) (int, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return 0, domain.ErrInvalidID
	}

	plan, err := s.repo.GetPlan(ctx, s.db, planID)
	if err != nil {
		return 0, err
	}
	if plan == nil {
		return 0, domain.ErrNotFound
	}
	if plan.ActiveMilestoneID == nil {
		return 0, nil
	}

	attached, err := s.attachSegments(ctx, s.db, *plan.ActiveMilestoneID)
	if err != nil {
		return 0, err
	}

	if attached > 0 {
		s.cache.InvalidateEnvironment(plan.Environment)
	}
	return attached, nil
}

func (s *Service) GetActiveStrategiesForPlan(ctx context.Context, planID string) ([]clientfeaturesdomain.LiveStrategyRecord, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return nil, domain.ErrInvalidID
	}

	plan, err := s.repo.GetPlan(ctx, s.db, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrNotFound
	}
	if plan.ActiveMilestoneID == nil {
		return []clientfeaturesdomain.LiveStrategyRecord{}, nil
	}

	return s.repo.LiveStrategiesByMilestone(ctx, s.db, *plan.ActiveMilestoneID)
}

func (s *Service) StartMilestone(ctx context.Context, planID, milestoneID, actingUser string) (*domain.MilestoneTransition, error) {
	planID = strings.TrimSpace(planID)
	milestoneID = strings.TrimSpace(milestoneID)
	if planID == "" || milestoneID == "" {
		return nil, domain.ErrInvalidID
	}

	plan, err := s.repo.GetPlan(ctx, s.db, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrNotFound
	}

	milestone, err := s.repo.GetMilestone(ctx, s.db, milestoneID)
	if err != nil {
		return nil, err
	}
	if milestone == nil || milestone.ReleasePlanID != plan.ID {
		return nil, domain.ErrMilestoneNotInPlan
	}

	release, err := s.acquirePlanLock(ctx, planID)
	if err != nil {
		return nil, err
	}
	defer release()

	transition := &domain.MilestoneTransition{
		PlanID:          planID,
		FromMilestoneID: plan.ActiveMilestoneID,
		ToMilestoneID:   milestoneID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		next := milestoneID
		won, swapErr := s.repo.SetActiveMilestone(ctx, tx, planID, plan.ActiveMilestoneID, &next)
		if swapErr != nil {
			return swapErr
		}
		if !won {
			return domain.ErrConcurrentTransition
		}

		if prev := plan.ActiveMilestoneID; prev != nil && *prev != milestoneID {
			removed, removeErr := s.removeLiveMilestone(ctx, tx, *prev)
			if removeErr != nil {
				return removeErr
			}
			transition.DeactivatedCount = len(removed)
		}

		inserted, attached, activateErr := s.activateMilestone(ctx, tx, plan, milestoneID, actingUser)
		if activateErr != nil {
			return activateErr
		}
		transition.ActivatedCount = len(inserted)
		transition.SegmentsAttached = attached
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateEnvironment(plan.Environment)
	s.metrics.RecordMilestoneActivation(ctx, plan.Environment)
	if transition.DeactivatedCount > 0 {
		s.metrics.RecordMilestoneDeactivation(ctx, plan.Environment)
	}

	s.log.Info("milestone transition",
		zap.String("plan_id", planID),
		zap.Stringp("from_milestone_id", transition.FromMilestoneID),
		zap.String("to_milestone_id", milestoneID),
		zap.Int("deactivated", transition.DeactivatedCount),
		zap.Int("activated", transition.ActivatedCount),
		zap.Int("segments_attached", transition.SegmentsAttached),
	)
	return transition, nil
}

// acquirePlanLock serializes plan transitions across instances. When no lock
// backend is configured the conditional update on the active pointer is the
// only arbiter, so lock errors degrade to a warning instead of failing the
// operation.
func (s *Service) acquirePlanLock(ctx context.Context, planID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}

	key := "flagship:releaseplan:lock:" + planID
	ttl := s.delivery.Get().ActivationLockTTL

	token, ok, err := s.locker.TryLock(ctx, key, ttl)
	if err != nil {
		s.log.Warn("plan lock unavailable, relying on conditional update",
			zap.String("plan_id", planID),
			zap.Error(err),
		)
		return func() {}, nil
	}
	if !ok {
		return nil, domain.ErrPlanLocked
	}

	return func() {
		if releaseErr := s.locker.Release(ctx, key, token); releaseErr != nil {
			s.log.Warn("plan lock release failed",
				zap.String("plan_id", planID),
				zap.Error(releaseErr),
			)
		}
	}, nil
}

// activateMilestone copies the milestone's strategy templates and segment
// attachments into the live store. Copies are frozen snapshots: template
// edits after activation do not flow through until the milestone is
// reactivated.
func (s *Service) activateMilestone(ctx context.Context, tx *gorm.DB, plan *domain.ReleasePlanRecord, milestoneID, actingUser string) ([]clientfeaturesdomain.LiveStrategyRecord, int, error) {
	templates, err := s.repo.MilestoneStrategies(ctx, tx, milestoneID)
	if err != nil {
		return nil, 0, err
	}
	if len(templates) == 0 {
		return nil, 0, nil
	}

	project, err := s.repo.FeatureProject(ctx, tx, plan.FeatureName)
	if err != nil {
		return nil, 0, err
	}

	records := make([]clientfeaturesdomain.LiveStrategyRecord, 0, len(templates))
	for _, tpl := range templates {
		templateID := tpl.ID
		records = append(records, clientfeaturesdomain.LiveStrategyRecord{
			ID:                  s.genID.Generate().String(),
			FeatureName:         plan.FeatureName,
			Project:             project,
			Environment:         plan.Environment,
			StrategyName:        tpl.StrategyName,
			Title:               tpl.Title,
			SortOrder:           tpl.SortOrder,
			Parameters:          tpl.Parameters,
			Constraints:         tpl.Constraints,
			Variants:            tpl.Variants,
			MilestoneID:         &milestoneID,
			MilestoneStrategyID: &templateID,
			CreatedBy:           actingUser,
			CreatedAt:           s.clock.Now(),
		})
	}

	inserted, err := s.repo.InsertLiveStrategies(ctx, tx, records)
	if err != nil {
		return nil, 0, err
	}
	if skipped := len(records) - len(inserted); skipped > 0 {
		s.metrics.RecordActivationSkipped(ctx, plan.Environment, skipped)
		s.log.Debug("activation copy skipped already-live templates",
			zap.String("milestone_id", milestoneID),
			zap.Int("skipped", skipped),
		)
	}

	attached, err := s.attachSegments(ctx, tx, milestoneID)
	if err != nil {
		return nil, 0, err
	}
	return inserted, attached, nil
}

// attachSegments copies the milestone's segment attachments onto its live
// strategy copies. Attachment rows key on the live strategy id, so template
// ids are resolved through the provenance column first.
func (s *Service) attachSegments(ctx context.Context, tx *gorm.DB, milestoneID string) (int, error) {
	attachments, err := s.repo.MilestoneStrategySegments(ctx, tx, milestoneID)
	if err != nil {
		return 0, err
	}
	if len(attachments) == 0 {
		return 0, nil
	}

	live, err := s.repo.LiveStrategiesByMilestone(ctx, tx, milestoneID)
	if err != nil {
		return 0, err
	}

	liveByTemplate := make(map[string]string, len(live))
	for _, row := range live {
		if row.MilestoneStrategyID != nil {
			liveByTemplate[*row.MilestoneStrategyID] = row.ID
		}
	}

	records := make([]clientfeaturesdomain.LiveStrategySegmentRecord, 0, len(attachments))
	for _, attachment := range attachments {
		liveID, ok := liveByTemplate[attachment.MilestoneStrategyID]
		if !ok {
			// Template never activated; nothing to attach to.
			continue
		}
		records = append(records, clientfeaturesdomain.LiveStrategySegmentRecord{
			FeatureStrategyID: liveID,
			SegmentID:         attachment.SegmentID,
			CreatedAt:         s.clock.Now(),
		})
	}
	if len(records) == 0 {
		return 0, nil
	}

	return s.repo.InsertLiveSegments(ctx, tx, records)
}

func (s *Service) removeLiveMilestone(ctx context.Context, tx *gorm.DB, milestoneID string) ([]clientfeaturesdomain.LiveStrategyRecord, error) {
	live, err := s.repo.LiveStrategiesByMilestone(ctx, tx, milestoneID)
	if err != nil {
		return nil, err
	}
	if len(live) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(live))
	for _, row := range live {
		ids = append(ids, row.ID)
	}

	if err := s.repo.DeleteLiveSegmentsByStrategy(ctx, tx, ids); err != nil {
		return nil, err
	}
	if err := s.repo.DeleteLiveStrategies(ctx, tx, ids); err != nil {
		return nil, err
	}
	return live, nil
}
