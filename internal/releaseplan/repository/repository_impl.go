package repository

import (
	"context"
	"errors"

	clientfeaturesdomain "github.com/smallbiznis/flagship/internal/clientfeatures/domain"
	"github.com/smallbiznis/flagship/internal/releaseplan/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const planRowQuery = `
	SELECT
		rp.id AS plan_id,
		rp.discriminator AS discriminator,
		rp.name AS plan_name,
		rp.description AS plan_description,
		rp.feature_name AS feature_name,
		rp.environment AS environment,
		rp.created_by AS created_by,
		rp.created_at AS created_at,
		rp.active_milestone_id AS active_milestone_id,
		rp.template_id AS template_id,
		m.id AS milestone_id,
		m.name AS milestone_name,
		m.sort_order AS milestone_sort_order,
		ms.id AS strategy_id,
		ms.sort_order AS strategy_sort_order,
		ms.title AS strategy_title,
		ms.strategy_name AS strategy_name,
		ms.parameters AS parameters,
		ms.constraints AS constraints,
		ms.variants AS strategy_variants,
		mss.segment_id AS segment_id
	FROM release_plans rp
	LEFT JOIN milestones m ON m.release_plan_id = rp.id
	LEFT JOIN milestone_strategies ms ON ms.milestone_id = m.id
	LEFT JOIN milestone_strategy_segments mss ON mss.milestone_strategy_id = ms.id`

func (r *repo) PlanRows(ctx context.Context, db *gorm.DB, planID string) ([]domain.PlanRow, error) {
	var rows []domain.PlanRow
	err := db.WithContext(ctx).Raw(
		planRowQuery+`
	WHERE rp.id = ?
	ORDER BY m.sort_order, ms.sort_order, mss.segment_id`,
		planID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) PlanRowsForFeature(ctx context.Context, db *gorm.DB, featureName, environment string) ([]domain.PlanRow, error) {
	var rows []domain.PlanRow
	err := db.WithContext(ctx).Raw(
		planRowQuery+`
	WHERE rp.feature_name = ? AND rp.environment = ? AND rp.discriminator = ?
	ORDER BY rp.created_at, rp.id, m.sort_order, ms.sort_order, mss.segment_id`,
		featureName,
		environment,
		domain.DiscriminatorPlan,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) GetPlan(ctx context.Context, db *gorm.DB, planID string) (*domain.ReleasePlanRecord, error) {
	var record domain.ReleasePlanRecord
	err := db.WithContext(ctx).
		Where("id = ?", planID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repo) GetMilestone(ctx context.Context, db *gorm.DB, milestoneID string) (*domain.MilestoneRecord, error) {
	var record domain.MilestoneRecord
	err := db.WithContext(ctx).
		Where("id = ?", milestoneID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repo) FeatureProject(ctx context.Context, db *gorm.DB, featureName string) (string, error) {
	var record clientfeaturesdomain.FeatureRecord
	err := db.WithContext(ctx).
		Where("name = ?", featureName).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return record.Project, nil
}

// SetActiveMilestone is the single point of arbitration between competing
// transitions: the conditional update succeeds for exactly one caller per
// expected value.
func (r *repo) SetActiveMilestone(ctx context.Context, db *gorm.DB, planID string, expected, next *string) (bool, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.ReleasePlanRecord{}).
		Where("id = ?", planID)
	if expected == nil {
		stmt = stmt.Where("active_milestone_id IS NULL")
	} else {
		stmt = stmt.Where("active_milestone_id = ?", *expected)
	}

	result := stmt.Update("active_milestone_id", next)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MilestoneStrategies(ctx context.Context, db *gorm.DB, milestoneID string) ([]domain.MilestoneStrategyRecord, error) {
	var records []domain.MilestoneStrategyRecord
	err := db.WithContext(ctx).
		Where("milestone_id = ?", milestoneID).
		Order("sort_order, id").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) MilestoneStrategySegments(ctx context.Context, db *gorm.DB, milestoneID string) ([]domain.MilestoneStrategySegmentRecord, error) {
	var records []domain.MilestoneStrategySegmentRecord
	err := db.WithContext(ctx).Raw(
		`SELECT mss.milestone_strategy_id, mss.segment_id
		 FROM milestone_strategy_segments mss
		 JOIN milestone_strategies ms ON ms.id = mss.milestone_strategy_id
		 WHERE ms.milestone_id = ?
		 ORDER BY ms.sort_order, mss.segment_id`,
		milestoneID,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// InsertLiveStrategies inserts row by row so that a conflict skips only the
// colliding template copy, never the whole batch.
func (r *repo) InsertLiveStrategies(ctx context.Context, db *gorm.DB, records []clientfeaturesdomain.LiveStrategyRecord) ([]clientfeaturesdomain.LiveStrategyRecord, error) {
	inserted := make([]clientfeaturesdomain.LiveStrategyRecord, 0, len(records))
	for i := range records {
		result := db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&records[i])
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected > 0 {
			inserted = append(inserted, records[i])
		}
	}
	return inserted, nil
}

func (r *repo) InsertLiveSegments(ctx context.Context, db *gorm.DB, records []clientfeaturesdomain.LiveStrategySegmentRecord) (int, error) {
	inserted := 0
	for i := range records {
		result := db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&records[i])
		if result.Error != nil {
			return inserted, result.Error
		}
		if result.RowsAffected > 0 {
			inserted++
		}
	}
	return inserted, nil
}

func (r *repo) LiveStrategiesByMilestone(ctx context.Context, db *gorm.DB, milestoneID string) ([]clientfeaturesdomain.LiveStrategyRecord, error) {
	var records []clientfeaturesdomain.LiveStrategyRecord
	err := db.WithContext(ctx).
		Where("milestone_id = ?", milestoneID).
		Order("sort_order, id").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) DeleteLiveStrategies(ctx context.Context, db *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&clientfeaturesdomain.LiveStrategyRecord{}).Error
}

func (r *repo) DeleteLiveSegmentsByStrategy(ctx context.Context, db *gorm.DB, strategyIDs []string) error {
	if len(strategyIDs) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Where("feature_strategy_id IN ?", strategyIDs).
		Delete(&clientfeaturesdomain.LiveStrategySegmentRecord{}).Error
}
