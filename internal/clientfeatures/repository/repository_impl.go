package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/flagship/internal/clientfeatures/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const featureRowColumns = `
	f.name AS name,
	f.description AS description,
	f.type AS type,
	f.project AS project,
	f.stale AS stale,
	f.impression_data AS impression_data,
	fe.enabled AS enabled,
	fe.environment AS environment,
	fe.variants AS variants,
	f.created_at AS created_at,
	fe.last_seen_at AS last_seen_at,
	(fav.feature_name IS NOT NULL) AS favorite,
	fs.id AS strategy_id,
	fs.strategy_name AS strategy_name,
	fs.title AS strategy_title,
	fs.disabled AS strategy_disabled,
	fs.sort_order AS sort_order,
	fs.milestone_id AS milestone_id,
	fs.parameters AS parameters,
	fs.constraints AS constraints,
	fs.variants AS strategy_variants,
	seg.id AS segment_id,
	seg.constraints AS segment_constraints,
	fd.parent AS dependency_parent,
	fd.enabled AS dependency_enabled,
	fd.variants AS dependency_variants`

// FeatureRows runs the delivery join. The ORDER BY keeps a feature's rows
// together and guarantees a strategy row precedes its segment fan-out rows.
func (r *repo) FeatureRows(ctx context.Context, db *gorm.DB, q domain.RowQuery) ([]domain.FeatureRow, error) {
	var sb strings.Builder
	args := make([]any, 0, 4)

	sb.WriteString("SELECT ")
	sb.WriteString(featureRowColumns)
	if q.IncludeTags {
		sb.WriteString(",\n\tft.tag_type AS tag_type,\n\tft.tag_value AS tag_value")
	}
	sb.WriteString(`
	FROM features f
	JOIN feature_environments fe ON fe.feature_name = f.name AND fe.environment = ?
	LEFT JOIN feature_strategies fs ON fs.feature_name = f.name AND fs.environment = fe.environment
	LEFT JOIN feature_strategy_segments fss ON fss.feature_strategy_id = fs.id
	LEFT JOIN segments seg ON seg.id = fss.segment_id
	LEFT JOIN feature_dependencies fd ON fd.feature_name = f.name
	LEFT JOIN feature_favorites fav ON fav.feature_name = f.name AND fav.user_id = ?`)
	args = append(args, q.Environment, q.UserID)

	if q.IncludeTags {
		sb.WriteString("\n\tLEFT JOIN feature_tags ft ON ft.feature_name = f.name")
	}

	where := make([]string, 0, 2)
	if q.Project != "" {
		where = append(where, "f.project = ?")
		args = append(args, q.Project)
	}
	if q.FeatureName != "" {
		where = append(where, "f.name = ?")
		args = append(args, q.FeatureName)
	}
	if len(where) > 0 {
		sb.WriteString("\n\tWHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}

	sb.WriteString("\n\tORDER BY f.name, fs.sort_order, fs.id")

	var rows []domain.FeatureRow
	if err := db.WithContext(ctx).Raw(sb.String(), args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
