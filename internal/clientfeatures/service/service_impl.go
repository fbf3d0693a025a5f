package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/flagship/internal/cache"
	"github.com/smallbiznis/flagship/internal/clientfeatures/domain"
	"github.com/smallbiznis/flagship/internal/config"
	"github.com/smallbiznis/flagship/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     domain.Repository
	Cache    cache.DeliveryCache
	Delivery *config.DeliveryConfigHolder
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	cache    cache.DeliveryCache
	delivery *config.DeliveryConfigHolder
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("clientfeatures.service"),
		repo:     p.Repo,
		cache:    p.Cache,
		delivery: p.Delivery,
		metrics:  p.Metrics,
	}
}

func (s *Service) GetFeatures(ctx context.Context, q domain.Query) ([]domain.ProjectedFeature, error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordFeatureRead(ctx, string(q.Consumer), q.Environment)

	cacheable := s.cacheable(q)
	if cacheable {
		if payload, ok := s.cache.GetPayload(q.Environment, q.Project, q.Consumer); ok {
			return payload, nil
		}
	}

	features, err := s.buildFeatures(ctx, q)
	if err != nil {
		return nil, err
	}

	projected := make([]domain.ProjectedFeature, 0, len(features))
	for _, feature := range features {
		projected = append(projected, ProjectFeature(feature, q.Consumer))
	}

	if cacheable {
		s.cache.SetPayload(q.Environment, q.Project, q.Consumer, projected, s.delivery.Get().ClientCacheTTL)
	}

	return projected, nil
}

func (s *Service) GetFeature(ctx context.Context, q domain.Query) (*domain.ProjectedFeature, error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}
	if q.FeatureName == "" {
		return nil, domain.ErrMissingFeatureName
	}

	features, err := s.buildFeatures(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return nil, domain.ErrNotFound
	}

	projected := ProjectFeature(features[0], q.Consumer)
	return &projected, nil
}

func (s *Service) buildFeatures(ctx context.Context, q domain.Query) ([]domain.Feature, error) {
	rules := rulesFor(q.Consumer)

	rows, err := s.repo.FeatureRows(ctx, s.db, domain.RowQuery{
		Environment: q.Environment,
		Project:     q.Project,
		FeatureName: q.FeatureName,
		UserID:      q.UserID,
		IncludeTags: rules.exposeTags,
	})
	if err != nil {
		return nil, err
	}

	opts := domain.BuildOptions{
		Consumer:                 q.Consumer,
		InlineSegmentConstraints: s.delivery.Get().InlineSegmentConstraints,
	}
	return BuildFeatures(rows, opts, s.log), nil
}

// cacheable limits the cache to full-environment SDK payloads; admin and
// playground reads and single-feature lookups always hit the store.
func (s *Service) cacheable(q domain.Query) bool {
	if q.FeatureName != "" {
		return false
	}
	return q.Consumer == domain.ConsumerClient || q.Consumer == domain.ConsumerFrontend
}

func normalizeQuery(q domain.Query) (domain.Query, error) {
	q.Environment = strings.TrimSpace(q.Environment)
	q.Project = strings.TrimSpace(q.Project)
	q.FeatureName = strings.TrimSpace(q.FeatureName)
	q.UserID = strings.TrimSpace(q.UserID)

	if q.Environment == "" {
		return q, domain.ErrInvalidEnvironment
	}
	if !q.Consumer.Valid() {
		return q, domain.ErrInvalidConsumer
	}
	return q, nil
}
