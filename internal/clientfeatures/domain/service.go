package domain

import (
	"context"
	"errors"
)

// Query is a consumer-tagged feature read.
type Query struct {
	Environment string
	Project     string
	FeatureName string
	UserID      string
	Consumer    ConsumerKind
}

type Service interface {
	// GetFeatures returns all matching features projected for the query's
	// consumer kind. No matches yields an empty slice.
	GetFeatures(ctx context.Context, q Query) ([]ProjectedFeature, error)
	// GetFeature returns a single feature or ErrNotFound.
	GetFeature(ctx context.Context, q Query) (*ProjectedFeature, error)
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrInvalidConsumer    = errors.New("invalid_consumer")
	ErrInvalidEnvironment = errors.New("invalid_environment")
	ErrMissingFeatureName = errors.New("missing_feature_name")
)
