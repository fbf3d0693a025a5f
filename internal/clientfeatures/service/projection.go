package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/smallbiznis/flagship/internal/clientfeatures/domain"
)

// redactionRules is the per-consumer field-visibility table. Keeping the
// rules in one place makes the projection contract auditable.
type redactionRules struct {
	exposeIdentity     bool // strategy id, milestone id, sort order
	exposeTitle        bool
	exposeTags         bool
	exposeDependencies bool
	exposeFavorite     bool
}

var redactionByConsumer = map[domain.ConsumerKind]redactionRules{
	domain.ConsumerClient:     {exposeDependencies: true},
	domain.ConsumerFrontend:   {exposeDependencies: true},
	domain.ConsumerAdmin:      {exposeIdentity: true, exposeTitle: true, exposeTags: true, exposeFavorite: true},
	domain.ConsumerPlayground: {exposeIdentity: true, exposeTitle: true, exposeDependencies: true},
}

func rulesFor(consumer domain.ConsumerKind) redactionRules {
	rules, ok := redactionByConsumer[consumer]
	if !ok {
		panic(fmt.Sprintf("unknown consumer kind %q", consumer))
	}
	return rules
}

// ProjectFeature produces the consumer-specific view of a feature aggregate.
// Strategies are ordered by sort order ascending; strategies sharing a sort
// order keep their row-arrival order, so repeated builds over the same rows
// project identically.
func ProjectFeature(feature domain.Feature, consumer domain.ConsumerKind) domain.ProjectedFeature {
	rules := rulesFor(consumer)

	strategies := make([]domain.Strategy, len(feature.Strategies))
	copy(strategies, feature.Strategies)
	sort.SliceStable(strategies, func(i, j int) bool {
		return strategies[i].SortOrder < strategies[j].SortOrder
	})

	projected := domain.ProjectedFeature{
		Name:           feature.Name,
		Description:    feature.Description,
		Type:           feature.Type,
		Project:        feature.Project,
		Stale:          feature.Stale,
		ImpressionData: feature.ImpressionData,
		Enabled:        feature.Enabled,
		Variants:       feature.Variants,
		CreatedAt:      feature.CreatedAt,
		LastSeenAt:     feature.LastSeenAt,
		Strategies:     make([]domain.ProjectedStrategy, 0, len(strategies)),
	}

	for _, strategy := range strategies {
		projected.Strategies = append(projected.Strategies, projectStrategy(strategy, rules))
	}
	if rules.exposeTags {
		projected.Tags = feature.Tags
	}
	if rules.exposeDependencies {
		projected.Dependencies = feature.Dependencies
	}
	if rules.exposeFavorite {
		favorite := feature.Favorite
		projected.Favorite = &favorite
	}

	return projected
}

func projectStrategy(strategy domain.Strategy, rules redactionRules) domain.ProjectedStrategy {
	out := domain.ProjectedStrategy{
		Name:        strategy.Name,
		Parameters:  coerceParameters(strategy.Parameters),
		Constraints: strategy.Constraints,
		Variants:    strategy.Variants,
		Segments:    strategy.Segments,
	}
	if out.Constraints == nil {
		out.Constraints = []domain.Constraint{}
	}
	if rules.exposeIdentity {
		out.ID = strategy.ID
		out.MilestoneID = strategy.MilestoneID
		sortOrder := strategy.SortOrder
		out.SortOrder = &sortOrder
	}
	if rules.exposeTitle {
		out.Title = strategy.Title
	}
	return out
}

// coerceParameters normalizes persisted parameter values to strings. The
// evaluator contract is string-typed, so numbers and booleans stored as jsonb
// scalars must be rendered before hand-off.
func coerceParameters(params map[string]any) map[string]string {
	out := make(map[string]string, len(params))
	for key, value := range params {
		switch v := value.(type) {
		case string:
			out[key] = v
		case float64:
			out[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			out[key] = strconv.FormatBool(v)
		case nil:
			out[key] = ""
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				out[key] = ""
				continue
			}
			out[key] = string(raw)
		}
	}
	return out
}
