package metrics

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("consumer", "client"),
		attribute.String("user_id", "456"),
		attribute.String("environment", "production"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "user_id" {
			t.Fatalf("expected user_id to be dropped")
		}
	}
}

func TestRecordMethodsNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordFeatureRead(t.Context(), "client", "production")
	m.RecordMilestoneActivation(t.Context(), "production")
	m.RecordMilestoneDeactivation(t.Context(), "production")
	m.RecordActivationSkipped(t.Context(), "production", 3)
}
