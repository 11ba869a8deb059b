package scoring

import (
	"testing"

	"github.com/vigilant-watch/vigilant/internal/domain"
)

func TestAggregate(t *testing.T) {
	highAmount := domain.Signal{Label: domain.LabelHighAmount, Score: domain.FloorHighAmount}
	rapid := domain.Signal{Label: domain.LabelRapid, Score: domain.FloorRapid}
	mlAnomaly := domain.Signal{Label: domain.LabelMLAnomaly, Score: domain.FloorMLAnomaly}

	tests := []struct {
		name      string
		signals   []domain.Signal
		statScore int
		want      int
	}{
		{"NoSignals", nil, 0, 0},
		{"HighAmountOnly", []domain.Signal{highAmount}, 0, 95},
		{"RapidOnly", []domain.Signal{rapid}, 0, 80},
		{"MLOnly", []domain.Signal{mlAnomaly}, 0, 88},
		{"StatOnly", nil, 72, 72},
		{"MaxNotSum", []domain.Signal{rapid, mlAnomaly}, 75, 88},
		{"AllSignals", []domain.Signal{highAmount, rapid, mlAnomaly}, 99, 99},
		{"StatBelowFloors", []domain.Signal{highAmount}, 40, 95},
		{"ClampAbove", []domain.Signal{{Label: "custom", Score: 150}}, 0, 100},
		{"ClampBelow", nil, -5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var set domain.SignalSet
			for _, sig := range tt.signals {
				set = set.Append(sig)
			}
			got := Aggregate(set, tt.statScore)
			if got != tt.want {
				t.Errorf("Aggregate(%v, %d) = %d, want %d", set.Labels(), tt.statScore, got, tt.want)
			}
		})
	}
}

func TestDecide(t *testing.T) {
	var withLabels domain.SignalSet
	withLabels = withLabels.Append(domain.Signal{Label: domain.LabelHighAmount, Score: domain.FloorHighAmount})
	withLabels = withLabels.Append(domain.Signal{Label: domain.LabelRapid, Score: domain.FloorRapid})

	t.Run("NotFlagged", func(t *testing.T) {
		if alert := Decide("tx-1", 50, domain.SignalSet{}); alert != nil {
			t.Errorf("score 50 must not produce an alert, got %+v", alert)
		}
		if alert := Decide("tx-1", 0, withLabels); alert != nil {
			t.Errorf("score 0 must not produce an alert, got %+v", alert)
		}
	})

	t.Run("MediumSeverity", func(t *testing.T) {
		alert := Decide("tx-2", 72, withLabels)
		if alert == nil {
			t.Fatal("expected an alert for score 72")
		}
		if alert.Severity != domain.SeverityMedium {
			t.Errorf("expected Medium severity, got %s", alert.Severity)
		}
		if alert.RuleTriggered != "High Amount Transaction, Rapid Transactions" {
			t.Errorf("unexpected rule string %q", alert.RuleTriggered)
		}
		if alert.Details != "Risk Score: 72%" {
			t.Errorf("unexpected details %q", alert.Details)
		}
		if alert.Status != domain.AlertStatusNew {
			t.Errorf("expected status new, got %s", alert.Status)
		}
	})

	t.Run("HighSeverity", func(t *testing.T) {
		alert := Decide("tx-3", 95, withLabels)
		if alert == nil {
			t.Fatal("expected an alert for score 95")
		}
		if alert.Severity != domain.SeverityHigh {
			t.Errorf("expected High severity, got %s", alert.Severity)
		}
	})

	t.Run("BoundaryEighty", func(t *testing.T) {
		// Exactly 80 is Medium; severity flips strictly above 80.
		alert := Decide("tx-4", 80, withLabels)
		if alert == nil || alert.Severity != domain.SeverityMedium {
			t.Errorf("score 80 should be Medium, got %+v", alert)
		}
	})

	t.Run("EmptyLabelsPlaceholder", func(t *testing.T) {
		// Reachable when only the statistical path pushed the score into
		// (50, 60]: flagged, but no label was emitted.
		alert := Decide("tx-5", 55, domain.SignalSet{})
		if alert == nil {
			t.Fatal("expected an alert for score 55")
		}
		if alert.RuleTriggered != PlaceholderRule {
			t.Errorf("expected placeholder rule, got %q", alert.RuleTriggered)
		}
	})
}
