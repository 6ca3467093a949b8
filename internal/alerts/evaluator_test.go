package alerts

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/config"
)

func f64p(v float64) *float64 { return &v }

func defaultThresholds() config.Thresholds {
	return config.Default().Alerts
}

func TestEvaluate_YardCongestion(t *testing.T) {
	snap := Snapshot{
		PlantOps: []PlantOpsMetric{{
			ServiceDate:          "2026-01-15",
			LocationID:           "yard-1",
			AvgTimeInYardMinutes: f64p(120),
		}},
	}

	findings := Evaluate(snap, defaultThresholds())
	require.Len(t, findings, 1)
	assert.Equal(t, RuleYardCongestion, findings[0].Rule)
	assert.Equal(t, SeverityHigh, findings[0].Severity)
	assert.Equal(t, "2026-01-15 location=yard-1 avg_time_in_yard=120.0m", findings[0].Detail)
}

func TestEvaluate_LateDeliveries(t *testing.T) {
	snap := Snapshot{
		Dispatch: []DispatchMetric{{
			ServiceDate:        "2026-01-15",
			LocationID:         "yard-1",
			AvgDeliveryMinutes: f64p(95),
		}},
	}

	findings := Evaluate(snap, defaultThresholds())
	require.Len(t, findings, 1)
	assert.Equal(t, RuleLateDeliveries, findings[0].Rule)
	assert.Equal(t, SeverityHigh, findings[0].Severity)
	assert.Equal(t, "2026-01-15 location=yard-1 avg_delivery_minutes=95.0", findings[0].Detail)
}

func TestEvaluate_ARAgingRisk(t *testing.T) {
	snap := Snapshot{
		BillingAR: []BillingARMetric{{
			AsOfDate: "2026-01-20",
			AR90Plus: 12000,
		}},
	}

	findings := Evaluate(snap, defaultThresholds())
	require.Len(t, findings, 1)
	assert.Equal(t, RuleARAgingRisk, findings[0].Rule)
	assert.Equal(t, SeverityHigh, findings[0].Severity)
	assert.Equal(t, "2026-01-20 ar_90_plus=12000.00", findings[0].Detail)
}

func TestEvaluate_LoadVariance(t *testing.T) {
	snap := Snapshot{
		PlantOps: []PlantOpsMetric{{
			ServiceDate:        "2026-01-15",
			LocationID:         "yard-1",
			AvgLoadVariancePct: f64p(7.25),
		}},
	}

	findings := Evaluate(snap, defaultThresholds())
	require.Len(t, findings, 1)
	assert.Equal(t, RuleLoadVariance, findings[0].Rule)
	assert.Equal(t, SeverityMedium, findings[0].Severity)
	assert.Equal(t, "2026-01-15 location=yard-1 avg_load_variance_pct=7.25", findings[0].Detail)
}

func TestEvaluate_BelowThresholdProducesNothing(t *testing.T) {
	snap := Snapshot{
		PlantOps: []PlantOpsMetric{{
			ServiceDate:          "2026-01-15",
			LocationID:           "yard-1",
			AvgTimeInYardMinutes: f64p(75), // equal, not exceeding
			AvgLoadVariancePct:   f64p(5.0),
		}},
		Dispatch: []DispatchMetric{{
			ServiceDate:        "2026-01-15",
			LocationID:         "yard-1",
			AvgDeliveryMinutes: f64p(30),
		}},
		BillingAR: []BillingARMetric{{AsOfDate: "2026-01-20", AR90Plus: 10000}},
	}

	assert.Empty(t, Evaluate(snap, defaultThresholds()))
}

func TestEvaluate_NullMetricsNeverBreach(t *testing.T) {
	snap := Snapshot{
		PlantOps: []PlantOpsMetric{{ServiceDate: "2026-01-15", LocationID: "yard-1"}},
		Dispatch: []DispatchMetric{{ServiceDate: "2026-01-15", LocationID: "yard-1"}},
	}

	assert.Empty(t, Evaluate(snap, defaultThresholds()))
}

func TestEvaluate_FixedRuleOrderAndDateDescending(t *testing.T) {
	snap := Snapshot{
		PlantOps: []PlantOpsMetric{
			{ServiceDate: "2026-01-14", LocationID: "yard-1", AvgTimeInYardMinutes: f64p(90), AvgLoadVariancePct: f64p(9)},
			{ServiceDate: "2026-01-15", LocationID: "yard-1", AvgTimeInYardMinutes: f64p(95)},
		},
		Dispatch: []DispatchMetric{
			{ServiceDate: "2026-01-15", LocationID: "yard-1", AvgDeliveryMinutes: f64p(200)},
		},
		BillingAR: []BillingARMetric{{AsOfDate: "2026-01-20", AR90Plus: 50000}},
	}

	findings := Evaluate(snap, defaultThresholds())
	require.Len(t, findings, 5)

	assert.Equal(t, RuleYardCongestion, findings[0].Rule)
	assert.Contains(t, findings[0].Detail, "2026-01-15")
	assert.Equal(t, RuleYardCongestion, findings[1].Rule)
	assert.Contains(t, findings[1].Detail, "2026-01-14")
	assert.Equal(t, RuleLoadVariance, findings[2].Rule)
	assert.Equal(t, RuleLateDeliveries, findings[3].Rule)
	assert.Equal(t, RuleARAgingRisk, findings[4].Rule)
}

func TestEvaluate_FindingsCappedPerRule(t *testing.T) {
	var plantOps []PlantOpsMetric
	for day := 1; day <= 25; day++ {
		plantOps = append(plantOps, PlantOpsMetric{
			ServiceDate:          fmt.Sprintf("2026-01-%02d", day),
			LocationID:           "yard-1",
			AvgTimeInYardMinutes: f64p(120),
		})
	}
	var billing []BillingARMetric
	for day := 1; day <= 8; day++ {
		billing = append(billing, BillingARMetric{
			AsOfDate: fmt.Sprintf("2026-02-%02d", day),
			AR90Plus: 99999,
		})
	}

	findings := Evaluate(Snapshot{PlantOps: plantOps, BillingAR: billing}, defaultThresholds())
	require.Len(t, findings, 25)

	var yard, ar []Finding
	for _, f := range findings {
		switch f.Rule {
		case RuleYardCongestion:
			yard = append(yard, f)
		case RuleARAgingRisk:
			ar = append(ar, f)
		}
	}
	require.Len(t, yard, 20)
	require.Len(t, ar, 5)

	// most recent dates survive the cap
	assert.Contains(t, yard[0].Detail, "2026-01-25")
	assert.Contains(t, yard[19].Detail, "2026-01-06")
	assert.Contains(t, ar[0].Detail, "2026-02-08")
	assert.Contains(t, ar[4].Detail, "2026-02-04")
}
