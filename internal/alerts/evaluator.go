// Package alerts scans the rebuilt daily aggregates against configured
// thresholds and turns breaches into findings. Evaluation is a pure
// function; persistence into the audit log and delivery to notifiers
// happen in the surrounding Engine.
package alerts

import (
	"fmt"
	"sort"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/config"
)

// Severities attached to findings.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// Rule names, in evaluation order.
const (
	RuleYardCongestion = "yard_congestion"
	RuleLoadVariance   = "load_variance"
	RuleLateDeliveries = "late_deliveries"
	RuleARAgingRisk    = "ar_aging_risk"
)

// Per-rule caps on emitted findings. A breach wider than the cap still
// surfaces, just truncated to the most recent dates.
const (
	yardCongestionLimit = 20
	loadVarianceLimit   = 20
	lateDeliveriesLimit = 20
	arAgingRiskLimit    = 5
)

// Finding is one threshold breach.
type Finding struct {
	Rule     string `json:"name"`
	Severity string `json:"severity"`
	Detail   string `json:"details"`
}

// PlantOpsMetric is the slice of gold_plant_ops_daily the evaluator reads.
type PlantOpsMetric struct {
	ServiceDate          string
	LocationID           string
	AvgTimeInYardMinutes *float64
	AvgLoadVariancePct   *float64
}

// DispatchMetric is the slice of gold_dispatch_daily the evaluator reads.
type DispatchMetric struct {
	ServiceDate        string
	LocationID         string
	AvgDeliveryMinutes *float64
}

// BillingARMetric is the slice of gold_billing_ar_daily the evaluator reads.
type BillingARMetric struct {
	AsOfDate string
	AR90Plus float64
}

// Snapshot is the aggregate state one evaluation runs over.
type Snapshot struct {
	PlantOps  []PlantOpsMetric
	Dispatch  []DispatchMetric
	BillingAR []BillingARMetric
}

// Evaluate runs the four rule scans over a snapshot. Findings concatenate
// in fixed rule order; within a rule they are ordered by date descending
// and capped at the rule's limit. Rows with a NULL metric never breach.
func Evaluate(snap Snapshot, th config.Thresholds) []Finding {
	var findings []Finding
	findings = append(findings, yardCongestion(snap.PlantOps, th.YardTimeMinutes)...)
	findings = append(findings, loadVariance(snap.PlantOps, th.LoadVariancePercent)...)
	findings = append(findings, lateDeliveries(snap.Dispatch, th.LateDeliveryMinutes)...)
	findings = append(findings, arAgingRisk(snap.BillingAR, th.AROverdueAmount)...)
	return findings
}

func yardCongestion(rows []PlantOpsMetric, thresholdMinutes int) []Finding {
	var breached []PlantOpsMetric
	for _, r := range rows {
		if r.AvgTimeInYardMinutes != nil && *r.AvgTimeInYardMinutes > float64(thresholdMinutes) {
			breached = append(breached, r)
		}
	}
	sort.SliceStable(breached, func(i, j int) bool {
		return breached[i].ServiceDate > breached[j].ServiceDate
	})
	breached = capRows(breached, yardCongestionLimit)

	findings := make([]Finding, 0, len(breached))
	for _, r := range breached {
		findings = append(findings, Finding{
			Rule:     RuleYardCongestion,
			Severity: SeverityHigh,
			Detail:   fmt.Sprintf("%s location=%s avg_time_in_yard=%.1fm", r.ServiceDate, r.LocationID, *r.AvgTimeInYardMinutes),
		})
	}
	return findings
}

func loadVariance(rows []PlantOpsMetric, thresholdPct float64) []Finding {
	var breached []PlantOpsMetric
	for _, r := range rows {
		if r.AvgLoadVariancePct != nil && *r.AvgLoadVariancePct > thresholdPct {
			breached = append(breached, r)
		}
	}
	sort.SliceStable(breached, func(i, j int) bool {
		return breached[i].ServiceDate > breached[j].ServiceDate
	})
	breached = capRows(breached, loadVarianceLimit)

	findings := make([]Finding, 0, len(breached))
	for _, r := range breached {
		findings = append(findings, Finding{
			Rule:     RuleLoadVariance,
			Severity: SeverityMedium,
			Detail:   fmt.Sprintf("%s location=%s avg_load_variance_pct=%.2f", r.ServiceDate, r.LocationID, *r.AvgLoadVariancePct),
		})
	}
	return findings
}

func lateDeliveries(rows []DispatchMetric, thresholdMinutes int) []Finding {
	var breached []DispatchMetric
	for _, r := range rows {
		if r.AvgDeliveryMinutes != nil && *r.AvgDeliveryMinutes > float64(thresholdMinutes) {
			breached = append(breached, r)
		}
	}
	sort.SliceStable(breached, func(i, j int) bool {
		return breached[i].ServiceDate > breached[j].ServiceDate
	})
	breached = capRows(breached, lateDeliveriesLimit)

	findings := make([]Finding, 0, len(breached))
	for _, r := range breached {
		findings = append(findings, Finding{
			Rule:     RuleLateDeliveries,
			Severity: SeverityHigh,
			Detail:   fmt.Sprintf("%s location=%s avg_delivery_minutes=%.1f", r.ServiceDate, r.LocationID, *r.AvgDeliveryMinutes),
		})
	}
	return findings
}

func arAgingRisk(rows []BillingARMetric, thresholdAmount float64) []Finding {
	var breached []BillingARMetric
	for _, r := range rows {
		if r.AR90Plus > thresholdAmount {
			breached = append(breached, r)
		}
	}
	sort.SliceStable(breached, func(i, j int) bool {
		return breached[i].AsOfDate > breached[j].AsOfDate
	})
	breached = capRows(breached, arAgingRiskLimit)

	findings := make([]Finding, 0, len(breached))
	for _, r := range breached {
		findings = append(findings, Finding{
			Rule:     RuleARAgingRisk,
			Severity: SeverityHigh,
			Detail:   fmt.Sprintf("%s ar_90_plus=%.2f", r.AsOfDate, r.AR90Plus),
		})
	}
	return findings
}

func capRows[T any](rows []T, limit int) []T {
	if len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
