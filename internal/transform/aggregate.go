package transform

import (
	"sort"
	"time"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/payload"
)

// The aggregate builders are pure: normalized entities in, daily rows out,
// sorted by date and dimension. Averages and rates skip NULL inputs, and a
// row that lacks every candidate bucketing timestamp never reaches its
// aggregate.

const dateLayout = "2006-01-02"

// highVarianceThresholdPct marks a load as high-variance for the
// high_variance_rate metric.
const highVarianceThresholdPct = 5.0

// unknownLocation buckets tickets with no resolvable location.
const unknownLocation = "Unknown"

// PlantOpsRow is one gold_plant_ops_daily row.
type PlantOpsRow struct {
	ServiceDate            string
	LocationID             string
	TicketsCount           int
	AvgTimeInYardMinutes   *float64
	AvgTimeToTicketMinutes *float64
	AvgLoadVariancePct     *float64
	HighVarianceRate       *float64
	ActiveLanes            int
	TotalLaneHours         float64
	TicketsPerLaneHour     *float64
}

// DispatchRow is one gold_dispatch_daily row.
type DispatchRow struct {
	ServiceDate        string
	LocationID         string
	Deliveries         int
	AvgDeliveryMinutes *float64
	OnTimeDeliveryRate *float64
	ActiveTrucks       int
	ActiveHaulers      int
}

// BillingARRow is one gold_billing_ar_daily row, keyed by the run date.
type BillingARRow struct {
	AsOfDate           string
	TotalOpenAR        float64
	ARCurrent          float64
	AR1To30            float64
	AR31To60           float64
	AR61To90           float64
	AR90Plus           float64
	CustomersWithOpenAR int
}

// HaulerProductivityRow is one gold_hauler_productivity_daily row.
// HaulerID is nil for tickets with no resolvable hauler.
type HaulerProductivityRow struct {
	ServiceDate           string
	HaulerID              *string
	LoadsCompleted        int
	TrucksUsed            int
	ActiveDeliveryMinutes *float64
	ExpectedPay           *float64
	PaidPay               *float64
	PayVariancePct        *float64
}

// minutesBetween is the whole-minute difference between two timestamps.
func minutesBetween(from, to time.Time) float64 {
	return float64(to.Sub(from) / time.Minute)
}

// coalesceTS returns the first non-nil timestamp.
func coalesceTS(candidates ...*time.Time) *time.Time {
	for _, t := range candidates {
		if t != nil {
			return t
		}
	}
	return nil
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	m := sum / float64(len(values))
	return &m
}

func sum(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	s := 0.0
	for _, v := range values {
		s += v
	}
	return &s
}

// loadVariancePct computes abs((net - target) / target) * 100, nil when
// either weight is missing or the target is zero.
func loadVariancePct(target, net *float64) *float64 {
	if target == nil || net == nil || *target == 0 {
		return nil
	}
	v := (*net - *target) / *target * 100
	if v < 0 {
		v = -v
	}
	return &v
}

type plantOpsKey struct {
	date     string
	location string
}

// BuildPlantOps aggregates tickets into per-(service_date, location) plant
// KPIs. The bucketing date is the first non-nil of ticket, loaded, check-in.
func BuildPlantOps(tickets []Ticket) []PlantOpsRow {
	type laneKey struct {
		plantOpsKey
		lane string
	}
	type laneSpan struct {
		earliest time.Time
		latest   time.Time
	}
	type group struct {
		ticketIDs    map[string]struct{}
		timeInYard   []float64
		timeToTicket []float64
		variances    []float64
		highVariance int
		lanes        map[string]struct{}
	}

	groups := make(map[plantOpsKey]*group)
	laneSpans := make(map[laneKey]*laneSpan)

	for _, t := range tickets {
		bucket := coalesceTS(t.TicketTS, t.LoadedTS, t.CheckInTS)
		if bucket == nil {
			continue
		}
		key := plantOpsKey{
			date:     payload.Midnight(*bucket).Format(dateLayout),
			location: stringOr(t.LocationID, unknownLocation),
		}

		g := groups[key]
		if g == nil {
			g = &group{
				ticketIDs: make(map[string]struct{}),
				lanes:     make(map[string]struct{}),
			}
			groups[key] = g
		}
		g.ticketIDs[t.TicketID] = struct{}{}

		if t.CheckInTS != nil && t.LoadedTS != nil {
			g.timeInYard = append(g.timeInYard, minutesBetween(*t.CheckInTS, *t.LoadedTS))
		}
		if t.LoadedTS != nil && t.TicketTS != nil {
			g.timeToTicket = append(g.timeToTicket, minutesBetween(*t.LoadedTS, *t.TicketTS))
		}
		if v := loadVariancePct(t.TargetWeight, t.NetWeight); v != nil {
			g.variances = append(g.variances, *v)
			if *v > highVarianceThresholdPct {
				g.highVariance++
			}
		}

		if t.LaneID == nil {
			continue
		}
		g.lanes[*t.LaneID] = struct{}{}

		earliest := coalesceTS(t.CheckInTS, t.LoadedTS, t.TicketTS)
		latest := coalesceTS(t.TicketTS, t.LoadedTS, t.CheckInTS)
		lk := laneKey{plantOpsKey: key, lane: *t.LaneID}
		span := laneSpans[lk]
		if span == nil {
			laneSpans[lk] = &laneSpan{earliest: *earliest, latest: *latest}
			continue
		}
		if earliest.Before(span.earliest) {
			span.earliest = *earliest
		}
		if latest.After(span.latest) {
			span.latest = *latest
		}
	}

	// active_lane_hours per lane: whole hours between the lane's earliest
	// and latest activity that day, floored at 1.
	laneHours := make(map[plantOpsKey]float64)
	for lk, span := range laneSpans {
		hours := float64(span.latest.Sub(span.earliest) / time.Hour)
		if hours < 1 {
			hours = 1
		}
		laneHours[lk.plantOpsKey] += hours
	}

	rows := make([]PlantOpsRow, 0, len(groups))
	for key, g := range groups {
		row := PlantOpsRow{
			ServiceDate:            key.date,
			LocationID:             key.location,
			TicketsCount:           len(g.ticketIDs),
			AvgTimeInYardMinutes:   mean(g.timeInYard),
			AvgTimeToTicketMinutes: mean(g.timeToTicket),
			AvgLoadVariancePct:     mean(g.variances),
			ActiveLanes:            len(g.lanes),
			TotalLaneHours:         laneHours[key],
		}
		if len(g.variances) > 0 {
			rate := float64(g.highVariance) / float64(len(g.variances))
			row.HighVarianceRate = &rate
		}
		if row.TotalLaneHours > 0 {
			tplh := float64(len(g.ticketIDs)) / row.TotalLaneHours
			row.TicketsPerLaneHour = &tplh
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ServiceDate != rows[j].ServiceDate {
			return rows[i].ServiceDate < rows[j].ServiceDate
		}
		return rows[i].LocationID < rows[j].LocationID
	})
	return rows
}

// BuildDispatch aggregates tickets into per-(service_date, location)
// delivery KPIs. The bucketing date is the first non-nil of pod, dispatch
// assigned, ticket. A delivery is on time when it took no more than
// slaMinutes from dispatch assignment to proof of delivery.
func BuildDispatch(tickets []Ticket, slaMinutes int) []DispatchRow {
	type group struct {
		ticketIDs map[string]struct{}
		trucks    map[string]struct{}
		haulers   map[string]struct{}
		delivery  []float64
		onTime    []float64
	}

	groups := make(map[plantOpsKey]*group)
	for _, t := range tickets {
		bucket := coalesceTS(t.PodTS, t.DispatchAssignedTS, t.TicketTS)
		if bucket == nil {
			continue
		}
		key := plantOpsKey{
			date:     payload.Midnight(*bucket).Format(dateLayout),
			location: stringOr(t.LocationID, unknownLocation),
		}

		g := groups[key]
		if g == nil {
			g = &group{
				ticketIDs: make(map[string]struct{}),
				trucks:    make(map[string]struct{}),
				haulers:   make(map[string]struct{}),
			}
			groups[key] = g
		}
		g.ticketIDs[t.TicketID] = struct{}{}
		if t.TruckID != nil {
			g.trucks[*t.TruckID] = struct{}{}
		}
		if t.HaulerID != nil {
			g.haulers[*t.HaulerID] = struct{}{}
		}

		if t.DispatchAssignedTS != nil && t.PodTS != nil {
			minutes := minutesBetween(*t.DispatchAssignedTS, *t.PodTS)
			g.delivery = append(g.delivery, minutes)
			flag := 0.0
			if minutes <= float64(slaMinutes) {
				flag = 1.0
			}
			g.onTime = append(g.onTime, flag)
		}
	}

	rows := make([]DispatchRow, 0, len(groups))
	for key, g := range groups {
		rows = append(rows, DispatchRow{
			ServiceDate:        key.date,
			LocationID:         key.location,
			Deliveries:         len(g.ticketIDs),
			AvgDeliveryMinutes: mean(g.delivery),
			OnTimeDeliveryRate: mean(g.onTime),
			ActiveTrucks:       len(g.trucks),
			ActiveHaulers:      len(g.haulers),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ServiceDate != rows[j].ServiceDate {
			return rows[i].ServiceDate < rows[j].ServiceDate
		}
		return rows[i].LocationID < rows[j].LocationID
	})
	return rows
}

// BuildBillingAR ages open invoices against the run date. Only invoices
// with a positive open balance contribute; a NULL due date counts in the
// totals but in no named bucket. Produces at most one row (the as-of date).
func BuildBillingAR(invoices []Invoice, asOf time.Time) []BillingARRow {
	asOfDay := payload.Midnight(asOf)

	row := BillingARRow{AsOfDate: asOfDay.Format(dateLayout)}
	customers := make(map[string]struct{})
	open := 0

	for _, inv := range invoices {
		if inv.OpenBalance == nil || *inv.OpenBalance <= 0 {
			continue
		}
		open++
		balance := *inv.OpenBalance
		row.TotalOpenAR += balance
		if inv.CustomerID != nil {
			customers[*inv.CustomerID] = struct{}{}
		}

		if inv.DueDate == nil {
			continue
		}
		due := *inv.DueDate
		switch {
		case !due.Before(asOfDay):
			row.ARCurrent += balance
		case !due.Before(asOfDay.AddDate(0, 0, -30)):
			row.AR1To30 += balance
		case !due.Before(asOfDay.AddDate(0, 0, -60)):
			row.AR31To60 += balance
		case !due.Before(asOfDay.AddDate(0, 0, -90)):
			row.AR61To90 += balance
		default:
			row.AR90Plus += balance
		}
	}

	if open == 0 {
		return nil
	}
	row.CustomersWithOpenAR = len(customers)
	return []BillingARRow{row}
}

// BuildHaulerProductivity aggregates tickets into per-(service_date,
// hauler) productivity, joined against per-(date, hauler) summed expected
// and paid pay. The bucketing date is the first non-nil of pod, ticket,
// loaded. Pay only joins for tickets with a resolvable hauler.
func BuildHaulerProductivity(tickets []Ticket, pay []HaulerPayItem) []HaulerProductivityRow {
	type haulerKey struct {
		date   string
		hauler string // "" means NULL hauler
	}
	type group struct {
		ticketIDs map[string]struct{}
		trucks    map[string]struct{}
		delivery  []float64
	}
	type paySum struct {
		expected []float64
		paid     []float64
	}

	groups := make(map[haulerKey]*group)
	for _, t := range tickets {
		bucket := coalesceTS(t.PodTS, t.TicketTS, t.LoadedTS)
		if bucket == nil {
			continue
		}
		key := haulerKey{
			date:   payload.Midnight(*bucket).Format(dateLayout),
			hauler: stringOr(t.HaulerID, ""),
		}

		g := groups[key]
		if g == nil {
			g = &group{
				ticketIDs: make(map[string]struct{}),
				trucks:    make(map[string]struct{}),
			}
			groups[key] = g
		}
		g.ticketIDs[t.TicketID] = struct{}{}
		if t.TruckID != nil {
			g.trucks[*t.TruckID] = struct{}{}
		}
		if t.DispatchAssignedTS != nil && t.PodTS != nil {
			g.delivery = append(g.delivery, minutesBetween(*t.DispatchAssignedTS, *t.PodTS))
		}
	}

	paySums := make(map[haulerKey]*paySum)
	for _, p := range pay {
		if p.PayDate == nil || p.HaulerID == nil {
			continue
		}
		key := haulerKey{date: p.PayDate.Format(dateLayout), hauler: *p.HaulerID}
		ps := paySums[key]
		if ps == nil {
			ps = &paySum{}
			paySums[key] = ps
		}
		if p.ExpectedAmount != nil {
			ps.expected = append(ps.expected, *p.ExpectedAmount)
		}
		if p.PaidAmount != nil {
			ps.paid = append(ps.paid, *p.PaidAmount)
		}
	}

	rows := make([]HaulerProductivityRow, 0, len(groups))
	for key, g := range groups {
		row := HaulerProductivityRow{
			ServiceDate:           key.date,
			LoadsCompleted:        len(g.ticketIDs),
			TrucksUsed:            len(g.trucks),
			ActiveDeliveryMinutes: sum(g.delivery),
		}
		if key.hauler != "" {
			hauler := key.hauler
			row.HaulerID = &hauler
			if ps := paySums[key]; ps != nil {
				row.ExpectedPay = sum(ps.expected)
				row.PaidPay = sum(ps.paid)
			}
		}
		row.PayVariancePct = payVariancePct(row.ExpectedPay, row.PaidPay)
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ServiceDate != rows[j].ServiceDate {
			return rows[i].ServiceDate < rows[j].ServiceDate
		}
		return stringOr(rows[i].HaulerID, "") < stringOr(rows[j].HaulerID, "")
	})
	return rows
}

// payVariancePct computes abs((paid - expected) / expected) * 100 with a
// missing paid amount treated as zero; nil when expected is missing or zero.
func payVariancePct(expected, paid *float64) *float64 {
	if expected == nil || *expected == 0 {
		return nil
	}
	p := 0.0
	if paid != nil {
		p = *paid
	}
	v := (p - *expected) / *expected * 100
	if v < 0 {
		v = -v
	}
	return &v
}

func stringOr(s *string, fallback string) string {
	if s != nil {
		return *s
	}
	return fallback
}
