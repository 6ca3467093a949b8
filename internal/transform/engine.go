package transform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/warehouse"
)

// Engine rebuilds the silver and gold tables from bronze_events. Rebuilds
// are destructive full replacements inside a single transaction, so readers
// either see the previous generation or the new one, never a mix.
type Engine struct {
	wh         *warehouse.Warehouse
	slaMinutes int
	now        func() time.Time
	log        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock used for the AR as-of date.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// NewEngine returns an Engine writing to wh. slaMinutes is the dispatch
// on-time threshold from dispatch assignment to proof of delivery.
func NewEngine(wh *warehouse.Warehouse, slaMinutes int, opts ...Option) *Engine {
	e := &Engine{
		wh:         wh,
		slaMinutes: slaMinutes,
		now:        time.Now,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RebuildResult reports per-table row counts from one rebuild.
type RebuildResult struct {
	SilverRows map[string]int
	GoldRows   map[string]int
}

// Rebuild replaces all silver and gold tables from the current bronze log.
// Bronze is read up front; the connection pool is sized to a single
// connection, so all reads must finish before the write transaction opens.
func (e *Engine) Rebuild(ctx context.Context) (*RebuildResult, error) {
	set, err := e.loadNormalized(ctx)
	if err != nil {
		return nil, err
	}

	plantOps := BuildPlantOps(set.Tickets)
	dispatch := BuildDispatch(set.Tickets, e.slaMinutes)
	billing := BuildBillingAR(set.Invoices, e.now())
	hauler := BuildHaulerProductivity(set.Tickets, set.HaulerPay)

	tx, err := e.wh.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin rebuild: %w", err)
	}
	defer tx.Rollback()

	if err := writeSilver(tx, set); err != nil {
		return nil, err
	}
	if err := writeGold(tx, plantOps, dispatch, billing, hauler); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit rebuild: %w", err)
	}

	result := &RebuildResult{
		SilverRows: map[string]int{
			"silver_tickets":         len(set.Tickets),
			"silver_orders":          len(set.Orders),
			"silver_dispatch_events": len(set.DispatchEvents),
			"silver_customers":       len(set.Customers),
			"silver_invoices":        len(set.Invoices),
			"silver_hauler_pay":      len(set.HaulerPay),
		},
		GoldRows: map[string]int{
			"gold_plant_ops_daily":           len(plantOps),
			"gold_dispatch_daily":            len(dispatch),
			"gold_billing_ar_daily":          len(billing),
			"gold_hauler_productivity_daily": len(hauler),
		},
	}
	e.log.Info("warehouse rebuilt",
		"tickets", len(set.Tickets),
		"invoices", len(set.Invoices),
		"plant_ops_rows", len(plantOps),
		"dispatch_rows", len(dispatch),
		"billing_rows", len(billing),
		"hauler_rows", len(hauler))
	return result, nil
}

// loadNormalized reads every bronze entity and collapses it to current
// records.
func (e *Engine) loadNormalized(ctx context.Context) (*NormalizedSet, error) {
	set := &NormalizedSet{}
	for _, kind := range []string{
		KindTickets, KindOrders, KindDispatchEvents,
		KindCustomers, KindInvoices, KindHaulerPay,
	} {
		events, err := e.wh.ReadRawEvents(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("read bronze %s: %w", kind, err)
		}
		switch kind {
		case KindTickets:
			set.Tickets = normalizeTickets(events)
		case KindOrders:
			set.Orders = normalizeOrders(events)
		case KindDispatchEvents:
			set.DispatchEvents = normalizeDispatchEvents(events)
		case KindCustomers:
			set.Customers = normalizeCustomers(events)
		case KindInvoices:
			set.Invoices = normalizeInvoices(events)
		case KindHaulerPay:
			set.HaulerPay = normalizeHaulerPay(events)
		}
	}
	return set, nil
}

const silverDDL = `
DROP TABLE IF EXISTS silver_tickets;
CREATE TABLE silver_tickets (
	ticket_id            TEXT PRIMARY KEY,
	order_id             TEXT,
	customer_id          TEXT,
	location_id          TEXT,
	lane_id              TEXT,
	product_id           TEXT,
	product_name         TEXT,
	unit_of_measure      TEXT,
	target_weight        REAL,
	net_weight           REAL,
	check_in_ts          TEXT,
	loaded_ts            TEXT,
	ticket_ts            TEXT,
	dispatch_assigned_ts TEXT,
	pod_ts               TEXT,
	status               TEXT NOT NULL,
	truck_id             TEXT,
	hauler_id            TEXT,
	record_updated_at    TEXT
);

DROP TABLE IF EXISTS silver_orders;
CREATE TABLE silver_orders (
	order_id          TEXT PRIMARY KEY,
	job_id            TEXT,
	phase_id          TEXT,
	customer_id       TEXT,
	status            TEXT NOT NULL,
	scheduled_date    TEXT,
	record_updated_at TEXT
);

DROP TABLE IF EXISTS silver_dispatch_events;
CREATE TABLE silver_dispatch_events (
	dispatch_event_id TEXT PRIMARY KEY,
	ticket_id         TEXT,
	truck_id          TEXT,
	hauler_id         TEXT,
	event_type        TEXT NOT NULL,
	event_ts          TEXT,
	latitude          REAL,
	longitude         REAL,
	record_updated_at TEXT
);

DROP TABLE IF EXISTS silver_customers;
CREATE TABLE silver_customers (
	customer_id       TEXT PRIMARY KEY,
	customer_name     TEXT,
	customer_segment  TEXT NOT NULL,
	region            TEXT NOT NULL,
	record_updated_at TEXT
);

DROP TABLE IF EXISTS silver_invoices;
CREATE TABLE silver_invoices (
	invoice_id        TEXT PRIMARY KEY,
	customer_id       TEXT,
	invoice_date      TEXT,
	due_date          TEXT,
	invoice_amount    REAL,
	open_balance      REAL,
	status            TEXT NOT NULL,
	record_updated_at TEXT
);

DROP TABLE IF EXISTS silver_hauler_pay;
CREATE TABLE silver_hauler_pay (
	pay_item_id       TEXT PRIMARY KEY,
	hauler_id         TEXT,
	ticket_id         TEXT,
	expected_amount   REAL,
	paid_amount       REAL,
	pay_date          TEXT,
	record_updated_at TEXT
);
`

const goldDDL = `
DROP TABLE IF EXISTS gold_plant_ops_daily;
CREATE TABLE gold_plant_ops_daily (
	service_date               TEXT NOT NULL,
	location_id                TEXT NOT NULL,
	tickets_count              INTEGER NOT NULL,
	avg_time_in_yard_minutes   REAL,
	avg_time_to_ticket_minutes REAL,
	avg_load_variance_pct      REAL,
	high_variance_rate         REAL,
	active_lanes               INTEGER NOT NULL,
	total_lane_hours           REAL NOT NULL,
	tickets_per_lane_hour      REAL,
	PRIMARY KEY (service_date, location_id)
);

DROP TABLE IF EXISTS gold_dispatch_daily;
CREATE TABLE gold_dispatch_daily (
	service_date          TEXT NOT NULL,
	location_id           TEXT NOT NULL,
	deliveries            INTEGER NOT NULL,
	avg_delivery_minutes  REAL,
	on_time_delivery_rate REAL,
	active_trucks         INTEGER NOT NULL,
	active_haulers        INTEGER NOT NULL,
	PRIMARY KEY (service_date, location_id)
);

DROP TABLE IF EXISTS gold_billing_ar_daily;
CREATE TABLE gold_billing_ar_daily (
	as_of_date             TEXT PRIMARY KEY,
	total_open_ar          REAL NOT NULL,
	ar_current             REAL NOT NULL,
	ar_1_30                REAL NOT NULL,
	ar_31_60               REAL NOT NULL,
	ar_61_90               REAL NOT NULL,
	ar_90_plus             REAL NOT NULL,
	customers_with_open_ar INTEGER NOT NULL
);

DROP TABLE IF EXISTS gold_hauler_productivity_daily;
CREATE TABLE gold_hauler_productivity_daily (
	service_date            TEXT NOT NULL,
	hauler_id               TEXT,
	loads_completed         INTEGER NOT NULL,
	trucks_used             INTEGER NOT NULL,
	active_delivery_minutes REAL,
	expected_pay            REAL,
	paid_pay                REAL,
	pay_variance_pct        REAL
);
`

// tsText renders an optional timestamp as RFC3339 UTC text for storage.
func tsText(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// dateText renders an optional date-valued timestamp as YYYY-MM-DD text.
func dateText(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func writeSilver(tx warehouse.Execer, set *NormalizedSet) error {
	if _, err := tx.Exec(silverDDL); err != nil {
		return fmt.Errorf("create silver tables: %w", err)
	}

	for _, t := range set.Tickets {
		_, err := tx.Exec(`INSERT INTO silver_tickets (
			ticket_id, order_id, customer_id, location_id, lane_id,
			product_id, product_name, unit_of_measure, target_weight, net_weight,
			check_in_ts, loaded_ts, ticket_ts, dispatch_assigned_ts, pod_ts,
			status, truck_id, hauler_id, record_updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.TicketID, t.OrderID, t.CustomerID, t.LocationID, t.LaneID,
			t.ProductID, t.ProductName, t.UnitOfMeasure, t.TargetWeight, t.NetWeight,
			tsText(t.CheckInTS), tsText(t.LoadedTS), tsText(t.TicketTS),
			tsText(t.DispatchAssignedTS), tsText(t.PodTS),
			t.Status, t.TruckID, t.HaulerID, tsText(t.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert silver ticket %s: %w", t.TicketID, err)
		}
	}
	for _, o := range set.Orders {
		_, err := tx.Exec(`INSERT INTO silver_orders (
			order_id, job_id, phase_id, customer_id, status, scheduled_date, record_updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			o.OrderID, o.JobID, o.PhaseID, o.CustomerID, o.Status,
			dateText(o.ScheduledDate), tsText(o.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert silver order %s: %w", o.OrderID, err)
		}
	}
	for _, d := range set.DispatchEvents {
		_, err := tx.Exec(`INSERT INTO silver_dispatch_events (
			dispatch_event_id, ticket_id, truck_id, hauler_id, event_type,
			event_ts, latitude, longitude, record_updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.DispatchEventID, d.TicketID, d.TruckID, d.HaulerID, d.EventType,
			tsText(d.EventTS), d.Latitude, d.Longitude, tsText(d.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert silver dispatch event %s: %w", d.DispatchEventID, err)
		}
	}
	for _, c := range set.Customers {
		_, err := tx.Exec(`INSERT INTO silver_customers (
			customer_id, customer_name, customer_segment, region, record_updated_at
		) VALUES (?, ?, ?, ?, ?)`,
			c.CustomerID, c.CustomerName, c.CustomerSegment, c.Region, tsText(c.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert silver customer %s: %w", c.CustomerID, err)
		}
	}
	for _, inv := range set.Invoices {
		_, err := tx.Exec(`INSERT INTO silver_invoices (
			invoice_id, customer_id, invoice_date, due_date,
			invoice_amount, open_balance, status, record_updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			inv.InvoiceID, inv.CustomerID, dateText(inv.InvoiceDate), dateText(inv.DueDate),
			inv.InvoiceAmount, inv.OpenBalance, inv.Status, tsText(inv.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert silver invoice %s: %w", inv.InvoiceID, err)
		}
	}
	for _, p := range set.HaulerPay {
		_, err := tx.Exec(`INSERT INTO silver_hauler_pay (
			pay_item_id, hauler_id, ticket_id, expected_amount,
			paid_amount, pay_date, record_updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.PayItemID, p.HaulerID, p.TicketID, p.ExpectedAmount,
			p.PaidAmount, dateText(p.PayDate), tsText(p.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert silver pay item %s: %w", p.PayItemID, err)
		}
	}
	return nil
}

func writeGold(tx warehouse.Execer, plantOps []PlantOpsRow, dispatch []DispatchRow, billing []BillingARRow, hauler []HaulerProductivityRow) error {
	if _, err := tx.Exec(goldDDL); err != nil {
		return fmt.Errorf("create gold tables: %w", err)
	}

	for _, r := range plantOps {
		_, err := tx.Exec(`INSERT INTO gold_plant_ops_daily (
			service_date, location_id, tickets_count,
			avg_time_in_yard_minutes, avg_time_to_ticket_minutes,
			avg_load_variance_pct, high_variance_rate,
			active_lanes, total_lane_hours, tickets_per_lane_hour
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ServiceDate, r.LocationID, r.TicketsCount,
			r.AvgTimeInYardMinutes, r.AvgTimeToTicketMinutes,
			r.AvgLoadVariancePct, r.HighVarianceRate,
			r.ActiveLanes, r.TotalLaneHours, r.TicketsPerLaneHour)
		if err != nil {
			return fmt.Errorf("insert plant ops row %s/%s: %w", r.ServiceDate, r.LocationID, err)
		}
	}
	for _, r := range dispatch {
		_, err := tx.Exec(`INSERT INTO gold_dispatch_daily (
			service_date, location_id, deliveries,
			avg_delivery_minutes, on_time_delivery_rate,
			active_trucks, active_haulers
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ServiceDate, r.LocationID, r.Deliveries,
			r.AvgDeliveryMinutes, r.OnTimeDeliveryRate,
			r.ActiveTrucks, r.ActiveHaulers)
		if err != nil {
			return fmt.Errorf("insert dispatch row %s/%s: %w", r.ServiceDate, r.LocationID, err)
		}
	}
	for _, r := range billing {
		_, err := tx.Exec(`INSERT INTO gold_billing_ar_daily (
			as_of_date, total_open_ar, ar_current, ar_1_30,
			ar_31_60, ar_61_90, ar_90_plus, customers_with_open_ar
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.AsOfDate, r.TotalOpenAR, r.ARCurrent, r.AR1To30,
			r.AR31To60, r.AR61To90, r.AR90Plus, r.CustomersWithOpenAR)
		if err != nil {
			return fmt.Errorf("insert billing row %s: %w", r.AsOfDate, err)
		}
	}
	for _, r := range hauler {
		_, err := tx.Exec(`INSERT INTO gold_hauler_productivity_daily (
			service_date, hauler_id, loads_completed, trucks_used,
			active_delivery_minutes, expected_pay, paid_pay, pay_variance_pct
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ServiceDate, r.HaulerID, r.LoadsCompleted, r.TrucksUsed,
			r.ActiveDeliveryMinutes, r.ExpectedPay, r.PaidPay, r.PayVariancePct)
		if err != nil {
			return fmt.Errorf("insert hauler row %s: %w", r.ServiceDate, err)
		}
	}
	return nil
}
