package alerts

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/warehouse"
)

// LoadSnapshot reads the evaluator's inputs from the gold tables. The
// tables exist only after a rebuild; evaluating a warehouse that has never
// been modeled fails with a hint rather than a bare driver error.
func LoadSnapshot(ctx context.Context, wh *warehouse.Warehouse) (*Snapshot, error) {
	snap := &Snapshot{}

	rows, err := wh.Query(ctx, `
		SELECT service_date, location_id, avg_time_in_yard_minutes, avg_load_variance_pct
		FROM gold_plant_ops_daily
	`)
	if err != nil {
		return nil, snapshotErr("gold_plant_ops_daily", err)
	}
	for rows.Next() {
		var (
			m        PlantOpsMetric
			yard     sql.NullFloat64
			variance sql.NullFloat64
		)
		if err := rows.Scan(&m.ServiceDate, &m.LocationID, &yard, &variance); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan gold_plant_ops_daily: %w", err)
		}
		if yard.Valid {
			m.AvgTimeInYardMinutes = &yard.Float64
		}
		if variance.Valid {
			m.AvgLoadVariancePct = &variance.Float64
		}
		snap.PlantOps = append(snap.PlantOps, m)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = wh.Query(ctx, `
		SELECT service_date, location_id, avg_delivery_minutes
		FROM gold_dispatch_daily
	`)
	if err != nil {
		return nil, snapshotErr("gold_dispatch_daily", err)
	}
	for rows.Next() {
		var (
			m        DispatchMetric
			delivery sql.NullFloat64
		)
		if err := rows.Scan(&m.ServiceDate, &m.LocationID, &delivery); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan gold_dispatch_daily: %w", err)
		}
		if delivery.Valid {
			m.AvgDeliveryMinutes = &delivery.Float64
		}
		snap.Dispatch = append(snap.Dispatch, m)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = wh.Query(ctx, `
		SELECT as_of_date, ar_90_plus
		FROM gold_billing_ar_daily
	`)
	if err != nil {
		return nil, snapshotErr("gold_billing_ar_daily", err)
	}
	for rows.Next() {
		var m BillingARMetric
		if err := rows.Scan(&m.AsOfDate, &m.AR90Plus); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan gold_billing_ar_daily: %w", err)
		}
		snap.BillingAR = append(snap.BillingAR, m)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	return snap, nil
}

func snapshotErr(table string, err error) error {
	if strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("read %s: aggregates have not been built yet, run a model rebuild first: %w", table, err)
	}
	return fmt.Errorf("read %s: %w", table, err)
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}
