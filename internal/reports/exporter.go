// Package reports exports the gold tables as CSV files for downstream
// spreadsheet users. Each run writes a fresh timestamped directory; an
// optional shared-drive mirror receives a copy of every file.
package reports

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/warehouse"
)

// goldTables lists what gets exported, in output order.
var goldTables = []string{
	"gold_plant_ops_daily",
	"gold_dispatch_daily",
	"gold_billing_ar_daily",
	"gold_hauler_productivity_daily",
}

// Exporter writes gold-table CSV snapshots.
type Exporter struct {
	wh          *warehouse.Warehouse
	outputDir   string
	sharedDrive string
	now         func() time.Time
	log         *slog.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithClock overrides the wall clock used for directory timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Exporter) { e.log = log }
}

// WithSharedDrive mirrors every exported file into the given directory.
func WithSharedDrive(path string) Option {
	return func(e *Exporter) { e.sharedDrive = path }
}

// NewExporter returns an Exporter writing under outputDir/reports.
func NewExporter(wh *warehouse.Warehouse, outputDir string, opts ...Option) *Exporter {
	e := &Exporter{
		wh:        wh,
		outputDir: outputDir,
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExportResult records where one export landed.
type ExportResult struct {
	Dir   string
	Files []string
}

// Export writes one CSV per gold table into a new timestamped directory.
func (e *Exporter) Export(ctx context.Context) (*ExportResult, error) {
	dir := filepath.Join(e.outputDir, "reports", e.now().UTC().Format("20060102T150405Z"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}

	result := &ExportResult{Dir: dir}
	for _, table := range goldTables {
		path := filepath.Join(dir, table+".csv")
		if err := e.exportTable(ctx, table, path); err != nil {
			return nil, err
		}
		result.Files = append(result.Files, path)
	}

	if e.sharedDrive != "" {
		if err := e.mirror(result); err != nil {
			return nil, err
		}
	}

	e.log.Info("reports exported", "dir", dir, "files", len(result.Files))
	return result, nil
}

func (e *Exporter) exportTable(ctx context.Context, table, path string) error {
	rows, err := e.wh.Query(ctx, "SELECT * FROM "+table)
	if err != nil {
		return fmt.Errorf("export %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("export %s: %w", table, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export %s: %w", table, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(cols); err != nil {
		return fmt.Errorf("export %s: %w", table, err)
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	record := make([]string, len(cols))

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("export %s: scan: %w", table, err)
		}
		for i, v := range values {
			record[i] = formatValue(v)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("export %s: %w", table, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("export %s: %w", table, err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("export %s: flush: %w", table, err)
	}
	return f.Close()
}

// formatValue renders one SQLite value as CSV text. NULL becomes the empty
// string; REAL values drop trailing zeros so identical rebuilds export
// identical bytes.
func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// mirror copies the exported files into the shared drive, preserving the
// timestamped directory name.
func (e *Exporter) mirror(result *ExportResult) error {
	dest := filepath.Join(e.sharedDrive, filepath.Base(result.Dir))
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create shared drive directory: %w", err)
	}
	for _, file := range result.Files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("mirror %s: %w", file, err)
		}
		target := filepath.Join(dest, filepath.Base(file))
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return fmt.Errorf("mirror %s: %w", file, err)
		}
	}
	return nil
}
