package ioparquet

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/efxlab/simulator/internal/handler"
)

// WriteSnapshots writes every snapshot record in records to a Parquet
// file, for downstream analytics — the Go equivalent of the original's
// write_snapshots_parquet. Non-snapshot records are ignored.
func WriteSnapshots(records []handler.Record, path string, logger *slog.Logger) error {
	var rows []SnapshotRecord
	for _, rec := range records {
		if rec.RecordType != handler.TypeSnapshot {
			continue
		}
		row, err := snapshotToRow(rec)
		if err != nil {
			return fmt.Errorf("ioparquet: snapshot at %s: %w", rec.Timestamp, err)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		logger.Warn("no_snapshots_to_write")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ioparquet: mkdir for %s: %w", path, err)
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("ioparquet: write %s: %w", path, err)
	}

	logger.Info("snapshots_written", "path", path, "count", len(rows))
	return nil
}

func snapshotToRow(rec handler.Record) (SnapshotRecord, error) {
	tickLabel, _ := rec.Data["tick_label"].(string)
	eventCount, _ := rec.Data["event_count"].(int64)
	reportingCurrency, _ := rec.Data["reporting_currency"].(string)
	totalEquity, _ := rec.Data["total_equity_reporting"].(string)

	cashJSON, err := json.Marshal(rec.Data["cash_balances"])
	if err != nil {
		return SnapshotRecord{}, err
	}
	positionsJSON, err := json.Marshal(rec.Data["positions"])
	if err != nil {
		return SnapshotRecord{}, err
	}
	exposuresJSON, err := json.Marshal(rec.Data["exposures"])
	if err != nil {
		return SnapshotRecord{}, err
	}

	return SnapshotRecord{
		TimestampMicros:      rec.Timestamp.UnixMicro(),
		TickLabel:            tickLabel,
		EventCount:           eventCount,
		ReportingCurrency:    reportingCurrency,
		TotalEquityReporting: totalEquity,
		CashBalancesJSON:     string(cashJSON),
		PositionsJSON:        string(positionsJSON),
		ExposuresJSON:        string(exposuresJSON),
	}, nil
}
