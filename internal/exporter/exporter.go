// Package exporter writes derived metric points to report files: an
// Excel workbook with one sheet per metric, or a flat CSV per metric.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"macromon/internal/calendar"
	"macromon/internal/storage"
)

// Exporter reads metric points and writes report files under Dir.
type Exporter struct {
	reader storage.MetricsReader
	dir    string
	logger *slog.Logger
}

// New creates an exporter writing into dir.
func New(reader storage.MetricsReader, dir string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		reader: reader,
		dir:    dir,
		logger: logger.With(slog.String("component", "exporter")),
	}
}

// ExportWorkbook writes one sheet per metric id covering [from, to] and
// returns the workbook path. Metrics with no points in range get no
// sheet; a workbook with zero data sheets is an error.
func (e *Exporter) ExportWorkbook(ctx context.Context, metricIDs []string, from, to time.Time, filename string) (string, error) {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheets := 0
	for _, metricID := range metricIDs {
		points, err := e.reader.GetMetricPoints(ctx, metricID, from, to)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				e.logger.DebugContext(ctx, "no points in range, skipping sheet",
					slog.String("metric_id", metricID))
				continue
			}
			return "", fmt.Errorf("reading metric %s: %w", metricID, err)
		}

		sheet := sheetName(metricID)
		if _, err := f.NewSheet(sheet); err != nil {
			return "", fmt.Errorf("creating sheet %s: %w", sheet, err)
		}

		headers := []string{"Date", "Value", "Unit", "Reference Date", "Reference Value"}
		for col, header := range headers {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			f.SetCellValue(sheet, cell, header)
		}

		for row, p := range points {
			values := []interface{}{
				p.Date.Format(calendar.DateFormat),
				p.Value,
				p.Metadata.Unit,
				p.Metadata.ReferenceDate,
				p.Metadata.Reference,
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
				f.SetCellValue(sheet, cell, v)
			}
		}
		sheets++
	}

	if sheets == 0 {
		return "", fmt.Errorf("no metric points in range %s to %s",
			from.Format(calendar.DateFormat), to.Format(calendar.DateFormat))
	}

	// Drop the default empty sheet.
	f.DeleteSheet("Sheet1")

	path := filepath.Join(e.dir, filename)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("saving workbook: %w", err)
	}

	e.logger.InfoContext(ctx, "workbook exported",
		slog.String("path", path),
		slog.Int("sheets", sheets))
	return path, nil
}

// ExportCSV writes one metric's points as CSV and returns the file
// path.
func (e *Exporter) ExportCSV(ctx context.Context, metricID string, from, to time.Time) (string, error) {
	points, err := e.reader.GetMetricPoints(ctx, metricID, from, to)
	if err != nil {
		return "", fmt.Errorf("reading metric %s: %w", metricID, err)
	}

	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(e.dir, fileBase(metricID)+".csv")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	var b strings.Builder
	b.WriteString("date,value,unit\n")
	for _, p := range points {
		fmt.Fprintf(&b, "%s,%g,%s\n", p.Date.Format(calendar.DateFormat), p.Value, p.Metadata.Unit)
	}
	if _, err := file.WriteString(b.String()); err != nil {
		return "", fmt.Errorf("failed to write records: %w", err)
	}

	e.logger.InfoContext(ctx, "csv exported",
		slog.String("path", path),
		slog.Int("records", len(points)))
	return path, nil
}

// sheetName makes a metric id safe as an Excel sheet name. Sheet names
// cap at 31 characters and reject a handful of punctuation.
func sheetName(metricID string) string {
	name := strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_").
		Replace(metricID)
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

func fileBase(metricID string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, metricID)
}
