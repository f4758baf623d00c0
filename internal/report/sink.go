package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the workbook.
const (
	SheetDevices    = "Devices"
	SheetInterfaces = "Interfaces"
	SheetFailures   = "Failures"
)

// Sink persists an aggregate report.
type Sink interface {
	Write(agg AggregateReport) error
}

// XLSXSink writes a workbook with one sheet per table.
type XLSXSink struct {
	Path string
}

func (s XLSXSink) Write(agg AggregateReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetDevices); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetInterfaces); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", SheetInterfaces, err)
	}
	if _, err := f.NewSheet(SheetFailures); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", SheetFailures, err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeTable(f, SheetDevices, agg.Devices, header); err != nil {
		return err
	}
	if err := writeTable(f, SheetInterfaces, agg.Interfaces, header); err != nil {
		return err
	}

	failures := Table{Columns: []string{ColumnAddress, "stage", "error"}}
	for _, fr := range agg.Failures {
		failures.Rows = append(failures.Rows, []Cell{Text(fr.Address), Text(fr.Stage), Text(fr.Error)})
	}
	if err := writeTable(f, SheetFailures, failures, header); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := f.SaveAs(s.Path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", s.Path, err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, t Table, headerStyle int) error {
	headers := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		headers[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}

	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for j, c := range row {
			values[j] = c.Interface()
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// JSONSink writes the aggregate as indented JSON.
type JSONSink struct {
	Path string
}

func (s JSONSink) Write(agg AggregateReport) error {
	data, err := json.MarshalIndent(agg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(s.Path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.Path, err)
	}
	return nil
}
