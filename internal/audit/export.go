package audit

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const utf8BOM = "\ufeff"

var exportHeader = []string{
	"ID",
	"Created At",
	"User ID",
	"Action",
	"Resource Type",
	"Resource ID",
	"Resource Title",
	"Details",
	"IP Address",
	"User Agent",
}

func exportRow(l *Log) []string {
	return []string{
		l.ID,
		l.CreatedAt.UTC().Format(time.RFC3339),
		deref(l.UserID),
		l.Action,
		l.ResourceType,
		deref(l.ResourceID),
		deref(l.ResourceTitle),
		string(l.Details),
		deref(l.IPAddress),
		deref(l.UserAgent),
	}
}

// RenderCSV writes a BOM-prefixed CSV in which every field is quoted.
// encoding/csv only quotes fields that need it, so rows are built by hand.
func RenderCSV(logs []*Log) []byte {
	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	writeCSVRow(&buf, exportHeader)
	for _, l := range logs {
		writeCSVRow(&buf, exportRow(l))
	}
	return buf.Bytes()
}

func writeCSVRow(buf *bytes.Buffer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(QuoteCSV(f))
	}
	buf.WriteString("\r\n")
}

// QuoteCSV wraps s in double quotes, doubling any quote inside it.
func QuoteCSV(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func RenderXLSX(logs []*Log) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Activity Logs"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeSheetRow(f, sheet, 1, exportHeader); err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeader), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i, l := range logs {
		if err := writeSheetRow(f, sheet, i+2, exportRow(l)); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheetRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
