package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"altotrafico-web/models"

	"github.com/xuri/excelize/v2"
)

const (
	ExportFormatJSON  = "json"
	ExportFormatExcel = "xlsx"

	auditSheet   = "Audit Log"
	summarySheet = "Summary"
)

// AuditExport is the JSON form of an audit log download.
type AuditExport struct {
	ExportDate time.Time           `json:"export_date"`
	Total      int                 `json:"total"`
	ChainValid bool                `json:"chain_valid"`
	BrokenAt   *int                `json:"broken_at,omitempty"`
	Events     []models.AuditEvent `json:"events"`
}

// File is a rendered download.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// ExportAuditLog renders events, oldest first, as JSON or an Excel workbook.
// The chain is verified over the same events and reported in the output.
func ExportAuditLog(events []models.AuditEvent, format string, now time.Time) (*File, error) {
	export := AuditExport{
		ExportDate: now.UTC(),
		Total:      len(events),
		ChainValid: true,
		Events:     events,
	}
	if i := models.VerifyChain(events); i >= 0 {
		export.ChainValid = false
		export.BrokenAt = &i
	}

	stamp := now.UTC().Format("20060102-150405")
	switch format {
	case ExportFormatJSON:
		data, err := json.MarshalIndent(export, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return &File{
			Name:        "audit-" + stamp + ".json",
			ContentType: "application/json",
			Data:        data,
		}, nil
	case ExportFormatExcel:
		data, err := auditWorkbook(&export)
		if err != nil {
			return nil, err
		}
		return &File{
			Name:        "audit-" + stamp + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", ErrInvalidPayload, format)
	}
}

var auditHeaders = []string{
	"Timestamp", "Username", "User ID", "Action", "Resource", "Status",
	"Success", "Error", "IP Address", "User Agent", "Request ID", "Changes", "Hash",
}

func auditWorkbook(export *AuditExport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(auditSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	if err := setRow(f, auditSheet, 1, toCells(auditHeaders)); err != nil {
		return nil, err
	}
	for i, e := range export.Events {
		changes := ""
		if len(e.Changes) > 0 {
			if b, err := json.Marshal(e.Changes); err == nil {
				changes = string(b)
			}
		}
		row := []interface{}{
			e.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			e.Username,
			e.UserID,
			e.Action,
			e.Resource,
			e.Status,
			e.Success,
			e.ErrorMessage,
			e.IPAddress,
			e.UserAgent,
			e.RequestID,
			changes,
			e.CurrentHash,
		}
		if err := setRow(f, auditSheet, i+2, row); err != nil {
			return nil, err
		}
	}
	last, _ := excelize.ColumnNumberToName(len(auditHeaders))
	if err := f.SetColWidth(auditSheet, "A", last, 18); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	brokenAt := ""
	if export.BrokenAt != nil {
		brokenAt = fmt.Sprint(*export.BrokenAt)
	}
	summary := [][]interface{}{
		{"Export Date", export.ExportDate.Format("2006-01-02 15:04:05")},
		{"Total Events", export.Total},
		{"Chain Valid", export.ChainValid},
		{"Broken At", brokenAt},
		{"", ""},
		{"Action", "Count"},
	}
	for _, c := range countActions(export.Events) {
		summary = append(summary, []interface{}{c.action, c.n})
	}
	for i, row := range summary {
		if err := setRow(f, summarySheet, i+1, row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

type actionCount struct {
	action string
	n      int
}

// countActions tallies events per action in order of first appearance.
func countActions(events []models.AuditEvent) []actionCount {
	var out []actionCount
	idx := make(map[string]int)
	for _, e := range events {
		a := strings.ToLower(e.Action)
		if i, ok := idx[a]; ok {
			out[i].n++
			continue
		}
		idx[a] = len(out)
		out = append(out, actionCount{action: a, n: 1})
	}
	return out
}
