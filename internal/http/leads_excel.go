package httpapi

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"opsdesk/internal/domain"
)

// leadExportHeader column order of the pipeline export.
var leadExportHeader = []string{
	"Company",
	"Contact",
	"Phone",
	"Email",
	"Status",
	"Owner",
	"Source",
	"Loss Reason",
	"Created",
	"Updated",
}

// generateLeadExport renders the lead pipeline as an xlsx workbook.
func generateLeadExport(leads []*domain.Lead) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo needs the file open, close only on the error paths.

	sheetName := "Leads"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, title := range leadExportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheetName, cell, title)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, lead := range leads {
		row := i + 2
		values := []any{
			lead.CompanyName,
			lead.ContactName,
			lead.Phone,
			lead.Email,
			string(lead.Status),
			lead.OwnerUserID,
			lead.LeadSource,
			lead.LossReason,
			lead.CreatedAt.Format(time.RFC3339),
			lead.UpdatedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}
