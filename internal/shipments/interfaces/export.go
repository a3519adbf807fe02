package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	shipments "cargotrack-cloud/internal/shipments/domain"
	telemetry "cargotrack-cloud/internal/telemetry/domain"
)

// BuildShipmentPDF renders a tracking history report for a shipment.
func BuildShipmentPDF(shipment *shipments.Shipment, events []telemetry.LocationEvent) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Shipment Tracking Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Shipment: %s", shipment.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", shipment.Status))
	pdf.Ln(5)
	if shipment.OriginAddress != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Origin: %s", shipment.OriginAddress))
		pdf.Ln(5)
	}
	if shipment.DestinationAddress != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Destination: %s", shipment.DestinationAddress))
		pdf.Ln(5)
	}
	if !shipment.DeliveredAt.IsZero() {
		pdf.Cell(0, 6, fmt.Sprintf("Delivered: %s", shipment.DeliveredAt.Format(time.RFC3339)))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	// Position table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(55, 6, "Recorded At", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Latitude", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Longitude", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Battery %", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, event := range events {
		pdf.CellFormat(55, 6, event.RecordedAt.Format(time.RFC3339), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.6f", event.Latitude), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.6f", event.Longitude), "1", 0, "R", false, 0, "")
		battery := ""
		if event.Battery != nil {
			battery = fmt.Sprintf("%.0f", *event.Battery)
		}
		pdf.CellFormat(30, 6, battery, "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildShipmentXLSX renders a tracking history workbook for a shipment.
func BuildShipmentXLSX(shipment *shipments.Shipment, events []telemetry.LocationEvent) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	historySheet := "history"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(historySheet)

	_ = f.SetCellValue(summarySheet, "A1", "Shipment Tracking Report")
	_ = f.SetCellValue(summarySheet, "A3", "Shipment")
	_ = f.SetCellValue(summarySheet, "B3", shipment.ID)
	_ = f.SetCellValue(summarySheet, "A4", "Status")
	_ = f.SetCellValue(summarySheet, "B4", string(shipment.Status))
	_ = f.SetCellValue(summarySheet, "A5", "Origin")
	_ = f.SetCellValue(summarySheet, "B5", shipment.OriginAddress)
	_ = f.SetCellValue(summarySheet, "A6", "Destination")
	_ = f.SetCellValue(summarySheet, "B6", shipment.DestinationAddress)
	_ = f.SetCellValue(summarySheet, "A7", "Device")
	_ = f.SetCellValue(summarySheet, "B7", shipment.DeviceID)
	if !shipment.DeliveredAt.IsZero() {
		_ = f.SetCellValue(summarySheet, "A8", "Delivered")
		_ = f.SetCellValue(summarySheet, "B8", shipment.DeliveredAt.Format(time.RFC3339))
	}

	_ = f.SetCellValue(historySheet, "A1", "Recorded At")
	_ = f.SetCellValue(historySheet, "B1", "Latitude")
	_ = f.SetCellValue(historySheet, "C1", "Longitude")
	_ = f.SetCellValue(historySheet, "D1", "Battery %")
	_ = f.SetCellValue(historySheet, "E1", "Offline Sync")
	for i, event := range events {
		row := i + 2
		_ = f.SetCellValue(historySheet, fmt.Sprintf("A%d", row), event.RecordedAt.Format(time.RFC3339))
		_ = f.SetCellValue(historySheet, fmt.Sprintf("B%d", row), event.Latitude)
		_ = f.SetCellValue(historySheet, fmt.Sprintf("C%d", row), event.Longitude)
		if event.Battery != nil {
			_ = f.SetCellValue(historySheet, fmt.Sprintf("D%d", row), *event.Battery)
		}
		_ = f.SetCellValue(historySheet, fmt.Sprintf("E%d", row), event.IsOfflineSync)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
