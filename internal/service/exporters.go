package service

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"wastemon/api/internal/models"
)

var historyHeader = []string{
	"Código", "Fecha", "Distrito", "Tipo de residuo", "No. recibo",
	"Responsable", "Empresa", "Total lb", "% llenado", "% recolectado",
	"% pendiente", "Lb pendientes", "Costo Q/lb", "Total Q", "Observaciones",
}

func historyRow(d models.CollectionDetail, w models.WeighingRow) []string {
	return []string{
		d.ContainerCode,
		d.CollectedAt,
		d.District,
		d.WasteType,
		d.ReceiptNumber,
		d.Responsible,
		d.Company,
		formatOptional(w.TotalLb),
		formatOptional(w.FillPercent),
		formatOptional(w.PercentCollected),
		strconv.FormatFloat(d.PendingPercent, 'f', 2, 64),
		strconv.FormatFloat(d.PendingLb, 'f', 2, 64),
		formatOptional(w.CostPerLb),
		formatOptional(w.TotalCost),
		d.Notes,
	}
}

func renderHistoryExcel(details []models.CollectionDetail, weighing []models.WeighingRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Historial"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(historyHeader))
	for i, h := range historyHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, d := range details {
		row := make([]interface{}, 0, len(historyHeader))
		for _, v := range historyRow(d, weighing[i]) {
			row = append(row, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func renderHistoryPDF(details []models.CollectionDetail, weighing []models.WeighingRow) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr("Historial de recolección"), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, tr("Historial de recolección"), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	widths := []float64{18, 22, 20, 24, 18, 24, 24, 15, 15, 18, 16, 18, 15, 15, 15}

	pdf.SetFont("Helvetica", "B", 6.5)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range historyHeader {
		pdf.CellFormat(widths[i], 6, tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 6.5)
	for i, d := range details {
		for j, v := range historyRow(d, weighing[i]) {
			pdf.CellFormat(widths[j], 5, tr(v), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
