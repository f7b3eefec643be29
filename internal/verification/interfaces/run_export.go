package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	verification "verify-thresholds/internal/verification/domain"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// BuildRunPDF renders a verification run report.
func BuildRunPDF(run *verification.Run) ([]byte, error) {
	if run == nil {
		return nil, fmt.Errorf("export pdf: nil run")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Verification Run")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Run: %s", run.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Tenant: %s", run.TenantID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Created: %s", run.CreatedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Passed: %d  Failed: %d", run.Passed, run.Failed))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(55, 6, "Spec", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Measured", "1", 0, "C", false, 0, "")
	pdf.CellFormat(15, 6, "Op", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Threshold", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Unit", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Result", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, v := range run.Verdicts {
		pdf.CellFormat(55, 6, v.SpecID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.4g", v.Measured), "1", 0, "R", false, 0, "")
		pdf.CellFormat(15, 6, v.Operator, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.4g", v.Threshold), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, v.Unit, "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, verdictLabel(v.Passed), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildRunXLSX renders a verification run as a workbook with a summary and a
// verdicts sheet.
func BuildRunXLSX(run *verification.Run) ([]byte, error) {
	if run == nil {
		return nil, fmt.Errorf("export xlsx: nil run")
	}
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	verdictSheet := "verdicts"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(verdictSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Verification Run")
	_ = f.SetCellValue(summarySheet, "A3", "Run")
	_ = f.SetCellValue(summarySheet, "B3", run.ID)
	_ = f.SetCellValue(summarySheet, "A4", "Tenant")
	_ = f.SetCellValue(summarySheet, "B4", run.TenantID)
	_ = f.SetCellValue(summarySheet, "A5", "Created")
	_ = f.SetCellValue(summarySheet, "B5", run.CreatedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A6", "Passed")
	_ = f.SetCellValue(summarySheet, "B6", run.Passed)
	_ = f.SetCellValue(summarySheet, "A7", "Failed")
	_ = f.SetCellValue(summarySheet, "B7", run.Failed)

	headers := []string{"Spec", "Package", "Metric", "Measured", "Operator", "Threshold", "Unit", "Result"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(verdictSheet, cell, header)
	}
	for i, v := range run.Verdicts {
		row := i + 2
		_ = f.SetCellValue(verdictSheet, fmt.Sprintf("A%d", row), v.SpecID)
		_ = f.SetCellValue(verdictSheet, fmt.Sprintf("B%d", row), v.Package)
		_ = f.SetCellValue(verdictSheet, fmt.Sprintf("C%d", row), v.MetricRef)
		_ = f.SetCellValue(verdictSheet, fmt.Sprintf("D%d", row), v.Measured)
		_ = f.SetCellValue(verdictSheet, fmt.Sprintf("E%d", row), v.Operator)
		_ = f.SetCellValue(verdictSheet, fmt.Sprintf("F%d", row), v.Threshold)
		_ = f.SetCellValue(verdictSheet, fmt.Sprintf("G%d", row), v.Unit)
		_ = f.SetCellValue(verdictSheet, fmt.Sprintf("H%d", row), verdictLabel(v.Passed))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func verdictLabel(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}
