package render

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/takefinance/payslip-archiver/internal/payroll"
)

// PDFRenderer renders payslips as A4 PDF documents: a banner header, the
// employee and calculation period, the bonus calculation table, the base
// payment table and the methodology text for the record's SLA ID.
type PDFRenderer struct {
	company      string
	currency     string
	descriptions *Descriptions
	now          Clock
}

// NewPDFRenderer creates a payslip PDF renderer.
func NewPDFRenderer(cfg Config, now Clock) *PDFRenderer {
	if now == nil {
		now = time.Now
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}
	return &PDFRenderer{
		company:      cfg.CompanyName,
		currency:     currency,
		descriptions: NewDescriptions(cfg.DescriptionsFile),
		now:          now,
	}
}

// Render implements Renderer.
func (r *PDFRenderer) Render(rec payroll.EmployeeRecord) ([]byte, error) {
	now := r.now()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(now)
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AddPage()

	r.header(pdf)
	r.employeeSection(pdf, rec, now)
	r.bonusSection(pdf, rec)
	r.baseSection(pdf, rec)
	r.methodologySection(pdf, rec)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: employee %s: %v", ErrRender, rec.ID, err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) header(pdf *gofpdf.Fpdf) {
	pdf.SetFillColor(211, 211, 211)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 16, "Bonuses list", "", 1, "R", true, 0, "")
	if r.company != "" {
		pdf.SetTextColor(128, 128, 128)
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 6, r.company, "", 1, "R", false, 0, "")
	}
	pdf.Ln(8)
}

func (r *PDFRenderer) employeeSection(pdf *gofpdf.Fpdf, rec payroll.EmployeeRecord, now time.Time) {
	period := quarterOf(now)

	pdf.SetTextColor(128, 128, 128)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(87, 6, "EMPLOYEE NAME", "B", 0, "L", false, 0, "")
	pdf.CellFormat(87, 6, "CALCULATION PERIOD", "B", 1, "L", false, 0, "")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(87, 10, rec.Name, "", 0, "L", false, 0, "")
	pdf.CellFormat(87, 10, period, "", 1, "L", false, 0, "")
	pdf.Ln(8)
}

func (r *PDFRenderer) bonusSection(pdf *gofpdf.Fpdf, rec payroll.EmployeeRecord) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Bonus calculation", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	headers := []string{
		"% of SLA achievement",
		fmt.Sprintf("Bonus, %s", r.currency),
		fmt.Sprintf("Bonus fin, %s", r.currency),
		"Bonus in local currency",
	}
	values := []string{
		fmt.Sprintf("%.1f%%", rec.Num(payroll.FieldSLA)*100),
		money(rec.Num(payroll.FieldBonusUSD)),
		money(rec.Num(payroll.FieldBonusUSDFin)),
		money(rec.Num(payroll.FieldBonusLocal)),
	}
	r.table(pdf, headers, values)
	pdf.Ln(8)
}

func (r *PDFRenderer) baseSection(pdf *gofpdf.Fpdf, rec payroll.EmployeeRecord) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Base payment", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	headers := []string{
		"Base",
		"Base periods",
		"% from the base",
		"Payment",
	}
	values := []string{
		money(rec.Base),
		fmt.Sprintf("%.0f", rec.Num(payroll.FieldBasePeriods)),
		fmt.Sprintf("%.1f%%", rec.Num(payroll.FieldPctFromBase)*100),
		money(rec.Num(payroll.FieldPayment)),
	}
	r.table(pdf, headers, values)
	pdf.Ln(8)
}

func (r *PDFRenderer) methodologySection(pdf *gofpdf.Fpdf, rec payroll.EmployeeRecord) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 7, "Calculation methodology", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(96, 96, 96)
	pdf.MultiCell(0, 5, r.descriptions.ForSLA(rec.SLAID()), "", "L", false)
	pdf.SetTextColor(0, 0, 0)
}

// table draws a one-row table with a grey header row.
func (r *PDFRenderer) table(pdf *gofpdf.Fpdf, headers, values []string) {
	w := 174.0 / float64(len(headers))

	pdf.SetFillColor(240, 240, 240)
	pdf.SetTextColor(96, 96, 96)
	pdf.SetFont("Helvetica", "B", 9)
	for _, h := range headers {
		pdf.CellFormat(w, 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 10)
	for _, v := range values {
		pdf.CellFormat(w, 8, v, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
