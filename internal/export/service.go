package export

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"fattura/internal/core"
)

// Service produces XLSX bytes for invoice documents and analytics
// reports. It holds no storage; callers hand it the already-loaded
// records.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// InvoiceXLSX renders a single invoice as a printable workbook: seller
// block, buyer block, line table, totals and a UPI payment link when
// the profile carries a UPI ID.
func (s *Service) InvoiceXLSX(ctx context.Context, inv core.Invoice, profile *core.Profile) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Invoice"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if defaultSheet, _ := f.GetSheetIndex("Sheet1"); defaultSheet != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	// Seller block
	row := 1
	if profile != nil {
		write(1, row, profile.Company)
		row++
		if profile.Address != "" {
			write(1, row, profile.Address)
			row++
		}
		if profile.TaxID != "" {
			write(1, row, "Tax ID: "+profile.TaxID)
			row++
		}
		if profile.Phone != "" || profile.Email != "" {
			write(1, row, strings.TrimSpace(profile.Phone+"  "+profile.Email))
			row++
		}
	}
	row++

	write(1, row, "Invoice")
	write(2, row, inv.Number)
	row++
	write(1, row, "Date")
	write(2, row, inv.CreatedAt.Format("2006-01-02"))
	row++
	if !inv.DueDate.IsZero() {
		write(1, row, "Due")
		write(2, row, inv.DueDate.Format("2006-01-02"))
		row++
	}
	write(1, row, "Status")
	write(2, row, string(inv.Status))
	row += 2

	// Buyer block
	write(1, row, "Bill To")
	write(2, row, inv.BuyerName)
	row++
	if inv.BuyerAddress != "" {
		write(2, row, inv.BuyerAddress)
		row++
	}
	if inv.BuyerContact != "" {
		write(2, row, inv.BuyerContact)
		row++
	}
	row++

	// Line table
	headers := []string{"Item", "Quantity", "Unit Price", "Line Total"}
	for i, h := range headers {
		write(i+1, row, h)
	}
	row++
	for _, line := range inv.Lines {
		write(1, row, line.Name)
		write(2, row, line.Quantity)
		write(3, row, line.UnitPrice.Decimal())
		write(4, row, line.LineTotal.Decimal())
		row++
	}
	row++

	write(3, row, "Subtotal")
	write(4, row, inv.Subtotal.Decimal())
	row++
	if inv.TaxRateBp > 0 {
		write(3, row, fmt.Sprintf("Tax (%.2f%%)", float64(inv.TaxRateBp)/100))
		write(4, row, inv.TaxAmount.Decimal())
		row++
	}
	if inv.Discount.Cents > 0 {
		write(3, row, "Discount")
		write(4, row, "-"+inv.Discount.Decimal())
		row++
	}
	write(3, row, "Total")
	write(4, row, inv.Total.Decimal())
	row += 2

	if inv.Notes != "" {
		write(1, row, "Notes")
		write(2, row, truncate(inv.Notes, 200))
		row++
	}
	if uri := PaymentURI(profile, inv); uri != "" {
		write(1, row, "Pay via UPI")
		write(2, row, uri)
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 28)
	_ = f.SetColWidth(sheet, "B", "B", 36)
	_ = f.SetColWidth(sheet, "C", "D", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.InfoContext(ctx, "export.invoice.ok",
		"number", inv.Number,
		"lines", len(inv.Lines),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// ReportXLSX renders an analytics summary and the invoices behind it
// as a two-section workbook.
func (s *Service) ReportXLSX(ctx context.Context, sum core.Summary, invoices []core.Invoice) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Report"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if defaultSheet, _ := f.GetSheetIndex("Sheet1"); defaultSheet != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	write(1, 1, "Period")
	write(2, 1, string(sum.Period))
	write(1, 2, "Window")
	write(2, 2, sum.WindowStart.Format("2006-01-02")+" to "+sum.WindowEnd.Format("2006-01-02"))
	write(1, 3, "Invoices")
	write(2, 3, sum.TotalInvoices)
	write(1, 4, "Total")
	write(2, 4, sum.TotalAmount.Decimal())
	write(1, 5, "Paid")
	write(2, 5, sum.PaidAmount.Decimal())
	write(1, 6, "Pending")
	write(2, 6, sum.PendingAmount.Decimal())
	write(1, 7, "Overdue")
	write(2, 7, sum.OverdueAmount.Decimal())

	headers := []string{"Number", "Buyer", "Created", "Due", "Status", "Total"}
	row := 9
	for i, h := range headers {
		write(i+1, row, h)
	}
	row++
	for _, inv := range invoices {
		write(1, row, inv.Number)
		write(2, row, inv.BuyerName)
		write(3, row, inv.CreatedAt.Format("2006-01-02"))
		if !inv.DueDate.IsZero() {
			write(4, row, inv.DueDate.Format("2006-01-02"))
		}
		write(5, row, string(inv.Status))
		write(6, row, inv.Total.Decimal())
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 18)
	_ = f.SetColWidth(sheet, "B", "B", 28)
	_ = f.SetColWidth(sheet, "C", "E", 12)
	_ = f.SetColWidth(sheet, "F", "F", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.InfoContext(ctx, "export.report.ok",
		"period", string(sum.Period),
		"rows", len(invoices),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// PaymentURI builds a upi://pay link for the invoice, or "" when the
// profile has no UPI ID.
func PaymentURI(profile *core.Profile, inv core.Invoice) string {
	if profile == nil || profile.UPIID == "" {
		return ""
	}
	q := url.Values{}
	q.Set("pa", profile.UPIID)
	q.Set("pn", profile.Company)
	q.Set("am", inv.Total.Decimal())
	q.Set("tn", inv.Number)
	q.Set("cu", "INR")
	return "upi://pay?" + q.Encode()
}

// Filename is the download name for an invoice workbook.
func Filename(inv core.Invoice) string {
	return inv.Number + ".xlsx"
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
