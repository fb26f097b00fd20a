package core

import (
	"fmt"
	"time"
)

// LineTotal computes quantity × unit price for a single line. With
// cent-precision prices and whole-unit quantities the product is exact.
func LineTotal(quantity int64, unitPrice Money) Money {
	return Money{Cents: quantity * unitPrice.Cents}
}

// Subtotal sums per-line totals. Lines are totalled individually before
// summation; the subtotal is never recomputed from raw inputs.
func Subtotal(lines []LineItem) Money {
	var sum int64
	for _, l := range lines {
		sum += l.LineTotal.Cents
	}
	return Money{Cents: sum}
}

// Tax computes subtotal × rate, where rate is in basis points
// (1850 = 18.50%), rounded half-up to a cent.
func Tax(subtotal Money, rateBp int64) Money {
	if rateBp <= 0 || subtotal.Cents <= 0 {
		return Money{}
	}
	return Money{Cents: (subtotal.Cents*rateBp + 5000) / 10000}
}

// Total computes subtotal + tax − discount. A discount exceeding
// subtotal+tax clamps the total to zero rather than going negative;
// negative discounts are rejected earlier, at validation time.
func Total(subtotal, tax, discount Money) Money {
	t := subtotal.Cents + tax.Cents - discount.Cents
	if t < 0 {
		t = 0
	}
	return Money{Cents: t}
}

// NextInvoiceNumber derives the number for a new invoice from the count
// of invoices already stored: INV-<year><month>-<count+1>. The sequence
// restarts visually with each year-month bucket but is driven by the
// global count, exactly as the numbering has always worked. Not safe
// under concurrent writers; this store has one.
func NextInvoiceNumber(existingCount int64, now time.Time) string {
	return fmt.Sprintf("INV-%04d%02d-%04d", now.Year(), int(now.Month()), existingCount+1)
}

// Recalculate fills the computed fields of an invoice draft from its
// lines, tax rate and discount. Line totals are (re)derived first so a
// caller can hand in lines with only quantity and unit price set.
func Recalculate(inv *Invoice) {
	for i := range inv.Lines {
		inv.Lines[i].LineTotal = LineTotal(inv.Lines[i].Quantity, inv.Lines[i].UnitPrice)
	}
	inv.Subtotal = Subtotal(inv.Lines)
	inv.TaxAmount = Tax(inv.Subtotal, inv.TaxRateBp)
	inv.Total = Total(inv.Subtotal, inv.TaxAmount, inv.Discount)
}
