package services

import (
	"context"
	"fmt"
	"time"

	"fattura/internal/core"
	"fattura/internal/ledger"
)

// InvoiceService orchestrates invoice creation and reporting over the
// ledger store. The store computes nothing; all arithmetic goes through
// the core calculator so the persisted fields are final before the
// write happens.
type InvoiceService struct {
	store ledger.Store

	// now is swappable so tests can pin the clock.
	now func() time.Time
}

func NewInvoiceService(store ledger.Store) *InvoiceService {
	return &InvoiceService{
		store: store,
		now:   time.Now,
	}
}

// WithClock replaces the service clock; returns the service for
// chaining in tests.
func (s *InvoiceService) WithClock(now func() time.Time) *InvoiceService {
	s.now = now
	return s
}

// Draft is an invoice as it arrives from the creation form: lines carry
// quantity and unit price only, computed fields are empty.
type Draft struct {
	BuyerName    string
	BuyerContact string
	BuyerAddress string
	Lines        []core.LineItem
	// TaxRateBp < 0 means "not provided": the settings decide.
	TaxRateBp int64
	Discount  core.Money
	DueDate   time.Time
	Notes     string
}

// DefaultTaxRateBp is applied when the form omits the rate and the
// auto-tax setting is on (the original prefills 18%).
const DefaultTaxRateBp = 1800

// Create validates a draft, fills defaults from settings, computes the
// totals and persists the invoice. The store is never touched when
// validation fails.
func (s *InvoiceService) Create(ctx context.Context, d Draft) (core.Invoice, error) {
	set, err := s.store.GetSettings(ctx)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("load settings: %w", err)
	}

	rate := d.TaxRateBp
	if rate < 0 {
		rate = 0
		if set.AutoTax {
			rate = DefaultTaxRateBp
		}
	}

	due := d.DueDate
	if due.IsZero() && set.DefaultDueDays > 0 {
		due = s.now().UTC().AddDate(0, 0, set.DefaultDueDays)
	}

	inv := core.Invoice{
		BuyerName:    d.BuyerName,
		BuyerContact: d.BuyerContact,
		BuyerAddress: d.BuyerAddress,
		Lines:        d.Lines,
		TaxRateBp:    rate,
		Discount:     d.Discount,
		DueDate:      due,
		Notes:        d.Notes,
	}
	core.Recalculate(&inv)

	if err := inv.Validate(); err != nil {
		return core.Invoice{}, err
	}

	saved, err := s.store.InsertInvoice(ctx, inv)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("insert invoice: %w", err)
	}
	return saved, nil
}

// SetStatus updates an invoice's payment status. Validation happens
// before the store sees anything.
func (s *InvoiceService) SetStatus(ctx context.Context, id int64, status core.Status) error {
	if !core.ValidStatus(status) {
		return core.ErrInvalidStatus
	}
	if err := s.store.UpdateInvoiceStatus(ctx, id, status); err != nil {
		return err
	}
	return nil
}

// Analytics aggregates the invoices created in the selected period.
func (s *InvoiceService) Analytics(ctx context.Context, p core.Period) (core.Summary, error) {
	now := s.now()
	start := core.PeriodStart(p, now)
	invoices, err := s.store.ListInvoicesInRange(ctx, start, now)
	if err != nil {
		return core.Summary{}, fmt.Errorf("list invoices in range: %w", err)
	}
	return core.Summarize(invoices, p, now), nil
}

// History returns all invoices, most recent first, optionally filtered
// by stored status. The filter looks at the stored status, not the
// dashboard's overdue projection.
func (s *InvoiceService) History(ctx context.Context, status core.Status) ([]core.Invoice, error) {
	if status != "" && !core.ValidStatus(status) {
		return nil, core.ErrInvalidStatus
	}
	invoices, err := s.store.ListInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	if status == "" {
		return invoices, nil
	}
	out := invoices[:0:0]
	for _, inv := range invoices {
		if inv.Status == status {
			out = append(out, inv)
		}
	}
	return out, nil
}

// Find returns a single invoice by id.
func (s *InvoiceService) Find(ctx context.Context, id int64) (core.Invoice, error) {
	invoices, err := s.store.ListInvoices(ctx)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("list invoices: %w", err)
	}
	for _, inv := range invoices {
		if inv.ID == id {
			return inv, nil
		}
	}
	return core.Invoice{}, core.ErrNotFound
}
