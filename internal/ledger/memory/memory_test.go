package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"fattura/internal/core"
)

func TestProfileRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	got, err := s.CurrentProfile(ctx)
	if err != nil {
		t.Fatalf("CurrentProfile: %v", err)
	}
	if got != nil {
		t.Fatal("fresh store should have no profile")
	}

	in := core.Profile{
		Company: "Studio Rossi",
		Address: "Via Roma 1, Milano",
		TaxID:   "27AAPFU0939F1ZV",
		UPIID:   "rossi@upi",
		Phone:   "555-0100",
		Email:   "studio@rossi.example",
	}
	saved, err := s.SaveProfile(ctx, in)
	if err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	if saved.CreatedAt.IsZero() || saved.UpdatedAt.IsZero() {
		t.Fatal("timestamps must be stamped on save")
	}

	got, err = s.CurrentProfile(ctx)
	if err != nil {
		t.Fatalf("CurrentProfile: %v", err)
	}
	// Field-identical except the stamped fields.
	if got.Company != in.Company || got.Address != in.Address || got.TaxID != in.TaxID ||
		got.UPIID != in.UPIID || got.Phone != in.Phone || got.Email != in.Email {
		t.Fatalf("profile did not round-trip: %+v", got)
	}
}

func TestSaveProfileUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	tick := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s := New().WithClock(func() time.Time { tick = tick.Add(time.Minute); return tick })

	first, err := s.SaveProfile(ctx, core.Profile{Company: "A", Address: "addr"})
	if err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	second, err := s.SaveProfile(ctx, core.Profile{Company: "B", Address: "addr"})
	if err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("saving over an existing profile must update in place, not version")
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatal("CreatedAt is immutable")
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Fatal("UpdatedAt must advance on update")
	}
}

func TestUpsertAndListItems(t *testing.T) {
	ctx := context.Background()
	s := New()

	idB, err := s.UpsertItem(ctx, core.Item{Name: "Bravo", UnitPrice: core.Money{Cents: 100}})
	if err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}
	if _, err := s.UpsertItem(ctx, core.Item{Name: "alpha", UnitPrice: core.Money{Cents: 200}}); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}

	items, err := s.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	// Byte-wise order: uppercase sorts before lowercase.
	if len(items) != 2 || items[0].Name != "Bravo" || items[1].Name != "alpha" {
		t.Fatalf("unexpected order: %+v", items)
	}

	if _, err := s.UpsertItem(ctx, core.Item{ID: idB, Name: "Bravo", UnitPrice: core.Money{Cents: 150}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	items, _ = s.ListItems(ctx)
	if items[0].UnitPrice.Cents != 150 {
		t.Fatalf("update did not stick: %+v", items[0])
	}

	if _, err := s.UpsertItem(ctx, core.Item{ID: 999, Name: "Ghost", UnitPrice: core.Money{Cents: 1}}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestDeleteItemIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, _ := s.UpsertItem(ctx, core.Item{Name: "Widget", UnitPrice: core.Money{Cents: 100}})

	if err := s.DeleteItem(ctx, id); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := s.DeleteItem(ctx, id); err != nil {
		t.Fatalf("second delete must also succeed: %v", err)
	}
}

func testInvoice() core.Invoice {
	inv := core.Invoice{
		BuyerName: "Acme Traders",
		Lines: []core.LineItem{
			{Name: "Widget", Quantity: 2, UnitPrice: core.Money{Cents: 500}},
		},
		TaxRateBp: 1800,
	}
	core.Recalculate(&inv)
	return inv
}

func TestInsertInvoiceDefaults(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)
	s := New().WithClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		if _, err := s.InsertInvoice(ctx, testInvoice()); err != nil {
			t.Fatalf("InsertInvoice: %v", err)
		}
	}
	fourth, err := s.InsertInvoice(ctx, testInvoice())
	if err != nil {
		t.Fatalf("InsertInvoice: %v", err)
	}
	if fourth.Number != "INV-202403-0004" {
		t.Fatalf("expected INV-202403-0004, got %s", fourth.Number)
	}
	if fourth.Status != core.StatusPending {
		t.Fatalf("status must default to pending, got %s", fourth.Status)
	}
	if fourth.CreatedAt.IsZero() || fourth.UpdatedAt.IsZero() {
		t.Fatal("timestamps must be stamped")
	}
}

func TestUpdateInvoiceStatus(t *testing.T) {
	ctx := context.Background()
	s := New()
	inv, _ := s.InsertInvoice(ctx, testInvoice())

	if err := s.UpdateInvoiceStatus(ctx, inv.ID, core.StatusPaid); err != nil {
		t.Fatalf("UpdateInvoiceStatus: %v", err)
	}
	list, _ := s.ListInvoices(ctx)
	if list[0].Status != core.StatusPaid {
		t.Fatalf("status not updated: %s", list[0].Status)
	}

	if err := s.UpdateInvoiceStatus(ctx, 999, core.StatusPaid); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateInvoiceStatus(ctx, inv.ID, "shipped"); !errors.Is(err, core.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	// Failed updates leave the store unchanged.
	list, _ = s.ListInvoices(ctx)
	if list[0].Status != core.StatusPaid {
		t.Fatalf("failed update mutated the store: %s", list[0].Status)
	}
}

func TestListInvoicesOrderAndRange(t *testing.T) {
	ctx := context.Background()
	tick := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	s := New().WithClock(func() time.Time { tick = tick.Add(24 * time.Hour); return tick })

	for i := 0; i < 3; i++ {
		if _, err := s.InsertInvoice(ctx, testInvoice()); err != nil {
			t.Fatalf("InsertInvoice: %v", err)
		}
	}

	list, err := s.ListInvoices(ctx)
	if err != nil {
		t.Fatalf("ListInvoices: %v", err)
	}
	if len(list) != 3 || !list[0].CreatedAt.After(list[2].CreatedAt) {
		t.Fatalf("expected most recent first: %+v", list)
	}

	// Inclusive on both ends.
	start := time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC)
	ranged, err := s.ListInvoicesInRange(ctx, start, end)
	if err != nil {
		t.Fatalf("ListInvoicesInRange: %v", err)
	}
	if len(ranged) != 2 {
		t.Fatalf("expected 2 invoices in range, got %d", len(ranged))
	}
}

func TestSettingsSingleton(t *testing.T) {
	ctx := context.Background()
	s := New()

	got, err := s.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	def := core.DefaultSettings()
	if got.Theme != def.Theme || got.AutoTax != def.AutoTax || got.DefaultDueDays != def.DefaultDueDays {
		t.Fatalf("first access must seed defaults: %+v", got)
	}

	got.Theme = "dark"
	got.DefaultDueDays = 14
	if err := s.SaveSettings(ctx, got); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	again, _ := s.GetSettings(ctx)
	if again.Theme != "dark" || again.DefaultDueDays != 14 {
		t.Fatalf("settings not persisted: %+v", again)
	}
	if again.ID != got.ID {
		t.Fatal("settings must stay a single row")
	}
}
