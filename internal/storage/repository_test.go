package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fattura/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "fattura.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testInvoice() core.Invoice {
	inv := core.Invoice{
		BuyerName:    "Acme Traders",
		BuyerContact: "555-0101",
		Lines: []core.LineItem{
			{ItemID: 1, Name: "Widget", Quantity: 2, UnitPrice: core.Money{Cents: 500}},
			{Name: "Setup fee", Quantity: 1, UnitPrice: core.Money{Cents: 2500}},
		},
		TaxRateBp: 1800,
		Notes:     "net 30",
	}
	core.Recalculate(&inv)
	return inv
}

func TestProfileRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	got, err := repo.CurrentProfile(ctx)
	if err != nil {
		t.Fatalf("CurrentProfile: %v", err)
	}
	if got != nil {
		t.Fatal("fresh database should have no profile")
	}

	in := core.Profile{
		Company: "Studio Rossi",
		Address: "Via Roma 1, Milano",
		TaxID:   "27AAPFU0939F1ZV",
		UPIID:   "rossi@upi",
		Phone:   "555-0100",
		Email:   "studio@rossi.example",
	}
	if _, err := repo.SaveProfile(ctx, in); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	got, err = repo.CurrentProfile(ctx)
	if err != nil {
		t.Fatalf("CurrentProfile: %v", err)
	}
	if got == nil {
		t.Fatal("profile should exist after save")
	}
	if got.Company != in.Company || got.Address != in.Address || got.TaxID != in.TaxID ||
		got.UPIID != in.UPIID || got.Phone != in.Phone || got.Email != in.Email {
		t.Fatalf("profile did not round-trip: %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatal("timestamps must be stamped")
	}
}

func TestSaveProfileUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	tick := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := newTestRepo(t).WithClock(func() time.Time { tick = tick.Add(time.Minute); return tick })

	first, err := repo.SaveProfile(ctx, core.Profile{Company: "A", Address: "addr"})
	if err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	second, err := repo.SaveProfile(ctx, core.Profile{Company: "B", Address: "addr"})
	if err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("second save must update in place")
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatal("CreatedAt is immutable")
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Fatal("UpdatedAt must advance")
	}

	cur, _ := repo.CurrentProfile(ctx)
	if cur.Company != "B" {
		t.Fatalf("expected updated company, got %s", cur.Company)
	}
}

func TestItemLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.UpsertItem(ctx, core.Item{Name: "Bravo", UnitPrice: core.Money{Cents: 100}})
	if err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}
	if _, err := repo.UpsertItem(ctx, core.Item{Name: "alpha", UnitPrice: core.Money{Cents: 200}}); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}

	items, err := repo.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	// BINARY collation: uppercase sorts before lowercase.
	if len(items) != 2 || items[0].Name != "Bravo" || items[1].Name != "alpha" {
		t.Fatalf("unexpected order: %+v", items)
	}

	if _, err := repo.UpsertItem(ctx, core.Item{ID: id, Name: "Bravo", UnitPrice: core.Money{Cents: 175}, Category: "hardware"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	items, _ = repo.ListItems(ctx)
	if items[0].UnitPrice.Cents != 175 || items[0].Category != "hardware" {
		t.Fatalf("update did not stick: %+v", items[0])
	}

	if _, err := repo.UpsertItem(ctx, core.Item{ID: 999, Name: "Ghost", UnitPrice: core.Money{Cents: 1}}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := repo.DeleteItem(ctx, id); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if err := repo.DeleteItem(ctx, id); err != nil {
		t.Fatalf("second delete must succeed: %v", err)
	}
	items, _ = repo.ListItems(ctx)
	if len(items) != 1 {
		t.Fatalf("expected 1 item left, got %d", len(items))
	}
}

func TestInsertInvoiceAssignsNumberAndDefaults(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)
	repo := newTestRepo(t).WithClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		if _, err := repo.InsertInvoice(ctx, func() core.Invoice {
			inv := testInvoice()
			inv.Number = core.NextInvoiceNumber(int64(i), now) // pre-assigned to keep UNIQUE happy
			return inv
		}()); err != nil {
			t.Fatalf("InsertInvoice: %v", err)
		}
	}

	fourth, err := repo.InsertInvoice(ctx, testInvoice())
	if err != nil {
		t.Fatalf("InsertInvoice: %v", err)
	}
	if fourth.Number != "INV-202403-0004" {
		t.Fatalf("expected INV-202403-0004, got %s", fourth.Number)
	}
	if fourth.Status != core.StatusPending {
		t.Fatalf("status must default to pending, got %s", fourth.Status)
	}

	count, err := repo.CountInvoices(ctx)
	if err != nil {
		t.Fatalf("CountInvoices: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4 invoices, got %d", count)
	}
}

func TestInvoiceLinesSurviveStorage(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	in := testInvoice()
	saved, err := repo.InsertInvoice(ctx, in)
	if err != nil {
		t.Fatalf("InsertInvoice: %v", err)
	}

	list, err := repo.ListInvoices(ctx)
	if err != nil {
		t.Fatalf("ListInvoices: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 invoice, got %d", len(list))
	}
	got := list[0]
	if got.ID != saved.ID || got.Number != saved.Number {
		t.Fatalf("identity mismatch: %+v", got)
	}
	if len(got.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(got.Lines))
	}
	if got.Lines[0].Name != "Widget" || got.Lines[0].Quantity != 2 || got.Lines[0].LineTotal.Cents != 1000 {
		t.Fatalf("line snapshot mismatch: %+v", got.Lines[0])
	}
	if got.Subtotal.Cents != in.Subtotal.Cents || got.TaxAmount.Cents != in.TaxAmount.Cents || got.Total.Cents != in.Total.Cents {
		t.Fatalf("computed fields mismatch: %+v", got)
	}
	if got.Notes != "net 30" {
		t.Fatalf("notes mismatch: %q", got.Notes)
	}
}

func TestUpdateInvoiceStatus(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	inv, err := repo.InsertInvoice(ctx, testInvoice())
	if err != nil {
		t.Fatalf("InsertInvoice: %v", err)
	}

	if err := repo.UpdateInvoiceStatus(ctx, inv.ID, core.StatusPaid); err != nil {
		t.Fatalf("UpdateInvoiceStatus: %v", err)
	}
	list, _ := repo.ListInvoices(ctx)
	if list[0].Status != core.StatusPaid {
		t.Fatalf("status not persisted: %s", list[0].Status)
	}
	if !list[0].UpdatedAt.After(list[0].CreatedAt) && !list[0].UpdatedAt.Equal(list[0].CreatedAt) {
		t.Fatal("UpdatedAt must not go backwards")
	}

	if err := repo.UpdateInvoiceStatus(ctx, 999, core.StatusPaid); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.UpdateInvoiceStatus(ctx, inv.ID, "shipped"); !errors.Is(err, core.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	list, _ = repo.ListInvoices(ctx)
	if list[0].Status != core.StatusPaid {
		t.Fatal("failed update must leave the store unchanged")
	}
}

func TestListInvoicesInRangeInclusive(t *testing.T) {
	ctx := context.Background()
	tick := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo := newTestRepo(t).WithClock(func() time.Time { tick = tick.Add(24 * time.Hour); return tick })

	// Created on March 2, 3, 4.
	for i := 0; i < 3; i++ {
		if _, err := repo.InsertInvoice(ctx, testInvoice()); err != nil {
			t.Fatalf("InsertInvoice: %v", err)
		}
	}

	start := time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC)
	got, err := repo.ListInvoicesInRange(ctx, start, end)
	if err != nil {
		t.Fatalf("ListInvoicesInRange: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("inclusive range should match both endpoints, got %d", len(got))
	}
}

func TestSettingsSingleton(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	got, err := repo.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	def := core.DefaultSettings()
	if got.Theme != def.Theme || got.AutoTax != def.AutoTax || got.DefaultDueDays != def.DefaultDueDays {
		t.Fatalf("first access must seed defaults: %+v", got)
	}

	got.Theme = "dark"
	got.AutoTax = false
	if err := repo.SaveSettings(ctx, got); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	again, err := repo.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if again.Theme != "dark" || again.AutoTax {
		t.Fatalf("settings not persisted: %+v", again)
	}
	if again.ID != got.ID {
		t.Fatal("settings must stay a single row")
	}
}

func TestStorageErrorWrapping(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	repo.Close()

	_, err := repo.ListItems(ctx)
	if err == nil {
		t.Fatal("expected error on closed database")
	}
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %T: %v", err, err)
	}
}
