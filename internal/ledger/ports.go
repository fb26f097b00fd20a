// Package ledger defines the store contracts the rest of the
// application depends on. Adapters live in subpackages (memory) and in
// internal/storage (SQLite).
package ledger

import (
	"context"
	"time"

	"fattura/internal/core"
)

// Ports for outbound persistence adapters.
type (
	ProfileStore interface {
		// SaveProfile creates the profile on first run and updates it
		// in place afterwards. Returns the stored record.
		SaveProfile(ctx context.Context, p core.Profile) (core.Profile, error)

		// CurrentProfile returns the most recently saved profile, or
		// (nil, nil) when none exists yet (first-run signal).
		CurrentProfile(ctx context.Context) (*core.Profile, error)
	}

	ItemStore interface {
		// UpsertItem inserts when ID is zero, otherwise updates in
		// place and bumps UpdatedAt. Returns the assigned id.
		UpsertItem(ctx context.Context, it core.Item) (int64, error)

		// ListItems returns catalog items ordered by name, byte-wise.
		ListItems(ctx context.Context) ([]core.Item, error)

		// DeleteItem removes an item by id. Deleting an absent id is
		// not an error.
		DeleteItem(ctx context.Context, id int64) error
	}

	InvoiceStore interface {
		// InsertInvoice appends an invoice: assigns the number when
		// absent, defaults the status to pending, stamps timestamps.
		// Returns the stored record.
		InsertInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error)

		// ListInvoices returns all invoices, most recent first.
		ListInvoices(ctx context.Context) ([]core.Invoice, error)

		// ListInvoicesInRange filters on CreatedAt, both ends inclusive.
		ListInvoicesInRange(ctx context.Context, start, end time.Time) ([]core.Invoice, error)

		// UpdateInvoiceStatus validates the status, bumps UpdatedAt.
		// Fails with core.ErrNotFound / core.ErrInvalidStatus.
		UpdateInvoiceStatus(ctx context.Context, id int64, status core.Status) error

		// CountInvoices returns the number of stored invoices; it
		// drives the numbering sequence.
		CountInvoices(ctx context.Context) (int64, error)
	}

	SettingsStore interface {
		// GetSettings returns the singleton row, creating it with
		// defaults on first access.
		GetSettings(ctx context.Context) (core.Settings, error)

		// SaveSettings replaces the singleton row.
		SaveSettings(ctx context.Context, s core.Settings) error
	}

	// Store is the full ledger contract: all four record kinds.
	Store interface {
		ProfileStore
		ItemStore
		InvoiceStore
		SettingsStore
	}
)
