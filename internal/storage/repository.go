package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fattura/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the durable ledger adapter. It implements every
// port in internal/ledger; single-record operations are atomic, and the
// numbering sequence is assigned inside the insert transaction.
type SQLiteRepository struct {
	db *sql.DB

	// now is swappable so tests can pin the clock.
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// WithClock replaces the repository clock; returns the repository for
// chaining in tests.
func (r *SQLiteRepository) WithClock(now func() time.Time) *SQLiteRepository {
	r.now = now
	return r
}

// Timestamps are stored as unix nanoseconds so range comparisons stay
// plain integer comparisons.
func toStamp(t time.Time) int64   { return t.UTC().UnixNano() }
func fromStamp(n int64) time.Time { return time.Unix(0, n).UTC() }

// lineRow is the JSON snapshot of one invoice line.
type lineRow struct {
	ItemID         int64  `json:"item_id,omitempty"`
	Name           string `json:"name"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	LineTotalCents int64  `json:"line_total_cents"`
}

func marshalLines(lines []core.LineItem) (string, error) {
	rows := make([]lineRow, len(lines))
	for i, l := range lines {
		rows[i] = lineRow{
			ItemID:         l.ItemID,
			Name:           l.Name,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPrice.Cents,
			LineTotalCents: l.LineTotal.Cents,
		}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("marshal lines: %w", err)
	}
	return string(b), nil
}

func unmarshalLines(s string) ([]core.LineItem, error) {
	var rows []lineRow
	if err := json.Unmarshal([]byte(s), &rows); err != nil {
		return nil, fmt.Errorf("unmarshal lines: %w", err)
	}
	lines := make([]core.LineItem, len(rows))
	for i, row := range rows {
		lines[i] = core.LineItem{
			ItemID:    row.ItemID,
			Name:      row.Name,
			Quantity:  row.Quantity,
			UnitPrice: core.Money{Cents: row.UnitPriceCents},
			LineTotal: core.Money{Cents: row.LineTotalCents},
		}
	}
	return lines, nil
}

// SaveProfile implements ledger.ProfileStore.
func (r *SQLiteRepository) SaveProfile(ctx context.Context, p core.Profile) (core.Profile, error) {
	if err := p.Validate(); err != nil {
		return core.Profile{}, err
	}
	now := r.now()

	cur, err := r.CurrentProfile(ctx)
	if err != nil {
		return core.Profile{}, err
	}

	if cur == nil {
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO profile (company, address, tax_id, logo_ref, upi_id, phone, email, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Company, p.Address, p.TaxID, p.LogoRef, p.UPIID, p.Phone, p.Email,
			toStamp(now), toStamp(now))
		if err != nil {
			return core.Profile{}, wrap("insert profile", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return core.Profile{}, wrap("insert profile", err)
		}
		p.ID = id
		p.CreatedAt = now.UTC()
		p.UpdatedAt = now.UTC()
	} else {
		_, err := r.db.ExecContext(ctx, `
			UPDATE profile
			SET company = ?, address = ?, tax_id = ?, logo_ref = ?, upi_id = ?, phone = ?, email = ?, updated_at = ?
			WHERE id = ?`,
			p.Company, p.Address, p.TaxID, p.LogoRef, p.UPIID, p.Phone, p.Email,
			toStamp(now), cur.ID)
		if err != nil {
			return core.Profile{}, wrap("update profile", err)
		}
		p.ID = cur.ID
		p.CreatedAt = cur.CreatedAt
		p.UpdatedAt = now.UTC()
	}

	slog.InfoContext(ctx, "Profile saved", "id", p.ID, "company", p.Company)
	return p, nil
}

// CurrentProfile implements ledger.ProfileStore. Returns (nil, nil)
// when no profile exists yet.
func (r *SQLiteRepository) CurrentProfile(ctx context.Context) (*core.Profile, error) {
	var (
		p                  core.Profile
		createdAt, updated int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, company, address, tax_id, logo_ref, upi_id, phone, email, created_at, updated_at
		FROM profile ORDER BY id DESC LIMIT 1`).
		Scan(&p.ID, &p.Company, &p.Address, &p.TaxID, &p.LogoRef, &p.UPIID, &p.Phone, &p.Email,
			&createdAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get current profile", err)
	}
	p.CreatedAt = fromStamp(createdAt)
	p.UpdatedAt = fromStamp(updated)
	return &p, nil
}

// UpsertItem implements ledger.ItemStore.
func (r *SQLiteRepository) UpsertItem(ctx context.Context, it core.Item) (int64, error) {
	if err := it.Validate(); err != nil {
		return 0, err
	}
	now := toStamp(r.now())

	if it.ID != 0 {
		res, err := r.db.ExecContext(ctx, `
			UPDATE items
			SET name = ?, unit_price_cents = ?, description = ?, category = ?, updated_at = ?
			WHERE id = ?`,
			it.Name, it.UnitPrice.Cents, it.Description, it.Category, now, it.ID)
		if err != nil {
			return 0, wrap("update item", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, wrap("update item", err)
		}
		if n == 0 {
			return 0, core.ErrNotFound
		}
		return it.ID, nil
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO items (name, unit_price_cents, description, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		it.Name, it.UnitPrice.Cents, it.Description, it.Category, now, now)
	if err != nil {
		return 0, wrap("insert item", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrap("insert item", err)
	}
	return id, nil
}

// ListItems implements ledger.ItemStore. BINARY collation: byte-wise,
// case-sensitive name order.
func (r *SQLiteRepository) ListItems(ctx context.Context) ([]core.Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, unit_price_cents, description, category, created_at, updated_at
		FROM items ORDER BY name`)
	if err != nil {
		return nil, wrap("list items", err)
	}
	defer rows.Close()

	var items []core.Item
	for rows.Next() {
		var (
			it                 core.Item
			createdAt, updated int64
		)
		if err := rows.Scan(&it.ID, &it.Name, &it.UnitPrice.Cents, &it.Description, &it.Category,
			&createdAt, &updated); err != nil {
			return nil, wrap("scan item", err)
		}
		it.CreatedAt = fromStamp(createdAt)
		it.UpdatedAt = fromStamp(updated)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list items", err)
	}
	return items, nil
}

// DeleteItem implements ledger.ItemStore. Idempotent: deleting an
// absent id succeeds.
func (r *SQLiteRepository) DeleteItem(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	return wrap("delete item", err)
}

// InsertInvoice implements ledger.InvoiceStore. The count used for the
// number sequence and the insert happen in one transaction.
func (r *SQLiteRepository) InsertInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	if err := inv.Validate(); err != nil {
		return core.Invoice{}, err
	}
	now := r.now()

	linesJSON, err := marshalLines(inv.Lines)
	if err != nil {
		return core.Invoice{}, wrap("insert invoice", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Invoice{}, wrap("insert invoice", err)
	}
	defer tx.Rollback()

	if inv.Number == "" {
		var count int64
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices`).Scan(&count); err != nil {
			return core.Invoice{}, wrap("count invoices", err)
		}
		inv.Number = core.NextInvoiceNumber(count, now)
	}
	if inv.Status == "" {
		inv.Status = core.StatusPending
	}

	var due sql.NullInt64
	if !inv.DueDate.IsZero() {
		due = sql.NullInt64{Int64: toStamp(inv.DueDate), Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO invoices (number, buyer_name, buyer_contact, buyer_address, lines,
			tax_rate_bp, discount_cents, subtotal_cents, tax_cents, total_cents,
			due_date, notes, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.Number, inv.BuyerName, inv.BuyerContact, inv.BuyerAddress, linesJSON,
		inv.TaxRateBp, inv.Discount.Cents, inv.Subtotal.Cents, inv.TaxAmount.Cents, inv.Total.Cents,
		due, inv.Notes, string(inv.Status), toStamp(now), toStamp(now))
	if err != nil {
		return core.Invoice{}, wrap("insert invoice", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Invoice{}, wrap("insert invoice", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Invoice{}, wrap("insert invoice", err)
	}

	inv.ID = id
	inv.CreatedAt = now.UTC()
	inv.UpdatedAt = now.UTC()

	slog.InfoContext(ctx, "Invoice saved",
		"id", inv.ID,
		"number", inv.Number,
		"buyer", inv.BuyerName,
		"total_cents", inv.Total.Cents)
	return inv, nil
}

const invoiceColumns = `id, number, buyer_name, buyer_contact, buyer_address, lines,
	tax_rate_bp, discount_cents, subtotal_cents, tax_cents, total_cents,
	due_date, notes, status, created_at, updated_at`

func scanInvoice(rows *sql.Rows) (core.Invoice, error) {
	var (
		inv                core.Invoice
		linesJSON, status  string
		due                sql.NullInt64
		createdAt, updated int64
	)
	if err := rows.Scan(&inv.ID, &inv.Number, &inv.BuyerName, &inv.BuyerContact, &inv.BuyerAddress,
		&linesJSON, &inv.TaxRateBp, &inv.Discount.Cents, &inv.Subtotal.Cents, &inv.TaxAmount.Cents,
		&inv.Total.Cents, &due, &inv.Notes, &status, &createdAt, &updated); err != nil {
		return core.Invoice{}, err
	}
	lines, err := unmarshalLines(linesJSON)
	if err != nil {
		return core.Invoice{}, err
	}
	inv.Lines = lines
	inv.Status = core.Status(status)
	if due.Valid {
		inv.DueDate = fromStamp(due.Int64)
	}
	inv.CreatedAt = fromStamp(createdAt)
	inv.UpdatedAt = fromStamp(updated)
	return inv, nil
}

func (r *SQLiteRepository) queryInvoices(ctx context.Context, op, query string, args ...any) ([]core.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	var out []core.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}

// ListInvoices implements ledger.InvoiceStore: most recent first.
func (r *SQLiteRepository) ListInvoices(ctx context.Context) ([]core.Invoice, error) {
	return r.queryInvoices(ctx, "list invoices",
		`SELECT `+invoiceColumns+` FROM invoices ORDER BY created_at DESC, id DESC`)
}

// ListInvoicesInRange implements ledger.InvoiceStore: inclusive filter
// on created_at.
func (r *SQLiteRepository) ListInvoicesInRange(ctx context.Context, start, end time.Time) ([]core.Invoice, error) {
	return r.queryInvoices(ctx, "list invoices in range",
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE created_at >= ? AND created_at <= ?
		 ORDER BY created_at DESC, id DESC`,
		toStamp(start), toStamp(end))
}

// UpdateInvoiceStatus implements ledger.InvoiceStore. The status is
// validated before the store is touched.
func (r *SQLiteRepository) UpdateInvoiceStatus(ctx context.Context, id int64, status core.Status) error {
	if !core.ValidStatus(status) {
		return core.ErrInvalidStatus
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), toStamp(r.now()), id)
	if err != nil {
		return wrap("update invoice status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap("update invoice status", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	slog.InfoContext(ctx, "Invoice status updated", "id", id, "status", string(status))
	return nil
}

// CountInvoices implements ledger.InvoiceStore.
func (r *SQLiteRepository) CountInvoices(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices`).Scan(&count); err != nil {
		return 0, wrap("count invoices", err)
	}
	return count, nil
}

// GetSettings implements ledger.SettingsStore. The singleton row is
// created lazily with defaults on first access.
func (r *SQLiteRepository) GetSettings(ctx context.Context) (core.Settings, error) {
	var (
		s       core.Settings
		autoTax int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, theme, auto_tax, default_due_days FROM settings ORDER BY id LIMIT 1`).
		Scan(&s.ID, &s.Theme, &autoTax, &s.DefaultDueDays)
	if errors.Is(err, sql.ErrNoRows) {
		def := core.DefaultSettings()
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO settings (theme, auto_tax, default_due_days) VALUES (?, ?, ?)`,
			def.Theme, boolToInt(def.AutoTax), def.DefaultDueDays)
		if err != nil {
			return core.Settings{}, wrap("seed settings", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return core.Settings{}, wrap("seed settings", err)
		}
		def.ID = id
		return def, nil
	}
	if err != nil {
		return core.Settings{}, wrap("get settings", err)
	}
	s.AutoTax = autoTax != 0
	return s, nil
}

// SaveSettings implements ledger.SettingsStore.
func (r *SQLiteRepository) SaveSettings(ctx context.Context, s core.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	// Write through GetSettings so the row always exists first.
	cur, err := r.GetSettings(ctx)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE settings SET theme = ?, auto_tax = ?, default_due_days = ? WHERE id = ?`,
		s.Theme, boolToInt(s.AutoTax), s.DefaultDueDays, cur.ID)
	return wrap("save settings", err)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
