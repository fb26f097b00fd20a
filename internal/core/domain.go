package core

import (
	"errors"
	"strings"
	"time"
)

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

type (
	Status string

	Money struct {
		Cents int64
	}

	// Profile is the company identity printed on every invoice.
	// At most one logical profile exists; saving over an existing
	// one updates it in place.
	Profile struct {
		ID        int64
		Company   string
		Address   string
		TaxID     string
		LogoRef   string
		UPIID     string
		Phone     string
		Email     string
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Item is a catalog entry used to prefill invoice lines.
	Item struct {
		ID          int64
		Name        string
		UnitPrice   Money
		Description string
		Category    string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// LineItem is a snapshot of a catalog item at invoicing time.
	// Deleting the catalog item later never changes the invoice.
	LineItem struct {
		ItemID    int64
		Name      string
		Quantity  int64
		UnitPrice Money
		LineTotal Money
	}

	Invoice struct {
		ID           int64
		Number       string
		BuyerName    string
		BuyerContact string
		BuyerAddress string
		Lines        []LineItem
		// TaxRateBp is the tax rate in basis points (1850 = 18.50%).
		TaxRateBp int64
		Discount  Money
		Subtotal  Money
		TaxAmount Money
		Total     Money
		DueDate   time.Time
		Notes     string
		Status    Status
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Settings is a singleton row, created lazily with defaults on
	// first access.
	Settings struct {
		ID             int64
		Theme          string
		AutoTax        bool
		DefaultDueDays int
	}
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidStatus = errors.New("invalid status")
	ErrInvalidInput  = errors.New("invalid input")

	ErrEmptyBuyerName = errors.New("empty buyer name")
	ErrNoLines        = errors.New("invoice has no line items")
	ErrInvalidAmount  = errors.New("invalid amount")
)

// DefaultSettings are the values the singleton row is seeded with.
func DefaultSettings() Settings {
	return Settings{
		Theme:          "light",
		AutoTax:        true,
		DefaultDueDays: 30,
	}
}

// ValidStatus reports whether s is one of the four payment statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.Company) == "" {
		return errors.New("empty company name")
	}
	if strings.TrimSpace(p.Address) == "" {
		return errors.New("empty company address")
	}
	return nil
}

func (i Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return errors.New("empty item name")
	}
	if len(i.Name) > 200 {
		return errors.New("item name too long (max 200 characters)")
	}
	if err := i.UnitPrice.Validate(); err != nil {
		return err
	}
	return nil
}

func (l LineItem) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return errors.New("empty line item name")
	}
	if l.Quantity <= 0 {
		return errors.New("quantity must be positive")
	}
	if err := l.UnitPrice.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks an invoice draft before any write occurs. Computed
// fields (subtotal, tax, total, number) are not required yet.
func (inv Invoice) Validate() error {
	if strings.TrimSpace(inv.BuyerName) == "" {
		return ErrEmptyBuyerName
	}
	if len(inv.Lines) == 0 {
		return ErrNoLines
	}
	for _, l := range inv.Lines {
		if err := l.Validate(); err != nil {
			return err
		}
	}
	if inv.TaxRateBp < 0 || inv.TaxRateBp > 10000 {
		return errors.New("tax rate out of range")
	}
	if err := inv.Discount.Validate(); err != nil {
		return err
	}
	if inv.Status != "" && !ValidStatus(inv.Status) {
		return ErrInvalidStatus
	}
	return nil
}

func (s Settings) Validate() error {
	if s.Theme != "light" && s.Theme != "dark" {
		return errors.New("unknown theme")
	}
	if s.DefaultDueDays < 0 || s.DefaultDueDays > 365 {
		return errors.New("default due days out of range")
	}
	return nil
}
