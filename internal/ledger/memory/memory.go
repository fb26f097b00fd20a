// Package memory is an in-memory ledger adapter. It is the default
// backend when no database path is configured and the test double the
// HTTP and service tests run against.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"fattura/internal/core"
)

type Store struct {
	mu       sync.Mutex
	profile  *core.Profile
	items    []core.Item
	invoices []core.Invoice
	settings *core.Settings
	nextItem int64
	nextInv  int64

	// now is swappable so tests can pin the clock.
	now func() time.Time
}

func New() *Store {
	return &Store{
		nextItem: 1,
		nextInv:  1,
		now:      time.Now,
	}
}

// WithClock replaces the store clock; returns the store for chaining.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) SaveProfile(_ context.Context, p core.Profile) (core.Profile, error) {
	if err := p.Validate(); err != nil {
		return core.Profile{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	if s.profile == nil {
		p.ID = 1
		p.CreatedAt = now
	} else {
		p.ID = s.profile.ID
		p.CreatedAt = s.profile.CreatedAt
	}
	p.UpdatedAt = now
	cp := p
	s.profile = &cp
	return p, nil
}

func (s *Store) CurrentProfile(_ context.Context) (*core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return nil, nil
	}
	cp := *s.profile
	return &cp, nil
}

func (s *Store) UpsertItem(_ context.Context, it core.Item) (int64, error) {
	if err := it.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	if it.ID != 0 {
		for i := range s.items {
			if s.items[i].ID == it.ID {
				it.CreatedAt = s.items[i].CreatedAt
				it.UpdatedAt = now
				s.items[i] = it
				return it.ID, nil
			}
		}
		return 0, core.ErrNotFound
	}
	it.ID = s.nextItem
	s.nextItem++
	it.CreatedAt = now
	it.UpdatedAt = now
	s.items = append(s.items, it)
	return it.ID, nil
}

func (s *Store) ListItems(_ context.Context) ([]core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Item(nil), s.items...)
	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].Name, out[j].Name) < 0
	})
	return out, nil
}

func (s *Store) DeleteItem(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	// Idempotent: deleting an absent id succeeds.
	return nil
}

func (s *Store) InsertInvoice(_ context.Context, inv core.Invoice) (core.Invoice, error) {
	if err := inv.Validate(); err != nil {
		return core.Invoice{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	if inv.Number == "" {
		inv.Number = core.NextInvoiceNumber(int64(len(s.invoices)), now)
	}
	if inv.Status == "" {
		inv.Status = core.StatusPending
	}
	inv.ID = s.nextInv
	s.nextInv++
	inv.CreatedAt = now
	inv.UpdatedAt = now
	inv.Lines = append([]core.LineItem(nil), inv.Lines...)
	s.invoices = append(s.invoices, inv)
	return inv, nil
}

func (s *Store) ListInvoices(_ context.Context) ([]core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Invoice(nil), s.invoices...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) ListInvoicesInRange(_ context.Context, start, end time.Time) ([]core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Invoice
	for _, inv := range s.invoices {
		if inv.CreatedAt.Before(start) || inv.CreatedAt.After(end) {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (s *Store) UpdateInvoiceStatus(_ context.Context, id int64, status core.Status) error {
	if !core.ValidStatus(status) {
		return core.ErrInvalidStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.invoices {
		if s.invoices[i].ID == id {
			s.invoices[i].Status = status
			s.invoices[i].UpdatedAt = s.now().UTC()
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) CountInvoices(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.invoices)), nil
}

func (s *Store) GetSettings(_ context.Context) (core.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		def := core.DefaultSettings()
		def.ID = 1
		s.settings = &def
	}
	return *s.settings, nil
}

func (s *Store) SaveSettings(_ context.Context, set core.Settings) error {
	if err := set.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if set.ID == 0 {
		set.ID = 1
	}
	s.settings = &set
	return nil
}
