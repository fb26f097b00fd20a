package http

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"fattura/internal/core"
)

// handleItemList renders the catalog partial.
func (s *Server) handleItemList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	items, err := s.store.ListItems(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Item list error", "error", err)
		_, _ = w.Write([]byte(`<section id="items" class="items"><div class="placeholder">Error loading items</div></section>`))
		return
	}

	type row struct {
		ID          int64
		Name        string
		UnitPrice   string
		Description string
		Category    string
	}
	data := struct{ Rows []row }{}
	for _, it := range items {
		data.Rows = append(data.Rows, row{
			ID:          it.ID,
			Name:        it.Name,
			UnitPrice:   formatRupees(it.UnitPrice.Cents),
			Description: it.Description,
			Category:    it.Category,
		})
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="items" class="items"><div class="placeholder">` + strconv.Itoa(len(items)) + ` items</div></section>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "items.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "items.html")
		_, _ = w.Write([]byte(`<section id="items" class="items"><div class="placeholder">Error rendering items</div></section>`))
	}
}

func (s *Server) handleUpsertItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<div class="error">Invalid request format</div>`))
		return
	}

	it := core.Item{
		Name:        sanitizeInput(r.Form.Get("name")),
		Description: sanitizeInput(r.Form.Get("description")),
		Category:    sanitizeInput(r.Form.Get("category")),
	}
	if v := strings.TrimSpace(r.Form.Get("id")); v != "" {
		id, err := parseID(v)
		if err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">Invalid item id</div>`))
			return
		}
		it.ID = id
	}
	cents, err := core.ParseDecimalToCents(strings.TrimSpace(r.Form.Get("unit_price")))
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Invalid unit price</div>`))
		return
	}
	it.UnitPrice = core.Money{Cents: cents}

	if err := it.Validate(); err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Invalid item: ` + template.HTMLEscapeString(err.Error()) + `</div>`))
		return
	}

	id, err := s.store.UpsertItem(r.Context(), it)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<div class="error">Item not found</div>`))
			return
		}
		slog.ErrorContext(r.Context(), "Item save error", "error", err, "item", it.Name)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<div class="error">Could not save the item</div>`))
		return
	}

	w.Header().Set("HX-Trigger", `{"item:saved": {"id": `+strconv.FormatInt(id, 10)+`}}`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Item saved: ` + template.HTMLEscapeString(it.Name) + `</div>`))
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<div class="error">Invalid request format</div>`))
		return
	}

	id, err := parseID(r.Form.Get("id"))
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Invalid item id</div>`))
		return
	}

	if err := s.store.DeleteItem(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "Item delete error", "error", err, "item_id", id)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<div class="error">Could not delete the item</div>`))
		return
	}

	w.Header().Set("HX-Trigger", `{"item:deleted": {"id": `+strconv.FormatInt(id, 10)+`}}`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Item removed</div>`))
}
