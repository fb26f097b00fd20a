package http

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"fattura/internal/core"
	"fattura/internal/export"
	applog "fattura/internal/log"
	"fattura/internal/services"
)

// parseLines reads the parallel line_* form arrays into line items.
// Rows where every field is blank are skipped so trailing empty rows in
// the form don't fail validation.
func parseLines(r *http.Request) ([]core.LineItem, error) {
	names := r.Form["line_name"]
	qtys := r.Form["line_qty"]
	prices := r.Form["line_price"]
	itemIDs := r.Form["line_item_id"]

	var lines []core.LineItem
	for i := range names {
		name := sanitizeInput(names[i])
		qtyStr := ""
		if i < len(qtys) {
			qtyStr = strings.TrimSpace(qtys[i])
		}
		priceStr := ""
		if i < len(prices) {
			priceStr = strings.TrimSpace(prices[i])
		}
		if name == "" && qtyStr == "" && priceStr == "" {
			continue
		}

		qty, err := strconv.ParseInt(qtyStr, 10, 64)
		if err != nil || qty <= 0 {
			return nil, core.ErrInvalidInput
		}
		cents, err := core.ParseDecimalToCents(priceStr)
		if err != nil {
			return nil, err
		}

		line := core.LineItem{
			Name:      name,
			Quantity:  qty,
			UnitPrice: core.Money{Cents: cents},
		}
		if i < len(itemIDs) {
			if id, err := strconv.ParseInt(strings.TrimSpace(itemIDs[i]), 10, 64); err == nil && id > 0 {
				line.ItemID = id
			}
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "method", r.Method, "url", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<div class="error">Invalid request format</div>`))
		return
	}

	lines, err := parseLines(r)
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Invalid line items</div>`))
		return
	}

	draft := services.Draft{
		BuyerName:    sanitizeInput(r.Form.Get("buyer_name")),
		BuyerContact: sanitizeInput(r.Form.Get("buyer_contact")),
		BuyerAddress: sanitizeInput(r.Form.Get("buyer_address")),
		Lines:        lines,
		TaxRateBp:    -1,
		Notes:        sanitizeInput(r.Form.Get("notes")),
	}

	if v := strings.TrimSpace(r.Form.Get("tax_rate")); v != "" {
		bp, err := core.ParsePercentBasisPoints(v)
		if err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">Invalid tax rate</div>`))
			return
		}
		draft.TaxRateBp = bp
	}
	if v := strings.TrimSpace(r.Form.Get("discount")); v != "" {
		cents, err := core.ParseDecimalToCents(v)
		if err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">Invalid discount</div>`))
			return
		}
		draft.Discount = core.Money{Cents: cents}
	}
	if v := strings.TrimSpace(r.Form.Get("due_date")); v != "" {
		due, err := parseDate(v)
		if err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">Invalid due date</div>`))
			return
		}
		draft.DueDate = due
	}

	inv, err := s.invoices.Create(r.Context(), draft)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrEmptyBuyerName):
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">Buyer name is required</div>`))
		case errors.Is(err, core.ErrNoLines):
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">At least one line item is required</div>`))
		case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidInput):
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">Invalid invoice data</div>`))
		default:
			s.httpLog.LogError(r.Context(), "Invoice create error", err,
				applog.ComponentInvoice, applog.OpCreate,
				applog.NewFields().WithClientIP(extractClientIP(r)))
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`<div class="error">Could not save the invoice</div>`))
		}
		return
	}

	s.httpLog.LogInvoiceCreated(r.Context(), inv.Number, inv.BuyerName, len(inv.Lines), inv.Total.Cents)
	s.invalidateSummaries()
	w.Header().Set("HX-Trigger", `{"invoice:created": {"number": "`+template.JSEscapeString(inv.Number)+`"}}`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Invoice ` + template.HTMLEscapeString(inv.Number) + ` created for ` +
		template.HTMLEscapeString(inv.BuyerName) + ` — ` + template.HTMLEscapeString(formatRupees(inv.Total.Cents)) + `</div>`))
}

func (s *Server) handleInvoiceStatus(w http.ResponseWriter, r *http.Request) {
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
		_, _ = w.Write([]byte(`<div class="error">Invalid invoice id</div>`))
		return
	}
	status := core.Status(strings.TrimSpace(r.Form.Get("status")))

	if err := s.invoices.SetStatus(r.Context(), id, status); err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidStatus):
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">Unknown status</div>`))
		case errors.Is(err, core.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<div class="error">Invoice not found</div>`))
		default:
			slog.ErrorContext(r.Context(), "Status update error", "error", err, "invoice_id", id)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`<div class="error">Could not update the status</div>`))
		}
		return
	}

	s.invalidateSummaries()
	w.Header().Set("HX-Trigger", `{"invoice:updated": {"id": `+strconv.FormatInt(id, 10)+`}}`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Status updated to ` + template.HTMLEscapeString(string(status)) + `</div>`))
}

func (s *Server) handleInvoiceExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, err := parseID(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "invalid invoice id", http.StatusUnprocessableEntity)
		return
	}

	inv, err := s.invoices.Find(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.ErrorContext(r.Context(), "Invoice lookup error", "error", err, "invoice_id", id)
		http.Error(w, "could not load invoice", http.StatusInternalServerError)
		return
	}

	profile, err := s.store.CurrentProfile(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Profile read error", "error", err)
	}

	data, err := s.exporter.InvoiceXLSX(r.Context(), inv, profile)
	if err != nil {
		slog.ErrorContext(r.Context(), "Invoice export error", "error", err, "number", inv.Number)
		http.Error(w, "could not export invoice", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(inv)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Server) handleInvoiceDetail(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	id, err := parseID(r.URL.Query().Get("id"))
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Invalid invoice id</div>`))
		return
	}

	inv, err := s.invoices.Find(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<div class="error">Invoice not found</div>`))
			return
		}
		slog.ErrorContext(r.Context(), "Invoice lookup error", "error", err, "invoice_id", id)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<div class="error">Could not load invoice</div>`))
		return
	}

	profile, err := s.store.CurrentProfile(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Profile read error", "error", err)
	}

	type lineRow struct {
		Name      string
		Quantity  int64
		UnitPrice string
		LineTotal string
	}
	data := struct {
		Invoice    core.Invoice
		Lines      []lineRow
		Subtotal   string
		TaxPct     string
		TaxAmount  string
		Discount   string
		Total      string
		Due        string
		PaymentURI string
	}{
		Invoice:    inv,
		Subtotal:   formatRupees(inv.Subtotal.Cents),
		TaxPct:     formatPercent(inv.TaxRateBp),
		TaxAmount:  formatRupees(inv.TaxAmount.Cents),
		Discount:   formatRupees(inv.Discount.Cents),
		Total:      formatRupees(inv.Total.Cents),
		PaymentURI: export.PaymentURI(profile, inv),
	}
	if !inv.DueDate.IsZero() {
		data.Due = inv.DueDate.Format("2006-01-02")
	}
	for _, l := range inv.Lines {
		data.Lines = append(data.Lines, lineRow{
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: formatRupees(l.UnitPrice.Cents),
			LineTotal: formatRupees(l.LineTotal.Cents),
		})
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<div class="placeholder">` + template.HTMLEscapeString(inv.Number) + ` — ` + template.HTMLEscapeString(data.Total) + `</div>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "invoice.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "invoice.html")
		_, _ = w.Write([]byte(`<div class="error">Error rendering invoice</div>`))
	}
}
