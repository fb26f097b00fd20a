package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fattura/internal/core"
)

// handleDashboard renders the analytics summary partial for a period.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	period, err := parsePeriodParam(r)
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Unknown period</div>`))
		return
	}

	sum, err := s.getSummary(r.Context(), period)
	if err != nil {
		slog.ErrorContext(r.Context(), "Summary error", "error", err, "period", string(period))
		_, _ = w.Write([]byte(`<section id="dashboard" class="dashboard"><div class="placeholder">Error loading summary</div></section>`))
		return
	}

	type statusRow struct {
		Status string
		Count  int
	}
	data := struct {
		Period        string
		WindowStart   string
		WindowEnd     string
		TotalInvoices int
		TotalAmount   string
		PaidAmount    string
		PendingAmount string
		OverdueAmount string
		Breakdown     []statusRow
	}{
		Period:        string(sum.Period),
		WindowStart:   sum.WindowStart.Format("2006-01-02"),
		WindowEnd:     sum.WindowEnd.Format("2006-01-02"),
		TotalInvoices: sum.TotalInvoices,
		TotalAmount:   formatRupees(sum.TotalAmount.Cents),
		PaidAmount:    formatRupees(sum.PaidAmount.Cents),
		PendingAmount: formatRupees(sum.PendingAmount.Cents),
		OverdueAmount: formatRupees(sum.OverdueAmount.Cents),
	}
	// Stable order for rendering
	for _, st := range []core.Status{core.StatusPending, core.StatusPaid, core.StatusOverdue, core.StatusCancelled} {
		data.Breakdown = append(data.Breakdown, statusRow{Status: string(st), Count: sum.StatusBreakdown[st]})
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="dashboard" class="dashboard"><div class="placeholder">Total: ` + data.TotalAmount + `</div></section>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "dashboard.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "dashboard.html", "period", data.Period)
		_, _ = w.Write([]byte(`<section id="dashboard" class="dashboard"><div class="placeholder">Error rendering summary</div></section>`))
	}
}

// handleHistory renders the invoice list partial, optionally filtered
// by stored status and creation date range.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	q := r.URL.Query()
	status := core.Status(strings.TrimSpace(q.Get("status")))

	var from, to time.Time
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		var err error
		if from, err = parseDate(v); err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">Invalid from date</div>`))
			return
		}
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		var err error
		if to, err = parseDate(v); err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">Invalid to date</div>`))
			return
		}
		// Inclusive: anything created on the "to" day counts.
		to = to.AddDate(0, 0, 1)
	}

	invoices, err := s.invoices.History(r.Context(), status)
	if err != nil {
		if status != "" && !core.ValidStatus(status) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">Unknown status filter</div>`))
			return
		}
		slog.ErrorContext(r.Context(), "History error", "error", err, "status", string(status))
		_, _ = w.Write([]byte(`<section id="history" class="history"><div class="placeholder">Error loading invoices</div></section>`))
		return
	}

	type row struct {
		ID      int64
		Number  string
		Buyer   string
		Created string
		Due     string
		Status  string
		Total   string
	}
	data := struct {
		Filter string
		Rows   []row
	}{Filter: string(status)}
	for _, inv := range invoices {
		if !from.IsZero() && inv.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !inv.CreatedAt.Before(to) {
			continue
		}
		rr := row{
			ID:      inv.ID,
			Number:  inv.Number,
			Buyer:   inv.BuyerName,
			Created: inv.CreatedAt.Format("2006-01-02"),
			Status:  string(inv.Status),
			Total:   formatRupees(inv.Total.Cents),
		}
		if !inv.DueDate.IsZero() {
			rr.Due = inv.DueDate.Format("2006-01-02")
		}
		data.Rows = append(data.Rows, rr)
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="history" class="history"><div class="placeholder">Invoices loaded</div></section>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "history.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "history.html")
		_, _ = w.Write([]byte(`<section id="history" class="history"><div class="placeholder">Error rendering invoices</div></section>`))
	}
}
