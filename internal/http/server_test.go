package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"fattura/internal/export"
	"fattura/internal/ledger/memory"
	"fattura/internal/services"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := services.NewInvoiceService(store)
	srv := NewServer(":0", store, svc, export.NewService(nil), 1800)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func postForm(srv *Server, path string, form url.Values) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func get(srv *Server, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func invoiceForm() url.Values {
	return url.Values{
		"buyer_name": {"Acme Traders"},
		"line_name":  {"Widget"},
		"line_qty":   {"2"},
		"line_price": {"5.00"},
	}
}

func TestIndexAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := get(srv, "/")
	if rr.Code != 200 {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Fattura") {
		t.Fatalf("index body missing heading")
	}
	// Fresh store means no profile yet
	if !strings.Contains(rr.Body.String(), "Set up your company profile") {
		t.Fatalf("index missing first-run notice")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := get(srv, path)
		if rr.Code != 200 {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestCreateInvoiceValidationAndSuccess(t *testing.T) {
	srv, store := newTestServer(t)

	// Wrong method
	rr := get(srv, "/invoices")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}

	// Invalid price
	form := invoiceForm()
	form.Set("line_price", "abc")
	rr = postForm(srv, "/invoices", form)
	if rr.Code != 422 {
		t.Fatalf("expected 422, got %d", rr.Code)
	}

	// Missing buyer
	form = invoiceForm()
	form.Set("buyer_name", "")
	rr = postForm(srv, "/invoices", form)
	if rr.Code != 422 {
		t.Fatalf("expected 422, got %d", rr.Code)
	}

	// Invalid tax rate
	form = invoiceForm()
	form.Set("tax_rate", "150")
	rr = postForm(srv, "/invoices", form)
	if rr.Code != 422 {
		t.Fatalf("expected 422, got %d", rr.Code)
	}

	if n, _ := store.CountInvoices(context.Background()); n != 0 {
		t.Fatalf("failed posts must not persist, got %d invoices", n)
	}

	// Success
	rr = postForm(srv, "/invoices", invoiceForm())
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "success") {
		t.Fatalf("expected success in body: %s", rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "invoice:created") {
		t.Fatalf("expected HX-Trigger header, got %q", rr.Header().Get("HX-Trigger"))
	}
	if n, _ := store.CountInvoices(context.Background()); n != 1 {
		t.Fatalf("expected 1 invoice, got %d", n)
	}
}

func TestInvoiceStatusUpdate(t *testing.T) {
	srv, store := newTestServer(t)
	postForm(srv, "/invoices", invoiceForm())

	list, _ := store.ListInvoices(context.Background())
	id := list[0].ID

	rr := postForm(srv, "/invoices/status", url.Values{"id": {"999"}, "status": {"paid"}})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown invoice, got %d", rr.Code)
	}

	rr = postForm(srv, "/invoices/status", url.Values{"id": {"1"}, "status": {"shipped"}})
	if rr.Code != 422 {
		t.Fatalf("expected 422 for bad status, got %d", rr.Code)
	}

	rr = postForm(srv, "/invoices/status", url.Values{"id": {"1"}, "status": {"paid"}})
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	list, _ = store.ListInvoices(context.Background())
	for _, inv := range list {
		if inv.ID == id && inv.Status != "paid" {
			t.Fatalf("status not persisted: %s", inv.Status)
		}
	}
}

func TestDashboardReflectsWritesThroughCache(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := get(srv, "/ui/dashboard?period=month")
	if rr.Code != 200 {
		t.Fatalf("dashboard status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "₹0.00") {
		t.Fatalf("empty dashboard should show zero totals: %s", rr.Body.String())
	}

	postForm(srv, "/invoices", invoiceForm())

	// The write purges the cached summary, so the new invoice shows up.
	rr = get(srv, "/ui/dashboard?period=month")
	if rr.Code != 200 {
		t.Fatalf("dashboard status=%d", rr.Code)
	}
	// 10.00 subtotal + 18% default tax
	if !strings.Contains(rr.Body.String(), "₹11.80") {
		t.Fatalf("dashboard missing new invoice total: %s", rr.Body.String())
	}

	rr = get(srv, "/ui/dashboard?period=quarter")
	if rr.Code != 422 {
		t.Fatalf("expected 422 for unknown period, got %d", rr.Code)
	}
}

func TestHistoryFilter(t *testing.T) {
	srv, _ := newTestServer(t)
	postForm(srv, "/invoices", invoiceForm())

	rr := get(srv, "/ui/history")
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "Acme Traders") {
		t.Fatalf("history missing invoice: status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = get(srv, "/ui/history?status=paid")
	if rr.Code != 200 {
		t.Fatalf("history status=%d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "Acme Traders") {
		t.Fatalf("paid filter should hide pending invoices")
	}

	rr = get(srv, "/ui/history?status=shipped")
	if rr.Code != 422 {
		t.Fatalf("expected 422 for bad filter, got %d", rr.Code)
	}

	rr = get(srv, "/ui/history?from=2000-01-01&to=2100-01-01")
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "Acme Traders") {
		t.Fatalf("wide date range should include invoice: status=%d", rr.Code)
	}

	rr = get(srv, "/ui/history?to=2000-01-01")
	if rr.Code != 200 || strings.Contains(rr.Body.String(), "Acme Traders") {
		t.Fatalf("past date range should hide invoice")
	}

	rr = get(srv, "/ui/history?from=not-a-date")
	if rr.Code != 422 {
		t.Fatalf("expected 422 for bad date, got %d", rr.Code)
	}
}

func TestItemLifecycleOverHTTP(t *testing.T) {
	srv, store := newTestServer(t)

	rr := postForm(srv, "/items", url.Values{"name": {"Widget"}, "unit_price": {"5.00"}, "category": {"hardware"}})
	if rr.Code != 200 {
		t.Fatalf("item save status=%d: %s", rr.Code, rr.Body.String())
	}

	rr = postForm(srv, "/items", url.Values{"name": {""}, "unit_price": {"5.00"}})
	if rr.Code != 422 {
		t.Fatalf("expected 422 for empty name, got %d", rr.Code)
	}

	rr = get(srv, "/ui/items")
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "Widget") {
		t.Fatalf("items partial missing item: %s", rr.Body.String())
	}

	rr = postForm(srv, "/items/delete", url.Values{"id": {"1"}})
	if rr.Code != 200 {
		t.Fatalf("delete status=%d", rr.Code)
	}

	left, _ := store.ListItems(context.Background())
	if len(left) != 0 {
		t.Fatalf("expected empty catalog, got %d", len(left))
	}
}

func TestProfileAndSettings(t *testing.T) {
	srv, store := newTestServer(t)

	rr := postForm(srv, "/profile", url.Values{"company": {""}, "address": {"x"}})
	if rr.Code != 422 {
		t.Fatalf("expected 422 for empty company, got %d", rr.Code)
	}

	rr = postForm(srv, "/profile", url.Values{
		"company": {"Studio Rossi"},
		"address": {"Via Roma 1"},
		"upi_id":  {"rossi@upi"},
	})
	if rr.Code != 200 {
		t.Fatalf("profile save status=%d: %s", rr.Code, rr.Body.String())
	}

	p, _ := store.CurrentProfile(context.Background())
	if p == nil || p.Company != "Studio Rossi" {
		t.Fatalf("profile not persisted: %+v", p)
	}

	rr = postForm(srv, "/settings", url.Values{"theme": {"dark"}, "default_due_days": {"15"}})
	if rr.Code != 200 {
		t.Fatalf("settings save status=%d: %s", rr.Code, rr.Body.String())
	}
	set, _ := store.GetSettings(context.Background())
	if set.Theme != "dark" || set.AutoTax || set.DefaultDueDays != 15 {
		t.Fatalf("settings not persisted: %+v", set)
	}

	rr = postForm(srv, "/settings", url.Values{"theme": {"neon"}})
	if rr.Code != 422 {
		t.Fatalf("expected 422 for bad theme, got %d", rr.Code)
	}
}

func TestInvoiceExportDownload(t *testing.T) {
	srv, _ := newTestServer(t)
	postForm(srv, "/invoices", invoiceForm())

	rr := get(srv, "/invoices/export?id=1")
	if rr.Code != 200 {
		t.Fatalf("export status=%d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, ".xlsx") {
		t.Fatalf("unexpected disposition %q", cd)
	}
	if rr.Body.Len() == 0 {
		t.Fatal("empty workbook")
	}

	rr = get(srv, "/invoices/export?id=999")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestInvoiceDetailPartial(t *testing.T) {
	srv, _ := newTestServer(t)
	postForm(srv, "/invoices", invoiceForm())

	rr := get(srv, "/ui/invoice?id=1")
	if rr.Code != 200 {
		t.Fatalf("detail status=%d", rr.Code)
	}
	for _, want := range []string{"Acme Traders", "Widget", "₹11.80"} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Fatalf("detail missing %q: %s", want, rr.Body.String())
		}
	}

	rr = get(srv, "/ui/invoice?id=999")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := get(srv, "/")
	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	} {
		if got := rr.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}
