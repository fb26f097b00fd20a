package http

import (
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"fattura/internal/core"
)

// handleProfilePanel renders the seller profile and settings partial.
func (s *Server) handleProfilePanel(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	profile, err := s.store.CurrentProfile(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Profile read error", "error", err)
		_, _ = w.Write([]byte(`<section id="profile" class="profile"><div class="placeholder">Error loading profile</div></section>`))
		return
	}
	settings, err := s.store.GetSettings(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Settings read error", "error", err)
		settings = core.DefaultSettings()
	}

	data := struct {
		FirstRun       bool
		Profile        *core.Profile
		Theme          string
		AutoTax        bool
		DefaultDueDays int
	}{
		FirstRun:       profile == nil,
		Profile:        profile,
		Theme:          settings.Theme,
		AutoTax:        settings.AutoTax,
		DefaultDueDays: settings.DefaultDueDays,
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="profile" class="profile"><div class="placeholder">Profile</div></section>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "profile.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "profile.html")
		_, _ = w.Write([]byte(`<section id="profile" class="profile"><div class="placeholder">Error rendering profile</div></section>`))
	}
}

func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
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

	p := core.Profile{
		Company: sanitizeInput(r.Form.Get("company")),
		Address: sanitizeInput(r.Form.Get("address")),
		TaxID:   sanitizeInput(r.Form.Get("tax_id")),
		LogoRef: sanitizeInput(r.Form.Get("logo_ref")),
		UPIID:   sanitizeInput(r.Form.Get("upi_id")),
		Phone:   sanitizeInput(r.Form.Get("phone")),
		Email:   sanitizeInput(r.Form.Get("email")),
	}

	if err := p.Validate(); err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Invalid profile: ` + template.HTMLEscapeString(err.Error()) + `</div>`))
		return
	}

	saved, err := s.store.SaveProfile(r.Context(), p)
	if err != nil {
		slog.ErrorContext(r.Context(), "Profile save error", "error", err, "company", p.Company)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<div class="error">Could not save the profile</div>`))
		return
	}

	w.Header().Set("HX-Trigger", `{"profile:saved": {}}`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Profile saved: ` + template.HTMLEscapeString(saved.Company) + `</div>`))
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
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

	settings, err := s.store.GetSettings(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Settings read error", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<div class="error">Could not load settings</div>`))
		return
	}

	if v := strings.TrimSpace(r.Form.Get("theme")); v != "" {
		settings.Theme = v
	}
	settings.AutoTax = r.Form.Get("auto_tax") == "on" || r.Form.Get("auto_tax") == "true"
	if v := strings.TrimSpace(r.Form.Get("default_due_days")); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 0 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">Invalid due days</div>`))
			return
		}
		settings.DefaultDueDays = days
	}

	if err := settings.Validate(); err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Invalid settings: ` + template.HTMLEscapeString(err.Error()) + `</div>`))
		return
	}

	if err := s.store.SaveSettings(r.Context(), settings); err != nil {
		slog.ErrorContext(r.Context(), "Settings save error", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<div class="error">Could not save settings</div>`))
		return
	}

	// Auto-tax and due-day defaults shape future invoices only; cached
	// summaries stay valid.
	w.Header().Set("HX-Trigger", `{"settings:saved": {}}`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Settings saved</div>`))
}
