package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"fattura/internal/cache"
	"fattura/internal/core"
	"fattura/internal/export"
	"fattura/internal/ledger"
	applog "fattura/internal/log"
	"fattura/internal/services"
	appweb "fattura/web"
)

type Server struct {
	http.Server
	templates *template.Template

	store    ledger.Store
	invoices *services.InvoiceService
	exporter *export.Service

	rateLimiter *writeLimiter
	metrics     *securityMetrics
	log         *applog.Logger
	httpLog     *applog.StructuredLogger

	// Analytics summaries are cached per period and purged on every
	// invoice write.
	summaryCache *cache.LRUCache[core.Summary]
	cacheManager *cache.Manager

	defaultTaxRateBp int64
	shutdownOnce     sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, store ledger.Store, invoices *services.InvoiceService, exporter *export.Service, defaultTaxRateBp int64) *Server {
	mux := http.NewServeMux()
	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr: addr,
		},
		store:            store,
		invoices:         invoices,
		exporter:         exporter,
		rateLimiter:      newWriteLimiter(),
		metrics:          &securityMetrics{},
		log:              logger,
		httpLog:          applog.NewStructuredLogger(logger),
		summaryCache:     cache.NewLRUCache[core.Summary](16, 2*time.Minute),
		cacheManager:     cache.NewManager(),
		defaultTaxRateBp: defaultTaxRateBp,
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/", s.withSecurityHeaders(s.handleIndex))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("/invoices", s.withSecurityHeaders(s.handleCreateInvoice))
	mux.HandleFunc("/invoices/status", s.withSecurityHeaders(s.handleInvoiceStatus))
	mux.HandleFunc("/invoices/export", s.withSecurityHeaders(s.handleInvoiceExport))
	mux.HandleFunc("/items", s.withSecurityHeaders(s.handleUpsertItem))
	mux.HandleFunc("/items/delete", s.withSecurityHeaders(s.handleDeleteItem))
	mux.HandleFunc("/profile", s.withSecurityHeaders(s.handleSaveProfile))
	mux.HandleFunc("/settings", s.withSecurityHeaders(s.handleSaveSettings))

	// UI partials
	mux.HandleFunc("/ui/dashboard", s.withSecurityHeaders(s.handleDashboard))
	mux.HandleFunc("/ui/history", s.withSecurityHeaders(s.handleHistory))
	mux.HandleFunc("/ui/items", s.withSecurityHeaders(s.handleItemList))
	mux.HandleFunc("/ui/invoice", s.withSecurityHeaders(s.handleInvoiceDetail))
	mux.HandleFunc("/ui/profile", s.withSecurityHeaders(s.handleProfilePanel))

	// Every request carries a context logger tagged with its id.
	s.Handler = applog.Middleware(logger)(applog.RequestIDMiddleware(newRequestID)(mux))

	return s
}

// newRequestID honors an upstream X-Request-ID and mints one otherwise.
func newRequestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return "req_" + uuid.NewString()
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.close()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request logging to responses
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx := r.Context()
		clientIP := extractClientIP(r)
		reqLog := applog.FromContext(ctx)

		if detectSuspiciousRequest(r, s.metrics) {
			reqLog.WarnContext(ctx, "Suspicious request",
				applog.FieldClientIP, clientIP,
				applog.FieldPath, r.URL.Path)
		}

		s.httpLog.LogHTTPStart(ctx, r, clientIP)

		// Rate limit writes only; partial refreshes stay cheap
		if r.Method == http.MethodPost && !s.rateLimiter.permit(clientIP, s.metrics) {
			reqLog.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com 'unsafe-eval'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.httpLog.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	// A store that cannot answer the settings read is not ready.
	if _, err := s.store.GetSettings(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	profile, err := s.store.CurrentProfile(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Profile read error", "error", err)
	}
	settings, err := s.store.GetSettings(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Settings read error", "error", err)
		settings = core.DefaultSettings()
	}
	items, err := s.store.ListItems(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Item list error", "error", err)
	}

	data := struct {
		FirstRun       bool
		Profile        *core.Profile
		Theme          string
		AutoTax        bool
		DefaultDueDays int
		TaxRatePct     string
		Items          []core.Item
		Today          string
	}{
		FirstRun:       profile == nil,
		Profile:        profile,
		Theme:          settings.Theme,
		AutoTax:        settings.AutoTax,
		DefaultDueDays: settings.DefaultDueDays,
		TaxRatePct:     formatPercent(s.defaultTaxRateBp),
		Items:          items,
		Today:          time.Now().Format("2006-01-02"),
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// invalidateSummaries drops every cached analytics window. Any invoice
// write can move amounts between buckets, so the whole cache goes.
func (s *Server) invalidateSummaries() {
	s.summaryCache.Purge()
}

func (s *Server) getSummary(ctx context.Context, p core.Period) (core.Summary, error) {
	key := string(p)

	if sum, found := s.summaryCache.Get(key); found {
		slog.DebugContext(ctx, "Summary cache hit", applog.FieldPeriod, key)
		return sum, nil
	}

	cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()
	sum, err := s.invoices.Analytics(cctx, p)
	if err != nil {
		return core.Summary{}, err
	}

	s.summaryCache.Set(key, sum)
	slog.DebugContext(ctx, "Summary cached", applog.FieldPeriod, key, applog.FieldTotalCents, sum.TotalAmount.Cents)
	return sum, nil
}
