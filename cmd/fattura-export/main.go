package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"fattura/internal/config"
	"fattura/internal/core"
	"fattura/internal/export"
	applog "fattura/internal/log"
	"fattura/internal/services"
	"fattura/internal/storage"
)

// fattura-export writes XLSX files without the server: a single invoice
// workbook (-invoice) or an analytics report (-period).
func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentExport)
	applog.SetDefault(logger)

	invoiceID := flag.Int64("invoice", 0, "invoice id to export")
	period := flag.String("period", "", "analytics period to export (day|week|month|year)")
	outDir := flag.String("out", "", "output directory (defaults to EXPORT_DIR)")
	flag.Parse()

	if *invoiceID == 0 && *period == "" {
		logger.Error("Nothing to do: pass -invoice or -period")
		os.Exit(2)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	dir := *outDir
	if dir == "" {
		dir = cfg.ExportDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("Cannot create export directory", "error", err, "dir", dir)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	invoices := services.NewInvoiceService(repo)
	exporter := export.NewService(logger.Logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *invoiceID != 0 {
		inv, err := invoices.Find(ctx, *invoiceID)
		if err != nil {
			logger.Error("Invoice lookup failed", "error", err, "invoice_id", *invoiceID)
			os.Exit(1)
		}
		profile, err := repo.CurrentProfile(ctx)
		if err != nil {
			logger.Error("Profile read failed", "error", err)
			os.Exit(1)
		}
		data, err := exporter.InvoiceXLSX(ctx, inv, profile)
		if err != nil {
			logger.Error("Invoice export failed", "error", err, applog.FieldInvoiceNumber, inv.Number)
			os.Exit(1)
		}
		path := filepath.Join(dir, export.Filename(inv))
		if err := os.WriteFile(path, data, 0644); err != nil {
			logger.Error("Write failed", "error", err, applog.FieldExportPath, path)
			os.Exit(1)
		}
		logger.Info("Invoice exported", applog.FieldInvoiceNumber, inv.Number, applog.FieldExportPath, path)
	}

	if *period != "" {
		p, err := core.ParsePeriod(*period)
		if err != nil {
			logger.Error("Unknown period", "error", err, applog.FieldPeriod, *period)
			os.Exit(2)
		}
		sum, err := invoices.Analytics(ctx, p)
		if err != nil {
			logger.Error("Analytics failed", "error", err, applog.FieldPeriod, string(p))
			os.Exit(1)
		}
		window, err := repo.ListInvoicesInRange(ctx, sum.WindowStart, sum.WindowEnd)
		if err != nil {
			logger.Error("Invoice list failed", "error", err)
			os.Exit(1)
		}
		data, err := exporter.ReportXLSX(ctx, sum, window)
		if err != nil {
			logger.Error("Report export failed", "error", err, applog.FieldPeriod, string(p))
			os.Exit(1)
		}
		name := "report-" + string(p) + "-" + time.Now().UTC().Format("20060102") + ".xlsx"
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			logger.Error("Write failed", "error", err, applog.FieldExportPath, path)
			os.Exit(1)
		}
		logger.Info("Report exported", applog.FieldPeriod, string(p), applog.FieldExportPath, path)
	}
}
