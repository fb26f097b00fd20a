package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fattura/internal/core"
)

// parsePeriodParam reads the period selector from the query string,
// defaulting to month.
func parsePeriodParam(r *http.Request) (core.Period, error) {
	return core.ParsePeriod(strings.TrimSpace(r.URL.Query().Get("period")))
}

// parseID reads a positive integer id from a form or query value.
func parseID(v string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", v)
	}
	return id, nil
}

// parseDate parses a date string in YYYY-MM-DD format as UTC.
func parseDate(dateStr string) (time.Time, error) {
	return time.Parse("2006-01-02", dateStr)
}

// formatPercent renders basis points as a decimal percent string
// without trailing zeros (1850 -> "18.5").
func formatPercent(bp int64) string {
	whole := bp / 100
	frac := bp % 100
	if frac == 0 {
		return strconv.FormatInt(whole, 10)
	}
	s := fmt.Sprintf("%d.%02d", whole, frac)
	return strings.TrimRight(s, "0")
}

// formatRupees formats cents as a currency string for templates.
func formatRupees(cents int64) string {
	return core.FormatCents(cents)
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}
