package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fattura/internal/core"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Backend selection
	DataBackend string

	// Export
	ExportDir string

	// Invoice defaults (seed values for the settings row and the
	// creation form)
	DefaultTaxRate string
	DefaultDueDays int

	// Shutdown
	ShutdownTimeout time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fattura.db"),
		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),

		ExportDir: getEnv("EXPORT_DIR", "./exports"),

		DefaultTaxRate: getEnv("DEFAULT_TAX_RATE", "18"),
		DefaultDueDays: getEnvInt("DEFAULT_DUE_DAYS", 30),

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	return cfg
}

// TaxRateBp returns the configured default tax rate in basis points.
// Load tolerates any string; Validate is the gate.
func (c *Config) TaxRateBp() int64 {
	bp, err := core.ParsePercentBasisPoints(c.DefaultTaxRate)
	if err != nil {
		return 0
	}
	return bp
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate export directory
	if c.ExportDir == "" {
		errors = append(errors, "export directory cannot be empty")
	}

	// Validate invoice defaults
	if _, err := core.ParsePercentBasisPoints(c.DefaultTaxRate); err != nil {
		errors = append(errors, fmt.Sprintf("invalid default tax rate '%s': %v", c.DefaultTaxRate, err))
	}
	if c.DefaultDueDays < 0 {
		errors = append(errors, fmt.Sprintf("invalid default due days %d: must not be negative", c.DefaultDueDays))
	} else if c.DefaultDueDays > 365 {
		errors = append(errors, fmt.Sprintf("invalid default due days %d: must be at most 365", c.DefaultDueDays))
	}

	// Validate shutdown timeout
	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	} else if c.ShutdownTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at most 1 minute", c.ShutdownTimeout))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
