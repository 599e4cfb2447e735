package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

var supportedVendors = map[string]bool{
	"postgres": true,
	"mysql":    true,
	"sqlite":   true,
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateDatabase()...)
	errs = append(errs, c.validateHeuristics()...)
	errs = append(errs, c.validateScheduler()...)
	errs = append(errs, c.validateBackup()...)
	errs = append(errs, c.validateLogging()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateDatabase() ValidationErrors {
	var errs ValidationErrors
	db := &c.Database

	if !supportedVendors[db.Vendor] {
		errs = append(errs, ValidationError{
			Field:   "database.vendor",
			Message: fmt.Sprintf("unsupported vendor %q (must be postgres, mysql, or sqlite)", db.Vendor),
		})
		return errs
	}

	if db.Vendor == "sqlite" {
		if db.Path == "" {
			errs = append(errs, ValidationError{
				Field:   "database.path",
				Message: "database file path is required for sqlite",
			})
		}
		return errs
	}

	if db.Host == "" {
		errs = append(errs, ValidationError{Field: "database.host", Message: "host is required"})
	}
	if db.Port <= 0 || db.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "database.port",
			Message: fmt.Sprintf("port %d is out of range (1-65535)", db.Port),
		})
	}
	if db.User == "" {
		errs = append(errs, ValidationError{Field: "database.user", Message: "user is required"})
	}
	if db.Database == "" {
		errs = append(errs, ValidationError{Field: "database.database", Message: "database name is required"})
	}
	switch db.TLS {
	case "", "disable", "preferred", "required":
	default:
		errs = append(errs, ValidationError{
			Field:   "database.tls",
			Message: fmt.Sprintf("invalid TLS mode %q (must be disable, preferred, or required)", db.TLS),
		})
	}

	return errs
}

func (c *Config) validateHeuristics() ValidationErrors {
	var errs ValidationErrors
	h := &c.Heuristics

	if h.MaxParallel < 1 {
		errs = append(errs, ValidationError{Field: "heuristics.max_parallel", Message: "must be at least 1"})
	}
	if h.BatchMin < 1 {
		errs = append(errs, ValidationError{Field: "heuristics.batch_min", Message: "must be at least 1"})
	}
	if h.BatchMax < h.BatchMin {
		errs = append(errs, ValidationError{
			Field:   "heuristics.batch_max",
			Message: fmt.Sprintf("must be >= batch_min (%d)", h.BatchMin),
		})
	}
	if h.SimpleBandMax >= h.ComplexBandMax {
		errs = append(errs, ValidationError{
			Field:   "heuristics.complex_band_max",
			Message: fmt.Sprintf("must be greater than simple_band_max (%d)", h.SimpleBandMax),
		})
	}
	if h.PerTableBaseSeconds <= 0 {
		errs = append(errs, ValidationError{Field: "heuristics.per_table_base_seconds", Message: "must be positive"})
	}
	if h.NNMaxDistance <= 0 {
		errs = append(errs, ValidationError{Field: "heuristics.nn_max_distance", Message: "must be positive"})
	}

	return errs
}

func (c *Config) validateScheduler() ValidationErrors {
	var errs ValidationErrors
	if c.Scheduler.PerOperationTimeoutSeconds <= 0 {
		errs = append(errs, ValidationError{
			Field:   "scheduler.per_operation_timeout_seconds",
			Message: "must be positive",
		})
	}
	return errs
}

func (c *Config) validateBackup() ValidationErrors {
	var errs ValidationErrors
	if c.Backup.NegligibleSizeBytes < 0 {
		errs = append(errs, ValidationError{
			Field:   "backup.negligible_size_bytes",
			Message: "must not be negative",
		})
	}
	return errs
}

func (c *Config) validateLogging() ValidationErrors {
	var errs ValidationErrors
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level %q (must be debug, info, warn, or error)", c.Logging.Level),
		})
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid format %q (must be json or text)", c.Logging.Format),
		})
	}
	return errs
}
