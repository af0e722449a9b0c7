package config

import (
	"fmt"
	"os"
	"time"
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
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	// DATABASE_URL is required
	if cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_URL",
			Message: "required",
		})
	}

	// LEAD_REGIONS must name at least one market region
	if len(cfg.LeadRegions) == 0 {
		errs = append(errs, ValidationError{
			Field:   "LEAD_REGIONS",
			Message: "required: comma-separated list of market regions",
		})
	}

	// GMAIL_CREDENTIALS_FILE must point at a readable file
	if cfg.GmailCredentialsFile == "" {
		errs = append(errs, ValidationError{
			Field:   "GMAIL_CREDENTIALS_FILE",
			Message: "required",
		})
	} else if _, err := os.Stat(cfg.GmailCredentialsFile); err != nil {
		errs = append(errs, ValidationError{
			Field:   "GMAIL_CREDENTIALS_FILE",
			Message: fmt.Sprintf("not readable: %v", err),
		})
	}

	// PDF_RENDER_URL is required for document generation
	if cfg.PDFRenderURL == "" {
		errs = append(errs, ValidationError{
			Field:   "PDF_RENDER_URL",
			Message: "required",
		})
	}

	errs = append(errs, validateInterval("ENGINE_MIN_INTERVAL", cfg.EngineMinIntervalStr)...)
	errs = append(errs, validateInterval("ENGINE_MAX_INTERVAL", cfg.EngineMaxIntervalStr)...)

	// The wake interval bounds must be ordered
	if cfg.EngineMinInterval > 0 && cfg.EngineMaxInterval > 0 && cfg.EngineMaxInterval < cfg.EngineMinInterval {
		errs = append(errs, ValidationError{
			Field:   "ENGINE_MAX_INTERVAL",
			Message: fmt.Sprintf("must be >= ENGINE_MIN_INTERVAL (%s)", cfg.EngineMinIntervalStr),
		})
	}

	errs = append(errs, validateInterval("JOB_TIMEOUT", cfg.JobTimeoutStr)...)

	// The reconciler must never sweep a job whose pipeline may still be running
	if cfg.ReconcileEnabled && cfg.ReconcileThreshold > 0 && cfg.JobTimeout > 0 &&
		cfg.ReconcileThreshold <= cfg.JobTimeout {
		errs = append(errs, ValidationError{
			Field:   "RECONCILE_THRESHOLD",
			Message: fmt.Sprintf("must exceed JOB_TIMEOUT (%s)", cfg.JobTimeoutStr),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateInterval(field, value string) ValidationErrors {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return ValidationErrors{{Field: field, Message: fmt.Sprintf("invalid duration: %v", err)}}
	}
	if d <= 0 {
		return ValidationErrors{{Field: field, Message: "must be positive"}}
	}
	return nil
}
