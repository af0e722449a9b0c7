package main

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/truesoulcoder/crm-admin-sub001/internal/config"
)

// captureLogOutput calls logConfigWarnings with the given config and returns
// the captured log output as a string.
func captureLogOutput(cfg *config.Config) string {
	var buf bytes.Buffer
	original := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(original)

	logConfigWarnings(cfg)
	return buf.String()
}

func TestLogConfigWarnings_ReconcilerDisabled(t *testing.T) {
	cfg := &config.Config{
		ReconcileEnabled:        false,
		CircuitBreakerThreshold: 5,
		MetricsEnabled:          true,
		RedisAddr:               "localhost:6379",
		OperatorEmail:           "ops@truesoul.test",
	}
	output := captureLogOutput(cfg)

	if !strings.Contains(output, "WARNING [P0]: RECONCILE_ENABLED=false") {
		t.Error("expected no-reconciler P0 warning, got:", output)
	}
	if strings.Contains(output, "WARNING [P1]") {
		t.Error("did not expect P1 warnings, got:", output)
	}
	if strings.Contains(output, "INFO:") {
		t.Error("did not expect INFO lines, got:", output)
	}
}

func TestLogConfigWarnings_BreakerAndMetricsDisabled(t *testing.T) {
	cfg := &config.Config{
		ReconcileEnabled:        true,
		CircuitBreakerThreshold: 0,
		MetricsEnabled:          false,
		RedisAddr:               "localhost:6379",
		OperatorEmail:           "ops@truesoul.test",
	}
	output := captureLogOutput(cfg)

	if !strings.Contains(output, "WARNING [P1]: CIRCUIT_BREAKER_THRESHOLD=0") {
		t.Error("expected breaker P1 warning, got:", output)
	}
	if !strings.Contains(output, "WARNING [P1]: METRICS_ENABLED=false") {
		t.Error("expected metrics P1 warning, got:", output)
	}
	if strings.Contains(output, "WARNING [P0]") {
		t.Error("did not expect P0 warnings, got:", output)
	}
}

func TestLogConfigWarnings_OptionalIntegrationsUnset(t *testing.T) {
	cfg := &config.Config{
		ReconcileEnabled:        true,
		CircuitBreakerThreshold: 5,
		MetricsEnabled:          true,
	}
	output := captureLogOutput(cfg)

	if !strings.Contains(output, "INFO: REDIS_ADDR not set") {
		t.Error("expected redis INFO line, got:", output)
	}
	if !strings.Contains(output, "INFO: OPERATOR_EMAIL not set") {
		t.Error("expected operator INFO line, got:", output)
	}
}

func TestLogConfigWarnings_CleanConfigIsQuiet(t *testing.T) {
	cfg := &config.Config{
		ReconcileEnabled:        true,
		CircuitBreakerThreshold: 5,
		MetricsEnabled:          true,
		RedisAddr:               "localhost:6379",
		OperatorEmail:           "ops@truesoul.test",
	}
	output := captureLogOutput(cfg)

	if strings.Contains(output, "WARNING") || strings.Contains(output, "INFO:") {
		t.Error("expected no output for a clean config, got:", output)
	}
}
