package main

import (
	"log"

	"github.com/truesoulcoder/crm-admin-sub001/internal/config"
)

// logConfigWarnings flags configurations that are valid but operationally
// risky. Validation already rejected anything outright broken.
func logConfigWarnings(cfg *config.Config) {
	if !cfg.ReconcileEnabled {
		log.Println("crondonkey: WARNING [P0]: RECONCILE_ENABLED=false - jobs stuck in processing after a crash will never be marked failed")
	}

	if cfg.CircuitBreakerThreshold <= 0 {
		log.Println("crondonkey: WARNING [P1]: CIRCUIT_BREAKER_THRESHOLD=0 - failing mailboxes will keep receiving sends")
	}

	if !cfg.MetricsEnabled {
		log.Println("crondonkey: WARNING [P1]: METRICS_ENABLED=false - send outcomes will not be observable")
	}

	if cfg.RedisAddr == "" {
		log.Println("crondonkey: INFO: REDIS_ADDR not set; per-day send analytics disabled")
	}

	if cfg.OperatorEmail == "" {
		log.Println("crondonkey: INFO: OPERATOR_EMAIL not set; preflight requests must name a recipient")
	}
}
