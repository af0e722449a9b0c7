package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/truesoulcoder/crm-admin-sub001/internal/analytics"
	"github.com/truesoulcoder/crm-admin-sub001/internal/api"
	"github.com/truesoulcoder/crm-admin-sub001/internal/campaign"
	"github.com/truesoulcoder/crm-admin-sub001/internal/circuitbreaker"
	"github.com/truesoulcoder/crm-admin-sub001/internal/config"
	"github.com/truesoulcoder/crm-admin-sub001/internal/domain"
	"github.com/truesoulcoder/crm-admin-sub001/internal/engine"
	"github.com/truesoulcoder/crm-admin-sub001/internal/leads"
	"github.com/truesoulcoder/crm-admin-sub001/internal/mail"
	"github.com/truesoulcoder/crm-admin-sub001/internal/metrics"
	"github.com/truesoulcoder/crm-admin-sub001/internal/pdf"
	"github.com/truesoulcoder/crm-admin-sub001/internal/pipeline"
	"github.com/truesoulcoder/crm-admin-sub001/internal/reconciler"
	"github.com/truesoulcoder/crm-admin-sub001/internal/store/postgres"

	_ "github.com/lib/pq"
)

// pipelineProcessor adapts pipeline.Pipeline to the engine.Processor interface.
// The pipeline records every outcome itself; the returned error is log-only.
type pipelineProcessor struct {
	pipe *pipeline.Pipeline
}

func (p *pipelineProcessor) Process(ctx context.Context, job domain.CampaignJob) {
	if err := p.pipe.Process(ctx, job); err != nil {
		log.Printf("crondonkey: job %s: %v", job.ID, err)
	}
}

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

const (
	pdfRenderTimeout = 30 * time.Second
	gmailSendTimeout = 30 * time.Second
)

// operatorID is the fixed owner of every campaign in single-tenant mode.
var operatorID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`crondonkey - campaign send engine

Usage:
  crondonkey <command>

Commands:
  serve      Start the send engine and HTTP API
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATABASE_URL              PostgreSQL connection string (required)
  LEAD_REGIONS              Comma-separated market region allowlist (required)
  GMAIL_CREDENTIALS_FILE    Service account JSON for impersonated sends (required)
  PDF_RENDER_URL            HTML-to-PDF render service URL (required)
  LETTERHEAD_PATH           Company letterhead PDF (optional)
  LOGO_PATH                 Inline logo image for email bodies (optional)
  OPERATOR_EMAIL            Default preflight recipient (optional)
  REDIS_ADDR                Redis address for send analytics (optional)
  HTTP_ADDR                 HTTP server address (default: ":8080")

  ENGINE_MIN_INTERVAL       Lower wake interval bound (default: "30s")
  ENGINE_MAX_INTERVAL       Upper wake interval bound (default: "2m")
  CLAIM_LIMIT               Max due jobs claimed per wake (default: "10")
  JOB_TIMEOUT               Per-job pipeline deadline (default: "90s")

  DB_OP_TIMEOUT             Database operation timeout (default: "5s")
  DB_MAX_OPEN_CONNS         Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS         Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME      Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME     Max connection idle time (default: "5m")

  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")

  RECONCILE_ENABLED         Enable stale job sweeper (default: "true")
  RECONCILE_INTERVAL        How often to sweep (default: "5m")
  RECONCILE_THRESHOLD       Age before a processing job counts as stale (default: "10m")
  RECONCILE_BATCH_SIZE      Max stale jobs per sweep (default: "100")

  CIRCUIT_BREAKER_THRESHOLD Consecutive failures before a mailbox opens (default: "5", "0" disables)
  CIRCUIT_BREAKER_COOLDOWN  Open mailbox cooldown (default: "2m")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	logConfigWarnings(&cfg)

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return exitRuntimeError
	}
	defer db.Close()

	// Configure connection pool
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	log.Printf("crondonkey: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		return exitRuntimeError
	}

	if err := probeEngineStateRow(db); err != nil {
		if err == sql.ErrNoRows {
			fmt.Fprintln(os.Stderr, "engine_state row missing: run migrations before starting")
		} else {
			fmt.Fprintf(os.Stderr, "failed to probe engine_state: %v\n", err)
		}
		return exitRuntimeError
	}

	store := postgres.New(db, cfg.DBOpTimeout)

	resolver, err := leads.NewResolver(cfg.LeadRegions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid LEAD_REGIONS: %v\n", err)
		return exitInvalidConfig
	}

	renderer := pdf.NewHTTPRenderer(cfg.PDFRenderURL, pdfRenderTimeout)
	compositor, err := pdf.NewCompositor(renderer, cfg.LetterheadPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load letterhead: %v\n", err)
		return exitRuntimeError
	}

	mailer, err := mail.NewGmailSender(cfg.GmailCredentialsFile, gmailSendTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize gmail sender: %v\n", err)
		return exitRuntimeError
	}

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("crondonkey: metrics enabled (path=%s)", cfg.MetricsPath)
	}

	pipe := pipeline.New(store, compositor, mailer)
	if metricsSink != nil {
		pipe = pipe.WithMetrics(metricsSink)
	}

	if cfg.CircuitBreakerThreshold > 0 {
		pipe = pipe.WithBreaker(circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown))
		log.Printf("crondonkey: circuit breaker enabled (threshold=%d, cooldown=%s)",
			cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
	}

	// Wire analytics if Redis is configured
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		pipe = pipe.WithAnalytics(analytics.NewRedisSink(redisClient))
		log.Printf("crondonkey: analytics enabled (redis=%s)", cfg.RedisAddr)
	}

	if cfg.LogoPath != "" {
		logo, err := os.ReadFile(cfg.LogoPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read logo: %v\n", err)
			return exitRuntimeError
		}
		pipe = pipe.WithLogo(logo)
	}

	eng := engine.New(
		engine.Config{
			MinInterval: cfg.EngineMinInterval,
			MaxInterval: cfg.EngineMaxInterval,
			ClaimLimit:  cfg.ClaimLimit,
			JobTimeout:  cfg.JobTimeout,
		},
		store,
		&pipelineProcessor{pipe: pipe},
	)
	if metricsSink != nil {
		eng = eng.WithMetrics(metricsSink)
	}

	control := engine.NewControl(store)
	campaigns := campaign.NewController(store, resolver, pipe)

	apiHandler := api.NewHandler(store, campaigns, control, operatorID, cfg.OperatorEmail).
		WithHealthChecker(db)

	mux := http.NewServeMux()
	if metricsSink != nil {
		mux.Handle(cfg.MetricsPath, promhttp.Handler())
	}
	mux.Handle("/", apiHandler.Router())

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("crondonkey: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("crondonkey: http server error: %v", err)
		}
	}()

	// Separate contexts for engine and reconciler to enable ordered shutdown.
	engineCtx, cancelEngine := context.WithCancel(context.Background())

	var engineWg sync.WaitGroup
	var reconcilerWg sync.WaitGroup
	var cancelReconciler context.CancelFunc

	engineWg.Add(1)
	go func() {
		defer engineWg.Done()
		if err := eng.Run(engineCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("crondonkey: engine error: %v", err)
		}
	}()

	// Start reconciler if enabled
	if cfg.ReconcileEnabled {
		var reconcilerCtx context.Context
		reconcilerCtx, cancelReconciler = context.WithCancel(context.Background())
		recon := reconciler.New(
			reconciler.Config{
				Interval:  cfg.ReconcileInterval,
				Threshold: cfg.ReconcileThreshold,
				BatchSize: cfg.ReconcileBatchSize,
			},
			store,
		)
		if metricsSink != nil {
			recon = recon.WithMetrics(metricsSink)
		}
		reconcilerWg.Add(1)
		go func() {
			defer reconcilerWg.Done()
			recon.Run(reconcilerCtx)
		}()
		log.Printf("crondonkey: reconciler enabled (interval=%s, threshold=%s, batch=%d)",
			cfg.ReconcileInterval, cfg.ReconcileThreshold, cfg.ReconcileBatchSize)
	}

	log.Printf("crondonkey: started (wake=[%s,%s], http=%s)",
		cfg.EngineMinInterval, cfg.EngineMaxInterval, cfg.HTTPAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("crondonkey: received signal %v, shutting down", received)

	// Phase 1: Stop the engine (in-flight jobs finish or time out)
	log.Println("crondonkey: stopping engine...")
	cancelEngine()
	engineWg.Wait()
	log.Println("crondonkey: engine stopped")

	// Phase 2: Stop the reconciler
	if cancelReconciler != nil {
		log.Println("crondonkey: stopping reconciler...")
		cancelReconciler()
		reconcilerWg.Wait()
		log.Println("crondonkey: reconciler stopped")
	}

	// Phase 3: Stop HTTP server with graceful shutdown
	log.Println("crondonkey: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("crondonkey: http server shutdown error: %v", err)
	}
	log.Println("crondonkey: http server stopped")

	log.Println("crondonkey: stopped")
	return exitSuccess
}

// probeEngineStateRow verifies the engine_state singleton exists, which is
// the cheapest signal that migrations have been applied.
func probeEngineStateRow(db *sql.DB) error {
	var id int
	return db.QueryRow(`SELECT id FROM engine_state WHERE id = 1`).Scan(&id)
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("crondonkey version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
