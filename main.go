package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	addressapp "cargotrack-cloud/internal/addresses/application"
	addresses "cargotrack-cloud/internal/addresses/domain"
	addressmemory "cargotrack-cloud/internal/addresses/infrastructure/memory"
	addresspostgres "cargotrack-cloud/internal/addresses/infrastructure/postgres"
	addresshttp "cargotrack-cloud/internal/addresses/interfaces/http"
	"cargotrack-cloud/internal/audit"
	"cargotrack-cloud/internal/auth"
	deviceapp "cargotrack-cloud/internal/devices/application"
	devices "cargotrack-cloud/internal/devices/domain"
	devicememory "cargotrack-cloud/internal/devices/infrastructure/memory"
	devicepostgres "cargotrack-cloud/internal/devices/infrastructure/postgres"
	devicehttp "cargotrack-cloud/internal/devices/interfaces/http"
	notifapp "cargotrack-cloud/internal/notifications/application"
	notifications "cargotrack-cloud/internal/notifications/domain"
	notifmemory "cargotrack-cloud/internal/notifications/infrastructure/memory"
	notifpostgres "cargotrack-cloud/internal/notifications/infrastructure/postgres"
	"cargotrack-cloud/internal/notifications/notify"
	"cargotrack-cloud/internal/observability/metrics"
	orders "cargotrack-cloud/internal/orders/domain"
	ordermemory "cargotrack-cloud/internal/orders/infrastructure/memory"
	orderpostgres "cargotrack-cloud/internal/orders/infrastructure/postgres"
	"cargotrack-cloud/internal/ratelimit"
	"cargotrack-cloud/internal/scans"
	shipmentapp "cargotrack-cloud/internal/shipments/application"
	shipments "cargotrack-cloud/internal/shipments/domain"
	shipmentmemory "cargotrack-cloud/internal/shipments/infrastructure/memory"
	shipmentpostgres "cargotrack-cloud/internal/shipments/infrastructure/postgres"
	shipmenthttp "cargotrack-cloud/internal/shipments/interfaces/http"
	telemetryapp "cargotrack-cloud/internal/telemetry/application"
	telemetry "cargotrack-cloud/internal/telemetry/domain"
	telemetrymemory "cargotrack-cloud/internal/telemetry/infrastructure/memory"
	telemetrypostgres "cargotrack-cloud/internal/telemetry/infrastructure/postgres"
	ingesthttp "cargotrack-cloud/internal/telemetry/interfaces/ingest"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
	} else {
		logger.Printf("DATABASE_URL not set, using in-memory stores")
	}

	metrics.Init()

	var (
		eventRepo    telemetry.EventRepository
		deviceRepo   devices.DeviceRepository
		shipmentRepo shipments.ShipmentRepository
		orderRepo    orders.OrderRepository
		notifRepo    notifications.NotificationRepository
		addressRepo  addresses.AddressRepository
		auditor      audit.Logger
	)
	if db != nil {
		eventRepo = telemetrypostgres.NewEventRepository(db)
		deviceRepo = devicepostgres.NewDeviceRepository(db)
		shipmentRepo = shipmentpostgres.NewShipmentRepository(db)
		orderRepo = orderpostgres.NewOrderRepository(db)
		notifRepo = notifpostgres.NewNotificationRepository(db)
		addressRepo = addresspostgres.NewAddressRepository(db)
		auditor = audit.NewRepository(db)
	} else {
		eventRepo = telemetrymemory.NewEventRepository()
		deviceRepo = devicememory.NewDeviceRepository()
		shipmentRepo = shipmentmemory.NewShipmentRepository()
		orderRepo = ordermemory.NewOrderRepository()
		notifRepo = notifmemory.NewNotificationRepository()
		addressRepo = addressmemory.NewAddressRepository()
	}

	var sender notifapp.Sender
	if cfg.NotifyWebhookURL != "" {
		webhook, err := notify.NewWebhookSender(cfg.NotifyWebhookURL)
		if err != nil {
			logger.Fatalf("notify webhook error: %v", err)
		}
		sender = webhook
	} else {
		sender = notify.NewLogSender(logger)
	}
	deduper, err := notifapp.NewDeduper(notifRepo, sender, logger)
	if err != nil {
		logger.Fatalf("deduper error: %v", err)
	}

	shipmentService, err := shipmentapp.NewService(shipmentRepo, deviceRepo, eventRepo, logger)
	if err != nil {
		logger.Fatalf("shipment service error: %v", err)
	}
	deviceService, err := deviceapp.NewService(deviceRepo, orderRepo, logger, deviceapp.WithShipmentBinder(shipmentService))
	if err != nil {
		logger.Fatalf("device service error: %v", err)
	}
	addressService, err := addressapp.NewService(addressRepo)
	if err != nil {
		logger.Fatalf("address service error: %v", err)
	}
	ingestor, err := telemetryapp.NewIngestor(eventRepo, deviceRepo, shipmentRepo, logger)
	if err != nil {
		logger.Fatalf("ingestor error: %v", err)
	}

	scanCfg, err := scans.LoadConfig()
	if err != nil {
		logger.Fatalf("scan config error: %v", err)
	}
	engine, err := scans.NewEngine(shipmentRepo, deviceRepo, orderRepo, eventRepo, notifRepo, deduper, scanCfg, logger)
	if err != nil {
		logger.Fatalf("scan engine error: %v", err)
	}
	go func() {
		ticker := time.NewTicker(cfg.ScanInterval)
		defer ticker.Stop()
		for range ticker.C {
			runScans(context.Background(), engine, logger)
		}
	}()

	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatalf("redis url error: %v", err)
		}
		limiter, err = ratelimit.NewRedisLimiter(redis.NewClient(redisOpts), cfg.RateLimit, cfg.RateWindow)
		if err != nil {
			logger.Fatalf("redis limiter error: %v", err)
		}
	} else {
		limiter, err = ratelimit.NewGovernor(cfg.RateLimit, cfg.RateWindow)
		if err != nil {
			logger.Fatalf("rate limiter error: %v", err)
		}
	}
	rateLimit := &ratelimit.Middleware{Limiter: limiter, Logger: logger}

	ingestHandler, err := ingesthttp.NewHandler(ingestor, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}
	shipmentHandler, err := shipmenthttp.NewHandler(shipmentService, auditor, logger)
	if err != nil {
		logger.Fatalf("shipment handler error: %v", err)
	}
	deviceHandler, err := devicehttp.NewHandler(deviceService, auditor, logger)
	if err != nil {
		logger.Fatalf("device handler error: %v", err)
	}
	addressHandler, err := addresshttp.NewHandler(addressService, logger)
	if err != nil {
		logger.Fatalf("address handler error: %v", err)
	}
	scanHandler, err := scans.NewHandler(engine, logger)
	if err != nil {
		logger.Fatalf("scan handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/", "/track/", "/scans/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	skew := time.Duration(cfg.IngestSkewSeconds) * time.Second
	ingestAuth := auth.NewSharedSecretMiddleware([]byte(cfg.IngestSecret), skew)
	scansAuth := auth.NewSharedSecretMiddleware([]byte(cfg.ScansSecret), skew)

	apiMux := http.NewServeMux()
	apiMux.Handle("/api/v1/shipments", shipmentHandler)
	apiMux.Handle("/api/v1/shipments/", shipmentHandler)
	apiMux.Handle("/api/v1/devices/", deviceHandler)
	apiMux.Handle("/api/v1/addresses", addressHandler)
	apiMux.Handle("/api/v1/addresses/", addressHandler)
	apiMux.Handle("/api/v1/scans/", scanHandler)

	mux := http.NewServeMux()
	mux.Handle("/api/", rateLimit.Wrap(apiMux))
	mux.Handle("/ingest/telemetry", ingestAuth.Wrap(ingestHandler))
	mux.Handle("/ingest/telemetry/batch", ingestAuth.Wrap(ingestHandler))
	mux.Handle("/scans/", scansAuth.Wrap(scanHandler))
	mux.Handle("/track/", rateLimit.Wrap(shipmentHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

func runScans(ctx context.Context, engine *scans.Engine, logger *log.Logger) {
	if _, err := engine.RunDelivery(ctx); err != nil {
		logger.Printf("delivery scan error: %v", err)
	}
	if _, err := engine.RunBattery(ctx); err != nil {
		logger.Printf("battery scan error: %v", err)
	}
	if _, err := engine.RunSignal(ctx); err != nil {
		logger.Printf("signal scan error: %v", err)
	}
	if _, err := engine.RunUnusedLabels(ctx); err != nil {
		logger.Printf("unused label scan error: %v", err)
	}
	if _, err := engine.RunPendingReminders(ctx); err != nil {
		logger.Printf("pending reminder scan error: %v", err)
	}
	if _, err := engine.RunCleanup(ctx); err != nil {
		logger.Printf("cleanup scan error: %v", err)
	}
}

type config struct {
	DatabaseURL       string
	RedisURL          string
	HTTPAddr          string
	JWTSecret         string
	IngestSecret      string
	ScansSecret       string
	IngestSkewSeconds int
	NotifyWebhookURL  string
	RateLimit         int
	RateWindow        time.Duration
	ScanInterval      time.Duration
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		RedisURL:          getenvDefault("REDIS_URL", ""),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		IngestSecret:      getenvDefault("INGEST_HMAC_SECRET", ""),
		ScansSecret:       getenvDefault("SCANS_HMAC_SECRET", ""),
		IngestSkewSeconds: getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300),
		NotifyWebhookURL:  getenvDefault("NOTIFY_WEBHOOK_URL", ""),
		RateLimit:         getenvIntDefault("RATE_LIMIT_PER_WINDOW", 120),
		RateWindow:        getenvDuration("RATE_LIMIT_WINDOW", time.Minute),
		ScanInterval:      getenvDuration("SCAN_INTERVAL", time.Minute),
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
