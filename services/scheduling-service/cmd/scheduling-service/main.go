package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/glosspoint/scheduling/libs/config"
	"github.com/glosspoint/scheduling/libs/db"
	"github.com/glosspoint/scheduling/libs/httpx"
	"github.com/glosspoint/scheduling/libs/kafkax"
	otelx "github.com/glosspoint/scheduling/libs/otel"
	"github.com/glosspoint/scheduling/libs/runtime"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/handlers"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/outbox"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/payments"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8084")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	companyRepo := storage.NewCompanyRepository(pool)
	staffRepo := storage.NewStaffRepository(pool)
	clientRepo := storage.NewClientRepository(pool)
	catalogRepo := storage.NewCatalogRepository(pool)
	hoursRepo := storage.NewHoursRepository(pool)
	bookingRepo := storage.NewBookingRepository(pool)
	invoiceRepo := storage.NewInvoiceRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_EVERY", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	cards := payments.NewCardProcessor(logger, payments.Config{
		StripeSecretKey: config.String("STRIPE_SECRET_KEY", ""),
		Currency:        config.String("STRIPE_CURRENCY", "usd"),
	})
	if !cards.Enabled() {
		logger.Warn("card payments disabled (STRIPE_SECRET_KEY not set)")
	}

	stepMins := config.Int("SLOT_STEP_MINUTES", 15)
	slotsHandler := handlers.NewSlotsHandler(catalogRepo, staffRepo, hoursRepo, bookingRepo, logger, stepMins)
	bookingHandler := handlers.NewBookingHandler(bookingRepo, catalogRepo, staffRepo, hoursRepo, outboxRepo, logger, stepMins)
	invoiceHandler := handlers.NewInvoiceHandler(invoiceRepo, bookingRepo, catalogRepo, outboxRepo, cards, logger)
	companyHandler := handlers.NewCompanyHandler(companyRepo, logger)
	staffHandler := handlers.NewStaffHandler(staffRepo, logger)
	clientHandler := handlers.NewClientHandler(clientRepo, logger)
	catalogHandler := handlers.NewCatalogHandler(catalogRepo, logger)
	hoursHandler := handlers.NewHoursHandler(hoursRepo, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	}

	// Public endpoints are rate limited per client IP when Redis is
	// configured; admin endpoints are not.
	publicLimit := func(h http.Handler) http.Handler { return h }
	if redisAddr := strings.TrimSpace(config.String("REDIS_ADDR", "")); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		limiter := httpx.NewRedisRateLimiter(rdb,
			config.Int("PUBLIC_RATE_LIMIT", 60),
			config.Duration("PUBLIC_RATE_WINDOW", time.Minute),
			service,
		)
		publicLimit = limiter.Middleware(logger, true)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	}

	mux := runtime.NewBaseMux(readyChecks...)

	mux.Handle("/api/v1/public/slots", publicLimit(http.HandlerFunc(slotsHandler.Compute)))
	mux.Handle("/api/v1/public/book", publicLimit(http.HandlerFunc(bookingHandler.Create)))
	mux.Handle("/api/v1/public/company", publicLimit(http.HandlerFunc(companyHandler.Get)))
	mux.Handle("/api/v1/public/services", publicLimit(http.HandlerFunc(catalogHandler.ListServices)))

	mux.HandleFunc("/api/v1/companies", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			companyHandler.Get(w, r)
			return
		}
		companyHandler.Create(w, r)
	})
	mux.HandleFunc("/api/v1/staff", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			staffHandler.List(w, r)
			return
		}
		staffHandler.Create(w, r)
	})
	mux.HandleFunc("/api/v1/staff/bookable", staffHandler.SetBookable)
	mux.HandleFunc("/api/v1/staff/hours", hoursHandler.UpsertStaffHours)
	mux.HandleFunc("/api/v1/staff/time-off", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			hoursHandler.DeleteTimeOff(w, r)
			return
		}
		hoursHandler.CreateTimeOff(w, r)
	})
	mux.HandleFunc("/api/v1/hours/weekly", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			hoursHandler.ListWeekly(w, r)
			return
		}
		hoursHandler.UpsertWeekly(w, r)
	})
	mux.HandleFunc("/api/v1/hours/override", hoursHandler.UpsertOverride)
	mux.HandleFunc("/api/v1/services", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			catalogHandler.ListServices(w, r)
			return
		}
		catalogHandler.CreateService(w, r)
	})
	mux.HandleFunc("/api/v1/addons", catalogHandler.CreateAddon)
	mux.HandleFunc("/api/v1/addons/link", catalogHandler.LinkAddon)
	mux.HandleFunc("/api/v1/clients", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			clientHandler.List(w, r)
			return
		}
		clientHandler.Create(w, r)
	})
	mux.HandleFunc("/api/v1/bookings", bookingHandler.List)
	mux.HandleFunc("/api/v1/bookings/book", bookingHandler.Create)
	mux.HandleFunc("/api/v1/bookings/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/invoices", func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(r.URL.Query().Get("invoice_id")) != "" {
			invoiceHandler.Get(w, r)
			return
		}
		invoiceHandler.List(w, r)
	})
	mux.HandleFunc("/api/v1/invoices/pay", invoiceHandler.PayBooking)
	mux.HandleFunc("/api/v1/invoices/ad-hoc", invoiceHandler.CreateAdHoc)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(config.String("CORS_ALLOWED_ORIGINS", "*"), ","),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", "X-Company-Id", "Idempotency-Key"},
		}),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
