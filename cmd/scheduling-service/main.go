package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/whiskerwell/scheduling/internal/audit"
	"github.com/whiskerwell/scheduling/internal/booking"
	"github.com/whiskerwell/scheduling/internal/catalog"
	"github.com/whiskerwell/scheduling/internal/consumer"
	"github.com/whiskerwell/scheduling/internal/draft"
	"github.com/whiskerwell/scheduling/internal/email"
	"github.com/whiskerwell/scheduling/internal/group"
	"github.com/whiskerwell/scheduling/internal/handlers"
	"github.com/whiskerwell/scheduling/internal/inbox"
	"github.com/whiskerwell/scheduling/internal/notify"
	"github.com/whiskerwell/scheduling/internal/outbox"
	"github.com/whiskerwell/scheduling/internal/reminder"
	"github.com/whiskerwell/scheduling/internal/sms"
	"github.com/whiskerwell/scheduling/internal/storage"
	"github.com/whiskerwell/scheduling/internal/sweep"
	"github.com/whiskerwell/scheduling/libs/config"
	"github.com/whiskerwell/scheduling/libs/db"
	"github.com/whiskerwell/scheduling/libs/httpx"
	"github.com/whiskerwell/scheduling/libs/kafkax"
	otelx "github.com/whiskerwell/scheduling/libs/otel"
	"github.com/whiskerwell/scheduling/libs/runtime"
)

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8080")
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

	loc, err := config.Location("CLINIC_TZ", "UTC")
	if err != nil {
		logger.Error("invalid clinic timezone", "err", err)
		panic(err)
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

	repo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	sink := notify.NewOutboxSink(outboxRepo)
	auditRepo := audit.NewRepository(pool, outboxRepo)
	catalogStore := catalog.NewPostgresStore(pool)
	guard := booking.NewGuard(repo)

	bookingSvc := booking.NewService(repo, guard, catalogStore, sink, auditRepo, logger, loc)
	coordinator := group.NewCoordinator(repo, guard, catalogStore, sink, auditRepo, logger, loc)
	cart := draft.NewCart(repo, guard, catalogStore, sink, auditRepo, logger, loc)

	var smsSender sms.Sender = sms.NewNoopSender()
	if url := config.String("SMS_WEBHOOK_URL", ""); url != "" {
		smsSender = sms.NewWebhookSender(url, config.String("SMS_WEBHOOK_TOKEN", ""))
	}
	var emailSender email.Sender = email.NewNoopSender()
	if host := config.String("SMTP_HOST", ""); host != "" {
		emailSender = email.NewSMTPSender(host, config.String("SMTP_PORT", "1025"), config.String("SMTP_FROM", ""))
	}
	dispatcher := reminder.NewDispatcher(repo, reminder.NewGate(loc), catalogStore, smsSender, emailSender, auditRepo, logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	// The external calendar collaborator acknowledges mirrored bookings on
	// this topic; consuming the ack flips the appointment's synced flag.
	if topic := config.String("KAFKA_SYNC_ACK_TOPIC", "calendar.appointment.synced.v1"); topic != "" {
		syncConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", service),
			Topic:   topic,
		}, func(ctx context.Context, msg kafka.Message) error {
			var payload struct {
				AppointmentID int64 `json:"appointment_id"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil || payload.AppointmentID <= 0 {
				logger.Error("invalid sync ack payload", "topic", msg.Topic)
				return nil
			}
			found, err := repo.MarkSynced(ctx, payload.AppointmentID)
			if err != nil {
				return err
			}
			if !found {
				logger.Warn("sync ack for unknown appointment", "appointment_id", payload.AppointmentID)
			}
			return nil
		})
		go syncConsumer.Run(ctx)
	}

	sweeper := sweep.NewWorker(repo, sink, auditRepo, logger, sweep.WorkerConfig{
		Interval:  time.Duration(config.Int("SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
		BatchSize: config.Int("SWEEP_BATCH_SIZE", 100),
	})
	go sweeper.Run(ctx)

	slotsHandler := handlers.NewSlotsHandler(bookingSvc, logger)
	bookingHandler := handlers.NewBookingHandler(bookingSvc, logger)
	groupsHandler := handlers.NewGroupsHandler(coordinator, logger)
	draftsHandler := handlers.NewDraftsHandler(cart, logger)
	remindersHandler := handlers.NewRemindersHandler(dispatcher, logger)
	auditHandler := handlers.NewAuditHandler(auditRepo, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	}

	// Redis gives replicas a shared rate-limit window; a single instance
	// without Redis falls back to the in-process limiter.
	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	var rateLimitMW httpx.Middleware
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()
		rateLimitMW = httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, service).Middleware(logger, true)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rateLimitMW = httpx.NewRateLimiter(limitPerMinute, time.Minute).Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/api/v1/slots", slotsHandler.List)
	mux.HandleFunc("/api/v1/appointments", bookingHandler.Create)
	mux.HandleFunc("/api/v1/appointments/complete", bookingHandler.Complete)
	mux.HandleFunc("/api/v1/appointments/remind", remindersHandler.Send)
	mux.HandleFunc("/api/v1/groups", groupsHandler.CreateOrList)
	mux.HandleFunc("/api/v1/groups/edit", groupsHandler.Edit)
	mux.HandleFunc("/api/v1/groups/cancel", groupsHandler.Cancel)
	mux.HandleFunc("/api/v1/groups/finalize", groupsHandler.Finalize)
	mux.HandleFunc("/api/v1/drafts", draftsHandler.SaveOrList)
	mux.HandleFunc("/api/v1/drafts/remove", draftsHandler.Remove)
	mux.HandleFunc("/api/v1/drafts/convert", draftsHandler.Convert)
	mux.HandleFunc("/api/v1/audit", auditHandler.List)

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,DELETE,OPTIONS")),
			AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Content-Type,X-Request-Id,X-User-Id,X-Role,X-Owner-Id")),
			AllowCredentials: true,
			MaxAge:           10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 15))*time.Second),
		rateLimitMW,
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
