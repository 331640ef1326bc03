package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"google.golang.org/grpc"

	"github.com/md-rashed-zaman/slotkeeper/libs/db"
	"github.com/md-rashed-zaman/slotkeeper/libs/grpcx"
	"github.com/md-rashed-zaman/slotkeeper/libs/httpx"
	"github.com/md-rashed-zaman/slotkeeper/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotkeeper/libs/otel"
	"github.com/md-rashed-zaman/slotkeeper/libs/runtime"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/events"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/grpcserver"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/payments"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/recommend"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/slotcache"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/storage/memory"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/storage/postgres"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(cfg.Service, cfg.LogLevel)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	var (
		ready        []runtime.ReadyCheck
		pool         *pgxpool.Pool
		schedules    storage.ScheduleStore
		appointments storage.AppointmentStore
	)
	if cfg.DatabaseURL != "" {
		pool, err = db.Open(ctx, cfg.DatabaseURL, db.Options{})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()
		schedules = postgres.NewScheduleStore(pool)
		appointments = postgres.NewAppointmentStore(pool)
		ready = append(ready, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory stores")
		schedules = memory.NewScheduleStore()
		appointments = memory.NewAppointmentStore()
	}

	var rdb *redis.Client
	if cfg.CacheBackend == "redis" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		ready = append(ready, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	cache, err := newCache(cfg, rdb)
	if err != nil {
		panic(err)
	}
	if cfg.CacheBackend == "memory" && cfg.DatabaseURL != "" {
		logger.Warn("in-process availability cache with a shared database; other replicas' bookings are not invalidated until CACHE_TTL")
	}
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set; trusting gateway actor headers", "header_id", handlers.HeaderActorID, "header_role", handlers.HeaderActorRole)
	}

	var writer *kafka.Writer
	if len(cfg.KafkaBrokers) > 0 {
		// Topic stays empty: every message names its own event type topic.
		writer = kafkax.NewWriter(cfg.KafkaBrokers, "")
		defer func() { _ = writer.Close() }()
		ready = append(ready, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}

	var sinks []events.Sink
	switch cfg.EventsSink {
	case "kafka":
		sinks = append(sinks, events.NewKafkaSink(writer))
	case "outbox":
		// Events are staged inside each transaction; the dispatcher stays idle.
		if writer != nil {
			relay := events.NewRelay(pool, writer, logger, events.RelayConfig{})
			go relay.Run(ctx)
		} else {
			logger.Warn("KAFKA_BROKERS not set; outbox rows will not be relayed")
		}
	default:
		sinks = append(sinks, events.LogSink{Logger: logger})
	}
	dispatcher := events.NewDispatcher(logger, m, events.DispatcherConfig{}, sinks...)

	engineOpts := []booking.Option{
		booking.WithCache(cache),
		booking.WithPublisher(dispatcher),
		booking.WithMetrics(m),
		booking.WithHistoryWeeks(cfg.HistoryWeeks),
	}
	var machineOpts []lifecycle.Option
	if cfg.Smart {
		engineOpts = append(engineOpts, booking.WithScorer(recommend.Heuristic{}))
	}
	if cfg.EventsSink == "outbox" {
		engineOpts = append(engineOpts, booking.WithOutbox())
		machineOpts = append(machineOpts, lifecycle.WithOutbox())
	}
	engine := booking.New(schedules, appointments, logger, engineOpts...)
	machine := lifecycle.NewMachine(appointments, cache, dispatcher, logger, m, machineOpts...)

	var seen inbox.Inbox
	if pool != nil {
		seen = inbox.NewRepository(pool)
	} else {
		mem, err := inbox.NewMemory(10000)
		if err != nil {
			panic(err)
		}
		seen = mem
	}

	if len(cfg.KafkaBrokers) > 0 && cfg.PaymentsTopic != "" {
		reader := kafkax.NewReader(cfg.KafkaBrokers, cfg.PaymentsTopic, cfg.KafkaGroupID)
		paymentsConsumer := consumer.New(reader, seen, logger, m, consumer.Config{}, consumer.PaymentStatusHandler(machine))
		go paymentsConsumer.Run(ctx)
		logger.Info("payment status consumer started", "topic", cfg.PaymentsTopic, "group_id", cfg.KafkaGroupID)
	}

	var limiter httpx.Limiter
	if cfg.RateLimit > 0 {
		if rdb != nil {
			limiter = httpx.NewRedisLimiter(rdb, cfg.RateLimit, cfg.RateLimitWindow, "ratelimit:"+cfg.Service)
		} else {
			limiter = httpx.NewMemoryLimiter(cfg.RateLimit, cfg.RateLimitWindow)
		}
	}

	handler := handlers.NewRouter(handlers.RouterConfig{
		ServiceName:       cfg.Service,
		Logger:            logger,
		Booking:           handlers.NewBookingHandler(engine, machine, handlers.ActorResolver{JWTSecret: cfg.JWTSecret, TrustHeaders: cfg.TrustActorHeaders}, logger),
		StripeWebhook:     payments.NewStripeWebhook(cfg.StripeWebhookSecret, 0, machine, seen, logger),
		Metrics:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Ready:             ready,
		CORS:              cfg.CORS,
		RateLimiter:       limiter,
		RateLimitFailOpen: cfg.RateLimitFailOpen,
		RequestTimeout:    cfg.RequestTimeout,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer(grpcx.ServerOptions()...)
	health := grpcserver.Register(grpcServer, logger, ready...)
	go health.Run(ctx, 10*time.Second)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		panic(err)
	}

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()
	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	grpcServer.GracefulStop()
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Error("event dispatcher drain incomplete", "err", err)
	}
	logger.Info("booking service stopped")
}

func newCache(cfg serviceConfig, rdb *redis.Client) (slotcache.Cache, error) {
	switch cfg.CacheBackend {
	case "redis":
		return slotcache.NewRedis(rdb, cfg.CacheTTL, "slots"), nil
	case "none":
		return slotcache.Noop{}, nil
	default:
		return slotcache.NewLRU(cfg.CacheSize, cfg.CacheTTL)
	}
}
