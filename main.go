package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"ms-vitotrips/internal/analytics"
	analytics_api "ms-vitotrips/internal/analytics/api"
	"ms-vitotrips/internal/auth"
	"ms-vitotrips/internal/bookings"
	"ms-vitotrips/internal/bookings/booking_api"
	bookingdb "ms-vitotrips/internal/bookings/db"
	"ms-vitotrips/internal/bookings/voucher"
	"ms-vitotrips/internal/config"
	"ms-vitotrips/internal/database"
	"ms-vitotrips/internal/database/migrations"
	"ms-vitotrips/internal/kafka"
	"ms-vitotrips/internal/logger"
	"ms-vitotrips/internal/metrics"
	"ms-vitotrips/internal/payment"
	handlers "ms-vitotrips/internal/payment/handler"
	paymentredis "ms-vitotrips/internal/payment/redis"
	"ms-vitotrips/internal/payment/services"
	"ms-vitotrips/internal/payment/storage"
	"ms-vitotrips/internal/tours"
	tourdb "ms-vitotrips/internal/tours/db"
	"ms-vitotrips/internal/tours/tour_api"
	"ms-vitotrips/internal/users"
	userdb "ms-vitotrips/internal/users/db"
	"ms-vitotrips/internal/users/user_api"
)

// publisher is satisfied by the kafka producer and its no-op stand-in.
type publisher interface {
	PublishEvent(ctx context.Context, eventType, key string, payload interface{}) error
}

func runMigrations(cfg *config.Config, log *logger.Logger) error {
	// the migrate driver closes the handle it is given, so it gets its own
	sqldb, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return err
	}
	runner := migrations.NewRunner(sqldb, cfg.Migrations.Dir, log)
	defer runner.Close()
	return runner.Up()
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return client
}

func setupKafka(ctx context.Context, cfg config.KafkaConfig, log *logger.Logger) (publisher, func()) {
	if !cfg.Enabled {
		log.Warn("KAFKA", "Kafka disabled, domain events will not be published")
		return kafka.NopPublisher{}, func() {}
	}

	producer := kafka.NewProducer(cfg.Brokers, cfg.Topics, log)
	log.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for brokers %v", cfg.Brokers))

	topicCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := kafka.EnsureTopicsExist(topicCtx, cfg.Brokers, cfg.Topics.All(), log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}

	return producer, func() {
		if err := producer.Close(); err != nil {
			log.Error("KAFKA", fmt.Sprintf("Failed to close producer: %v", err))
		}
	}
}

// requestLogger records every request through the category logger.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.LogAPI(r.Method, r.URL.Path, strconv.Itoa(status), time.Since(start).String())
		})
	}
}

func healthHandler(db *bun.DB, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := `{"status":"UP"}`
		if err := db.PingContext(ctx); err != nil {
			status, body = http.StatusServiceUnavailable, `{"status":"DOWN","component":"database"}`
		} else if err := rdb.Ping(ctx).Err(); err != nil {
			status, body = http.StatusServiceUnavailable, `{"status":"DOWN","component":"redis"}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting VitoTrips service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	ctx := context.Background()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Migrations.AutoMigrate {
		if err := runMigrations(cfg, log); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
		}
	}

	redisClient := connectRedis(ctx, cfg.Redis, log)
	defer redisClient.Close()

	stream, closeEvents := setupKafka(ctx, cfg.Kafka, log)
	defer closeEvents()
	events := metrics.CountingPublisher{Next: stream}

	gateway, err := services.NewStripeService(cfg.Stripe, log)
	if err != nil {
		log.Fatal("STRIPE", err.Error())
	}

	// repositories
	usersDB := userdb.New(bunDB)
	toursDB := tourdb.New(bunDB)
	bookingsDB := bookingdb.New(bunDB)
	ledger := storage.NewBunStore(bunDB, log)

	tokens := auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.Expiration)
	principalCache := auth.NewRedisPrincipalCache(redisClient, cfg.Redis.PrincipalCacheTTL)
	gate := auth.NewGate(tokens, usersDB, auth.DefaultPolicy(), log).WithCache(principalCache)

	userService := users.NewUserService(usersDB, tokens, principalCache, log)
	tourService := tours.NewTourService(toursDB, log)
	bookingService := bookings.NewBookingService(bookingsDB, toursDB, events, voucher.NewGenerator("voucher:"+cfg.JWT.Secret), log)
	paymentService := payment.NewPaymentService(ledger, gateway,
		payment.WithLogger(log),
		payment.WithEvents(events),
		payment.WithLocker(paymentredis.NewBookingLock(redisClient, cfg.Redis.BookingLockTTL, log)),
		payment.WithCurrency(cfg.Stripe.Currency),
	)

	userHandler := user_api.NewHandler(userService, log)
	tourHandler := tour_api.NewHandler(tourService, log)
	bookingHandler := booking_api.NewHandler(bookingService, log)
	paymentHandler := handlers.NewPaymentHandler(paymentService, log)
	idempotency := paymentredis.NewIdempotency(redisClient, cfg.Redis.IdempotencyTTL, log)
	analyticsHandler := analytics_api.NewHandler(analytics.NewService(analytics.NewDB(bunDB), toursDB, log), log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(metrics.Middleware)
	r.Use(gate.Middleware())

	r.Get("/health", healthHandler(bunDB, redisClient))
	r.Handle("/metrics", metrics.Handler())
	r.Route("/auth", userHandler.MountAuth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", userHandler.MountUsers)
		r.Route("/tours", tourHandler.MountTours)
		r.Route("/groups", tourHandler.MountGroups)
		r.Route("/bookings", bookingHandler.Mount)
		r.With(idempotency.Middleware).Route("/payments", paymentHandler.Mount)
		r.Route("/analytics", analyticsHandler.Mount)
	})
	log.Info("ROUTER", "Routes registered under /auth and /api/v1")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("VitoTrips service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "VitoTrips service shutdown complete")
	}
}
