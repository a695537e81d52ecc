package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/riteshkumar/bank-ledger/internal/config"
	"github.com/riteshkumar/bank-ledger/internal/events"
	"github.com/riteshkumar/bank-ledger/internal/handler"
	"github.com/riteshkumar/bank-ledger/internal/repository"
	"github.com/riteshkumar/bank-ledger/internal/repository/memory"
	"github.com/riteshkumar/bank-ledger/internal/service"
	"github.com/riteshkumar/bank-ledger/internal/worker"
)

// storage bundles one implementation of every repository.
type storage struct {
	banks        repository.BankRepository
	clients      repository.ClientRepository
	accounts     repository.AccountRepository
	bankClients  repository.BankClientRepository
	transactions repository.TransactionRepository
	audit        repository.AuditRepository
	ledger       repository.Ledger
	close        func() error
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err.Error())
		os.Exit(1)
	}

	// Initialise logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	publisher := newPublisher(cfg, logger)
	defer publisher.Close()

	limiter, closeLimiter := newRateLimiter(ctx, cfg, logger)
	defer closeLimiter()

	// Initialise services
	maintainer := service.NewMaintainer(store.bankClients, publisher, logger)
	bankService := service.NewBankService(store.banks, store.audit, logger, service.WithBankLocation(cfg.Location))
	clientService := service.NewClientService(store.clients, store.audit, logger)
	accountService := service.NewAccountService(store.accounts, store.clients, store.banks, store.audit, maintainer, cfg.MaxAccountBalance, logger)
	transactionService := service.NewTransactionService(store.ledger, store.accounts, store.transactions, publisher, service.TransferLimits{
		MaxAmount:  cfg.MaxTransferAmount,
		MaxBalance: cfg.MaxAccountBalance,
		MaxRetries: cfg.TransferMaxRetries,
	}, logger, service.WithLocation(cfg.Location))

	// Setup router
	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))
	router.Use(handler.ActorMiddleware())

	handler.NewBankHandler(bankService, logger).RegisterRoutes(router)
	handler.NewClientHandler(clientService, logger).RegisterRoutes(router)
	handler.NewAccountHandler(accountService, logger).RegisterRoutes(router)
	handler.NewTransactionHandler(transactionService, limiter, logger).RegisterRoutes(router)

	// Add health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	scheduler := worker.NewScheduler(maintainer, cfg.RelationshipSweepSchedule, logger)
	if err := scheduler.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server on port " + cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return maintainer.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		// Create context with timeout for shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", "error", err.Error())
		}
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
			logger.Warn("relationship sweep still running at shutdown")
		}
		return nil
	})

	return g.Wait()
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	if cfg.StorageDriver == config.DriverMemory {
		logger.Warn("using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return &storage{
			banks:        store,
			clients:      store,
			accounts:     store,
			bankClients:  store,
			transactions: store,
			audit:        store,
			ledger:       store,
			close:        func() error { return nil },
		}, nil
	}

	db, err := connectDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database successfully")

	if err := repository.RunMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &storage{
		banks:        repository.NewBankRepository(db),
		clients:      repository.NewClientRepository(db),
		accounts:     repository.NewAccountRepository(db),
		bankClients:  repository.NewBankClientRepository(db),
		transactions: repository.NewTransactionRepository(db),
		audit:        repository.NewAuditRepository(db),
		ledger:       repository.NewLedger(db),
		close:        db.Close,
	}, nil
}

// connectDB establishes a connection to the Postgres database
func connectDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// newPublisher connects to RabbitMQ when configured. Events are dropped
// rather than failing startup when the broker is unreachable.
func newPublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	if cfg.RabbitMQURL == "" {
		logger.Info("RABBITMQ_URL not set; ledger events are disabled")
		return events.NewNoopPublisher(logger)
	}

	publisher, err := events.NewRabbitPublisher(cfg.RabbitMQURL, cfg.EventsExchange, logger)
	if err != nil {
		logger.Warn("failed to connect to RabbitMQ; ledger events are disabled", "error", err.Error())
		return events.NewNoopPublisher(logger)
	}
	return publisher
}

// newRateLimiter returns nil when REDIS_URL is unset or Redis is unreachable.
func newRateLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (handler.RateLimiter, func()) {
	noop := func() {}
	if cfg.RedisURL == "" || cfg.TransferRateLimitPerMinute == 0 {
		return nil, noop
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL; transfer rate limiting is disabled", "error", err.Error())
		return nil, noop
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("failed to connect to Redis; transfer rate limiting is disabled", "error", err.Error())
		_ = client.Close()
		return nil, noop
	}

	logger.Info("transfer rate limiting enabled", "per_minute", cfg.TransferRateLimitPerMinute)
	limiter := handler.NewRedisRateLimiter(client, "ledger:rate_limit:transfers", cfg.TransferRateLimitPerMinute, time.Minute)
	return limiter, func() { _ = client.Close() }
}

// loggingMiddleware logs incoming HTTP requests
func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info("incoming request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
