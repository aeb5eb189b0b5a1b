package app

import (
	"context"
	"embed"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"molliebridge/config"
	"molliebridge/internal/controller/rest"
	"molliebridge/internal/controller/rest/handlers"
	"molliebridge/internal/currency"
	"molliebridge/internal/domain/payment"
	"molliebridge/internal/external/kafka"
	"molliebridge/internal/external/mollie"
	"molliebridge/internal/external/opensearch"
	cart_repo "molliebridge/internal/repo/cart"
	currency_repo "molliebridge/internal/repo/currency"
	order_repo "molliebridge/internal/repo/order"
	payment_repo "molliebridge/internal/repo/payment"
	"molliebridge/pkg/health"
	"molliebridge/pkg/logger"
	"molliebridge/pkg/postgres"

	"golang.org/x/sync/errgroup"
)

//go:embed migrations/*.sql
var MIGRATION_FS embed.FS

func Run(cfg config.Config) {
	l := logger.New(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := postgres.New(cfg.PgURL, postgres.MaxPoolSize(cfg.PgPoolMax))
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - postgres.New: %w", err))
	}
	defer pool.Close()

	if err := ApplyMigrations(cfg.PgURL, MIGRATION_FS); err != nil {
		l.Fatal(fmt.Errorf("app - Run - ApplyMigrations: %w", err))
	}

	paymentRepo := payment_repo.NewPgPaymentRepo(pool)
	orderStore := order_repo.NewPgOrderStore(pool)
	cartStore := cart_repo.NewPgCartStore(pool)
	rateRepo := currency_repo.NewPgRateRepo(pool)
	converter := currency.NewConverter(rateRepo)

	gateway := mollie.New(cfg.MollieBaseURL, cfg.MollieAPIKey, cfg.MollieTestmode,
		&http.Client{Timeout: cfg.MollieHTTPTimeout})

	auditSink, closeAudit, err := newAuditSink(ctx, cfg, l)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - audit sink: %w", err))
	}
	defer closeAudit()

	reconciler := payment.NewReconcileService(
		gateway, paymentRepo, orderStore, cartStore, converter, auditSink, l)

	checks := newHealthRegistry(cfg, pool)

	engine := NewGinEngine(l)
	router := rest.NewRouter(handlers.NewWebhookHandler(reconciler, l), checks)
	router.SetUp(engine)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Info("Starting HTTP server: port=%d", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		l.Info("Shutting down gracefully...")
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		l.Fatal(fmt.Errorf("app - Run: %w", err))
	}
}

// newAuditSink picks the configured audit backend; audit stays optional and
// never blocks webhook processing.
func newAuditSink(ctx context.Context, cfg config.Config, l *logger.Logger) (payment.AuditSink, func(), error) {
	switch cfg.AuditMode {
	case "kafka":
		publisher := kafka.NewPublisher(l, cfg.KafkaBrokers, cfg.KafkaAuditTopic)
		return kafka.NewAuditSink(publisher), func() {
			if err := publisher.Close(); err != nil {
				l.Error("Failed to close audit publisher: error=%v", err)
			}
		}, nil
	case "opensearch":
		sink, err := opensearch.NewAuditSink(ctx, cfg.OpensearchUrls, cfg.OpensearchAuditIndex)
		if err != nil {
			return nil, nil, err
		}
		return sink, func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

func newHealthRegistry(cfg config.Config, pool *postgres.Postgres) *health.Registry {
	checkers := []health.Checker{health.NewPostgresChecker(pool.Pool)}
	if cfg.AuditMode == "kafka" {
		checkers = append(checkers, health.NewKafkaChecker(cfg.KafkaBrokers))
	}
	return health.NewRegistry(checkers...)
}
