// Command server runs the attendance API: catalog administration, enrollment
// management, roll-call sessions, and the read-side roster queries behind one
// chi router.
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

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	cataloghandler "presente/internal/catalog/handler"
	catalogsvc "presente/internal/catalog/service"
	catalogstore "presente/internal/catalog/store"
	enrollhandler "presente/internal/enrollment/handler"
	enrollmetrics "presente/internal/enrollment/metrics"
	enrollsvc "presente/internal/enrollment/service"
	enrollstore "presente/internal/enrollment/store"
	"presente/internal/geofence"
	apihttp "presente/internal/http"
	"presente/internal/identity"
	"presente/internal/platform/config"
	"presente/internal/platform/httpserver"
	"presente/internal/platform/logger"
	"presente/internal/platform/metrics"
	platformredis "presente/internal/platform/redis"
	rollhandler "presente/internal/rollcall/handler"
	rollmetrics "presente/internal/rollcall/metrics"
	rollsvc "presente/internal/rollcall/service"
	rollstore "presente/internal/rollcall/store"
	rosterhandler "presente/internal/roster/handler"
	rostersvc "presente/internal/roster/service"
	"presente/pkg/platform/audit"
	"presente/pkg/platform/tx"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// stores groups the persistence layer behind its consumer interfaces so run
// can wire either backend with one switch.
type stores struct {
	catalog interface {
		catalogsvc.Store
		rollsvc.Catalog
		rostersvc.Catalog
		enrollsvc.Catalog
	}
	enrollments interface {
		enrollsvc.EnrollmentStore
		rostersvc.Enrollments
	}
	sessions interface {
		rollsvc.SessionStore
		rostersvc.Sessions
	}
	runner tx.Runner
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := buildStores(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	auditStore := audit.NewInMemoryStore()
	publisher, auditWorker, err := buildAuditPipeline(ctx, cfg, log, auditStore)
	if err != nil {
		return err
	}

	catalogService := catalogsvc.New(st.catalog,
		catalogsvc.WithLogger(log),
		catalogsvc.WithTx(st.runner),
	)
	enrollmentService := enrollsvc.New(st.enrollments, st.catalog,
		enrollsvc.WithLogger(log),
		enrollsvc.WithAuditPublisher(publisher),
		enrollsvc.WithMetrics(enrollmetrics.New()),
		enrollsvc.WithTx(st.runner),
	)
	rollcallOpts := []rollsvc.Option{
		rollsvc.WithLogger(log),
		rollsvc.WithAuditPublisher(publisher),
		rollsvc.WithMetrics(rollmetrics.New()),
		rollsvc.WithTx(st.runner),
	}
	if redisClient != nil {
		rollcallOpts = append(rollcallOpts, rollsvc.WithLease(rollstore.NewRedisLease(redisClient.Client, 0)))
	}
	if cfg.Geofence.Enabled {
		rollcallOpts = append(rollcallOpts, rollsvc.WithGeoChecker(geofence.New(cfg.Geofence)))
	}
	rollcallService := rollsvc.New(st.sessions, st.catalog, enrollmentService, rollcallOpts...)
	rosterService := rostersvc.New(st.catalog, st.enrollments, st.sessions, rostersvc.WithLogger(log))

	router := apihttp.New(apihttp.Config{
		Logger:         log,
		Metrics:        metrics.New(),
		TokenValidator: identity.NewVerifier(cfg.JWT.SigningKey),
	}, apihttp.Handlers{
		Catalog:    cataloghandler.New(catalogService, log),
		Enrollment: enrollhandler.New(enrollmentService, log),
		Rollcall:   rollhandler.New(rollcallService, log),
		Roster:     rosterhandler.New(rosterService, log),
	})
	server := httpserver.New(cfg.HTTP.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	if auditWorker != nil {
		group.Go(func() error {
			if err := auditWorker.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("audit worker: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// buildStores selects the persistence backend: postgres when a URL is
// configured, in-memory otherwise.
func buildStores(cfg config.Config, log *slog.Logger) (*stores, func(), error) {
	if cfg.Postgres.URL == "" {
		log.Info("no postgres URL configured, using in-memory stores")
		return &stores{
			catalog:     catalogstore.NewMemory(),
			enrollments: enrollstore.NewMemory(),
			sessions:    rollstore.NewMemory(),
			runner:      tx.NewMemoryRunner(),
		}, func() {}, nil
	}

	db, err := sql.Open("pgx", cfg.Postgres.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &stores{
		catalog:     catalogstore.NewPostgres(db),
		enrollments: enrollstore.NewPostgres(db),
		sessions:    rollstore.NewPostgres(db),
		runner:      tx.NewSQLRunner(db),
	}, func() { db.Close() }, nil
}

// buildAuditPipeline picks the audit sink: Kafka when brokers are configured,
// otherwise an in-process worker draining a channel into the store.
func buildAuditPipeline(ctx context.Context, cfg config.Config, log *slog.Logger, store audit.Store) (audit.Publisher, *audit.Worker, error) {
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := audit.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka audit publisher: %w", err)
		}
		return publisher, nil, nil
	}
	inbox := make(chan audit.Event, 256)
	return audit.NewChannelPublisher(inbox), audit.NewWorker(store, inbox), nil
}
