package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-audit-go/internal/activity"
	activityrepo "github.com/ovaphlow/pitchfork/service-audit-go/internal/activity/repo"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/report"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/storage/memory"
	"github.com/ovaphlow/pitchfork/service-audit-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-audit-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-audit-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-audit-go/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	if err := run(sugar); err != nil {
		sugar.Errorw("service stopped", "err", err)
		_ = lg.Sync()
		os.Exit(1)
	}
}

// stores bundles the repositories for the selected storage driver.
type stores struct {
	users      user.Repository
	activities interface {
		activity.Repository
		report.Activities
	}
	reportUsers report.Users
	ping        func(ctx context.Context) error
	close       func() error
}

func run(sugar *zap.SugaredLogger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	sugar.Infow("starting service-audit-go", "addr", cfg.HTTPAddr, "prefix", cfg.Prefix, "storage", cfg.StorageDriver)
	if cfg.EphemeralSecret {
		sugar.Warn("JWT_SECRET not set; using a generated secret, tokens will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, sugar)
	if err != nil {
		return err
	}
	defer st.close()

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	users := user.NewUserService(st.users, user.BcryptHasher{Cost: cfg.BcryptCost})
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	handler := router.RegisterRoutes(router.Deps{
		Logger:     sugar,
		Metrics:    m,
		Auth:       auth.NewAuthService(users, tokens),
		Users:      users,
		Activities: activity.NewActivityService(st.activities),
		Reports:    report.NewReportService(st.activities, st.reportUsers),
		RequestIDs: utilities.NewIDGenerator(cfg.NodeID),
		Ping:       st.ping,
		Prefix:     cfg.Prefix,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	sugar.Info("service is running; press Ctrl+C to stop")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	sugar.Info("shutting down")
	doneCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	sugar.Info("goodbye")
	return nil
}

func openStores(ctx context.Context, cfg config.Config, sugar *zap.SugaredLogger) (*stores, error) {
	if cfg.StorageDriver == config.DriverMemory {
		sugar.Warn("using in-memory storage; data is lost on exit")
		mem := memory.New()
		return &stores{
			users:       mem.Users(),
			activities:  mem.Activities(),
			reportUsers: mem.Users(),
			close:       func() error { return nil },
		}, nil
	}

	dbCfg := database.ConfigFromEnv()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	ur := userrepo.NewUserRepo(db, dbCfg.QueryTimeout)
	ar := activityrepo.NewActivityRepo(db, dbCfg.QueryTimeout)
	if err := ur.EnsureTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure users table: %w", err)
	}
	if err := ar.EnsureTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure activities table: %w", err)
	}
	return &stores{
		users:       ur,
		activities:  ar,
		reportUsers: ur,
		ping:        db.PingContext,
		close:       db.Close,
	}, nil
}
