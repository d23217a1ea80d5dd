package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/optionsauth/internal/buildinfo"
	"github.com/dmitrijs2005/optionsauth/internal/client/authapi"
	"github.com/dmitrijs2005/optionsauth/internal/client/authapi/authtest"
	"github.com/dmitrijs2005/optionsauth/internal/client/cli"
	"github.com/dmitrijs2005/optionsauth/internal/client/config"
	"github.com/dmitrijs2005/optionsauth/internal/client/repositories/storage"
	"github.com/dmitrijs2005/optionsauth/internal/client/services"
	"github.com/dmitrijs2005/optionsauth/internal/extid"
	"github.com/dmitrijs2005/optionsauth/internal/logging"
	"github.com/dmitrijs2005/optionsauth/internal/telemetry"
)

const (
	serviceName = "optionsauth"
	devAPIKey   = "dev-anon-key"
	redisPrefix = "options"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(os.Stderr, cfg.LogLevel)

	shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: serviceName,
		Version:     buildinfo.Version(),
		Endpoint:    cfg.TelemetryEndpoint,
		Enabled:     cfg.TelemetryEnabled,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = shutdown(context.WithoutCancel(ctx)) }()

	st, closeStorage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStorage()

	redirect, err := redirectURL(cfg)
	if err != nil {
		return err
	}
	location := cfg.Location
	if location == "" {
		location = redirect
	}

	endpoint, apiKey := cfg.SupabaseURL, cfg.SupabaseKey
	if cfg.Dev {
		srv := authtest.NewServer(devAPIKey, authtest.WithAutoConfirm(true))
		defer srv.Close()
		endpoint, apiKey = srv.URL, srv.APIKey
		logger.Info(ctx, "using in-process auth service", "url", srv.URL)
	}

	auth, err := authapi.NewHTTPClient(endpoint, apiKey, st.Local,
		authapi.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		authapi.WithLocation(location),
		authapi.WithNavigator(authapi.WriterNavigator{W: os.Stdout}),
	)
	if err != nil {
		return err
	}

	session := services.NewSessionController(auth, st.Local, cli.WriterNotifier{W: os.Stdout}, logger,
		services.WithLocation(func() string { return location }),
	)

	cli.NewApp(session, st, redirect, os.Stdin, os.Stdout, logger).Run(ctx)
	return nil
}

// openStorage opens the sqlite database backing the local and session areas
// and, when configured, redis for the sync area. The session area does not
// outlive a run.
func openStorage(ctx context.Context, cfg *config.Config, logger logging.Logger) (*storage.Storage, func(), error) {
	db, err := storage.OpenSQLite(ctx, cfg.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}

	st := &storage.Storage{
		Local:   storage.NewSQLiteStore(db, storage.AreaLocal),
		Sync:    storage.NewSQLiteStore(db, storage.AreaSync),
		Session: storage.NewSQLiteStore(db, storage.AreaSession),
	}
	closers := []func() error{db.Close}

	if cfg.SyncRedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.SyncRedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			_ = db.Close()
			return nil, nil, fmt.Errorf("connect sync redis %s: %w", cfg.SyncRedisAddr, err)
		}
		st.Sync = storage.NewRedisStore(rdb, redisPrefix, storage.AreaSync)
		closers = append(closers, rdb.Close)
	}

	if err := st.Session.Clear(ctx); err != nil {
		logger.Warn(ctx, "failed to reset session storage", "error", err)
	}

	return st, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}, nil
}

// redirectURL is the options page address registered with the auth service.
// Without a manifest key there is no stable id and the empty string is used.
func redirectURL(cfg *config.Config) (string, error) {
	if cfg.PublicKey == "" {
		return "", nil
	}
	id, err := extid.IDFromPublicKey(cfg.PublicKey)
	if err != nil {
		return "", err
	}
	return extid.RedirectURL(extid.DefaultScheme, id), nil
}
