// Package server wires the CloudVault stores, identity, event bus and
// transports together and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/logging"
	"github.com/dmitrijs2005/cloudvault/internal/server/blobstore"
	"github.com/dmitrijs2005/cloudvault/internal/server/config"
	"github.com/dmitrijs2005/cloudvault/internal/server/eventbus"
	"github.com/dmitrijs2005/cloudvault/internal/server/httpapi"
	"github.com/dmitrijs2005/cloudvault/internal/server/identity"
	"github.com/dmitrijs2005/cloudvault/internal/server/notify"
	"github.com/dmitrijs2005/cloudvault/internal/server/progress"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/memory"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cloudvault/internal/server/services"

	gs "github.com/dmitrijs2005/cloudvault/internal/server/grpc"
)

const (
	shutdownTimeout   = 15 * time.Second
	progressBuffer    = 256
	healthPollPeriod  = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

type App struct {
	config *config.Config
	logger logging.Logger

	http  *http.Server
	grpc  *gs.GRPCServer
	relay *progress.Relay

	// closers run in reverse order on shutdown.
	closers []func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)
	app := &App{config: c, logger: logger}

	repos, err := app.openRepositories(ctx)
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	blobs, err := app.openBlobStore(ctx)
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	provider, registry, err := app.identityProvider()
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	var publisher eventbus.Publisher = eventbus.NewDirect(repos.Events())
	if len(c.KafkaBrokers) > 0 {
		kp := eventbus.NewKafkaPublisher(c.KafkaBrokers, c.KafkaTopic)
		app.closers = append(app.closers, kp.Close)
		publisher = kp
		logger.Info(ctx, "analytics events go through kafka", "topic", c.KafkaTopic)
	}

	sink, err := app.progressSink(ctx)
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	analytics := services.NewAnalyticsService(repos.Events(), publisher, c, logger)
	svc := httpapi.Services{
		Folders:   services.NewFolderService(repos, blobs, analytics, c, logger),
		Files:     services.NewFileService(repos, blobs, analytics, sink, c, logger),
		Shares:    services.NewShareService(repos, blobs, notify.NewLogDispatcher(logger), analytics, c, logger),
		Analytics: analytics,
		Users:     services.NewUserService(repos, c, logger),
	}
	unsubscribe := svc.Users.Subscribe(registry)
	app.closers = append(app.closers, func() error { unsubscribe(); return nil })

	app.http = &http.Server{
		Addr:              c.HTTPAddr,
		Handler:           httpapi.NewRouter(svc, provider, repos.Ping, logger),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	app.grpc = gs.NewGRPCServer(c.GRPCAddr, logger, repos.Ping, healthPollPeriod)
	return app, nil
}

func (app *App) openRepositories(ctx context.Context) (repomanager.RepositoryManager, error) {
	if app.config.MemoryBackend {
		app.logger.Warn(ctx, "using in-memory metadata store, data is lost on exit")
		return memory.NewManager(), nil
	}

	db, err := repomanager.OpenPostgres(ctx, app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, db.Close)

	repos, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := repos.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return repos, nil
}

func (app *App) openBlobStore(ctx context.Context) (blobstore.Store, error) {
	if app.config.MemoryBackend {
		return blobstore.NewMemoryStore(), nil
	}
	s, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
		AccessKey:    app.config.S3AccessKey,
		SecretKey:    app.config.S3SecretKey,
		Bucket:       app.config.S3Bucket,
		Region:       app.config.S3Region,
		BaseEndpoint: app.config.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}
	return s, nil
}

// identityProvider verifies tokens against a JWKS endpoint when one is
// configured and the shared HMAC secret otherwise. Sign-in notifications
// sit below the cache so they fire once per new token.
func (app *App) identityProvider() (identity.Provider, *identity.Registry, error) {
	var base identity.Provider
	if app.config.JWKSURL != "" {
		p, err := identity.NewJWKSProvider(app.config.JWKSURL, app.config.Issuer, app.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("jwks init error: %w", err)
		}
		base = p
	} else {
		base = identity.NewHMACProvider([]byte(app.config.JWTSecret), app.config.Issuer)
	}

	registry := identity.NewRegistry()
	cached := identity.NewCachingProvider(identity.WithSignInNotifications(base, registry), app.config.TokenCacheSize, app.config.TokenCacheTTL)
	return cached, registry, nil
}

func (app *App) progressSink(ctx context.Context) (progress.Sink, error) {
	if app.config.RedisAddr == "" {
		return progress.Discard, nil
	}
	client, err := progress.NewRedisClient(ctx, app.config.RedisAddr, "")
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, client.Close)
	app.relay = progress.NewRelay(progress.NewRedisPublisher(client), progressBuffer, app.logger)
	return app.relay, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := app.http.Shutdown(sctx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "starting HTTP server", "address", app.config.HTTPAddr)
	if err := app.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.grpc.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves HTTP and gRPC until ctx is cancelled, a signal arrives or a
// server fails, then releases every resource.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	if app.relay != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.relay.Run(ctx)
		}()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.close(ctx)
	app.logger.Info(ctx, "app stopped")
}

func (app *App) close(ctx context.Context) {
	if app.relay != nil {
		app.relay.Close()
	}
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil && !errors.Is(err, sql.ErrConnDone) {
			app.logger.Warn(ctx, "close failed", "error", err)
		}
	}
	app.closers = nil
}
