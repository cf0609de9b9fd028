// Package server wires the casevault upload service: database and
// migrations, object storage, rate limiting, events, the gRPC and HTTP
// endpoints and the intent sweeper.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/casevault/internal/logging"
	"github.com/dmitrijs2005/casevault/internal/server/access"
	"github.com/dmitrijs2005/casevault/internal/server/config"
	"github.com/dmitrijs2005/casevault/internal/server/events"
	"github.com/dmitrijs2005/casevault/internal/server/httpapi"
	"github.com/dmitrijs2005/casevault/internal/server/keys"
	"github.com/dmitrijs2005/casevault/internal/server/ratelimit"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/casevault/internal/server/services"
	"github.com/dmitrijs2005/casevault/internal/server/storage"

	gs "github.com/dmitrijs2005/casevault/internal/server/grpc"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	uploads   *services.UploadService
	documents *services.DocumentService
	closers   []io.Closer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	app := &App{config: c, logger: logger}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, db)

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	gw, err := app.newGateway(ctx)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	limiter, err := app.newLimiter(ctx)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("rate limiter init error: %w", err)
	}

	publisher, err := app.newPublisher()
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("events init error: %w", err)
	}

	authz := access.NewCaseAuthorizer(rm.Cases())
	policy := services.UploadPolicy{
		MaxFileSize:   c.UploadMaxBytes,
		PresignExpiry: c.PresignExpiry,
		HeadRetry:     storage.RetryPolicy{Attempts: c.HeadRetryAttempts, Backoff: c.HeadRetryBackoff},
	}

	app.uploads = services.NewUploadService(rm, gw, keys.NewBuilder(c.KeyNamespace), limiter, authz, publisher, policy, logger)
	app.documents = services.NewDocumentService(rm, gw, authz, c.DownloadExpiry, logger)

	return app, nil
}

func (app *App) newGateway(ctx context.Context) (storage.Gateway, error) {
	c := app.config
	if c.StorageBackend == config.BackendMinio {
		return storage.NewMinioGateway(ctx, storage.MinioOptions{
			Endpoint:  c.S3BaseEndpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			Region:    c.S3Region,
			Bucket:    c.S3Bucket,
		})
	}
	return storage.NewS3Gateway(ctx, storage.S3Options{
		Region:       c.S3Region,
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
		BaseEndpoint: c.S3BaseEndpoint,
		Bucket:       c.S3Bucket,
	})
}

func (app *App) newLimiter(ctx context.Context) (ratelimit.Limiter, error) {
	policy := ratelimit.Policy{Limit: app.config.RateLimit, Window: app.config.RateLimitWindow}
	if app.config.RedisAddr == "" {
		return ratelimit.NewMemoryLimiter(policy), nil
	}
	l, err := ratelimit.NewRedisLimiter(ctx, app.config.RedisAddr, policy)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, l)
	return l, nil
}

func (app *App) newPublisher() (events.Publisher, error) {
	if app.config.NatsURL == "" {
		return events.Nop{}, nil
	}
	p, err := events.NewNatsPublisher(app.config.NatsURL, "casevault")
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, p)
	return p, nil
}

// Close releases connections in reverse order of creation.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Error(context.Background(), "close", "error", err)
		}
	}
	app.closers = nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s, err := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.uploads, app.documents, app.config.SecretKey)

	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	} else {

		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	router := httpapi.NewRouter(app.logger, app.config.SecretKey, app.documents, app.uploads)
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, router)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startSweeper(ctx context.Context) {
	opts := services.DefaultSweepOptions()
	opts.Grace = app.config.SweepGrace
	if app.config.SweepBatchSize > 0 {
		opts.Take = app.config.SweepBatchSize
	}
	app.uploads.RunIntentSweeper(ctx, app.config.SweepInterval, opts)
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startSweeper(ctx)
	}()

	wg.Wait()

	app.Close()
	app.logger.Info(context.Background(), "App stopped")
}
