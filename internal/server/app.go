// Package server wires the accountkeeper components together and runs them:
// storage, event bus, outbox relay, projectors and the HTTP API.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/auth"
	"github.com/dmitrijs2005/accountkeeper/internal/server/config"
	"github.com/dmitrijs2005/accountkeeper/internal/server/eventbus"
	"github.com/dmitrijs2005/accountkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/accountkeeper/internal/server/mailer"
	"github.com/dmitrijs2005/accountkeeper/internal/server/projectors"
	"github.com/dmitrijs2005/accountkeeper/internal/server/relay"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/accountkeeper/internal/server/services"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   repomanager.RepositoryManager
	bus     eventbus.Bus
	redis   *redis.Client
	relay   *relay.Relay
	http    *httpapi.Server
	closers []func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogBackend, os.Stdout)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger}
	if err := app.init(ctx); err != nil {
		app.close(ctx)
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	tokens, err := auth.NewTokenIssuer(c.SecretKey)
	if err != nil {
		return err
	}
	if c.SecretKey == config.DevSecretKey {
		app.logger.Warn(ctx, "using the development signing key")
	}

	if c.DatabaseDSN != "" {
		pm, err := repomanager.NewPostgresRepositoryManager(ctx, c.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("db init error: %w", err)
		}
		app.repos = pm
	} else {
		app.logger.Warn(ctx, "no database configured, state is kept in memory")
		app.repos = repomanager.NewMemoryRepositoryManager()
	}
	app.closers = append(app.closers, app.repos.Close)

	if err := app.repos.RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	if len(c.KafkaBrokers) > 0 {
		kb, err := eventbus.NewKafkaBus(c.KafkaBrokers, c.KafkaGroupID, app.logger)
		if err != nil {
			return fmt.Errorf("kafka init error: %w", err)
		}
		app.bus = kb
	} else {
		app.bus = eventbus.NewMemoryBus()
	}
	app.closers = append(app.closers, app.bus.Close)

	app.bus.Subscribe(projectors.ProfileProjectorName, projectors.NewProfileProjector(app.repos.Profiles(), app.logger))
	app.bus.Subscribe(projectors.MailProjectorName, projectors.NewMailProjector(app.mailSender(), app.deduper(), c.VerificationURL, app.logger))

	app.relay = relay.New(app.repos.Outbox(), app.bus, app.logger, c.OutboxPollInterval, c.OutboxBatchSize)

	app.http = httpapi.NewServer(c.EndpointAddrHTTP, app.logger,
		services.NewIdentityService(app.repos, tokens, app.logger),
		services.NewProfileService(app.repos, c, app.logger),
		tokens)

	return nil
}

func (app *App) mailSender() mailer.Sender {
	c := app.config
	if c.SMTPHost == "" {
		return mailer.NewLogSender(app.logger)
	}
	return mailer.NewSMTPSender(c.SMTPHost, c.SMTPPort, c.SMTPUser, c.SMTPPassword, c.MailFrom)
}

func (app *App) deduper() projectors.Deduper {
	if app.config.RedisAddr == "" {
		return projectors.NewMemoryDeduper(app.config.MailDedupeTTL)
	}
	app.redis = redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
	app.closers = append(app.closers, app.redis.Close)
	return projectors.NewRedisDeduper(app.redis, app.config.MailDedupeTTL)
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

// Run starts every component and blocks until ctx is cancelled, a signal
// arrives or one of the components fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)
	start := func(name string, run func(context.Context) error) {
		g.Go(func() error {
			if err := run(gctx); err != nil {
				app.logger.Error(gctx, name+" stopped", "error", err)
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}

	start("event bus", app.bus.Run)
	start("outbox relay", app.relay.Run)
	start("http server", app.http.Run)

	err := g.Wait()
	app.close(ctx)

	app.logger.Info(ctx, "App stopped")
	return err
}

func (app *App) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(ctx, "close failed", "error", err)
		}
	}
	app.closers = nil
}
