// Package server wires configuration, storage, mail, events and the
// services together and runs the HTTP API and the gRPC health endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/ticketdesk/internal/logging"
	"github.com/dmitrijs2005/ticketdesk/internal/server/auth"
	"github.com/dmitrijs2005/ticketdesk/internal/server/config"
	"github.com/dmitrijs2005/ticketdesk/internal/server/docstore"
	"github.com/dmitrijs2005/ticketdesk/internal/server/docstore/memory"
	"github.com/dmitrijs2005/ticketdesk/internal/server/docstore/s3store"
	"github.com/dmitrijs2005/ticketdesk/internal/server/docstore/sqlstore"
	"github.com/dmitrijs2005/ticketdesk/internal/server/events"
	"github.com/dmitrijs2005/ticketdesk/internal/server/httpserver"
	"github.com/dmitrijs2005/ticketdesk/internal/server/mail"
	"github.com/dmitrijs2005/ticketdesk/internal/server/repositories/tickets"
	"github.com/dmitrijs2005/ticketdesk/internal/server/services"

	gs "github.com/dmitrijs2005/ticketdesk/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    docstore.Store
	producer *events.Producer
	admin    *services.AdminAuthService
	tickets  *services.TicketService
}

// NewLogger builds the process logger from the configured level and format.
func NewLogger(c *config.Config, w io.Writer) logging.Logger {
	return logging.New(w, c.LogLevel, c.LogFormat)
}

// NewApp opens the configured store, applying migrations for SQL backends,
// and builds the services on top of it.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}
	if err := MigrateStore(ctx, store); err != nil {
		_ = store.Close()
		return nil, err
	}

	templates, err := mail.NewTemplates(c.BrandName)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	mailer := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		User:     c.SMTPUser,
		Password: c.SMTPPassword,
		From:     c.SMTPFrom,
		FromName: c.BrandName,
	})
	producer := events.NewProducer(c.KafkaBrokers, c.KafkaTopic, logger)

	tokens := auth.NewTokens(c.SecretKey)
	admin := services.NewAdminAuthService(c, tokens, mailer, templates, logger)
	repo := tickets.NewDocstoreRepository(store, logger)

	var publisher events.Publisher
	if producer.Enabled() {
		publisher = producer
	}
	ts := services.NewTicketService(repo, admin, mailer, templates, publisher, logger, services.TicketOptions{
		AllowManualVerify: c.AllowManualVerify,
		PublicBaseURL:     c.PublicBaseURL,
	})

	return &App{
		config:   c,
		logger:   logger,
		store:    store,
		producer: producer,
		admin:    admin,
		tickets:  ts,
	}, nil
}

// OpenStore connects to the document store selected by StoreDriver.
func OpenStore(ctx context.Context, c *config.Config) (docstore.Store, error) {
	switch c.StoreDriver {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StorePostgres, config.StoreSQLite:
		dialect := sqlstore.Postgres
		if c.StoreDriver == config.StoreSQLite {
			dialect = sqlstore.SQLite
		}
		s, err := sqlstore.Open(ctx, dialect, c.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreS3:
		s, err := s3store.New(ctx, s3store.Options{
			Bucket:       c.S3Bucket,
			Prefix:       c.S3Prefix,
			Region:       c.S3Region,
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
}

type migrator interface {
	Migrate(ctx context.Context) error
}

// MigrateStore applies pending migrations when the store has a schema.
func MigrateStore(ctx context.Context, store docstore.Store) error {
	if m, ok := store.(migrator); ok {
		return m.Migrate(ctx)
	}
	return nil
}

func (app *App) Admin() *services.AdminAuthService { return app.admin }

func (app *App) Tickets() *services.TicketService { return app.tickets }

// Close releases the store and the event producer.
func (app *App) Close() error {
	return errors.Join(app.producer.Close(), app.store.Close())
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

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	handler := httpserver.NewHandler(httpserver.Options{
		Admin:         app.admin,
		Tickets:       app.tickets,
		Store:         app.store,
		Log:           app.logger,
		SecureCookies: !app.config.IsDevelopment(),
	})
	s := httpserver.NewServer(app.config.HTTPAddr, httpserver.NewRouter(handler), app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.GRPCHealthAddr, app.logger, app.store)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// releases resources.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "store", app.config.StoreDriver, "env", app.config.Env)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.GRPCHealthAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	app.logger.Info(context.WithoutCancel(ctx), "App stopped")
	return app.Close()
}
