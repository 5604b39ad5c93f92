package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/internal/config"
	"github.com/jakechorley/drop-in-shifts/pkg/changefeed"
	"github.com/jakechorley/drop-in-shifts/pkg/clients/gmailclient"
	"github.com/jakechorley/drop-in-shifts/pkg/core/materializer"
	"github.com/jakechorley/drop-in-shifts/pkg/core/reconciler"
	"github.com/jakechorley/drop-in-shifts/pkg/mailqueue"
	"github.com/jakechorley/drop-in-shifts/pkg/metrics"
	"github.com/jakechorley/drop-in-shifts/pkg/notify"
	"github.com/jakechorley/drop-in-shifts/pkg/postgres"
)

// AppContext holds the application dependencies shared across all commands.
// Connections are opened on first use so each command only pays for what it needs.
type AppContext struct {
	Env    string
	Cfg    *config.Config
	Logger *zap.Logger
	Ctx    context.Context

	database   *postgres.DB
	metrics    *metrics.Metrics
	feed       *changefeed.Feed
	mail       *mailqueue.Publisher
	dispatcher *notify.Dispatcher
}

// Database connects to Postgres
func (app *AppContext) Database() (*postgres.DB, error) {
	if app.database != nil {
		return app.database, nil
	}

	app.Logger.Info("Connecting to database")
	database, err := postgres.NewDB(app.Ctx, app.Cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.database = database
	return database, nil
}

// Metrics returns the process-wide metrics registry
func (app *AppContext) Metrics() *metrics.Metrics {
	if app.metrics == nil {
		app.metrics = metrics.New()
	}
	return app.metrics
}

// Feed returns the change feed. Without a Redis address it is a disabled feed
// whose Publish is a no-op.
func (app *AppContext) Feed() (*changefeed.Feed, error) {
	if app.feed != nil {
		return app.feed, nil
	}

	if app.Cfg.Redis.Addr == "" {
		app.Logger.Info("Redis not configured, change feed disabled")
		app.feed = changefeed.New(nil, "", app.Logger)
		return app.feed, nil
	}

	client, err := changefeed.NewRedisClient(app.Ctx, app.Cfg.Redis.Addr, app.Cfg.Redis.Password)
	if err != nil {
		return nil, err
	}
	app.feed = changefeed.New(client, app.Cfg.Redis.Channel, app.Logger)
	return app.feed, nil
}

// MailQueue returns the email publisher, or nil when RabbitMQ is not configured
func (app *AppContext) MailQueue() (*mailqueue.Publisher, error) {
	if app.mail != nil || app.Cfg.RabbitMQ.URL == "" {
		return app.mail, nil
	}

	publisher, err := mailqueue.Dial(app.Cfg.RabbitMQ.URL, app.Cfg.RabbitMQ.Queue, app.Logger)
	if err != nil {
		return nil, err
	}
	app.mail = publisher
	return publisher, nil
}

// Dispatcher returns the push dispatcher, or nil when VAPID keys are not configured
func (app *AppContext) Dispatcher() (*notify.Dispatcher, error) {
	if app.dispatcher != nil || !app.Cfg.PushEnabled() {
		return app.dispatcher, nil
	}

	database, err := app.Database()
	if err != nil {
		return nil, err
	}

	sender, err := notify.NewWebPushSender(notify.VAPIDConfig{
		PublicKey:  app.Cfg.Push.VAPIDPublicKey,
		PrivateKey: app.Cfg.Push.VAPIDPrivateKey,
		Subscriber: app.Cfg.Push.Subscriber,
		TTL:        app.Cfg.Push.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create push sender: %w", err)
	}

	app.dispatcher = notify.NewDispatcher(database, sender, app.Logger, app.Metrics())
	return app.dispatcher, nil
}

// Materializer builds the instance materializer over the database
func (app *AppContext) Materializer() (*materializer.Materializer, error) {
	database, err := app.Database()
	if err != nil {
		return nil, err
	}
	return materializer.New(database, app.Logger, app.Cfg.Location()), nil
}

// Reconciler builds the assignment state machine with every configured side channel
func (app *AppContext) Reconciler() (*reconciler.Reconciler, error) {
	database, err := app.Database()
	if err != nil {
		return nil, err
	}
	mat, err := app.Materializer()
	if err != nil {
		return nil, err
	}
	feed, err := app.Feed()
	if err != nil {
		return nil, err
	}
	dispatcher, err := app.Dispatcher()
	if err != nil {
		return nil, err
	}

	// A nil *Dispatcher must not become a non-nil interface
	var notifier reconciler.Notifier
	if dispatcher != nil {
		notifier = dispatcher
	}

	return reconciler.New(database, mat, notifier, app.Logger, reconciler.Options{
		Changes: feed,
		Metrics: app.Metrics(),
		BaseURL: app.Cfg.BaseURL,
	}), nil
}

// GmailClient builds the Gmail sender from the OAuth client file and stored refresh token
func (app *AppContext) GmailClient() (*gmailclient.Client, error) {
	oauthCfg, err := config.LoadOAuthClient(app.Cfg.Gmail, app.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to load oauth client config: %w", err)
	}

	client, err := gmailclient.NewClient(app.Ctx, oauthCfg, app.Cfg.Gmail.RefreshToken, app.Cfg.Gmail.Sender)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail client: %w", err)
	}
	return client, nil
}

// Close releases every connection that was opened
func (app *AppContext) Close() {
	if app.mail != nil {
		if err := app.mail.Close(); err != nil {
			app.Logger.Warn("Failed to close mail queue", zap.Error(err))
		}
	}
	if app.feed != nil {
		if err := app.feed.Close(); err != nil {
			app.Logger.Warn("Failed to close change feed", zap.Error(err))
		}
	}
	if app.database != nil {
		app.database.Close()
	}
}
