package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/pkg/api"
)

// ServeCmd creates the serve command
func ServeCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(app.Ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			database, err := app.Database()
			if err != nil {
				return err
			}
			mat, err := app.Materializer()
			if err != nil {
				return err
			}
			rec, err := app.Reconciler()
			if err != nil {
				return err
			}
			feed, err := app.Feed()
			if err != nil {
				return err
			}

			deps := api.Deps{
				Weeks:          mat,
				Shifts:         rec,
				Store:          database,
				Metrics:        app.Metrics(),
				Logger:         app.Logger,
				Location:       app.Cfg.Location(),
				VAPIDPublicKey: app.Cfg.Push.VAPIDPublicKey,
			}
			if feed.Enabled() {
				deps.Events = feed
			}

			server := api.NewServer(deps, api.NewTokenVerifier(app.Cfg.Auth.JWTSecret, app.Cfg.Auth.Issuer))

			app.Logger.Info("serve command",
				zap.String("addr", app.Cfg.Server.Addr),
				zap.Bool("push_enabled", app.Cfg.PushEnabled()),
				zap.Bool("change_feed_enabled", feed.Enabled()))

			if err := server.Run(ctx, api.ServerConfig{
				Addr:            app.Cfg.Server.Addr,
				ReadTimeout:     app.Cfg.Server.ReadTimeout,
				WriteTimeout:    app.Cfg.Server.WriteTimeout,
				ShutdownTimeout: app.Cfg.Server.ShutdownTimeout,
			}); err != nil {
				return fmt.Errorf("server stopped: %w", err)
			}
			return nil
		},
	}
}
