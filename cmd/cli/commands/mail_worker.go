package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jakechorley/drop-in-shifts/pkg/mailqueue"
)

// MailWorkerCmd creates the mail-worker command
func MailWorkerCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mail-worker",
		Short: "Deliver queued emails through Gmail until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Cfg.RabbitMQ.URL == "" {
				return fmt.Errorf("rabbitmq url is not configured")
			}

			gmail, err := app.GmailClient()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(app.Ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			worker := mailqueue.NewWorker(gmail, app.Metrics(), app.Logger)
			return worker.Run(ctx, app.Cfg.RabbitMQ.URL, app.Cfg.RabbitMQ.Queue)
		},
	}
}
