package commands

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/pkg/core/services"
)

// SendRemindersCmd creates the send-reminders command
func SendRemindersCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send-reminders",
		Short: "Remind volunteers of shifts starting within the lead time",
		Long: `Sends a push notification and queues an email for every active assignment
starting within the configured lead time that has not been reminded yet.
With --every the command keeps running and repeats on that interval.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			every, _ := cmd.Flags().GetDuration("every")
			leadTime, _ := cmd.Flags().GetDuration("lead-time")
			if leadTime == 0 {
				leadTime = app.Cfg.Reminders.LeadTime
			}

			database, err := app.Database()
			if err != nil {
				return err
			}
			dispatcher, err := app.Dispatcher()
			if err != nil {
				return err
			}
			queue, err := app.MailQueue()
			if err != nil {
				return err
			}

			var push services.PushSender
			if dispatcher != nil {
				push = dispatcher
			} else {
				app.Logger.Warn("Push is not configured, reminders go by email only")
			}
			var emails services.EmailQueue
			if queue != nil {
				emails = queue
			} else {
				app.Logger.Warn("RabbitMQ is not configured, reminders go by push only")
			}
			if push == nil && emails == nil {
				return fmt.Errorf("no reminder channel is configured: set VAPID keys or a RabbitMQ URL")
			}

			run := func() error {
				result, err := services.SendReminders(app.Ctx, database, push, emails, app.Logger, services.ReminderOptions{
					LeadTime: leadTime,
					BaseURL:  app.Cfg.BaseURL,
					Location: app.Cfg.Location(),
					Observer: app.Metrics(),
				})
				if err != nil {
					return err
				}
				fmt.Printf("[%s] run %s: %d considered, %d reminded, %d skipped, %d failed\n",
					time.Now().Format(time.RFC3339),
					result.RunID,
					result.Considered,
					result.Reminded,
					result.Skipped,
					result.Failed)
				return nil
			}

			if every <= 0 {
				return run()
			}

			ctx, stop := signal.NotifyContext(app.Ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app.Logger.Info("Sending reminders periodically", zap.Duration("every", every))
			ticker := time.NewTicker(every)
			defer ticker.Stop()

			for {
				// A failed run is retried on the next tick
				if err := run(); err != nil {
					app.Logger.Error("Reminder run failed", zap.Error(err))
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().Duration("every", 0, "Repeat on this interval until interrupted")
	cmd.Flags().Duration("lead-time", 0, "Override the configured reminder lead time")

	return cmd
}
