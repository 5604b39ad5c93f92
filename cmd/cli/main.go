package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/cmd/cli/commands"
	"github.com/jakechorley/drop-in-shifts/internal/config"
	"github.com/jakechorley/drop-in-shifts/pkg/utils/logging"
)

var (
	env         string
	logDir      string
	jsonConsole bool
	app         *commands.AppContext
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Drop-In Shifts - volunteer shift scheduling",
		Long:  `Runs the shift scheduling API and the jobs around it: migrations, template imports, reminders and email delivery.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Key generation needs neither config nor a logger
			if cmd.Name() == "generate-vapid-keys" {
				return nil
			}
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app == nil {
				return
			}
			app.Close()
			if app.Logger != nil {
				_ = app.Logger.Sync()
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", logging.DefaultDir, "Directory for log files")
	rootCmd.PersistentFlags().BoolVar(&jsonConsole, "json-logs", false, "Write console logs as JSON")
	_ = rootCmd.MarkPersistentFlagRequired("env")

	app = &commands.AppContext{Ctx: context.Background()}

	rootCmd.AddCommand(commands.ServeCmd(app))
	rootCmd.AddCommand(commands.MigrateCmd(app))
	rootCmd.AddCommand(commands.MaterializeWeekCmd(app))
	rootCmd.AddCommand(commands.ImportTemplatesCmd(app))
	rootCmd.AddCommand(commands.SendRemindersCmd(app))
	rootCmd.AddCommand(commands.MailWorkerCmd(app))
	rootCmd.AddCommand(commands.ApplyPatternCmd(app))
	rootCmd.AddCommand(commands.DeletePatternCmd(app))
	rootCmd.AddCommand(commands.AddProfileCmd(app))
	rootCmd.AddCommand(commands.IssueTokenCmd(app))
	rootCmd.AddCommand(commands.GmailAuthCmd(app))
	rootCmd.AddCommand(commands.GenerateVAPIDKeysCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up the logger and configuration; connections are opened by the commands that need them
func initApp() error {
	var err error

	app.Env = env
	app.Logger, err = logging.InitLogger(env, logDir, jsonConsole)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.Logger.Info("Starting application", zap.String("environment", env))

	app.Logger.Info("Loading configuration")
	app.Cfg, err = config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Logger.Debug("Configuration loaded successfully",
		zap.String("timezone", app.Cfg.Timezone),
		zap.Int("default_capacity", app.Cfg.Capacity))

	return nil
}
