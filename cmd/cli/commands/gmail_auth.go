package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jakechorley/drop-in-shifts/internal/config"
	"github.com/jakechorley/drop-in-shifts/pkg/utils"
)

// GmailAuthCmd creates the gmail-auth command
func GmailAuthCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "gmail-auth",
		Short: "Authorize the mail sender account and print its refresh token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			oauthCfg, err := config.LoadOAuthClient(app.Cfg.Gmail, app.Env)
			if err != nil {
				return fmt.Errorf("failed to load oauth client config: %w", err)
			}
			oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
			if err != nil {
				return err
			}

			fmt.Printf("\nOpen this URL while signed in as the sender account:\n\n%s\n\n", utils.AuthURL(oauthConfig))
			fmt.Print("Paste the code parameter from the redirect URL: ")

			code, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read authorization code: %w", err)
			}

			token, err := utils.ExchangeCode(app.Ctx, oauthConfig, strings.TrimSpace(code))
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Authorized. Set this in the environment:\n\n")
			fmt.Printf("SHIFTS_GMAIL_REFRESH_TOKEN=%s\n\n", token.RefreshToken)
			return nil
		},
	}
}
