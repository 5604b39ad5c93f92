package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/drop-in-shifts/pkg/notify"
)

// GenerateVAPIDKeysCmd creates the generate-vapid-keys command
func GenerateVAPIDKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-vapid-keys",
		Short: "Generate a web push key pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			public, private, err := notify.GenerateVAPIDKeys()
			if err != nil {
				return err
			}

			fmt.Printf("\nPut the public key in the config file and the private key in the environment:\n\n")
			fmt.Printf("push:\n  vapidPublicKey: %s\n\n", public)
			fmt.Printf("SHIFTS_PUSH_VAPID_PRIVATE_KEY=%s\n\n", private)
			return nil
		},
	}
}
