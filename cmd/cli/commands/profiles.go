package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/pkg/api"
	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
)

// AddProfileCmd creates the add-profile command
func AddProfileCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-profile <profile_id>",
		Short: "Create or update a volunteer profile",
		Long: `Creates or updates the profile for an identity-provider subject.
Profiles are normally created by the sign-up flow; this command is for
bootstrapping admins and fixing records by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			phone, _ := cmd.Flags().GetString("phone")
			role, _ := cmd.Flags().GetString("role")
			preference, _ := cmd.Flags().GetString("preference")

			profile, err := newProfile(args[0], name, email, phone, role, preference)
			if err != nil {
				return err
			}

			database, err := app.Database()
			if err != nil {
				return err
			}

			saved, err := database.UpsertProfile(app.Ctx, profile)
			if err != nil {
				return err
			}

			app.Logger.Info("Profile saved",
				zap.String("profile_id", saved.ID),
				zap.String("role", string(saved.Role)))

			fmt.Printf("\n✓ Profile saved\n\n")
			fmt.Printf("ID:           %s\n", saved.ID)
			fmt.Printf("Name:         %s\n", saved.FullName)
			fmt.Printf("Email:        %s\n", saved.Email)
			fmt.Printf("Role:         %s\n", saved.Role)
			fmt.Printf("Preference:   %s\n\n", saved.NotificationPreference)
			return nil
		},
	}

	cmd.Flags().String("name", "", "Full name")
	cmd.Flags().String("email", "", "Email address")
	cmd.Flags().String("phone", "", "Phone number")
	cmd.Flags().String("role", string(model.RoleRegular), "Role: Regular Volunteer, Lead or Admin")
	cmd.Flags().String("preference", string(model.PreferencePushAndEmail), "Notification preference: email_only or push_and_email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// IssueTokenCmd creates the issue-token command
func IssueTokenCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue-token <profile_id>",
		Short: "Sign an API bearer token for a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if ttl <= 0 {
				return fmt.Errorf("ttl must be positive, got: %s", ttl)
			}

			tokens := api.NewTokenVerifier(app.Cfg.Auth.JWTSecret, app.Cfg.Auth.Issuer)
			token, err := tokens.Issue(args[0], ttl)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}

			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().Duration("ttl", 24*time.Hour, "How long the token is valid for")

	return cmd
}

func newProfile(id, name, email, phone, role, preference string) (model.Profile, error) {
	p := model.Profile{
		ID:                     id,
		FullName:               name,
		Email:                  email,
		Phone:                  phone,
		Role:                   model.Role(role),
		NotificationPreference: model.NotificationPreference(preference),
	}
	if p.ID == "" {
		return p, fmt.Errorf("profile id is required")
	}
	if !p.Role.IsValid() {
		return p, fmt.Errorf("unknown role %q", role)
	}
	if !p.NotificationPreference.IsValid() {
		return p, model.ErrInvalidPreference
	}
	return p, nil
}
