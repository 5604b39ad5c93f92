package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
	"github.com/jakechorley/drop-in-shifts/pkg/core/reconciler"
	"github.com/jakechorley/drop-in-shifts/pkg/core/recurrence"
)

// ApplyPatternCmd creates the apply-pattern command
func ApplyPatternCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply-pattern",
		Short: "Save a recurring assignment and assign the volunteer to every matching shift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID, _ := cmd.Flags().GetString("as")
			volunteerID, _ := cmd.Flags().GetString("volunteer")
			templateID, _ := cmd.Flags().GetInt64("template")
			starts, _ := cmd.Flags().GetString("starts")
			ends, _ := cmd.Flags().GetString("ends")
			days, _ := cmd.Flags().GetString("days")

			in, err := patternInput(volunteerID, templateID, starts, ends, days, app.Cfg.Location())
			if err != nil {
				return err
			}

			actor, err := lookupActor(app, actorID)
			if err != nil {
				return err
			}
			rec, err := app.Reconciler()
			if err != nil {
				return err
			}

			app.Logger.Debug("apply-pattern command",
				zap.String("actor", actor.ID),
				zap.String("volunteer_id", in.VolunteerID),
				zap.Int64("template_id", in.TemplateID),
				zap.String("days", in.ByDay.String()))

			result, err := rec.SavePattern(app.Ctx, *actor, in)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Pattern %d saved\n\n", result.Pattern.ID)
			fmt.Printf("Volunteer:   %s\n", result.Pattern.VolunteerID)
			fmt.Printf("Template:    %d\n", result.Pattern.TemplateID)
			fmt.Printf("Days:        %s\n", result.Pattern.ByDay)
			fmt.Printf("Dates:       %d\n", result.Dates)
			fmt.Printf("Assigned:    %d\n", result.Assigned)
			if result.Warning != "" {
				fmt.Printf("\n⚠️  %s\n", result.Warning)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().String("as", "", "Profile id of the admin or volunteer applying the pattern")
	cmd.Flags().String("volunteer", "", "Profile id of the volunteer to assign")
	cmd.Flags().Int64("template", 0, "Shift template id")
	cmd.Flags().String("starts", "today", "First date of the pattern (YYYY-MM-DD or today)")
	cmd.Flags().String("ends", "", "Last date of the pattern (YYYY-MM-DD); defaults to one year")
	cmd.Flags().String("days", "", "Comma separated weekday codes, e.g. MO,WE")
	_ = cmd.MarkFlagRequired("as")
	_ = cmd.MarkFlagRequired("volunteer")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("days")

	return cmd
}

// DeletePatternCmd creates the delete-pattern command
func DeletePatternCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-pattern <pattern_id>",
		Short: "Delete a recurring assignment and the assignments it created",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patternID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || patternID < 1 {
				return fmt.Errorf("pattern_id must be a positive integer, got: %s", args[0])
			}
			actorID, _ := cmd.Flags().GetString("as")

			actor, err := lookupActor(app, actorID)
			if err != nil {
				return err
			}
			rec, err := app.Reconciler()
			if err != nil {
				return err
			}

			removed, err := rec.DeletePattern(app.Ctx, *actor, patternID)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Pattern %d deleted, %d assignments removed\n\n", patternID, removed)
			return nil
		},
	}

	cmd.Flags().String("as", "", "Profile id of the admin or volunteer deleting the pattern")
	_ = cmd.MarkFlagRequired("as")

	return cmd
}

func lookupActor(app *AppContext, id string) (*model.Profile, error) {
	database, err := app.Database()
	if err != nil {
		return nil, err
	}
	actor, err := database.GetProfile(app.Ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile %s: %w", id, err)
	}
	return actor, nil
}

func patternInput(volunteerID string, templateID int64, starts, ends, days string, loc *time.Location) (reconciler.PatternInput, error) {
	in := reconciler.PatternInput{
		VolunteerID: volunteerID,
		TemplateID:  templateID,
	}

	byDay, err := recurrence.ParseWeekdayCodes(splitCodes(days))
	if err != nil {
		return in, err
	}
	in.ByDay = byDay

	start, err := parseDate(starts, loc, time.Now())
	if err != nil {
		return in, err
	}
	in.StartsOn = start

	if ends != "" {
		end, err := parseDate(ends, loc, time.Now())
		if err != nil {
			return in, err
		}
		in.EndsOn = &end
	}

	return in, in.Validate()
}

func splitCodes(value string) []string {
	var codes []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			codes = append(codes, part)
		}
	}
	return codes
}
