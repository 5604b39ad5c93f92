package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jakechorley/drop-in-shifts/pkg/core/recurrence"
	"github.com/jakechorley/drop-in-shifts/pkg/core/services"
)

// ImportTemplatesCmd creates the import-templates command
func ImportTemplatesCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import-templates <file>",
		Short: "Create or update shift templates from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := services.LoadTemplateFile(args[0])
			if err != nil {
				return err
			}

			database, err := app.Database()
			if err != nil {
				return err
			}

			result, err := services.ImportTemplates(app.Ctx, database, app.Logger, file, app.Cfg.Capacity)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Imported %d templates:\n\n", len(result.Templates))
			for _, tmpl := range result.Templates {
				fmt.Printf("  %3d  %-24s %s-%s  %-16s capacity %d\n",
					tmpl.ID,
					tmpl.Title,
					tmpl.StartTime,
					tmpl.EndTime,
					describeRule(tmpl.Recurrence),
					tmpl.SlotCount())
			}

			if len(result.Warnings) > 0 {
				fmt.Printf("\n⚠️  %d warnings:\n", len(result.Warnings))
				for _, w := range result.Warnings {
					fmt.Printf("  - %s\n", w)
				}
			}
			fmt.Println()

			return nil
		},
	}
}

func describeRule(r recurrence.Rule) string {
	switch r.Kind {
	case recurrence.KindWeekdays:
		return r.Weekdays.String()
	case recurrence.KindMonthly:
		days := make([]string, 0, len(r.MonthDays))
		for _, d := range r.MonthDays {
			days = append(days, strconv.Itoa(d))
		}
		if len(days) == 0 {
			return "monthly"
		}
		return "monthly on " + strings.Join(days, ",")
	default:
		return "daily"
	}
}
