package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/pkg/core/materializer"
	"github.com/jakechorley/drop-in-shifts/pkg/core/recurrence"
)

// MaterializeWeekCmd creates the materialize-week command
func MaterializeWeekCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "materialize-week <date|today>",
		Short: "Create the shift instances for the week containing a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			weeks, _ := cmd.Flags().GetInt("weeks")
			if weeks < 1 {
				return fmt.Errorf("weeks must be a positive integer, got: %d", weeks)
			}

			day, err := parseDate(args[0], app.Cfg.Location(), time.Now())
			if err != nil {
				return err
			}

			mat, err := app.Materializer()
			if err != nil {
				return err
			}

			app.Logger.Debug("materialize-week command",
				zap.String("date", day.Format(recurrence.DateLayout)),
				zap.Int("weeks", weeks))

			for i := 0; i < weeks; i++ {
				view, err := mat.MaterializeWeek(app.Ctx, day.AddDate(0, 0, 7*i))
				if err != nil {
					return err
				}
				app.Metrics().ObserveWeek(len(view.Instances)-view.VirtualCount, view.VirtualCount)
				printWeek(os.Stdout, view)
			}
			return nil
		},
	}

	cmd.Flags().Int("weeks", 1, "Number of consecutive weeks to materialize")

	return cmd
}

// parseDate accepts YYYY-MM-DD or "today" in loc
func parseDate(value string, loc *time.Location, now time.Time) (time.Time, error) {
	if value == "today" {
		return recurrence.DateOf(now.In(loc)), nil
	}
	d, err := time.Parse(recurrence.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD or today, got: %s", value)
	}
	return d, nil
}

func printWeek(w io.Writer, view *materializer.WeekView) {
	fmt.Fprintf(w, "\nWeek %s to %s\n", view.Start.Format("Mon 02 Jan 2006"), view.End.Format("Mon 02 Jan 2006"))
	fmt.Fprintln(w, strings.Repeat("-", 60))

	if len(view.Instances) == 0 {
		fmt.Fprintln(w, "No shifts scheduled.")
		return
	}

	for _, inst := range view.Instances {
		tmpl := view.Templates[inst.TemplateID]
		marker := " "
		if inst.IsVirtual() {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-10s %-24s %s-%s  id %d\n",
			marker,
			inst.Date.Format("Mon 02"),
			tmpl.Title,
			tmpl.StartTime,
			tmpl.EndTime,
			inst.ID)
	}

	if view.VirtualCount > 0 {
		fmt.Fprintf(w, "\n* %d instances could not be saved and are shown as projections\n", view.VirtualCount)
	}
}
