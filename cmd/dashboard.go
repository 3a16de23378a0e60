package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/civic/internal/lifecycle"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/output"
)

var (
	dashboardActor string
	dashboardCity  string
)

const chartWidth = 30

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the dashboard for a citizen or department admin",
	Long: `Show the dashboard of the --as user.

Department admins see their priority queue, the top complaint hotspots and
the department charts. Citizens see their own complaints, their progression
tier and their charts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return dashboardRun()
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardActor, "as", "", "Username of the acting user")
	dashboardCmd.Flags().StringVar(&dashboardCity, "city", "", "Limit the admin queue to citizens of this city")
	rootCmd.AddCommand(dashboardCmd)
}

func dashboardRun() error {
	ctx := context.Background()
	m, err := getManager()
	if err != nil {
		return err
	}
	actor, err := resolveActor(ctx, dataStore, dashboardActor)
	if err != nil {
		return err
	}

	if actor.IsDepartmentAdmin {
		return adminDashboard(ctx, m, actor)
	}
	return citizenDashboard(ctx, m, actor)
}

func adminDashboard(ctx context.Context, m *lifecycle.Manager, actor *models.User) error {
	queue, err := m.ListForDepartment(ctx, actor.Department, dashboardCity)
	if err != nil {
		return err
	}
	hotspots, err := m.Hotspots(ctx, actor.Department)
	if err != nil {
		return err
	}
	charts, err := m.ChartCounts(ctx, lifecycle.Scope{Department: actor.Department})
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s department\n\n", output.Cyan(actor.Username), actor.Department)

	fmt.Fprintln(ui.Out, "Queue")
	if len(queue) == 0 {
		ui.Info("No complaints routed to %s.", actor.Department)
	} else {
		printComplaintTable(queue)
	}
	fmt.Fprintln(ui.Out)

	fmt.Fprintf(ui.Out, "Hotspots (top %d)\n", lifecycle.HotspotLimit)
	if len(hotspots) == 0 {
		ui.Info("No hotspots yet.")
	} else {
		table := ui.Table([]string{"Pincode", "Location", "Complaints"})
		for _, h := range hotspots {
			table.Append([]string{h.Pincode, h.LocationName, fmt.Sprintf("%d", h.Count)})
		}
		table.Render()
	}
	fmt.Fprintln(ui.Out)

	printCharts(charts)
	return nil
}

func citizenDashboard(ctx context.Context, m *lifecycle.Manager, actor *models.User) error {
	complaints, err := m.ListForUser(ctx, actor.ID)
	if err != nil {
		return err
	}
	prog, err := m.Progression(ctx, actor.ID)
	if err != nil {
		return err
	}
	charts, err := m.ChartCounts(ctx, lifecycle.Scope{UserID: actor.ID})
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(actor.Username), actor.City)
	fmt.Fprintf(ui.Out, "  Tier:       %s\n", output.Green(prog.Tier))
	fmt.Fprintf(ui.Out, "  Closed:     %d\n", prog.Closed)
	fmt.Fprintf(ui.Out, "  Score:      %d\n", prog.Score)
	fmt.Fprintln(ui.Out)

	fmt.Fprintln(ui.Out, "My complaints")
	if len(complaints) == 0 {
		ui.Info("No complaints filed. Use 'civic complaint submit' to file one.")
	} else {
		printComplaintTable(complaints)
	}
	fmt.Fprintln(ui.Out)

	printCharts(charts)
	return nil
}

func printCharts(charts lifecycle.ChartCounts) {
	fmt.Fprintf(ui.Out, "By priority (%d total)\n", charts.Total)
	for _, p := range models.Priorities {
		fmt.Fprintf(ui.Out, "  %-8s %s\n", p, output.Bar(charts.ByPriority[p], charts.Total, chartWidth))
	}
	fmt.Fprintln(ui.Out)
	fmt.Fprintln(ui.Out, "By status")
	for _, s := range models.Statuses {
		fmt.Fprintf(ui.Out, "  %-8s %s\n", s, output.Bar(charts.ByStatus[s], charts.Total, chartWidth))
	}
}
