package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/civic/internal/lifecycle"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/output"
	"github.com/joescharf/civic/internal/store"
)

var (
	complaintActor    string
	complaintDesc     string
	complaintLocation string
	complaintPincode  string
	complaintImage    string
	complaintLat      float64
	complaintLng      float64
	complaintRating   int
	complaintFeedback string
	complaintTarget   string
	complaintCity     string
	complaintStatus   string
	complaintPriority string
)

var complaintCmd = &cobra.Command{
	Use:     "complaint",
	Aliases: []string{"c"},
	Short:   "Submit, resolve and verify complaints",
}

var complaintSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "File a new complaint",
	Long: `File a new complaint as the citizen named by --as. The description is
classified into a department and a priority automatically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := lifecycle.SubmitRequest{
			Description:  complaintDesc,
			LocationName: complaintLocation,
			Pincode:      complaintPincode,
			ImageRef:     complaintImage,
		}
		if cmd.Flags().Changed("lat") {
			lat := complaintLat
			req.Latitude = &lat
		}
		if cmd.Flags().Changed("lng") {
			lng := complaintLng
			req.Longitude = &lng
		}
		return complaintSubmitRun(req)
	},
}

var complaintSolveCmd = &cobra.Command{
	Use:   "solve <id>",
	Short: "Mark a pending complaint as solved (department admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return complaintSolveRun(args[0])
	},
}

var complaintVerifyCmd = &cobra.Command{
	Use:   "verify <id>",
	Short: "Confirm a solved complaint and close it (owner)",
	Long: `Confirm that a solved complaint was fixed and close it. The rating
defaults to the configured policy.default_rating when --rating is omitted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var rating *int
		if cmd.Flags().Changed("rating") {
			r := complaintRating
			rating = &r
		}
		return complaintVerifyRun(args[0], rating, complaintFeedback)
	},
}

var complaintReopenCmd = &cobra.Command{
	Use:   "reopen <id>",
	Short: "Reopen a solved or closed complaint (owner)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return complaintReopenRun(args[0])
	},
}

var complaintTransferCmd = &cobra.Command{
	Use:   "transfer <id>",
	Short: "Move a complaint to another department (department admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return complaintTransferRun(args[0], complaintTarget)
	},
}

var complaintListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List complaints",
	Long: `List complaints visible to the --as user. Department admins see their
department queue ordered by priority; citizens see their own complaints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return complaintListRun()
	},
}

var complaintShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show complaint details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return complaintShowRun(args[0])
	},
}

var complaintSummarizeCmd = &cobra.Command{
	Use:   "summarize <id>",
	Short: "Draft a title and acknowledgement with Claude",
	Long: `Ask Claude for a one-line title and an acknowledgement draft for a
complaint. Requires anthropic.api_key or ANTHROPIC_API_KEY. The result is
advisory and never changes the department or priority.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return complaintSummarizeRun(cmd.Context(), args[0])
	},
}

func init() {
	complaintCmd.PersistentFlags().StringVar(&complaintActor, "as", "", "Username of the acting user")

	complaintSubmitCmd.Flags().StringVar(&complaintDesc, "desc", "", "Complaint description")
	complaintSubmitCmd.Flags().StringVar(&complaintLocation, "location", "", "Location name")
	complaintSubmitCmd.Flags().StringVar(&complaintPincode, "pincode", "", "Postal code of the location")
	complaintSubmitCmd.Flags().StringVar(&complaintImage, "image", "", "Image reference")
	complaintSubmitCmd.Flags().Float64Var(&complaintLat, "lat", 0, "Latitude")
	complaintSubmitCmd.Flags().Float64Var(&complaintLng, "lng", 0, "Longitude")

	complaintVerifyCmd.Flags().IntVar(&complaintRating, "rating", 0, "Rating from 1 to 5")
	complaintVerifyCmd.Flags().StringVar(&complaintFeedback, "feedback", "", "Free-text feedback")

	complaintTransferCmd.Flags().StringVar(&complaintTarget, "to", "", "Target department")

	complaintListCmd.Flags().StringVar(&complaintCity, "city", "", "Only complaints from citizens of this city (admins)")
	complaintListCmd.Flags().StringVar(&complaintStatus, "status", "", "Filter by status: Pending, Solved, Closed")
	complaintListCmd.Flags().StringVar(&complaintPriority, "priority", "", "Filter by priority: High, Medium, Low")

	complaintCmd.AddCommand(complaintSubmitCmd)
	complaintCmd.AddCommand(complaintSolveCmd)
	complaintCmd.AddCommand(complaintVerifyCmd)
	complaintCmd.AddCommand(complaintReopenCmd)
	complaintCmd.AddCommand(complaintTransferCmd)
	complaintCmd.AddCommand(complaintListCmd)
	complaintCmd.AddCommand(complaintShowCmd)
	complaintCmd.AddCommand(complaintSummarizeCmd)
	rootCmd.AddCommand(complaintCmd)
}

// outcomeError turns a rejected result into a CLI error.
func outcomeError(action string, res lifecycle.Result) error {
	if res.OK() {
		return nil
	}
	return fmt.Errorf("%s %s: %s", action, strings.ReplaceAll(string(res.Outcome), "_", " "), res.Reason)
}

// actorAndManager resolves --as and builds the lifecycle manager.
func actorAndManager(ctx context.Context) (*models.User, *lifecycle.Manager, error) {
	m, err := getManager()
	if err != nil {
		return nil, nil, err
	}
	actor, err := resolveActor(ctx, dataStore, complaintActor)
	if err != nil {
		return nil, nil, err
	}
	return actor, m, nil
}

func complaintSubmitRun(req lifecycle.SubmitRequest) error {
	ctx := context.Background()
	actor, m, err := actorAndManager(ctx)
	if err != nil {
		return err
	}

	if dryRun {
		c, err := getClassifier()
		if err != nil {
			return err
		}
		p := c.Explain(req.Description)
		ui.DryRunMsg("Would submit complaint for %s: %s / %s", actor.Username, p.Department, p.Priority)
		return nil
	}

	res, err := m.Submit(ctx, actor, req)
	if err != nil {
		return err
	}
	if err := outcomeError("submit", res); err != nil {
		return err
	}

	c := res.Complaint
	ui.Success("Submitted complaint %s: %s / %s",
		output.Cyan(shortID(c.ID)), c.Department, output.PriorityColor(string(c.Priority)))
	return nil
}

// runAction resolves the complaint by ID prefix and applies fn to it.
func runAction(action, id string, fn func(ctx context.Context, m *lifecycle.Manager, actor *models.User, c *models.Complaint) (lifecycle.Result, error)) (*models.Complaint, error) {
	ctx := context.Background()
	actor, m, err := actorAndManager(ctx)
	if err != nil {
		return nil, err
	}
	c, err := findComplaint(ctx, dataStore, id)
	if err != nil {
		return nil, err
	}

	if dryRun {
		ui.DryRunMsg("Would %s complaint %s as %s", action, shortID(c.ID), actor.Username)
		return c, nil
	}

	res, err := fn(ctx, m, actor, c)
	if err != nil {
		return nil, err
	}
	if err := outcomeError(action, res); err != nil {
		return nil, err
	}
	return res.Complaint, nil
}

func complaintSolveRun(id string) error {
	c, err := runAction("solve", id, func(ctx context.Context, m *lifecycle.Manager, actor *models.User, c *models.Complaint) (lifecycle.Result, error) {
		return m.MarkSolved(ctx, actor, c.ID)
	})
	if err != nil || dryRun {
		return err
	}
	ui.Success("Complaint %s marked %s", output.Cyan(shortID(c.ID)), output.StatusColor(string(c.Status)))
	return nil
}

func complaintVerifyRun(id string, rating *int, feedback string) error {
	c, err := runAction("verify", id, func(ctx context.Context, m *lifecycle.Manager, actor *models.User, c *models.Complaint) (lifecycle.Result, error) {
		return m.VerifyClose(ctx, actor, c.ID, rating, feedback)
	})
	if err != nil || dryRun {
		return err
	}
	ui.Success("Complaint %s %s %s", output.Cyan(shortID(c.ID)),
		output.StatusColor(string(c.Status)), output.Stars(c.Rating))
	return nil
}

func complaintReopenRun(id string) error {
	c, err := runAction("reopen", id, func(ctx context.Context, m *lifecycle.Manager, actor *models.User, c *models.Complaint) (lifecycle.Result, error) {
		return m.Reopen(ctx, actor, c.ID)
	})
	if err != nil || dryRun {
		return err
	}
	ui.Success("Complaint %s reopened: %s", output.Cyan(shortID(c.ID)), output.StatusColor(string(c.Status)))
	return nil
}

func complaintTransferRun(id, target string) error {
	dept, ok := models.ParseDepartment(target)
	if !ok {
		return fmt.Errorf("--to must be a department (one of: %s)", departmentNames())
	}
	c, err := runAction("transfer", id, func(ctx context.Context, m *lifecycle.Manager, actor *models.User, c *models.Complaint) (lifecycle.Result, error) {
		return m.Transfer(ctx, actor, c.ID, dept)
	})
	if err != nil || dryRun {
		return err
	}
	ui.Success("Complaint %s now routed to %s", output.Cyan(shortID(c.ID)), c.Department)
	return nil
}

func complaintListRun() error {
	ctx := context.Background()
	actor, m, err := actorAndManager(ctx)
	if err != nil {
		return err
	}

	var complaints []*models.Complaint
	if actor.IsDepartmentAdmin {
		complaints, err = m.ListForDepartment(ctx, actor.Department, complaintCity)
	} else {
		complaints, err = m.ListForUser(ctx, actor.ID)
	}
	if err != nil {
		return err
	}

	complaints, err = filterComplaints(complaints, complaintStatus, complaintPriority)
	if err != nil {
		return err
	}

	if len(complaints) == 0 {
		ui.Info("No complaints found.")
		return nil
	}

	printComplaintTable(complaints)
	return nil
}

// filterComplaints applies the optional --status and --priority filters,
// keeping the incoming order.
func filterComplaints(complaints []*models.Complaint, status, priority string) ([]*models.Complaint, error) {
	var wantStatus models.ComplaintStatus
	if status != "" {
		for _, s := range models.Statuses {
			if strings.EqualFold(string(s), status) {
				wantStatus = s
			}
		}
		if wantStatus == "" {
			return nil, fmt.Errorf("unknown status: %s (use: Pending, Solved, Closed)", status)
		}
	}
	var wantPriority models.Priority
	if priority != "" {
		p, ok := models.ParsePriority(priority)
		if !ok {
			return nil, fmt.Errorf("unknown priority: %s (use: High, Medium, Low)", priority)
		}
		wantPriority = p
	}

	out := complaints[:0:0]
	for _, c := range complaints {
		if wantStatus != "" && c.Status != wantStatus {
			continue
		}
		if wantPriority != "" && c.Priority != wantPriority {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func printComplaintTable(complaints []*models.Complaint) {
	table := ui.Table([]string{"ID", "Priority", "Status", "Department", "Location", "Pincode", "Description", "Filed"})
	for _, c := range complaints {
		table.Append([]string{
			output.Cyan(shortID(c.ID)),
			output.PriorityColor(string(c.Priority)),
			output.StatusColor(string(c.Status)),
			string(c.Department),
			c.LocationName,
			c.Pincode,
			truncate(c.Description, 48),
			c.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	table.Render()
}

func complaintShowRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	c, err := findComplaint(ctx, s, id)
	if err != nil {
		return err
	}

	owner := c.UserID
	if u, err := s.GetUser(ctx, c.UserID); err == nil {
		owner = u.Username
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(c.ID), output.StatusColor(string(c.Status)))
	fmt.Fprintf(ui.Out, "  Filed by:   %s\n", owner)
	fmt.Fprintf(ui.Out, "  Department: %s\n", c.Department)
	fmt.Fprintf(ui.Out, "  Priority:   %s\n", output.PriorityColor(string(c.Priority)))
	if c.LocationName != "" || c.Pincode != "" {
		fmt.Fprintf(ui.Out, "  Location:   %s %s\n", c.LocationName, c.Pincode)
	}
	if c.Latitude != nil && c.Longitude != nil {
		fmt.Fprintf(ui.Out, "  Coords:     %.6f, %.6f\n", *c.Latitude, *c.Longitude)
	}
	if c.ImageRef != "" {
		fmt.Fprintf(ui.Out, "  Image:      %s\n", c.ImageRef)
	}
	if c.Description != "" {
		fmt.Fprintf(ui.Out, "  Desc:       %s\n", c.Description)
	}
	if c.Rating != nil {
		fmt.Fprintf(ui.Out, "  Rating:     %s\n", output.Stars(c.Rating))
	}
	if c.Feedback != "" {
		fmt.Fprintf(ui.Out, "  Feedback:   %s\n", c.Feedback)
	}
	fmt.Fprintf(ui.Out, "  Filed:      %s\n", c.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(ui.Out, "  Updated:    %s\n", c.UpdatedAt.Local().Format("2006-01-02 15:04"))
	return nil
}

func complaintSummarizeRun(ctx context.Context, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	client := newLLMClient()
	if client == nil {
		return errors.New("no Anthropic API key configured (set anthropic.api_key or ANTHROPIC_API_KEY)")
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	c, err := findComplaint(ctx, s, id)
	if err != nil {
		return err
	}

	ui.VerboseLog("Asking Claude for a summary of %s", shortID(c.ID))
	summary, err := client.SummarizeComplaint(ctx, c.Description, string(c.Department), string(c.Priority))
	if err != nil {
		return fmt.Errorf("summarize complaint: %w", err)
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(c.ID)), summary.Title)
	fmt.Fprintln(ui.Out)
	fmt.Fprintln(ui.Out, summary.Acknowledgement)
	return nil
}

// findComplaint resolves a complaint by full ID or unique ID prefix.
func findComplaint(ctx context.Context, s store.Store, id string) (*models.Complaint, error) {
	// Try exact match first
	if c, err := s.GetComplaint(ctx, id); err == nil {
		return c, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	upper := strings.ToUpper(id)
	complaints, err := s.ListComplaints(ctx, store.ComplaintListFilter{})
	if err != nil {
		return nil, err
	}

	var matches []*models.Complaint
	for _, c := range complaints {
		if strings.HasPrefix(c.ID, upper) {
			matches = append(matches, c)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("complaint not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous complaint ID %s: matches %d complaints", id, len(matches))
	}
}

// truncate shortens s to n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
