package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/output"
)

var (
	notifyActor  string
	notifyUnread bool
	notifyAll    bool
)

var notifyCmd = &cobra.Command{
	Use:     "notify",
	Aliases: []string{"notifications"},
	Short:   "Read complaint notifications",
}

var notifyListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List notifications, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return notifyListRun()
	},
}

var notifyReadCmd = &cobra.Command{
	Use:   "read [id]",
	Short: "Mark a notification (or --all) as read",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := ""
		if len(args) > 0 {
			id = args[0]
		}
		return notifyReadRun(id)
	},
}

func init() {
	notifyCmd.PersistentFlags().StringVar(&notifyActor, "as", "", "Username of the acting user")
	notifyListCmd.Flags().BoolVar(&notifyUnread, "unread", false, "Only unread notifications")
	notifyReadCmd.Flags().BoolVar(&notifyAll, "all", false, "Mark every unread notification as read")

	notifyCmd.AddCommand(notifyListCmd)
	notifyCmd.AddCommand(notifyReadCmd)
	rootCmd.AddCommand(notifyCmd)
}

func notifyListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	actor, err := resolveActor(ctx, s, notifyActor)
	if err != nil {
		return err
	}

	notes, err := s.ListNotifications(ctx, actor.ID, notifyUnread)
	if err != nil {
		return err
	}
	if len(notes) == 0 {
		ui.Info("No notifications.")
		return nil
	}

	table := ui.Table([]string{"ID", "", "Complaint", "Message", "When"})
	for _, n := range notes {
		mark := output.Yellow("●")
		if n.Read {
			mark = " "
		}
		table.Append([]string{
			shortID(n.ID),
			mark,
			output.Cyan(shortID(n.ComplaintID)),
			n.Message,
			n.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	table.Render()
	return nil
}

func notifyReadRun(id string) error {
	if id == "" && !notifyAll {
		return errors.New("give a notification ID or --all")
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	actor, err := resolveActor(ctx, s, notifyActor)
	if err != nil {
		return err
	}

	unread, err := s.ListNotifications(ctx, actor.ID, true)
	if err != nil {
		return err
	}

	var targets []*models.Notification
	if notifyAll {
		targets = unread
	} else {
		n, err := findNotification(ctx, actor.ID, id)
		if err != nil {
			return err
		}
		targets = []*models.Notification{n}
	}

	if dryRun {
		ui.DryRunMsg("Would mark %d notification(s) as read", len(targets))
		return nil
	}

	for _, n := range targets {
		if err := s.MarkNotificationRead(ctx, n.ID, actor.ID); err != nil {
			return err
		}
	}
	ui.Success("Marked %d notification(s) as read", len(targets))
	return nil
}

// findNotification resolves one of the user's notifications by ID prefix.
func findNotification(ctx context.Context, userID, id string) (*models.Notification, error) {
	notes, err := dataStore.ListNotifications(ctx, userID, false)
	if err != nil {
		return nil, err
	}

	upper := strings.ToUpper(id)
	var matches []*models.Notification
	for _, n := range notes {
		if n.ID == id || strings.HasPrefix(n.ID, upper) {
			matches = append(matches, n)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("notification not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous notification ID %s: matches %d notifications", id, len(matches))
	}
}
