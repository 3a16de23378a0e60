package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/output"
)

var (
	userAdmin      bool
	userDepartment string
	userCity       string
	userPhone      string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage citizens and department admins",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Register a citizen or a department admin",
	Long: `Register a user. Citizens only need a username; department admins
need --admin and the --department they manage.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return userAddRun(args[0])
	},
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return userListRun()
	},
}

func init() {
	userAddCmd.Flags().BoolVar(&userAdmin, "admin", false, "Register as a department admin")
	userAddCmd.Flags().StringVar(&userDepartment, "department", "", "Department managed by the admin")
	userAddCmd.Flags().StringVar(&userCity, "city", models.DefaultCity, "City of residence")
	userAddCmd.Flags().StringVar(&userPhone, "phone", "", "Contact phone number")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
	rootCmd.AddCommand(userCmd)
}

// departmentNames lists the valid department labels for error messages.
func departmentNames() string {
	names := make([]string, len(models.Departments))
	for i, d := range models.Departments {
		names[i] = string(d)
	}
	return strings.Join(names, ", ")
}

func userAddRun(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username must not be empty")
	}

	u := &models.User{
		Username:          username,
		IsDepartmentAdmin: userAdmin,
		City:              userCity,
		Phone:             userPhone,
	}

	if userAdmin {
		dept, ok := models.ParseDepartment(userDepartment)
		if !ok {
			return fmt.Errorf("admins need a valid --department (one of: %s)", departmentNames())
		}
		u.Department = dept
	} else if userDepartment != "" {
		return fmt.Errorf("--department requires --admin")
	}

	if dryRun {
		ui.DryRunMsg("Would add user: %s", username)
		return nil
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		return fmt.Errorf("add user: %w", err)
	}

	role := "citizen"
	if u.IsDepartmentAdmin {
		role = fmt.Sprintf("%s admin", u.Department)
	}
	ui.Success("Added %s: %s (%s)", role, output.Cyan(u.Username), shortID(u.ID))
	return nil
}

func userListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	users, err := s.ListUsers(context.Background())
	if err != nil {
		return err
	}

	if len(users) == 0 {
		ui.Info("No users registered. Use 'civic user add <username>' to get started.")
		return nil
	}

	table := ui.Table([]string{"ID", "Username", "Role", "Department", "City", "Phone"})
	for _, u := range users {
		role := "citizen"
		if u.IsDepartmentAdmin {
			role = "admin"
		}
		table.Append([]string{
			shortID(u.ID),
			output.Cyan(u.Username),
			role,
			string(u.Department),
			u.City,
			u.Phone,
		})
	}
	table.Render()
	return nil
}
