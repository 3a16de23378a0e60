package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/store"
)

var (
	exportFormat string
	exportType   string
	exportDept   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export data as JSON, CSV, or Markdown",
	Long:  "Export complaints or users in various formats.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportRun()
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json, csv, markdown")
	exportCmd.Flags().StringVar(&exportType, "type", "complaints", "Data type: complaints, users")
	exportCmd.Flags().StringVar(&exportDept, "department", "", "Only complaints routed to this department")
	rootCmd.AddCommand(exportCmd)
}

func exportRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch exportType {
	case "complaints":
		return exportComplaints(ctx, s)
	case "users":
		return exportUsers(ctx, s)
	default:
		return fmt.Errorf("unknown export type: %s (use: complaints, users)", exportType)
	}
}

func exportComplaints(ctx context.Context, s store.Store) error {
	var filter store.ComplaintListFilter
	if exportDept != "" {
		dept, ok := models.ParseDepartment(exportDept)
		if !ok {
			return fmt.Errorf("unknown department: %s (use: %s)", exportDept, departmentNames())
		}
		filter.Department = dept
	}

	complaints, err := s.ListComplaints(ctx, filter)
	if err != nil {
		return err
	}

	switch exportFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(complaints)
	case "csv":
		w := csv.NewWriter(ui.Out)
		_ = w.Write([]string{"ID", "UserID", "Department", "Priority", "Status", "Location", "Pincode", "Rating", "Description", "Created"})
		for _, c := range complaints {
			rating := ""
			if c.Rating != nil {
				rating = strconv.Itoa(*c.Rating)
			}
			_ = w.Write([]string{c.ID, c.UserID, string(c.Department), string(c.Priority), string(c.Status),
				c.LocationName, c.Pincode, rating, c.Description, c.CreatedAt.Format("2006-01-02T15:04:05Z")})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintln(ui.Out, "# Complaints")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| ID | Department | Priority | Status | Location | Description |")
		fmt.Fprintln(ui.Out, "|----|------------|----------|--------|----------|-------------|")
		for _, c := range complaints {
			fmt.Fprintf(ui.Out, "| %s | %s | %s | %s | %s | %s |\n",
				shortID(c.ID), c.Department, c.Priority, c.Status, markdownCell(c.LocationName), markdownCell(c.Description))
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", exportFormat)
	}
}

func exportUsers(ctx context.Context, s store.Store) error {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return err
	}

	switch exportFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(users)
	case "csv":
		w := csv.NewWriter(ui.Out)
		_ = w.Write([]string{"ID", "Username", "Admin", "Department", "City", "Phone", "Created"})
		for _, u := range users {
			_ = w.Write([]string{u.ID, u.Username, strconv.FormatBool(u.IsDepartmentAdmin), string(u.Department),
				u.City, u.Phone, u.CreatedAt.Format("2006-01-02")})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintln(ui.Out, "# Users")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| Username | Admin | Department | City |")
		fmt.Fprintln(ui.Out, "|----------|-------|------------|------|")
		for _, u := range users {
			fmt.Fprintf(ui.Out, "| %s | %t | %s | %s |\n", markdownCell(u.Username), u.IsDepartmentAdmin, u.Department, markdownCell(u.City))
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", exportFormat)
	}
}

// markdownCell keeps free text from breaking the table layout.
func markdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
