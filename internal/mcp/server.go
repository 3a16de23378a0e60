package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/civic/internal/lifecycle"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/store"
)

// Server exposes the civic classifier and dashboard views as MCP tools.
type Server struct {
	store      store.Store
	manager    *lifecycle.Manager
	classifier lifecycle.Classifier
	version    string
}

// NewServer creates the MCP server wrapper with all required dependencies.
func NewServer(s store.Store, m *lifecycle.Manager, c lifecycle.Classifier, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{store: s, manager: m, classifier: c, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("civic", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.classifyTool())
	srv.AddTool(s.departmentQueueTool())
	srv.AddTool(s.hotspotsTool())
	srv.AddTool(s.chartCountsTool())
	srv.AddTool(s.userProgressionTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func requireDepartment(request mcp.CallToolRequest) (models.Department, *mcp.CallToolResult) {
	name, err := request.RequireString("department")
	if err != nil {
		return "", mcp.NewToolResultError("missing required parameter: department")
	}
	dept, ok := models.ParseDepartment(name)
	if !ok {
		return "", mcp.NewToolResultError(fmt.Sprintf("unknown department: %s", name))
	}
	return dept, nil
}

// resolveUser accepts a user ID or a username.
func (s *Server) resolveUser(ctx context.Context, ref string) (*models.User, error) {
	u, err := s.store.GetUser(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		return s.store.GetUserByUsername(ctx, ref)
	}
	return u, err
}

// civic_classify
func (s *Server) classifyTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("civic_classify",
		mcp.WithDescription("Classify complaint text into a department and a priority. Returns the department, the priority, and which keyword or model decided each."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Complaint description")),
	)
	return tool, s.handleClassify
}

func (s *Server) handleClassify(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}
	p := s.classifier.Explain(text)

	type classifyOut struct {
		Department        string `json:"department"`
		Priority          string `json:"priority"`
		DepartmentSource  string `json:"department_source"`
		DepartmentKeyword string `json:"department_keyword,omitempty"`
		PriorityKeyword   string `json:"priority_keyword,omitempty"`
		ModelDepartment   string `json:"model_department,omitempty"`
	}
	return jsonResult(classifyOut{
		Department:        string(p.Department),
		Priority:          string(p.Priority),
		DepartmentSource:  string(p.DepartmentSource),
		DepartmentKeyword: p.DepartmentKeyword,
		PriorityKeyword:   p.PriorityKeyword,
		ModelDepartment:   string(p.ModelDepartment),
	})
}

// civic_department_queue
func (s *Server) departmentQueueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("civic_department_queue",
		mcp.WithDescription("List a department's complaints in work order: High priority first, newest first within a priority."),
		mcp.WithString("department", mcp.Required(), mcp.Description("Department name (Electricity, Water, Police, PWD, Health, Fire, Municipal)")),
		mcp.WithString("city", mcp.Description("Only complaints from citizens of this city")),
		mcp.WithString("status", mcp.Description("Filter by status (Pending, Solved, Closed)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of complaints to return (default 20)")),
	)
	return tool, s.handleDepartmentQueue
}

type complaintOut struct {
	ID         string `json:"id"`
	Priority   string `json:"priority"`
	Status     string `json:"status"`
	Location   string `json:"location"`
	Pincode    string `json:"pincode"`
	Summary    string `json:"summary"`
	Department string `json:"department"`
	CreatedAt  string `json:"created_at"`
}

func (s *Server) handleDepartmentQueue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dept, errResult := requireDepartment(request)
	if errResult != nil {
		return errResult, nil
	}
	status := request.GetString("status", "")
	limit := request.GetInt("limit", 20)

	queue, err := s.manager.ListForDepartment(ctx, dept, request.GetString("city", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list queue: %v", err)), nil
	}

	out := make([]complaintOut, 0, len(queue))
	for _, c := range queue {
		if status != "" && string(c.Status) != status {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, complaintOut{
			ID:         c.ID,
			Priority:   string(c.Priority),
			Status:     string(c.Status),
			Location:   c.LocationName,
			Pincode:    c.Pincode,
			Summary:    truncate(c.Description, 120),
			Department: string(c.Department),
			CreatedAt:  c.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return jsonResult(out)
}

// civic_hotspots
func (s *Server) hotspotsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("civic_hotspots",
		mcp.WithDescription("Top five locations (pincode and place name) with the most complaints for a department."),
		mcp.WithString("department", mcp.Required(), mcp.Description("Department name")),
	)
	return tool, s.handleHotspots
}

func (s *Server) handleHotspots(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dept, errResult := requireDepartment(request)
	if errResult != nil {
		return errResult, nil
	}
	spots, err := s.manager.Hotspots(ctx, dept)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to compute hotspots: %v", err)), nil
	}

	type hotspotOut struct {
		Pincode  string `json:"pincode"`
		Location string `json:"location"`
		Count    int    `json:"count"`
	}
	out := make([]hotspotOut, len(spots))
	for i, h := range spots {
		out[i] = hotspotOut{Pincode: h.Pincode, Location: h.LocationName, Count: h.Count}
	}
	return jsonResult(out)
}

// civic_chart_counts
func (s *Server) chartCountsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("civic_chart_counts",
		mcp.WithDescription("Complaint counts by priority and by status, for a department or for one citizen. Give exactly one of department or user."),
		mcp.WithString("department", mcp.Description("Department name")),
		mcp.WithString("user", mcp.Description("Username or user ID")),
	)
	return tool, s.handleChartCounts
}

func (s *Server) handleChartCounts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deptName := request.GetString("department", "")
	userRef := request.GetString("user", "")
	if (deptName == "") == (userRef == "") {
		return mcp.NewToolResultError("give exactly one of department or user"), nil
	}

	var scope lifecycle.Scope
	if deptName != "" {
		dept, ok := models.ParseDepartment(deptName)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown department: %s", deptName)), nil
		}
		scope.Department = dept
	} else {
		u, err := s.resolveUser(ctx, userRef)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("user not found: %s", userRef)), nil
		}
		scope.UserID = u.ID
	}

	counts, err := s.manager.ChartCounts(ctx, scope)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to count complaints: %v", err)), nil
	}

	type chartOut struct {
		Total      int            `json:"total"`
		ByPriority map[string]int `json:"by_priority"`
		ByStatus   map[string]int `json:"by_status"`
	}
	out := chartOut{Total: counts.Total, ByPriority: map[string]int{}, ByStatus: map[string]int{}}
	for p, n := range counts.ByPriority {
		out.ByPriority[string(p)] = n
	}
	for st, n := range counts.ByStatus {
		out.ByStatus[string(st)] = n
	}
	return jsonResult(out)
}

// civic_user_progression
func (s *Server) userProgressionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("civic_user_progression",
		mcp.WithDescription("A citizen's progression: number of closed complaints, score (50 points each) and tier."),
		mcp.WithString("user", mcp.Required(), mcp.Description("Username or user ID")),
	)
	return tool, s.handleUserProgression
}

func (s *Server) handleUserProgression(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("user")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: user"), nil
	}
	u, err := s.resolveUser(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("user not found: %s", ref)), nil
	}
	p, err := s.manager.Progression(ctx, u.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to compute progression: %v", err)), nil
	}

	type progressionOut struct {
		User   string `json:"user"`
		Closed int    `json:"closed"`
		Score  int    `json:"score"`
		Tier   string `json:"tier"`
	}
	return jsonResult(progressionOut{User: u.Username, Closed: p.Closed, Score: p.Score, Tier: p.Tier})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
