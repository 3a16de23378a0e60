package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/joescharf/civic/internal/lifecycle"
	"github.com/joescharf/civic/internal/llm"
	"github.com/joescharf/civic/internal/metrics"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/store"
)

// ActorHeader names the acting user by username. Authentication happens
// in front of this service.
const ActorHeader = "X-Civic-User"

// Server provides the REST API handlers.
type Server struct {
	store      store.Store
	manager    *lifecycle.Manager
	classifier lifecycle.Classifier
	llm        *llm.Client
	logger     *zap.Logger
}

// NewServer creates a new API server.
// The llmClient may be nil if no API key is configured.
func NewServer(s store.Store, m *lifecycle.Manager, c lifecycle.Classifier, llmClient *llm.Client, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:      s,
		manager:    m,
		classifier: c,
		llm:        llmClient,
		logger:     logger,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.healthz)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /api/v1/complaints", s.submitComplaint)
	mux.HandleFunc("GET /api/v1/complaints", s.listComplaints)
	mux.HandleFunc("GET /api/v1/complaints/{id}", s.getComplaint)
	mux.HandleFunc("POST /api/v1/complaints/{id}/solve", s.solveComplaint)
	mux.HandleFunc("POST /api/v1/complaints/{id}/verify", s.verifyComplaint)
	mux.HandleFunc("POST /api/v1/complaints/{id}/reopen", s.reopenComplaint)
	mux.HandleFunc("POST /api/v1/complaints/{id}/transfer", s.transferComplaint)
	mux.HandleFunc("POST /api/v1/complaints/{id}/summarize", s.summarizeComplaint)

	mux.HandleFunc("GET /api/v1/departments/{dept}/queue", s.departmentQueue)
	mux.HandleFunc("GET /api/v1/departments/{dept}/hotspots", s.departmentHotspots)
	mux.HandleFunc("GET /api/v1/departments/{dept}/charts", s.departmentCharts)

	mux.HandleFunc("GET /api/v1/users/{id}/progression", s.userProgression)
	mux.HandleFunc("GET /api/v1/users/{id}/charts", s.userCharts)

	mux.HandleFunc("GET /api/v1/notifications", s.listNotifications)
	mux.HandleFunc("POST /api/v1/notifications/{id}/read", s.readNotification)

	mux.HandleFunc("POST /api/v1/classify", s.classify)

	return requestIDMiddleware(s.observeMiddleware(corsMiddleware(mux)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// StatusForOutcome maps a lifecycle outcome to an HTTP status code.
func StatusForOutcome(o lifecycle.Outcome) int {
	switch o {
	case lifecycle.OutcomeOK:
		return http.StatusOK
	case lifecycle.OutcomeInvalid:
		return http.StatusBadRequest
	case lifecycle.OutcomeForbidden:
		return http.StatusForbidden
	case lifecycle.OutcomeNotFound:
		return http.StatusNotFound
	case lifecycle.OutcomeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type resultResponse struct {
	Outcome   lifecycle.Outcome `json:"outcome"`
	Reason    string            `json:"reason,omitempty"`
	Complaint *models.Complaint `json:"complaint,omitempty"`
}

func writeResult(w http.ResponseWriter, res lifecycle.Result, okStatus int) {
	status := StatusForOutcome(res.Outcome)
	if res.OK() {
		status = okStatus
	}
	writeJSON(w, status, resultResponse{Outcome: res.Outcome, Reason: res.Reason, Complaint: res.Complaint})
}

// actor resolves the acting user from ActorHeader. On failure it writes
// the response and returns nil.
func (s *Server) actor(w http.ResponseWriter, r *http.Request) *models.User {
	username := r.Header.Get(ActorHeader)
	if username == "" {
		writeError(w, http.StatusUnauthorized, "missing "+ActorHeader+" header")
		return nil
	}
	u, err := s.store.GetUserByUsername(r.Context(), username)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusForbidden, "unknown user "+username)
		return nil
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil
	}
	return u
}

// lookupUser accepts a user ID or a username.
func (s *Server) lookupUser(ctx context.Context, ref string) (*models.User, error) {
	u, err := s.store.GetUser(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		return s.store.GetUserByUsername(ctx, ref)
	}
	return u, err
}

func pathDepartment(w http.ResponseWriter, r *http.Request) (models.Department, bool) {
	d, ok := models.ParseDepartment(r.PathValue("dept"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown department "+r.PathValue("dept"))
	}
	return d, ok
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	mode := "keyword"
	if a, ok := s.classifier.(interface{ Available() bool }); ok && a.Available() {
		mode = "model"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "classifier": mode})
}

// --- Complaints ---

type submitRequest struct {
	Description  string   `json:"description"`
	LocationName string   `json:"location_name"`
	Pincode      string   `json:"pincode"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	ImageRef     string   `json:"image_ref"`
}

func (s *Server) submitComplaint(w http.ResponseWriter, r *http.Request) {
	actor := s.actor(w, r)
	if actor == nil {
		return
	}
	var body submitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	res, err := s.manager.Submit(r.Context(), actor, lifecycle.SubmitRequest{
		Description:  body.Description,
		LocationName: body.LocationName,
		Pincode:      body.Pincode,
		Latitude:     body.Latitude,
		Longitude:    body.Longitude,
		ImageRef:     body.ImageRef,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeResult(w, res, http.StatusCreated)
}

// listComplaints returns the department queue for admins and the actor's
// own complaints for citizens.
func (s *Server) listComplaints(w http.ResponseWriter, r *http.Request) {
	actor := s.actor(w, r)
	if actor == nil {
		return
	}
	var (
		complaints []*models.Complaint
		err        error
	)
	if actor.IsDepartmentAdmin {
		complaints, err = s.manager.ListForDepartment(r.Context(), actor.Department, r.URL.Query().Get("city"))
	} else {
		complaints, err = s.manager.ListForUser(r.Context(), actor.ID)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if complaints == nil {
		complaints = []*models.Complaint{}
	}
	writeJSON(w, http.StatusOK, complaints)
}

func (s *Server) getComplaint(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetComplaint(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) solveComplaint(w http.ResponseWriter, r *http.Request) {
	actor := s.actor(w, r)
	if actor == nil {
		return
	}
	res, err := s.manager.MarkSolved(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeResult(w, res, http.StatusOK)
}

type verifyRequest struct {
	Rating   *int   `json:"rating"`
	Feedback string `json:"feedback"`
}

func (s *Server) verifyComplaint(w http.ResponseWriter, r *http.Request) {
	actor := s.actor(w, r)
	if actor == nil {
		return
	}
	var body verifyRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	res, err := s.manager.VerifyClose(r.Context(), actor, r.PathValue("id"), body.Rating, body.Feedback)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeResult(w, res, http.StatusOK)
}

func (s *Server) reopenComplaint(w http.ResponseWriter, r *http.Request) {
	actor := s.actor(w, r)
	if actor == nil {
		return
	}
	res, err := s.manager.Reopen(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeResult(w, res, http.StatusOK)
}

type transferRequest struct {
	Department string `json:"department"`
}

func (s *Server) transferComplaint(w http.ResponseWriter, r *http.Request) {
	actor := s.actor(w, r)
	if actor == nil {
		return
	}
	var body transferRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	target, ok := models.ParseDepartment(body.Department)
	if !ok {
		target = models.Department(body.Department)
	}
	res, err := s.manager.Transfer(r.Context(), actor, r.PathValue("id"), target)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeResult(w, res, http.StatusOK)
}

func (s *Server) summarizeComplaint(w http.ResponseWriter, r *http.Request) {
	if s.llm == nil {
		writeError(w, http.StatusServiceUnavailable, "LLM not configured (set anthropic.api_key)")
		return
	}
	c, err := s.store.GetComplaint(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	summary, err := s.llm.SummarizeComplaint(r.Context(), c.Description, string(c.Department), string(c.Priority))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// --- Departments ---

func (s *Server) departmentQueue(w http.ResponseWriter, r *http.Request) {
	dept, ok := pathDepartment(w, r)
	if !ok {
		return
	}
	complaints, err := s.manager.ListForDepartment(r.Context(), dept, r.URL.Query().Get("city"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if complaints == nil {
		complaints = []*models.Complaint{}
	}
	writeJSON(w, http.StatusOK, complaints)
}

func (s *Server) departmentHotspots(w http.ResponseWriter, r *http.Request) {
	dept, ok := pathDepartment(w, r)
	if !ok {
		return
	}
	spots, err := s.manager.Hotspots(r.Context(), dept)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, spots)
}

func (s *Server) departmentCharts(w http.ResponseWriter, r *http.Request) {
	dept, ok := pathDepartment(w, r)
	if !ok {
		return
	}
	counts, err := s.manager.ChartCounts(r.Context(), lifecycle.Scope{Department: dept})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// --- Users ---

func (s *Server) userProgression(w http.ResponseWriter, r *http.Request) {
	u, err := s.lookupUser(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	p, err := s.manager.Progression(r.Context(), u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) userCharts(w http.ResponseWriter, r *http.Request) {
	u, err := s.lookupUser(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	counts, err := s.manager.ChartCounts(r.Context(), lifecycle.Scope{UserID: u.ID})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// --- Notifications ---

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	actor := s.actor(w, r)
	if actor == nil {
		return
	}
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	notes, err := s.store.ListNotifications(r.Context(), actor.ID, unread)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if notes == nil {
		notes = []*models.Notification{}
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) readNotification(w http.ResponseWriter, r *http.Request) {
	actor := s.actor(w, r)
	if actor == nil {
		return
	}
	err := s.store.MarkNotificationRead(r.Context(), r.PathValue("id"), actor.ID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Classifier ---

type classifyRequest struct {
	Text string `json:"text"`
}

func (s *Server) classify(w http.ResponseWriter, r *http.Request) {
	var body classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	pred := s.classifier.Explain(body.Text)
	metrics.RecordClassification(string(pred.Department), string(pred.Priority), string(pred.DepartmentSource))
	writeJSON(w, http.StatusOK, pred)
}
