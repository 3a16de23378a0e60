// Package lifecycle applies complaint status transitions and computes the
// derived dashboard views.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/joescharf/civic/internal/classifier"
	"github.com/joescharf/civic/internal/metrics"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/store"
)

// Outcome is the result category of a lifecycle action.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeForbidden Outcome = "forbidden"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeConflict  Outcome = "conflict" // status does not allow the transition
	OutcomeInvalid   Outcome = "invalid"
)

// Result reports what an action did. Complaint is the complaint after the
// action when it was found, whatever the outcome.
type Result struct {
	Outcome   Outcome
	Complaint *models.Complaint
	Reason    string
}

// OK reports whether the action was applied.
func (r Result) OK() bool { return r.Outcome == OutcomeOK }

func deny(outcome Outcome, c *models.Complaint, format string, args ...any) Result {
	return Result{Outcome: outcome, Complaint: c, Reason: fmt.Sprintf(format, args...)}
}

// Policy holds the deployment-dependent authorization rules.
type Policy struct {
	SolveRequiresSameDepartment    bool
	TransferRequiresSameDepartment bool
	DefaultRating                  int
}

// DefaultPolicy returns the stock policy.
func DefaultPolicy() Policy {
	return Policy{
		SolveRequiresSameDepartment:    true,
		TransferRequiresSameDepartment: false,
		DefaultRating:                  5,
	}
}

// Classifier assigns a department and priority to complaint text.
type Classifier interface {
	Explain(text string) classifier.Prediction
}

// Manager runs lifecycle actions against a store.
type Manager struct {
	store      store.Store
	classifier Classifier
	policy     Policy
	logger     *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithPolicy overrides DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(m *Manager) { m.policy = p }
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a Manager.
func NewManager(s store.Store, c Classifier, opts ...Option) *Manager {
	m := &Manager{
		store:      s,
		classifier: c,
		policy:     DefaultPolicy(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.policy.DefaultRating < 1 || m.policy.DefaultRating > 5 {
		m.policy.DefaultRating = 5
	}
	return m
}

// Policy returns the active policy.
func (m *Manager) Policy() Policy { return m.policy }

// SubmitRequest carries the citizen-provided complaint fields.
type SubmitRequest struct {
	Description  string
	LocationName string
	Pincode      string
	Latitude     *float64
	Longitude    *float64
	ImageRef     string
}

// Submit classifies the description and stores a new Pending complaint
// owned by actor.
func (m *Manager) Submit(ctx context.Context, actor *models.User, req SubmitRequest) (Result, error) {
	if actor == nil {
		return m.record("submit", deny(OutcomeForbidden, nil, "unknown user")), nil
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return m.record("submit", deny(OutcomeInvalid, nil, "latitude and longitude must be given together")), nil
	}

	pred := m.classifier.Explain(req.Description)
	metrics.RecordClassification(string(pred.Department), string(pred.Priority), string(pred.DepartmentSource))

	c := &models.Complaint{
		UserID:       actor.ID,
		Description:  req.Description,
		LocationName: req.LocationName,
		Pincode:      req.Pincode,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		ImageRef:     req.ImageRef,
		Department:   pred.Department,
		Priority:     pred.Priority,
		Status:       models.StatusPending,
	}
	if err := m.store.CreateComplaint(ctx, c); err != nil {
		return Result{}, fmt.Errorf("submit complaint: %w", err)
	}

	m.logger.Info("complaint submitted",
		zap.String("complaint_id", c.ID),
		zap.String("user", actor.Username),
		zap.String("department", string(c.Department)),
		zap.String("priority", string(c.Priority)),
		zap.String("source", string(pred.DepartmentSource)),
	)
	return m.record("submit", Result{Outcome: OutcomeOK, Complaint: c}), nil
}

// MarkSolved moves a Pending complaint to Solved. The actor must be a
// department admin, of the complaint's department when the policy says so.
func (m *Manager) MarkSolved(ctx context.Context, actor *models.User, id string) (Result, error) {
	c, res, err := m.load(ctx, id)
	if c == nil || err != nil {
		return m.record("solve", res), err
	}
	switch {
	case actor == nil || !actor.IsDepartmentAdmin:
		return m.record("solve", deny(OutcomeForbidden, c, "only department admins can mark complaints solved")), nil
	case m.policy.SolveRequiresSameDepartment && actor.Department != c.Department:
		return m.record("solve", deny(OutcomeForbidden, c, "complaint belongs to %s, not %s", c.Department, actor.Department)), nil
	case c.Status != models.StatusPending:
		return m.record("solve", deny(OutcomeConflict, c, "complaint is %s, not Pending", c.Status)), nil
	}

	res, err = m.transition(ctx, "solve", c, models.StatusSolved, c.Rating, c.Feedback)
	if err != nil || !res.OK() {
		return res, err
	}
	m.notify(ctx, c, fmt.Sprintf("Your complaint %s was marked Solved by the %s department. Please verify it.",
		ShortID(c.ID), c.Department))
	return res, nil
}

// VerifyClose lets the owner confirm a Solved complaint. A nil rating
// falls back to the policy default.
func (m *Manager) VerifyClose(ctx context.Context, actor *models.User, id string, rating *int, feedback string) (Result, error) {
	c, res, err := m.load(ctx, id)
	if c == nil || err != nil {
		return m.record("verify", res), err
	}
	if actor == nil || actor.ID != c.UserID {
		return m.record("verify", deny(OutcomeForbidden, c, "only the submitting user can verify a complaint")), nil
	}

	r := m.policy.DefaultRating
	if rating != nil {
		r = *rating
	}
	if r < 1 || r > 5 {
		return m.record("verify", deny(OutcomeInvalid, c, "rating must be between 1 and 5, got %d", r)), nil
	}
	if c.Status != models.StatusSolved {
		return m.record("verify", deny(OutcomeConflict, c, "complaint is %s, not Solved", c.Status)), nil
	}

	res, err = m.transition(ctx, "verify", c, models.StatusClosed, &r, feedback)
	if err != nil || !res.OK() {
		return res, err
	}

	msg := fmt.Sprintf("Complaint %s closed with rating %d.", ShortID(c.ID), r)
	if p, err := m.Progression(ctx, c.UserID); err == nil {
		msg += fmt.Sprintf(" Score: %d (%s).", p.Score, p.Tier)
	} else {
		m.logger.Warn("progression unavailable", zap.String("user_id", c.UserID), zap.Error(err))
	}
	m.notify(ctx, c, msg)
	return res, nil
}

// Reopen returns a Solved or Closed complaint to Pending. Rating and
// feedback of an earlier closure are kept.
func (m *Manager) Reopen(ctx context.Context, actor *models.User, id string) (Result, error) {
	c, res, err := m.load(ctx, id)
	if c == nil || err != nil {
		return m.record("reopen", res), err
	}
	if actor == nil || actor.ID != c.UserID {
		return m.record("reopen", deny(OutcomeForbidden, c, "only the submitting user can reopen a complaint")), nil
	}
	if c.Status != models.StatusSolved && c.Status != models.StatusClosed {
		return m.record("reopen", deny(OutcomeConflict, c, "complaint is already %s", c.Status)), nil
	}
	return m.transition(ctx, "reopen", c, models.StatusPending, c.Rating, c.Feedback)
}

// Transfer reassigns a complaint to another department. Status and
// priority are left alone.
func (m *Manager) Transfer(ctx context.Context, actor *models.User, id string, target models.Department) (Result, error) {
	if !target.Valid() {
		return m.record("transfer", deny(OutcomeInvalid, nil, "unknown department %q", target)), nil
	}
	c, res, err := m.load(ctx, id)
	if c == nil || err != nil {
		return m.record("transfer", res), err
	}
	switch {
	case actor == nil || !actor.IsDepartmentAdmin:
		return m.record("transfer", deny(OutcomeForbidden, c, "only department admins can transfer complaints")), nil
	case m.policy.TransferRequiresSameDepartment && actor.Department != c.Department:
		return m.record("transfer", deny(OutcomeForbidden, c, "complaint belongs to %s, not %s", c.Department, actor.Department)), nil
	}

	from := c.Department
	if err := m.store.UpdateComplaintDepartment(ctx, c.ID, target); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return m.record("transfer", deny(OutcomeNotFound, nil, "complaint %s not found", id)), nil
		}
		return Result{}, fmt.Errorf("transfer complaint: %w", err)
	}
	c.Department = target

	m.logger.Info("complaint transferred",
		zap.String("complaint_id", c.ID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("actor", actor.Username),
	)
	if from != target {
		m.notify(ctx, c, fmt.Sprintf("Your complaint %s was transferred from %s to %s.", ShortID(c.ID), from, target))
	}
	return m.record("transfer", Result{Outcome: OutcomeOK, Complaint: c}), nil
}

// load fetches a complaint. A nil complaint with a nil error means the
// returned Result already carries the not_found outcome.
func (m *Manager) load(ctx context.Context, id string) (*models.Complaint, Result, error) {
	c, err := m.store.GetComplaint(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, deny(OutcomeNotFound, nil, "complaint %s not found", id), nil
	}
	if err != nil {
		return nil, Result{}, fmt.Errorf("load complaint: %w", err)
	}
	return c, Result{}, nil
}

func (m *Manager) transition(ctx context.Context, action string, c *models.Complaint, to models.ComplaintStatus, rating *int, feedback string) (Result, error) {
	from := c.Status
	next := *c
	next.Status = to
	next.Rating = rating
	next.Feedback = feedback

	err := m.store.TransitionComplaint(ctx, &next, from)
	switch {
	case errors.Is(err, store.ErrConflict):
		return m.record(action, deny(OutcomeConflict, c, "complaint changed concurrently")), nil
	case errors.Is(err, store.ErrNotFound):
		return m.record(action, deny(OutcomeNotFound, nil, "complaint %s not found", c.ID)), nil
	case err != nil:
		return Result{}, fmt.Errorf("%s complaint: %w", action, err)
	}

	*c = next
	m.logger.Info("complaint status changed",
		zap.String("complaint_id", c.ID),
		zap.String("action", action),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return m.record(action, Result{Outcome: OutcomeOK, Complaint: c}), nil
}

// notify stores a message for the complaint owner. Failures are logged
// and do not undo the transition.
func (m *Manager) notify(ctx context.Context, c *models.Complaint, msg string) {
	n := &models.Notification{UserID: c.UserID, ComplaintID: c.ID, Message: msg}
	if err := m.store.CreateNotification(ctx, n); err != nil {
		m.logger.Warn("notification failed", zap.String("complaint_id", c.ID), zap.Error(err))
	}
}

func (m *Manager) record(action string, r Result) Result {
	if r.Outcome == "" {
		return r
	}
	metrics.RecordTransition(action, string(r.Outcome))
	if !r.OK() {
		m.logger.Debug("action rejected",
			zap.String("action", action),
			zap.String("outcome", string(r.Outcome)),
			zap.String("reason", r.Reason),
		)
	}
	return r
}

// ShortID returns the first 12 characters of an ID for display.
func ShortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
