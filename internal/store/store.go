package store

import (
	"context"
	"errors"

	"github.com/joescharf/civic/internal/models"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a guarded update finds the record in an
	// unexpected state.
	ErrConflict = errors.New("conflict")
)

// ComplaintListFilter specifies filters for listing complaints.
type ComplaintListFilter struct {
	UserID     string
	Department models.Department
	City       string // city of the submitting user, case-insensitive
	Status     models.ComplaintStatus
	Priority   models.Priority
}

// Store defines the persistence interface for civic.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)

	// Complaints
	CreateComplaint(ctx context.Context, c *models.Complaint) error
	GetComplaint(ctx context.Context, id string) (*models.Complaint, error)
	ListComplaints(ctx context.Context, filter ComplaintListFilter) ([]*models.Complaint, error)
	// TransitionComplaint writes status, rating and feedback of c, but only
	// if the stored status still equals expected. It returns ErrConflict
	// otherwise.
	TransitionComplaint(ctx context.Context, c *models.Complaint, expected models.ComplaintStatus) error
	UpdateComplaintDepartment(ctx context.Context, id string, dept models.Department) error

	// Notifications
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
