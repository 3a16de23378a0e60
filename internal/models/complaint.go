package models

import (
	"strings"
	"time"
)

// ComplaintStatus represents the lifecycle state of a complaint.
type ComplaintStatus string

const (
	StatusPending ComplaintStatus = "Pending"
	StatusSolved  ComplaintStatus = "Solved" // resolved, waiting for the citizen to verify
	StatusClosed  ComplaintStatus = "Closed" // verified by the citizen
)

// Statuses lists every status in lifecycle order.
var Statuses = []ComplaintStatus{StatusPending, StatusSolved, StatusClosed}

// Priority is the triage tier of a complaint.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Priorities lists every priority tier, most urgent first.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// Ordinal returns the sort key of the priority (High=1, Medium=2, Low=3).
// Unknown values sort after Low.
func (p Priority) Ordinal() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// ParsePriority resolves a priority name case-insensitively.
func ParsePriority(s string) (Priority, bool) {
	for _, p := range Priorities {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p, true
		}
	}
	return "", false
}

// Complaint is a ticket filed by a citizen.
type Complaint struct {
	ID           string
	UserID       string
	Description  string
	LocationName string
	Pincode      string
	Latitude     *float64
	Longitude    *float64
	ImageRef     string
	Department   Department
	Priority     Priority
	Status       ComplaintStatus
	Rating       *int // set at verification only
	Feedback     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
