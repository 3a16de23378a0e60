package models

import "time"

// Notification is a message delivered to a user about one of their complaints.
type Notification struct {
	ID          string
	UserID      string
	ComplaintID string
	Message     string
	Read        bool
	CreatedAt   time.Time
}
