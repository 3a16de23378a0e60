package models

import "time"

// DefaultCity is assigned to users registered without a city.
const DefaultCity = "Indore"

// User is a citizen or a department admin.
type User struct {
	ID                string
	Username          string
	IsDepartmentAdmin bool
	Department        Department // empty for citizens
	City              string
	Phone             string
	CreatedAt         time.Time
}

// AdminOf reports whether u administers department d.
func (u *User) AdminOf(d Department) bool {
	return u != nil && u.IsDepartmentAdmin && u.Department == d
}
