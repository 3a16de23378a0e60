package models

import "strings"

// Department is the municipal department a complaint is routed to.
type Department string

const (
	DepartmentElectricity Department = "Electricity"
	DepartmentWater       Department = "Water"
	DepartmentPolice      Department = "Police"
	DepartmentPWD         Department = "PWD"
	DepartmentHealth      Department = "Health"
	DepartmentFire        Department = "Fire"
	DepartmentMunicipal   Department = "Municipal"
)

// Departments lists every department in declaration order. Keyword
// overrides are evaluated in this order.
var Departments = []Department{
	DepartmentElectricity,
	DepartmentWater,
	DepartmentPolice,
	DepartmentPWD,
	DepartmentHealth,
	DepartmentFire,
	DepartmentMunicipal,
}

// Valid reports whether d is one of the known departments.
func (d Department) Valid() bool {
	for _, known := range Departments {
		if d == known {
			return true
		}
	}
	return false
}

// ParseDepartment resolves a department name case-insensitively.
func ParseDepartment(s string) (Department, bool) {
	for _, known := range Departments {
		if strings.EqualFold(string(known), strings.TrimSpace(s)) {
			return known, true
		}
	}
	return "", false
}
