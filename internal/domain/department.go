package domain

// Department is one of the fixed support categories shared by tickets and agents.
type Department string

const (
	DepartmentIT    Department = "IT"
	DepartmentHR    Department = "HR"
	DepartmentAdmin Department = "Admin"
)

// Departments lists every department in display order.
var Departments = []Department{DepartmentIT, DepartmentHR, DepartmentAdmin}

// Valid reports whether d is a known department.
func (d Department) Valid() bool {
	switch d {
	case DepartmentIT, DepartmentHR, DepartmentAdmin:
		return true
	}
	return false
}
