package domain

import "time"

// Role enumerates the access levels of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// User is an account that can sign in: employees, agents and admins.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Department   *Department
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// IsAgentOf reports whether the user is an agent scoped to dept.
func (u *User) IsAgentOf(dept Department) bool {
	return u != nil && u.Role == RoleAgent && u.Department != nil && *u.Department == dept
}

// UserStats summarises the user population by role.
type UserStats struct {
	Total     int64
	Agents    int64
	Employees int64
	Admins    int64
}
