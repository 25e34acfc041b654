package models

import "time"

// Role is the circulation-desk role of a user.
type Role string

// Role constants for user authorization.
const (
	RoleAdmin     Role = "admin"
	RoleLibrarian Role = "librarian"
	RoleStudent   Role = "student"
	RoleCommunity Role = "community"
)

var ValidRoles = []Role{RoleAdmin, RoleLibrarian, RoleStudent, RoleCommunity}

func (r Role) Valid() bool {
	for _, v := range ValidRoles {
		if v == r {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role works the circulation desk.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleLibrarian
}

type User struct {
	ID        string    `bson:"_id" json:"id" db:"id"`
	Email     string    `bson:"email" json:"email" db:"email"`
	Name      string    `bson:"name" json:"name" db:"name"`
	Password  string    `bson:"password" json:"-" db:"password"` // bcrypt hash
	Role      Role      `bson:"role" json:"role" db:"role"`
	BranchID  string    `bson:"branchId" json:"branchId" db:"branch_id"`
	IsActive  bool      `bson:"isActive" json:"isActive" db:"is_active"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt" db:"created_at"`
}

// Actor returns the identity the circulation core sees for u.
func (u *User) Actor() Actor {
	return Actor{
		UserID:   u.ID,
		Role:     u.Role,
		BranchID: u.BranchID,
		IsActive: u.IsActive,
	}
}

// Actor is a resolved caller. It is read-only input to the circulation core.
type Actor struct {
	UserID   string `json:"userId"`
	Role     Role   `json:"role"`
	BranchID string `json:"branchId"`
	IsActive bool   `json:"isActive"`
}
