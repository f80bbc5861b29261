package model

// Role identifies the permission level of a backend user.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleController Role = "CONTROLLER"
)

// User is the identity record returned by the parking backend.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	BranchID int64  `json:"branchId"`
	Active   bool   `json:"active"`
}
