package auth

// Role separates students from hostel administrators.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleStudent || r == RoleAdmin }

// Principal is the identity established by a successful login.
// For students ID is the student reference complaints are filed under.
type Principal struct {
	ID         string `json:"id"`
	Role       Role   `json:"role"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	RoomNumber string `json:"roomNumber,omitempty"`
}

// IsAdmin reports whether p has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
