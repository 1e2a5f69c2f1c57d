package models

// Role is a participant's self-declared role, chosen at join time.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// Participant is a connected user. ID is the connection id and lives only as
// long as the connection does; reconnecting yields a new Participant.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}
