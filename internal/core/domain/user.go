package domain

// UserType classifies an account on the backend.
type UserType string

const (
	UserStudent UserType = "STUDENT"
	UserTeacher UserType = "TEACHER"
	UserAdmin   UserType = "ADMIN"
)

// Valid reports whether t is one of the known user types.
func (t UserType) Valid() bool {
	switch t {
	case UserStudent, UserTeacher, UserAdmin:
		return true
	}
	return false
}

// UserRef is the compact user shape embedded in events and memberships.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// User models an account as the backend returns it. The client holds a
// read-mostly cached copy; the backend owns the record.
type User struct {
	ID                 int64         `json:"id"`
	Username           string        `json:"username"`
	Email              string        `json:"email"`
	Phone              string        `json:"phone"`
	RegistrationNumber string        `json:"registrationNumber"`
	UserType           UserType      `json:"userType"`
	Approved           bool          `json:"approved"`
	CreatedAt          Timestamp     `json:"createdAt"`
	Password           string        `json:"password,omitempty"` // hash echo on some endpoints, never sent back
	EventMemberships   []EventMember `json:"eventMemberships,omitempty"`
	CreatedEvents      []Event       `json:"createdEvents,omitempty"`
}

// Ref returns the compact reference shape for u.
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username}
}
