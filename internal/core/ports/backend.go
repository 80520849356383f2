// Package ports defines the boundaries between the client services and
// the outside world: the remote REST backend and the durable local store.
package ports

import (
	"context"

	"github.com/eventosacademicos/campus-agenda/internal/core/domain"
)

// LoginInput carries credentials to POST /auth/login.
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is the backend's login response. The full profile is not
// included; callers fetch it separately with UserByID.
type LoginResult struct {
	Token    string          `json:"token"`
	ID       int64           `json:"id"`
	Username string          `json:"username"`
	UserType domain.UserType `json:"userType"`
	Message  string          `json:"message"`
}

// RegisterInput carries a signup request to POST /auth/register.
type RegisterInput struct {
	Username           string          `json:"username"`
	Email              string          `json:"email"`
	Phone              string          `json:"phone"`
	Password           string          `json:"password"`
	RegistrationNumber string          `json:"registrationNumber"`
	UserType           domain.UserType `json:"userType"`
}

// EventInput is the event payload for create and update calls.
type EventInput struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	EventType   domain.EventType `json:"eventType"`
	Date        domain.Timestamp `json:"date"`
	MemberIDs   []int64          `json:"memberIds"`
}

// UserInput is the profile payload for PUT /users/{id}.
type UserInput struct {
	Username           string          `json:"username"`
	Email              string          `json:"email"`
	Phone              string          `json:"phone"`
	RegistrationNumber string          `json:"registrationNumber"`
	UserType           domain.UserType `json:"userType"`
}

// Backend is the remote REST API, one method per consumed endpoint.
// Implementations attach the bearer token and map HTTP failures to
// domain sentinel errors.
type Backend interface {
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	Register(ctx context.Context, in RegisterInput) error

	UserSummaries(ctx context.Context) ([]domain.User, error)
	UserByID(ctx context.Context, id int64) (*domain.User, error)
	UsersByType(ctx context.Context, t domain.UserType) ([]domain.User, error)
	PendingUsers(ctx context.Context) ([]domain.User, error)
	ApproveUser(ctx context.Context, id int64) error
	UpdateUser(ctx context.Context, id int64, in UserInput) (*domain.User, error)
	DeleteUser(ctx context.Context, id int64) error

	UserEvents(ctx context.Context) ([]domain.Event, error)
	AllEvents(ctx context.Context) ([]domain.Event, error)
	EventByID(ctx context.Context, id int64) (*domain.Event, error)
	EventsByType(ctx context.Context, t domain.EventType) ([]domain.Event, error)
	AcademicEvents(ctx context.Context) ([]domain.Event, error)
	PartyEvents(ctx context.Context) ([]domain.Event, error)
	EventMembers(ctx context.Context, eventID int64) ([]domain.EventMember, error)
	CreateEvent(ctx context.Context, in EventInput) (*domain.Event, error)
	UpdateEvent(ctx context.Context, id int64, in EventInput) (*domain.Event, error)
	DeleteEvent(ctx context.Context, id int64) error
	AddEventMember(ctx context.Context, eventID, userID int64) (*domain.Event, error)
	RemoveEventMember(ctx context.Context, eventID, userID int64) error
}
