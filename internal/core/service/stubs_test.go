package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/eventosacademicos/campus-agenda/internal/core/domain"
	"github.com/eventosacademicos/campus-agenda/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

var errNotStubbed = errors.New("not stubbed")

// stubBackend implements ports.Backend through optional function fields;
// unset methods fail loudly.
type stubBackend struct {
	loginFn        func(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error)
	registerFn     func(ctx context.Context, in ports.RegisterInput) error
	userByIDFn     func(ctx context.Context, id int64) (*domain.User, error)
	summariesFn    func(ctx context.Context) ([]domain.User, error)
	pendingFn      func(ctx context.Context) ([]domain.User, error)
	approveFn      func(ctx context.Context, id int64) error
	updateUserFn   func(ctx context.Context, id int64, in ports.UserInput) (*domain.User, error)
	deleteUserFn   func(ctx context.Context, id int64) error
	userEventsFn   func(ctx context.Context) ([]domain.Event, error)
	eventByIDFn    func(ctx context.Context, id int64) (*domain.Event, error)
	membersFn      func(ctx context.Context, eventID int64) ([]domain.EventMember, error)
	createEventFn  func(ctx context.Context, in ports.EventInput) (*domain.Event, error)
	updateEventFn  func(ctx context.Context, id int64, in ports.EventInput) (*domain.Event, error)
	deleteEventFn  func(ctx context.Context, id int64) error
	addMemberFn    func(ctx context.Context, eventID, userID int64) (*domain.Event, error)
	removeMemberFn func(ctx context.Context, eventID, userID int64) error

	// calls records the invocation order of mutation endpoints.
	calls []string
}

func (b *stubBackend) Login(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	b.calls = append(b.calls, "login")
	if b.loginFn == nil {
		return nil, errNotStubbed
	}
	return b.loginFn(ctx, in)
}

func (b *stubBackend) Register(ctx context.Context, in ports.RegisterInput) error {
	if b.registerFn == nil {
		return errNotStubbed
	}
	return b.registerFn(ctx, in)
}

func (b *stubBackend) UserSummaries(ctx context.Context) ([]domain.User, error) {
	b.calls = append(b.calls, "userSummaries")
	if b.summariesFn == nil {
		return nil, errNotStubbed
	}
	return b.summariesFn(ctx)
}

func (b *stubBackend) UserByID(ctx context.Context, id int64) (*domain.User, error) {
	b.calls = append(b.calls, "userByID")
	if b.userByIDFn == nil {
		return nil, errNotStubbed
	}
	return b.userByIDFn(ctx, id)
}

func (b *stubBackend) UsersByType(context.Context, domain.UserType) ([]domain.User, error) {
	return nil, errNotStubbed
}

func (b *stubBackend) PendingUsers(ctx context.Context) ([]domain.User, error) {
	b.calls = append(b.calls, "pendingUsers")
	if b.pendingFn == nil {
		return nil, errNotStubbed
	}
	return b.pendingFn(ctx)
}

func (b *stubBackend) ApproveUser(ctx context.Context, id int64) error {
	b.calls = append(b.calls, "approveUser")
	if b.approveFn == nil {
		return errNotStubbed
	}
	return b.approveFn(ctx, id)
}

func (b *stubBackend) UpdateUser(ctx context.Context, id int64, in ports.UserInput) (*domain.User, error) {
	b.calls = append(b.calls, "updateUser")
	if b.updateUserFn == nil {
		return nil, errNotStubbed
	}
	return b.updateUserFn(ctx, id, in)
}

func (b *stubBackend) DeleteUser(ctx context.Context, id int64) error {
	b.calls = append(b.calls, "deleteUser")
	if b.deleteUserFn == nil {
		return errNotStubbed
	}
	return b.deleteUserFn(ctx, id)
}

func (b *stubBackend) UserEvents(ctx context.Context) ([]domain.Event, error) {
	b.calls = append(b.calls, "userEvents")
	if b.userEventsFn == nil {
		return nil, errNotStubbed
	}
	return b.userEventsFn(ctx)
}

func (b *stubBackend) AllEvents(context.Context) ([]domain.Event, error) {
	return nil, errNotStubbed
}

func (b *stubBackend) EventByID(ctx context.Context, id int64) (*domain.Event, error) {
	b.calls = append(b.calls, "eventByID")
	if b.eventByIDFn == nil {
		return nil, errNotStubbed
	}
	return b.eventByIDFn(ctx, id)
}

func (b *stubBackend) EventsByType(context.Context, domain.EventType) ([]domain.Event, error) {
	return nil, errNotStubbed
}

func (b *stubBackend) AcademicEvents(context.Context) ([]domain.Event, error) {
	return nil, errNotStubbed
}

func (b *stubBackend) PartyEvents(context.Context) ([]domain.Event, error) {
	return nil, errNotStubbed
}

func (b *stubBackend) EventMembers(ctx context.Context, eventID int64) ([]domain.EventMember, error) {
	if b.membersFn == nil {
		return nil, errNotStubbed
	}
	return b.membersFn(ctx, eventID)
}

func (b *stubBackend) CreateEvent(ctx context.Context, in ports.EventInput) (*domain.Event, error) {
	b.calls = append(b.calls, "createEvent")
	if b.createEventFn == nil {
		return nil, errNotStubbed
	}
	return b.createEventFn(ctx, in)
}

func (b *stubBackend) UpdateEvent(ctx context.Context, id int64, in ports.EventInput) (*domain.Event, error) {
	b.calls = append(b.calls, "updateEvent")
	if b.updateEventFn == nil {
		return nil, errNotStubbed
	}
	return b.updateEventFn(ctx, id, in)
}

func (b *stubBackend) DeleteEvent(ctx context.Context, id int64) error {
	b.calls = append(b.calls, "deleteEvent")
	if b.deleteEventFn == nil {
		return errNotStubbed
	}
	return b.deleteEventFn(ctx, id)
}

func (b *stubBackend) AddEventMember(ctx context.Context, eventID, userID int64) (*domain.Event, error) {
	b.calls = append(b.calls, "addMember")
	if b.addMemberFn == nil {
		return nil, errNotStubbed
	}
	return b.addMemberFn(ctx, eventID, userID)
}

func (b *stubBackend) RemoveEventMember(ctx context.Context, eventID, userID int64) error {
	b.calls = append(b.calls, "removeMember")
	if b.removeMemberFn == nil {
		return errNotStubbed
	}
	return b.removeMemberFn(ctx, eventID, userID)
}

// stubStore implements ports.SessionStore in memory, recording the order
// of writes so tests can assert the token-before-profile guarantee.
type stubStore struct {
	state ports.SessionState
	ops   []string

	saveTokenErr error
}

func (s *stubStore) Load() (ports.SessionState, error) {
	return s.state, nil
}

func (s *stubStore) SaveToken(token string) error {
	if s.saveTokenErr != nil {
		return s.saveTokenErr
	}
	s.ops = append(s.ops, "saveToken")
	s.state.Token = token
	return nil
}

func (s *stubStore) SaveUser(u *domain.User) error {
	s.ops = append(s.ops, "saveUser")
	s.state.User = u
	return nil
}

func (s *stubStore) SavePreferences(p ports.Preferences) error {
	s.state.Preferences = p
	return nil
}

func (s *stubStore) ClearSession() error {
	s.ops = append(s.ops, "clear")
	s.state = ports.SessionState{}
	return nil
}

// alwaysAuthed satisfies Authenticator for query-layer tests.
type alwaysAuthed struct{}

func (alwaysAuthed) Authenticated() bool { return true }

type neverAuthed struct{}

func (neverAuthed) Authenticated() bool { return false }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func signedToken(ttl time.Duration) string {
	claims := jwt.MapClaims{"sub": "1", "exp": time.Now().Add(ttl).Unix()}
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	return tok
}

func testEvent(id int64, title string, t domain.EventType) domain.Event {
	return domain.Event{
		ID:        id,
		Title:     title,
		EventType: t,
		Date:      domain.NewTimestamp(time.Date(2026, 5, 20, 10, 0, 0, 0, time.Local)),
		Organizer: domain.UserRef{ID: 1, Username: "organizer"},
	}
}

func member(userID int64, username string) domain.EventMember {
	return domain.EventMember{
		ID:       userID * 100,
		User:     domain.UserRef{ID: userID, Username: username},
		JoinedAt: domain.NewTimestamp(time.Now()),
	}
}
