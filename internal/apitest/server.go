// Package apitest runs an in-process fake of the scheduling backend for
// client tests: the real endpoint surface, bearer-token auth, and
// organizer-only edit rules, backed by in-memory maps. Failure injection
// hooks let tests exercise the partial-failure paths.
package apitest

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/eventosacademicos/campus-agenda/internal/core/domain"
	"github.com/eventosacademicos/campus-agenda/internal/core/ports"
)

const signingSecret = "apitest-secret"

// Server is the fake backend. Mutate the Fail* fields to inject errors;
// all exported state is guarded by the embedded mutex.
type Server struct {
	URL string

	mu           sync.Mutex
	users        map[int64]*domain.User
	passwords    map[int64]string
	events       map[int64]*domain.Event
	nextUser     int64
	nextEvent    int64
	nextMember   int64
	ts           *httptest.Server

	// FailAddMember and FailRemoveMember force a 500 for the given user id.
	FailAddMember    map[int64]bool
	FailRemoveMember map[int64]bool
	// RejectAuth forces 401 on every authenticated endpoint.
	RejectAuth bool
}

// New starts the fake backend on a loopback listener.
func New() *Server {
	s := &Server{
		users:            make(map[int64]*domain.User),
		passwords:        make(map[int64]string),
		events:           make(map[int64]*domain.Event),
		FailAddMember:    make(map[int64]bool),
		FailRemoveMember: make(map[int64]bool),
	}

	e := echo.New()
	e.HideBanner = true

	e.POST("/auth/login", s.login)
	e.POST("/auth/register", s.register)

	authed := e.Group("", s.requireToken)
	authed.GET("/users/summary", s.userSummaries)
	authed.GET("/users/pending", s.pendingUsers)
	authed.GET("/users/type/:type", s.usersByType)
	authed.GET("/users/:id", s.userByID)
	authed.PUT("/users/:id/approve", s.approveUser)
	authed.PUT("/users/:id", s.updateUser)
	authed.DELETE("/users/:id", s.deleteUser)

	authed.GET("/events", s.userEvents)
	authed.GET("/events/all", s.allEvents)
	authed.GET("/events/academic", s.academicEvents)
	authed.GET("/events/party", s.partyEvents)
	authed.GET("/events/type/:type", s.eventsByType)
	authed.GET("/events/:id", s.eventByID)
	authed.GET("/events/:id/members", s.eventMembers)
	authed.POST("/events", s.createEvent)
	authed.PUT("/events/:id", s.updateEvent)
	authed.DELETE("/events/:id", s.deleteEvent)
	authed.POST("/events/:id/members/:userId", s.addMember)
	authed.DELETE("/events/:id/members/:userId", s.removeMember)

	s.ts = httptest.NewServer(e)
	s.URL = s.ts.URL
	return s
}

// Close shuts the listener down.
func (s *Server) Close() {
	s.ts.Close()
}

// SeedUser registers an approved account directly in the store.
func (s *Server) SeedUser(username, password string, t domain.UserType) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUser++
	u := &domain.User{
		ID:                 s.nextUser,
		Username:           username,
		Email:              username + "@campus.test",
		Phone:              "555-0000",
		RegistrationNumber: "R" + strconv.FormatInt(s.nextUser, 10),
		UserType:           t,
		Approved:           true,
		CreatedAt:          domain.NewTimestamp(time.Now()),
	}
	s.users[u.ID] = u
	s.passwords[u.ID] = password
	return u
}

// SeedEvent creates an event with the organizer as first member plus the
// given extra member ids.
func (s *Server) SeedEvent(organizer *domain.User, title string, t domain.EventType, date time.Time, memberIDs ...int64) *domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEvent++
	ev := &domain.Event{
		ID:        s.nextEvent,
		Title:     title,
		EventType: t,
		Date:      domain.NewTimestamp(date),
		Organizer: organizer.Ref(),
	}
	s.appendMember(ev, organizer.ID)
	for _, id := range memberIDs {
		s.appendMember(ev, id)
	}
	s.events[ev.ID] = ev
	return ev
}

// Token issues a signed bearer token for the user, valid for ttl.
func Token(userID int64, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"exp": time.Now().Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := t.SignedString([]byte(signingSecret))
	return signed
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		reject := s.RejectAuth
		s.mu.Unlock()
		if reject {
			return echo.NewHTTPError(http.StatusUnauthorized, "token rejected")
		}

		header := c.Request().Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
		}
		claims := jwt.MapClaims{}
		tkn, err := jwt.ParseWithClaims(parts[1], claims, func(*jwt.Token) (any, error) {
			return []byte(signingSecret), nil
		})
		if err != nil || !tkn.Valid {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}
		sub, _ := claims["sub"].(string)
		id, err := strconv.ParseInt(sub, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}
		c.Set("userID", id)
		return next(c)
	}
}

func (s *Server) caller(c echo.Context) *domain.User {
	id, _ := c.Get("userID").(int64)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

// ---------------------------------------------------------------------------
// Auth handlers
// ---------------------------------------------------------------------------

func (s *Server) login(c echo.Context) error {
	var in ports.LoginInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.users {
		if u.Username == in.Username && s.passwords[id] == in.Password {
			return c.JSON(http.StatusOK, ports.LoginResult{
				Token:    Token(id, time.Hour),
				ID:       id,
				Username: u.Username,
				UserType: u.UserType,
			})
		}
	}
	return echo.NewHTTPError(http.StatusUnauthorized, "bad credentials")
}

func (s *Server) register(c echo.Context) error {
	var in ports.RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == in.Username {
			return echo.NewHTTPError(http.StatusConflict, "username taken")
		}
	}
	s.nextUser++
	u := &domain.User{
		ID:                 s.nextUser,
		Username:           in.Username,
		Email:              in.Email,
		Phone:              in.Phone,
		RegistrationNumber: in.RegistrationNumber,
		UserType:           in.UserType,
		Approved:           false,
		CreatedAt:          domain.NewTimestamp(time.Now()),
	}
	s.users[u.ID] = u
	s.passwords[u.ID] = in.Password
	return c.JSON(http.StatusCreated, map[string]string{"message": "registered"})
}

// ---------------------------------------------------------------------------
// User handlers
// ---------------------------------------------------------------------------

func (s *Server) userSummaries(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) pendingUsers(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0)
	for _, u := range s.users {
		if !u.Approved {
			out = append(out, *u)
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) usersByType(c echo.Context) error {
	t := domain.UserType(c.Param("type"))
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0)
	for _, u := range s.users {
		if u.UserType == t {
			out = append(out, *u)
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) userByID(c echo.Context) error {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) approveUser(c echo.Context) error {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	u.Approved = true
	return c.NoContent(http.StatusOK)
}

func (s *Server) updateUser(c echo.Context) error {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	var in ports.UserInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	u.Username = in.Username
	u.Email = in.Email
	u.Phone = in.Phone
	u.RegistrationNumber = in.RegistrationNumber
	u.UserType = in.UserType
	return c.JSON(http.StatusOK, u)
}

func (s *Server) deleteUser(c echo.Context) error {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	delete(s.users, id)
	delete(s.passwords, id)
	return c.NoContent(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Event handlers
// ---------------------------------------------------------------------------

func (s *Server) userEvents(c echo.Context) error {
	caller := s.caller(c)
	if caller == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Event, 0)
	for _, ev := range s.events {
		if ev.OrganizedBy(caller.ID) {
			out = append(out, *ev)
			continue
		}
		for _, m := range ev.Members {
			if m.User.ID == caller.ID {
				out = append(out, *ev)
				break
			}
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) allEvents(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, *ev)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) academicEvents(c echo.Context) error {
	return s.filteredEvents(c, func(ev *domain.Event) bool { return ev.EventType.Academic() })
}

func (s *Server) partyEvents(c echo.Context) error {
	return s.filteredEvents(c, func(ev *domain.Event) bool { return ev.EventType == domain.TypeParty })
}

func (s *Server) eventsByType(c echo.Context) error {
	t := domain.EventType(c.Param("type"))
	return s.filteredEvents(c, func(ev *domain.Event) bool { return ev.EventType == t })
}

func (s *Server) filteredEvents(c echo.Context, keep func(*domain.Event) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Event, 0)
	for _, ev := range s.events {
		if keep(ev) {
			out = append(out, *ev)
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) eventByID(c echo.Context) error {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "event not found")
	}
	return c.JSON(http.StatusOK, ev)
}

func (s *Server) eventMembers(c echo.Context) error {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "event not found")
	}
	return c.JSON(http.StatusOK, ev.Members)
}

func (s *Server) createEvent(c echo.Context) error {
	caller := s.caller(c)
	if caller == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
	}
	var in ports.EventInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if in.EventType.Academic() && caller.UserType != domain.UserTeacher && caller.UserType != domain.UserAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "only teachers may create academic events")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEvent++
	ev := &domain.Event{
		ID:          s.nextEvent,
		Title:       in.Title,
		Description: in.Description,
		EventType:   in.EventType,
		Date:        in.Date,
		Organizer:   caller.Ref(),
	}
	s.appendMember(ev, caller.ID)
	for _, id := range in.MemberIDs {
		if id != caller.ID {
			s.appendMember(ev, id)
		}
	}
	s.events[ev.ID] = ev
	return c.JSON(http.StatusCreated, ev)
}

func (s *Server) updateEvent(c echo.Context) error {
	caller := s.caller(c)
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	var in ports.EventInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "event not found")
	}
	if caller == nil || !ev.OrganizedBy(caller.ID) {
		return echo.NewHTTPError(http.StatusForbidden, "only the organizer may edit")
	}
	ev.Title = in.Title
	ev.Description = in.Description
	ev.EventType = in.EventType
	ev.Date = in.Date
	return c.JSON(http.StatusOK, ev)
}

func (s *Server) deleteEvent(c echo.Context) error {
	caller := s.caller(c)
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "event not found")
	}
	if caller == nil || !ev.OrganizedBy(caller.ID) {
		return echo.NewHTTPError(http.StatusForbidden, "only the organizer may delete")
	}
	delete(s.events, id)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) addMember(c echo.Context) error {
	eventID, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	userID, _ := strconv.ParseInt(c.Param("userId"), 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAddMember[userID] {
		return echo.NewHTTPError(http.StatusInternalServerError, "injected failure")
	}
	ev, ok := s.events[eventID]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "event not found")
	}
	if _, ok := s.users[userID]; !ok {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	for _, m := range ev.Members {
		if m.User.ID == userID {
			return echo.NewHTTPError(http.StatusConflict, "already a member")
		}
	}
	s.appendMember(ev, userID)
	return c.JSON(http.StatusOK, ev)
}

func (s *Server) removeMember(c echo.Context) error {
	eventID, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	userID, _ := strconv.ParseInt(c.Param("userId"), 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailRemoveMember[userID] {
		return echo.NewHTTPError(http.StatusInternalServerError, "injected failure")
	}
	ev, ok := s.events[eventID]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "event not found")
	}
	for i, m := range ev.Members {
		if m.User.ID == userID {
			ev.Members = append(ev.Members[:i], ev.Members[i+1:]...)
			return c.NoContent(http.StatusNoContent)
		}
	}
	return echo.NewHTTPError(http.StatusNotFound, "member not found")
}

// appendMember must run with s.mu held.
func (s *Server) appendMember(ev *domain.Event, userID int64) {
	u, ok := s.users[userID]
	if !ok {
		return
	}
	s.nextMember++
	ev.Members = append(ev.Members, domain.EventMember{
		ID:       s.nextMember,
		User:     u.Ref(),
		Event:    domain.EventRef{ID: ev.ID, Title: ev.Title},
		JoinedAt: domain.NewTimestamp(time.Now()),
	})
}
