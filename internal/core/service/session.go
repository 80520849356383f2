package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/eventosacademicos/campus-agenda/internal/cache"
	"github.com/eventosacademicos/campus-agenda/internal/core/domain"
	"github.com/eventosacademicos/campus-agenda/internal/core/ports"
	"github.com/eventosacademicos/campus-agenda/internal/validate"
)

// RegisterForm collects a signup request. Validation mirrors the checks
// the browser form ran before submitting: required fields, matching
// passwords, minimum length, email shape.
type RegisterForm struct {
	Username           string          `validate:"required"`
	Email              string          `validate:"required,email"`
	Phone              string          `validate:"required"`
	RegistrationNumber string          `validate:"required"`
	Password           string          `validate:"required,min=6"`
	ConfirmPassword    string          `validate:"required,eqfield=Password"`
	UserType           domain.UserType `validate:"required,oneof=STUDENT TEACHER ADMIN"`
}

// Session owns the client's authenticated identity: init/login/logout
// lifecycle, durable persistence, and the forced-logout path taken when
// the backend rejects a token.
type Session struct {
	backend  ports.Backend
	store    ports.SessionStore
	cache    cache.Cache
	log      zerolog.Logger
	navigate func() // called after a logout that ended a live session

	mu      sync.RWMutex
	current domain.Session
}

// NewSession wires the session manager. The query cache is held so logout
// can clear it along with durable state.
func NewSession(backend ports.Backend, store ports.SessionStore, c cache.Cache, log zerolog.Logger) *Session {
	return &Session{backend: backend, store: store, cache: c, log: log}
}

// SetNavigate registers the view-level callback run after logout ends a
// live session (the CLI returns to its login prompt). Optional.
func (s *Session) SetNavigate(fn func()) {
	s.navigate = fn
}

// Token yields the current bearer token; satisfies rest.TokenSource.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

// Current returns a copy of the in-memory session.
func (s *Session) Current() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Authenticated reports whether a full session (token and user) is held.
func (s *Session) Authenticated() bool {
	return s.Current().Authenticated()
}

// Initialize restores the session from durable storage. Missing, partial,
// malformed, or expired state degrades silently to unauthenticated; the
// persisted remnants are cleared so the next run starts clean. Never
// returns an error.
func (s *Session) Initialize(ctx context.Context) {
	st, err := s.store.Load()
	if err != nil {
		s.log.Warn().Err(err).Msg("persisted session unreadable, starting unauthenticated")
		_ = s.store.ClearSession()
		return
	}
	if st.Token == "" && st.User == nil {
		return
	}
	// Token without user (or the reverse) counts as unauthenticated,
	// left over from a crash between the two login writes.
	if st.Token == "" || st.User == nil {
		s.log.Info().Msg("partial persisted session, starting unauthenticated")
		_ = s.store.ClearSession()
		return
	}
	if !tokenUsable(st.Token) {
		s.log.Info().Msg("persisted token expired or malformed, starting unauthenticated")
		_ = s.store.ClearSession()
		return
	}

	s.mu.Lock()
	s.current = domain.Session{Token: st.Token, User: st.User}
	s.mu.Unlock()
	s.log.Debug().Str("username", st.User.Username).Msg("session restored")
}

// Login authenticates against the backend. The token is persisted before
// the profile fetch begins, so a crash between the two writes leaves a
// recoverable (treated-as-unauthenticated) state rather than a corrupt
// one. Any failure leaves the session unauthenticated and propagates.
func (s *Session) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return domain.ErrInvalidCredentials
	}

	res, err := s.backend.Login(ctx, ports.LoginInput{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if err := s.store.SaveToken(res.Token); err != nil {
		return fmt.Errorf("login: persist token: %w", err)
	}
	s.mu.Lock()
	s.current = domain.Session{Token: res.Token}
	s.mu.Unlock()

	// The profile fetch runs with the fresh token already attached.
	user, err := s.backend.UserByID(ctx, res.ID)
	if err != nil {
		s.mu.Lock()
		s.current = domain.Session{}
		s.mu.Unlock()
		_ = s.store.ClearSession()
		return fmt.Errorf("login: fetch profile: %w", err)
	}

	if err := s.store.SaveUser(user); err != nil {
		s.mu.Lock()
		s.current = domain.Session{}
		s.mu.Unlock()
		_ = s.store.ClearSession()
		return fmt.Errorf("login: persist user: %w", err)
	}

	s.mu.Lock()
	s.current.User = user
	s.mu.Unlock()

	s.log.Info().Str("username", user.Username).Msg("logged in")
	return nil
}

// Logout unconditionally clears the in-memory session, durable storage
// (token, user, preferences), and the shared query cache, then invokes
// the navigate callback. Idempotent: when no session was live, state is
// already empty and no navigation runs.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	wasLive := s.current.Authenticated()
	s.current = domain.Session{}
	s.mu.Unlock()

	if err := s.store.ClearSession(); err != nil {
		s.log.Warn().Err(err).Msg("clearing persisted session failed")
	}
	if err := s.cache.Clear(ctx); err != nil {
		s.log.Warn().Err(err).Msg("clearing query cache failed")
	}

	if wasLive {
		s.log.Info().Msg("logged out")
		if s.navigate != nil {
			s.navigate()
		}
	}
}

// ForceLogout is the hook the HTTP client invokes when a response carries
// an authentication rejection. Same clear-and-redirect path as Logout.
func (s *Session) ForceLogout() {
	s.Logout(context.Background())
}

// Register validates the form client-side, then submits it. The account
// starts unapproved; an administrator confirms it before first login.
func (s *Session) Register(ctx context.Context, form RegisterForm) error {
	if err := validate.Struct(form); err != nil {
		return err
	}
	err := s.backend.Register(ctx, ports.RegisterInput{
		Username:           form.Username,
		Email:              form.Email,
		Phone:              form.Phone,
		Password:           form.Password,
		RegistrationNumber: form.RegistrationNumber,
		UserType:           form.UserType,
	})
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// tokenUsable reports whether the persisted token still parses as a JWT
// and has not expired. The client holds no signing secret, so the check
// is structural only; the backend remains the authority.
func tokenUsable(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return false
	}
	if exp == nil {
		return true
	}
	return exp.After(time.Now())
}
