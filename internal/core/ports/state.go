package ports

import "github.com/eventosacademicos/campus-agenda/internal/core/domain"

// Preferences are the ephemeral UI settings that survive between runs
// but are wiped on logout.
type Preferences struct {
	EventTypeFilter string `json:"eventTypeFilter,omitempty"`
	SelectedMonth   string `json:"selectedMonth,omitempty"` // YYYY-MM
}

// SessionState is everything the client persists locally.
type SessionState struct {
	Token       string       `json:"token,omitempty"`
	User        *domain.User `json:"user,omitempty"`
	Preferences Preferences  `json:"preferences"`
}

// SessionStore is the durable client-side storage for token, user and
// preferences. The backend owns all other state.
type SessionStore interface {
	// Load returns the persisted state. A missing store yields a zero
	// state and no error; a corrupt store yields a zero state and the
	// parse error so callers can log and reset.
	Load() (SessionState, error)

	// SaveToken persists the token, leaving the rest untouched. Written
	// before the profile fetch so a crash mid-login is recoverable.
	SaveToken(token string) error

	// SaveUser persists the user profile, leaving the rest untouched.
	SaveUser(u *domain.User) error

	// SavePreferences persists UI preferences.
	SavePreferences(p Preferences) error

	// ClearSession removes token, user and preferences. Idempotent.
	ClearSession() error
}
