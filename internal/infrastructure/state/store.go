// Package state persists the client session to a single JSON file under
// the user config directory. It is the durable analogue of the browser
// original's localStorage: token, user profile, and UI preferences.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eventosacademicos/campus-agenda/internal/core/domain"
	"github.com/eventosacademicos/campus-agenda/internal/core/ports"
)

const fileName = "session.json"

// FileStore implements ports.SessionStore on top of an atomically written
// file. Writes go through a temp file and rename so a crash never leaves
// a half-written store.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. An empty dir selects
// os.UserConfigDir()/agenda.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		dir = filepath.Join(base, "agenda")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path() string { return filepath.Join(s.dir, fileName) }

// Load reads the persisted state. A missing file is not an error; a
// corrupt file returns the parse error alongside a zero state.
func (s *FileStore) Load() (ports.SessionState, error) {
	var st ports.SessionState
	data, err := os.ReadFile(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("read session state: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return ports.SessionState{}, fmt.Errorf("parse session state: %w", err)
	}
	return st, nil
}

func (s *FileStore) SaveToken(token string) error {
	return s.update(func(st *ports.SessionState) {
		st.Token = token
	})
}

func (s *FileStore) SaveUser(u *domain.User) error {
	return s.update(func(st *ports.SessionState) {
		st.User = u
	})
}

func (s *FileStore) SavePreferences(p ports.Preferences) error {
	return s.update(func(st *ports.SessionState) {
		st.Preferences = p
	})
}

// ClearSession wipes token, user and preferences. Removing the file
// entirely keeps the operation idempotent.
func (s *FileStore) ClearSession() error {
	err := os.Remove(s.path())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear session state: %w", err)
	}
	return nil
}

// update applies fn to the current state and writes it back atomically.
// A corrupt existing file is discarded rather than propagated, the write
// starts from a zero state.
func (s *FileStore) update(fn func(*ports.SessionState)) error {
	st, err := s.Load()
	if err != nil {
		st = ports.SessionState{}
	}
	fn(&st)

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, fileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write session state: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write session state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write session state: %w", err)
	}
	if err := os.Rename(tmpName, s.path()); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write session state: %w", err)
	}
	return nil
}
