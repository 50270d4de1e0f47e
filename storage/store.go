package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"campushub.com/campus-feed/log"
	"campushub.com/campus-feed/models"
)

// Storage keys. The session service is the only writer of either entry.
const (
	TokenKey = "auth_token"
	UserKey  = "current_user"
)

// Store is the durable client store: one small file per key under a private
// directory, surviving process restarts the way browser local storage
// survives page reloads.
type Store struct {
	dir string
}

func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Get reads the raw value for a key. A missing key is not an error.
func (s *Store) Get(key string) (string, bool) {
	b, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		return "", false
	}
	return string(b), true
}

func (s *Store) Set(key, value string) error {
	return os.WriteFile(filepath.Join(s.dir, key), []byte(value), 0600)
}

func (s *Store) Delete(key string) {
	os.Remove(filepath.Join(s.dir, key))
}

// Token returns the stored bearer token, or "" when none is held. The token
// can be present without a stored user; that is a valid degraded session.
func (s *Store) Token() string {
	tok, _ := s.Get(TokenKey)
	return tok
}

// User returns the stored user record. Corrupt stored data fails closed to
// nil so a bad entry can never wedge startup.
func (s *Store) User() *models.AuthUser {
	raw, ok := s.Get(UserKey)
	if !ok || raw == "" {
		return nil
	}
	var u models.AuthUser
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		log.Warn.Printf("discarding corrupt stored user: %v", err)
		return nil
	}
	return &u
}

func (s *Store) SaveUser(u *models.AuthUser) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.Set(UserKey, string(b))
}

// SaveSession persists token and user as a pair. A write failure clears both
// entries so the store never holds half a session.
func (s *Store) SaveSession(token string, user *models.AuthUser) error {
	if err := s.Set(TokenKey, token); err != nil {
		s.Clear()
		return fmt.Errorf("failed to persist token: %w", err)
	}
	if err := s.SaveUser(user); err != nil {
		s.Clear()
		return fmt.Errorf("failed to persist user: %w", err)
	}
	return nil
}

// Clear removes both session entries. Missing entries are ignored.
func (s *Store) Clear() {
	s.Delete(TokenKey)
	s.Delete(UserKey)
}
